package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZAPPYcore/DAISY/models"
)

func TestConnectCreatesDirectoryAndMigrates(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "cache.db")
	gdb, err := Connect(dsn, false)
	require.NoError(t, err)

	assert.True(t, gdb.Migrator().HasTable(&models.ModuleArtifact{}))
	assert.True(t, gdb.Migrator().HasTable(&models.BuildRun{}))
}

func TestConnectRejectsNothing(t *testing.T) {
	gdb, err := Connect(filepath.Join(t.TempDir(), "cache.db"), false)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&models.ModuleArtifact{Key: "k", Module: "m"}).Error)
	var count int64
	gdb.Model(&models.ModuleArtifact{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("libsql://cache.example.io"))
	assert.True(t, isURL("https://cache.example.io"))
	assert.False(t, isURL("build/cache.db"))
	assert.False(t, isURL("/tmp/cache.db"))
}

package models

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ModuleArtifact{}, &BuildRun{}))
	return db
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "module_artifacts", ModuleArtifact{}.TableName())
	assert.Equal(t, "build_runs", BuildRun{}.TableName())
}

func TestModuleArtifactRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	art := ModuleArtifact{
		Key:             "abc123",
		Module:          "hello",
		SourceHash:      "deadbeef",
		ABIMajor:        1,
		CompilerVersion: "0.4.0",
		FeatureFlags:    "rt-checks",
		CPath:           "build/hello.c",
		HeaderPath:      "build/hello.h",
		Manifest:        datatypes.JSON([]byte(`{"abi_major":1}`)),
	}
	require.NoError(t, db.Create(&art).Error)

	var got ModuleArtifact
	require.NoError(t, db.First(&got, "key = ?", "abc123").Error)
	assert.Equal(t, "hello", got.Module)
	assert.Equal(t, "rt-checks", got.FeatureFlags)
	assert.Equal(t, 1, got.ABIMajor)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestKeyIsPrimary(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&ModuleArtifact{Key: "k1", Module: "a"}).Error)
	// Save on the same key upserts instead of duplicating
	require.NoError(t, db.Save(&ModuleArtifact{Key: "k1", Module: "b"}).Error)
	var count int64
	db.Model(&ModuleArtifact{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestBuildRunStats(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&BuildRun{Entry: "main.dsy", Modules: 3, CacheHits: 2, Success: true}).Error)
	var got BuildRun
	require.NoError(t, db.First(&got).Error)
	assert.Equal(t, 3, got.Modules)
	assert.Equal(t, 2, got.CacheHits)
	assert.True(t, got.Success)
}

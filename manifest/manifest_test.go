package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# demo project
[package]
name = "demo"
version = "0.3.1"
abi_major = 1

[dependencies]
util = { path = "../util", version = "^1.2.0" }
mathx = "1.0.0"

[workspace]
members = ["libs/*", "tools"]
`

func TestParseManifest(t *testing.T) {
	m, err := Parse("daisy.toml", sample)
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Name)
	assert.Equal(t, "0.3.1", m.Version)
	assert.Equal(t, 1, m.ABIMajor)
	require.Len(t, m.Dependencies, 2)
	assert.Equal(t, "util", m.Dependencies[0].Name)
	assert.Equal(t, "../util", m.Dependencies[0].Path)
	assert.Equal(t, "^1.2.0", m.Dependencies[0].Version.Raw)
	assert.Equal(t, "mathx", m.Dependencies[1].Name)
	assert.Equal(t, []string{"libs/*", "tools"}, m.Members)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("daisy.toml", "[wat]\nx = 1\n")
	assert.Error(t, err)

	_, err = Parse("daisy.toml", "[dependencies]\nutil = 3\n")
	assert.Error(t, err)

	_, err = Parse("daisy.toml", "[dependencies]\nutil = \"not-a-version\"\n")
	assert.Error(t, err)
}

func TestVersionSpecs(t *testing.T) {
	tests := []struct {
		spec    string
		version string
		want    bool
	}{
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "1.2.4", false},
		{"^1.2.0", "1.2.0", true},
		{"^1.2.0", "1.9.9", true},
		{"^1.2.0", "2.0.0", false},
		{"^1.2.0", "1.1.0", false},
	}
	for _, tt := range tests {
		spec, err := ParseVersionSpec(tt.spec)
		require.NoError(t, err, tt.spec)
		assert.Equal(t, tt.want, spec.Matches(tt.version), "%s vs %s", tt.spec, tt.version)
	}
}

func TestSearchPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "libs", "strutil"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "libs", "mathx"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tools"), 0o755))

	m, err := Parse(filepath.Join(dir, "daisy.toml"), "[workspace]\nmembers = [\"libs/*\", \"tools\"]\n")
	require.NoError(t, err)
	paths, err := m.SearchPaths()
	require.NoError(t, err)
	assert.Contains(t, paths, dir)
	assert.Contains(t, paths, filepath.Join(dir, "libs", "strutil"))
	assert.Contains(t, paths, filepath.Join(dir, "libs", "mathx"))
	assert.Contains(t, paths, filepath.Join(dir, "tools"))
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("[package]\nname = \"x\"\n"), 0o644))

	assert.Equal(t, filepath.Join(dir, FileName), Find(sub))
	assert.Equal(t, "", Find(t.TempDir()))
}

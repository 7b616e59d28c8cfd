package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZAPPYcore/DAISY/core"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSingleModule(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "main.dsy", "fn main() -> int:\n  return 0\n")
	diags := &core.Diagnostics{}
	loaded := Load(entry, nil, diags)
	require.False(t, diags.HasErrors())
	require.Len(t, loaded.Modules, 1)
	assert.Equal(t, "main", loaded.Modules[0].Name)
}

func TestImportsResolveInDependencyOrder(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "util.dsy", "pub fn helper() -> int:\n  return 7\n")
	entry := write(t, dir, "main.dsy", "import util\nfn main() -> int:\n  return util.helper()\n")
	diags := &core.Diagnostics{}
	loaded := Load(entry, nil, diags)
	require.False(t, diags.HasErrors(), "diags: %v", diags.All())
	require.Len(t, loaded.Modules, 2)
	assert.Equal(t, "util", loaded.Modules[0].Name)
	assert.Equal(t, "main", loaded.Modules[1].Name)
}

func TestSearchPathsAreConsulted(t *testing.T) {
	dir := t.TempDir()
	libs := filepath.Join(dir, "libs")
	write(t, libs, "strutil.dsy", "pub fn up(s: str) -> str:\n  return s\n")
	entry := write(t, dir, "main.dsy", "import strutil\nfn main() -> int:\n  return 0\n")

	diags := &core.Diagnostics{}
	loaded := Load(entry, []string{libs}, diags)
	require.False(t, diags.HasErrors(), "diags: %v", diags.All())
	assert.Len(t, loaded.Modules, 2)
}

func TestMissingModule(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "main.dsy", "import missing\nfn main() -> int:\n  return 0\n")
	diags := &core.Diagnostics{}
	Load(entry, nil, diags)
	require.True(t, diags.HasErrors())
	assert.Equal(t, core.KindUnknownSymbol, diags.All()[0].Kind)
}

func TestImportCycle(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.dsy", "import b\nfn fa() -> int:\n  return 0\n")
	write(t, dir, "b.dsy", "import a\nfn fb() -> int:\n  return 0\n")
	entry := filepath.Join(dir, "a.dsy")
	diags := &core.Diagnostics{}
	Load(entry, nil, diags)
	var kinds []string
	for _, d := range diags.All() {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, core.KindImportCycle)
}

func TestModuleParsedOnce(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "shared.dsy", "pub fn s() -> int:\n  return 1\n")
	write(t, dir, "mid.dsy", "import shared\npub fn m() -> int:\n  return shared.s()\n")
	entry := write(t, dir, "main.dsy", "import shared\nimport mid\nfn main() -> int:\n  return 0\n")
	diags := &core.Diagnostics{}
	loaded := Load(entry, nil, diags)
	require.False(t, diags.HasErrors(), "diags: %v", diags.All())
	assert.Len(t, loaded.Modules, 3)
}

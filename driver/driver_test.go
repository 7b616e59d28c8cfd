package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZAPPYcore/DAISY/core"
)

func testDriver(t *testing.T) (*Driver, *core.Config, string) {
	t.Helper()
	work := t.TempDir()
	cfg := &core.Config{
		BuildDir: filepath.Join(work, "build"),
		CacheDSN: filepath.Join(work, "build", "cache.db"),
	}
	d, err := New(cfg)
	require.NoError(t, err)
	return d, cfg, work
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const helloEN = "fn main() -> int:\n  print \"hi\"\n  return 0\n"
const helloKO = "함수 main 정의:\n  \"hi\"를 출력한다\n  0을 반환한다\n"

func TestBuildHello(t *testing.T) {
	d, cfg, work := testDriver(t)
	entry := write(t, work, "hello.dsy", helloEN)

	res, err := d.Build(entry)
	require.NoError(t, err)
	require.False(t, res.HasErrors(), "diags: %v", res.Diags)
	require.Len(t, res.Reports, 1)
	assert.False(t, res.Reports[0].CacheHit)

	c, err := os.ReadFile(filepath.Join(cfg.BuildDir, "hello.c"))
	require.NoError(t, err)
	assert.Contains(t, string(c), "daisy_rt_print_str")
	_, err = os.Stat(filepath.Join(cfg.BuildDir, "hello.h"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.BuildDir, "hello.abi.json"))
	assert.NoError(t, err)
}

func TestSurfacesEmitIdenticalC(t *testing.T) {
	d1, cfg1, w1 := testDriver(t)
	res1, err := d1.Build(write(t, w1, "hello.dsy", helloEN))
	require.NoError(t, err)
	require.False(t, res1.HasErrors(), "diags: %v", res1.Diags)

	d2, cfg2, w2 := testDriver(t)
	res2, err := d2.Build(write(t, w2, "hello.dsy", helloKO))
	require.NoError(t, err)
	require.False(t, res2.HasErrors(), "diags: %v", res2.Diags)

	en, _ := os.ReadFile(filepath.Join(cfg1.BuildDir, "hello.c"))
	ko, _ := os.ReadFile(filepath.Join(cfg2.BuildDir, "hello.c"))
	assert.Equal(t, string(en), string(ko))
}

func TestCacheHitOnRebuild(t *testing.T) {
	d, _, work := testDriver(t)
	entry := write(t, work, "hello.dsy", helloEN)

	first, err := d.Build(entry)
	require.NoError(t, err)
	require.False(t, first.Reports[0].CacheHit)

	second, err := d.Build(entry)
	require.NoError(t, err)
	assert.True(t, second.Reports[0].CacheHit)

	// changed source misses
	write(t, work, "hello.dsy", "fn main() -> int:\n  print \"yo\"\n  return 0\n")
	third, err := d.Build(entry)
	require.NoError(t, err)
	assert.False(t, third.Reports[0].CacheHit)
}

func TestCacheKeyComponents(t *testing.T) {
	src := []byte("fn main:\n  return\n")
	base := CacheKey(src, 1, "0.4.0", "")
	assert.Equal(t, base, CacheKey(src, 1, "0.4.0", ""))
	assert.NotEqual(t, base, CacheKey(src, 2, "0.4.0", ""))
	assert.NotEqual(t, base, CacheKey(src, 1, "0.5.0", ""))
	assert.NotEqual(t, base, CacheKey(src, 1, "0.4.0", "rt-checks"))
	assert.NotEqual(t, base, CacheKey([]byte("x"), 1, "0.4.0", ""))
}

func TestDiagnosticsBlockArtifacts(t *testing.T) {
	d, cfg, work := testDriver(t)
	entry := write(t, work, "bad.dsy", "fn main() -> int:\n  let a = buffer(8)\n  let b = move a\n  print str_len_of(a)\n  return 0\n")

	res, err := d.Build(entry)
	require.NoError(t, err)
	require.True(t, res.HasErrors())

	var kinds []string
	for _, diag := range res.Diags {
		kinds = append(kinds, diag.Kind)
	}
	assert.Contains(t, kinds, core.KindUseAfterMove)

	_, statErr := os.Stat(filepath.Join(cfg.BuildDir, "bad.c"))
	assert.True(t, os.IsNotExist(statErr), "no artifact may be written on diagnostics")
}

func TestUnsafeLogWritten(t *testing.T) {
	d, cfg, work := testDriver(t)
	src := `fn main() -> int:
  let r = buffer(8)
  let v = borrow r[0..8]
  unsafe "audited":
    release r
  return 0
`
	entry := write(t, work, "risky.dsy", src)
	res, err := d.Build(entry)
	require.NoError(t, err)
	require.False(t, res.HasErrors(), "diags: %v", res.Diags)

	log, err := os.ReadFile(filepath.Join(cfg.BuildDir, "risky.unsafe.log"))
	require.NoError(t, err)
	assert.Contains(t, string(log), `"audited"`)
	assert.Contains(t, string(log), "risky.dsy")
}

func TestEmitIRAndProfile(t *testing.T) {
	d, cfg, work := testDriver(t)
	cfg.EmitIR = true
	cfg.Profile = true
	entry := write(t, work, "hello.dsy", helloEN)
	res, err := d.Build(entry)
	require.NoError(t, err)
	require.False(t, res.HasErrors())

	irDump, err := os.ReadFile(filepath.Join(cfg.BuildDir, "hello.ir.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(irDump), "module hello")

	_, err = os.Stat(filepath.Join(cfg.BuildDir, "profile.json"))
	assert.NoError(t, err)
}

func TestABIGate(t *testing.T) {
	d, cfg, work := testDriver(t)
	write(t, work, "daisy.toml", "[package]\nname = \"app\"\nabi_major = 1\n\n[dependencies]\nutil = { path = \"util\" }\n")
	write(t, filepath.Join(work, "util"), "daisy.toml", "[package]\nname = \"util\"\nabi_major = 9\n")
	write(t, filepath.Join(work, "util"), "util.dsy", "pub fn helper() -> int:\n  return 7\n")
	entry := write(t, work, "main.dsy", "import util\nfn main() -> int:\n  return util.helper()\n")

	res, err := d.Build(entry)
	require.NoError(t, err)
	require.True(t, res.HasErrors())
	assert.Equal(t, core.KindAbiIncompatible, res.Diags[0].Kind)
	_, statErr := os.Stat(filepath.Join(cfg.BuildDir, "main.c"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMultiModuleBuild(t *testing.T) {
	d, cfg, work := testDriver(t)
	write(t, work, "util.dsy", "pub fn seven() -> int:\n  return 7\n")
	entry := write(t, work, "main.dsy", "import util\nfn main() -> int:\n  return util.seven()\n")

	res, err := d.Build(entry)
	require.NoError(t, err)
	require.False(t, res.HasErrors(), "diags: %v", res.Diags)
	require.Len(t, res.Reports, 2)

	mainC, err := os.ReadFile(filepath.Join(cfg.BuildDir, "main.c"))
	require.NoError(t, err)
	assert.Contains(t, string(mainC), "seven()")
}

func TestVerifyDeterminism(t *testing.T) {
	diff, err := VerifyDeterminism("int x;\n", "int x;\n")
	require.NoError(t, err)
	assert.Empty(t, diff)

	diff, err = VerifyDeterminism("int x;\n", "int y;\n")
	require.NoError(t, err)
	assert.Contains(t, diff, "-int x;")
	assert.Contains(t, diff, "+int y;")
}

func TestCacheStatsAndClear(t *testing.T) {
	d, _, work := testDriver(t)
	entry := write(t, work, "hello.dsy", helloEN)
	_, err := d.Build(entry)
	require.NoError(t, err)

	s, err := Stats(d.DB())
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.Artifacts)
	assert.EqualValues(t, 1, s.Runs)

	require.NoError(t, Clear(d.DB()))
	s, err = Stats(d.DB())
	require.NoError(t, err)
	assert.EqualValues(t, 0, s.Artifacts)
}

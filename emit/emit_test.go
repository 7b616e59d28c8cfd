package emit

import (
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/borrow"
	"github.com/ZAPPYcore/DAISY/checker"
	"github.com/ZAPPYcore/DAISY/core"
	"github.com/ZAPPYcore/DAISY/ir"
	"github.com/ZAPPYcore/DAISY/parser"
)

func compile(t *testing.T, src string, cfg *core.Config) *Output {
	t.Helper()
	diags := &core.Diagnostics{}
	m := parser.ParseText("test.dsy", src, diags)
	require.False(t, diags.HasErrors(), "parse: %v", diags.All())
	prog := checker.Check([]*ast.Module{m}, diags)
	require.False(t, diags.HasErrors(), "check: %v", diags.All())
	own := borrow.Check(prog, diags)
	require.False(t, diags.HasErrors(), "borrow: %v", diags.All())
	irm := ir.Lower(prog, own, m, diags)
	require.False(t, diags.HasErrors(), "lower: %v", diags.All())
	return Module(irm, prog, cfg)
}

func defaultCfg() *core.Config {
	return &core.Config{BuildDir: "build"}
}

const helloEN = "fn main() -> int:\n  print \"hi\"\n  return 0\n"
const helloKO = "함수 main 정의:\n  \"hi\"를 출력한다\n  0을 반환한다\n"

func TestHelloEmitsRuntimeCalls(t *testing.T) {
	out := compile(t, helloEN, defaultCfg())
	assert.Contains(t, out.C, `#include "daisy_runtime.h"`)
	assert.Contains(t, out.C, "daisy_rt_print_str")
	assert.Contains(t, out.C, "int main(void)")
	assert.Contains(t, out.C, "dsy_user_main")
}

// TestSurfaceEquivalentC: the Korean hello compiles to byte-identical C.
func TestSurfaceEquivalentC(t *testing.T) {
	en := compile(t, helloEN, defaultCfg())
	ko := compile(t, helloKO, defaultCfg())
	if en.C != ko.C {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A: difflib.SplitLines(en.C), B: difflib.SplitLines(ko.C),
			FromFile: "english", ToFile: "korean", Context: 2,
		})
		t.Fatalf("surfaces emitted different C:\n%s", diff)
	}
}

func TestDeterministicOutput(t *testing.T) {
	src := `enum Shape:
  Dot
  Line(int)
fn area(s: Shape) -> int:
  match s:
    case Shape.Dot:
      return 0
    case Shape.Line(n):
      return n * 2
  return 0
fn main() -> int:
  return area(Shape.Line(3))
`
	a := compile(t, src, defaultCfg())
	b := compile(t, src, defaultCfg())
	assert.Equal(t, a.C, b.C)
	assert.Equal(t, a.Header, b.Header)
}

func TestReleaseCallsEmitted(t *testing.T) {
	out := compile(t, "fn main() -> int:\n  let a = buffer(8)\n  return 0\n", defaultCfg())
	assert.Contains(t, out.C, "daisy_rt_buffer_create")
	assert.Contains(t, out.C, "daisy_rt_buffer_release")
}

func TestRTChecksGuards(t *testing.T) {
	src := "fn main() -> int:\n  let r = buffer(8)\n  let v = borrow r[0..8]\n  return 0\n"
	plain := compile(t, src, defaultCfg())
	assert.NotContains(t, plain.C, "daisy_rt_check_range")

	cfg := defaultCfg()
	cfg.RTChecks = true
	guarded := compile(t, src, cfg)
	assert.Contains(t, guarded.C, `daisy_rt_check_range`)
	assert.Contains(t, guarded.C, `"view-range"`)
}

func TestUnsafeSuppressesGuards(t *testing.T) {
	src := `fn main() -> int:
  let r = buffer(8)
  unsafe "audited":
    let v = borrow r[0..8]
  return 0
`
	cfg := defaultCfg()
	cfg.RTChecks = true
	out := compile(t, src, cfg)
	assert.NotContains(t, out.C, "daisy_rt_check_range")
}

func TestHeaderHasPublicSignatures(t *testing.T) {
	src := `pub fn add(a: int, b: int) -> int:
  return a + b
fn helper() -> int:
  return 1
`
	out := compile(t, src, defaultCfg())
	assert.Contains(t, out.Header, "int64_t add(int64_t a, int64_t b);")
	assert.NotContains(t, out.Header, "helper")
	assert.Contains(t, out.C, "static int64_t helper(void)")
}

func TestABIManifest(t *testing.T) {
	diags := &core.Diagnostics{}
	m := parser.ParseText("test.dsy", "pub fn add(a: int, b: int) -> int:\n  return a + b\n", diags)
	prog := checker.Check([]*ast.Module{m}, diags)
	own := borrow.Check(prog, diags)
	irm := ir.Lower(prog, own, m, diags)
	require.False(t, diags.HasErrors())

	man := BuildManifest(irm, 1, "deadbeef")
	assert.Equal(t, 1, man.ABIMajor)
	assert.Equal(t, "fn(int, int) -> int", man.ExportedSymbols["add"])

	raw, err := man.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"abi_major": 1`)
	assert.Contains(t, string(raw), `"source_hash": "deadbeef"`)
}

func TestChannelAndSpawnEmission(t *testing.T) {
	src := `fn worker(ch: channel<int>):
  send(ch, 42)
fn main():
  let ch = channel<int>()
  spawn(worker, ch)
  close(ch)
`
	out := compile(t, src, defaultCfg())
	assert.Contains(t, out.C, "daisy_rt_channel_create")
	assert.Contains(t, out.C, "daisy_rt_thread_spawn_chan")
	assert.Contains(t, out.C, "dsy_spawnc_worker")
	assert.Contains(t, out.C, "daisy_rt_channel_send")
}

func TestMatmulFusion(t *testing.T) {
	fused := compile(t, `fn main():
  let c = matmul(tensor(2, 3), tensor(3, 4))
`, defaultCfg())
	assert.Contains(t, fused.C, "daisy_rt_tensor_matmul_fused")

	plain := compile(t, `fn main():
  let a = tensor(2, 3)
  let b = tensor(3, 4)
  let c = matmul(a, b)
`, defaultCfg())
	assert.Contains(t, plain.C, "daisy_rt_tensor_matmul(")
	assert.NotContains(t, plain.C, "daisy_rt_tensor_matmul_fused")
}

func TestStringEscaping(t *testing.T) {
	out := compile(t, "fn main():\n  print \"a\\n\\\"b\\\"\"\n", defaultCfg())
	assert.Contains(t, out.C, `"a\n\"b\""`)
}

func TestNoTypeParamLeaks(t *testing.T) {
	src := `fn id<T>(x: T) -> T:
  return x
fn main() -> int:
  return id<int>(7)
`
	out := compile(t, src, defaultCfg())
	assert.Contains(t, out.C, "id__int")
	assert.False(t, strings.Contains(out.C, "dsy_T"), "type parameter leaked into C")
}

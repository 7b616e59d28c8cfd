package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/borrow"
	"github.com/ZAPPYcore/DAISY/checker"
	"github.com/ZAPPYcore/DAISY/core"
	"github.com/ZAPPYcore/DAISY/parser"
)

func lower(t *testing.T, src string) *Module {
	t.Helper()
	diags := &core.Diagnostics{}
	m := parser.ParseText("test.dsy", src, diags)
	require.False(t, diags.HasErrors(), "parse: %v", diags.All())
	prog := checker.Check([]*ast.Module{m}, diags)
	require.False(t, diags.HasErrors(), "check: %v", diags.All())
	own := borrow.Check(prog, diags)
	require.False(t, diags.HasErrors(), "borrow: %v", diags.All())
	irm := Lower(prog, own, m, diags)
	require.False(t, diags.HasErrors(), "lower: %v", diags.All())
	return irm
}

func findFunc(t *testing.T, m *Module, name string) *Func {
	t.Helper()
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("function %s not lowered; have %v", name, names(m))
	return nil
}

func names(m *Module) []string {
	var out []string
	for _, f := range m.Funcs {
		out = append(out, f.Name)
	}
	return out
}

func ops(f *Func) []string {
	var out []string
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			out = append(out, v.Op)
		}
	}
	return out
}

func TestHelloLowering(t *testing.T) {
	m := lower(t, "fn main() -> int:\n  print \"hi\"\n  return 0\n")
	f := findFunc(t, m, "main")
	assert.Contains(t, ops(f), "print.str")
	last := f.Blocks[len(f.Blocks)-1]
	require.NotNil(t, last.Term)
	assert.Equal(t, "ret", last.Term.Op)
}

func TestMonomorphization(t *testing.T) {
	src := `fn id<T>(x: T) -> T:
  return x
fn main():
  let a = id<int>(1)
  let b = id<str>("s")
  let c = id<int>(2)
`
	m := lower(t, src)
	assert.Contains(t, names(m), "id__int")
	assert.Contains(t, names(m), "id__str")
	// repeated instantiations share one function
	count := 0
	for _, n := range names(m) {
		if n == "id__int" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	// no lowered function retains a type parameter
	for _, f := range m.Funcs {
		for _, p := range f.Params {
			assert.False(t, p.Type.HasParam(), "%s keeps a type parameter", f.Name)
		}
		for _, b := range f.Blocks {
			for _, v := range b.Values {
				if v.Type != nil {
					assert.False(t, v.Type.HasParam(), "%s value %d keeps a type parameter", f.Name, v.ID)
				}
			}
		}
	}
}

func TestTryLowersToBranches(t *testing.T) {
	src := `fn inner() -> Result<int, int>:
  return err(42)
fn outer() -> Result<int, int>:
  let x = try inner()
  return ok(x + 1)
`
	m := lower(t, src)
	f := findFunc(t, m, "outer")
	assert.Contains(t, ops(f), "result.is_ok")
	assert.Contains(t, ops(f), "result.unwrap_err")
	assert.Contains(t, ops(f), "result.err")
	// the failure path early-returns
	rets := 0
	for _, b := range f.Blocks {
		if b.Term != nil && b.Term.Op == "ret" {
			rets++
		}
	}
	assert.GreaterOrEqual(t, rets, 2)
}

func TestShortCircuitLowersToBranches(t *testing.T) {
	m := lower(t, "fn f(a: bool, b: bool) -> bool:\n  return a and b\n")
	f := findFunc(t, m, "f")
	var phis int
	var condbrs int
	for _, b := range f.Blocks {
		phis += len(b.Phis)
		if b.Term != nil && b.Term.Op == "condbr" {
			condbrs++
		}
	}
	assert.GreaterOrEqual(t, condbrs, 1, "and must lower to branching")
	assert.GreaterOrEqual(t, phis, 1)
}

func TestRepeatLowersToBoundedLoop(t *testing.T) {
	m := lower(t, "fn f() -> int:\n  let x = 0\n  repeat 3:\n    x += 1\n  return x\n")
	f := findFunc(t, m, "f")
	assert.Contains(t, ops(f), "lt")
	var loopPhi *Phi
	for _, b := range f.Blocks {
		for _, p := range b.Phis {
			loopPhi = p
		}
	}
	require.NotNil(t, loopPhi, "loop induction variable must be a phi")
	assert.Len(t, loopPhi.Edges, 2)
}

func TestReleaseInsertion(t *testing.T) {
	m := lower(t, "fn f() -> int:\n  let a = buffer(8)\n  return 0\n")
	f := findFunc(t, m, "f")
	assert.Contains(t, ops(f), "buffer.release")
}

func TestWaivedReleaseAnnotation(t *testing.T) {
	src := `fn f() -> int:
  let r = buffer(8)
  let v = borrow r[0..8]
  unsafe "audited":
    release r
  return 0
`
	m := lower(t, src)
	f := findFunc(t, m, "f")
	var waived, unsafeVals bool
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			if v.Op == "buffer.release" && v.Waived {
				waived = true
			}
			if v.Unsafe {
				unsafeVals = true
			}
		}
	}
	assert.True(t, waived, "waived release must be annotated on the IR op")
	assert.True(t, unsafeVals, "unsafe region must annotate its values")
	assert.True(t, f.Unsafe)
}

func TestMatchLowering(t *testing.T) {
	src := `enum Shape:
  Dot
  Line(int)
fn f(s: Shape) -> int:
  match s:
    case Shape.Dot:
      return 0
    case Shape.Line(n):
      return n
  return 1
`
	m := lower(t, src)
	f := findFunc(t, m, "f")
	assert.Contains(t, ops(f), "enum.tag")
	assert.Contains(t, ops(f), "enum.field")
}

func TestDumpIsDeterministic(t *testing.T) {
	src := "fn main() -> int:\n  return 1 + 2\n"
	a := lower(t, src).Dump()
	b := lower(t, src).Dump()
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "module test"))
}

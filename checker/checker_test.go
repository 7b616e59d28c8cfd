package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
	"github.com/ZAPPYcore/DAISY/parser"
)

func check(t *testing.T, src string) (*Program, *core.Diagnostics) {
	t.Helper()
	diags := &core.Diagnostics{}
	m := parser.ParseText("test.dsy", src, diags)
	require.False(t, diags.HasErrors(), "parse failed: %v", diags.All())
	prog := Check([]*ast.Module{m}, diags)
	return prog, diags
}

func kindsOf(diags *core.Diagnostics) []string {
	var out []string
	for _, d := range diags.All() {
		out = append(out, d.Kind)
	}
	return out
}

func TestHelloChecks(t *testing.T) {
	_, diags := check(t, "fn main() -> int:\n  print \"hi\"\n  return 0\n")
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestReturnTypeInference(t *testing.T) {
	prog, diags := check(t, "함수 main 정의:\n  0을 반환한다\n")
	require.False(t, diags.HasErrors())
	fi := prog.Envs["test"].Funcs["main"]
	require.NotNil(t, fi)
	assert.True(t, fi.Ret.Equal(TInt))
}

func TestTypeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"arith on string", "fn f() -> int:\n  return \"x\" + 1\n", core.KindTypeMismatch},
		{"bool not int", "fn f() -> int:\n  return true\n", core.KindTypeMismatch},
		{"unknown symbol", "fn f() -> int:\n  return nope\n", core.KindUnknownSymbol},
		{"unknown function", "fn f() -> int:\n  return missing()\n", core.KindUnknownSymbol},
		{"condition not bool", "fn f() -> int:\n  if 1:\n    return 0\n  return 1\n", core.KindTypeMismatch},
		{"print buffer", "fn f():\n  let b = buffer(4)\n  print b\n", core.KindTypeMismatch},
		{"release int", "fn f():\n  let x = 3\n  release x\n", core.KindTypeMismatch},
		{"add-assign str", "fn f():\n  let s = \"a\"\n  s += 1\n", core.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := check(t, tt.src)
			assert.Contains(t, kindsOf(diags), tt.want)
		})
	}
}

func TestGenericsAndBounds(t *testing.T) {
	base := `trait Show:
  fn show(x: Self) -> str
struct Point:
  x: int
impl Show for Point:
  fn show(x: Point) -> str:
    return "point"
fn id<T: Show>(v: T) -> T:
  return v
`
	t.Run("bound satisfied", func(t *testing.T) {
		_, diags := check(t, base+"fn main():\n  let p = Point{x: 1}\n  let q = id<Point>(p)\n")
		assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
	})
	t.Run("bound unsatisfied", func(t *testing.T) {
		_, diags := check(t, base+"fn main():\n  let q = id<int>(3)\n")
		assert.Contains(t, kindsOf(diags), core.KindUnresolvedTraitBound)
	})
	t.Run("arity mismatch", func(t *testing.T) {
		_, diags := check(t, base+"fn main():\n  let q = id<int, int>(3)\n")
		assert.Contains(t, kindsOf(diags), core.KindGenericArityMismatch)
	})
	t.Run("inference from argument", func(t *testing.T) {
		_, diags := check(t, base+"fn main():\n  let p = Point{x: 1}\n  let q = id(p)\n")
		assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
	})
}

func TestAmbiguousImpl(t *testing.T) {
	src := `trait Show:
  fn show(x: Self) -> str
struct Point:
  x: int
impl Show for Point:
  fn show(x: Point) -> str:
    return "a"
impl Show for Point:
  fn show(x: Point) -> str:
    return "b"
fn id<T: Show>(v: T) -> T:
  return v
fn main():
  let p = Point{x: 1}
  let q = id<Point>(p)
`
	_, diags := check(t, src)
	assert.Contains(t, kindsOf(diags), core.KindAmbiguousImpl)
}

func TestTraitMethodCall(t *testing.T) {
	src := `trait Show:
  fn show(x: Self) -> str
struct Point:
  x: int
impl Show for Point:
  fn show(x: Point) -> str:
    return "point"
fn main():
  let p = Point{x: 1}
  print show(p)
`
	_, diags := check(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestMatchExhaustiveness(t *testing.T) {
	base := "enum Shape:\n  Dot\n  Line(int)\n"
	t.Run("missing variant", func(t *testing.T) {
		_, diags := check(t, base+"fn f(s: Shape) -> int:\n  match s:\n    case Shape.Dot:\n      return 0\n  return 1\n")
		assert.Contains(t, kindsOf(diags), core.KindNonExhaustiveMatch)
	})
	t.Run("all variants", func(t *testing.T) {
		_, diags := check(t, base+"fn f(s: Shape) -> int:\n  match s:\n    case Shape.Dot:\n      return 0\n    case Shape.Line(n):\n      return n\n  return 1\n")
		assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
	})
	t.Run("wildcard covers", func(t *testing.T) {
		_, diags := check(t, base+"fn f(s: Shape) -> int:\n  match s:\n    case _:\n      return 0\n  return 1\n")
		assert.False(t, diags.HasErrors())
	})
	t.Run("guards do not count", func(t *testing.T) {
		_, diags := check(t, base+"fn f(s: Shape) -> int:\n  match s:\n    case Shape.Dot:\n      return 0\n    case Shape.Line(n) if n > 0:\n      return n\n  return 1\n")
		assert.Contains(t, kindsOf(diags), core.KindNonExhaustiveMatch)
	})
}

func TestTryTyping(t *testing.T) {
	t.Run("propagates through matching result", func(t *testing.T) {
		src := `fn inner() -> Result<int, int>:
  return err(42)
fn outer() -> Result<int, int>:
  let x = try inner()
  return ok(x + 1)
`
		_, diags := check(t, src)
		assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
	})
	t.Run("mismatched error type", func(t *testing.T) {
		src := `fn inner() -> Result<int, str>:
  return err("boom")
fn outer() -> Result<int, int>:
  let x = try inner()
  return ok(x)
`
		_, diags := check(t, src)
		assert.Contains(t, kindsOf(diags), core.KindTypeMismatch)
	})
	t.Run("try outside result function", func(t *testing.T) {
		src := `fn inner() -> Result<int, int>:
  return err(1)
fn outer() -> int:
  let x = try inner()
  return x
`
		_, diags := check(t, src)
		assert.Contains(t, kindsOf(diags), core.KindTypeMismatch)
	})
}

func TestCopySemantics(t *testing.T) {
	_, diags := check(t, "fn f():\n  let b = buffer(4)\n  let c = copy b\n")
	assert.Contains(t, kindsOf(diags), core.KindTypeMismatch)

	_, diags2 := check(t, "fn f():\n  let x = 3\n  let y = copy x\n")
	assert.False(t, diags2.HasErrors())
}

func TestIsCopy(t *testing.T) {
	env := NewEnv("m")
	assert.True(t, env.IsCopy(TInt))
	assert.True(t, env.IsCopy(TView))
	assert.False(t, env.IsCopy(TBuffer))
	assert.False(t, env.IsCopy(TStr))
	assert.True(t, env.IsCopy(Result(TInt, TBool)))
	assert.False(t, env.IsCopy(Result(TInt, TStr)))
}

func TestBuiltinSignatures(t *testing.T) {
	_, diags := check(t, "fn f() -> int:\n  return str_len(\"abc\")\n")
	assert.False(t, diags.HasErrors())

	_, diags2 := check(t, "fn f() -> int:\n  return str_len(3)\n")
	assert.Contains(t, kindsOf(diags2), core.KindTypeMismatch)
}

func TestChannelAndSpawn(t *testing.T) {
	src := `fn worker(ch: channel<int>):
  send(ch, 42)
fn main():
  let ch = channel<int>()
  spawn(worker, ch)
  let v = recv(ch)
  close(ch)
`
	_, diags := check(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestVecGenerics(t *testing.T) {
	src := `fn main():
  let v = vec_new<int>()
  vec_push(v, 1)
  let x = vec_get(v, 0)
  print x
`
	_, diags := check(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

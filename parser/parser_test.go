package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
)

func parse(t *testing.T, text string) (*ast.Module, *core.Diagnostics) {
	t.Helper()
	diags := &core.Diagnostics{}
	m := ParseText("test.dsy", text, diags)
	return m, diags
}

func mustParse(t *testing.T, text string) *ast.Module {
	t.Helper()
	m, diags := parse(t, text)
	require.False(t, diags.HasErrors(), "unexpected diagnostics: %v", diags.All())
	return m
}

// wrapBody indents statement rows into a function body for parsing.
func wrapBody(header, body string) string {
	var b strings.Builder
	b.WriteString(header + "\n")
	for _, line := range strings.Split(body, "\n") {
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

// TestSurfaceEquivalence is the pattern-table oracle: every Korean row must
// produce the same AST as its English equivalent, modulo surface directives.
func TestSurfaceEquivalence(t *testing.T) {
	for _, row := range PatternTable {
		t.Run(row.Name, func(t *testing.T) {
			ko := mustParse(t, wrapBody("함수 test 정의:", row.Korean))
			en := mustParse(t, wrapBody("fn test:", row.English))
			assert.Equal(t, ast.PrintModule(en), ast.PrintModule(ko),
				"Korean %q and English %q disagree", row.Korean, row.English)
		})
	}
}

func TestDeclEquivalence(t *testing.T) {
	for _, row := range DeclPatternTable {
		t.Run(row.Name, func(t *testing.T) {
			ko := mustParse(t, row.Korean+"\n")
			en := mustParse(t, row.English+"\n")
			assert.Equal(t, ast.PrintModule(en), ast.PrintModule(ko))
		})
	}
}

// TestRoundTrip checks parse(pretty(parse(s))) == parse(s).
func TestRoundTrip(t *testing.T) {
	sources := []string{
		"fn main() -> int:\n  print \"hi\"\n  return 0\n",
		"fn f(a: int, b: int) -> int:\n  let c = a * b + 1\n  if c > 10:\n    return c\n  else:\n    return 0\n",
		"enum Shape:\n  Dot\n  Line(int)\nfn g(s: Shape) -> int:\n  match s:\n    case Shape.Dot:\n      return 0\n    case Shape.Line(n):\n      return n\n",
		"fn h() -> int:\n  let r = buffer(8)\n  let v = borrow mut r[0..4]\n  release r\n  return 0\n",
		"fn id<T: Show>(x: T) -> T:\n  return x\n",
		"fn loopy() -> int:\n  let x = 0\n  repeat 5:\n    x += 1\n  return x\n",
		"fn risky() -> int:\n  unsafe \"audited\":\n    print 1\n  return 0\n",
	}
	for _, src := range sources {
		first := mustParse(t, src)
		printed := ast.PrintModule(first)
		second := mustParse(t, printed)
		assert.Equal(t, printed, ast.PrintModule(second), "round trip diverged for %q", src)
	}
}

func TestHelloModules(t *testing.T) {
	en := mustParse(t, "fn main() -> int:\n  print \"hi\"\n  return 0\n")
	ko := mustParse(t, "함수 main 정의:\n  \"hi\"를 출력한다\n  0을 반환한다\n")
	require.Len(t, en.Decls, 1)
	require.Len(t, ko.Decls, 1)
	enFn := en.Decls[0].(*ast.FuncDecl)
	koFn := ko.Decls[0].(*ast.FuncDecl)
	assert.Equal(t, "main", enFn.Name)
	assert.Equal(t, "main", koFn.Name)
	require.Len(t, koFn.Body.Stmts, 2)
	assert.IsType(t, &ast.Print{}, koFn.Body.Stmts[0])
	assert.IsType(t, &ast.Return{}, koFn.Body.Stmts[1])
}

func TestDirectiveLocksLine(t *testing.T) {
	m := mustParse(t, "fn main:\n  한국어: 0을 반환한다\n")
	fn := m.Decls[0].(*ast.FuncDecl)
	require.Len(t, fn.Body.Stmts, 1)
	assert.IsType(t, &ast.Return{}, fn.Body.Stmts[0])
}

func TestGenericHeader(t *testing.T) {
	m := mustParse(t, "fn pick<T: Ord + Show, U>(a: T, b: U) -> T:\n  return a\n")
	fn := m.Decls[0].(*ast.FuncDecl)
	require.Len(t, fn.TypeParams, 2)
	assert.Equal(t, []string{"Ord", "Show"}, fn.TypeParams[0].Bounds)
	assert.Empty(t, fn.TypeParams[1].Bounds)
}

func TestGenericCallDisambiguation(t *testing.T) {
	m := mustParse(t, "fn main:\n  let a = id<int>(3)\n  let b = x < y\n")
	fn := m.Decls[0].(*ast.FuncDecl)
	call := fn.Body.Stmts[0].(*ast.Let).Init.(*ast.Call)
	require.Len(t, call.TypeArgs, 1)
	assert.Equal(t, "int", call.TypeArgs[0].TypeString())
	cmp := fn.Body.Stmts[1].(*ast.Let).Init.(*ast.Binary)
	assert.Equal(t, "<", cmp.Op)
}

func TestRepeatRequiresBound(t *testing.T) {
	_, diags := parse(t, "함수 test 정의:\n  반복한다:\n    0을 반환한다\n")
	require.True(t, diags.HasErrors())
	assert.Equal(t, core.KindSyntaxError, diags.All()[0].Kind)
}

func TestUnsafeWithoutJustification(t *testing.T) {
	_, diags := parse(t, "fn main:\n  unsafe:\n    print 1\n")
	require.True(t, diags.HasErrors())
	assert.Equal(t, core.KindUnsafeWithoutJustification, diags.All()[0].Kind)
}

func TestSyntaxErrorRecovery(t *testing.T) {
	_, diags := parse(t, "fn main:\n  let = 3\n  let ok = 4\n  print +\n")
	// two broken statements, both reported; the good one in between parses
	assert.GreaterOrEqual(t, diags.Len(), 2)
	for _, d := range diags.All() {
		assert.Equal(t, core.KindSyntaxError, d.Kind)
	}
}

func TestMixedSurfaceConditional(t *testing.T) {
	src := "fn main:\n  if x == 0:\n    return 1\n  아니면:\n    return 2\n"
	m := mustParse(t, src)
	fn := m.Decls[0].(*ast.FuncDecl)
	stmt := fn.Body.Stmts[0].(*ast.If)
	require.NotNil(t, stmt.Else)
}

func TestTryForms(t *testing.T) {
	short := mustParse(t, wrapBody("함수 test 정의:", "x를 시도 f()로 설정한다"))
	long := mustParse(t, wrapBody("함수 test 정의:", "x를 시도한다 f()로 설정한다"))
	assert.Equal(t, ast.PrintModule(short), ast.PrintModule(long))
}

package borrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/checker"
	"github.com/ZAPPYcore/DAISY/core"
	"github.com/ZAPPYcore/DAISY/parser"
)

func analyze(t *testing.T, src string) (*Result, *core.Diagnostics) {
	t.Helper()
	diags := &core.Diagnostics{}
	m := parser.ParseText("test.dsy", src, diags)
	require.False(t, diags.HasErrors(), "parse failed: %v", diags.All())
	prog := checker.Check([]*ast.Module{m}, diags)
	require.False(t, diags.HasErrors(), "check failed: %v", diags.All())
	res := Check(prog, diags)
	return res, diags
}

func kindsOf(diags *core.Diagnostics) []string {
	var out []string
	for _, d := range diags.All() {
		out = append(out, d.Kind)
	}
	return out
}

func TestUseAfterMove(t *testing.T) {
	src := `fn main() -> int:
  let a = buffer(8)
  let b = move a
  print str_len_of(a)
  return 0
`
	_, diags := analyze(t, src)
	require.Contains(t, kindsOf(diags), core.KindUseAfterMove)
	var d core.Diagnostic
	for _, cand := range diags.All() {
		if cand.Kind == core.KindUseAfterMove {
			d = cand
		}
	}
	// cites the conflicting use and the move origin
	assert.Equal(t, 4, d.Span.Line)
	require.NotEmpty(t, d.Secondary)
	assert.Equal(t, 3, d.Secondary[0].Span.Line)
	assert.Contains(t, d.Message, "a")
}

func TestImplicitMoveOnAssignment(t *testing.T) {
	src := `fn main() -> int:
  let a = buffer(8)
  let b = a
  print str_len_of(a)
  return 0
`
	_, diags := analyze(t, src)
	assert.Contains(t, kindsOf(diags), core.KindUseAfterMove)
}

func TestMoveIntoUserCall(t *testing.T) {
	src := `fn eat(b: buffer):
  release b
fn main() -> int:
  let a = buffer(8)
  eat(a)
  print str_len_of(a)
  return 0
`
	_, diags := analyze(t, src)
	assert.Contains(t, kindsOf(diags), core.KindUseAfterMove)
}

func TestBuiltinBorrowsDoNotMove(t *testing.T) {
	src := `fn main() -> int:
  let a = buffer(8)
  print str_len_of(a)
  print str_len_of(a)
  return 0
`
	_, diags := analyze(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestShadowingLetIsLegal(t *testing.T) {
	src := `fn main() -> int:
  let a = buffer(8)
  let b = move a
  let a = buffer(4)
  print str_len_of(a)
  return 0
`
	_, diags := analyze(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestAliasConflict(t *testing.T) {
	src := `fn main() -> int:
  let r = buffer(8)
  let v1 = borrow mut r[0..8]
  let v2 = borrow r[0..4]
  return 0
`
	_, diags := analyze(t, src)
	require.Contains(t, kindsOf(diags), core.KindBorrowAliasConflict)
	var d core.Diagnostic
	for _, cand := range diags.All() {
		if cand.Kind == core.KindBorrowAliasConflict {
			d = cand
		}
	}
	assert.Contains(t, d.Message, "v1")
	assert.Contains(t, d.Message, "v2")
}

func TestDisjointRangesDoNotAlias(t *testing.T) {
	src := `fn main() -> int:
  let r = buffer(8)
  let v1 = borrow mut r[0..4]
  let v2 = borrow mut r[4..8]
  return 0
`
	_, diags := analyze(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestSharedImmutableBorrows(t *testing.T) {
	src := `fn main() -> int:
  let r = buffer(8)
  let v1 = borrow r[0..8]
  let v2 = borrow r[0..8]
  return 0
`
	_, diags := analyze(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestReleaseWithLiveBorrow(t *testing.T) {
	src := `fn main() -> int:
  let r = buffer(8)
  let v = borrow r[0..8]
  release r
  return 0
`
	_, diags := analyze(t, src)
	assert.Contains(t, kindsOf(diags), core.KindReleaseWithLiveBorrow)
}

func TestUnsafeWaivesReleaseOnly(t *testing.T) {
	src := `fn main() -> int:
  let r = buffer(8)
  let v = borrow r[0..8]
  unsafe "audited":
    release r
  return 0
`
	res, diags := analyze(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
	assert.Len(t, res.Waived, 1)
}

func TestUnsafeDoesNotWaiveUseAfterMove(t *testing.T) {
	src := `fn main() -> int:
  let a = buffer(8)
  let b = move a
  unsafe "audited":
    print str_len_of(a)
  return 0
`
	_, diags := analyze(t, src)
	assert.Contains(t, kindsOf(diags), core.KindUseAfterMove)
}

func TestUnsafeDoesNotWaiveAliasRule(t *testing.T) {
	src := `fn main() -> int:
  let r = buffer(8)
  let v1 = borrow mut r[0..8]
  unsafe "audited":
    let v2 = borrow r[0..4]
  return 0
`
	_, diags := analyze(t, src)
	assert.Contains(t, kindsOf(diags), core.KindBorrowAliasConflict)
}

func TestBranchJoinMove(t *testing.T) {
	src := `fn main() -> int:
  let a = buffer(8)
  if str_len_of(a) > 4:
    let b = move a
  else:
    print 1
  print str_len_of(a)
  return 0
`
	_, diags := analyze(t, src)
	assert.Contains(t, kindsOf(diags), core.KindUseAfterMove)
}

func TestBranchJoinBothSafe(t *testing.T) {
	src := `fn main() -> int:
  let a = buffer(8)
  if str_len_of(a) > 4:
    print 1
  else:
    print 2
  print str_len_of(a)
  return 0
`
	_, diags := analyze(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestUseAfterRelease(t *testing.T) {
	src := `fn main() -> int:
  let r = buffer(8)
  release r
  print str_len_of(r)
  return 0
`
	_, diags := analyze(t, src)
	assert.Contains(t, kindsOf(diags), core.KindUseAfterMove)
}

func TestLoopCrossIterationMove(t *testing.T) {
	src := `fn sink(b: buffer):
  release b
fn main() -> int:
  let a = buffer(8)
  repeat 2:
    sink(a)
  return 0
`
	_, diags := analyze(t, src)
	assert.Contains(t, kindsOf(diags), core.KindUseAfterMove)
}

func TestBorrowExpiresAtBlockEnd(t *testing.T) {
	src := `fn main() -> int:
  let r = buffer(8)
  if str_len_of(r) > 0:
    let v = borrow mut r[0..8]
    print view_len(v)
  release r
  return 0
`
	_, diags := analyze(t, src)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestReleasePlanAtScopeEnd(t *testing.T) {
	src := `fn main() -> int:
  let a = buffer(8)
  return 0
`
	res, diags := analyze(t, src)
	require.False(t, diags.HasErrors())
	var planned []string
	for _, rel := range res.ReturnReleases {
		planned = append(planned, rel...)
	}
	assert.Contains(t, planned, "a")
}

func TestReturnedBufferIsNotReleased(t *testing.T) {
	src := `fn make() -> buffer:
  let a = buffer(8)
  return a
`
	res, diags := analyze(t, src)
	require.False(t, diags.HasErrors(), "diags: %v", diags.All())
	for _, rel := range res.ReturnReleases {
		assert.NotContains(t, rel, "a")
	}
}

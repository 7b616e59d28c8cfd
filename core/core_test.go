package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceNormalizesLineEndings(t *testing.T) {
	s := NewSource(0, "x.dsy", "a\r\nb\rc\n")
	assert.Equal(t, "a\nb\nc\n", s.Text)
}

func TestSourcePositions(t *testing.T) {
	s := NewSource(0, "x.dsy", "ab\ncd\nef\n")
	line, col := s.Pos(0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)
	line, col = s.Pos(4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 2, col)
	assert.Equal(t, "cd", s.LineText(2))
}

func TestSurfaceHint(t *testing.T) {
	surface, n := SurfaceHint("영어: fn main:")
	assert.Equal(t, SurfaceEnglish, surface)
	assert.Equal(t, len("영어:"), n)

	surface, n = SurfaceHint("  한국어: 0을 반환한다")
	assert.Equal(t, SurfaceKorean, surface)
	assert.Equal(t, 2+len("한국어:"), n)

	surface, _ = SurfaceHint("fn main:")
	assert.Equal(t, SurfaceAuto, surface)
}

func TestDiagnosticsOrdering(t *testing.T) {
	ds := &Diagnostics{}
	ds.Addf(KindTypeMismatch, Span{Start: 10, Line: 2}, "later")
	ds.Addf(KindSyntaxError, Span{Start: 3, Line: 1}, "earlier")
	all := ds.All()
	require.Len(t, all, 2)
	assert.Equal(t, "earlier", all[0].Message)
	assert.Equal(t, "later", all[1].Message)
}

func TestDiagnosticsRollback(t *testing.T) {
	ds := &Diagnostics{}
	ds.Addf(KindSyntaxError, Span{}, "keep")
	mark := ds.Mark()
	ds.Addf(KindSyntaxError, Span{}, "drop")
	ds.Rollback(mark)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "keep", ds.All()[0].Message)
}

func TestFeatureFlags(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "", cfg.FeatureFlags())
	cfg.RTChecks = true
	assert.Equal(t, "rt-checks", cfg.FeatureFlags())
	cfg.LTO = true
	assert.Equal(t, "lto,rt-checks", cfg.FeatureFlags())
}

func TestTokenIs(t *testing.T) {
	tok := Token{Kind: TokenKeyword, Lexeme: "fn"}
	assert.True(t, tok.Is("fn"))
	assert.False(t, tok.Is("let"))
	assert.False(t, Token{Kind: TokenIdent, Lexeme: "fn"}.Is("fn"))
}

func TestParticles(t *testing.T) {
	assert.True(t, IsParticle("를"))
	assert.True(t, IsParticle("으로"))
	assert.False(t, IsParticle("버퍼"))
}

func TestSpanJoin(t *testing.T) {
	a := Span{Start: 4, End: 8, Line: 1, Col: 5}
	b := Span{Start: 10, End: 14, Line: 1, Col: 11}
	j := a.Join(b)
	assert.Equal(t, 4, j.Start)
	assert.Equal(t, 14, j.End)
}

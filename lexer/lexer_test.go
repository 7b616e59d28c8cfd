package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZAPPYcore/DAISY/core"
)

func lex(t *testing.T, text string) ([]core.Token, *core.Diagnostics) {
	t.Helper()
	diags := &core.Diagnostics{}
	toks := New(core.NewSource(0, "test.dsy", text), diags).Lex()
	return toks, diags
}

func kinds(toks []core.Token) []core.TokenKind {
	out := make([]core.TokenKind, len(toks))
	for i, tk := range toks {
		out[i] = tk.Kind
	}
	return out
}

func lexemes(toks []core.Token) []string {
	var out []string
	for _, tk := range toks {
		if tk.Kind == core.TokenNewline || tk.Kind == core.TokenEOF ||
			tk.Kind == core.TokenIndent || tk.Kind == core.TokenDedent {
			continue
		}
		out = append(out, tk.Lexeme)
	}
	return out
}

func TestLexEnglishLine(t *testing.T) {
	toks, diags := lex(t, "let x = 40 + 2\n")
	require.False(t, diags.HasErrors())
	assert.Equal(t, []string{"let", "x", "=", "40", "+", "2"}, lexemes(toks))
	assert.Equal(t, core.TokenKeyword, toks[0].Kind)
	assert.Equal(t, core.TokenIdent, toks[1].Kind)
	assert.Equal(t, core.TokenInt, toks[3].Kind)
}

func TestParticleSplitting(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"ident plus particle", "x를 3으로 설정한다\n", []string{"x", "를", "3", "으로", "설정한다"}},
		{"number then particle", "0을 반환한다\n", []string{"0", "을", "반환한다"}},
		{"byte counter", "8바이트로 생성한다\n", []string{"8", "바이트", "로", "생성한다"}},
		{"range particles", "0부터 8까지로\n", []string{"0", "부터", "8", "까지", "로"}},
		{"possessive", "r의 0부터\n", []string{"r", "의", "0", "부터"}},
		{"repeat counter", "5번 반복한다\n", []string{"5", "번", "반복한다"}},
		{"conditional tail", "done이면\n", []string{"done", "이면"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, diags := lex(t, tt.input)
			require.False(t, diags.HasErrors())
			assert.Equal(t, tt.want, lexemes(toks))
		})
	}
}

func TestParticleTokenKind(t *testing.T) {
	toks, diags := lex(t, "버퍼를 8바이트로 생성한다\n")
	require.False(t, diags.HasErrors())
	assert.Equal(t, core.TokenIdent, toks[0].Kind) // 버퍼 stays an identifier
	assert.Equal(t, core.TokenParticle, toks[1].Kind)
	assert.Equal(t, "를", toks[1].Lexeme)
}

func TestIndentation(t *testing.T) {
	toks, diags := lex(t, "fn main:\n  return 0\n")
	require.False(t, diags.HasErrors())
	var haveIndent, haveDedent bool
	for _, tk := range toks {
		switch tk.Kind {
		case core.TokenIndent:
			haveIndent = true
		case core.TokenDedent:
			haveDedent = true
		}
	}
	assert.True(t, haveIndent)
	assert.True(t, haveDedent)
}

func TestIndentationErrors(t *testing.T) {
	_, diags := lex(t, "fn main:\n   return 0\n")
	require.True(t, diags.HasErrors())
	assert.Equal(t, core.KindLexicalError, diags.All()[0].Kind)

	_, diags = lex(t, "fn main:\n\treturn 0\n")
	require.True(t, diags.HasErrors())
}

func TestStringEscapes(t *testing.T) {
	toks, diags := lex(t, `print "a\nb\t\"c\\"` + "\n")
	require.False(t, diags.HasErrors())
	assert.Equal(t, "a\nb\t\"c\\", toks[1].Lexeme)
}

func TestUnterminatedStringResyncs(t *testing.T) {
	toks, diags := lex(t, "print \"oops\nreturn 0\n")
	require.True(t, diags.HasErrors())
	assert.Equal(t, core.KindLexicalError, diags.All()[0].Kind)
	// the next line still lexes
	assert.Contains(t, lexemes(toks), "return")
}

func TestComments(t *testing.T) {
	toks, diags := lex(t, "# a comment\nlet x = 1 # trailing\n")
	require.False(t, diags.HasErrors())
	assert.Equal(t, []string{"let", "x", "=", "1"}, lexemes(toks))
}

func TestSurfaceDirective(t *testing.T) {
	toks, diags := lex(t, "한국어: x를 3으로 설정한다\n")
	require.False(t, diags.HasErrors())
	require.Equal(t, core.TokenDirective, toks[0].Kind)
	assert.Equal(t, "한국어", toks[0].Lexeme)
}

func TestSpans(t *testing.T) {
	toks, _ := lex(t, "let x = 1\n")
	require.GreaterOrEqual(t, len(toks), 4)
	assert.Equal(t, 1, toks[0].Span.Line)
	assert.Equal(t, 1, toks[0].Span.Col)
	assert.Equal(t, 5, toks[1].Span.Col)
}

func TestEOFKind(t *testing.T) {
	toks, _ := lex(t, "")
	require.NotEmpty(t, toks)
	assert.Equal(t, core.TokenEOF, kinds(toks)[len(toks)-1])
}

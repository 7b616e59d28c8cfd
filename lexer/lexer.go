// Package lexer turns normalized DAISY source into a spanned token stream
// shared by both surface grammars.
//
// The tokenizer is a single-pass, longest-match rune scanner. Layout is
// significant: leading indentation is converted into INDENT/DEDENT tokens
// (2 spaces per level) and every non-blank line ends in a NEWLINE token.
// Korean particles are split off their host word and emitted as standalone
// particle tokens so parser rules can match `NAME 를 ...` uniformly.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ZAPPYcore/DAISY/core"
)

type Lexer struct {
	src    *core.Source
	pos    int
	tokens []core.Token
	diags  *core.Diagnostics
	indent []int // stack of open indentation widths, always starts [0]
}

// New creates a lexer over src, reporting errors into diags.
func New(src *core.Source, diags *core.Diagnostics) *Lexer {
	return &Lexer{src: src, diags: diags, indent: []int{0}}
}

// Lex tokenizes the whole file. On a lexical error the scanner resynchronizes
// at the next line boundary and continues, so one bad line yields one
// diagnostic and the rest of the file still lexes.
func (lx *Lexer) Lex() []core.Token {
	text := lx.src.Text
	for lx.pos < len(text) {
		lineStart := lx.pos
		width, bad := lx.scanIndent()
		if bad {
			lx.syncToLine()
			continue
		}
		if lx.atLineEnd() { // blank or comment-only line
			lx.skipRestOfLine()
			continue
		}
		lx.applyIndent(width, lineStart)
		lx.scanDirective()
		if !lx.scanLineTokens() {
			continue // error path already resynchronized
		}
		lx.emit(core.TokenNewline, "", lx.pos, lx.pos)
		if lx.pos < len(text) {
			lx.pos++ // consume '\n'
		}
	}
	for len(lx.indent) > 1 {
		lx.indent = lx.indent[:len(lx.indent)-1]
		lx.emit(core.TokenDedent, "", lx.pos, lx.pos)
	}
	lx.emit(core.TokenEOF, "", lx.pos, lx.pos)
	return lx.tokens
}

func (lx *Lexer) emit(kind core.TokenKind, lexeme string, start, end int) {
	lx.tokens = append(lx.tokens, core.Token{Kind: kind, Lexeme: lexeme, Span: lx.src.Span(start, end)})
}

func (lx *Lexer) errorf(start, end int, format string, args ...any) {
	lx.diags.Addf(core.KindLexicalError, lx.src.Span(start, end), format, args...)
}

func (lx *Lexer) peek() byte {
	if lx.pos >= len(lx.src.Text) {
		return 0
	}
	return lx.src.Text[lx.pos]
}

func (lx *Lexer) atLineEnd() bool {
	return lx.pos >= len(lx.src.Text) || lx.peek() == '\n' || lx.peek() == '#'
}

func (lx *Lexer) skipRestOfLine() {
	for lx.pos < len(lx.src.Text) && lx.src.Text[lx.pos] != '\n' {
		lx.pos++
	}
	if lx.pos < len(lx.src.Text) {
		lx.pos++
	}
}

// syncToLine recovers from a lexical error by dropping the rest of the line.
func (lx *Lexer) syncToLine() {
	lx.skipRestOfLine()
}

// scanIndent measures leading spaces. Tabs in indentation are rejected.
func (lx *Lexer) scanIndent() (width int, bad bool) {
	start := lx.pos
	for lx.pos < len(lx.src.Text) {
		switch lx.src.Text[lx.pos] {
		case ' ':
			width++
			lx.pos++
		case '\t':
			lx.errorf(start, lx.pos+1, "tab in indentation; use 2-space indents")
			return 0, true
		default:
			return width, false
		}
	}
	return width, false
}

func (lx *Lexer) applyIndent(width, lineStart int) {
	top := lx.indent[len(lx.indent)-1]
	switch {
	case width == top:
		return
	case width > top:
		if width-top != 2 {
			lx.errorf(lineStart, lx.pos, "indentation must grow by exactly 2 spaces, got %d", width-top)
		}
		lx.indent = append(lx.indent, width)
		lx.emit(core.TokenIndent, "", lineStart, lx.pos)
	default:
		for len(lx.indent) > 1 && lx.indent[len(lx.indent)-1] > width {
			lx.indent = lx.indent[:len(lx.indent)-1]
			lx.emit(core.TokenDedent, "", lineStart, lx.pos)
		}
		if lx.indent[len(lx.indent)-1] != width {
			lx.errorf(lineStart, lx.pos, "unindent does not match any outer block")
		}
	}
}

// scanDirective recognizes a surface-lock prefix at the start of the line.
func (lx *Lexer) scanDirective() {
	rest := lx.src.Text[lx.pos:]
	for _, d := range []string{core.DirectiveEnglish, core.DirectiveKorean} {
		if strings.HasPrefix(rest, d) {
			start := lx.pos
			lx.pos += len(d)
			lx.emit(core.TokenDirective, strings.TrimSuffix(d, ":"), start, lx.pos)
			return
		}
	}
}

// scanLineTokens lexes tokens until the line ends. Returns false when an
// error forced a resync.
func (lx *Lexer) scanLineTokens() bool {
	for {
		for lx.peek() == ' ' {
			lx.pos++
		}
		if lx.atLineEnd() {
			if lx.peek() == '#' {
				for lx.pos < len(lx.src.Text) && lx.src.Text[lx.pos] != '\n' {
					lx.pos++
				}
			}
			return true
		}
		if !lx.scanToken() {
			lx.syncToLine()
			return false
		}
	}
}

func (lx *Lexer) scanToken() bool {
	c := lx.peek()
	switch {
	case c == '"':
		return lx.scanString()
	case c >= '0' && c <= '9':
		lx.scanNumber()
		return true
	}
	r, _ := decodeRune(lx.src.Text, lx.pos)
	if isWordStart(r) {
		lx.scanWord()
		return true
	}
	return lx.scanPunct()
}

func (lx *Lexer) scanNumber() {
	start := lx.pos
	for lx.pos < len(lx.src.Text) && lx.src.Text[lx.pos] >= '0' && lx.src.Text[lx.pos] <= '9' {
		lx.pos++
	}
	lx.emit(core.TokenInt, lx.src.Text[start:lx.pos], start, lx.pos)
}

func (lx *Lexer) scanString() bool {
	start := lx.pos
	lx.pos++ // opening quote
	var b strings.Builder
	for lx.pos < len(lx.src.Text) {
		c := lx.src.Text[lx.pos]
		switch c {
		case '"':
			lx.pos++
			lx.emit(core.TokenString, b.String(), start, lx.pos)
			return true
		case '\n':
			lx.errorf(start, lx.pos, "unterminated string literal")
			return false
		case '\\':
			lx.pos++
			if lx.pos >= len(lx.src.Text) {
				lx.errorf(start, lx.pos, "unterminated string literal")
				return false
			}
			switch lx.src.Text[lx.pos] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				lx.errorf(lx.pos-1, lx.pos+1, "unknown escape \\%c", lx.src.Text[lx.pos])
				return false
			}
			lx.pos++
		default:
			b.WriteByte(c)
			lx.pos++
		}
	}
	lx.errorf(start, lx.pos, "unterminated string literal")
	return false
}

// multi-byte punctuation, longest first
var puncts = []string{"->", "..", "==", "!=", "<=", ">=", "+=", "::", ":",
	",", "(", ")", "[", "]", "{", "}", "<", ">", "=", "+", "-", "*", "/",
	"%", "."}

func (lx *Lexer) scanPunct() bool {
	rest := lx.src.Text[lx.pos:]
	for _, p := range puncts {
		if strings.HasPrefix(rest, p) {
			start := lx.pos
			lx.pos += len(p)
			lx.emit(core.TokenPunct, p, start, lx.pos)
			return true
		}
	}
	r, size := decodeRune(lx.src.Text, lx.pos)
	lx.errorf(lx.pos, lx.pos+size, "unexpected character %q", r)
	return false
}

// scanWord consumes one maximal word. Words are script-homogeneous: Hangul
// runs never mix with Latin/digit runs, so `done이면` splits into an
// identifier and the keyword 이면 without whitespace between them.
func (lx *Lexer) scanWord() {
	start := lx.pos
	first, _ := decodeRune(lx.src.Text, lx.pos)
	hangul := isHangul(first)
	for lx.pos < len(lx.src.Text) {
		r, size := decodeRune(lx.src.Text, lx.pos)
		if !isWordPart(r) || isHangul(r) != hangul {
			break
		}
		lx.pos += size
	}
	word := lx.src.Text[start:lx.pos]
	if hangul {
		lx.emitHangulWord(word, start)
		return
	}
	if core.EnglishKeywords[word] {
		lx.emit(core.TokenKeyword, word, start, lx.pos)
	} else {
		lx.emit(core.TokenIdent, word, start, lx.pos)
	}
}

// emitHangulWord classifies a Hangul word, splitting trailing particles and
// the conditional tail 이면 off the host noun. The host is re-classified
// recursively so `8바이트로` yields INT(8) KEYWORD(바이트) PARTICLE(로).
func (lx *Lexer) emitHangulWord(word string, start int) {
	if core.KoreanKeywords[word] {
		lx.emit(core.TokenKeyword, word, start, start+len(word))
		return
	}
	if core.IsParticle(word) {
		lx.emit(core.TokenParticle, word, start, start+len(word))
		return
	}
	if rest, ok := strings.CutSuffix(word, "이면"); ok && rest != "" {
		lx.emitHangulWord(rest, start)
		lx.emit(core.TokenKeyword, "이면", start+len(rest), start+len(word))
		return
	}
	for _, p := range core.Particles {
		if rest, ok := strings.CutSuffix(word, p); ok && rest != "" {
			lx.emitHangulWord(rest, start)
			lx.emit(core.TokenParticle, p, start+len(rest), start+len(word))
			return
		}
	}
	lx.emit(core.TokenIdent, word, start, start+len(word))
}

func isHangul(r rune) bool { return unicode.Is(unicode.Hangul, r) }

func isWordStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isWordPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func decodeRune(s string, pos int) (rune, int) {
	if pos >= len(s) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(s[pos:])
}

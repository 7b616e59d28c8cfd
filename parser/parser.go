// Package parser implements the dual-surface DAISY grammar. Both the
// English-keyword surface and the Korean-prose surface are recognized by one
// top-down parser over the shared token stream and construct nodes from the
// single ast constructor set. Dispatch is per line: an explicit directive
// wins, then surface-locking keywords, then the general expression grammar.
package parser

import (
	"strings"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
	"github.com/ZAPPYcore/DAISY/lexer"
)

type Parser struct {
	src   *core.Source
	toks  []core.Token
	pos   int
	diags *core.Diagnostics
}

// Parse lexes and parses one source file into a module.
func Parse(src *core.Source, diags *core.Diagnostics) *ast.Module {
	toks := lexer.New(src, diags).Lex()
	p := &Parser{src: src, toks: toks, diags: diags}
	return p.parseModule()
}

// ParseText is a convenience for tests and tooling.
func ParseText(name, text string, diags *core.Diagnostics) *ast.Module {
	return Parse(core.NewSource(0, name, text), diags)
}

func (p *Parser) cur() core.Token { return p.toks[p.pos] }
func (p *Parser) peek() core.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() core.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(kind core.TokenKind) bool { return p.cur().Kind == kind }

func (p *Parser) atLex(kind core.TokenKind, lexeme string) bool {
	return p.cur().Kind == kind && p.cur().Lexeme == lexeme
}

func (p *Parser) accept(kind core.TokenKind, lexeme string) bool {
	if p.atLex(kind, lexeme) {
		p.advance()
		return true
	}
	return false
}

// errorf records a SyntaxError at the current token.
func (p *Parser) errorf(expected string) {
	t := p.cur()
	found := t.Lexeme
	if found == "" {
		found = t.Kind.String()
	}
	p.diags.Add(core.Diagnostic{
		Kind:    core.KindSyntaxError,
		Span:    t.Span,
		Message: "expected " + expected + ", found " + found,
	})
}

func (p *Parser) expect(kind core.TokenKind, lexeme string) bool {
	if p.accept(kind, lexeme) {
		return true
	}
	p.errorf(describe(kind, lexeme))
	return false
}

func describe(kind core.TokenKind, lexeme string) string {
	if lexeme != "" {
		return "'" + lexeme + "'"
	}
	return kind.String()
}

// sync advances to the next statement boundary. If the broken statement was
// a block header, its indented body is dropped as well.
func (p *Parser) sync() {
	for !p.at(core.TokenNewline) && !p.at(core.TokenEOF) {
		p.advance()
	}
	p.accept(core.TokenNewline, "")
	if p.at(core.TokenIndent) {
		depth := 0
		for !p.at(core.TokenEOF) {
			switch p.cur().Kind {
			case core.TokenIndent:
				depth++
			case core.TokenDedent:
				depth--
				if depth == 0 {
					p.advance()
					return
				}
			}
			p.advance()
		}
	}
}

// lineSurface classifies the current line. The scan stops at the newline; a
// directive token locks the line, a particle or Korean keyword selects the
// Korean grammar, an English keyword the English one.
func (p *Parser) lineSurface() core.Surface {
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		switch t.Kind {
		case core.TokenNewline, core.TokenEOF:
			return core.SurfaceEnglish
		case core.TokenDirective:
			if t.Lexeme == "영어" {
				return core.SurfaceEnglish
			}
			return core.SurfaceKorean
		case core.TokenParticle:
			return core.SurfaceKorean
		case core.TokenKeyword:
			if core.KoreanKeywords[t.Lexeme] {
				return core.SurfaceKorean
			}
			return core.SurfaceEnglish
		}
	}
	return core.SurfaceEnglish
}

// lineHasKeyword reports whether the rest of the line contains the keyword.
func (p *Parser) lineHasKeyword(lexemes ...string) bool {
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.Kind == core.TokenNewline || t.Kind == core.TokenEOF {
			return false
		}
		if t.Kind == core.TokenKeyword {
			for _, l := range lexemes {
				if t.Lexeme == l {
					return true
				}
			}
		}
	}
	return false
}

// skipDirective consumes a surface-lock directive and returns the surface
// it pins the line to.
func (p *Parser) skipDirective() core.Surface {
	if p.at(core.TokenDirective) {
		t := p.advance()
		if t.Lexeme == "영어" {
			return core.SurfaceEnglish
		}
		return core.SurfaceKorean
	}
	return core.SurfaceAuto
}

// ---- module and declarations ----

func (p *Parser) parseModule() *ast.Module {
	m := &ast.Module{Name: moduleName(p.src.Path), Path: p.src.Path}
	for !p.at(core.TokenEOF) {
		if p.accept(core.TokenNewline, "") {
			continue
		}
		if p.at(core.TokenIndent) || p.at(core.TokenDedent) {
			p.errorf("top-level declaration")
			p.advance()
			continue
		}
		d := p.parseDecl()
		if d == nil {
			p.sync()
			continue
		}
		if imp, ok := d.(*ast.Import); ok {
			m.Imports = append(m.Imports, imp)
		} else {
			m.Decls = append(m.Decls, d)
		}
	}
	return m
}

func moduleName(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".dsy")
}

func (p *Parser) parseDecl() ast.Decl {
	surface := p.skipDirective()
	if surface == core.SurfaceAuto {
		surface = p.lineSurface()
	}
	if surface == core.SurfaceKorean {
		return p.parseKoreanDecl()
	}
	return p.parseEnglishDecl()
}

func (p *Parser) parseEnglishDecl() ast.Decl {
	t := p.cur()
	switch {
	case t.Is("import") || t.Is("use"):
		return p.parseEnglishImport()
	case t.Is("fn"), t.Is("pub"):
		return p.parseEnglishFunc()
	case t.Is("struct"):
		return p.parseStructDecl(core.SurfaceEnglish)
	case t.Is("enum"):
		return p.parseEnumDecl(core.SurfaceEnglish)
	case t.Is("trait"):
		return p.parseTraitDecl(core.SurfaceEnglish)
	case t.Is("impl"):
		return p.parseImplDecl(core.SurfaceEnglish)
	}
	p.errorf("declaration")
	return nil
}

func (p *Parser) parseEnglishImport() ast.Decl {
	start := p.cur().Span
	isUse := p.cur().Is("use")
	p.advance()
	path := p.parseDottedPath()
	if path == nil {
		return nil
	}
	alias := ""
	if p.accept(core.TokenKeyword, "as") {
		if !p.at(core.TokenIdent) {
			p.errorf("alias name")
			return nil
		}
		alias = p.advance().Lexeme
	}
	if !p.expect(core.TokenNewline, "") {
		return nil
	}
	return &ast.Import{Sp: start, Path: path, Alias: alias, IsUse: isUse}
}

func (p *Parser) parseDottedPath() []string {
	if !p.at(core.TokenIdent) {
		p.errorf("module path")
		return nil
	}
	segs := []string{p.advance().Lexeme}
	for p.accept(core.TokenPunct, ".") {
		if !p.at(core.TokenIdent) {
			p.errorf("path segment")
			return nil
		}
		segs = append(segs, p.advance().Lexeme)
	}
	return segs
}

func (p *Parser) parseEnglishFunc() ast.Decl {
	start := p.cur().Span
	public := p.accept(core.TokenKeyword, "pub")
	if !p.expect(core.TokenKeyword, "fn") {
		return nil
	}
	if !p.at(core.TokenIdent) {
		p.errorf("function name")
		return nil
	}
	name := p.advance().Lexeme
	tps := p.parseTypeParams()
	var params []ast.Param
	if p.accept(core.TokenPunct, "(") {
		params = p.parseParams()
	}
	var ret ast.TypeExpr
	if p.accept(core.TokenPunct, "->") {
		ret = p.parseType()
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.FuncDecl{Sp: start, Name: name, Public: public, TypeParams: tps, Params: params, Ret: ret, Body: body}
}

func (p *Parser) parseKoreanDecl() ast.Decl {
	t := p.cur()
	switch {
	case p.lineHasKeyword("가져온다", "사용한다"):
		return p.parseKoreanImport()
	case t.Is("공개") || t.Is("함수"):
		return p.parseKoreanFunc()
	case t.Is("구조체"):
		return p.parseStructDecl(core.SurfaceKorean)
	case t.Is("열거형"):
		return p.parseEnumDecl(core.SurfaceKorean)
	case t.Is("특성"):
		return p.parseTraitDecl(core.SurfaceKorean)
	case t.Is("구현"):
		return p.parseImplDecl(core.SurfaceKorean)
	}
	p.errorf("declaration")
	return nil
}

// parseKoreanImport: 경로.세그를 가져온다 / 경로를 별칭으로 가져온다 / …를 사용한다
func (p *Parser) parseKoreanImport() ast.Decl {
	start := p.cur().Span
	path := p.parseDottedPath()
	if path == nil {
		return nil
	}
	if !p.acceptParticle("를", "을") {
		p.errorf("particle 를")
		return nil
	}
	alias := ""
	if p.at(core.TokenIdent) {
		alias = p.advance().Lexeme
		if !p.acceptParticle("로", "으로") {
			p.errorf("particle 로")
			return nil
		}
	}
	isUse := false
	switch {
	case p.accept(core.TokenKeyword, "가져온다"):
	case p.accept(core.TokenKeyword, "사용한다"):
		isUse = true
	default:
		p.errorf("'가져온다' or '사용한다'")
		return nil
	}
	if !p.expect(core.TokenNewline, "") {
		return nil
	}
	return &ast.Import{Sp: start, Path: path, Alias: alias, IsUse: isUse}
}

// parseKoreanFunc: [공개] 함수 NAME[<T>] [(인자)] [-> T] 정의:
func (p *Parser) parseKoreanFunc() ast.Decl {
	start := p.cur().Span
	public := p.accept(core.TokenKeyword, "공개")
	if !p.expect(core.TokenKeyword, "함수") {
		return nil
	}
	if !p.at(core.TokenIdent) {
		p.errorf("function name")
		return nil
	}
	name := p.advance().Lexeme
	tps := p.parseTypeParams()
	var params []ast.Param
	if p.accept(core.TokenPunct, "(") {
		params = p.parseParams()
	}
	var ret ast.TypeExpr
	if p.accept(core.TokenPunct, "->") {
		ret = p.parseType()
	}
	if !p.expect(core.TokenKeyword, "정의") {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.FuncDecl{Sp: start, Name: name, Public: public, TypeParams: tps, Params: params, Ret: ret, Body: body}
}

// parseStructDecl handles both `struct Name<T>:` and `구조체 Name<T> 정의:`.
func (p *Parser) parseStructDecl(surface core.Surface) ast.Decl {
	start := p.advance().Span // struct / 구조체
	if !p.at(core.TokenIdent) {
		p.errorf("struct name")
		return nil
	}
	name := p.advance().Lexeme
	tps := p.parseTypeParams()
	if surface == core.SurfaceKorean && !p.expect(core.TokenKeyword, "정의") {
		return nil
	}
	if !p.expect(core.TokenPunct, ":") || !p.expect(core.TokenNewline, "") || !p.expect(core.TokenIndent, "") {
		return nil
	}
	var fields []ast.Field
	for !p.at(core.TokenDedent) && !p.at(core.TokenEOF) {
		p.skipDirective()
		if !p.at(core.TokenIdent) {
			p.errorf("field name")
			p.sync()
			continue
		}
		fname := p.cur()
		p.advance()
		if !p.expect(core.TokenPunct, ":") {
			p.sync()
			continue
		}
		ft := p.parseType()
		if ft == nil {
			p.sync()
			continue
		}
		p.expect(core.TokenNewline, "")
		fields = append(fields, ast.Field{Name: fname.Lexeme, Type: ft, Sp: fname.Span})
	}
	p.accept(core.TokenDedent, "")
	return &ast.StructDecl{Sp: start, Name: name, TypeParams: tps, Fields: fields}
}

func (p *Parser) parseEnumDecl(surface core.Surface) ast.Decl {
	start := p.advance().Span // enum / 열거형
	if !p.at(core.TokenIdent) {
		p.errorf("enum name")
		return nil
	}
	name := p.advance().Lexeme
	tps := p.parseTypeParams()
	if surface == core.SurfaceKorean && !p.expect(core.TokenKeyword, "정의") {
		return nil
	}
	if !p.expect(core.TokenPunct, ":") || !p.expect(core.TokenNewline, "") || !p.expect(core.TokenIndent, "") {
		return nil
	}
	var variants []ast.Variant
	for !p.at(core.TokenDedent) && !p.at(core.TokenEOF) {
		p.skipDirective()
		if !p.at(core.TokenIdent) {
			p.errorf("variant name")
			p.sync()
			continue
		}
		vname := p.cur()
		p.advance()
		var elems []ast.TypeExpr
		if p.accept(core.TokenPunct, "(") {
			for !p.at(core.TokenPunct) || p.cur().Lexeme != ")" {
				t := p.parseType()
				if t == nil {
					break
				}
				elems = append(elems, t)
				if !p.accept(core.TokenPunct, ",") {
					break
				}
			}
			p.expect(core.TokenPunct, ")")
		}
		p.expect(core.TokenNewline, "")
		variants = append(variants, ast.Variant{Name: vname.Lexeme, Elems: elems, Sp: vname.Span})
	}
	p.accept(core.TokenDedent, "")
	return &ast.EnumDecl{Sp: start, Name: name, TypeParams: tps, Variants: variants}
}

func (p *Parser) parseTraitDecl(surface core.Surface) ast.Decl {
	start := p.advance().Span // trait / 특성
	if !p.at(core.TokenIdent) {
		p.errorf("trait name")
		return nil
	}
	name := p.advance().Lexeme
	if surface == core.SurfaceKorean && !p.expect(core.TokenKeyword, "정의") {
		return nil
	}
	if !p.expect(core.TokenPunct, ":") || !p.expect(core.TokenNewline, "") || !p.expect(core.TokenIndent, "") {
		return nil
	}
	var methods []ast.FuncSig
	for !p.at(core.TokenDedent) && !p.at(core.TokenEOF) {
		p.skipDirective()
		sigStart := p.cur().Span
		if surface == core.SurfaceKorean {
			if !p.expect(core.TokenKeyword, "함수") {
				p.sync()
				continue
			}
		} else if !p.expect(core.TokenKeyword, "fn") {
			p.sync()
			continue
		}
		if !p.at(core.TokenIdent) {
			p.errorf("method name")
			p.sync()
			continue
		}
		mname := p.advance().Lexeme
		var params []ast.Param
		if p.accept(core.TokenPunct, "(") {
			params = p.parseParams()
		}
		var ret ast.TypeExpr
		if p.accept(core.TokenPunct, "->") {
			ret = p.parseType()
		}
		p.expect(core.TokenNewline, "")
		methods = append(methods, ast.FuncSig{Name: mname, Params: params, Ret: ret, Sp: sigStart})
	}
	p.accept(core.TokenDedent, "")
	return &ast.TraitDecl{Sp: start, Name: name, Methods: methods}
}

// parseImplDecl handles `impl Trait for Type:` / `impl Type:` and the Korean
// forms `구현 Trait 을 Type 에 정의:` / `구현 Type 정의:`.
func (p *Parser) parseImplDecl(surface core.Surface) ast.Decl {
	start := p.advance().Span // impl / 구현
	first := p.parseType()
	if first == nil {
		return nil
	}
	trait := ""
	forType := first
	if surface == core.SurfaceEnglish {
		if p.accept(core.TokenKeyword, "for") {
			trait = first.TypeString()
			forType = p.parseType()
			if forType == nil {
				return nil
			}
		}
	} else {
		if p.acceptParticle("을", "를") {
			trait = first.TypeString()
			forType = p.parseType()
			if forType == nil {
				return nil
			}
			if !p.acceptParticle("에") {
				p.errorf("particle 에")
				return nil
			}
		}
		if !p.expect(core.TokenKeyword, "정의") {
			return nil
		}
	}
	if !p.expect(core.TokenPunct, ":") || !p.expect(core.TokenNewline, "") || !p.expect(core.TokenIndent, "") {
		return nil
	}
	var methods []*ast.FuncDecl
	for !p.at(core.TokenDedent) && !p.at(core.TokenEOF) {
		p.skipDirective()
		var d ast.Decl
		if p.lineSurface() == core.SurfaceKorean {
			d = p.parseKoreanFunc()
		} else {
			d = p.parseEnglishFunc()
		}
		fd, ok := d.(*ast.FuncDecl)
		if !ok {
			p.sync()
			continue
		}
		methods = append(methods, fd)
	}
	p.accept(core.TokenDedent, "")
	return &ast.ImplDecl{Sp: start, Trait: trait, For: forType, Methods: methods}
}

func (p *Parser) acceptParticle(lexemes ...string) bool {
	if p.cur().Kind != core.TokenParticle {
		return false
	}
	for _, l := range lexemes {
		if p.cur().Lexeme == l {
			p.advance()
			return true
		}
	}
	return false
}

// parseTypeParams parses `<T: Trait + Trait, U>` when present.
func (p *Parser) parseTypeParams() []ast.TypeParam {
	if !p.accept(core.TokenPunct, "<") {
		return nil
	}
	var tps []ast.TypeParam
	for {
		if !p.at(core.TokenIdent) {
			p.errorf("type parameter")
			return tps
		}
		t := p.advance()
		tp := ast.TypeParam{Name: t.Lexeme, Sp: t.Span}
		if p.accept(core.TokenPunct, ":") {
			for {
				if !p.at(core.TokenIdent) {
					p.errorf("trait bound")
					return tps
				}
				tp.Bounds = append(tp.Bounds, p.advance().Lexeme)
				if !p.accept(core.TokenPunct, "+") {
					break
				}
			}
		}
		tps = append(tps, tp)
		if p.accept(core.TokenPunct, ">") {
			return tps
		}
		if !p.expect(core.TokenPunct, ",") {
			return tps
		}
	}
}

func (p *Parser) parseParams() []ast.Param {
	var params []ast.Param
	if p.accept(core.TokenPunct, ")") {
		return params
	}
	for {
		if !p.at(core.TokenIdent) {
			p.errorf("parameter name")
			return params
		}
		nameTok := p.advance()
		if !p.expect(core.TokenPunct, ":") {
			return params
		}
		t := p.parseType()
		if t == nil {
			return params
		}
		params = append(params, ast.Param{Name: nameTok.Lexeme, Type: t, Sp: nameTok.Span})
		if p.accept(core.TokenPunct, ")") {
			return params
		}
		if !p.expect(core.TokenPunct, ",") {
			return params
		}
	}
}

// parseType parses NAME or NAME<T, U>. The builtin `buffer` is an English
// keyword but usable in type position.
func (p *Parser) parseType() ast.TypeExpr {
	var name core.Token
	switch {
	case p.at(core.TokenIdent):
		name = p.advance()
	case p.atLex(core.TokenKeyword, "buffer"):
		name = p.advance()
	default:
		p.errorf("type")
		return nil
	}
	var args []ast.TypeExpr
	if p.accept(core.TokenPunct, "<") {
		for {
			a := p.parseType()
			if a == nil {
				return nil
			}
			args = append(args, a)
			if p.accept(core.TokenPunct, ">") {
				break
			}
			if !p.expect(core.TokenPunct, ",") {
				return nil
			}
		}
	}
	return ast.NewNamedType(name.Span, name.Lexeme, args...)
}

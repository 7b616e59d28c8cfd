package parser

import (
	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
)

// parseBlock parses `: NEWLINE INDENT stmt* DEDENT`.
func (p *Parser) parseBlock() *ast.Block {
	start := p.cur().Span
	if !p.expect(core.TokenPunct, ":") || !p.expect(core.TokenNewline, "") || !p.expect(core.TokenIndent, "") {
		return nil
	}
	b := &ast.Block{Sp: start}
	for !p.at(core.TokenDedent) && !p.at(core.TokenEOF) {
		s := p.parseStmt()
		if s == nil {
			continue // parseStmt already synchronized
		}
		b.Stmts = append(b.Stmts, s)
	}
	p.accept(core.TokenDedent, "")
	return b
}

func (p *Parser) parseStmt() ast.Stmt {
	surface := p.skipDirective()
	if surface == core.SurfaceAuto {
		surface = p.lineSurface()
	}
	var s ast.Stmt
	if surface == core.SurfaceKorean {
		s = p.parseKoreanStmt()
	} else {
		s = p.parseEnglishStmt()
	}
	if s == nil {
		p.sync()
	}
	return s
}

// ---- English statements ----

func (p *Parser) parseEnglishStmt() ast.Stmt {
	t := p.cur()
	switch {
	case t.Is("let"):
		return p.parseEnglishLet()
	case t.Is("if"):
		return p.parseEnglishIf()
	case t.Is("repeat"):
		start := p.advance().Span
		count := p.parseExpr(core.SurfaceEnglish)
		if count == nil {
			return nil
		}
		body := p.parseBlock()
		if body == nil {
			return nil
		}
		return &ast.Repeat{Sp: start, Count: count, Body: body}
	case t.Is("match"):
		return p.parseEnglishMatch()
	case t.Is("return"):
		start := p.advance().Span
		if p.accept(core.TokenNewline, "") {
			return &ast.Return{Sp: start}
		}
		v := p.parseExpr(core.SurfaceEnglish)
		if v == nil || !p.expect(core.TokenNewline, "") {
			return nil
		}
		return &ast.Return{Sp: start, Value: v}
	case t.Is("print"):
		start := p.advance().Span
		v := p.parseExpr(core.SurfaceEnglish)
		if v == nil || !p.expect(core.TokenNewline, "") {
			return nil
		}
		return &ast.Print{Sp: start, Value: v}
	case t.Is("release"):
		start := p.advance().Span
		if !p.at(core.TokenIdent) {
			p.errorf("binding name")
			return nil
		}
		name := p.advance().Lexeme
		if !p.expect(core.TokenNewline, "") {
			return nil
		}
		return &ast.Release{Sp: start, Name: name}
	case t.Is("unsafe"):
		return p.parseUnsafe(core.SurfaceEnglish)
	case t.Kind == core.TokenIdent && p.peek().Is("+="):
		nameTok := p.advance()
		p.advance() // +=
		v := p.parseExpr(core.SurfaceEnglish)
		if v == nil || !p.expect(core.TokenNewline, "") {
			return nil
		}
		return &ast.AddAssign{Sp: nameTok.Span, Name: nameTok.Lexeme, Value: v}
	}
	start := t.Span
	e := p.parseExpr(core.SurfaceEnglish)
	if e == nil || !p.expect(core.TokenNewline, "") {
		return nil
	}
	return &ast.ExprStmt{Sp: start, E: e}
}

func (p *Parser) parseEnglishLet() ast.Stmt {
	start := p.advance().Span // let
	if !p.at(core.TokenIdent) {
		p.errorf("binding name")
		return nil
	}
	name := p.advance().Lexeme
	var ty ast.TypeExpr
	if p.accept(core.TokenPunct, ":") {
		ty = p.parseType()
		if ty == nil {
			return nil
		}
	}
	if !p.expect(core.TokenPunct, "=") {
		return nil
	}
	init := p.parseExpr(core.SurfaceEnglish)
	if init == nil || !p.expect(core.TokenNewline, "") {
		return nil
	}
	return &ast.Let{Sp: start, Name: name, Type: ty, Init: init}
}

func (p *Parser) parseEnglishIf() ast.Stmt {
	start := p.advance().Span // if
	cond := p.parseExpr(core.SurfaceEnglish)
	if cond == nil {
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}
	node := &ast.If{Sp: start, Cond: cond, Then: then}
	p.parseBranchTail(node)
	return node
}

// parseBranchTail collects elif/else continuations in either surface, so a
// mixed-surface conditional still forms one If node.
func (p *Parser) parseBranchTail(node *ast.If) {
	for {
		mark := p.pos
		p.skipDirective()
		switch {
		case p.atLex(core.TokenKeyword, "elif"):
			sp := p.advance().Span
			cond := p.parseExpr(core.SurfaceEnglish)
			if cond == nil {
				return
			}
			body := p.parseBlock()
			if body == nil {
				return
			}
			node.Elifs = append(node.Elifs, ast.Elif{Cond: cond, Body: body, Sp: sp})
		case p.atLex(core.TokenKeyword, "아니고"):
			sp := p.advance().Span
			cond := p.parseExpr(core.SurfaceKorean)
			if cond == nil {
				return
			}
			if !p.expect(core.TokenKeyword, "이면") {
				return
			}
			body := p.parseBlock()
			if body == nil {
				return
			}
			node.Elifs = append(node.Elifs, ast.Elif{Cond: cond, Body: body, Sp: sp})
		case p.atLex(core.TokenKeyword, "else"), p.atLex(core.TokenKeyword, "아니면"):
			p.advance()
			body := p.parseBlock()
			if body == nil {
				return
			}
			node.Else = body
			return
		default:
			p.pos = mark
			return
		}
	}
}

func (p *Parser) parseEnglishMatch() ast.Stmt {
	start := p.advance().Span // match
	scrutinee := p.parseExpr(core.SurfaceEnglish)
	if scrutinee == nil {
		return nil
	}
	return p.parseMatchArms(start, scrutinee)
}

// parseMatchArms parses the indented arm list shared by both surfaces.
func (p *Parser) parseMatchArms(start core.Span, scrutinee ast.Expr) ast.Stmt {
	if !p.expect(core.TokenPunct, ":") || !p.expect(core.TokenNewline, "") || !p.expect(core.TokenIndent, "") {
		return nil
	}
	m := &ast.Match{Sp: start, Scrutinee: scrutinee}
	for !p.at(core.TokenDedent) && !p.at(core.TokenEOF) {
		p.skipDirective()
		armStart := p.cur().Span
		korean := p.atLex(core.TokenKeyword, "케이스")
		if !korean && !p.atLex(core.TokenKeyword, "case") {
			p.errorf("'case' arm")
			p.sync()
			continue
		}
		p.advance()
		pat := p.parsePattern()
		if pat == nil {
			p.sync()
			continue
		}
		var guard ast.Expr
		if korean {
			if p.accept(core.TokenKeyword, "만약") {
				guard = p.parseExpr(core.SurfaceKorean)
				if guard == nil || !p.expect(core.TokenKeyword, "이면") {
					p.sync()
					continue
				}
			}
		} else if p.accept(core.TokenKeyword, "if") {
			guard = p.parseExpr(core.SurfaceEnglish)
			if guard == nil {
				p.sync()
				continue
			}
		}
		body := p.parseBlock()
		if body == nil {
			p.sync()
			continue
		}
		m.Arms = append(m.Arms, ast.Arm{Pat: pat, Guard: guard, Body: body, Sp: armStart})
	}
	p.accept(core.TokenDedent, "")
	return m
}

// parseUnsafe parses `unsafe "reason":` / `위험 "이유":`. A missing
// justification string is its own diagnostic kind.
func (p *Parser) parseUnsafe(surface core.Surface) ast.Stmt {
	start := p.advance().Span // unsafe / 위험
	if !p.at(core.TokenString) {
		p.diags.Addf(core.KindUnsafeWithoutJustification, p.cur().Span,
			"unsafe block requires a string justification")
		return nil
	}
	reason := p.advance().Lexeme
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.Unsafe{Sp: start, Reason: reason, Body: body}
}

// ---- Korean statements ----

// parseKoreanStmt dispatches on the line's pattern-final verb, matching the
// canonical pattern table.
func (p *Parser) parseKoreanStmt() ast.Stmt {
	t := p.cur()
	switch {
	case t.Is("위험"):
		return p.parseUnsafe(core.SurfaceKorean)
	case t.Is("반환한다"): // bare return
		start := p.advance().Span
		if !p.expect(core.TokenNewline, "") {
			return nil
		}
		return &ast.Return{Sp: start}
	case p.lineHasKeyword("설정한다"):
		return p.parseKoreanLet()
	case p.lineHasKeyword("더한다"):
		return p.parseKoreanAddAssign()
	case p.lineHasKeyword("반복한다"):
		return p.parseKoreanRepeat()
	case p.lineHasKeyword("대조한다"):
		return p.parseKoreanMatch()
	case p.lineHasKeyword("반환한다"):
		start := t.Span
		v := p.parseExpr(core.SurfaceKorean)
		if v == nil {
			return nil
		}
		if !p.acceptParticle("를", "을") {
			p.errorf("particle 를")
			return nil
		}
		if !p.expect(core.TokenKeyword, "반환한다") || !p.expect(core.TokenNewline, "") {
			return nil
		}
		return &ast.Return{Sp: start, Value: v}
	case p.lineHasKeyword("출력한다"):
		start := t.Span
		v := p.parseExpr(core.SurfaceKorean)
		if v == nil {
			return nil
		}
		if !p.acceptParticle("를", "을") {
			p.errorf("particle 를")
			return nil
		}
		if !p.expect(core.TokenKeyword, "출력한다") || !p.expect(core.TokenNewline, "") {
			return nil
		}
		return &ast.Print{Sp: start, Value: v}
	case p.lineHasKeyword("해제한다"):
		start := t.Span
		if !p.at(core.TokenIdent) {
			p.errorf("binding name")
			return nil
		}
		name := p.advance().Lexeme
		if !p.acceptParticle("을", "를") {
			p.errorf("particle 을")
			return nil
		}
		if !p.expect(core.TokenKeyword, "해제한다") || !p.expect(core.TokenNewline, "") {
			return nil
		}
		return &ast.Release{Sp: start, Name: name}
	case p.lineHasKeyword("이면"):
		return p.parseKoreanIf()
	}
	start := t.Span
	e := p.parseExpr(core.SurfaceKorean)
	if e == nil || !p.expect(core.TokenNewline, "") {
		return nil
	}
	return &ast.ExprStmt{Sp: start, E: e}
}

// parseKoreanLet: X를 E로 설정한다
func (p *Parser) parseKoreanLet() ast.Stmt {
	start := p.cur().Span
	if !p.at(core.TokenIdent) {
		p.errorf("binding name")
		return nil
	}
	name := p.advance().Lexeme
	if !p.acceptParticle("를", "을") {
		p.errorf("particle 를")
		return nil
	}
	init := p.parseExpr(core.SurfaceKorean)
	if init == nil {
		return nil
	}
	if !p.acceptParticle("로", "으로") {
		p.errorf("particle 로")
		return nil
	}
	if !p.expect(core.TokenKeyword, "설정한다") || !p.expect(core.TokenNewline, "") {
		return nil
	}
	return &ast.Let{Sp: start, Name: name, Init: init}
}

// parseKoreanAddAssign: X에 E를 더한다
func (p *Parser) parseKoreanAddAssign() ast.Stmt {
	start := p.cur().Span
	if !p.at(core.TokenIdent) {
		p.errorf("binding name")
		return nil
	}
	name := p.advance().Lexeme
	if !p.acceptParticle("에") {
		p.errorf("particle 에")
		return nil
	}
	v := p.parseExpr(core.SurfaceKorean)
	if v == nil {
		return nil
	}
	if !p.acceptParticle("를", "을") {
		p.errorf("particle 를")
		return nil
	}
	if !p.expect(core.TokenKeyword, "더한다") || !p.expect(core.TokenNewline, "") {
		return nil
	}
	return &ast.AddAssign{Sp: start, Name: name, Value: v}
}

// parseKoreanRepeat: E번 반복한다:  A bare 반복한다: with no count is
// rejected rather than guessed.
func (p *Parser) parseKoreanRepeat() ast.Stmt {
	start := p.cur().Span
	if p.atLex(core.TokenKeyword, "반복한다") {
		p.errorf("count expression before 반복한다")
		return nil
	}
	count := p.parseExpr(core.SurfaceKorean)
	if count == nil {
		return nil
	}
	if !p.expect(core.TokenKeyword, "번") {
		return nil
	}
	if !p.expect(core.TokenKeyword, "반복한다") {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.Repeat{Sp: start, Count: count, Body: body}
}

// parseKoreanMatch: E를 대조한다:
func (p *Parser) parseKoreanMatch() ast.Stmt {
	start := p.cur().Span
	scrutinee := p.parseExpr(core.SurfaceKorean)
	if scrutinee == nil {
		return nil
	}
	if !p.acceptParticle("를", "을") {
		p.errorf("particle 를")
		return nil
	}
	if !p.expect(core.TokenKeyword, "대조한다") {
		return nil
	}
	return p.parseMatchArms(start, scrutinee)
}

// parseKoreanIf: E이면: with 아니고 E이면: / 아니면: continuations.
func (p *Parser) parseKoreanIf() ast.Stmt {
	start := p.cur().Span
	cond := p.parseExpr(core.SurfaceKorean)
	if cond == nil {
		return nil
	}
	if !p.expect(core.TokenKeyword, "이면") {
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}
	node := &ast.If{Sp: start, Cond: cond, Then: then}
	p.parseBranchTail(node)
	return node
}

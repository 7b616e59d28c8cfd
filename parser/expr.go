package parser

import (
	"strconv"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
)

// Expression grammar, shared between surfaces. Particles are never consumed
// here except inside the fixed Korean expression patterns, so statement
// parsers can rely on a particle marking the end of an operand.

func (p *Parser) parseExpr(surface core.Surface) ast.Expr {
	return p.parseOr(surface)
}

func (p *Parser) parseOr(surface core.Surface) ast.Expr {
	l := p.parseAnd(surface)
	if l == nil {
		return nil
	}
	for p.atLex(core.TokenKeyword, "or") || p.atLex(core.TokenKeyword, "또는") {
		sp := p.advance().Span
		r := p.parseAnd(surface)
		if r == nil {
			return nil
		}
		l = &ast.Logical{Sp: sp, Op: "or", L: l, R: r}
	}
	return l
}

func (p *Parser) parseAnd(surface core.Surface) ast.Expr {
	l := p.parseCmp(surface)
	if l == nil {
		return nil
	}
	for p.atLex(core.TokenKeyword, "and") || p.atLex(core.TokenKeyword, "그리고") {
		sp := p.advance().Span
		r := p.parseCmp(surface)
		if r == nil {
			return nil
		}
		l = &ast.Logical{Sp: sp, Op: "and", L: l, R: r}
	}
	return l
}

var cmpOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *Parser) parseCmp(surface core.Surface) ast.Expr {
	l := p.parseAdd(surface)
	if l == nil {
		return nil
	}
	if p.at(core.TokenPunct) && cmpOps[p.cur().Lexeme] {
		op := p.advance()
		r := p.parseAdd(surface)
		if r == nil {
			return nil
		}
		return &ast.Binary{Sp: op.Span, Op: op.Lexeme, L: l, R: r}
	}
	return l
}

func (p *Parser) parseAdd(surface core.Surface) ast.Expr {
	l := p.parseMul(surface)
	if l == nil {
		return nil
	}
	for p.atLex(core.TokenPunct, "+") || p.atLex(core.TokenPunct, "-") {
		op := p.advance()
		r := p.parseMul(surface)
		if r == nil {
			return nil
		}
		l = &ast.Binary{Sp: op.Span, Op: op.Lexeme, L: l, R: r}
	}
	return l
}

func (p *Parser) parseMul(surface core.Surface) ast.Expr {
	l := p.parseUnary(surface)
	if l == nil {
		return nil
	}
	for p.atLex(core.TokenPunct, "*") || p.atLex(core.TokenPunct, "/") || p.atLex(core.TokenPunct, "%") {
		op := p.advance()
		r := p.parseUnary(surface)
		if r == nil {
			return nil
		}
		l = &ast.Binary{Sp: op.Span, Op: op.Lexeme, L: l, R: r}
	}
	return l
}

func (p *Parser) parseUnary(surface core.Surface) ast.Expr {
	switch {
	case p.atLex(core.TokenPunct, "-"):
		sp := p.advance().Span
		x := p.parseUnary(surface)
		if x == nil {
			return nil
		}
		return &ast.Unary{Sp: sp, Op: "-", X: x}
	case p.atLex(core.TokenKeyword, "not"):
		sp := p.advance().Span
		x := p.parseUnary(surface)
		if x == nil {
			return nil
		}
		return &ast.Unary{Sp: sp, Op: "not", X: x}
	case p.atLex(core.TokenKeyword, "try"), p.atLex(core.TokenKeyword, "시도"), p.atLex(core.TokenKeyword, "시도한다"):
		sp := p.advance().Span
		inner := p.parseUnary(surface)
		if inner == nil {
			return nil
		}
		return &ast.TryExpr{Sp: sp, Inner: inner}
	}
	return p.parsePostfix(surface)
}

// parsePostfix parses a primary followed by call argument lists.
func (p *Parser) parsePostfix(surface core.Surface) ast.Expr {
	e := p.parsePrimary(surface)
	if e == nil {
		return nil
	}
	for {
		switch {
		case p.atLex(core.TokenPunct, "("):
			p.advance()
			call := &ast.Call{Sp: e.Span(), Callee: e}
			if !p.accept(core.TokenPunct, ")") {
				for {
					a := p.parseExpr(surface)
					if a == nil {
						return nil
					}
					call.Args = append(call.Args, a)
					if p.accept(core.TokenPunct, ")") {
						break
					}
					if !p.expect(core.TokenPunct, ",") {
						return nil
					}
				}
			}
			e = call
		case p.atLex(core.TokenPunct, "<"):
			// Possible explicit type arguments: f<int>(x) or Pair<int>{..}.
			// Speculate; on failure this is a comparison and the caller's
			// loop will see the '<' again.
			if g := p.tryGenericSuffix(e, surface); g != nil {
				e = g
				continue
			}
			return e
		default:
			return e
		}
	}
}

// tryGenericSuffix attempts `<T, ...>` followed by a call or struct literal.
// Returns nil (with position restored) when the angle bracket turns out to
// be a comparison.
func (p *Parser) tryGenericSuffix(callee ast.Expr, surface core.Surface) ast.Expr {
	mark := p.pos
	dmark := p.diags.Mark()
	p.advance() // <
	var args []ast.TypeExpr
	for {
		t := p.parseType()
		if t == nil {
			p.pos = mark
			p.diags.Rollback(dmark)
			return nil
		}
		args = append(args, t)
		if p.accept(core.TokenPunct, ">") {
			break
		}
		if !p.accept(core.TokenPunct, ",") {
			p.pos = mark
			p.diags.Rollback(dmark)
			return nil
		}
	}
	switch {
	case p.atLex(core.TokenPunct, "("):
		p.advance()
		call := &ast.Call{Sp: callee.Span(), Callee: callee, TypeArgs: args}
		if !p.accept(core.TokenPunct, ")") {
			for {
				a := p.parseExpr(surface)
				if a == nil {
					return nil
				}
				call.Args = append(call.Args, a)
				if p.accept(core.TokenPunct, ")") {
					break
				}
				if !p.expect(core.TokenPunct, ",") {
					return nil
				}
			}
		}
		return call
	case p.atLex(core.TokenPunct, "{"):
		path, ok := callee.(*ast.Path)
		if !ok {
			p.pos = mark
			p.diags.Rollback(dmark)
			return nil
		}
		return p.parseStructLitBody(path, args)
	}
	p.pos = mark
	p.diags.Rollback(dmark)
	return nil
}

func (p *Parser) parseStructLitBody(name *ast.Path, targs []ast.TypeExpr) ast.Expr {
	p.expect(core.TokenPunct, "{")
	lit := &ast.StructLit{Sp: name.Span(), Name: name, TypeArgs: targs}
	if p.accept(core.TokenPunct, "}") {
		return lit
	}
	for {
		if !p.at(core.TokenIdent) {
			p.errorf("field name")
			return nil
		}
		f := p.advance()
		if !p.expect(core.TokenPunct, ":") {
			return nil
		}
		v := p.parseExpr(core.SurfaceAuto)
		if v == nil {
			return nil
		}
		lit.Fields = append(lit.Fields, ast.FieldInit{Name: f.Lexeme, Value: v, Sp: f.Span})
		if p.accept(core.TokenPunct, "}") {
			return lit
		}
		if !p.expect(core.TokenPunct, ",") {
			return nil
		}
	}
}

func (p *Parser) parsePrimary(surface core.Surface) ast.Expr {
	t := p.cur()
	switch t.Kind {
	case core.TokenInt:
		p.advance()
		v, err := strconv.ParseInt(t.Lexeme, 10, 64)
		if err != nil {
			p.diags.Addf(core.KindSyntaxError, t.Span, "integer literal out of 64-bit range")
			return nil
		}
		return &ast.IntLit{Sp: t.Span, Value: v}
	case core.TokenString:
		p.advance()
		return &ast.StrLit{Sp: t.Span, Value: t.Lexeme}
	case core.TokenKeyword:
		switch t.Lexeme {
		case "true", "참":
			p.advance()
			return &ast.BoolLit{Sp: t.Span, Value: true}
		case "false", "거짓":
			p.advance()
			return &ast.BoolLit{Sp: t.Span, Value: false}
		case "move", "이동":
			p.advance()
			src := p.parsePath()
			if src == nil {
				return nil
			}
			return &ast.Move{Sp: t.Span, Src: src}
		case "copy", "복사":
			p.advance()
			src := p.parsePath()
			if src == nil {
				return nil
			}
			return &ast.CopyExpr{Sp: t.Span, Src: src}
		case "buffer":
			p.advance()
			if !p.expect(core.TokenPunct, "(") {
				return nil
			}
			size := p.parseExpr(surface)
			if size == nil || !p.expect(core.TokenPunct, ")") {
				return nil
			}
			return &ast.BufferCreate{Sp: t.Span, Size: size}
		case "borrow":
			return p.parseEnglishBorrow()
		}
	case core.TokenPunct:
		if t.Lexeme == "(" {
			p.advance()
			e := p.parseExpr(surface)
			if e == nil || !p.expect(core.TokenPunct, ")") {
				return nil
			}
			return e
		}
	case core.TokenIdent:
		if surface == core.SurfaceKorean {
			if k := p.tryKoreanExprForm(); k != nil {
				return k
			}
		}
		path := p.parsePath()
		if path == nil {
			return nil
		}
		if p.atLex(core.TokenPunct, "{") && len(path.Segs) == 1 {
			return p.parseStructLitBody(path, nil)
		}
		return path
	}
	p.errorf("expression")
	return nil
}

func (p *Parser) parsePath() *ast.Path {
	if !p.at(core.TokenIdent) {
		p.errorf("identifier")
		return nil
	}
	t := p.advance()
	path := &ast.Path{Sp: t.Span, Segs: []string{t.Lexeme}}
	for p.atLex(core.TokenPunct, ".") {
		p.advance()
		if !p.at(core.TokenIdent) {
			p.errorf("path segment")
			return nil
		}
		path.Segs = append(path.Segs, p.advance().Lexeme)
	}
	return path
}

// parseEnglishBorrow: borrow [mut] PATH [ '[' E .. E ']' ]
func (p *Parser) parseEnglishBorrow() ast.Expr {
	start := p.advance().Span // borrow
	mut := p.accept(core.TokenKeyword, "mut")
	target := p.parsePath()
	if target == nil {
		return nil
	}
	b := &ast.Borrow{Sp: start, Target: target, Mut: mut}
	if p.accept(core.TokenPunct, "[") {
		b.Start = p.parseExpr(core.SurfaceEnglish)
		if b.Start == nil || !p.expect(core.TokenPunct, "..") {
			return nil
		}
		b.End = p.parseExpr(core.SurfaceEnglish)
		if b.End == nil || !p.expect(core.TokenPunct, "]") {
			return nil
		}
	}
	return b
}

// tryKoreanExprForm recognizes the fixed Korean expression patterns that
// begin with the nouns 버퍼 and 뷰:
//
//	버퍼를 N바이트로 생성한다
//	뷰를 R의 A부터 B까지로 빌려온다(불변|가변)
//	뷰를 R로 빌려온다(불변|가변)
//
// Returns nil when the identifier is an ordinary binding reference.
func (p *Parser) tryKoreanExprForm() ast.Expr {
	t := p.cur()
	if t.Lexeme != "버퍼" && t.Lexeme != "뷰" {
		return nil
	}
	if p.peek().Kind != core.TokenParticle {
		return nil
	}
	verb := "생성한다"
	if t.Lexeme == "뷰" {
		verb = "빌려온다"
	}
	if !p.lineHasKeyword(verb) {
		return nil
	}
	mark := p.pos
	dmark := p.diags.Mark()
	p.advance() // 버퍼 / 뷰
	if !p.acceptParticle("를", "을") {
		p.pos = mark
		p.diags.Rollback(dmark)
		return nil
	}
	if t.Lexeme == "버퍼" {
		size := p.parseExpr(core.SurfaceKorean)
		if size == nil || !p.expect(core.TokenKeyword, "바이트") {
			return nil
		}
		if !p.acceptParticle("로", "으로") {
			p.errorf("particle 로")
			return nil
		}
		if !p.expect(core.TokenKeyword, "생성한다") {
			return nil
		}
		return &ast.BufferCreate{Sp: t.Span, Size: size}
	}
	target := p.parsePath()
	if target == nil {
		return nil
	}
	b := &ast.Borrow{Sp: t.Span, Target: target}
	if p.acceptParticle("의") {
		b.Start = p.parseExpr(core.SurfaceKorean)
		if b.Start == nil {
			return nil
		}
		if !p.acceptParticle("부터") {
			p.errorf("particle 부터")
			return nil
		}
		b.End = p.parseExpr(core.SurfaceKorean)
		if b.End == nil {
			return nil
		}
		if !p.acceptParticle("까지") {
			p.errorf("particle 까지")
			return nil
		}
	}
	if !p.acceptParticle("로", "으로") {
		p.errorf("particle 로")
		return nil
	}
	if !p.expect(core.TokenKeyword, "빌려온다") {
		return nil
	}
	if !p.expect(core.TokenPunct, "(") {
		return nil
	}
	switch {
	case p.at(core.TokenIdent) && p.cur().Lexeme == "불변":
		p.advance()
	case p.at(core.TokenIdent) && p.cur().Lexeme == "가변":
		p.advance()
		b.Mut = true
	default:
		p.errorf("'불변' or '가변'")
		return nil
	}
	if !p.expect(core.TokenPunct, ")") {
		return nil
	}
	return b
}

// ---- patterns ----

func (p *Parser) parsePattern() ast.Pattern {
	t := p.cur()
	switch t.Kind {
	case core.TokenInt:
		p.advance()
		v, _ := strconv.ParseInt(t.Lexeme, 10, 64)
		return &ast.IntPat{Sp: t.Span, Value: v}
	case core.TokenString:
		p.advance()
		return &ast.StrPat{Sp: t.Span, Value: t.Lexeme}
	case core.TokenKeyword:
		switch t.Lexeme {
		case "true", "참":
			p.advance()
			return &ast.BoolPat{Sp: t.Span, Value: true}
		case "false", "거짓":
			p.advance()
			return &ast.BoolPat{Sp: t.Span, Value: false}
		}
	case core.TokenIdent:
		if t.Lexeme == "_" {
			p.advance()
			return &ast.WildcardPat{Sp: t.Span}
		}
		p.advance()
		segs := []string{t.Lexeme}
		for p.atLex(core.TokenPunct, ".") {
			p.advance()
			if !p.at(core.TokenIdent) {
				p.errorf("variant name")
				return nil
			}
			segs = append(segs, p.advance().Lexeme)
		}
		switch {
		case p.atLex(core.TokenPunct, "("):
			p.advance()
			ep := &ast.EnumVariantPat{Sp: t.Span, Path: segs}
			if !p.accept(core.TokenPunct, ")") {
				for {
					sub := p.parsePattern()
					if sub == nil {
						return nil
					}
					ep.Elems = append(ep.Elems, sub)
					if p.accept(core.TokenPunct, ")") {
						break
					}
					if !p.expect(core.TokenPunct, ",") {
						return nil
					}
				}
			}
			return ep
		case p.atLex(core.TokenPunct, "{") && len(segs) == 1:
			p.advance()
			sp := &ast.StructPat{Sp: t.Span, Name: segs[0]}
			if p.accept(core.TokenPunct, "}") {
				return sp
			}
			for {
				if !p.at(core.TokenIdent) {
					p.errorf("field name")
					return nil
				}
				f := p.advance()
				if !p.expect(core.TokenPunct, ":") {
					return nil
				}
				sub := p.parsePattern()
				if sub == nil {
					return nil
				}
				sp.Fields = append(sp.Fields, ast.FieldPat{Name: f.Lexeme, Pat: sub, Sp: f.Span})
				if p.accept(core.TokenPunct, "}") {
					return sp
				}
				if !p.expect(core.TokenPunct, ",") {
					return nil
				}
			}
		case len(segs) > 1:
			return &ast.EnumVariantPat{Sp: t.Span, Path: segs}
		default:
			return &ast.BindPat{Sp: t.Span, Name: segs[0]}
		}
	}
	p.errorf("pattern")
	return nil
}

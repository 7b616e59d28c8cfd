package ast

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes the canonical English rendering of a module. The output is
// itself valid DAISY source; parsing it yields an equal tree, which the
// round-trip tests rely on.
func Fprint(w io.Writer, m *Module) {
	p := &printer{w: w}
	for _, imp := range m.Imports {
		p.printImport(imp)
	}
	for _, d := range m.Decls {
		p.printDecl(d)
	}
}

// PrintModule returns the canonical English rendering as a string.
func PrintModule(m *Module) string {
	var b strings.Builder
	Fprint(&b, m)
	return b.String()
}

type printer struct {
	w      io.Writer
	indent int
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

func (p *printer) printImport(imp *Import) {
	kw := "import"
	if imp.IsUse {
		kw = "use"
	}
	s := kw + " " + strings.Join(imp.Path, ".")
	if imp.Alias != "" {
		s += " as " + imp.Alias
	}
	p.line("%s", s)
}

func (p *printer) printDecl(d Decl) {
	switch d := d.(type) {
	case *FuncDecl:
		p.printFunc(d)
	case *StructDecl:
		p.line("struct %s%s:", d.Name, typeParams(d.TypeParams))
		p.indent++
		for _, f := range d.Fields {
			p.line("%s: %s", f.Name, f.Type.TypeString())
		}
		p.indent--
	case *EnumDecl:
		p.line("enum %s%s:", d.Name, typeParams(d.TypeParams))
		p.indent++
		for _, v := range d.Variants {
			if len(v.Elems) == 0 {
				p.line("%s", v.Name)
				continue
			}
			parts := make([]string, len(v.Elems))
			for i, e := range v.Elems {
				parts[i] = e.TypeString()
			}
			p.line("%s(%s)", v.Name, strings.Join(parts, ", "))
		}
		p.indent--
	case *TraitDecl:
		p.line("trait %s:", d.Name)
		p.indent++
		for _, m := range d.Methods {
			p.line("fn %s(%s)%s", m.Name, params(m.Params), retSuffix(m.Ret))
		}
		p.indent--
	case *ImplDecl:
		if d.Trait != "" {
			p.line("impl %s for %s:", d.Trait, d.For.TypeString())
		} else {
			p.line("impl %s:", d.For.TypeString())
		}
		p.indent++
		for _, m := range d.Methods {
			p.printFunc(m)
		}
		p.indent--
	case *Import:
		p.printImport(d)
	}
}

func (p *printer) printFunc(f *FuncDecl) {
	head := "fn"
	if f.Public {
		head = "pub fn"
	}
	p.line("%s %s%s(%s)%s:", head, f.Name, typeParams(f.TypeParams), params(f.Params), retSuffix(f.Ret))
	p.printBlock(f.Body)
}

func (p *printer) printBlock(b *Block) {
	p.indent++
	for _, s := range b.Stmts {
		p.printStmt(s)
	}
	p.indent--
}

func (p *printer) printStmt(s Stmt) {
	switch s := s.(type) {
	case *Let:
		if s.Type != nil {
			p.line("let %s: %s = %s", s.Name, s.Type.TypeString(), exprString(s.Init, 0))
		} else {
			p.line("let %s = %s", s.Name, exprString(s.Init, 0))
		}
	case *AddAssign:
		p.line("%s += %s", s.Name, exprString(s.Value, 0))
	case *If:
		p.line("if %s:", exprString(s.Cond, 0))
		p.printBlock(s.Then)
		for _, e := range s.Elifs {
			p.line("elif %s:", exprString(e.Cond, 0))
			p.printBlock(e.Body)
		}
		if s.Else != nil {
			p.line("else:")
			p.printBlock(s.Else)
		}
	case *Repeat:
		p.line("repeat %s:", exprString(s.Count, 0))
		p.printBlock(s.Body)
	case *Match:
		p.line("match %s:", exprString(s.Scrutinee, 0))
		p.indent++
		for _, a := range s.Arms {
			if a.Guard != nil {
				p.line("case %s if %s:", patString(a.Pat), exprString(a.Guard, 0))
			} else {
				p.line("case %s:", patString(a.Pat))
			}
			p.printBlock(a.Body)
		}
		p.indent--
	case *Return:
		if s.Value != nil {
			p.line("return %s", exprString(s.Value, 0))
		} else {
			p.line("return")
		}
	case *Print:
		p.line("print %s", exprString(s.Value, 0))
	case *Release:
		p.line("release %s", s.Name)
	case *Unsafe:
		p.line("unsafe %q:", s.Reason)
		p.printBlock(s.Body)
	case *ExprStmt:
		p.line("%s", exprString(s.E, 0))
	}
}

func typeParams(tps []TypeParam) string {
	if len(tps) == 0 {
		return ""
	}
	parts := make([]string, len(tps))
	for i, tp := range tps {
		s := tp.Name
		if len(tp.Bounds) > 0 {
			s += ": " + strings.Join(tp.Bounds, " + ")
		}
		parts[i] = s
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

func params(ps []Param) string {
	parts := make([]string, len(ps))
	for i, pr := range ps {
		parts[i] = pr.Name + ": " + pr.Type.TypeString()
	}
	return strings.Join(parts, ", ")
}

func retSuffix(t TypeExpr) string {
	if t == nil {
		return ""
	}
	return " -> " + t.TypeString()
}

// Binding strengths for parenthesization. Higher binds tighter.
const (
	precOr = iota + 1
	precAnd
	precCmp
	precAdd
	precMul
	precUnary
)

func binPrec(op string) int {
	switch op {
	case "or":
		return precOr
	case "and":
		return precAnd
	case "==", "!=", "<", "<=", ">", ">=":
		return precCmp
	case "+", "-":
		return precAdd
	case "*", "/", "%":
		return precMul
	}
	return precUnary
}

func exprString(e Expr, min int) string {
	switch e := e.(type) {
	case *IntLit:
		return fmt.Sprintf("%d", e.Value)
	case *StrLit:
		return fmt.Sprintf("%q", e.Value)
	case *BoolLit:
		if e.Value {
			return "true"
		}
		return "false"
	case *Path:
		return strings.Join(e.Segs, ".")
	case *Call:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = exprString(a, 0)
		}
		return exprString(e.Callee, precUnary) + typeArgs(e.TypeArgs) + "(" + strings.Join(args, ", ") + ")"
	case *Binary:
		return infix(e.Op, e.L, e.R, min)
	case *Logical:
		return infix(e.Op, e.L, e.R, min)
	case *Unary:
		s := e.Op + " " + exprString(e.X, precUnary)
		if e.Op == "-" {
			s = "-" + exprString(e.X, precUnary)
		}
		if min > precUnary {
			return "(" + s + ")"
		}
		return s
	case *Move:
		return "move " + exprString(e.Src, 0)
	case *CopyExpr:
		return "copy " + exprString(e.Src, 0)
	case *BufferCreate:
		return "buffer(" + exprString(e.Size, 0) + ")"
	case *Borrow:
		s := "borrow "
		if e.Mut {
			s += "mut "
		}
		s += exprString(e.Target, 0)
		if e.Start != nil {
			s += "[" + exprString(e.Start, 0) + ".." + exprString(e.End, 0) + "]"
		}
		return s
	case *TryExpr:
		return "try " + exprString(e.Inner, precUnary)
	case *StructLit:
		fields := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = f.Name + ": " + exprString(f.Value, 0)
		}
		return exprString(e.Name, 0) + typeArgs(e.TypeArgs) + "{" + strings.Join(fields, ", ") + "}"
	}
	return "<?>"
}

func infix(op string, l, r Expr, min int) string {
	prec := binPrec(op)
	s := exprString(l, prec) + " " + op + " " + exprString(r, prec+1)
	if prec < min {
		return "(" + s + ")"
	}
	return s
}

func typeArgs(args []TypeExpr) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.TypeString()
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

func patString(p Pattern) string {
	switch p := p.(type) {
	case *WildcardPat:
		return "_"
	case *BindPat:
		return p.Name
	case *IntPat:
		return fmt.Sprintf("%d", p.Value)
	case *StrPat:
		return fmt.Sprintf("%q", p.Value)
	case *BoolPat:
		if p.Value {
			return "true"
		}
		return "false"
	case *EnumVariantPat:
		s := strings.Join(p.Path, ".")
		if len(p.Elems) == 0 {
			return s
		}
		parts := make([]string, len(p.Elems))
		for i, e := range p.Elems {
			parts[i] = patString(e)
		}
		return s + "(" + strings.Join(parts, ", ") + ")"
	case *StructPat:
		parts := make([]string, len(p.Fields))
		for i, f := range p.Fields {
			parts[i] = f.Name + ": " + patString(f.Pat)
		}
		return p.Name + "{" + strings.Join(parts, ", ") + "}"
	}
	return "_"
}

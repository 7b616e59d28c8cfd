package checker

import (
	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
)

// CallInfo is the resolution of one call site, consumed by IR lowering.
// Exactly one of Builtin, Func, Variant or Trait is set; a spawn call also
// sets Spawn to its target, alongside Builtin "spawn".
type CallInfo struct {
	Builtin  string
	Func     *FuncInfo
	Enum     *EnumInfo
	Variant  *VariantInfo
	Trait    string // trait method dispatch
	Method   string
	Spawn    *FuncInfo
	Subst    Subst
	EnumArgs []*Type // instantiation of the variant's enum
}

// Info carries checker results into the borrow checker and lowering.
type Info struct {
	Types    map[ast.Expr]*Type
	Calls    map[*ast.Call]*CallInfo
	Lits     map[*ast.StructLit]*Type
	Binds    map[*ast.BindPat]*Type
	FuncRets map[*ast.FuncDecl]*Type
}

func newInfo() *Info {
	return &Info{
		Types:    map[ast.Expr]*Type{},
		Calls:    map[*ast.Call]*CallInfo{},
		Lits:     map[*ast.StructLit]*Type{},
		Binds:    map[*ast.BindPat]*Type{},
		FuncRets: map[*ast.FuncDecl]*Type{},
	}
}

// Program is the fully checked module set in dependency order.
type Program struct {
	Modules []*ast.Module
	Envs    map[string]*Env
	Info    *Info
}

// Check resolves and type-checks modules, which must be in dependency order
// (imports first). Errors accumulate in diags; a module with errors does not
// stop checking of unrelated modules.
func Check(mods []*ast.Module, diags *core.Diagnostics) *Program {
	prog := &Program{Modules: mods, Envs: map[string]*Env{}, Info: newInfo()}
	for _, m := range mods {
		env := collect(m, prog, diags)
		prog.Envs[m.Name] = env
	}
	for _, m := range mods {
		c := &checker{env: prog.Envs[m.Name], info: prog.Info, diags: diags}
		c.checkModule(m)
	}
	return prog
}

// collect builds the append-only symbol table for one module, linking
// imported environments.
func collect(m *ast.Module, prog *Program, diags *core.Diagnostics) *Env {
	env := NewEnv(m.Name)
	for _, imp := range m.Imports {
		dep := prog.Envs[imp.Path[len(imp.Path)-1]]
		if dep == nil {
			continue // resolver already diagnosed missing modules
		}
		if imp.IsUse {
			// use: splice public symbols into scope
			for name, f := range dep.Funcs {
				if f.Public {
					env.Funcs[name] = f
				}
			}
			for name, s := range dep.Structs {
				env.Structs[name] = s
			}
			for name, e := range dep.Enums {
				env.Enums[name] = e
			}
			for name, t := range dep.Traits {
				env.Traits[name] = t
			}
			env.Impls = append(env.Impls, dep.Impls...)
			continue
		}
		alias := imp.Alias
		if alias == "" {
			alias = imp.Path[len(imp.Path)-1]
		}
		env.Aliases[alias] = dep
	}

	// Two passes: types first so signatures can reference any local type.
	for _, d := range m.Decls {
		switch d := d.(type) {
		case *ast.StructDecl:
			si := &StructInfo{Name: d.Name, Module: m.Name, Decl: d}
			for _, tp := range d.TypeParams {
				si.TypeParams = append(si.TypeParams, tp.Name)
			}
			env.Structs[d.Name] = si
		case *ast.EnumDecl:
			ei := &EnumInfo{Name: d.Name, Module: m.Name, Decl: d}
			for _, tp := range d.TypeParams {
				ei.TypeParams = append(ei.TypeParams, tp.Name)
			}
			env.Enums[d.Name] = ei
		case *ast.TraitDecl:
			env.Traits[d.Name] = &TraitInfo{Name: d.Name, Module: m.Name, Methods: d.Methods}
		}
	}
	for _, d := range m.Decls {
		switch d := d.(type) {
		case *ast.StructDecl:
			si := env.Structs[d.Name]
			tps := paramSet(d.TypeParams)
			for _, f := range d.Fields {
				ft := env.resolveTypeExpr(f.Type, tps, diags)
				if ft == nil {
					ft = TUnit
				}
				si.Fields = append(si.Fields, FieldInfo{Name: f.Name, Type: ft})
			}
		case *ast.EnumDecl:
			ei := env.Enums[d.Name]
			tps := paramSet(d.TypeParams)
			for i, v := range d.Variants {
				vi := VariantInfo{Name: v.Name, Tag: i}
				for _, el := range v.Elems {
					et := env.resolveTypeExpr(el, tps, diags)
					if et == nil {
						et = TUnit
					}
					vi.Elems = append(vi.Elems, et)
				}
				ei.Variants = append(ei.Variants, vi)
			}
		case *ast.FuncDecl:
			env.Funcs[d.Name] = funcInfo(env, m.Name, d, diags)
		case *ast.ImplDecl:
			im := &ImplInfo{Trait: d.Trait, Methods: map[string]*FuncInfo{}, Span: d.Span()}
			im.For = env.resolveTypeExpr(d.For, map[string]bool{}, diags)
			if im.For == nil {
				continue
			}
			for _, f := range d.Methods {
				fi := funcInfo(env, m.Name, f, diags)
				// impl methods get a type-qualified symbol so two impls of
				// one trait never collide in the output; they are linkable
				// across modules as part of the trait surface
				fi.Name = f.Name + "__" + typeIdent(im.For)
				fi.Public = true
				im.Methods[f.Name] = fi
			}
			env.Impls = append(env.Impls, im)
		}
	}
	return env
}

// typeIdent renders a type as a symbol-safe suffix.
func typeIdent(t *Type) string {
	out := []rune(t.String())
	for i, r := range out {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			out[i] = '_'
		}
	}
	return string(out)
}

func paramSet(tps []ast.TypeParam) map[string]bool {
	s := map[string]bool{}
	for _, tp := range tps {
		s[tp.Name] = true
	}
	return s
}

func funcInfo(env *Env, module string, d *ast.FuncDecl, diags *core.Diagnostics) *FuncInfo {
	fi := &FuncInfo{Name: d.Name, Module: module, Public: d.Public, TypeParams: d.TypeParams, Decl: d}
	tps := paramSet(d.TypeParams)
	for _, p := range d.Params {
		pt := env.resolveTypeExpr(p.Type, tps, diags)
		if pt == nil {
			pt = TUnit
		}
		fi.Params = append(fi.Params, pt)
		fi.ParamNames = append(fi.ParamNames, p.Name)
	}
	if d.Ret != nil {
		fi.Ret = env.resolveTypeExpr(d.Ret, tps, diags)
	}
	return fi
}

// ---- per-function checking ----

type checker struct {
	env    *Env
	info   *Info
	diags  *core.Diagnostics
	fn     *FuncInfo
	tps    map[string]bool
	bounds map[string][]string // type param -> trait bounds in scope
	scopes []map[string]*Type
}

func (c *checker) checkModule(m *ast.Module) {
	for _, d := range m.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			c.checkFunc(c.env.Funcs[d.Name])
		case *ast.ImplDecl:
			for _, im := range c.env.Impls {
				if im.Span == d.Span() {
					for _, fi := range im.Methods {
						c.checkFunc(fi)
					}
				}
			}
		}
	}
}

func (c *checker) checkFunc(fi *FuncInfo) {
	if fi == nil || fi.Decl == nil || fi.Decl.Body == nil {
		return
	}
	c.fn = fi
	c.tps = paramSet(fi.TypeParams)
	c.bounds = map[string][]string{}
	for _, tp := range fi.TypeParams {
		c.bounds[tp.Name] = tp.Bounds
	}
	c.scopes = []map[string]*Type{{}}
	for i, name := range fi.ParamNames {
		c.bind(name, fi.Params[i])
	}
	c.checkBlock(fi.Decl.Body)
	if fi.Ret == nil {
		fi.Ret = TUnit // no return statement fixed it: unit function
	}
	c.info.FuncRets[fi.Decl] = fi.Ret
}

func (c *checker) push() { c.scopes = append(c.scopes, map[string]*Type{}) }
func (c *checker) pop()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *checker) bind(n string, t *Type) { c.scopes[len(c.scopes)-1][n] = t }

func (c *checker) lookup(n string) *Type {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if t, ok := c.scopes[i][n]; ok {
			return t
		}
	}
	return nil
}

func (c *checker) checkBlock(b *ast.Block) {
	if b == nil {
		return
	}
	c.push()
	for _, s := range b.Stmts {
		c.checkStmt(s)
	}
	c.pop()
}

func (c *checker) checkStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Let:
		var t *Type
		if s.Type != nil {
			t = c.env.resolveTypeExpr(s.Type, c.tps, c.diags)
			if t == nil {
				t = TUnit
			}
			c.checkExpr(s.Init, t)
		} else {
			t = c.checkExpr(s.Init, nil)
		}
		if t == nil {
			t = TUnit
		}
		c.bind(s.Name, t)
	case *ast.AddAssign:
		t := c.lookup(s.Name)
		if t == nil {
			c.diags.Addf(core.KindUnknownSymbol, s.Span(), "unknown binding %s", s.Name)
			return
		}
		if !t.Equal(TInt) {
			c.diags.Addf(core.KindTypeMismatch, s.Span(), "+= requires int target, %s is %s", s.Name, t)
		}
		c.checkExpr(s.Value, TInt)
	case *ast.If:
		c.checkExpr(s.Cond, TBool)
		c.checkBlock(s.Then)
		for _, e := range s.Elifs {
			c.checkExpr(e.Cond, TBool)
			c.checkBlock(e.Body)
		}
		c.checkBlock(s.Else)
	case *ast.Repeat:
		c.checkExpr(s.Count, TInt)
		c.checkBlock(s.Body)
	case *ast.Return:
		if s.Value == nil {
			if c.fn.Ret != nil && !c.fn.Ret.Equal(TUnit) {
				c.diags.Addf(core.KindTypeMismatch, s.Span(), "bare return in function returning %s", c.fn.Ret)
			} else if c.fn.Ret == nil {
				c.fn.Ret = TUnit
			}
			return
		}
		if c.fn.Ret == nil {
			// Undeclared return type: fixed by the first returned value.
			c.fn.Ret = c.checkExpr(s.Value, nil)
			return
		}
		c.checkExpr(s.Value, c.fn.Ret)
	case *ast.Print:
		t := c.checkExpr(s.Value, nil)
		if t != nil {
			switch t.Kind {
			case KInt, KBool, KStr:
			default:
				c.diags.Addf(core.KindTypeMismatch, s.Span(), "print takes int, bool or str, got %s", t)
			}
		}
	case *ast.Release:
		t := c.lookup(s.Name)
		switch {
		case t == nil:
			c.diags.Addf(core.KindUnknownSymbol, s.Span(), "unknown binding %s", s.Name)
		case t.Kind != KBuffer && t.Kind != KTensor && t.Kind != KChannel && t.Kind != KVec:
			c.diags.Addf(core.KindTypeMismatch, s.Span(), "release target %s is %s, not an owned resource", s.Name, t)
		}
	case *ast.Match:
		c.checkMatch(s)
	case *ast.Unsafe:
		c.checkBlock(s.Body)
	case *ast.ExprStmt:
		c.checkExpr(s.E, nil)
	}
}

// expectType records a mismatch unless actual fits expected.
func (c *checker) expectType(span core.Span, actual, expected *Type) *Type {
	if actual == nil || expected == nil {
		return actual
	}
	if !actual.Equal(expected) {
		c.diags.Addf(core.KindTypeMismatch, span, "expected %s, got %s", expected, actual)
	}
	return actual
}

func (c *checker) checkExpr(e ast.Expr, expected *Type) *Type {
	t := c.synthExpr(e, expected)
	if t != nil && expected != nil {
		c.expectType(e.Span(), t, expected)
	}
	if t != nil {
		c.info.Types[e] = t
	}
	return t
}

func (c *checker) synthExpr(e ast.Expr, expected *Type) *Type {
	switch e := e.(type) {
	case *ast.IntLit:
		return TInt
	case *ast.StrLit:
		return TStr
	case *ast.BoolLit:
		return TBool
	case *ast.Path:
		return c.synthPath(e)
	case *ast.Call:
		return c.checkCall(e, expected)
	case *ast.Binary:
		return c.checkBinary(e)
	case *ast.Logical:
		c.checkExpr(e.L, TBool)
		c.checkExpr(e.R, TBool)
		return TBool
	case *ast.Unary:
		if e.Op == "not" {
			c.checkExpr(e.X, TBool)
			return TBool
		}
		c.checkExpr(e.X, TInt)
		return TInt
	case *ast.Move:
		return c.checkExpr(e.Src, nil)
	case *ast.CopyExpr:
		t := c.checkExpr(e.Src, nil)
		if t != nil && !t.HasParam() && !c.env.IsCopy(t) {
			c.diags.Addf(core.KindTypeMismatch, e.Span(), "copy of non-Copy type %s", t)
		}
		return t
	case *ast.BufferCreate:
		c.checkExpr(e.Size, TInt)
		return TBuffer
	case *ast.Borrow:
		t := c.checkExpr(e.Target, nil)
		if t != nil && t.Kind != KBuffer {
			c.diags.Addf(core.KindTypeMismatch, e.Span(), "borrow target is %s, not buffer", t)
		}
		if e.Start != nil {
			c.checkExpr(e.Start, TInt)
			c.checkExpr(e.End, TInt)
		}
		return TView
	case *ast.TryExpr:
		return c.checkTry(e)
	case *ast.StructLit:
		return c.checkStructLit(e)
	}
	c.diags.Addf(core.KindInternalError, e.Span(), "unhandled expression form")
	return nil
}

func (c *checker) synthPath(p *ast.Path) *Type {
	if name := p.Ident(); name != "" {
		if t := c.lookup(name); t != nil {
			return t
		}
		c.diags.Addf(core.KindUnknownSymbol, p.Span(), "unknown symbol %s", name)
		return nil
	}
	// Enum.Variant as a value: a nullary constructor.
	if len(p.Segs) == 2 {
		if ei, ok := c.env.Enums[p.Segs[0]]; ok {
			if vi := ei.Variant(p.Segs[1]); vi != nil && len(vi.Elems) == 0 {
				if len(ei.TypeParams) > 0 {
					c.diags.Addf(core.KindGenericArityMismatch, p.Span(),
						"%s needs explicit type arguments here", ei.Name)
					return nil
				}
				return &Type{Kind: KEnum, Name: ei.Name}
			}
		}
	}
	c.diags.Addf(core.KindUnknownSymbol, p.Span(), "unknown symbol %s", p.Segs[0])
	return nil
}

func (c *checker) checkBinary(e *ast.Binary) *Type {
	switch e.Op {
	case "+", "-", "*", "/", "%":
		c.checkExpr(e.L, TInt)
		c.checkExpr(e.R, TInt)
		return TInt
	case "<", "<=", ">", ">=":
		c.checkExpr(e.L, TInt)
		c.checkExpr(e.R, TInt)
		return TBool
	case "==", "!=":
		lt := c.checkExpr(e.L, nil)
		if lt != nil {
			switch lt.Kind {
			case KInt, KBool, KStr:
				c.checkExpr(e.R, lt)
			default:
				c.diags.Addf(core.KindTypeMismatch, e.Span(), "%s is not comparable with %s", lt, e.Op)
				c.checkExpr(e.R, nil)
			}
		}
		return TBool
	}
	c.diags.Addf(core.KindInternalError, e.Span(), "unknown operator %s", e.Op)
	return nil
}

// checkTry types `try E`: E must be Result or Option and the enclosing
// function must return the same error shape.
func (c *checker) checkTry(e *ast.TryExpr) *Type {
	t := c.checkExpr(e.Inner, nil)
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KResult:
		if c.fn.Ret == nil || c.fn.Ret.Kind != KResult {
			c.diags.Addf(core.KindTypeMismatch, e.Span(),
				"try on Result requires the function to return Result, it returns %s", retName(c.fn.Ret))
		} else if !c.fn.Ret.Args[1].Equal(t.Args[1]) {
			c.diags.Addf(core.KindTypeMismatch, e.Span(),
				"try error type %s does not match function error type %s", t.Args[1], c.fn.Ret.Args[1])
		}
		return t.Args[0]
	case KOption:
		if c.fn.Ret == nil || c.fn.Ret.Kind != KOption {
			c.diags.Addf(core.KindTypeMismatch, e.Span(),
				"try on Option requires the function to return Option, it returns %s", retName(c.fn.Ret))
		}
		return t.Args[0]
	}
	c.diags.Addf(core.KindTypeMismatch, e.Span(), "try operand must be Result or Option, got %s", t)
	return nil
}

func retName(t *Type) string {
	if t == nil {
		return "unit"
	}
	return t.String()
}

func (c *checker) checkStructLit(e *ast.StructLit) *Type {
	name := e.Name.Ident()
	si, ok := c.env.Structs[name]
	if !ok {
		c.diags.Addf(core.KindUnknownSymbol, e.Span(), "unknown struct %s", name)
		return nil
	}
	var args []*Type
	for _, ta := range e.TypeArgs {
		at := c.env.resolveTypeExpr(ta, c.tps, c.diags)
		if at == nil {
			return nil
		}
		args = append(args, at)
	}
	sub := Subst{}
	if len(args) > 0 {
		if len(args) != len(si.TypeParams) {
			c.diags.Addf(core.KindGenericArityMismatch, e.Span(),
				"%s takes %d type argument(s), got %d", name, len(si.TypeParams), len(args))
			return nil
		}
		sub = bindParams(si.TypeParams, args)
	}
	seen := map[string]bool{}
	for _, f := range e.Fields {
		var ft *Type
		for _, fi := range si.Fields {
			if fi.Name == f.Name {
				ft = fi.Type
			}
		}
		if ft == nil {
			c.diags.Addf(core.KindUnknownSymbol, f.Sp, "struct %s has no field %s", name, f.Name)
			continue
		}
		seen[f.Name] = true
		if len(si.TypeParams) > 0 && len(args) == 0 {
			// infer from field values
			vt := c.checkExpr(f.Value, nil)
			if vt != nil && !unify(ft, vt, sub) {
				c.diags.Addf(core.KindTypeMismatch, f.Sp, "field %s expects %s, got %s", f.Name, ft, vt)
			}
		} else {
			c.checkExpr(f.Value, sub.Apply(ft))
		}
	}
	for _, fi := range si.Fields {
		if !seen[fi.Name] {
			c.diags.Addf(core.KindTypeMismatch, e.Span(), "missing field %s in %s literal", fi.Name, name)
		}
	}
	if len(si.TypeParams) > 0 && len(args) == 0 {
		for _, tp := range si.TypeParams {
			if _, ok := sub[tp]; !ok {
				c.diags.Addf(core.KindGenericArityMismatch, e.Span(),
					"cannot infer type parameter %s of %s", tp, name)
				return nil
			}
			args = append(args, sub[tp])
		}
	}
	t := &Type{Kind: KStruct, Name: name, Args: args}
	c.info.Lits[e] = t
	return t
}

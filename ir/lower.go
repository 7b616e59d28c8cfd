package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/borrow"
	"github.com/ZAPPYcore/DAISY/checker"
	"github.com/ZAPPYcore/DAISY/core"
)

// Lower translates one checked module into IR. Generic functions are
// monomorphized on demand: each distinct substitution becomes its own
// function, shared through a (symbol, substitution) cache.
func Lower(prog *checker.Program, own *borrow.Result, m *ast.Module, diags *core.Diagnostics) *Module {
	lo := &lowerer{
		prog:  prog,
		env:   prog.Envs[m.Name],
		info:  prog.Info,
		own:   own,
		diags: diags,
		mod:   &Module{Name: m.Name},
		mono:  map[string]*Func{},
	}
	for _, imp := range m.Imports {
		lo.mod.Imports = append(lo.mod.Imports, imp.Path[len(imp.Path)-1])
	}
	sort.Strings(lo.mod.Imports)
	for _, d := range m.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			if fi := lo.env.Funcs[d.Name]; fi != nil && len(fi.TypeParams) == 0 {
				lo.instantiate(fi, checker.Subst{})
			}
		case *ast.ImplDecl:
			for _, f := range d.Methods {
				if fi := lo.implMethod(d, f.Name); fi != nil {
					lo.instantiate(fi, checker.Subst{})
				}
			}
		}
	}
	return lo.mod
}

type lowerer struct {
	prog  *checker.Program
	env   *checker.Env
	info  *checker.Info
	own   *borrow.Result
	diags *core.Diagnostics
	mod   *Module
	mono  map[string]*Func
}

func (lo *lowerer) implMethod(d *ast.ImplDecl, name string) *checker.FuncInfo {
	for _, im := range lo.env.Impls {
		if im.Span == d.Span() {
			return im.Methods[name]
		}
	}
	return nil
}

// mangle builds the IR symbol for a function instance.
func mangle(fi *checker.FuncInfo, sub checker.Subst) string {
	if len(fi.TypeParams) == 0 {
		return fi.Name
	}
	order := make([]string, len(fi.TypeParams))
	for i, tp := range fi.TypeParams {
		order[i] = tp.Name
	}
	key := sub.Key(order)
	r := strings.NewReplacer("<", "_", ">", "", ",", "_", " ", "", "-", "_")
	return fi.Name + "__" + r.Replace(key)
}

// symbolFor resolves the call symbol for a function instance. Non-generic
// functions from other modules are declared by their module's header and
// are never re-lowered here; generics instantiate locally as private
// copies, and local functions lower through the cache.
func (lo *lowerer) symbolFor(fi *checker.FuncInfo, sub checker.Subst) string {
	if len(fi.TypeParams) == 0 && fi.Module != lo.mod.Name {
		return fi.Name
	}
	return lo.instantiate(fi, sub).Name
}

// instantiate lowers one (function, substitution) pair, reusing the cache.
func (lo *lowerer) instantiate(fi *checker.FuncInfo, sub checker.Subst) *Func {
	name := mangle(fi, sub)
	if f, ok := lo.mono[name]; ok {
		return f
	}
	f := &Func{
		Name:   name,
		Source: fi.Name,
		Public: fi.Public && len(fi.TypeParams) == 0,
		Ret:    sub.Apply(fi.Ret),
	}
	lo.mono[name] = f
	lo.mod.Funcs = append(lo.mod.Funcs, f)
	fl := &fnLowerer{lo: lo, fn: f, fi: fi, sub: sub, nextID: 0}
	fl.lower()
	return f
}

// fnLowerer lowers a single function body.
type fnLowerer struct {
	lo     *lowerer
	fn     *Func
	fi     *checker.FuncInfo
	sub    checker.Subst
	nextID int
	nextBl int
	cur    *Block
	scopes []map[string]string // source name -> local slot
	locals map[string]bool
	unsafe bool
}

func (fl *fnLowerer) lower() {
	entry := fl.newBlock("entry")
	fl.cur = entry
	fl.scopes = []map[string]string{{}}
	fl.locals = map[string]bool{}
	for i, pname := range fl.fi.ParamNames {
		t := fl.sub.Apply(fl.fi.Params[i])
		fl.fn.Params = append(fl.fn.Params, ParamSlot{Name: pname, Type: t})
		fl.scopes[0][pname] = pname
		fl.locals[pname] = true
	}
	fl.lowerBlock(fl.fi.Decl.Body)
	if fl.cur.Term == nil {
		ret := fl.typ(fl.fi.Ret)
		if ret == nil || ret.Kind == checker.KUnit {
			fl.cur.Term = &Terminator{Op: "ret", Val: -1}
		} else {
			z := fl.emit(&Value{Op: "zero.value", Type: ret})
			fl.cur.Term = &Terminator{Op: "ret", Val: z}
		}
	}
}

func (fl *fnLowerer) typ(t *checker.Type) *checker.Type { return fl.sub.Apply(t) }

func (fl *fnLowerer) typeOf(e ast.Expr) *checker.Type {
	return fl.typ(fl.lo.info.Types[e])
}

func (fl *fnLowerer) newBlock(hint string) *Block {
	b := &Block{Label: fmt.Sprintf("%s%d", hint, fl.nextBl)}
	fl.nextBl++
	fl.fn.Blocks = append(fl.fn.Blocks, b)
	return b
}

func (fl *fnLowerer) emit(v *Value) int {
	v.ID = fl.nextID
	v.Unsafe = fl.unsafe
	fl.nextID++
	fl.cur.Values = append(fl.cur.Values, v)
	return v.ID
}

func (fl *fnLowerer) br(target *Block) {
	if fl.cur.Term == nil {
		fl.cur.Term = &Terminator{Op: "br", Targets: []string{target.Label}}
	}
}

func (fl *fnLowerer) condbr(cond int, t, f *Block) {
	if fl.cur.Term == nil {
		fl.cur.Term = &Terminator{Op: "condbr", Cond: cond, Targets: []string{t.Label, f.Label}}
	}
}

// slot resolves a source binding to its local slot name.
func (fl *fnLowerer) slot(name string) string {
	for i := len(fl.scopes) - 1; i >= 0; i-- {
		if s, ok := fl.scopes[i][name]; ok {
			return s
		}
	}
	return name
}

// declare introduces a local slot, renaming on shadowing so every C local
// is unique within the function.
func (fl *fnLowerer) declare(name string, t *checker.Type) string {
	slot := name
	for i := 1; fl.locals[slot]; i++ {
		slot = fmt.Sprintf("%s_%d", name, i)
	}
	fl.locals[slot] = true
	fl.scopes[len(fl.scopes)-1][name] = slot
	fl.fn.Locals = append(fl.fn.Locals, ParamSlot{Name: slot, Type: t})
	return slot
}

// localType looks up a slot's declared type.
func (fl *fnLowerer) localType(slot string) *checker.Type {
	for _, l := range fl.fn.Locals {
		if l.Name == slot {
			return l.Type
		}
	}
	for _, p := range fl.fn.Params {
		if p.Name == slot {
			return p.Type
		}
	}
	return checker.TBuffer
}

// releaseOp picks the runtime release op for an owned resource type.
func releaseOp(t *checker.Type) string {
	switch t.Kind {
	case checker.KTensor:
		return "tensor.release"
	case checker.KChannel:
		return "channel.release"
	case checker.KVec:
		return "vec.release"
	}
	return "buffer.release"
}

func (fl *fnLowerer) localGet(name string, t *checker.Type) int {
	return fl.emit(&Value{Op: "local.get", Sym: fl.slot(name), Type: t})
}

func (fl *fnLowerer) localSet(slot string, val int) {
	fl.emit(&Value{Op: "local.set", Sym: slot, Args: []int{val}, Type: checker.TUnit})
}

func (fl *fnLowerer) lowerBlock(b *ast.Block) {
	if b == nil {
		return
	}
	fl.scopes = append(fl.scopes, map[string]string{})
	for _, s := range b.Stmts {
		fl.lowerStmt(s)
		if fl.cur.Term != nil {
			break // unreachable code after return is dropped
		}
	}
	if fl.cur.Term == nil {
		fl.releaseNames(fl.lo.own.BlockReleases[b])
	}
	fl.scopes = fl.scopes[:len(fl.scopes)-1]
}

func (fl *fnLowerer) releaseNames(names []string) {
	for _, n := range names {
		v := fl.localGet(n, checker.TBuffer)
		fl.emit(&Value{Op: "buffer.release", Args: []int{v}, Type: checker.TUnit})
	}
}

func (fl *fnLowerer) lowerStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Let:
		v := fl.lowerExpr(s.Init)
		slot := fl.declare(s.Name, fl.typeOf(s.Init))
		fl.localSet(slot, v)
	case *ast.AddAssign:
		cur := fl.localGet(s.Name, checker.TInt)
		add := fl.lowerExpr(s.Value)
		sum := fl.emit(&Value{Op: "add", Args: []int{cur, add}, Type: checker.TInt})
		fl.localSet(fl.slot(s.Name), sum)
	case *ast.If:
		fl.lowerIf(s)
	case *ast.Repeat:
		fl.lowerRepeat(s)
	case *ast.Return:
		fl.releaseNames(fl.lo.own.ReturnReleases[s])
		if s.Value == nil {
			fl.cur.Term = &Terminator{Op: "ret", Val: -1}
			return
		}
		v := fl.lowerExpr(s.Value)
		fl.cur.Term = &Terminator{Op: "ret", Val: v}
	case *ast.Print:
		v := fl.lowerExpr(s.Value)
		t := fl.typeOf(s.Value)
		op := "print.int"
		switch t.Kind {
		case checker.KStr:
			op = "print.str"
		case checker.KBool:
			op = "print.bool"
		}
		fl.emit(&Value{Op: op, Args: []int{v}, Type: checker.TUnit})
	case *ast.Release:
		t := fl.localType(fl.slot(s.Name))
		v := fl.localGet(s.Name, t)
		fl.emit(&Value{Op: releaseOp(t), Args: []int{v}, Type: checker.TUnit,
			Waived: fl.lo.own.Waived[s]})
		// The binding is dead past this point; lowering relies on the borrow
		// checker having rejected any later read.
	case *ast.Match:
		fl.lowerMatch(s)
	case *ast.Unsafe:
		was := fl.unsafe
		fl.unsafe = true
		fl.fn.Unsafe = true
		fl.lowerBlock(s.Body)
		fl.unsafe = was
	case *ast.ExprStmt:
		fl.lowerExpr(s.E)
	}
}

func (fl *fnLowerer) lowerIf(s *ast.If) {
	join := &Block{Label: fmt.Sprintf("join%d", fl.nextBl)}
	fl.nextBl++

	conds := []ast.Expr{s.Cond}
	bodies := []*ast.Block{s.Then}
	for _, e := range s.Elifs {
		conds = append(conds, e.Cond)
		bodies = append(bodies, e.Body)
	}
	for i := range conds {
		c := fl.lowerExpr(conds[i])
		thenB := fl.newBlock("then")
		elseB := fl.newBlock("else")
		fl.condbr(c, thenB, elseB)
		fl.cur = thenB
		fl.lowerBlock(bodies[i])
		fl.br(join)
		fl.cur = elseB
	}
	if s.Else != nil {
		fl.lowerBlock(s.Else)
	}
	fl.br(join)
	fl.fn.Blocks = append(fl.fn.Blocks, join)
	fl.cur = join
}

// lowerRepeat emits a bounded SSA loop. A non-positive bound skips the body.
func (fl *fnLowerer) lowerRepeat(s *ast.Repeat) {
	n := fl.lowerExpr(s.Count)
	zero := fl.emit(&Value{Op: "const.int", Lit: 0, Type: checker.TInt})
	head := fl.newBlock("loop.head")
	body := fl.newBlock("loop.body")
	exit := &Block{Label: fmt.Sprintf("loop.exit%d", fl.nextBl)}
	fl.nextBl++

	entryLabel := fl.cur.Label
	fl.br(head)

	phi := &Phi{ID: fl.nextID, Type: checker.TInt,
		Edges: []PhiEdge{{From: entryLabel, Value: zero}}}
	fl.nextID++
	head.Phis = append(head.Phis, phi)
	fl.cur = head
	cond := fl.emit(&Value{Op: "lt", Args: []int{phi.ID, n}, Type: checker.TBool})
	fl.condbr(cond, body, exit)

	fl.cur = body
	fl.lowerBlock(s.Body)
	if fl.cur.Term == nil {
		one := fl.emit(&Value{Op: "const.int", Lit: 1, Type: checker.TInt})
		next := fl.emit(&Value{Op: "add", Args: []int{phi.ID, one}, Type: checker.TInt})
		phi.Edges = append(phi.Edges, PhiEdge{From: fl.cur.Label, Value: next})
		fl.br(head)
	}
	fl.fn.Blocks = append(fl.fn.Blocks, exit)
	fl.cur = exit
}

func (fl *fnLowerer) lowerMatch(s *ast.Match) {
	scrut := fl.lowerExpr(s.Scrutinee)
	st := fl.typeOf(s.Scrutinee)
	join := &Block{Label: fmt.Sprintf("match.join%d", fl.nextBl)}
	fl.nextBl++
	for _, arm := range s.Arms {
		bodyB := fl.newBlock("arm")
		nextB := fl.newBlock("arm.next")
		fl.scopes = append(fl.scopes, map[string]string{})
		cond := fl.lowerPatternTest(arm.Pat, scrut, st)
		if arm.Guard != nil {
			// bindings must exist before the guard runs
			guardB := fl.newBlock("guard")
			fl.condbr(cond, guardB, nextB)
			fl.cur = guardB
			fl.bindPattern(arm.Pat, scrut, st)
			g := fl.lowerExpr(arm.Guard)
			fl.condbr(g, bodyB, nextB)
			fl.cur = bodyB
		} else {
			fl.condbr(cond, bodyB, nextB)
			fl.cur = bodyB
			fl.bindPattern(arm.Pat, scrut, st)
		}
		fl.lowerBlock(arm.Body)
		fl.br(join)
		fl.scopes = fl.scopes[:len(fl.scopes)-1]
		fl.cur = nextB
	}
	// With exhaustiveness checked, the fallthrough is unreachable.
	c := fl.emit(&Value{Op: "const.str", Str: "unreachable match arm", Type: checker.TStr})
	fl.emit(&Value{Op: "rt.panic", Args: []int{c}, Type: checker.TUnit})
	fl.br(join)
	fl.fn.Blocks = append(fl.fn.Blocks, join)
	fl.cur = join
}

// lowerPatternTest emits the boolean discriminant test for a pattern.
func (fl *fnLowerer) lowerPatternTest(p ast.Pattern, scrut int, st *checker.Type) int {
	switch p := p.(type) {
	case *ast.WildcardPat, *ast.BindPat:
		return fl.emit(&Value{Op: "const.bool", Lit: 1, Type: checker.TBool})
	case *ast.IntPat:
		c := fl.emit(&Value{Op: "const.int", Lit: p.Value, Type: checker.TInt})
		return fl.emit(&Value{Op: "eq", Args: []int{scrut, c}, Type: checker.TBool})
	case *ast.StrPat:
		c := fl.emit(&Value{Op: "const.str", Str: p.Value, Type: checker.TStr})
		return fl.emit(&Value{Op: "str.eq", Args: []int{scrut, c}, Type: checker.TBool})
	case *ast.BoolPat:
		lit := int64(0)
		if p.Value {
			lit = 1
		}
		c := fl.emit(&Value{Op: "const.bool", Lit: lit, Type: checker.TBool})
		return fl.emit(&Value{Op: "eq", Args: []int{scrut, c}, Type: checker.TBool})
	case *ast.EnumVariantPat:
		ei := fl.lo.env.Enums[st.Name]
		if ei == nil {
			return fl.emit(&Value{Op: "const.bool", Lit: 0, Type: checker.TBool})
		}
		vi := ei.Variant(p.Path[len(p.Path)-1])
		if vi == nil {
			return fl.emit(&Value{Op: "const.bool", Lit: 0, Type: checker.TBool})
		}
		tag := fl.emit(&Value{Op: "enum.tag", Args: []int{scrut}, Type: checker.TInt})
		want := fl.emit(&Value{Op: "const.int", Lit: int64(vi.Tag), Type: checker.TInt})
		cond := fl.emit(&Value{Op: "eq", Args: []int{tag, want}, Type: checker.TBool})
		sub := bindEnum(ei, st)
		for i, sp := range p.Elems {
			if isIrrefutable(sp) {
				continue
			}
			et := fl.typ(sub.Apply(vi.Elems[i]))
			field := fl.emit(&Value{Op: "enum.field", Lit: int64(i), Args: []int{scrut}, Type: et, Sym: st.Name})
			sc := fl.lowerPatternTest(sp, field, et)
			cond = fl.emit(&Value{Op: "and", Args: []int{cond, sc}, Type: checker.TBool})
		}
		return cond
	case *ast.StructPat:
		si := fl.lo.env.Structs[p.Name]
		cond := fl.emit(&Value{Op: "const.bool", Lit: 1, Type: checker.TBool})
		if si == nil {
			return cond
		}
		for _, f := range p.Fields {
			if isIrrefutable(f.Pat) {
				continue
			}
			idx, ft := structField(si, f.Name, st)
			field := fl.emit(&Value{Op: "struct.field", Lit: int64(idx), Args: []int{scrut}, Type: fl.typ(ft), Sym: p.Name})
			sc := fl.lowerPatternTest(f.Pat, field, fl.typ(ft))
			cond = fl.emit(&Value{Op: "and", Args: []int{cond, sc}, Type: checker.TBool})
		}
		return cond
	}
	return fl.emit(&Value{Op: "const.bool", Lit: 0, Type: checker.TBool})
}

func isIrrefutable(p ast.Pattern) bool {
	switch p.(type) {
	case *ast.WildcardPat, *ast.BindPat:
		return true
	}
	return false
}

func bindEnum(ei *checker.EnumInfo, st *checker.Type) checker.Subst {
	sub := checker.Subst{}
	for i, tp := range ei.TypeParams {
		if i < len(st.Args) {
			sub[tp] = st.Args[i]
		}
	}
	return sub
}

func structField(si *checker.StructInfo, name string, st *checker.Type) (int, *checker.Type) {
	sub := checker.Subst{}
	for i, tp := range si.TypeParams {
		if i < len(st.Args) {
			sub[tp] = st.Args[i]
		}
	}
	for i, f := range si.Fields {
		if f.Name == name {
			return i, sub.Apply(f.Type)
		}
	}
	return 0, checker.TUnit
}

// bindPattern stores matched payloads into fresh local slots.
func (fl *fnLowerer) bindPattern(p ast.Pattern, scrut int, st *checker.Type) {
	switch p := p.(type) {
	case *ast.BindPat:
		t := fl.typ(fl.lo.info.Binds[p])
		slot := fl.declare(p.Name, t)
		fl.localSet(slot, scrut)
	case *ast.EnumVariantPat:
		ei := fl.lo.env.Enums[st.Name]
		if ei == nil {
			return
		}
		vi := ei.Variant(p.Path[len(p.Path)-1])
		if vi == nil {
			return
		}
		sub := bindEnum(ei, st)
		for i, sp := range p.Elems {
			et := fl.typ(sub.Apply(vi.Elems[i]))
			field := fl.emit(&Value{Op: "enum.field", Lit: int64(i), Args: []int{scrut}, Type: et, Sym: st.Name})
			fl.bindPattern(sp, field, et)
		}
	case *ast.StructPat:
		si := fl.lo.env.Structs[p.Name]
		if si == nil {
			return
		}
		for _, f := range p.Fields {
			idx, ft := structField(si, f.Name, st)
			field := fl.emit(&Value{Op: "struct.field", Lit: int64(idx), Args: []int{scrut}, Type: fl.typ(ft), Sym: p.Name})
			fl.bindPattern(f.Pat, field, fl.typ(ft))
		}
	}
}

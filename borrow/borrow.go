// Package borrow implements the lexical ownership analysis: move-by-default
// tracking, per-region borrow sets with range-overlap aliasing, release
// preconditions, and branch-join semantics. It runs on the typed AST before
// IR lowering and treats implicit borrows from call arguments exactly like
// explicit borrow expressions.
package borrow

import (
	"sort"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/checker"
	"github.com/ZAPPYcore/DAISY/core"
)

// Move states per binding.
const (
	stOwned = iota
	stMoved
	stConsumed // region released through this binding
)

type varState struct {
	status int
	origin core.Span // the move or release that invalidated the binding
	region int       // region index for buffer owners, else -1
	typ    *checker.Type
	depth  int
}

func (v *varState) clone() *varState {
	c := *v
	return &c
}

type borrowRec struct {
	region  int
	whole   bool
	start   int64
	end     int64
	known   bool // start/end are compile-time constants
	mut     bool
	binding string // empty for a statement-temporary borrow
	span    core.Span
	depth   int
}

type state struct {
	vars    map[string]*varState
	borrows []borrowRec
}

func (s *state) clone() *state {
	n := &state{vars: make(map[string]*varState, len(s.vars))}
	for k, v := range s.vars {
		n.vars[k] = v.clone()
	}
	n.borrows = append([]borrowRec(nil), s.borrows...)
	return n
}

// Result carries the ownership facts lowering needs: which owned buffers to
// release at each block exit and before each return, and which release
// statements had their live-borrow check waived inside unsafe.
type Result struct {
	BlockReleases  map[*ast.Block][]string
	ReturnReleases map[*ast.Return][]string
	TryReleases    map[*ast.TryExpr][]string
	Waived         map[*ast.Release]bool
}

// Check analyzes every function in the program.
func Check(prog *checker.Program, diags *core.Diagnostics) *Result {
	res := &Result{
		BlockReleases:  map[*ast.Block][]string{},
		ReturnReleases: map[*ast.Return][]string{},
		TryReleases:    map[*ast.TryExpr][]string{},
		Waived:         map[*ast.Release]bool{},
	}
	for _, m := range prog.Modules {
		env := prog.Envs[m.Name]
		for _, d := range m.Decls {
			switch d := d.(type) {
			case *ast.FuncDecl:
				checkFunc(env, prog.Info, d, diags, res)
			case *ast.ImplDecl:
				for _, f := range d.Methods {
					checkFunc(env, prog.Info, f, diags, res)
				}
			}
		}
	}
	return res
}

type walker struct {
	env     *checker.Env
	info    *checker.Info
	diags   *core.Diagnostics
	res     *Result
	st      *state
	regions int
	depth   int
	unsafe  int
}

func checkFunc(env *checker.Env, info *checker.Info, fn *ast.FuncDecl, diags *core.Diagnostics, res *Result) {
	if fn.Body == nil {
		return
	}
	w := &walker{env: env, info: info, diags: diags, res: res,
		st: &state{vars: map[string]*varState{}}}
	// Parameters: buffers passed in are owned regions of the callee. The
	// declaring FuncInfo is found by decl identity so impl methods never
	// shadow same-named free functions.
	var fi *checker.FuncInfo
	for _, im := range env.Impls {
		for _, m := range im.Methods {
			if m.Decl == fn {
				fi = m
			}
		}
	}
	if fi == nil {
		if cand := env.Funcs[fn.Name]; cand != nil && cand.Decl == fn {
			fi = cand
		}
	}
	if fi != nil {
		for i, name := range fi.ParamNames {
			vs := &varState{status: stOwned, region: -1, typ: fi.Params[i], depth: 0}
			if fi.Params[i] != nil && fi.Params[i].Kind == checker.KBuffer {
				vs.region = w.regions
				w.regions++
			}
			w.st.vars[name] = vs
		}
	}
	w.walkBlock(fn.Body)
}

func (w *walker) typeOf(e ast.Expr) *checker.Type {
	return w.info.Types[e]
}

func (w *walker) isCopy(t *checker.Type) bool {
	if t == nil {
		return true
	}
	return w.env.IsCopy(t)
}

// use reads a binding. asMove transfers ownership out of it.
func (w *walker) use(name string, span core.Span, asMove bool) {
	vs, ok := w.st.vars[name]
	if !ok {
		return // unknown symbols were diagnosed by the checker
	}
	if vs.status != stOwned {
		what := "moved"
		if vs.status == stConsumed {
			what = "released"
		}
		w.diags.Add(core.Diagnostic{
			Kind:    core.KindUseAfterMove,
			Span:    span,
			Message: "use of " + what + " binding " + name,
			Secondary: []core.Label{{Span: vs.origin, Message: name + " was " + what + " here"}},
		})
		return
	}
	if asMove && !w.isCopy(vs.typ) {
		vs.status = stMoved
		vs.origin = span
		// A moved-out view binding drops its borrows.
		w.expireBinding(name)
	}
}

// expireBinding removes borrows held by a binding, used when the binding is
// overwritten or moved out.
func (w *walker) expireBinding(name string) {
	if name == "" {
		return
	}
	kept := w.st.borrows[:0]
	for _, b := range w.st.borrows {
		if b.binding != name {
			kept = append(kept, b)
		}
	}
	w.st.borrows = kept
}

func overlap(a, b borrowRec) bool {
	if a.region != b.region {
		return false
	}
	if a.whole || b.whole {
		return true
	}
	if !a.known || !b.known {
		return true // unknown ranges are assumed to alias
	}
	return a.start < b.end && b.start < a.end
}

// addBorrow records a new view and checks the alias rule: per region either
// one live mutable view or any number of immutable ones, with disjoint
// ranges never aliasing.
func (w *walker) addBorrow(nb borrowRec) {
	for _, b := range w.st.borrows {
		if overlap(b, nb) && (b.mut || nb.mut) {
			prior := b.binding
			if prior == "" {
				prior = "a temporary view"
			}
			cur := nb.binding
			if cur == "" {
				cur = "a temporary view"
			}
			w.diags.Add(core.Diagnostic{
				Kind:    core.KindBorrowAliasConflict,
				Span:    nb.span,
				Message: "borrow " + cur + " conflicts with live borrow " + prior,
				Secondary: []core.Label{{Span: b.span, Message: prior + " borrowed here"}},
			})
			return
		}
	}
	w.st.borrows = append(w.st.borrows, nb)
}

// liveBorrows returns the live views over a region.
func (w *walker) liveBorrows(region int) []borrowRec {
	var out []borrowRec
	for _, b := range w.st.borrows {
		if b.region == region {
			out = append(out, b)
		}
	}
	return out
}

func (w *walker) walkBlock(b *ast.Block) {
	if b == nil {
		return
	}
	w.depth++
	shadowed := map[string]*varState{}
	var declared []string
	for _, s := range b.Stmts {
		w.walkStmt(s, shadowed, &declared)
	}
	// Scope exit: expire this depth's borrows, then schedule releases for
	// owned buffers that still live here, innermost declaration last.
	kept := w.st.borrows[:0]
	for _, br := range w.st.borrows {
		if br.depth < w.depth {
			kept = append(kept, br)
		}
	}
	w.st.borrows = kept
	var rel []string
	seen := map[string]bool{}
	for i := len(declared) - 1; i >= 0; i-- {
		name := declared[i]
		if seen[name] {
			continue
		}
		seen[name] = true
		vs := w.st.vars[name]
		if vs != nil && vs.depth == w.depth && vs.status == stOwned && vs.region >= 0 {
			rel = append(rel, name)
		}
	}
	if len(rel) > 0 {
		w.res.BlockReleases[b] = rel
	}
	for _, name := range declared {
		if old, ok := shadowed[name]; ok {
			w.st.vars[name] = old
		} else {
			delete(w.st.vars, name)
		}
	}
	w.depth--
}

func (w *walker) walkStmt(s ast.Stmt, shadowed map[string]*varState, declared *[]string) {
	switch s := s.(type) {
	case *ast.Let:
		w.walkLet(s, shadowed, declared)
	case *ast.AddAssign:
		w.use(s.Name, s.Span(), false)
		w.walkExpr(s.Value, false, "")
	case *ast.If:
		w.walkExpr(s.Cond, false, "")
		entry := w.st
		branches := make([]*state, 0, len(s.Elifs)+2)
		w.st = entry.clone()
		w.walkBlock(s.Then)
		branches = append(branches, w.st)
		for _, e := range s.Elifs {
			w.st = entry.clone()
			w.walkExpr(e.Cond, false, "")
			w.walkBlock(e.Body)
			branches = append(branches, w.st)
		}
		if s.Else != nil {
			w.st = entry.clone()
			w.walkBlock(s.Else)
			branches = append(branches, w.st)
		} else {
			branches = append(branches, entry.clone())
		}
		w.st = w.join(branches, s.Span())
	case *ast.Repeat:
		w.walkExpr(s.Count, false, "")
		w.walkLoopBody(s.Body)
	case *ast.Return:
		if s.Value != nil {
			w.walkExpr(s.Value, true, "")
		}
		// Every owned buffer still live in any enclosing scope is released
		// before the early exit.
		var rel []string
		retName := ""
		if p, ok := s.Value.(*ast.Path); ok {
			retName = p.Ident()
		}
		for name, vs := range w.st.vars {
			if vs.status == stOwned && vs.region >= 0 && name != retName {
				rel = append(rel, name)
			}
		}
		sort.Strings(rel)
		w.res.ReturnReleases[s] = rel
	case *ast.Print:
		w.walkExpr(s.Value, false, "")
	case *ast.Release:
		w.walkRelease(s)
	case *ast.Match:
		w.walkExpr(s.Scrutinee, true, "")
		entry := w.st
		var branches []*state
		for _, arm := range s.Arms {
			w.st = entry.clone()
			w.bindPattern(arm.Pat)
			if arm.Guard != nil {
				w.walkExpr(arm.Guard, false, "")
			}
			w.walkBlock(arm.Body)
			branches = append(branches, w.st)
		}
		if len(branches) > 0 {
			w.st = w.join(branches, s.Span())
		}
	case *ast.Unsafe:
		w.unsafe++
		w.walkBlock(s.Body)
		w.unsafe--
	case *ast.ExprStmt:
		w.walkExpr(s.E, false, "")
	}
}

func (w *walker) walkLet(s *ast.Let, shadowed map[string]*varState, declared *[]string) {
	// Overwriting a binding that holds a view ends that borrow; a shadowing
	// let of a moved name is the one legal way to reuse it.
	if old, exists := w.st.vars[s.Name]; exists {
		if _, noted := shadowed[s.Name]; !noted && old.depth < w.depth {
			shadowed[s.Name] = old
		}
		w.expireBinding(s.Name)
	}
	vs := &varState{status: stOwned, region: -1, typ: w.typeOf(s.Init), depth: w.depth}
	switch init := s.Init.(type) {
	case *ast.BufferCreate:
		w.walkExpr(init.Size, false, "")
		vs.region = w.regions
		w.regions++
	case *ast.Borrow:
		w.walkBorrow(init, s.Name)
	case *ast.Move:
		w.walkExpr(init.Src, false, "")
		if name := init.Src.Ident(); name != "" {
			if src, ok := w.st.vars[name]; ok && src.status == stOwned {
				vs.region = src.region
				src.status = stMoved
				src.origin = init.Span()
				w.expireBinding(name)
			}
		}
	case *ast.Path:
		if name := init.Ident(); name != "" {
			if src, ok := w.st.vars[name]; ok {
				w.use(name, init.Span(), !w.isCopy(src.typ))
				if !w.isCopy(src.typ) {
					vs.region = src.region
				}
			} else {
				w.walkExpr(init, false, "")
			}
		} else {
			w.walkExpr(init, true, "")
		}
	default:
		w.walkExpr(s.Init, true, s.Name)
	}
	w.st.vars[s.Name] = vs
	*declared = append(*declared, s.Name)
}

func (w *walker) walkRelease(s *ast.Release) {
	vs, ok := w.st.vars[s.Name]
	if !ok {
		return
	}
	if vs.status != stOwned {
		w.use(s.Name, s.Span(), false) // reports use-after-move/release
		return
	}
	if vs.region >= 0 {
		live := w.liveBorrows(vs.region)
		if len(live) > 0 {
			if w.unsafe > 0 {
				// The single check unsafe may waive.
				w.res.Waived[s] = true
			} else {
				holder := live[0].binding
				if holder == "" {
					holder = "a temporary view"
				}
				w.diags.Add(core.Diagnostic{
					Kind:    core.KindReleaseWithLiveBorrow,
					Span:    s.Span(),
					Message: "release of " + s.Name + " while view " + holder + " is live",
					Secondary: []core.Label{{Span: live[0].span, Message: holder + " borrowed here"}},
				})
				return
			}
		}
	}
	vs.status = stConsumed
	vs.origin = s.Span()
}

// walkLoopBody analyzes a loop body and surfaces cross-iteration
// use-after-move: the body runs a second time on the post-state and only
// newly discovered ownership diagnostics are kept.
func (w *walker) walkLoopBody(b *ast.Block) {
	w.walkBlock(b)
	seen := map[string]bool{}
	for _, d := range w.diags.All() {
		seen[d.Kind+"@"+d.Span.String()] = true
	}
	var second core.Diagnostics
	saved := w.diags
	w.diags = &second
	entry := w.st
	w.st = entry.clone()
	w.walkBlock(b)
	w.st = entry
	w.diags = saved
	for _, d := range second.All() {
		if d.Kind != core.KindUseAfterMove && d.Kind != core.KindBorrowAliasConflict {
			continue
		}
		if !seen[d.Kind+"@"+d.Span.String()] {
			d.Message = d.Message + " (moved in a previous loop iteration)"
			w.diags.Add(d)
		}
	}
}

func (w *walker) walkBorrow(b *ast.Borrow, binding string) {
	name := b.Target.Ident()
	w.use(name, b.Target.Span(), false)
	vs, ok := w.st.vars[name]
	if !ok || vs.region < 0 {
		return
	}
	nb := borrowRec{region: vs.region, mut: b.Mut, binding: binding, span: b.Span(), depth: w.depth, whole: true}
	if b.Start != nil {
		w.walkExpr(b.Start, false, "")
		w.walkExpr(b.End, false, "")
		nb.whole = false
		s, sOK := constInt(b.Start)
		e, eOK := constInt(b.End)
		nb.known = sOK && eOK
		nb.start, nb.end = s, e
	}
	w.addBorrow(nb)
}

func constInt(e ast.Expr) (int64, bool) {
	if lit, ok := e.(*ast.IntLit); ok {
		return lit.Value, true
	}
	return 0, false
}

// walkExpr processes reads, moves and implicit borrows inside an
// expression. asMove applies to a bare path at the top of the expression;
// binding labels borrows created by this expression (empty for temporaries).
func (w *walker) walkExpr(e ast.Expr, asMove bool, binding string) {
	switch e := e.(type) {
	case *ast.IntLit, *ast.StrLit, *ast.BoolLit:
	case *ast.Path:
		if name := e.Ident(); name != "" {
			vs, ok := w.st.vars[name]
			move := asMove && ok && !w.isCopy(vs.typ)
			w.use(name, e.Span(), move)
		}
	case *ast.Call:
		w.walkCall(e)
	case *ast.Binary:
		w.walkExpr(e.L, false, "")
		w.walkExpr(e.R, false, "")
	case *ast.Logical:
		w.walkExpr(e.L, false, "")
		// The right operand only runs on one branch; its effects join with
		// the skip path.
		entry := w.st
		w.st = entry.clone()
		w.walkExpr(e.R, false, "")
		w.st = w.join([]*state{w.st, entry.clone()}, e.Span())
	case *ast.Unary:
		w.walkExpr(e.X, false, "")
	case *ast.Move:
		if name := e.Src.Ident(); name != "" {
			w.use(name, e.Span(), true)
		}
	case *ast.CopyExpr:
		if name := e.Src.Ident(); name != "" {
			w.use(name, e.Span(), false)
		}
	case *ast.BufferCreate:
		w.walkExpr(e.Size, false, "")
	case *ast.Borrow:
		w.walkBorrow(e, binding)
	case *ast.TryExpr:
		w.walkExpr(e.Inner, false, "")
		// The failure branch exits the function early; live owned buffers
		// are released on that path.
		var rel []string
		for name, vs := range w.st.vars {
			if vs.status == stOwned && vs.region >= 0 {
				rel = append(rel, name)
			}
		}
		sort.Strings(rel)
		w.res.TryReleases[e] = rel
	case *ast.StructLit:
		for _, f := range e.Fields {
			w.walkExpr(f.Value, true, "")
		}
	}
}

// walkCall applies the argument discipline: builtin calls take implicit
// immutable borrows of non-Copy arguments, checked against the live borrow
// set like an explicit borrow and ended when the call returns; user
// function and constructor calls (including ok/err/some) move them.
func (w *walker) walkCall(e *ast.Call) {
	ci := w.info.Calls[e]
	builtin := ci != nil && ci.Builtin != ""
	if builtin {
		switch ci.Builtin {
		case "ok", "err", "some":
			builtin = false
		}
	}
	for _, a := range e.Args {
		if p, ok := a.(*ast.Path); ok && p.Ident() != "" {
			if vs, exists := w.st.vars[p.Ident()]; exists && !w.isCopy(vs.typ) {
				if builtin {
					w.use(p.Ident(), a.Span(), false)
					if vs.status == stOwned && vs.region >= 0 {
						n := len(w.st.borrows)
						w.addBorrow(borrowRec{region: vs.region, whole: true, span: a.Span(), depth: w.depth})
						w.st.borrows = w.st.borrows[:n]
					}
				} else {
					w.use(p.Ident(), a.Span(), true)
				}
				continue
			}
		}
		w.walkExpr(a, !builtin, "")
	}
}

// bindPattern introduces match-arm bindings. Payloads of a matched value
// are owned by their new bindings.
func (w *walker) bindPattern(p ast.Pattern) {
	switch p := p.(type) {
	case *ast.BindPat:
		w.st.vars[p.Name] = &varState{status: stOwned, region: -1, typ: w.info.Binds[p], depth: w.depth + 1}
	case *ast.EnumVariantPat:
		for _, sub := range p.Elems {
			w.bindPattern(sub)
		}
	case *ast.StructPat:
		for _, f := range p.Fields {
			w.bindPattern(f.Pat)
		}
	}
}

// join merges branch states: a binding moved in any branch is moved after
// the join; borrow sets union and the alias rule is rechecked.
func (w *walker) join(branches []*state, span core.Span) *state {
	out := branches[0]
	for _, b := range branches[1:] {
		for name, vs := range b.vars {
			cur, ok := out.vars[name]
			if !ok {
				out.vars[name] = vs.clone()
				continue
			}
			if vs.status > cur.status {
				cur.status = vs.status
				cur.origin = vs.origin
			}
		}
		for _, br := range b.borrows {
			dup := false
			for _, have := range out.borrows {
				if have == br {
					dup = true
					break
				}
			}
			if !dup {
				// Recheck aliasing across the join point.
				conflict := false
				for _, have := range out.borrows {
					if overlap(have, br) && (have.mut || br.mut) && have.binding != br.binding {
						conflict = true
						holder := have.binding
						if holder == "" {
							holder = "a temporary view"
						}
						other := br.binding
						if other == "" {
							other = "a temporary view"
						}
						w.diags.Add(core.Diagnostic{
							Kind:    core.KindBorrowAliasConflict,
							Span:    br.span,
							Message: "borrows " + other + " and " + holder + " conflict after branch join",
							Secondary: []core.Label{{Span: have.span, Message: holder + " borrowed here"}},
						})
						break
					}
				}
				if !conflict {
					out.borrows = append(out.borrows, br)
				}
			}
		}
	}
	return out
}

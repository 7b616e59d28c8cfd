package ir

import (
	"fmt"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/checker"
	"github.com/ZAPPYcore/DAISY/core"
)

// builtinOps maps runtime-facade names to intrinsic IR ops. Builtins absent
// from this table lower to a generic rt.<name> call.
var builtinOps = map[string]string{
	"tensor":   "tensor.create",
	"matmul":   "tensor.matmul",
	"channel":  "channel.create",
	"send":     "channel.send",
	"recv":     "channel.recv",
	"close":    "channel.close",
	"vec_new":  "vec.new",
	"vec_push": "vec.push",
	"vec_get":  "vec.get",
	"vec_len":  "vec.len",
	"buf_size": "rt.buffer_size",
	"is_ok":    "result.is_ok",
	"is_some":  "option.is_some",
	"ok":       "result.ok",
	"err":      "result.err",
	"some":     "option.some",
	"none":     "option.none",
	"panic":    "rt.panic",
}

func (fl *fnLowerer) lowerExpr(e ast.Expr) int {
	switch e := e.(type) {
	case *ast.IntLit:
		return fl.emit(&Value{Op: "const.int", Lit: e.Value, Type: checker.TInt})
	case *ast.StrLit:
		return fl.emit(&Value{Op: "const.str", Str: e.Value, Type: checker.TStr})
	case *ast.BoolLit:
		lit := int64(0)
		if e.Value {
			lit = 1
		}
		return fl.emit(&Value{Op: "const.bool", Lit: lit, Type: checker.TBool})
	case *ast.Path:
		if name := e.Ident(); name != "" {
			return fl.localGet(name, fl.typeOf(e))
		}
		// Enum.Variant as a nullary constructor value.
		t := fl.typeOf(e)
		if t != nil && t.Kind == checker.KEnum {
			if ei := fl.lo.env.Enums[t.Name]; ei != nil {
				if vi := ei.Variant(e.Segs[len(e.Segs)-1]); vi != nil {
					return fl.emit(&Value{Op: "enum.make", Sym: t.Name, Lit: int64(vi.Tag), Type: t})
				}
			}
		}
		return fl.emit(&Value{Op: "zero.value", Type: t})
	case *ast.Call:
		return fl.lowerCall(e)
	case *ast.Binary:
		return fl.lowerBinary(e)
	case *ast.Logical:
		return fl.lowerLogical(e)
	case *ast.Unary:
		x := fl.lowerExpr(e.X)
		op := "neg"
		if e.Op == "not" {
			op = "not"
		}
		return fl.emit(&Value{Op: op, Args: []int{x}, Type: fl.typeOf(e)})
	case *ast.Move:
		return fl.lowerExpr(e.Src)
	case *ast.CopyExpr:
		return fl.lowerExpr(e.Src)
	case *ast.BufferCreate:
		size := fl.lowerExpr(e.Size)
		return fl.emit(&Value{Op: "buffer.create", Args: []int{size}, Type: checker.TBuffer})
	case *ast.Borrow:
		return fl.lowerBorrow(e)
	case *ast.TryExpr:
		return fl.lowerTry(e)
	case *ast.StructLit:
		return fl.lowerStructLit(e)
	}
	fl.lo.diags.Addf(core.KindInternalError, e.Span(), "cannot lower expression")
	return fl.emit(&Value{Op: "zero.value", Type: checker.TUnit})
}

func (fl *fnLowerer) lowerBinary(e *ast.Binary) int {
	l := fl.lowerExpr(e.L)
	r := fl.lowerExpr(e.R)
	lt := fl.typeOf(e.L)
	ops := map[string]string{"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "mod",
		"==": "eq", "!=": "ne", "<": "lt", "<=": "le", ">": "gt", ">=": "ge"}
	op := ops[e.Op]
	if (e.Op == "==" || e.Op == "!=") && lt != nil && lt.Kind == checker.KStr {
		op = "str.eq"
		v := fl.emit(&Value{Op: op, Args: []int{l, r}, Type: checker.TBool})
		if e.Op == "!=" {
			return fl.emit(&Value{Op: "not", Args: []int{v}, Type: checker.TBool})
		}
		return v
	}
	return fl.emit(&Value{Op: op, Args: []int{l, r}, Type: fl.typeOf(e)})
}

// lowerLogical emits short-circuit branching, never bit ops.
func (fl *fnLowerer) lowerLogical(e *ast.Logical) int {
	l := fl.lowerExpr(e.L)
	fromL := fl.cur.Label
	rhs := fl.newBlock("sc.rhs")
	join := &Block{Label: fmt.Sprintf("sc.join%d", fl.nextBl)}
	fl.nextBl++
	if e.Op == "and" {
		fl.condbr(l, rhs, join)
	} else {
		fl.condbr(l, join, rhs)
	}
	fl.cur = rhs
	r := fl.lowerExpr(e.R)
	fromR := fl.cur.Label
	fl.br(join)
	fl.fn.Blocks = append(fl.fn.Blocks, join)
	fl.cur = join
	phi := &Phi{ID: fl.nextID, Type: checker.TBool, Edges: []PhiEdge{
		{From: fromL, Value: l}, {From: fromR, Value: r}}}
	fl.nextID++
	join.Phis = append(join.Phis, phi)
	return phi.ID
}

func (fl *fnLowerer) lowerBorrow(e *ast.Borrow) int {
	buf := fl.localGet(e.Target.Ident(), checker.TBuffer)
	mut := int64(0)
	if e.Mut {
		mut = 1
	}
	if e.Start == nil {
		return fl.emit(&Value{Op: "view.borrow_all", Args: []int{buf}, Lit: mut, Type: checker.TView})
	}
	s := fl.lowerExpr(e.Start)
	en := fl.lowerExpr(e.End)
	return fl.emit(&Value{Op: "view.borrow", Args: []int{buf, s, en}, Lit: mut, Type: checker.TView})
}

// lowerTry branches on the discriminant: success projects the payload,
// failure releases live buffers and early-returns the error lifted to the
// function's return type.
func (fl *fnLowerer) lowerTry(e *ast.TryExpr) int {
	inner := fl.lowerExpr(e.Inner)
	it := fl.typeOf(e.Inner)
	retT := fl.typ(fl.fi.Ret)

	okB := fl.newBlock("try.ok")
	failB := fl.newBlock("try.fail")

	var isOK int
	if it.Kind == checker.KResult {
		isOK = fl.emit(&Value{Op: "result.is_ok", Args: []int{inner}, Type: checker.TBool})
	} else {
		isOK = fl.emit(&Value{Op: "option.is_some", Args: []int{inner}, Type: checker.TBool})
	}
	fl.condbr(isOK, okB, failB)

	fl.cur = failB
	fl.releaseNames(fl.lo.own.TryReleases[e])
	var lifted int
	if it.Kind == checker.KResult {
		errV := fl.emit(&Value{Op: "result.unwrap_err", Args: []int{inner}, Type: it.Args[1]})
		lifted = fl.emit(&Value{Op: "result.err", Args: []int{errV}, Type: retT})
	} else {
		lifted = fl.emit(&Value{Op: "option.none", Type: retT})
	}
	fl.cur.Term = &Terminator{Op: "ret", Val: lifted}

	fl.cur = okB
	if it.Kind == checker.KResult {
		return fl.emit(&Value{Op: "result.unwrap", Args: []int{inner}, Type: fl.typ(it.Args[0])})
	}
	return fl.emit(&Value{Op: "option.unwrap", Args: []int{inner}, Type: fl.typ(it.Args[0])})
}

func (fl *fnLowerer) lowerStructLit(e *ast.StructLit) int {
	t := fl.typ(fl.lo.info.Lits[e])
	si := fl.lo.env.Structs[t.Name]
	args := make([]int, len(si.Fields))
	// Field initializers evaluate in declaration order for deterministic C.
	for i, f := range si.Fields {
		for _, init := range e.Fields {
			if init.Name == f.Name {
				args[i] = fl.lowerExpr(init.Value)
			}
		}
	}
	return fl.emit(&Value{Op: "struct.make", Sym: t.Name, Args: args, Type: t})
}

// lowerCall dispatches on the checker's call resolution.
func (fl *fnLowerer) lowerCall(e *ast.Call) int {
	ci := fl.lo.info.Calls[e]
	if ci == nil {
		fl.lo.diags.Addf(core.KindInternalError, e.Span(), "unresolved call survived checking")
		return fl.emit(&Value{Op: "zero.value", Type: checker.TUnit})
	}
	retT := fl.typeOf(e)
	switch {
	case ci.Builtin == "spawn":
		target := fl.lo.symbolFor(ci.Spawn, checker.Subst{})
		var args []int
		if len(e.Args) == 2 {
			args = append(args, fl.lowerExpr(e.Args[1]))
		}
		return fl.emit(&Value{Op: "thread.spawn", Sym: target, Args: args, Type: checker.TUnit})
	case ci.Builtin != "":
		args := make([]int, len(e.Args))
		for i, a := range e.Args {
			args[i] = fl.lowerExpr(a)
		}
		op, ok := builtinOps[ci.Builtin]
		if !ok {
			op = "rt." + ci.Builtin
		}
		if ci.Builtin == "unwrap" {
			op = "result.unwrap"
			if it := fl.typeOf(e.Args[0]); it != nil && it.Kind == checker.KOption {
				op = "option.unwrap"
			}
		}
		return fl.emit(&Value{Op: op, Args: args, Type: retT})
	case ci.Func != nil:
		sub := fl.composeSubst(ci.Subst)
		target := fl.lo.symbolFor(ci.Func, sub)
		args := make([]int, len(e.Args))
		for i, a := range e.Args {
			args[i] = fl.lowerExpr(a)
		}
		return fl.emit(&Value{Op: "call", Sym: target, Args: args, Type: retT})
	case ci.Trait != "":
		self := fl.typ(ci.Subst["Self"])
		impls := fl.lo.env.FindImpls(ci.Trait, self)
		if len(impls) != 1 {
			fl.lo.diags.Addf(core.KindUnresolvedTraitBound, e.Span(),
				"no unique impl of %s for %s at monomorphization", ci.Trait, self)
			return fl.emit(&Value{Op: "zero.value", Type: retT})
		}
		m := impls[0].Methods[ci.Method]
		if m == nil {
			fl.lo.diags.Addf(core.KindUnresolvedTraitBound, e.Span(),
				"impl of %s for %s does not define %s", ci.Trait, self, ci.Method)
			return fl.emit(&Value{Op: "zero.value", Type: retT})
		}
		target := fl.lo.symbolFor(m, checker.Subst{})
		args := make([]int, len(e.Args))
		for i, a := range e.Args {
			args[i] = fl.lowerExpr(a)
		}
		return fl.emit(&Value{Op: "call", Sym: target, Args: args, Type: retT})
	case ci.Variant != nil:
		args := make([]int, len(e.Args))
		for i, a := range e.Args {
			args[i] = fl.lowerExpr(a)
		}
		return fl.emit(&Value{Op: "enum.make", Sym: ci.Enum.Name, Lit: int64(ci.Variant.Tag), Args: args, Type: retT})
	}
	fl.lo.diags.Addf(core.KindInternalError, e.Span(), "unhandled call resolution")
	return fl.emit(&Value{Op: "zero.value", Type: retT})
}

// composeSubst rewrites a call-site substitution through the instance's own
// substitution, so nested generic calls resolve to concrete types.
func (fl *fnLowerer) composeSubst(s checker.Subst) checker.Subst {
	out := checker.Subst{}
	for k, v := range s {
		out[k] = fl.sub.Apply(v)
	}
	return out
}

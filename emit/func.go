package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZAPPYcore/DAISY/ir"
)

// fnEmitter renders one IR function as C statements with labeled blocks and
// gotos. SSA temporaries become pre-declared locals; phi nodes become
// assignments in each predecessor block.
type fnEmitter struct {
	em   *emitter
	f    *ir.Func
	b    *strings.Builder
	defs map[int]*ir.Value // value id -> defining instruction
	// phiAssigns[fromLabel] = list of "pN = tV;" statements
	phiAssigns map[string][]string
}

func (em *emitter) emitFunc(b *strings.Builder, f *ir.Func) {
	fe := &fnEmitter{em: em, f: f, b: b, defs: map[int]*ir.Value{}, phiAssigns: map[string][]string{}}
	fe.run()
}

func (fe *fnEmitter) run() {
	f := fe.f
	fmt.Fprintf(fe.b, "%s {\n", fe.em.signature(f, true))

	for _, blk := range f.Blocks {
		for _, v := range blk.Values {
			fe.defs[v.ID] = v
		}
	}

	// locals
	for _, l := range f.Locals {
		fmt.Fprintf(fe.b, "\t%s %s = {0};\n", ctype(l.Type), l.Name)
	}
	// temps and phi variables
	for _, blk := range f.Blocks {
		for _, phi := range blk.Phis {
			fmt.Fprintf(fe.b, "\t%s t%d = {0};\n", ctype(phi.Type), phi.ID)
			for _, e := range phi.Edges {
				fe.phiAssigns[e.From] = append(fe.phiAssigns[e.From],
					fmt.Sprintf("t%d = t%d;", phi.ID, e.Value))
			}
		}
		for _, v := range blk.Values {
			if !isUnit(v.Type) {
				fmt.Fprintf(fe.b, "\t%s t%d = {0};\n", ctype(v.Type), v.ID)
			}
		}
	}

	for i, blk := range f.Blocks {
		if i > 0 {
			fmt.Fprintf(fe.b, "%s:;\n", clabel(blk.Label))
		}
		for _, v := range blk.Values {
			fe.emitValue(v)
		}
		fe.emitTerm(blk)
	}
	fe.b.WriteString("}\n\n")
}

// clabel turns an IR block label into a valid C label.
func clabel(label string) string {
	return "L_" + strings.ReplaceAll(label, ".", "_")
}

func (fe *fnEmitter) stmt(format string, args ...any) {
	fmt.Fprintf(fe.b, "\t"+format+"\n", args...)
}

// assign writes `tN = expr;` or a bare call for unit values.
func (fe *fnEmitter) assign(v *ir.Value, expr string) {
	if isUnit(v.Type) {
		fe.stmt("%s;", expr)
		return
	}
	fe.stmt("t%d = %s;", v.ID, expr)
}

func (fe *fnEmitter) arg(id int) string { return fmt.Sprintf("t%d", id) }

func (fe *fnEmitter) args(v *ir.Value) []string {
	out := make([]string, len(v.Args))
	for i, a := range v.Args {
		out[i] = fe.arg(a)
	}
	return out
}

func (fe *fnEmitter) emitTerm(blk *ir.Block) {
	assigns := fe.phiAssigns[blk.Label]
	sort.Strings(assigns)
	for _, a := range assigns {
		fe.stmt("%s", a)
	}
	t := blk.Term
	if t == nil {
		return
	}
	switch t.Op {
	case "br":
		fe.stmt("goto %s;", clabel(t.Targets[0]))
	case "condbr":
		fe.stmt("if (t%d) goto %s; else goto %s;", t.Cond, clabel(t.Targets[0]), clabel(t.Targets[1]))
	case "ret":
		if t.Val < 0 {
			if fe.f.Source == "main" {
				fe.stmt("return 0;")
			} else if isUnit(fe.f.Ret) {
				fe.stmt("return;")
			} else {
				fe.stmt("return (%s){0};", ctype(fe.f.Ret))
			}
			return
		}
		fe.stmt("return t%d;", t.Val)
	}
}

// guard emits the --rt-checks precondition for guarded ops. Checks are
// suppressed inside unsafe regions.
func (fe *fnEmitter) guard(v *ir.Value) {
	if !fe.em.cfg.RTChecks || v.Unsafe {
		return
	}
	tag, ok := guardedOps[v.Op]
	if !ok {
		return
	}
	a := fe.args(v)
	switch v.Op {
	case "view.borrow":
		fe.stmt("daisy_rt_check_range(%s, %s, %s, %q);", a[0], a[1], a[2], tag)
	case "rt.view_get", "rt.view_set":
		fe.stmt("daisy_rt_check_index(%s, %s, %q);", a[0], a[1], tag)
	case "vec.get":
		fe.stmt("daisy_rt_check_vec(%s, %s, %q);", a[0], a[1], tag)
	}
}

func (fe *fnEmitter) emitValue(v *ir.Value) {
	fe.guard(v)
	a := fe.args(v)
	switch v.Op {
	case "const.int", "const.bool":
		fe.assign(v, fmt.Sprintf("INT64_C(%d)", v.Lit))
	case "const.str":
		fe.assign(v, cstring(v.Str))
	case "add", "sub", "mul", "div", "mod", "eq", "ne", "lt", "le", "gt", "ge", "and":
		ops := map[string]string{"add": "+", "sub": "-", "mul": "*", "div": "/", "mod": "%",
			"eq": "==", "ne": "!=", "lt": "<", "le": "<=", "gt": ">", "ge": ">=", "and": "&&"}
		fe.assign(v, fmt.Sprintf("%s %s %s", a[0], ops[v.Op], a[1]))
	case "not":
		fe.assign(v, "!"+a[0])
	case "neg":
		fe.assign(v, "-"+a[0])
	case "str.eq":
		fe.assign(v, fmt.Sprintf("%s(%s, %s)", symStrEq, a[0], a[1]))
	case "local.get":
		fe.assign(v, v.Sym)
	case "local.set":
		fe.stmt("%s = %s;", v.Sym, a[0])
	case "call":
		fe.assign(v, fmt.Sprintf("%s(%s)", v.Sym, strings.Join(a, ", ")))
	case "zero.value":
		if !isUnit(v.Type) {
			fe.stmt("t%d = (%s){0};", v.ID, ctype(v.Type))
		}
	case "print.int":
		fe.stmt("%s(%s);", symPrintInt, a[0])
	case "print.bool":
		fe.stmt("%s(%s);", symPrintBool, a[0])
	case "print.str":
		fe.stmt("%s(%s);", symPrintStr, a[0])
	case "buffer.create":
		fe.assign(v, fmt.Sprintf("%s(%s)", symBufferCreate, a[0]))
	case "buffer.release":
		fe.stmt("%s(%s);", symBufferRelease, a[0])
	case "tensor.release":
		fe.stmt("daisy_rt_tensor_release(%s);", a[0])
	case "channel.release":
		fe.stmt("%s(%s);", symChannelRelease, a[0])
	case "vec.release":
		fe.stmt("daisy_rt_vec_release(%s);", a[0])
	case "view.borrow":
		fe.assign(v, fmt.Sprintf("%s(%s, %s, %s, %d)", symViewBorrow, a[0], a[1], a[2], v.Lit))
	case "view.borrow_all":
		fe.assign(v, fmt.Sprintf("%s(%s, %d)", symViewBorrowAll, a[0], v.Lit))
	case "view.release":
		fe.stmt("%s(%s);", symViewRelease, a[0])
	case "tensor.create":
		fe.assign(v, fmt.Sprintf("%s(%s, %s)", symTensorCreate, a[0], a[1]))
	case "tensor.matmul":
		sym := symTensorMatmul
		if fe.fusable(v) {
			sym = symTensorFused
		}
		fe.assign(v, fmt.Sprintf("%s(%s, %s)", sym, a[0], a[1]))
	case "channel.create":
		fe.assign(v, symChannelCreate+"()")
	case "channel.send":
		val := fe.defs[v.Args[1]]
		fe.assign(v, fmt.Sprintf("%s(%s, %s)", symChannelSend, a[0], box(a[1], val.Type)))
	case "channel.recv":
		fe.assign(v, unbox(fmt.Sprintf("%s(%s)", symChannelRecv, a[0]), v.Type))
	case "channel.close":
		fe.stmt("%s(%s);", symChannelClose, a[0])
	case "vec.new":
		fe.assign(v, symVecNew+"()")
	case "vec.push":
		val := fe.defs[v.Args[1]]
		fe.stmt("%s(%s, %s);", symVecPush, a[0], box(a[1], val.Type))
	case "vec.get":
		fe.assign(v, unbox(fmt.Sprintf("%s(%s, %s)", symVecGet, a[0], a[1]), v.Type))
	case "vec.len":
		fe.assign(v, fmt.Sprintf("%s(%s)", symVecLen, a[0]))
	case "result.ok":
		payload := fe.defs[v.Args[0]]
		fe.assign(v, fmt.Sprintf("%s(%s)", symResultOk, box(a[0], payload.Type)))
	case "result.err":
		payload := fe.defs[v.Args[0]]
		fe.assign(v, fmt.Sprintf("%s(%s)", symResultErr, box(a[0], payload.Type)))
	case "result.is_ok":
		fe.assign(v, fmt.Sprintf("%s(%s)", symResultIsOk, a[0]))
	case "result.unwrap":
		fe.assign(v, unbox(fmt.Sprintf("%s(%s)", symResultUnwrap, a[0]), v.Type))
	case "result.unwrap_err":
		fe.assign(v, unbox(fmt.Sprintf("%s(%s)", symResultUnwrapErr, a[0]), v.Type))
	case "option.some":
		payload := fe.defs[v.Args[0]]
		fe.assign(v, fmt.Sprintf("%s(%s)", symOptionSome, box(a[0], payload.Type)))
	case "option.none":
		fe.assign(v, symOptionNone+"()")
	case "option.is_some":
		fe.assign(v, fmt.Sprintf("%s(%s)", symOptionIsSome, a[0]))
	case "option.unwrap":
		fe.assign(v, unbox(fmt.Sprintf("%s(%s)", symOptionUnwrap, a[0]), v.Type))
	case "enum.make":
		fe.stmt("t%d = (%s){0};", v.ID, ctype(v.Type))
		fe.stmt("t%d.tag = INT64_C(%d);", v.ID, v.Lit)
		for i, argID := range v.Args {
			at := fe.defs[argID]
			fe.stmt("t%d.f[%d] = %s;", v.ID, i, box(fe.arg(argID), at.Type))
		}
	case "enum.tag":
		fe.assign(v, a[0]+".tag")
	case "enum.field":
		fe.assign(v, unbox(fmt.Sprintf("%s.f[%d]", a[0], v.Lit), v.Type))
	case "struct.make":
		fe.stmt("t%d = (%s){0};", v.ID, ctype(v.Type))
		for i, argID := range v.Args {
			at := fe.defs[argID]
			fe.stmt("t%d.f[%d] = %s;", v.ID, i, box(fe.arg(argID), at.Type))
		}
	case "struct.field":
		fe.assign(v, unbox(fmt.Sprintf("%s.f[%d]", a[0], v.Lit), v.Type))
	case "thread.spawn":
		fe.emitSpawn(v, a)
	case "rt.panic":
		fe.stmt("%s(%s);", symPanic, a[0])
	default:
		if name, ok := strings.CutPrefix(v.Op, "rt."); ok {
			fe.assign(v, fmt.Sprintf("daisy_rt_%s(%s)", name, strings.Join(a, ", ")))
			return
		}
		fe.stmt("/* unhandled op %s */", v.Op)
	}
}

// fusable reports whether a matmul's operands are tensor.create results
// with statically matching shapes.
func (fe *fnEmitter) fusable(v *ir.Value) bool {
	l, r := fe.defs[v.Args[0]], fe.defs[v.Args[1]]
	if l == nil || r == nil || l.Op != "tensor.create" || r.Op != "tensor.create" {
		return false
	}
	lc, ok1 := fe.constOf(l.Args[1])
	rr, ok2 := fe.constOf(r.Args[0])
	return ok1 && ok2 && lc == rr
}

func (fe *fnEmitter) constOf(id int) (int64, bool) {
	d := fe.defs[id]
	if d != nil && d.Op == "const.int" {
		return d.Lit, true
	}
	return 0, false
}

// emitSpawn registers a thread adapter for the target function and calls
// the runtime spawn helper.
func (fe *fnEmitter) emitSpawn(v *ir.Value, a []string) {
	if len(v.Args) == 1 {
		name := "dsy_spawnc_" + v.Sym
		fe.em.adapters[name] = fmt.Sprintf(
			"static void %s(dsy_channel ch) {\n\t%s(ch);\n}\n", name, v.Sym)
		fe.stmt("%s(%s, %s);", symThreadSpawnChan, name, a[0])
		return
	}
	name := "dsy_spawn_" + v.Sym
	fe.em.adapters[name] = fmt.Sprintf(
		"static void %s(void) {\n\t%s();\n}\n", name, v.Sym)
	fe.stmt("%s(%s);", symThreadSpawn, name)
}

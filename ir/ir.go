// Package ir defines the typed SSA-like intermediate form and the lowering
// from typed AST into it. Tensor operations are first-class ops; generic
// functions are expanded into one IR function per substitution.
package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZAPPYcore/DAISY/checker"
)

// Value is one SSA instruction. Args reference earlier value ids within the
// same function. Sym carries a callee or local name where the op needs one;
// Lit carries integer payloads (constants, field indexes, variant tags).
type Value struct {
	ID     int
	Op     string
	Type   *checker.Type
	Args   []int
	Lit    int64
	Str    string
	Sym    string
	Unsafe bool // inside an unsafe region
	Waived bool // release with the live-borrow check waived
}

// PhiEdge names an incoming block and the value flowing in from it.
type PhiEdge struct {
	From  string
	Value int
}

type Phi struct {
	ID    int
	Type  *checker.Type
	Edges []PhiEdge
}

// Terminator ends a block: br, condbr or ret.
type Terminator struct {
	Op      string
	Cond    int      // condbr
	Targets []string // br: 1, condbr: 2 (true, false)
	Val     int      // ret value id, -1 for unit
}

type Block struct {
	Label  string
	Phis   []*Phi
	Values []*Value
	Term   *Terminator
}

type ParamSlot struct {
	Name string
	Type *checker.Type
}

// Func is one monomorphic IR function. Locals lists the named mutable slots
// referenced by local.get/local.set.
type Func struct {
	Name   string
	Source string // DAISY-level name before mangling
	Public bool
	Params []ParamSlot
	Ret    *checker.Type
	Blocks []*Block
	Locals []ParamSlot
	Unsafe bool // contains unsafe regions
}

// Module is the IR for one compilation unit. Imports lists the module names
// whose public headers the emitted C must include.
type Module struct {
	Name    string
	Imports []string
	Funcs   []*Func
}

// Dump renders the IR in its textual form for --emit-ir. Output order is
// deterministic.
func (m *Module) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s\n", m.Name)
	funcs := append([]*Func(nil), m.Funcs...)
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name < funcs[j].Name })
	for _, f := range funcs {
		b.WriteString("\n")
		f.dump(&b)
	}
	return b.String()
}

func (f *Func) dump(b *strings.Builder) {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
	}
	vis := ""
	if f.Public {
		vis = "pub "
	}
	unsafe := ""
	if f.Unsafe {
		unsafe = " unsafe"
	}
	fmt.Fprintf(b, "%sfn %s(%s) -> %s%s {\n", vis, f.Name, strings.Join(params, ", "), typeName(f.Ret), unsafe)
	for _, l := range f.Locals {
		fmt.Fprintf(b, "  local %s: %s\n", l.Name, l.Type)
	}
	for _, blk := range f.Blocks {
		fmt.Fprintf(b, "%s:\n", blk.Label)
		for _, phi := range blk.Phis {
			edges := make([]string, len(phi.Edges))
			for i, e := range phi.Edges {
				edges[i] = fmt.Sprintf("[%s: v%d]", e.From, e.Value)
			}
			fmt.Fprintf(b, "  v%d = phi %s %s\n", phi.ID, typeName(phi.Type), strings.Join(edges, " "))
		}
		for _, v := range blk.Values {
			b.WriteString("  " + v.text() + "\n")
		}
		if blk.Term != nil {
			b.WriteString("  " + blk.Term.text() + "\n")
		}
	}
	b.WriteString("}\n")
}

func (v *Value) text() string {
	args := make([]string, len(v.Args))
	for i, a := range v.Args {
		args[i] = fmt.Sprintf("v%d", a)
	}
	s := fmt.Sprintf("v%d = %s", v.ID, v.Op)
	if v.Sym != "" {
		s += " @" + v.Sym
	}
	switch v.Op {
	case "const.int":
		s += fmt.Sprintf(" %d", v.Lit)
	case "const.bool":
		s += fmt.Sprintf(" %d", v.Lit)
	case "const.str":
		s += fmt.Sprintf(" %q", v.Str)
	case "enum.make", "enum.field", "struct.field":
		s += fmt.Sprintf(" #%d", v.Lit)
	}
	if len(args) > 0 {
		s += " " + strings.Join(args, ", ")
	}
	s += " : " + typeName(v.Type)
	if v.Waived {
		s += " !waived"
	}
	if v.Unsafe {
		s += " !unsafe"
	}
	return s
}

func (t *Terminator) text() string {
	switch t.Op {
	case "br":
		return "br " + t.Targets[0]
	case "condbr":
		return fmt.Sprintf("condbr v%d %s %s", t.Cond, t.Targets[0], t.Targets[1])
	case "ret":
		if t.Val < 0 {
			return "ret"
		}
		return fmt.Sprintf("ret v%d", t.Val)
	}
	return t.Op
}

func typeName(t *checker.Type) string {
	if t == nil {
		return "unit"
	}
	return t.String()
}

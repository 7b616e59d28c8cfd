package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZAPPYcore/DAISY/checker"
	"github.com/ZAPPYcore/DAISY/core"
	"github.com/ZAPPYcore/DAISY/ir"
)

// Output is one emitted translation unit with its public header.
type Output struct {
	C      string
	Header string
}

// Module renders an IR module as a C11 translation unit. Output is
// deterministic: identical IR and config produce byte-identical C.
func Module(m *ir.Module, prog *checker.Program, cfg *core.Config) *Output {
	em := &emitter{mod: m, env: prog.Envs[m.Name], cfg: cfg}
	return em.run()
}

type emitter struct {
	mod      *ir.Module
	env      *checker.Env
	cfg      *core.Config
	b        strings.Builder
	adapters map[string]string // adapter name -> definition
}

func (em *emitter) run() *Output {
	em.adapters = map[string]string{}
	funcs := append([]*ir.Func(nil), em.mod.Funcs...)
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name < funcs[j].Name })

	fmt.Fprintf(&em.b, "/* module %s — generated by daisyc %s, do not edit */\n", em.mod.Name, core.Version)
	em.line("#include <stdint.h>")
	em.line("#include \"daisy_runtime.h\"")
	em.line(fmt.Sprintf("#include %q", em.mod.Name+".h"))
	for _, imp := range em.mod.Imports {
		em.line(fmt.Sprintf("#include %q", imp+".h"))
	}
	em.line("")

	// prototypes
	for _, f := range funcs {
		em.line(em.signature(f, true) + ";")
	}
	em.line("")

	// bodies; adapters referenced by thread.spawn are collected first
	var bodies strings.Builder
	for _, f := range funcs {
		em.emitFunc(&bodies, f)
	}

	names := make([]string, 0, len(em.adapters))
	for n := range em.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		em.line(em.adapters[n])
	}
	em.b.WriteString(bodies.String())

	if hasMain(funcs) {
		em.line("int main(void) {")
		em.line("\treturn (int)dsy_user_main();")
		em.line("}")
	}

	return &Output{C: em.b.String(), Header: em.header(funcs)}
}

func hasMain(funcs []*ir.Func) bool {
	for _, f := range funcs {
		if f.Source == "main" {
			return true
		}
	}
	return false
}

func (em *emitter) line(s string) { em.b.WriteString(s + "\n") }

// typeDefs renders one C struct per struct and enum declared in this
// module. Payloads are boxed so a single definition serves every generic
// instantiation. Definitions live in the module header so importers see
// them; imported types come in through the dependency headers.
func (em *emitter) typeDefs() string {
	var b strings.Builder
	var names []string
	for n, si := range em.env.Structs {
		if si.Module == em.mod.Name {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		fields := len(em.env.Structs[n].Fields)
		if fields == 0 {
			fields = 1
		}
		fmt.Fprintf(&b, "typedef struct { dsy_box f[%d]; } dsy_s_%s;\n", fields, n)
	}
	names = names[:0]
	for n, ei := range em.env.Enums {
		if ei.Module == em.mod.Name {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		max := 1
		for _, v := range em.env.Enums[n].Variants {
			if len(v.Elems) > max {
				max = len(v.Elems)
			}
		}
		fmt.Fprintf(&b, "typedef struct { int64_t tag; dsy_box f[%d]; } dsy_e_%s;\n", max, n)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func ctype(t *checker.Type) string {
	if t == nil {
		return "int64_t"
	}
	switch t.Kind {
	case checker.KInt, checker.KBool, checker.KUnit:
		return "int64_t"
	case checker.KStr:
		return "char*"
	case checker.KBuffer:
		return "dsy_buffer"
	case checker.KView:
		return "dsy_view"
	case checker.KTensor:
		return "dsy_tensor"
	case checker.KChannel:
		return "dsy_channel"
	case checker.KVec:
		return "dsy_vec"
	case checker.KResult:
		return "dsy_result"
	case checker.KOption:
		return "dsy_option"
	case checker.KStruct:
		return "dsy_s_" + t.Name
	case checker.KEnum:
		return "dsy_e_" + t.Name
	}
	return "int64_t"
}

func isUnit(t *checker.Type) bool { return t == nil || t.Kind == checker.KUnit }

// cname maps an IR function to its C symbol. main gets a wrapper-safe name.
func cname(f *ir.Func) string {
	if f.Source == "main" {
		return "dsy_user_main"
	}
	return f.Name
}

func (em *emitter) signature(f *ir.Func, withStatic bool) string {
	ret := "void"
	if f.Source == "main" {
		ret = "int64_t"
	} else if !isUnit(f.Ret) {
		ret = ctype(f.Ret)
	}
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = ctype(p.Type) + " " + p.Name
	}
	ps := strings.Join(params, ", ")
	if ps == "" {
		ps = "void"
	}
	prefix := ""
	if withStatic && (!f.Public || f.Source == "main") {
		prefix = "static "
	}
	return fmt.Sprintf("%s%s %s(%s)", prefix, ret, cname(f), ps)
}

// boxMember selects the dsy_box member for a type; composites are
// heap-boxed behind .p.
func boxMember(t *checker.Type) string {
	switch t.Kind {
	case checker.KInt, checker.KBool, checker.KUnit:
		return "i"
	case checker.KStr:
		return "s"
	case checker.KBuffer:
		return "b"
	case checker.KView:
		return "v"
	case checker.KTensor:
		return "t"
	case checker.KChannel, checker.KVec:
		return "p"
	}
	return "p"
}

func isHeapBoxed(t *checker.Type) bool {
	switch t.Kind {
	case checker.KResult, checker.KOption, checker.KStruct, checker.KEnum:
		return true
	}
	return false
}

// box wraps a C lvalue expression of type t into a dsy_box expression.
func box(expr string, t *checker.Type) string {
	if isHeapBoxed(t) {
		return fmt.Sprintf("(dsy_box){ .p = %s(&%s, sizeof %s) }", symBoxNew, expr, expr)
	}
	if t.Kind == checker.KChannel || t.Kind == checker.KVec {
		return fmt.Sprintf("(dsy_box){ .p = (void*)%s }", expr)
	}
	return fmt.Sprintf("(dsy_box){ .%s = %s }", boxMember(t), expr)
}

// unbox extracts a value of type t from a dsy_box expression.
func unbox(expr string, t *checker.Type) string {
	if isHeapBoxed(t) {
		return fmt.Sprintf("*(%s*)(%s).p", ctype(t), expr)
	}
	if t.Kind == checker.KChannel || t.Kind == checker.KVec {
		return fmt.Sprintf("(%s)(%s).p", ctype(t), expr)
	}
	return fmt.Sprintf("(%s).%s", expr, boxMember(t))
}

func cstring(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString("\\\\")
		case '"':
			b.WriteString("\\\"")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func (em *emitter) header(funcs []*ir.Func) string {
	var b strings.Builder
	guard := "DAISY_" + strings.ToUpper(sanitize(em.mod.Name)) + "_H"
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", guard, guard)
	b.WriteString("#include <stdint.h>\n#include \"daisy_runtime.h\"\n\n")
	b.WriteString(em.typeDefs())
	for _, f := range funcs {
		if f.Public && f.Source != "main" {
			b.WriteString(em.signature(f, false) + ";\n")
		}
	}
	fmt.Fprintf(&b, "\n#endif /* %s */\n", guard)
	return b.String()
}

func sanitize(s string) string {
	out := []rune(s)
	for i, r := range out {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			out[i] = '_'
		}
	}
	return string(out)
}

// Signature renders the DAISY-level signature used in ABI manifests.
func Signature(f *ir.Func) string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type.String()
	}
	ret := "unit"
	if !isUnit(f.Ret) {
		ret = f.Ret.String()
	}
	return fmt.Sprintf("fn(%s) -> %s", strings.Join(params, ", "), ret)
}

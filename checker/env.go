package checker

import (
	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
)

// FuncInfo is the resolved signature of a function or trait method impl.
type FuncInfo struct {
	Name       string
	Module     string
	Public     bool
	TypeParams []ast.TypeParam
	Params     []*Type
	ParamNames []string
	Ret        *Type
	Decl       *ast.FuncDecl
}

func (f *FuncInfo) paramOrder() []string {
	names := make([]string, len(f.TypeParams))
	for i, tp := range f.TypeParams {
		names[i] = tp.Name
	}
	return names
}

// StructInfo describes a struct declaration.
type StructInfo struct {
	Name       string
	Module     string
	TypeParams []string
	Fields     []FieldInfo
	Decl       *ast.StructDecl
}

type FieldInfo struct {
	Name string
	Type *Type // may mention parameters
}

// EnumInfo describes an enum declaration. Variant order fixes runtime tags.
type EnumInfo struct {
	Name       string
	Module     string
	TypeParams []string
	Variants   []VariantInfo
	Decl       *ast.EnumDecl
}

type VariantInfo struct {
	Name  string
	Tag   int
	Elems []*Type // may mention parameters
}

func (e *EnumInfo) Variant(name string) *VariantInfo {
	for i := range e.Variants {
		if e.Variants[i].Name == name {
			return &e.Variants[i]
		}
	}
	return nil
}

// TraitInfo describes a trait declaration.
type TraitInfo struct {
	Name    string
	Module  string
	Methods []ast.FuncSig
}

// ImplInfo records `impl Trait for Type` (or an inherent impl with empty
// Trait) together with its checked methods.
type ImplInfo struct {
	Trait   string
	For     *Type
	Methods map[string]*FuncInfo
	Span    core.Span
}

// Env is the append-only symbol environment for one module, frozen before
// the checking phase reads it. Imports link sibling environments.
type Env struct {
	Module  string
	Funcs   map[string]*FuncInfo
	Structs map[string]*StructInfo
	Enums   map[string]*EnumInfo
	Traits  map[string]*TraitInfo
	Impls   []*ImplInfo
	Aliases map[string]*Env // import alias -> module env
}

func NewEnv(module string) *Env {
	return &Env{
		Module:  module,
		Funcs:   map[string]*FuncInfo{},
		Structs: map[string]*StructInfo{},
		Enums:   map[string]*EnumInfo{},
		Traits:  map[string]*TraitInfo{},
		Aliases: map[string]*Env{},
	}
}

// FindImpls returns every impl of trait for the concrete type.
func (e *Env) FindImpls(trait string, forType *Type) []*ImplInfo {
	var out []*ImplInfo
	for _, im := range e.Impls {
		if im.Trait == trait && im.For.Equal(forType) {
			out = append(out, im)
		}
	}
	return out
}

// IsCopy implements the Copy discipline: scalars and views are Copy leaves;
// a composite is Copy iff every component is.
func (e *Env) IsCopy(t *Type) bool {
	switch t.Kind {
	case KInt, KBool, KView, KUnit:
		return true
	case KStr, KBuffer, KTensor, KChannel, KVec:
		return false
	case KResult, KOption:
		for _, a := range t.Args {
			if !e.IsCopy(a) {
				return false
			}
		}
		return true
	case KStruct:
		si := e.Structs[t.Name]
		if si == nil {
			return false
		}
		sub := bindParams(si.TypeParams, t.Args)
		for _, f := range si.Fields {
			if !e.IsCopy(sub.Apply(f.Type)) {
				return false
			}
		}
		return true
	case KEnum:
		ei := e.Enums[t.Name]
		if ei == nil {
			return false
		}
		sub := bindParams(ei.TypeParams, t.Args)
		for _, v := range ei.Variants {
			for _, el := range v.Elems {
				if !e.IsCopy(sub.Apply(el)) {
					return false
				}
			}
		}
		return true
	case KParam:
		return false // a bare parameter is conservatively non-Copy
	}
	return false
}

func bindParams(names []string, args []*Type) Subst {
	s := Subst{}
	for i, n := range names {
		if i < len(args) {
			s[n] = args[i]
		}
	}
	return s
}

// resolveTypeExpr turns a syntactic type into a semantic one. tps names the
// type parameters in scope.
func (e *Env) resolveTypeExpr(te ast.TypeExpr, tps map[string]bool, diags *core.Diagnostics) *Type {
	nt, ok := te.(*ast.NamedType)
	if !ok || nt == nil {
		return TUnit
	}
	args := make([]*Type, len(nt.Args))
	for i, a := range nt.Args {
		args[i] = e.resolveTypeExpr(a, tps, diags)
		if args[i] == nil {
			return nil
		}
	}
	arity := func(want int) bool {
		if len(args) != want {
			diags.Addf(core.KindGenericArityMismatch, nt.Span(),
				"%s takes %d type argument(s), got %d", nt.Name, want, len(args))
			return false
		}
		return true
	}
	switch nt.Name {
	case "int":
		if !arity(0) {
			return nil
		}
		return TInt
	case "bool":
		if !arity(0) {
			return nil
		}
		return TBool
	case "str":
		if !arity(0) {
			return nil
		}
		return TStr
	case "unit":
		if !arity(0) {
			return nil
		}
		return TUnit
	case "buffer":
		if !arity(0) {
			return nil
		}
		return TBuffer
	case "view":
		if !arity(0) {
			return nil
		}
		return TView
	case "tensor":
		if !arity(0) {
			return nil
		}
		return TTensor
	case "channel":
		if !arity(1) {
			return nil
		}
		return Channel(args[0])
	case "vec":
		if !arity(1) {
			return nil
		}
		return Vec(args[0])
	case "Result":
		if !arity(2) {
			return nil
		}
		return Result(args[0], args[1])
	case "Option":
		if !arity(1) {
			return nil
		}
		return Option(args[0])
	}
	if tps[nt.Name] {
		if !arity(0) {
			return nil
		}
		return Param(nt.Name)
	}
	if si, ok := e.Structs[nt.Name]; ok {
		if !arity(len(si.TypeParams)) {
			return nil
		}
		return &Type{Kind: KStruct, Name: nt.Name, Args: args}
	}
	if ei, ok := e.Enums[nt.Name]; ok {
		if !arity(len(ei.TypeParams)) {
			return nil
		}
		return &Type{Kind: KEnum, Name: nt.Name, Args: args}
	}
	diags.Addf(core.KindUnknownSymbol, nt.Span(), "unknown type %s", nt.Name)
	return nil
}

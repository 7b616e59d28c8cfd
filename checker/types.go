// Package checker implements name resolution, bidirectional type checking,
// generic trait-bound solving, and match exhaustiveness over the parsed AST.
package checker

import "strings"

// Kind discriminates the semantic type representation.
type Kind int

const (
	KInt Kind = iota
	KBool
	KStr
	KUnit
	KBuffer
	KView
	KTensor
	KChannel
	KVec
	KStruct
	KEnum
	KResult
	KOption
	KParam // unresolved generic type parameter
)

// Type is the checker's semantic type. Name is set for KStruct, KEnum and
// KParam; Args carries generic arguments (Result has two, Option and Vec and
// Channel one, user types as declared).
type Type struct {
	Kind Kind
	Name string
	Args []*Type
}

var (
	TInt    = &Type{Kind: KInt}
	TBool   = &Type{Kind: KBool}
	TStr    = &Type{Kind: KStr}
	TUnit   = &Type{Kind: KUnit}
	TBuffer = &Type{Kind: KBuffer}
	TView   = &Type{Kind: KView}
	TTensor = &Type{Kind: KTensor}
)

func Result(ok, err *Type) *Type { return &Type{Kind: KResult, Args: []*Type{ok, err}} }
func Option(t *Type) *Type       { return &Type{Kind: KOption, Args: []*Type{t}} }
func Vec(t *Type) *Type          { return &Type{Kind: KVec, Args: []*Type{t}} }
func Channel(t *Type) *Type      { return &Type{Kind: KChannel, Args: []*Type{t}} }
func Param(name string) *Type    { return &Type{Kind: KParam, Name: name} }

func (t *Type) String() string {
	switch t.Kind {
	case KInt:
		return "int"
	case KBool:
		return "bool"
	case KStr:
		return "str"
	case KUnit:
		return "unit"
	case KBuffer:
		return "buffer"
	case KView:
		return "view"
	case KTensor:
		return "tensor"
	case KChannel:
		return "channel<" + t.Args[0].String() + ">"
	case KVec:
		return "vec<" + t.Args[0].String() + ">"
	case KResult:
		return "Result<" + t.Args[0].String() + ", " + t.Args[1].String() + ">"
	case KOption:
		return "Option<" + t.Args[0].String() + ">"
	case KParam:
		return t.Name
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// Equal is deep structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || t.Name != o.Name || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// Subst is a substitution from type-parameter names to concrete types.
type Subst map[string]*Type

// Apply rewrites parameters in t according to s.
func (s Subst) Apply(t *Type) *Type {
	if t == nil {
		return nil
	}
	if t.Kind == KParam {
		if r, ok := s[t.Name]; ok {
			return r
		}
		return t
	}
	if len(t.Args) == 0 {
		return t
	}
	args := make([]*Type, len(t.Args))
	for i, a := range t.Args {
		args[i] = s.Apply(a)
	}
	return &Type{Kind: t.Kind, Name: t.Name, Args: args}
}

// Key renders the substitution for a given parameter order, used to key
// monomorphization caches.
func (s Subst) Key(order []string) string {
	parts := make([]string, len(order))
	for i, n := range order {
		if t, ok := s[n]; ok {
			parts[i] = t.String()
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ",")
}

// unify matches pattern (which may contain parameters) against concrete,
// extending s. Returns false on shape mismatch.
func unify(pattern, concrete *Type, s Subst) bool {
	if pattern == nil || concrete == nil {
		return pattern == concrete
	}
	if pattern.Kind == KParam {
		if bound, ok := s[pattern.Name]; ok {
			return bound.Equal(concrete)
		}
		s[pattern.Name] = concrete
		return true
	}
	if pattern.Kind != concrete.Kind || pattern.Name != concrete.Name ||
		len(pattern.Args) != len(concrete.Args) {
		return false
	}
	for i := range pattern.Args {
		if !unify(pattern.Args[i], concrete.Args[i], s) {
			return false
		}
	}
	return true
}

// HasParam reports whether t mentions any type parameter.
func (t *Type) HasParam() bool {
	if t == nil {
		return false
	}
	if t.Kind == KParam {
		return true
	}
	for _, a := range t.Args {
		if a.HasParam() {
			return true
		}
	}
	return false
}

package ast

import (
	"strings"

	"github.com/ZAPPYcore/DAISY/core"
)

// TypeExpr is a syntactic type reference. Builtin names (int, bool, str,
// buffer, view, tensor, Result, Option) and user types share one node; the
// checker resolves them.
type TypeExpr interface {
	Node
	typeNode()
	TypeString() string
}

type NamedType struct {
	Sp   core.Span
	Name string
	Args []TypeExpr
}

func (*NamedType) typeNode() {}

func (t *NamedType) Span() core.Span { return t.Sp }

func (t *NamedType) TypeString() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.TypeString()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// NewNamedType builds a NamedType with a span; used by the parser.
func NewNamedType(sp core.Span, name string, args ...TypeExpr) *NamedType {
	return &NamedType{Sp: sp, Name: name, Args: args}
}

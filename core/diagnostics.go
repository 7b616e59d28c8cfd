package core

import (
	"fmt"
	"sort"
	"strings"
)

// Diagnostic kinds. These are part of the compiler's contract: tests and
// tooling match on them.
const (
	KindLexicalError               = "LexicalError"
	KindSyntaxError                = "SyntaxError"
	KindUnknownSymbol              = "UnknownSymbol"
	KindTypeMismatch               = "TypeMismatch"
	KindUnresolvedTraitBound       = "UnresolvedTraitBound"
	KindAmbiguousImpl              = "AmbiguousImpl"
	KindGenericArityMismatch       = "GenericArityMismatch"
	KindNonExhaustiveMatch         = "NonExhaustiveMatch"
	KindUseAfterMove               = "UseAfterMove"
	KindBorrowAliasConflict        = "BorrowAliasConflict"
	KindReleaseWithLiveBorrow      = "ReleaseWithLiveBorrow"
	KindUnsafeWithoutJustification = "UnsafeWithoutJustification"
	KindAbiIncompatible            = "AbiIncompatible"
	KindImportCycle                = "ImportCycle"
	KindInternalError              = "InternalError"
)

// Label attaches a secondary span to a diagnostic, e.g. the move origin of a
// use-after-move conflict.
type Label struct {
	Span    Span   `json:"span"`
	Message string `json:"message"`
}

// Diagnostic is one structured compile-time error.
type Diagnostic struct {
	Kind      string  `json:"kind"`
	Span      Span    `json:"span"`
	Message   string  `json:"message"`
	Secondary []Label `json:"secondary,omitempty"`
	File      string  `json:"file,omitempty"`
}

func (d Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s at %s", d.Kind, d.Message, d.Span)
	for _, l := range d.Secondary {
		fmt.Fprintf(&b, "; %s at %s", l.Message, l.Span)
	}
	return b.String()
}

// Diagnostics accumulates errors across phases for one module.
type Diagnostics struct {
	list []Diagnostic
}

func (ds *Diagnostics) Add(d Diagnostic) { ds.list = append(ds.list, d) }

func (ds *Diagnostics) Addf(kind string, span Span, format string, args ...any) {
	ds.Add(Diagnostic{Kind: kind, Span: span, Message: fmt.Sprintf(format, args...)})
}

func (ds *Diagnostics) HasErrors() bool { return len(ds.list) > 0 }
func (ds *Diagnostics) Len() int        { return len(ds.list) }

// All returns diagnostics ordered by source position, then kind, so output
// is stable regardless of analysis order.
func (ds *Diagnostics) All() []Diagnostic {
	out := make([]Diagnostic, len(ds.list))
	copy(out, ds.list)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// ByKind filters diagnostics of one kind.
func (ds *Diagnostics) ByKind(kind string) []Diagnostic {
	var out []Diagnostic
	for _, d := range ds.list {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Mark returns a checkpoint for speculative parsing.
func (ds *Diagnostics) Mark() int { return len(ds.list) }

// Rollback discards diagnostics recorded after the checkpoint. Used when a
// speculative parse is abandoned.
func (ds *Diagnostics) Rollback(mark int) {
	if mark >= 0 && mark <= len(ds.list) {
		ds.list = ds.list[:mark]
	}
}

// Merge appends all diagnostics from other.
func (ds *Diagnostics) Merge(other *Diagnostics) {
	if other != nil {
		ds.list = append(ds.list, other.list...)
	}
}

package checker

import (
	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
	"strings"
)

// checkMatch types a match statement: the scrutinee, each arm's pattern and
// guard, and syntactic exhaustiveness over enum constructors and struct
// shapes. Guarded arms never count toward exhaustiveness.
func (c *checker) checkMatch(m *ast.Match) {
	st := c.checkExpr(m.Scrutinee, nil)
	if st == nil {
		return
	}
	covered := map[string]bool{}
	haveCatchAll := false
	for _, arm := range m.Arms {
		c.push()
		c.checkPattern(arm.Pat, st)
		if arm.Guard != nil {
			c.checkExpr(arm.Guard, TBool)
		}
		c.checkBlock(arm.Body)
		c.pop()
		if arm.Guard != nil {
			continue
		}
		switch p := arm.Pat.(type) {
		case *ast.WildcardPat, *ast.BindPat:
			haveCatchAll = true
		case *ast.EnumVariantPat:
			if irrefutableElems(p.Elems) {
				covered[p.Path[len(p.Path)-1]] = true
			}
		case *ast.StructPat:
			all := true
			for _, f := range p.Fields {
				if !irrefutable(f.Pat) {
					all = false
				}
			}
			if all {
				haveCatchAll = true
			}
		case *ast.BoolPat:
			if p.Value {
				covered["true"] = true
			} else {
				covered["false"] = true
			}
		}
	}
	if haveCatchAll {
		return
	}
	switch st.Kind {
	case KEnum:
		ei := c.env.Enums[st.Name]
		if ei == nil {
			return
		}
		var missing []string
		for _, v := range ei.Variants {
			if !covered[v.Name] {
				missing = append(missing, v.Name)
			}
		}
		if len(missing) > 0 {
			c.diags.Addf(core.KindNonExhaustiveMatch, m.Span(),
				"match on %s does not cover %s", st.Name, strings.Join(missing, ", "))
		}
	case KBool:
		if !covered["true"] || !covered["false"] {
			c.diags.Addf(core.KindNonExhaustiveMatch, m.Span(), "match on bool does not cover both values")
		}
	default:
		c.diags.Addf(core.KindNonExhaustiveMatch, m.Span(),
			"match on %s needs a wildcard or binding arm", st)
	}
}

func irrefutable(p ast.Pattern) bool {
	switch p := p.(type) {
	case *ast.WildcardPat, *ast.BindPat:
		return true
	case *ast.StructPat:
		for _, f := range p.Fields {
			if !irrefutable(f.Pat) {
				return false
			}
		}
		return true
	}
	return false
}

func irrefutableElems(ps []ast.Pattern) bool {
	for _, p := range ps {
		if !irrefutable(p) {
			return false
		}
	}
	return true
}

// checkPattern types a pattern against the scrutinee type, binding names.
func (c *checker) checkPattern(p ast.Pattern, t *Type) {
	switch p := p.(type) {
	case *ast.WildcardPat:
	case *ast.BindPat:
		c.bind(p.Name, t)
		c.info.Binds[p] = t
	case *ast.IntPat:
		if t.Kind != KInt {
			c.diags.Addf(core.KindTypeMismatch, p.Span(), "integer pattern against %s", t)
		}
	case *ast.StrPat:
		if t.Kind != KStr {
			c.diags.Addf(core.KindTypeMismatch, p.Span(), "string pattern against %s", t)
		}
	case *ast.BoolPat:
		if t.Kind != KBool {
			c.diags.Addf(core.KindTypeMismatch, p.Span(), "bool pattern against %s", t)
		}
	case *ast.EnumVariantPat:
		c.checkEnumPattern(p, t)
	case *ast.StructPat:
		if t.Kind != KStruct || t.Name != p.Name {
			c.diags.Addf(core.KindTypeMismatch, p.Span(), "struct pattern %s against %s", p.Name, t)
			return
		}
		si := c.env.Structs[p.Name]
		if si == nil {
			return
		}
		sub := bindParams(si.TypeParams, t.Args)
		for _, f := range p.Fields {
			var ft *Type
			for _, fi := range si.Fields {
				if fi.Name == f.Name {
					ft = sub.Apply(fi.Type)
				}
			}
			if ft == nil {
				c.diags.Addf(core.KindUnknownSymbol, f.Sp, "struct %s has no field %s", p.Name, f.Name)
				continue
			}
			c.checkPattern(f.Pat, ft)
		}
	}
}

func (c *checker) checkEnumPattern(p *ast.EnumVariantPat, t *Type) {
	variant := p.Path[len(p.Path)-1]
	var ei *EnumInfo
	switch {
	case len(p.Path) == 2:
		ei = c.env.Enums[p.Path[0]]
	case t.Kind == KEnum:
		ei = c.env.Enums[t.Name]
	}
	if ei == nil {
		c.diags.Addf(core.KindUnknownSymbol, p.Span(), "unknown enum in pattern")
		return
	}
	if t.Kind != KEnum || t.Name != ei.Name {
		c.diags.Addf(core.KindTypeMismatch, p.Span(), "pattern %s.%s against %s", ei.Name, variant, t)
		return
	}
	vi := ei.Variant(variant)
	if vi == nil {
		c.diags.Addf(core.KindUnknownSymbol, p.Span(), "enum %s has no variant %s", ei.Name, variant)
		return
	}
	if len(p.Elems) != len(vi.Elems) {
		c.diags.Addf(core.KindTypeMismatch, p.Span(), "%s.%s has %d element(s), pattern has %d",
			ei.Name, variant, len(vi.Elems), len(p.Elems))
		return
	}
	sub := bindParams(ei.TypeParams, t.Args)
	for i, sp := range p.Elems {
		c.checkPattern(sp, sub.Apply(vi.Elems[i]))
	}
}

package checker

import (
	"sort"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
)

// checkCall resolves and types one call site. Resolution order: the
// expectation-driven constructors, spawn, the runtime builtin facade, local
// functions, trait methods in scope, then qualified paths (module alias or
// enum variant constructor).
func (c *checker) checkCall(e *ast.Call, expected *Type) *Type {
	path, ok := e.Callee.(*ast.Path)
	if !ok {
		c.diags.Addf(core.KindTypeMismatch, e.Span(), "expression is not callable")
		return nil
	}
	if name := path.Ident(); name != "" {
		switch name {
		case "ok", "err", "some", "none":
			return c.checkCtor(e, name, expected)
		case "unwrap":
			return c.checkUnwrap(e)
		case "spawn":
			return c.checkSpawn(e)
		}
		if b, ok := Builtins[name]; ok {
			return c.checkBuiltinCall(e, b)
		}
		if fi, ok := c.env.Funcs[name]; ok {
			return c.checkFuncCall(e, fi)
		}
		if t := c.checkTraitMethodCall(e, name); t != nil {
			return t
		}
		c.diags.Addf(core.KindUnknownSymbol, e.Span(), "unknown function %s", name)
		return nil
	}
	if len(path.Segs) == 2 {
		if dep, ok := c.env.Aliases[path.Segs[0]]; ok {
			fi, ok := dep.Funcs[path.Segs[1]]
			if !ok || !fi.Public {
				c.diags.Addf(core.KindUnknownSymbol, e.Span(),
					"module %s has no public function %s", path.Segs[0], path.Segs[1])
				return nil
			}
			return c.checkFuncCall(e, fi)
		}
		if ei, ok := c.env.Enums[path.Segs[0]]; ok {
			return c.checkVariantCall(e, ei, path.Segs[1], expected)
		}
	}
	c.diags.Addf(core.KindUnknownSymbol, e.Span(), "unknown function %s", path.Segs[0])
	return nil
}

// checkCtor types ok/err/some/none. The missing side of the constructed
// type comes from the expectation; a constructor with no expectation and no
// way to complete the type is an error.
func (c *checker) checkCtor(e *ast.Call, name string, expected *Type) *Type {
	argc := map[string]int{"ok": 1, "err": 1, "some": 1, "none": 0}[name]
	if len(e.Args) != argc {
		c.diags.Addf(core.KindTypeMismatch, e.Span(), "%s takes %d argument(s), got %d", name, argc, len(e.Args))
		return nil
	}
	ci := &CallInfo{Builtin: name}
	c.info.Calls[e] = ci
	var payload *Type
	if argc == 1 {
		payload = c.checkExpr(e.Args[0], nil)
		if payload == nil {
			return nil
		}
	}
	switch name {
	case "ok":
		if expected != nil && expected.Kind == KResult {
			c.checkExpr(e.Args[0], expected.Args[0])
			return expected
		}
	case "err":
		if expected != nil && expected.Kind == KResult {
			c.checkExpr(e.Args[0], expected.Args[1])
			return expected
		}
	case "some":
		if expected != nil && expected.Kind == KOption {
			c.checkExpr(e.Args[0], expected.Args[0])
			return expected
		}
		return Option(payload)
	case "none":
		if expected != nil && expected.Kind == KOption {
			return expected
		}
	}
	c.diags.Addf(core.KindTypeMismatch, e.Span(),
		"cannot infer the full type of %s() here; add an annotation", name)
	return nil
}

func (c *checker) checkUnwrap(e *ast.Call) *Type {
	if len(e.Args) != 1 {
		c.diags.Addf(core.KindTypeMismatch, e.Span(), "unwrap takes 1 argument, got %d", len(e.Args))
		return nil
	}
	t := c.checkExpr(e.Args[0], nil)
	if t == nil {
		return nil
	}
	c.info.Calls[e] = &CallInfo{Builtin: "unwrap"}
	switch t.Kind {
	case KResult, KOption:
		return t.Args[0]
	}
	c.diags.Addf(core.KindTypeMismatch, e.Span(), "unwrap needs Result or Option, got %s", t)
	return nil
}

// checkSpawn types spawn(f) and spawn(f, ch). The first argument names a
// function; it is not a value.
func (c *checker) checkSpawn(e *ast.Call) *Type {
	if len(e.Args) < 1 || len(e.Args) > 2 {
		c.diags.Addf(core.KindTypeMismatch, e.Span(), "spawn takes 1 or 2 arguments, got %d", len(e.Args))
		return nil
	}
	path, ok := e.Args[0].(*ast.Path)
	if !ok || path.Ident() == "" {
		c.diags.Addf(core.KindTypeMismatch, e.Args[0].Span(), "spawn's first argument must name a function")
		return nil
	}
	fi, ok := c.env.Funcs[path.Ident()]
	if !ok {
		c.diags.Addf(core.KindUnknownSymbol, e.Args[0].Span(), "unknown function %s", path.Ident())
		return nil
	}
	if len(fi.TypeParams) > 0 {
		c.diags.Addf(core.KindTypeMismatch, e.Args[0].Span(), "cannot spawn a generic function")
		return nil
	}
	ci := &CallInfo{Builtin: "spawn", Spawn: fi}
	c.info.Calls[e] = ci
	if len(e.Args) == 2 {
		cht := c.checkExpr(e.Args[1], nil)
		if cht == nil || cht.Kind != KChannel {
			c.diags.Addf(core.KindTypeMismatch, e.Args[1].Span(), "spawn's second argument must be a channel")
			return nil
		}
		if len(fi.Params) != 1 || !fi.Params[0].Equal(cht) {
			c.diags.Addf(core.KindTypeMismatch, e.Args[0].Span(),
				"%s must take exactly one %s parameter to be spawned with a channel", fi.Name, cht)
		}
	} else if len(fi.Params) != 0 {
		c.diags.Addf(core.KindTypeMismatch, e.Args[0].Span(), "%s takes parameters; spawn it with a channel", fi.Name)
	}
	return TUnit
}

func (c *checker) checkBuiltinCall(e *ast.Call, b *Builtin) *Type {
	sub := Subst{}
	if len(e.TypeArgs) > 0 {
		if len(e.TypeArgs) != len(b.TypeParams) {
			c.diags.Addf(core.KindGenericArityMismatch, e.Span(),
				"%s takes %d type argument(s), got %d", b.Name, len(b.TypeParams), len(e.TypeArgs))
			return nil
		}
		for i, ta := range e.TypeArgs {
			at := c.env.resolveTypeExpr(ta, c.tps, c.diags)
			if at == nil {
				return nil
			}
			sub[b.TypeParams[i]] = at
		}
	}
	if len(e.Args) != len(b.Params) {
		c.diags.Addf(core.KindTypeMismatch, e.Span(), "%s takes %d argument(s), got %d", b.Name, len(b.Params), len(e.Args))
		return nil
	}
	for i, a := range e.Args {
		want := sub.Apply(b.Params[i])
		if want.HasParam() {
			at := c.checkExpr(a, nil)
			if at != nil && !unify(want, at, sub) {
				c.diags.Addf(core.KindTypeMismatch, a.Span(), "argument %d of %s: expected %s, got %s", i+1, b.Name, want, at)
			}
		} else {
			c.checkExpr(a, want)
		}
	}
	ret := sub.Apply(b.Ret)
	if ret.HasParam() {
		c.diags.Addf(core.KindGenericArityMismatch, e.Span(),
			"cannot infer type arguments of %s; write %s<T>(...)", b.Name, b.Name)
		return nil
	}
	c.info.Calls[e] = &CallInfo{Builtin: b.Name, Subst: sub}
	return ret
}

// checkFuncCall types a call to a user function, solving generics and trait
// bounds.
func (c *checker) checkFuncCall(e *ast.Call, fi *FuncInfo) *Type {
	sub := Subst{}
	if len(e.TypeArgs) > 0 {
		if len(e.TypeArgs) != len(fi.TypeParams) {
			c.diags.Addf(core.KindGenericArityMismatch, e.Span(),
				"%s takes %d type argument(s), got %d", fi.Name, len(fi.TypeParams), len(e.TypeArgs))
			return nil
		}
		for i, ta := range e.TypeArgs {
			at := c.env.resolveTypeExpr(ta, c.tps, c.diags)
			if at == nil {
				return nil
			}
			sub[fi.TypeParams[i].Name] = at
		}
	}
	if len(e.Args) != len(fi.Params) {
		c.diags.Addf(core.KindTypeMismatch, e.Span(), "%s takes %d argument(s), got %d", fi.Name, len(fi.Params), len(e.Args))
		return nil
	}
	for i, a := range e.Args {
		want := sub.Apply(fi.Params[i])
		if want.HasParam() {
			at := c.checkExpr(a, nil)
			if at != nil && !unify(want, at, sub) {
				c.diags.Addf(core.KindTypeMismatch, a.Span(), "argument %d of %s: expected %s, got %s", i+1, fi.Name, want, at)
			}
		} else {
			c.checkExpr(a, want)
		}
	}
	for _, tp := range fi.TypeParams {
		concrete, bound := sub[tp.Name]
		if !bound {
			c.diags.Addf(core.KindGenericArityMismatch, e.Span(),
				"cannot infer type parameter %s of %s", tp.Name, fi.Name)
			return nil
		}
		c.checkBounds(e.Span(), tp.Name, tp.Bounds, concrete)
	}
	c.info.Calls[e] = &CallInfo{Func: fi, Subst: sub}
	return sub.Apply(fi.Ret)
}

// checkBounds solves one parameter's trait bounds against the impls in
// scope. Inside a generic function a parameter may be instantiated with
// another parameter; the bound is then checked structurally against the
// caller's declared bounds and resolved again at monomorphization.
func (c *checker) checkBounds(span core.Span, param string, bounds []string, concrete *Type) {
	for _, bound := range bounds {
		if concrete.Kind == KParam {
			ok := false
			for _, b := range c.bounds[concrete.Name] {
				if b == bound {
					ok = true
				}
			}
			if !ok {
				c.diags.Addf(core.KindUnresolvedTraitBound, span,
					"type parameter %s does not carry the bound %s required by %s", concrete.Name, bound, param)
			}
			continue
		}
		impls := c.env.FindImpls(bound, concrete)
		switch {
		case len(impls) == 0:
			c.diags.Addf(core.KindUnresolvedTraitBound, span,
				"no impl of %s for %s satisfies the bound on %s", bound, concrete, param)
		case len(impls) > 1:
			c.diags.Addf(core.KindAmbiguousImpl, span,
				"multiple impls of %s for %s; the bound on %s is ambiguous", bound, concrete, param)
		}
	}
}

// checkTraitMethodCall resolves a bare call to a trait method visible via
// the impls in scope. Self in the signature unifies with the arguments.
func (c *checker) checkTraitMethodCall(e *ast.Call, name string) *Type {
	// stable trait order keeps resolution deterministic
	traitNames := make([]string, 0, len(c.env.Traits))
	for n := range c.env.Traits {
		traitNames = append(traitNames, n)
	}
	sort.Strings(traitNames)
	for _, tn := range traitNames {
		ti := c.env.Traits[tn]
		for _, sig := range ti.Methods {
			if sig.Name != name {
				continue
			}
			tps := map[string]bool{"Self": true}
			params := make([]*Type, len(sig.Params))
			for i, p := range sig.Params {
				params[i] = c.env.resolveTypeExpr(p.Type, tps, c.diags)
				if params[i] == nil {
					return nil
				}
			}
			if len(e.Args) != len(params) {
				continue
			}
			sub := Subst{}
			okAll := true
			for i, a := range e.Args {
				at := c.checkExpr(a, nil)
				if at == nil || !unify(params[i], at, sub) {
					okAll = false
					break
				}
			}
			if !okAll {
				continue
			}
			self := sub["Self"]
			if self != nil {
				c.checkBounds(e.Span(), "Self", []string{ti.Name}, self)
			}
			var ret *Type = TUnit
			if sig.Ret != nil {
				ret = c.env.resolveTypeExpr(sig.Ret, tps, c.diags)
				if ret == nil {
					return nil
				}
				ret = sub.Apply(ret)
			}
			c.info.Calls[e] = &CallInfo{Trait: ti.Name, Method: name, Subst: sub}
			return ret
		}
	}
	return nil
}

// checkVariantCall types Enum.Variant(args) construction.
func (c *checker) checkVariantCall(e *ast.Call, ei *EnumInfo, variant string, expected *Type) *Type {
	vi := ei.Variant(variant)
	if vi == nil {
		c.diags.Addf(core.KindUnknownSymbol, e.Span(), "enum %s has no variant %s", ei.Name, variant)
		return nil
	}
	if len(e.Args) != len(vi.Elems) {
		c.diags.Addf(core.KindTypeMismatch, e.Span(), "%s.%s takes %d argument(s), got %d",
			ei.Name, variant, len(vi.Elems), len(e.Args))
		return nil
	}
	sub := Subst{}
	if len(e.TypeArgs) > 0 {
		if len(e.TypeArgs) != len(ei.TypeParams) {
			c.diags.Addf(core.KindGenericArityMismatch, e.Span(),
				"%s takes %d type argument(s), got %d", ei.Name, len(ei.TypeParams), len(e.TypeArgs))
			return nil
		}
		for i, ta := range e.TypeArgs {
			at := c.env.resolveTypeExpr(ta, c.tps, c.diags)
			if at == nil {
				return nil
			}
			sub[ei.TypeParams[i]] = at
		}
	} else if expected != nil && expected.Kind == KEnum && expected.Name == ei.Name {
		sub = bindParams(ei.TypeParams, expected.Args)
	}
	for i, a := range e.Args {
		want := sub.Apply(vi.Elems[i])
		if want.HasParam() {
			at := c.checkExpr(a, nil)
			if at != nil && !unify(want, at, sub) {
				c.diags.Addf(core.KindTypeMismatch, a.Span(), "argument %d of %s.%s: expected %s, got %s",
					i+1, ei.Name, variant, want, at)
			}
		} else {
			c.checkExpr(a, want)
		}
	}
	var args []*Type
	for _, tp := range ei.TypeParams {
		t, ok := sub[tp]
		if !ok {
			c.diags.Addf(core.KindGenericArityMismatch, e.Span(),
				"cannot infer type parameter %s of %s", tp, ei.Name)
			return nil
		}
		args = append(args, t)
	}
	c.info.Calls[e] = &CallInfo{Enum: ei, Variant: vi, EnumArgs: args, Subst: sub}
	return &Type{Kind: KEnum, Name: ei.Name, Args: args}
}

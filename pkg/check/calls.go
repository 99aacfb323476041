package check

import (
	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/symbols"
	"github.com/pyrite-lang/pyrite/pkg/types"
)

func (c *Checker) inferCall(t *ast.Call, scope *symbols.Scope, f *flow) types.Type {
	argTypes := make([]types.Type, len(t.Args))
	for i, arg := range t.Args {
		argTypes[i] = c.inferExpr(arg.Value, scope, f)
	}

	// A named callee may carry an overload group or a class; those need
	// the symbol, not just its type.
	if sym, ok := c.calleeSymbol(t.Fn, scope, f); ok {
		if sym.Overloads != nil {
			return c.resolveOverload(t, sym.Overloads, argTypes)
		}
		if sym.Kind == symbols.ClassSymbol && sym.Class != nil {
			return c.checkConstructor(t, sym.Class, argTypes)
		}
	}

	fnT := c.inferExpr(t.Fn, scope, f)
	switch ft := fnT.(type) {
	case types.Callable:
		return c.checkCallable(t, ft, argTypes)
	case types.Instance:
		// Calling an instance: dispatch through __call__, if any.
		if member, ok := c.lookupMember(ft, "__call__"); ok {
			if sig, isFn := member.Type().(types.Callable); isFn {
				return c.checkCallable(t, sig, argTypes)
			}
		}
	}
	if fnT.Eq(types.Any) {
		return types.Any
	}

	c.diags.Errorf(CodeNotCallable, t.Position(), "type %s is not callable", fnT)
	return types.Any
}

// calleeSymbol resolves the symbol a call expression names, when the
// callee is a plain name or an attribute on a known receiver.
func (c *Checker) calleeSymbol(fn ast.Expr, scope *symbols.Scope, f *flow) (*symbols.Symbol, bool) {
	switch e := fn.(type) {
	case *ast.Name:
		sym, ok := scope.Lookup(e.Ident)
		return sym, ok
	case *ast.Attribute:
		if base, ok := e.Value.(*ast.Name); ok {
			if target, isModule := c.ma.importTargets[base.Ident]; isModule {
				if dep := c.ma.deps[target]; dep != nil {
					return dep.Export(e.Attr)
				}
				return nil, false
			}
		}
		recv := c.silentTypeOf(e.Value, scope, f)
		return c.lookupMember(recv, e.Attr)
	}
	return nil, false
}

// resolveOverload picks the first signature, in declaration order, that
// accepts the arguments. No match reports a diagnostic and yields Any.
func (c *Checker) resolveOverload(t *ast.Call, group *symbols.OverloadGroup, argTypes []types.Type) types.Type {
	for _, sig := range group.Signatures {
		if c.signatureAccepts(t, sig, argTypes) {
			inst, vars := c.fresh.InstantiateVars(sig)
			ret, _ := c.bindCall(t, inst, vars, argTypes, false)
			return ret
		}
	}
	c.diags.Errorf(CodeNoMatchingOverload, t.Position(),
		"no overload of %q matches arguments %s", group.Name, renderArgs(argTypes))
	return types.Any
}

// signatureAccepts reports whether a call's arguments satisfy a
// signature without emitting diagnostics.
func (c *Checker) signatureAccepts(t *ast.Call, sig types.Callable, argTypes []types.Type) bool {
	inst, vars := c.fresh.InstantiateVars(sig)
	_, ok := c.bindCall(t, inst, vars, argTypes, true)
	return ok
}

// checkCallable verifies a call against one concrete signature,
// reporting argument mismatches, and returns the (possibly generic)
// result type.
func (c *Checker) checkCallable(t *ast.Call, sig types.Callable, argTypes []types.Type) types.Type {
	inst, vars := c.fresh.InstantiateVars(sig)
	ret, _ := c.bindCall(t, inst, vars, argTypes, false)
	return ret
}

// bindCall matches arguments to parameters, unifies free type
// variables against argument types, and substitutes them into the
// return type. With quiet set it only answers whether the call is
// well-typed.
func (c *Checker) bindCall(t *ast.Call, sig types.Callable, vars []*types.TypeVar, argTypes []types.Type, quiet bool) (types.Type, bool) {
	bindings := make(types.Subs)
	free := make(map[string]bool, len(vars))
	for _, tv := range vars {
		free[tv.ID] = true
	}

	assigned := make([]bool, len(sig.Params))
	ok := true

	report := func(pos ast.Pos, format string, args ...any) {
		ok = false
		if !quiet {
			c.diags.Errorf(CodeBadArguments, pos, format, args...)
		}
	}

	positional := 0
	for i, arg := range t.Args {
		var paramIdx int = -1
		if arg.Name == "" {
			if positional < len(sig.Params) && sig.Params[positional].Kind != types.VariadicParam {
				paramIdx = positional
				positional++
			} else if positional < len(sig.Params) {
				paramIdx = positional // variadic swallows the rest
			} else {
				report(t.Position(), "too many arguments: expected %d", len(sig.Params))
				break
			}
		} else {
			for j, p := range sig.Params {
				if p.Name == arg.Name {
					paramIdx = j
					break
				}
			}
			if paramIdx == -1 {
				report(arg.Value.Position(), "no parameter named %q", arg.Name)
				continue
			}
			if assigned[paramIdx] {
				report(arg.Value.Position(), "parameter %q assigned twice", arg.Name)
				continue
			}
		}

		param := sig.Params[paramIdx]
		assigned[paramIdx] = true
		at := argTypes[i]

		want := types.Substitute(param.Type, bindings)
		if !unifyArg(want, at, free, bindings) {
			report(arg.Value.Position(),
				"argument %d: cannot use %s as %s", i+1, at, want)
		}
	}

	for i, p := range sig.Params {
		if assigned[i] || p.Kind != types.PositionalParam {
			continue
		}
		report(t.Position(), "missing argument for parameter %q", p.Name)
	}

	ret := types.Substitute(sig.Ret, bindings)
	// Free variables nothing constrained collapse to Any.
	if leftovers := unresolvedVars(ret, free, bindings); len(leftovers) > 0 {
		fill := make(types.Subs, len(leftovers))
		for id := range leftovers {
			fill[id] = types.Any
		}
		ret = types.Substitute(ret, fill)
	}
	return ret, ok
}

// unifyArg checks an argument against a parameter type, binding free
// type variables on first use and joining on repeats.
func unifyArg(want, got types.Type, free map[string]bool, bindings types.Subs) bool {
	if tv, isVar := want.(*types.TypeVar); isVar && free[tv.ID] {
		if tv.Bound != nil && !types.Subtype(got, tv.Bound) {
			return false
		}
		if prev, bound := bindings[tv.ID]; bound {
			bindings[tv.ID] = types.Join(prev, got)
		} else {
			bindings[tv.ID] = got
		}
		return true
	}

	// Structural descent so list[T] unifies against list[int].
	if wi, okW := want.(types.Instance); okW {
		if gi, okG := got.(types.Instance); okG && wi.Class == gi.Class && len(wi.TypeArgs) == len(gi.TypeArgs) {
			for i := range wi.TypeArgs {
				if !unifyArg(wi.TypeArgs[i], gi.TypeArgs[i], free, bindings) {
					return false
				}
			}
			return true
		}
	}
	if wt, okW := want.(types.Tuple); okW {
		if gt, okG := got.(types.Tuple); okG && len(wt.Items) == len(gt.Items) {
			for i := range wt.Items {
				if !unifyArg(wt.Items[i], gt.Items[i], free, bindings) {
					return false
				}
			}
			return true
		}
	}

	return types.Subtype(got, want)
}

// unresolvedVars collects free type variables of t that never got a
// binding.
func unresolvedVars(t types.Type, free map[string]bool, bindings types.Subs) map[string]bool {
	out := make(map[string]bool)
	for id := range t.FreeTypeVars() {
		if free[id] {
			if _, bound := bindings[id]; !bound {
				out[id] = true
			}
		}
	}
	return out
}

// checkConstructor types `C(args)` as an instance of C, checking the
// arguments against __init__ when the class declares one.
func (c *Checker) checkConstructor(t *ast.Call, classInfo *symbols.ClassInfo, argTypes []types.Type) types.Type {
	class := classInfo.Class

	initSym, ok := classInfo.MemberLookup("__init__")
	if !ok {
		// No initializer anywhere in the MRO: accept any arguments.
		return types.NewInstance(class)
	}

	if initSym.Overloads != nil {
		c.resolveOverload(t, initSym.Overloads, argTypes)
		return types.NewInstance(class)
	}

	sig, isFn := initSym.Type().(types.Callable)
	if !isFn {
		return types.NewInstance(class)
	}

	if len(class.TypeParams) == 0 {
		c.checkCallable(t, sig, argTypes)
		return types.NewInstance(class)
	}

	// Generic class: infer type arguments from the constructor call.
	generic := types.Callable{
		Params:   sig.Params,
		Ret:      sig.Ret,
		TypeVars: append(append([]*types.TypeVar{}, sig.TypeVars...), class.TypeParams...),
	}
	inst, vars := c.fresh.InstantiateVars(generic)

	// Fresh variables come back in declaration order; recover which
	// fresh variable stands for each class parameter.
	remap := make(map[string]string, len(class.TypeParams))
	for i, tp := range class.TypeParams {
		idx := len(sig.TypeVars) + i
		if idx < len(vars) {
			remap[tp.ID] = vars[idx].ID
		}
	}

	bindings := make(types.Subs)
	free := make(map[string]bool, len(vars))
	for _, tv := range vars {
		free[tv.ID] = true
	}
	for i, arg := range t.Args {
		if i >= len(inst.Params) {
			break
		}
		want := types.Substitute(inst.Params[i].Type, bindings)
		if !unifyArg(want, argTypes[i], free, bindings) {
			c.diags.Errorf(CodeBadArguments, arg.Value.Position(),
				"argument %d: cannot use %s as %s", i+1, argTypes[i], want)
		}
	}

	typeArgs := make([]types.Type, len(class.TypeParams))
	for i, tp := range class.TypeParams {
		freshID := remap[tp.ID]
		if bound, ok := bindings[freshID]; ok {
			typeArgs[i] = bound
		} else {
			typeArgs[i] = types.Any
		}
	}
	return types.NewInstance(class, typeArgs...)
}

func renderArgs(argTypes []types.Type) string {
	s := "("
	for i, at := range argTypes {
		if i > 0 {
			s += ", "
		}
		s += at.String()
	}
	return s + ")"
}

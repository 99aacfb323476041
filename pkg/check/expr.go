package check

import (
	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/symbols"
	"github.com/pyrite-lang/pyrite/pkg/types"
)

// inferExpr computes an expression's type at the current program point,
// reporting diagnostics for ill-typed subexpressions. Errors degrade to
// Any so one mistake does not cascade.
func (c *Checker) inferExpr(e ast.Expr, scope *symbols.Scope, f *flow) types.Type {
	switch t := e.(type) {
	case *ast.IntLit:
		return types.NewInstance(c.an.uni.Int)
	case *ast.FloatLit:
		return types.NewInstance(c.an.uni.Float)
	case *ast.StrLit:
		return types.NewInstance(c.an.uni.Str)
	case *ast.BoolLit:
		return types.NewInstance(c.an.uni.Bool)
	case *ast.NoneLit:
		return types.None

	case *ast.Name:
		return c.inferName(t, scope, f)

	case *ast.Attribute:
		return c.inferAttribute(t, scope, f)

	case *ast.Index:
		return c.inferIndex(t, scope, f)

	case *ast.Call:
		return c.inferCall(t, scope, f)

	case *ast.BinOp:
		return c.inferBinOp(t, scope, f)

	case *ast.BoolOp:
		return c.inferBoolOp(t, scope, f)

	case *ast.UnaryOp:
		operand := c.inferExpr(t.Operand, scope, f)
		if t.Op == ast.OpNot {
			return types.NewInstance(c.an.uni.Bool)
		}
		return operand

	case *ast.Compare:
		c.inferExpr(t.Left, scope, f)
		c.inferExpr(t.Right, scope, f)
		return types.NewInstance(c.an.uni.Bool)

	case *ast.TupleExpr:
		items := make([]types.Type, len(t.Items))
		for i, item := range t.Items {
			items[i] = c.inferExpr(item, scope, f)
		}
		return types.Tuple{Items: items}

	case *ast.ListExpr:
		if len(t.Items) == 0 {
			return types.NewInstance(c.an.uni.List, types.Any)
		}
		elem := c.inferExpr(t.Items[0], scope, f)
		for _, item := range t.Items[1:] {
			elem = types.Join(elem, c.inferExpr(item, scope, f))
		}
		return types.NewInstance(c.an.uni.List, elem)
	}
	return types.Any
}

func (c *Checker) inferName(t *ast.Name, scope *symbols.Scope, f *flow) types.Type {
	if narrowed, ok := f.vars[t.Ident]; ok {
		return narrowed
	}
	sym, ok := scope.Lookup(t.Ident)
	if !ok {
		c.diags.Errorf(CodeNameError, t.Position(), "name %q is not defined", t.Ident)
		return types.Any
	}
	return sym.Type()
}

func (c *Checker) inferAttribute(t *ast.Attribute, scope *symbols.Scope, f *flow) types.Type {
	if path := c.pathOf(t); path != "" {
		if narrowed, ok := f.vars[path]; ok {
			return narrowed
		}
	}

	// Module member access: `mod.name` where mod is a whole-module
	// import.
	if base, ok := t.Value.(*ast.Name); ok {
		if target, isModule := c.ma.importTargets[base.Ident]; isModule {
			return c.moduleMember(t, target)
		}
	}

	recv := c.inferExpr(t.Value, scope, f)
	return c.memberTypeOf(recv, t)
}

func (c *Checker) moduleMember(t *ast.Attribute, module string) types.Type {
	dep := c.ma.deps[module]
	if dep == nil {
		return types.Any
	}
	sym, ok := dep.Export(t.Attr)
	if !ok {
		c.diags.Errorf(CodeNameError, t.Position(),
			"module %q has no exported name %q", module, t.Attr)
		return types.Any
	}
	return sym.Type()
}

// memberTypeOf resolves an attribute against a receiver type, joining
// across union members. A receiver (or union member) without the
// attribute yields exactly one diagnostic for the whole access.
func (c *Checker) memberTypeOf(recv types.Type, t *ast.Attribute) types.Type {
	if recv.Eq(types.Any) {
		return types.Any
	}

	if u, ok := recv.(types.Union); ok {
		var result types.Type
		var missing []types.Type
		for _, m := range u.Members {
			member, found := c.lookupMember(m, t.Attr)
			if !found {
				missing = append(missing, m)
				continue
			}
			mt := member.Type()
			if result == nil {
				result = mt
			} else {
				result = types.Join(result, mt)
			}
		}
		if len(missing) > 0 {
			c.diags.Errorf(CodeMissingMember, t.Position(),
				"type %s has no attribute %q (missing on %s)", recv, t.Attr, types.NewUnion(missing...))
		}
		if result == nil {
			return types.Any
		}
		return result
	}

	member, ok := c.lookupMember(recv, t.Attr)
	if !ok {
		c.diags.Errorf(CodeMissingMember, t.Position(),
			"type %s has no attribute %q", recv, t.Attr)
		return types.Any
	}
	return member.Type()
}

// lookupMember finds an attribute symbol on a single (non-union)
// receiver type, searching the class's MRO.
func (c *Checker) lookupMember(recv types.Type, name string) (*symbols.Symbol, bool) {
	switch rt := recv.(type) {
	case types.Instance:
		info, ok := c.an.uni.ClassInfo(rt.Class)
		if !ok {
			return nil, false
		}
		sym, ok := info.MemberLookup(name)
		if !ok {
			return nil, false
		}
		if len(rt.TypeArgs) > 0 && len(rt.Class.TypeParams) > 0 {
			return c.specializeMember(sym, rt), true
		}
		return sym, true

	case types.LiteralType:
		return c.lookupMember(rt.Fallback, name)

	case *types.TypeVar:
		if rt.Bound != nil {
			return c.lookupMember(rt.Bound, name)
		}
	}
	return nil, false
}

// specializeMember substitutes the receiver's type arguments into a
// generic class member's type.
func (c *Checker) specializeMember(sym *symbols.Symbol, recv types.Instance) *symbols.Symbol {
	mapping := make(types.Subs, len(recv.Class.TypeParams))
	for i, tp := range recv.Class.TypeParams {
		if i < len(recv.TypeArgs) {
			mapping[tp.ID] = recv.TypeArgs[i]
		}
	}
	out := *sym
	if sym.Declared != nil {
		out.Declared = types.Substitute(sym.Declared, mapping)
	}
	if sym.Inferred != nil {
		out.Inferred = types.Substitute(sym.Inferred, mapping)
	}
	return &out
}

func (c *Checker) inferIndex(t *ast.Index, scope *symbols.Scope, f *flow) types.Type {
	if path := c.pathOf(t); path != "" {
		if narrowed, ok := f.vars[path]; ok {
			return narrowed
		}
	}

	recvT := c.inferExpr(t.Value, scope, f)
	idxT := c.inferExpr(t.Index, scope, f)

	switch rt := recvT.(type) {
	case types.Instance:
		switch rt.Class {
		case c.an.uni.List:
			c.requireIndexType(t, idxT, c.an.uni.Int)
			if len(rt.TypeArgs) == 1 {
				return rt.TypeArgs[0]
			}
			return types.Any
		case c.an.uni.Dict:
			if len(rt.TypeArgs) == 2 {
				if !types.Subtype(idxT, rt.TypeArgs[0]) {
					c.diags.Errorf(CodeTypeMismatch, t.Position(),
						"cannot index %s with key of type %s", recvT, idxT)
				}
				return rt.TypeArgs[1]
			}
			return types.Any
		case c.an.uni.Str:
			c.requireIndexType(t, idxT, c.an.uni.Int)
			return recvT
		}

	case types.Tuple:
		c.requireIndexType(t, idxT, c.an.uni.Int)
		if lit, ok := t.Index.(*ast.IntLit); ok {
			i := int(lit.Value)
			if i < 0 || i >= len(rt.Items) {
				c.diags.Errorf(CodeTypeMismatch, t.Position(),
					"tuple index %d out of range for %s", i, recvT)
				return types.Any
			}
			return rt.Items[i]
		}
		joined := types.Type(types.Never)
		for _, item := range rt.Items {
			joined = types.Join(joined, item)
		}
		return joined
	}

	if recvT.Eq(types.Any) {
		return types.Any
	}
	c.diags.Errorf(CodeTypeMismatch, t.Position(), "type %s is not indexable", recvT)
	return types.Any
}

func (c *Checker) requireIndexType(t *ast.Index, idxT types.Type, want *types.Class) {
	if !types.Subtype(idxT, types.NewInstance(want)) {
		c.diags.Errorf(CodeTypeMismatch, t.Position(),
			"index must be %s, got %s", want.Named, idxT)
	}
}

// inferBinOp applies the numeric and string operator rules: int op int
// is int, mixing int and float is float, str + str is str, and Any on
// either side is Any.
func (c *Checker) inferBinOp(t *ast.BinOp, scope *symbols.Scope, f *flow) types.Type {
	left := c.inferExpr(t.Left, scope, f)
	right := c.inferExpr(t.Right, scope, f)

	if left.Eq(types.Any) || right.Eq(types.Any) {
		return types.Any
	}

	intT := types.NewInstance(c.an.uni.Int)
	floatT := types.NewInstance(c.an.uni.Float)
	strT := types.NewInstance(c.an.uni.Str)

	leftNum := types.Subtype(left, intT) || types.Subtype(left, floatT)
	rightNum := types.Subtype(right, intT) || types.Subtype(right, floatT)
	if leftNum && rightNum {
		if t.Op == ast.OpDiv {
			return floatT
		}
		if types.Subtype(left, intT) && types.Subtype(right, intT) {
			return intT
		}
		return floatT
	}

	if t.Op == ast.OpAdd && types.Subtype(left, strT) && types.Subtype(right, strT) {
		return strT
	}
	if t.Op == ast.OpMul {
		// str * int repetition.
		if types.Subtype(left, strT) && types.Subtype(right, intT) {
			return strT
		}
	}

	c.diags.Errorf(CodeTypeMismatch, t.Position(),
		"operator not defined for %s and %s", left, right)
	return types.Any
}

// inferBoolOp types `and`/`or`, folding the left operand's narrowing
// into the right operand: in `x and x.f`, the right side sees x
// non-None.
func (c *Checker) inferBoolOp(t *ast.BoolOp, scope *symbols.Scope, f *flow) types.Type {
	left := c.inferExpr(t.Left, scope, f)

	rightFlow := f.clone()
	c.applyNarrowing(t.Left, t.Op == ast.OpAnd, scope, rightFlow)
	right := c.inferExpr(t.Right, scope, rightFlow)

	// `a and b` yields a-when-falsy or b; `a or b` yields a-when-truthy
	// or b. Without literal-truthiness evaluation, the join is sound.
	if t.Op == ast.OpOr {
		if u, ok := left.(types.Union); ok {
			// `x or default` drops None from the left side.
			return types.Join(u.Remove(types.None), right)
		}
	}
	return types.Join(left, right)
}

package check

import (
	"fmt"

	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/symbols"
	"github.com/pyrite-lang/pyrite/pkg/types"
)

// applyNarrowing refines f in place according to what holds when cond
// evaluates to truthy. Conditions the narrower does not understand
// leave the flow untouched.
func (c *Checker) applyNarrowing(cond ast.Expr, truthy bool, scope *symbols.Scope, f *flow) {
	switch e := cond.(type) {
	case *ast.UnaryOp:
		if e.Op == ast.OpNot {
			c.applyNarrowing(e.Operand, !truthy, scope, f)
		}

	case *ast.BoolOp:
		// `a and b` truthy means both held; `a or b` falsy means both
		// failed. The other polarities are ambiguous and narrow nothing.
		if (e.Op == ast.OpAnd && truthy) || (e.Op == ast.OpOr && !truthy) {
			c.applyNarrowing(e.Left, truthy, scope, f)
			c.applyNarrowing(e.Right, truthy, scope, f)
		}

	case *ast.Compare:
		c.narrowCompare(e, truthy, scope, f)

	case *ast.Call:
		c.narrowCall(e, truthy, scope, f)

	case *ast.Name, *ast.Attribute:
		// Bare truthiness: a truthy Optional cannot be None.
		if truthy {
			path := c.pathOf(cond)
			cur := c.silentTypeOf(cond, scope, f)
			if u, ok := cur.(types.Union); ok {
				f.set(path, u.Remove(types.None))
			}
		}
	}
}

func (c *Checker) narrowCompare(e *ast.Compare, truthy bool, scope *symbols.Scope, f *flow) {
	path, subject := c.narrowSubject(e.Left, e.Right)
	if path == "" {
		return
	}
	other := e.Right
	if subject == e.Right {
		other = e.Left
	}
	cur := c.silentTypeOf(subject, scope, f)

	switch e.Op {
	case ast.OpIs, ast.OpIsNot:
		if _, isNone := other.(*ast.NoneLit); !isNone {
			return
		}
		holds := truthy == (e.Op == ast.OpIs)
		if holds {
			f.set(path, types.None)
		} else if u, ok := cur.(types.Union); ok {
			f.set(path, u.Remove(types.None))
		}

	case ast.OpEq, ast.OpNotEq:
		lit, ok := c.literalOf(other)
		if !ok {
			return
		}
		holds := truthy == (e.Op == ast.OpEq)
		if holds {
			f.set(path, lit)
		} else if u, ok := cur.(types.Union); ok {
			f.set(path, u.Remove(lit))
		}
	}
}

// narrowSubject picks which comparison operand is a narrowable path.
func (c *Checker) narrowSubject(left, right ast.Expr) (string, ast.Expr) {
	if p := c.pathOf(left); p != "" {
		return p, left
	}
	if p := c.pathOf(right); p != "" {
		return p, right
	}
	return "", nil
}

// narrowCall handles isinstance(x, C) and isinstance(x, (C1, C2)).
func (c *Checker) narrowCall(e *ast.Call, truthy bool, scope *symbols.Scope, f *flow) {
	fn, ok := e.Fn.(*ast.Name)
	if !ok || fn.Ident != "isinstance" || len(e.Args) != 2 {
		return
	}
	subject := e.Args[0].Value
	path := c.pathOf(subject)
	if path == "" {
		return
	}
	target, ok := c.isinstanceTarget(e.Args[1].Value, scope)
	if !ok {
		return
	}
	cur := c.silentTypeOf(subject, scope, f)

	if truthy {
		f.set(path, narrowTo(cur, target))
	} else {
		f.set(path, narrowAway(cur, target))
	}
}

// isinstanceTarget evaluates the second isinstance argument to the
// instance type (or union of them) it tests for.
func (c *Checker) isinstanceTarget(e ast.Expr, scope *symbols.Scope) (types.Type, bool) {
	switch t := e.(type) {
	case *ast.Name:
		sym, ok := scope.Lookup(t.Ident)
		if !ok || sym.Class == nil {
			return nil, false
		}
		return types.NewInstance(sym.Class.Class), true
	case *ast.TupleExpr:
		var members []types.Type
		for _, item := range t.Items {
			m, ok := c.isinstanceTarget(item, scope)
			if !ok {
				return nil, false
			}
			members = append(members, m)
		}
		if len(members) == 0 {
			return nil, false
		}
		return types.NewUnion(members...), true
	}
	return nil, false
}

// narrowTo keeps the part of cur compatible with target.
func narrowTo(cur, target types.Type) types.Type {
	if cur.Eq(types.Any) {
		return target
	}
	if u, ok := cur.(types.Union); ok {
		var kept []types.Type
		for _, m := range u.Members {
			if types.Subtype(m, target) || types.Subtype(target, m) {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			return types.Never
		}
		return types.NewUnion(kept...)
	}
	if types.Subtype(cur, target) {
		return cur
	}
	if types.Subtype(target, cur) {
		// The check selects the subclass portion of cur.
		return target
	}
	return types.Never
}

// narrowAway drops the part of cur compatible with target.
func narrowAway(cur, target types.Type) types.Type {
	if u, ok := cur.(types.Union); ok {
		return u.Remove(target)
	}
	if types.Subtype(cur, target) {
		return types.Never
	}
	return cur
}

// literalOf converts a literal expression into its LiteralType.
func (c *Checker) literalOf(e ast.Expr) (types.Type, bool) {
	return c.ma.literalAnnotation(e)
}

// pathOf renders an expression's identity path ("x", "x.y", "x[0]") or
// "" when the expression has no stable identity to narrow.
func (c *Checker) pathOf(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.Name:
		return t.Ident
	case *ast.Attribute:
		base := c.pathOf(t.Value)
		if base == "" {
			return ""
		}
		return base + "." + t.Attr
	case *ast.Index:
		base := c.pathOf(t.Value)
		if base == "" {
			return ""
		}
		if idx, ok := t.Index.(*ast.IntLit); ok {
			return fmt.Sprintf("%s[%d]", base, idx.Value)
		}
		return ""
	}
	return ""
}

// silentTypeOf resolves a path expression's current type without
// emitting diagnostics, preferring flow refinements.
func (c *Checker) silentTypeOf(e ast.Expr, scope *symbols.Scope, f *flow) types.Type {
	if path := c.pathOf(e); path != "" {
		if t, ok := f.vars[path]; ok {
			return t
		}
	}
	switch t := e.(type) {
	case *ast.Name:
		if sym, ok := scope.Lookup(t.Ident); ok {
			return sym.Type()
		}
	case *ast.Attribute:
		recv := c.silentTypeOf(t.Value, scope, f)
		if member, ok := c.lookupMember(recv, t.Attr); ok {
			return member.Type()
		}
	}
	return types.Any
}

package check

import (
	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/symbols"
	"github.com/pyrite-lang/pyrite/pkg/types"
)

// evalAnnotation turns an annotation expression into a Type. Errors
// degrade to Any with a diagnostic; annotation evaluation never fails
// the pass.
func (ma *moduleAnalysis) evalAnnotation(scope *symbols.Scope, e ast.Expr) types.Type {
	switch a := e.(type) {
	case *ast.NoneLit:
		return types.None

	case *ast.StrLit:
		// A string annotation is a forward reference to a named type.
		return ma.resolveTypeName(scope, a.Value, a.Position())

	case *ast.Name:
		return ma.resolveTypeName(scope, a.Ident, a.Position())

	case *ast.Attribute:
		// module.Type reference.
		base, ok := a.Value.(*ast.Name)
		if !ok {
			ma.diags.Errorf(CodeUnresolvedType, a.Position(), "unsupported annotation form")
			return types.Any
		}
		sym, found := scope.Lookup(base.Ident)
		if !found || sym.Kind != symbols.ModuleSymbol {
			ma.diags.Errorf(CodeUnresolvedType, a.Position(), "unresolved type %q", base.Ident+"."+a.Attr)
			return types.Any
		}
		dep, ok := ma.deps[ma.importTargets[base.Ident]]
		if !ok || dep == nil {
			return types.Any
		}
		exported, ok := dep.Export(a.Attr)
		if !ok {
			ma.diags.Errorf(CodeUnresolvedType, a.Position(), "module %q has no type %q", dep.Name, a.Attr)
			return types.Any
		}
		return ma.symbolAsType(exported, a.Position())

	case *ast.Index:
		return ma.evalGenericAnnotation(scope, a)

	case *ast.TupleExpr:
		items := make([]types.Type, len(a.Items))
		for i, item := range a.Items {
			items[i] = ma.evalAnnotation(scope, item)
		}
		return types.Tuple{Items: items}

	default:
		ma.diags.Errorf(CodeUnresolvedType, e.Position(), "unsupported annotation form")
		return types.Any
	}
}

func (ma *moduleAnalysis) resolveTypeName(scope *symbols.Scope, name string, pos ast.Pos) types.Type {
	switch name {
	case "Any":
		return types.Any
	case "Never":
		return types.Never
	case "None":
		return types.None
	}
	if tv, ok := ma.tvars[name]; ok {
		return tv
	}
	sym, found := scope.Lookup(name)
	if !found {
		ma.diags.Errorf(CodeUnresolvedType, pos, "unresolved type %q", name)
		return types.Any
	}
	return ma.symbolAsType(sym, pos)
}

func (ma *moduleAnalysis) symbolAsType(sym *symbols.Symbol, pos ast.Pos) types.Type {
	switch sym.Kind {
	case symbols.ClassSymbol:
		if sym.Class != nil {
			return types.NewInstance(sym.Class.Class)
		}
		return sym.Type()
	case symbols.AliasSymbol:
		return sym.Type()
	default:
		ma.diags.Errorf(CodeUnresolvedType, pos, "%q is a %s, not a type", sym.Name, sym.Kind)
		return types.Any
	}
}

// evalGenericAnnotation handles the subscripted forms: Optional[T],
// Union[...], Literal[...], list[T], dict[K, V], tuple[...],
// Callable[[...], R], and user generics C[...].
func (ma *moduleAnalysis) evalGenericAnnotation(scope *symbols.Scope, a *ast.Index) types.Type {
	head, ok := a.Value.(*ast.Name)
	if !ok {
		ma.diags.Errorf(CodeUnresolvedType, a.Position(), "unsupported annotation form")
		return types.Any
	}

	args := annotationArgs(a.Index)

	switch head.Ident {
	case "Optional":
		if len(args) != 1 {
			ma.diags.Errorf(CodeUnresolvedType, a.Position(), "Optional takes exactly one argument")
			return types.Any
		}
		return types.Optional(ma.evalAnnotation(scope, args[0]))

	case "Union":
		members := make([]types.Type, len(args))
		for i, arg := range args {
			members[i] = ma.evalAnnotation(scope, arg)
		}
		return types.NewUnion(members...)

	case "Literal":
		members := make([]types.Type, 0, len(args))
		for _, arg := range args {
			lit, ok := ma.literalAnnotation(arg)
			if !ok {
				ma.diags.Errorf(CodeUnresolvedType, arg.Position(), "Literal arguments must be literal values")
				return types.Any
			}
			members = append(members, lit)
		}
		return types.NewUnion(members...)

	case "Tuple", "tuple":
		items := make([]types.Type, len(args))
		for i, arg := range args {
			items[i] = ma.evalAnnotation(scope, arg)
		}
		return types.Tuple{Items: items}

	case "Callable":
		return ma.callableAnnotation(scope, a, args)
	}

	// Named generic: resolve the head and apply arguments.
	headType := ma.resolveTypeName(scope, head.Ident, head.Position())
	inst, ok := headType.(types.Instance)
	if !ok {
		if headType.Eq(types.Any) {
			return types.Any
		}
		ma.diags.Errorf(CodeUnresolvedType, a.Position(), "%s is not a generic type", head.Ident)
		return types.Any
	}
	typeArgs := make([]types.Type, len(args))
	for i, arg := range args {
		typeArgs[i] = ma.evalAnnotation(scope, arg)
	}
	return types.NewInstance(inst.Class, typeArgs...)
}

// annotationArgs splits the subscript into its argument expressions:
// `X[a, b]` parses the index as a TupleExpr.
func annotationArgs(index ast.Expr) []ast.Expr {
	if tup, ok := index.(*ast.TupleExpr); ok {
		return tup.Items
	}
	return []ast.Expr{index}
}

func (ma *moduleAnalysis) literalAnnotation(e ast.Expr) (types.Type, bool) {
	switch lit := e.(type) {
	case *ast.IntLit:
		return types.LiteralType{Value: lit.Value, Fallback: types.NewInstance(ma.an.uni.Int)}, true
	case *ast.StrLit:
		return types.LiteralType{Value: lit.Value, Fallback: types.NewInstance(ma.an.uni.Str)}, true
	case *ast.BoolLit:
		return types.LiteralType{Value: lit.Value, Fallback: types.NewInstance(ma.an.uni.Bool)}, true
	default:
		return nil, false
	}
}

// callableAnnotation handles Callable[[P1, P2], R].
func (ma *moduleAnalysis) callableAnnotation(scope *symbols.Scope, a *ast.Index, args []ast.Expr) types.Type {
	if len(args) != 2 {
		ma.diags.Errorf(CodeUnresolvedType, a.Position(), "Callable takes a parameter list and a return type")
		return types.Any
	}
	params, ok := args[0].(*ast.ListExpr)
	if !ok {
		ma.diags.Errorf(CodeUnresolvedType, args[0].Position(), "Callable parameters must be a list")
		return types.Any
	}
	sig := types.Callable{Ret: ma.evalAnnotation(scope, args[1])}
	for _, p := range params.Items {
		sig.Params = append(sig.Params, types.Param{
			Type: ma.evalAnnotation(scope, p),
			Kind: types.PositionalParam,
		})
	}
	return sig
}

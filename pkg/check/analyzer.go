// Package check implements the semantic analyzer and the flow-sensitive
// type checker. Modules are analyzed in two passes so forward and
// cross-module (even cyclic) references resolve: pass 1 declares every
// top-level and class-level name with a placeholder, pass 2 computes the
// real declared types.
package check

import (
	"log/slog"

	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/symbols"
	"github.com/pyrite-lang/pyrite/pkg/types"
)

// Options are the knobs the core consumes but does not own.
type Options struct {
	// MissingImportsAreAny downgrades unresolvable imports to warnings,
	// typing the missing module as Any.
	MissingImportsAreAny bool
	// MaxLoopPasses caps the loop-narrowing fixpoint iteration.
	MaxLoopPasses int
}

func (o Options) withDefaults() Options {
	if o.MaxLoopPasses <= 0 {
		o.MaxLoopPasses = 5
	}
	return o
}

// Analyzer binds names and computes declared types for modules.
// It is stateless across modules; per-module state lives in
// moduleAnalysis.
type Analyzer struct {
	uni  *Universe
	opts Options
}

func NewAnalyzer(uni *Universe, opts Options) *Analyzer {
	return &Analyzer{uni: uni, opts: opts.withDefaults()}
}

func (a *Analyzer) Universe() *Universe { return a.uni }

type moduleAnalysis struct {
	an    *Analyzer
	mod   *ast.Module
	info  *symbols.ModuleInfo
	deps  map[string]*symbols.ModuleInfo
	diags *Diagnostics
	fresh *types.Fresher

	// importTargets maps a bound module name to the dotted module it
	// refers to (import x as y binds y -> x).
	importTargets map[string]string
	// tvars is the type-parameter scope of the signature being
	// resolved, when any.
	tvars map[string]*types.TypeVar
}

// Pass1 declares every top-level and class-level name with a
// placeholder so other modules' pass 2 can reference them before this
// module's own types exist.
func (a *Analyzer) Pass1(mod *ast.Module, info *symbols.ModuleInfo, diags *Diagnostics) {
	ma := &moduleAnalysis{
		an:            a,
		mod:           mod,
		info:          info,
		diags:         diags,
		importTargets: make(map[string]string),
		tvars:         make(map[string]*types.TypeVar),
	}

	for _, stmt := range mod.Body {
		ma.declareTopLevel(stmt)
	}
	info.State = symbols.Pass1Declared
	slog.Debug("pass 1 complete", "module", mod.Name, "bindings", info.Scope.Len())
}

func (ma *moduleAnalysis) declareTopLevel(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.Import:
		ma.declareImport(s)

	case *ast.FuncDef:
		ma.declarePlaceholder(ma.info.Scope, s.Name, symbols.FuncSymbol, s)

	case *ast.ClassDef:
		ma.declareClass(s)

	case *ast.Assign:
		if name, ok := s.Target.(*ast.Name); ok {
			ma.declarePlaceholder(ma.info.Scope, name.Ident, symbols.VarSymbol, s)
		}
	}
}

func (ma *moduleAnalysis) declareImport(s *ast.Import) {
	if len(s.Names) == 0 {
		ma.declarePlaceholder(ma.info.Scope, s.Bound(), symbols.ModuleSymbol, s)
		return
	}
	for _, n := range s.Names {
		bound := n.Name
		if n.Alias != "" {
			bound = n.Alias
		}
		ma.declarePlaceholder(ma.info.Scope, bound, symbols.VarSymbol, s)
	}
}

func (ma *moduleAnalysis) declareClass(s *ast.ClassDef) {
	class := types.NewClass(s.Name)
	for _, tp := range s.TypeParams {
		class.TypeParams = append(class.TypeParams, &types.TypeVar{ID: tp})
	}
	classInfo := symbols.NewClassInfo(class, ma.info.Scope)

	sym := &symbols.Symbol{
		Name:     s.Name,
		Kind:     symbols.ClassSymbol,
		State:    symbols.Declared,
		Declared: types.NewInstance(class),
		Def:      s,
		Class:    classInfo,
	}
	if err := ma.info.Scope.Declare(sym); err != nil {
		ma.diags.Errorf(CodeDuplicateDecl, s.Position(), "%s", err)
		return
	}
	ma.info.Classes[s.Name] = classInfo
	ma.an.uni.RegisterClassInfo(classInfo)

	// Class-level member placeholders, so methods of sibling classes
	// (and other modules) can reference them during their own pass 2.
	for _, member := range s.Body {
		switch m := member.(type) {
		case *ast.FuncDef:
			ma.declarePlaceholder(classInfo.Members, m.Name, symbols.FuncSymbol, m)
		case *ast.Assign:
			if name, ok := m.Target.(*ast.Name); ok {
				ma.declarePlaceholder(classInfo.Members, name.Ident, symbols.VarSymbol, m)
			}
		}
	}
}

func (ma *moduleAnalysis) declarePlaceholder(scope *symbols.Scope, name string, kind symbols.Kind, def ast.Node) {
	err := scope.Declare(&symbols.Symbol{
		Name:     name,
		Kind:     kind,
		State:    symbols.Declared,
		Declared: types.Any,
		Def:      def,
	})
	if err != nil {
		ma.diags.Errorf(CodeDuplicateDecl, def.Position(), "%s", err)
	}
}

// Pass2 forces every placeholder: imports resolve against dependency
// exports, annotations evaluate to types, base classes linearize, and
// overload groups bind. A failed resolution degrades the one symbol to
// Any and keeps going.
func (a *Analyzer) Pass2(mod *ast.Module, info *symbols.ModuleInfo, deps map[string]*symbols.ModuleInfo, diags *Diagnostics) {
	ma := &moduleAnalysis{
		an:            a,
		mod:           mod,
		info:          info,
		deps:          deps,
		diags:         diags,
		fresh:         &types.Fresher{},
		importTargets: make(map[string]string),
		tvars:         make(map[string]*types.TypeVar),
	}

	for _, stmt := range mod.Body {
		if imp, ok := stmt.(*ast.Import); ok {
			ma.resolveImport(imp)
		}
	}

	// Classes resolve before functions so signatures can reference any
	// class declared in this module regardless of order.
	for _, stmt := range mod.Body {
		if cls, ok := stmt.(*ast.ClassDef); ok {
			ma.resolveClass(cls)
		}
	}

	ma.resolveFunctions(mod.Body, info.Scope, nil)

	for _, stmt := range mod.Body {
		if assign, ok := stmt.(*ast.Assign); ok {
			ma.resolveAssign(assign)
		}
	}

	info.State = symbols.Pass2Resolved
	slog.Debug("pass 2 complete", "module", mod.Name)
}

func (ma *moduleAnalysis) resolveImport(s *ast.Import) {
	if s.Module == ma.mod.Name {
		ma.diags.Warnf(CodeSelfImport, s.Position(), "module %q imports itself", s.Module)
		return
	}

	dep := ma.deps[s.Module]
	if dep == nil {
		sev := Error
		if ma.an.opts.MissingImportsAreAny {
			sev = Warning
		}
		ma.diags.Add(sev, CodeMissingImport, s.Position(), "cannot resolve module %q", s.Module)
		// The bound names stay typed Any; consumers degrade locally.
		return
	}

	if len(s.Names) == 0 {
		ma.importTargets[s.Bound()] = s.Module
		return
	}

	for _, n := range s.Names {
		bound := n.Name
		if n.Alias != "" {
			bound = n.Alias
		}
		local, ok := ma.info.Scope.LookupLocal(bound)
		if !ok {
			continue
		}
		exported, found := dep.Export(n.Name)
		if !found {
			ma.diags.Errorf(CodeNameError, s.Position(), "module %q has no exported name %q", s.Module, n.Name)
			local.State = symbols.Resolved
			continue
		}
		// Adopt the exported symbol's identity under the local name.
		local.Kind = exported.Kind
		local.Declared = exported.Declared
		local.Inferred = exported.Inferred
		local.Class = exported.Class
		local.Overloads = exported.Overloads
		local.State = symbols.Resolved
	}
}

func (ma *moduleAnalysis) resolveClass(s *ast.ClassDef) {
	sym, ok := ma.info.Scope.LookupLocal(s.Name)
	if !ok || sym.Class == nil {
		return // duplicate declaration already reported
	}
	classInfo := sym.Class
	class := classInfo.Class

	for _, baseExpr := range s.Bases {
		baseType := ma.evalAnnotation(ma.info.Scope, baseExpr)
		inst, ok := baseType.(types.Instance)
		if !ok {
			if !baseType.Eq(types.Any) {
				ma.diags.Errorf(CodeClassDefinition, baseExpr.Position(),
					"base of class %q is not a class: %s", s.Name, baseType)
			}
			continue
		}
		class.Bases = append(class.Bases, inst.Class)
	}
	if len(class.Bases) == 0 && class != ma.an.uni.Object {
		class.Bases = []*types.Class{ma.an.uni.Object}
	}

	if _, err := class.Linearize(); err != nil {
		ma.diags.Errorf(CodeClassDefinition, s.Position(), "%s", err)
		// Degrade to a plain object subclass so member lookup and
		// instance checks still function.
		class.Bases = []*types.Class{ma.an.uni.Object}
		_, _ = class.Linearize()
	}

	for _, ancestor := range class.MRO() {
		if info, ok := ma.an.uni.ClassInfo(ancestor); ok {
			classInfo.Link(info)
		}
	}

	// Class type parameters are visible throughout the body.
	saved := ma.tvars
	ma.tvars = make(map[string]*types.TypeVar, len(class.TypeParams))
	for _, tp := range class.TypeParams {
		ma.tvars[tp.ID] = tp
	}
	defer func() { ma.tvars = saved }()

	selfType := types.NewInstance(class)
	ma.resolveFunctions(s.Body, classInfo.Members, selfType)

	for _, member := range s.Body {
		assign, ok := member.(*ast.Assign)
		if !ok {
			continue
		}
		name, ok := assign.Target.(*ast.Name)
		if !ok {
			continue
		}
		memberSym, ok := classInfo.Members.LookupLocal(name.Ident)
		if !ok {
			continue
		}
		if assign.Annotation != nil {
			memberSym.Declared = ma.evalAnnotation(ma.info.Scope, assign.Annotation)
		}
		memberSym.State = symbols.Resolved
	}
}

// resolveFunctions computes signatures and binds overload groups for
// every FuncDef in body. selfType is non-nil inside a class body; the
// first parameter is then implicitly the receiver.
func (ma *moduleAnalysis) resolveFunctions(body []ast.Stmt, scope *symbols.Scope, selfType types.Type) {
	groups := make(map[string]*symbols.OverloadGroup)
	for _, stmt := range body {
		fd, ok := stmt.(*ast.FuncDef)
		if !ok {
			continue
		}
		sym, ok := scope.LookupLocal(fd.Name)
		if !ok || sym.Kind != symbols.FuncSymbol {
			continue
		}

		sig := ma.funcSignature(fd, selfType)

		if fd.IsOverload() {
			group := groups[fd.Name]
			if group == nil {
				group = &symbols.OverloadGroup{Name: fd.Name}
				groups[fd.Name] = group
				sym.Overloads = group
			}
			group.Add(sig)
			sym.State = symbols.Resolved
			continue
		}

		sym.Declared = sig
		sym.State = symbols.Resolved
		if group := groups[fd.Name]; group != nil {
			group.Impl = sym
		}
	}
}

// funcSignature evaluates a function's annotations into a Callable.
// Unannotated parameters and returns are Any.
func (ma *moduleAnalysis) funcSignature(fd *ast.FuncDef, selfType types.Type) types.Callable {
	saved := ma.tvars
	ma.tvars = make(map[string]*types.TypeVar, len(saved)+len(fd.TypeParams))
	for name, tv := range saved {
		ma.tvars[name] = tv
	}
	var bound []*types.TypeVar
	for _, tp := range fd.TypeParams {
		tv := &types.TypeVar{ID: tp}
		ma.tvars[tp] = tv
		bound = append(bound, tv)
	}
	defer func() { ma.tvars = saved }()

	var params []types.Param
	for i, p := range fd.Params {
		if i == 0 && selfType != nil {
			// Receiver parameter; typed as the class instance, not part
			// of the callable's external signature.
			continue
		}
		pt := types.Type(types.Any)
		if p.Annotation != nil {
			pt = ma.evalAnnotation(ma.info.Scope, p.Annotation)
		}
		kind := types.PositionalParam
		if p.Default != nil {
			kind = types.KeywordParam
		}
		params = append(params, types.Param{Name: p.Name, Type: pt, Kind: kind})
	}

	ret := types.Type(types.Any)
	if fd.Returns != nil {
		ret = ma.evalAnnotation(ma.info.Scope, fd.Returns)
	}

	return types.Callable{Params: params, Ret: ret, TypeVars: bound}
}

func (ma *moduleAnalysis) resolveAssign(s *ast.Assign) {
	name, ok := s.Target.(*ast.Name)
	if !ok {
		return
	}
	sym, ok := ma.info.Scope.LookupLocal(name.Ident)
	if !ok || sym.State == symbols.Resolved {
		return
	}

	if s.Annotation != nil {
		sym.Declared = ma.evalAnnotation(ma.info.Scope, s.Annotation)
		sym.State = symbols.Resolved
		return
	}

	// `Alias = SomeClass` declares a type alias.
	if valueName, isName := s.Value.(*ast.Name); isName {
		if target, found := ma.info.Scope.Lookup(valueName.Ident); found && target.Kind == symbols.ClassSymbol {
			sym.Kind = symbols.AliasSymbol
			sym.Declared = target.Declared
			sym.Class = target.Class
			sym.State = symbols.Resolved
			return
		}
	}

	// Plain assignment: the declared type stays open; the checker
	// refines it from the value flow. Literal values type here already
	// so the module's exported interface does not wait for the checker.
	sym.Declared = nil
	sym.Inferred = ma.inferLiteralValue(s.Value)
	sym.State = symbols.Resolved
}

// inferLiteralValue types the syntactic forms whose type needs no flow
// analysis. Anything else returns nil and stays open.
func (ma *moduleAnalysis) inferLiteralValue(e ast.Expr) types.Type {
	switch v := e.(type) {
	case *ast.IntLit:
		return types.NewInstance(ma.an.uni.Int)
	case *ast.FloatLit:
		return types.NewInstance(ma.an.uni.Float)
	case *ast.StrLit:
		return types.NewInstance(ma.an.uni.Str)
	case *ast.BoolLit:
		return types.NewInstance(ma.an.uni.Bool)
	case *ast.NoneLit:
		return types.None
	case *ast.TupleExpr:
		items := make([]types.Type, len(v.Items))
		for i, item := range v.Items {
			items[i] = ma.inferLiteralValue(item)
			if items[i] == nil {
				return nil
			}
		}
		return types.Tuple{Items: items}
	case *ast.Call:
		// A bare constructor call exports as the instance type.
		if name, ok := v.Fn.(*ast.Name); ok {
			if sym, found := ma.info.Scope.Lookup(name.Ident); found && sym.Kind == symbols.ClassSymbol && sym.Class != nil {
				return types.NewInstance(sym.Class.Class)
			}
		}
	}
	return nil
}

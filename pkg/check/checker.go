package check

import (
	"log/slog"

	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/symbols"
	"github.com/pyrite-lang/pyrite/pkg/types"
)

// Checker walks statement and expression trees after the analyzer has
// frozen declared types, inferring expression types, narrowing under
// conditionals, and reporting diagnostics. It always completes a full
// pass over a body; errors degrade the local type to Any and continue.
type Checker struct {
	an    *Analyzer
	ma    *moduleAnalysis
	mod   *ast.Module
	info  *symbols.ModuleInfo
	diags *Diagnostics
	fresh *types.Fresher
}

// NewChecker prepares a checker for one module. deps must contain the
// resolved ModuleInfo of every dependency (nil entries mean missing).
func NewChecker(an *Analyzer, mod *ast.Module, info *symbols.ModuleInfo, deps map[string]*symbols.ModuleInfo, diags *Diagnostics) *Checker {
	fresh := &types.Fresher{}
	ma := &moduleAnalysis{
		an:            an,
		mod:           mod,
		info:          info,
		deps:          deps,
		diags:         diags,
		fresh:         fresh,
		importTargets: make(map[string]string),
		tvars:         make(map[string]*types.TypeVar),
	}
	for _, imp := range mod.Imports() {
		if len(imp.Names) == 0 {
			ma.importTargets[imp.Bound()] = imp.Module
		}
	}
	return &Checker{
		an:    an,
		ma:    ma,
		mod:   mod,
		info:  info,
		diags: diags,
		fresh: fresh,
	}
}

// flow is the narrowed-type environment at one program point: a mapping
// from expression-identity paths to their currently refined types,
// distinct from declared types.
type flow struct {
	vars       map[string]types.Type
	terminated bool
}

func newFlow() *flow {
	return &flow{vars: make(map[string]types.Type)}
}

func (f *flow) clone() *flow {
	vars := make(map[string]types.Type, len(f.vars))
	for k, v := range f.vars {
		vars[k] = v
	}
	return &flow{vars: vars, terminated: f.terminated}
}

func (f *flow) set(path string, t types.Type) {
	if path == "" {
		return
	}
	f.vars[path] = t
}

// eq reports whether two flows assign the same types, used to detect
// loop fixpoints.
func (f *flow) eq(other *flow) bool {
	if len(f.vars) != len(other.vars) {
		return false
	}
	for k, v := range f.vars {
		ov, ok := other.vars[k]
		if !ok || !v.Eq(ov) {
			return false
		}
	}
	return true
}

// Check runs the full checking pass: module-level statements in order,
// then every function and method body.
func (c *Checker) Check() {
	slog.Debug("checking module", "module", c.mod.Name)

	f := newFlow()
	c.checkBlock(c.mod.Body, c.info.Scope, f)

	for _, stmt := range c.mod.Body {
		switch s := stmt.(type) {
		case *ast.FuncDef:
			c.checkFunctionDef(s, c.info.Scope, nil)
		case *ast.ClassDef:
			c.checkClassBody(s)
		}
	}

	c.info.State = symbols.Stable
}

func (c *Checker) checkClassBody(s *ast.ClassDef) {
	sym, ok := c.info.Scope.LookupLocal(s.Name)
	if !ok || sym.Class == nil {
		return
	}
	selfType := types.NewInstance(sym.Class.Class)

	saved := c.ma.tvars
	c.ma.tvars = make(map[string]*types.TypeVar)
	for _, tp := range sym.Class.Class.TypeParams {
		c.ma.tvars[tp.ID] = tp
	}
	defer func() { c.ma.tvars = saved }()

	for _, member := range s.Body {
		if fd, ok := member.(*ast.FuncDef); ok {
			c.checkFunctionDef(fd, sym.Class.Members, selfType)
		}
	}
}

// checkFunctionDef checks one function body against its resolved
// signature. selfType is non-nil for methods.
func (c *Checker) checkFunctionDef(fd *ast.FuncDef, owner *symbols.Scope, selfType types.Type) {
	if fd.IsOverload() {
		// Overload declarations have no body to check.
		return
	}
	sym, ok := owner.LookupLocal(fd.Name)
	if !ok {
		return
	}
	sig, ok := sym.Declared.(types.Callable)
	if !ok {
		return
	}

	saved := c.ma.tvars
	c.ma.tvars = make(map[string]*types.TypeVar, len(saved)+len(sig.TypeVars))
	for name, tv := range saved {
		c.ma.tvars[name] = tv
	}
	for _, tv := range sig.TypeVars {
		c.ma.tvars[tv.ID] = tv
	}
	defer func() { c.ma.tvars = saved }()

	scope := symbols.NewScope(symbols.FunctionScope, c.info.Scope)
	paramTypes := sig.Params
	offset := 0
	if selfType != nil && len(fd.Params) > 0 {
		_ = scope.Declare(&symbols.Symbol{
			Name:     fd.Params[0].Name,
			Kind:     symbols.VarSymbol,
			State:    symbols.Resolved,
			Declared: selfType,
		})
		offset = 1
	}
	for i, p := range fd.Params[offset:] {
		pt := types.Type(types.Any)
		if i < len(paramTypes) {
			pt = paramTypes[i].Type
		}
		_ = scope.Declare(&symbols.Symbol{
			Name:     p.Name,
			Kind:     symbols.VarSymbol,
			State:    symbols.Resolved,
			Declared: pt,
		})
	}

	f := newFlow()
	body := &functionContext{ret: sig.Ret}
	c.checkBlockIn(fd.Body, scope, f, body)

	// Falling off the end returns None implicitly.
	if !f.terminated && !sig.Ret.Eq(types.Any) && !types.Subtype(types.None, sig.Ret) {
		c.diags.Errorf(CodeTypeMismatch, fd.Position(),
			"function %q can return without a value, but is declared to return %s", fd.Name, sig.Ret)
	}
}

// functionContext carries the declared return type while checking a
// body; nil at module level.
type functionContext struct {
	ret types.Type
}

func (c *Checker) checkBlock(body []ast.Stmt, scope *symbols.Scope, f *flow) {
	c.checkBlockIn(body, scope, f, nil)
}

func (c *Checker) checkBlockIn(body []ast.Stmt, scope *symbols.Scope, f *flow, fn *functionContext) {
	for _, stmt := range body {
		if f.terminated {
			// Unreachable code is not a reported error, but it also
			// must not contribute to flow merges.
			return
		}
		c.checkStmt(stmt, scope, f, fn)
	}
}

func (c *Checker) checkStmt(stmt ast.Stmt, scope *symbols.Scope, f *flow, fn *functionContext) {
	switch s := stmt.(type) {
	case *ast.Assign:
		c.checkAssign(s, scope, f)

	case *ast.ExprStmt:
		c.inferExpr(s.Value, scope, f)

	case *ast.If:
		c.checkIf(s, scope, f, fn)

	case *ast.While:
		c.checkWhile(s, scope, f, fn)

	case *ast.For:
		c.checkFor(s, scope, f, fn)

	case *ast.Return:
		var vt types.Type = types.None
		if s.Value != nil {
			vt = c.inferExpr(s.Value, scope, f)
		}
		if fn != nil && !types.Subtype(vt, fn.ret) {
			c.diags.Errorf(CodeTypeMismatch, s.Position(),
				"cannot return %s from a function declared to return %s", vt, fn.ret)
		}
		f.terminated = true

	case *ast.Raise:
		if s.Value != nil {
			c.inferExpr(s.Value, scope, f)
		}
		f.terminated = true

	case *ast.Pass, *ast.Import, *ast.FuncDef, *ast.ClassDef:
		// Imports and definitions were handled by the analyzer;
		// function bodies are checked separately.

	default:
		c.inferStmtFallback(stmt, scope, f)
	}
}

func (c *Checker) inferStmtFallback(stmt ast.Stmt, scope *symbols.Scope, f *flow) {
	// Nothing else to do; present so that adding a statement variant
	// without a checker case fails loudly in tests rather than
	// silently passing.
	slog.Debug("unhandled statement kind", "stmt", stmt, "pos", stmt.Position())
}

func (c *Checker) checkAssign(s *ast.Assign, scope *symbols.Scope, f *flow) {
	var vt types.Type = types.Any
	if s.Value != nil {
		vt = c.inferExpr(s.Value, scope, f)
	}

	switch target := s.Target.(type) {
	case *ast.Name:
		c.assignName(s, target, vt, scope, f)

	case *ast.Attribute:
		recv := c.inferExpr(target.Value, scope, f)
		member, ok := c.lookupMember(recv, target.Attr)
		if !ok {
			c.diags.Errorf(CodeMissingMember, target.Position(),
				"type %s has no attribute %q", recv, target.Attr)
			return
		}
		if member.Declared != nil && !types.Subtype(vt, member.Declared) {
			c.diags.Errorf(CodeTypeMismatch, s.Position(),
				"cannot assign %s to attribute %q of type %s", vt, target.Attr, member.Declared)
			return
		}
		f.set(c.pathOf(target), vt)

	case *ast.Index:
		// Container element assignment: check the container exists and
		// move on; precise element checks need mutability tracking.
		c.inferExpr(target.Value, scope, f)
		c.inferExpr(target.Index, scope, f)

	default:
		c.diags.Errorf(CodeTypeMismatch, s.Position(), "invalid assignment target")
	}
}

func (c *Checker) assignName(s *ast.Assign, target *ast.Name, vt types.Type, scope *symbols.Scope, f *flow) {
	path := target.Ident

	var declared types.Type
	if s.Annotation != nil {
		declared = c.ma.evalAnnotation(scope, s.Annotation)
	}

	// Assignment binds in the innermost scope; outer names are readable
	// but never reassigned from here.
	sym, exists := scope.LookupLocal(target.Ident)
	if !exists {
		sym = &symbols.Symbol{
			Name:  target.Ident,
			Kind:  symbols.VarSymbol,
			State: symbols.Resolved,
			Def:   s,
		}
		if err := scope.Declare(sym); err != nil {
			c.diags.Errorf(CodeDuplicateDecl, s.Position(), "%s", err)
			return
		}
	}

	if declared != nil {
		sym.Declared = declared
	}

	if sym.Declared != nil {
		if s.Value != nil && !types.Subtype(vt, sym.Declared) {
			c.diags.Errorf(CodeTypeMismatch, s.Position(),
				"cannot assign %s to %q of declared type %s", vt, target.Ident, sym.Declared)
			// Continue with the declared type so later statements see
			// what the author intended.
			f.set(path, sym.Declared)
			return
		}
		// A declared target refines to the assigned value's type at
		// this point.
		f.set(path, vt)
		return
	}

	// Undeclared target: progressive join across assignments while the
	// name is live, plain adoption on first binding.
	if prev, live := f.vars[path]; live {
		joined := types.Join(prev, vt)
		sym.Inferred = joined
		f.set(path, joined)
		return
	}
	if sym.Inferred != nil {
		joined := types.Join(sym.Inferred, vt)
		sym.Inferred = joined
		f.set(path, joined)
		return
	}
	sym.Inferred = vt
	f.set(path, vt)
}

func (c *Checker) checkIf(s *ast.If, scope *symbols.Scope, f *flow, fn *functionContext) {
	c.inferExpr(s.Cond, scope, f)

	thenFlow := f.clone()
	c.applyNarrowing(s.Cond, true, scope, thenFlow)
	c.checkBlockIn(s.Then, scope, thenFlow, fn)

	elseFlow := f.clone()
	c.applyNarrowing(s.Cond, false, scope, elseFlow)
	c.checkBlockIn(s.Else, scope, elseFlow, fn)

	merged := c.mergeFlows(scope, f, thenFlow, elseFlow)
	f.vars = merged.vars
	f.terminated = merged.terminated
}

// mergeFlows joins the reachable branch-exit environments. A branch
// that terminated (returned/raised) contributes nothing.
func (c *Checker) mergeFlows(scope *symbols.Scope, pre *flow, branches ...*flow) *flow {
	var live []*flow
	for _, b := range branches {
		if !b.terminated {
			live = append(live, b)
		}
	}
	if len(live) == 0 {
		out := pre.clone()
		out.terminated = true
		return out
	}
	if len(live) == 1 {
		return live[0].clone()
	}

	keys := make(map[string]bool)
	for _, b := range live {
		for k := range b.vars {
			keys[k] = true
		}
	}
	out := newFlow()
	for k := range keys {
		joined := types.Type(nil)
		complete := true
		for _, b := range live {
			t, ok := b.vars[k]
			if !ok {
				t, ok = c.baselineType(k, scope, pre)
			}
			if !ok {
				complete = false
				break
			}
			if joined == nil {
				joined = t
			} else {
				joined = types.Join(joined, t)
			}
		}
		if complete && joined != nil {
			out.vars[k] = joined
		}
	}
	return out
}

// baselineType resolves a path's type outside any narrowing: the
// pre-branch flow first, then the symbol table for simple names.
// Dotted paths with no baseline lose their narrowing at merges.
func (c *Checker) baselineType(path string, scope *symbols.Scope, pre *flow) (types.Type, bool) {
	if t, ok := pre.vars[path]; ok {
		return t, true
	}
	if sym, ok := scope.Lookup(path); ok {
		return sym.Type(), true
	}
	return nil, false
}

func (c *Checker) checkWhile(s *ast.While, scope *symbols.Scope, f *flow, fn *functionContext) {
	c.inferExpr(s.Cond, scope, f)
	c.loopFixpoint(s.Position(), scope, f, fn, func(iter *flow) {
		c.applyNarrowing(s.Cond, true, scope, iter)
		c.checkBlockIn(s.Body, scope, iter, fn)
	})
	// The loop exits with the condition falsy.
	c.applyNarrowing(s.Cond, false, scope, f)
}

func (c *Checker) checkFor(s *ast.For, scope *symbols.Scope, f *flow, fn *functionContext) {
	iterT := c.inferExpr(s.Iter, scope, f)
	elemT := c.elementType(iterT)

	if name, ok := s.Target.(*ast.Name); ok {
		sym, exists := scope.LookupLocal(name.Ident)
		if !exists {
			sym = &symbols.Symbol{Name: name.Ident, Kind: symbols.VarSymbol, State: symbols.Resolved}
			_ = scope.Declare(sym)
		}
		sym.Inferred = elemT
	}

	c.loopFixpoint(s.Position(), scope, f, fn, func(iter *flow) {
		if name, ok := s.Target.(*ast.Name); ok {
			iter.set(name.Ident, elemT)
		}
		c.checkBlockIn(s.Body, scope, iter, fn)
	})
}

// loopFixpoint iterates narrowing through a loop body until the
// environment stabilizes or the configured cap is reached. Because the
// loop may run zero times, each round joins the body's exit environment
// back into the entry environment.
func (c *Checker) loopFixpoint(pos ast.Pos, scope *symbols.Scope, f *flow, fn *functionContext, body func(*flow)) {
	limit := c.an.opts.MaxLoopPasses
	prev := f.clone()
	for i := 0; i < limit; i++ {
		iter := prev.clone()
		body(iter)
		iter.terminated = false

		merged := c.mergeFlows(scope, prev, prev, iter)
		if merged.eq(prev) {
			f.vars = merged.vars
			return
		}
		prev = merged
		if i == limit-1 {
			c.diags.Notef(CodeInternalLimitReached, pos,
				"loop narrowing did not stabilize after %d passes; freezing types", limit)
		}
	}
	f.vars = prev.vars
}

// elementType resolves what iterating a value yields.
func (c *Checker) elementType(t types.Type) types.Type {
	switch tt := t.(type) {
	case types.Instance:
		switch tt.Class {
		case c.an.uni.List:
			if len(tt.TypeArgs) == 1 {
				return tt.TypeArgs[0]
			}
			return types.Any
		case c.an.uni.Dict:
			if len(tt.TypeArgs) == 2 {
				return tt.TypeArgs[0]
			}
			return types.Any
		case c.an.uni.Str:
			return t
		}
	case types.Tuple:
		if len(tt.Items) == 0 {
			return types.Never
		}
		joined := tt.Items[0]
		for _, item := range tt.Items[1:] {
			joined = types.Join(joined, item)
		}
		return joined
	}
	return types.Any
}

package check

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/symbols"
	"github.com/pyrite-lang/pyrite/pkg/types"
)

// --- AST construction helpers -----------------------------------------

func nm(s string) *ast.Name       { return &ast.Name{Ident: s} }
func iv(v int64) *ast.IntLit      { return &ast.IntLit{Value: v} }
func sv(v string) *ast.StrLit     { return &ast.StrLit{Value: v} }
func noneLit() *ast.NoneLit       { return &ast.NoneLit{} }
func ret(v ast.Expr) *ast.Return  { return &ast.Return{Value: v} }
func attr(v ast.Expr, a string) *ast.Attribute {
	return &ast.Attribute{Value: v, Attr: a}
}

func call(fn ast.Expr, args ...ast.Expr) *ast.Call {
	c := &ast.Call{Fn: fn}
	for _, a := range args {
		c.Args = append(c.Args, ast.Arg{Value: a})
	}
	return c
}

func optional(inner ast.Expr) ast.Expr {
	return &ast.Index{Value: nm("Optional"), Index: inner}
}

func assign(target string, value ast.Expr) *ast.Assign {
	return &ast.Assign{Target: nm(target), Value: value}
}

func annotated(target string, annotation, value ast.Expr) *ast.Assign {
	return &ast.Assign{Target: nm(target), Annotation: annotation, Value: value}
}

func fn(name string, params []ast.ParamDecl, returns ast.Expr, body ...ast.Stmt) *ast.FuncDef {
	return &ast.FuncDef{Name: name, Params: params, Returns: returns, Body: body}
}

func param(name string, annotation ast.Expr) ast.ParamDecl {
	return ast.ParamDecl{Name: name, Annotation: annotation}
}

// --- harness ----------------------------------------------------------

type testBuild struct {
	uni   *Universe
	an    *Analyzer
	diags *Diagnostics
}

func newTestBuild(opts Options) *testBuild {
	uni := NewUniverse()
	return &testBuild{
		uni:   uni,
		an:    NewAnalyzer(uni, opts),
		diags: &Diagnostics{},
	}
}

// run analyzes and checks a single module with no dependencies.
func (b *testBuild) run(mod *ast.Module) *symbols.ModuleInfo {
	info := symbols.NewModuleInfo(mod.Name, b.uni.Scope)
	b.an.Pass1(mod, info, b.diags)
	b.an.Pass2(mod, info, nil, b.diags)
	NewChecker(b.an, mod, info, nil, b.diags).Check()
	return info
}

func checkModule(t *testing.T, body ...ast.Stmt) (*symbols.ModuleInfo, *Diagnostics) {
	t.Helper()
	b := newTestBuild(Options{})
	info := b.run(&ast.Module{Name: "main", Path: "main.py", Body: body})
	return info, b.diags
}

func codes(d *Diagnostics) []Code {
	var out []Code
	for _, diag := range d.All() {
		out = append(out, diag.Code)
	}
	return out
}

// --- narrowing --------------------------------------------------------

func TestNarrowingIsNotNone(t *testing.T) {
	// def f(x: Optional[int]) -> int:
	//     if x is not None:
	//         return x
	//     return 0
	body := fn("f",
		[]ast.ParamDecl{param("x", optional(nm("int")))},
		nm("int"),
		&ast.If{
			Cond: &ast.Compare{Op: ast.OpIsNot, Left: nm("x"), Right: noneLit()},
			Then: []ast.Stmt{ret(nm("x"))},
		},
		ret(iv(0)),
	)

	_, diags := checkModule(t, body)
	assert.Empty(t, diags.All(), "narrowed return should typecheck")
}

func TestUnnarrowedOptionalReturnFails(t *testing.T) {
	body := fn("f",
		[]ast.ParamDecl{param("x", optional(nm("int")))},
		nm("int"),
		ret(nm("x")),
	)

	_, diags := checkModule(t, body)
	require.Len(t, diags.All(), 1)
	assert.Equal(t, CodeTypeMismatch, diags.All()[0].Code)
}

func TestNarrowingElseBranch(t *testing.T) {
	// if x is None: return 0
	// return x        # x is int here
	body := fn("f",
		[]ast.ParamDecl{param("x", optional(nm("int")))},
		nm("int"),
		&ast.If{
			Cond: &ast.Compare{Op: ast.OpIs, Left: nm("x"), Right: noneLit()},
			Then: []ast.Stmt{ret(iv(0))},
		},
		ret(nm("x")),
	)

	_, diags := checkModule(t, body)
	assert.Empty(t, diags.All(), "else-flow should see None removed")
}

func TestNarrowingNotOperator(t *testing.T) {
	body := fn("f",
		[]ast.ParamDecl{param("x", optional(nm("int")))},
		nm("int"),
		&ast.If{
			Cond: &ast.UnaryOp{Op: ast.OpNot, Operand: &ast.Compare{Op: ast.OpIs, Left: nm("x"), Right: noneLit()}},
			Then: []ast.Stmt{ret(nm("x"))},
		},
		ret(iv(0)),
	)

	_, diags := checkModule(t, body)
	assert.Empty(t, diags.All())
}

func TestNarrowingAnd(t *testing.T) {
	// if (x is not None) and (y is not None): return x + y
	params := []ast.ParamDecl{
		param("x", optional(nm("int"))),
		param("y", optional(nm("int"))),
	}
	body := fn("f", params, nm("int"),
		&ast.If{
			Cond: &ast.BoolOp{
				Op:    ast.OpAnd,
				Left:  &ast.Compare{Op: ast.OpIsNot, Left: nm("x"), Right: noneLit()},
				Right: &ast.Compare{Op: ast.OpIsNot, Left: nm("y"), Right: noneLit()},
			},
			Then: []ast.Stmt{ret(&ast.BinOp{Op: ast.OpAdd, Left: nm("x"), Right: nm("y")})},
		},
		ret(iv(0)),
	)

	_, diags := checkModule(t, body)
	assert.Empty(t, diags.All())
}

func TestNarrowingMergeRewidens(t *testing.T) {
	// After the if/else merge the narrowing is gone again.
	body := fn("f",
		[]ast.ParamDecl{param("x", optional(nm("int")))},
		nm("int"),
		&ast.If{
			Cond: &ast.Compare{Op: ast.OpIsNot, Left: nm("x"), Right: noneLit()},
			Then: []ast.Stmt{&ast.ExprStmt{Value: nm("x")}},
		},
		ret(nm("x")),
	)

	_, diags := checkModule(t, body)
	require.Len(t, diags.All(), 1, "post-merge x must be Optional again")
	assert.Equal(t, CodeTypeMismatch, diags.All()[0].Code)
}

func TestIsinstanceNarrowing(t *testing.T) {
	// class Animal: ...
	// class Dog(Animal):
	//     def bark(self) -> str: ...
	// def f(a: Animal) -> str:
	//     if isinstance(a, Dog):
	//         return a.bark()
	//     return ""
	animal := &ast.ClassDef{Name: "Animal"}
	dog := &ast.ClassDef{Name: "Dog", Bases: []ast.Expr{nm("Animal")}, Body: []ast.Stmt{
		fn("bark", []ast.ParamDecl{param("self", nil)}, nm("str"), ret(sv("woof"))),
	}}
	f := fn("f",
		[]ast.ParamDecl{param("a", nm("Animal"))},
		nm("str"),
		&ast.If{
			Cond: call(nm("isinstance"), nm("a"), nm("Dog")),
			Then: []ast.Stmt{ret(call(attr(nm("a"), "bark")))},
		},
		ret(sv("")),
	)

	_, diags := checkModule(t, animal, dog, f)
	assert.Empty(t, diags.All())
}

func TestAttributeWithoutNarrowingFails(t *testing.T) {
	animal := &ast.ClassDef{Name: "Animal"}
	dog := &ast.ClassDef{Name: "Dog", Bases: []ast.Expr{nm("Animal")}, Body: []ast.Stmt{
		fn("bark", []ast.ParamDecl{param("self", nil)}, nm("str"), ret(sv("woof"))),
	}}
	f := fn("f",
		[]ast.ParamDecl{param("a", nm("Animal"))},
		nm("str"),
		ret(call(attr(nm("a"), "bark"))),
	)

	_, diags := checkModule(t, animal, dog, f)
	require.NotEmpty(t, diags.All())
	assert.Equal(t, CodeMissingMember, diags.All()[0].Code)
}

func TestTruthinessNarrowing(t *testing.T) {
	// if x: return x
	body := fn("f",
		[]ast.ParamDecl{param("x", optional(nm("int")))},
		nm("int"),
		&ast.If{Cond: nm("x"), Then: []ast.Stmt{ret(nm("x"))}},
		ret(iv(0)),
	)

	_, diags := checkModule(t, body)
	assert.Empty(t, diags.All())
}

func TestLiteralEqualityNarrowing(t *testing.T) {
	// def f(mode: Union[Literal["r"], Literal["w"]]) -> str:
	//     if mode == "r":
	//         return mode
	//     return "other"
	modeAnn := &ast.Index{
		Value: nm("Union"),
		Index: &ast.TupleExpr{Items: []ast.Expr{
			&ast.Index{Value: nm("Literal"), Index: sv("r")},
			&ast.Index{Value: nm("Literal"), Index: sv("w")},
		}},
	}
	body := fn("f",
		[]ast.ParamDecl{param("mode", modeAnn)},
		nm("str"),
		&ast.If{
			Cond: &ast.Compare{Op: ast.OpEq, Left: nm("mode"), Right: sv("r")},
			Then: []ast.Stmt{ret(nm("mode"))},
		},
		ret(sv("other")),
	)

	_, diags := checkModule(t, body)
	assert.Empty(t, diags.All())
}

// --- assignment and flow ----------------------------------------------

func TestAnnotatedAssignMismatch(t *testing.T) {
	_, diags := checkModule(t, annotated("x", nm("int"), sv("hello")))
	require.Len(t, diags.All(), 1)
	assert.Equal(t, CodeTypeMismatch, diags.All()[0].Code)
}

func TestInferredAssignJoin(t *testing.T) {
	// x = 1; x = "s"  -> x: Union[int, str]
	info, diags := checkModule(t,
		assign("x", iv(1)),
		assign("x", sv("s")),
	)
	require.Empty(t, diags.All())

	sym, ok := info.Scope.LookupLocal("x")
	require.True(t, ok)
	_, isUnion := sym.Type().(types.Union)
	assert.True(t, isUnion, "reassignment should join, got %s", sym.Type())
}

func TestUndefinedNameReported(t *testing.T) {
	_, diags := checkModule(t, &ast.ExprStmt{Value: nm("ghost")})
	require.Len(t, diags.All(), 1)
	assert.Equal(t, CodeNameError, diags.All()[0].Code)
}

func TestDuplicateDeclaration(t *testing.T) {
	_, diags := checkModule(t,
		&ast.ClassDef{Name: "Thing"},
		fn("Thing", nil, nil),
	)
	assert.Contains(t, codes(diags), CodeDuplicateDecl)
}

func TestReturnAfterRaiseUnreachable(t *testing.T) {
	// raise makes the tail unreachable; no missing-return error.
	body := fn("f", nil, nm("int"),
		&ast.Raise{Value: call(nm("str"))},
	)
	_, diags := checkModule(t, body)
	assert.Empty(t, diags.All())
}

func TestFallOffEndMissingReturn(t *testing.T) {
	body := fn("f", nil, nm("int"),
		&ast.ExprStmt{Value: iv(1)},
	)
	_, diags := checkModule(t, body)
	require.Len(t, diags.All(), 1)
	assert.Equal(t, CodeTypeMismatch, diags.All()[0].Code)
}

func TestLoopNarrowingCapEmitsNote(t *testing.T) {
	// With the pass cap forced to 1, a loop whose body changes the
	// environment cannot stabilize in time.
	b := newTestBuild(Options{MaxLoopPasses: 1})
	mod := &ast.Module{Name: "main", Path: "main.py", Body: []ast.Stmt{
		assign("x", iv(1)),
		&ast.While{
			Cond: &ast.BoolLit{Value: true},
			Body: []ast.Stmt{assign("x", sv("s"))},
		},
	}}
	b.run(mod)
	assert.Contains(t, codes(b.diags), CodeInternalLimitReached)
}

func TestForLoopElementType(t *testing.T) {
	// def f(xs: list[int]) -> int:
	//     for x in xs:
	//         return x
	//     return 0
	body := fn("f",
		[]ast.ParamDecl{param("xs", &ast.Index{Value: nm("list"), Index: nm("int")})},
		nm("int"),
		&ast.For{Target: nm("x"), Iter: nm("xs"), Body: []ast.Stmt{ret(nm("x"))}},
		ret(iv(0)),
	)
	_, diags := checkModule(t, body)
	assert.Empty(t, diags.All())
}

// --- operators and indexing -------------------------------------------

func TestBinOpRules(t *testing.T) {
	info, diags := checkModule(t,
		assign("a", &ast.BinOp{Op: ast.OpAdd, Left: iv(1), Right: iv(2)}),
		assign("b", &ast.BinOp{Op: ast.OpAdd, Left: iv(1), Right: &ast.FloatLit{Value: 2.5}}),
		assign("c", &ast.BinOp{Op: ast.OpDiv, Left: iv(1), Right: iv(2)}),
		assign("d", &ast.BinOp{Op: ast.OpAdd, Left: sv("a"), Right: sv("b")}),
	)
	require.Empty(t, diags.All())

	wantName := func(name, typeName string) {
		sym, ok := info.Scope.LookupLocal(name)
		require.True(t, ok, name)
		assert.Equal(t, typeName, sym.Type().String(), name)
	}
	wantName("a", "int")
	wantName("b", "float")
	wantName("c", "float")
	wantName("d", "str")
}

func TestBinOpMismatch(t *testing.T) {
	_, diags := checkModule(t,
		assign("x", &ast.BinOp{Op: ast.OpAdd, Left: iv(1), Right: sv("s")}),
	)
	require.Len(t, diags.All(), 1)
	assert.Equal(t, CodeTypeMismatch, diags.All()[0].Code)
}

func TestTupleIndexing(t *testing.T) {
	// t = (1, "s"); a = t[0]; b = t[1]
	info, diags := checkModule(t,
		assign("t", &ast.TupleExpr{Items: []ast.Expr{iv(1), sv("s")}}),
		assign("a", &ast.Index{Value: nm("t"), Index: iv(0)}),
		assign("b", &ast.Index{Value: nm("t"), Index: iv(1)}),
	)
	require.Empty(t, diags.All())

	a, _ := info.Scope.LookupLocal("a")
	b, _ := info.Scope.LookupLocal("b")
	assert.Equal(t, "int", a.Type().String())
	assert.Equal(t, "str", b.Type().String())
}

func TestTupleIndexOutOfRange(t *testing.T) {
	_, diags := checkModule(t,
		assign("t", &ast.TupleExpr{Items: []ast.Expr{iv(1)}}),
		assign("a", &ast.Index{Value: nm("t"), Index: iv(3)}),
	)
	require.Len(t, diags.All(), 1)
	assert.Equal(t, CodeTypeMismatch, diags.All()[0].Code)
}

// --- calls and overloads ----------------------------------------------

func overloadDef(name string, paramAnn, retAnn ast.Expr) *ast.FuncDef {
	return &ast.FuncDef{
		Name:       name,
		Params:     []ast.ParamDecl{param("x", paramAnn)},
		Returns:    retAnn,
		Decorators: []string{"overload"},
	}
}

func TestOverloadFirstMatch(t *testing.T) {
	// @overload
	// def f(x: int) -> str: ...
	// @overload
	// def f(x: str) -> int: ...
	// def f(x): ...
	body := []ast.Stmt{
		overloadDef("f", nm("int"), nm("str")),
		overloadDef("f", nm("str"), nm("int")),
		fn("f", []ast.ParamDecl{param("x", nil)}, nil, &ast.Pass{}),
		assign("a", call(nm("f"), iv(5))),
		assign("b", call(nm("f"), sv("s"))),
	}
	info, diags := checkModule(t, body...)
	require.Empty(t, diags.All())

	a, _ := info.Scope.LookupLocal("a")
	b, _ := info.Scope.LookupLocal("b")
	assert.Equal(t, "str", a.Type().String())
	assert.Equal(t, "int", b.Type().String())
}

func TestOverloadNoMatch(t *testing.T) {
	body := []ast.Stmt{
		overloadDef("f", nm("int"), nm("str")),
		overloadDef("f", nm("str"), nm("int")),
		fn("f", []ast.ParamDecl{param("x", nil)}, nil, &ast.Pass{}),
		assign("a", call(nm("f"), &ast.FloatLit{Value: 1.5})),
	}
	info, diags := checkModule(t, body...)
	require.Len(t, diags.All(), 1)
	assert.Equal(t, CodeNoMatchingOverload, diags.All()[0].Code)

	// The failed call degrades to Any so checking continues.
	a, _ := info.Scope.LookupLocal("a")
	assert.True(t, a.Type().Eq(types.Any))
}

func TestCallArity(t *testing.T) {
	body := []ast.Stmt{
		fn("f", []ast.ParamDecl{param("x", nm("int"))}, nm("int"), ret(nm("x"))),
		&ast.ExprStmt{Value: call(nm("f"))},
		&ast.ExprStmt{Value: call(nm("f"), iv(1), iv(2))},
	}
	_, diags := checkModule(t, body...)
	got := codes(diags)
	require.Len(t, got, 2)
	assert.Equal(t, CodeBadArguments, got[0])
	assert.Equal(t, CodeBadArguments, got[1])
}

func TestNotCallable(t *testing.T) {
	_, diags := checkModule(t,
		assign("x", iv(1)),
		&ast.ExprStmt{Value: call(nm("x"))},
	)
	require.Len(t, diags.All(), 1)
	assert.Equal(t, CodeNotCallable, diags.All()[0].Code)
}

func TestConstructorCall(t *testing.T) {
	// class Point:
	//     def __init__(self, x: int, y: int) -> None: ...
	// p = Point(1, 2)
	// q = Point("a", 2)   # error
	point := &ast.ClassDef{Name: "Point", Body: []ast.Stmt{
		fn("__init__",
			[]ast.ParamDecl{param("self", nil), param("x", nm("int")), param("y", nm("int"))},
			noneLit(),
			&ast.Pass{}),
	}}
	info, diags := checkModule(t,
		point,
		assign("p", call(nm("Point"), iv(1), iv(2))),
		assign("q", call(nm("Point"), sv("a"), iv(2))),
	)
	require.Len(t, diags.All(), 1)
	assert.Equal(t, CodeBadArguments, diags.All()[0].Code)

	p, _ := info.Scope.LookupLocal("p")
	assert.Equal(t, "Point", p.Type().String())
}

func TestMethodCallOnInstance(t *testing.T) {
	// class Greeter:
	//     def greet(self, name: str) -> str: ...
	// g = Greeter()
	// s = g.greet("world")
	greeter := &ast.ClassDef{Name: "Greeter", Body: []ast.Stmt{
		fn("greet",
			[]ast.ParamDecl{param("self", nil), param("name", nm("str"))},
			nm("str"),
			ret(sv("hi"))),
	}}
	info, diags := checkModule(t,
		greeter,
		assign("g", call(nm("Greeter"))),
		assign("s", call(attr(nm("g"), "greet"), sv("world"))),
	)
	require.Empty(t, diags.All())

	s, _ := info.Scope.LookupLocal("s")
	assert.Equal(t, "str", s.Type().String())
}

func TestInheritedMethodLookup(t *testing.T) {
	base := &ast.ClassDef{Name: "Base", Body: []ast.Stmt{
		fn("ping", []ast.ParamDecl{param("self", nil)}, nm("str"), ret(sv("pong"))),
	}}
	derived := &ast.ClassDef{Name: "Derived", Bases: []ast.Expr{nm("Base")}}
	info, diags := checkModule(t,
		base,
		derived,
		assign("d", call(nm("Derived"))),
		assign("s", call(attr(nm("d"), "ping"))),
	)
	require.Empty(t, diags.All())

	s, _ := info.Scope.LookupLocal("s")
	assert.Equal(t, "str", s.Type().String())
}

// --- cross-module -----------------------------------------------------

func TestMutualImportCycle(t *testing.T) {
	// Module a and module b import each other's class for annotations;
	// two-pass analysis resolves both to concrete types.
	modA := &ast.Module{Name: "a", Path: "a.py", Body: []ast.Stmt{
		&ast.Import{Module: "b", Names: []ast.ImportedName{{Name: "B"}}},
		&ast.ClassDef{Name: "A", Body: []ast.Stmt{
			fn("partner", []ast.ParamDecl{param("self", nil)}, nm("B"), ret(call(nm("B")))),
		}},
	}}
	modB := &ast.Module{Name: "b", Path: "b.py", Body: []ast.Stmt{
		&ast.Import{Module: "a", Names: []ast.ImportedName{{Name: "A"}}},
		&ast.ClassDef{Name: "B", Body: []ast.Stmt{
			fn("partner", []ast.ParamDecl{param("self", nil)}, nm("A"), ret(call(nm("A")))),
		}},
	}}

	b := newTestBuild(Options{})
	infoA := symbols.NewModuleInfo("a", b.uni.Scope)
	infoB := symbols.NewModuleInfo("b", b.uni.Scope)

	b.an.Pass1(modA, infoA, b.diags)
	b.an.Pass1(modB, infoB, b.diags)

	depsA := map[string]*symbols.ModuleInfo{"b": infoB}
	depsB := map[string]*symbols.ModuleInfo{"a": infoA}
	b.an.Pass2(modA, infoA, depsA, b.diags)
	b.an.Pass2(modB, infoB, depsB, b.diags)

	NewChecker(b.an, modA, infoA, depsA, b.diags).Check()
	NewChecker(b.an, modB, infoB, depsB, b.diags).Check()

	require.Empty(t, b.diags.All())

	symA, ok := infoA.Scope.LookupLocal("A")
	require.True(t, ok)
	partner, ok := symA.Class.Members.LookupLocal("partner")
	require.True(t, ok)
	sig, ok := partner.Declared.(types.Callable)
	require.True(t, ok)
	assert.Equal(t, "B", sig.Ret.String())
}

func TestMissingImportStrict(t *testing.T) {
	b := newTestBuild(Options{})
	b.run(&ast.Module{Name: "main", Path: "main.py", Body: []ast.Stmt{
		&ast.Import{Module: "nowhere", Names: []ast.ImportedName{{Name: "thing"}}},
	}})
	require.Len(t, b.diags.All(), 1)
	d := b.diags.All()[0]
	assert.Equal(t, CodeMissingImport, d.Code)
	assert.Equal(t, Error, d.Severity)
}

func TestMissingImportLenient(t *testing.T) {
	b := newTestBuild(Options{MissingImportsAreAny: true})
	info := b.run(&ast.Module{Name: "main", Path: "main.py", Body: []ast.Stmt{
		&ast.Import{Module: "nowhere", Names: []ast.ImportedName{{Name: "thing"}}},
		&ast.ExprStmt{Value: call(nm("thing"), iv(1), sv("x"))},
	}})
	require.Len(t, b.diags.All(), 1)
	assert.Equal(t, Warning, b.diags.All()[0].Severity)

	// The missing name types as Any; using it is not an error.
	sym, ok := info.Scope.LookupLocal("thing")
	require.True(t, ok)
	assert.True(t, sym.Type().Eq(types.Any))
}

func TestModuleAttributeAccess(t *testing.T) {
	// import util
	// n = util.size()
	modUtil := &ast.Module{Name: "util", Path: "util.py", Body: []ast.Stmt{
		fn("size", nil, nm("int"), ret(iv(0))),
	}}

	b := newTestBuild(Options{})
	infoUtil := symbols.NewModuleInfo("util", b.uni.Scope)
	b.an.Pass1(modUtil, infoUtil, b.diags)
	b.an.Pass2(modUtil, infoUtil, nil, b.diags)

	modMain := &ast.Module{Name: "main", Path: "main.py", Body: []ast.Stmt{
		&ast.Import{Module: "util"},
		assign("n", call(attr(nm("util"), "size"))),
	}}
	infoMain := symbols.NewModuleInfo("main", b.uni.Scope)
	deps := map[string]*symbols.ModuleInfo{"util": infoUtil}
	b.an.Pass1(modMain, infoMain, b.diags)
	b.an.Pass2(modMain, infoMain, deps, b.diags)
	NewChecker(b.an, modMain, infoMain, deps, b.diags).Check()

	require.Empty(t, b.diags.All())
	n, _ := infoMain.Scope.LookupLocal("n")
	assert.Equal(t, "int", n.Type().String())
}

func TestPrivateNamesNotImportable(t *testing.T) {
	modUtil := &ast.Module{Name: "util", Path: "util.py", Body: []ast.Stmt{
		fn("_hidden", nil, nm("int"), ret(iv(0))),
	}}

	b := newTestBuild(Options{})
	infoUtil := symbols.NewModuleInfo("util", b.uni.Scope)
	b.an.Pass1(modUtil, infoUtil, b.diags)
	b.an.Pass2(modUtil, infoUtil, nil, b.diags)

	modMain := &ast.Module{Name: "main", Path: "main.py", Body: []ast.Stmt{
		&ast.Import{Module: "util", Names: []ast.ImportedName{{Name: "_hidden"}}},
	}}
	infoMain := symbols.NewModuleInfo("main", b.uni.Scope)
	deps := map[string]*symbols.ModuleInfo{"util": infoUtil}
	b.an.Pass1(modMain, infoMain, b.diags)
	b.an.Pass2(modMain, infoMain, deps, b.diags)

	assert.Contains(t, codes(b.diags), CodeNameError)
}

// --- class definition errors ------------------------------------------

func TestInconsistentMRODegrades(t *testing.T) {
	// class X(A, B) / class Y(B, A) / class Z(X, Y) has no C3
	// linearization; Z degrades to a plain object subclass.
	a := &ast.ClassDef{Name: "A"}
	bCls := &ast.ClassDef{Name: "B"}
	x := &ast.ClassDef{Name: "X", Bases: []ast.Expr{nm("A"), nm("B")}}
	y := &ast.ClassDef{Name: "Y", Bases: []ast.Expr{nm("B"), nm("A")}}
	z := &ast.ClassDef{Name: "Z", Bases: []ast.Expr{nm("X"), nm("Y")}}

	info, diags := checkModule(t, a, bCls, x, y, z,
		assign("v", call(nm("Z"))),
	)
	assert.Contains(t, codes(diags), CodeClassDefinition)

	// Z still usable after degrading.
	v, ok := info.Scope.LookupLocal("v")
	require.True(t, ok)
	assert.Equal(t, "Z", v.Type().String())
}

func TestNonClassBaseReported(t *testing.T) {
	_, diags := checkModule(t,
		assign("notAClass", iv(1)),
		&ast.ClassDef{Name: "C", Bases: []ast.Expr{nm("notAClass")}},
	)
	assert.Contains(t, codes(diags), CodeUnresolvedType)
}

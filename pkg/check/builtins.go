package check

import (
	"sync"

	"github.com/pyrite-lang/pyrite/pkg/symbols"
	"github.com/pyrite-lang/pyrite/pkg/types"
)

// Universe is the builtin layer every module scope chains to: the core
// classes and the handful of builtin functions the checker knows about.
// It is built once per build and shared by all modules; the class
// registry locks because independent modules may analyze concurrently.
type Universe struct {
	Scope *symbols.Scope

	Object *types.Class
	Int    *types.Class
	Float  *types.Class
	Str    *types.Class
	Bool   *types.Class
	List   *types.Class
	Dict   *types.Class

	// infos maps every known class back to its member table so
	// attribute access can walk the MRO.
	mu    sync.RWMutex
	infos map[*types.Class]*symbols.ClassInfo
}

// NewUniverse constructs the builtin scope. bool subclasses int, so
// narrowing and arithmetic treat it the Python way.
func NewUniverse() *Universe {
	u := &Universe{
		Scope: symbols.NewScope(symbols.BuiltinScope, nil),
		infos: make(map[*types.Class]*symbols.ClassInfo),
	}

	u.Object = types.NewClass("object")
	u.Int = types.NewClass("int", u.Object)
	u.Float = types.NewClass("float", u.Object)
	u.Str = types.NewClass("str", u.Object)
	u.Bool = types.NewClass("bool", u.Int)
	u.List = types.NewClass("list", u.Object)
	u.List.TypeParams = []*types.TypeVar{{ID: "T", Variance: types.Invariant}}
	u.Dict = types.NewClass("dict", u.Object)
	u.Dict.TypeParams = []*types.TypeVar{
		{ID: "K", Variance: types.Invariant},
		{ID: "V", Variance: types.Invariant},
	}

	for _, c := range []*types.Class{u.Object, u.Int, u.Float, u.Str, u.Bool, u.List, u.Dict} {
		// Builtin hierarchies are well formed; Linearize cannot fail here.
		if _, err := c.Linearize(); err != nil {
			panic(err)
		}
		u.registerClass(c, nil)
	}

	u.declareFunctions()
	return u
}

func (u *Universe) registerClass(c *types.Class, def *symbols.ClassInfo) {
	info := def
	if info == nil {
		info = symbols.NewClassInfo(c, nil)
	}
	u.infos[c] = info
	_ = u.Scope.Declare(&symbols.Symbol{
		Name:     c.Named,
		Kind:     symbols.ClassSymbol,
		State:    symbols.Resolved,
		Declared: types.NewInstance(c),
		Class:    info,
	})
}

// ClassInfo resolves the member table for a class, if known.
func (u *Universe) ClassInfo(c *types.Class) (*symbols.ClassInfo, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	info, ok := u.infos[c]
	return info, ok
}

// RegisterClassInfo records a user class's member table so attribute
// lookups anywhere in the build can reach it.
func (u *Universe) RegisterClassInfo(info *symbols.ClassInfo) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.infos[info.Class] = info
}

func (u *Universe) declareFunctions() {
	intT := types.NewInstance(u.Int)
	strT := types.NewInstance(u.Str)
	boolT := types.NewInstance(u.Bool)

	declare := func(name string, sig types.Callable) {
		_ = u.Scope.Declare(&symbols.Symbol{
			Name:     name,
			Kind:     symbols.FuncSymbol,
			State:    symbols.Resolved,
			Declared: sig,
		})
	}

	declare("len", types.NewCallable(intT, types.Param{Name: "obj", Type: types.Any}))
	declare("print", types.NewCallable(types.None, types.Param{Name: "value", Type: types.Any}))
	declare("repr", types.NewCallable(strT, types.Param{Name: "obj", Type: types.Any}))
	declare("str", types.NewCallable(strT, types.Param{Name: "obj", Type: types.Any}))
	declare("int", types.NewCallable(intT, types.Param{Name: "obj", Type: types.Any}))
	declare("bool", types.NewCallable(boolT, types.Param{Name: "obj", Type: types.Any}))

	// isinstance gets special handling in narrowing; its signature only
	// matters for direct non-conditional calls.
	declare("isinstance", types.NewCallable(boolT,
		types.Param{Name: "obj", Type: types.Any},
		types.Param{Name: "classinfo", Type: types.Any}))
}

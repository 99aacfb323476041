package symbols

import (
	"fmt"
	"strings"
)

// Visibility of a module-level binding. Names starting with an
// underscore are private and excluded from the exported interface.
type Visibility int

const (
	PrivateVisibility Visibility = iota
	PublicVisibility
)

func VisibilityOf(name string) Visibility {
	if strings.HasPrefix(name, "_") {
		return PrivateVisibility
	}
	return PublicVisibility
}

// AnalysisState is the analyzer's per-module state machine.
type AnalysisState int

const (
	Unseen AnalysisState = iota
	Pass1Declared
	Pass2Resolved
	Stable
)

func (s AnalysisState) String() string {
	switch s {
	case Pass1Declared:
		return "pass1-declared"
	case Pass2Resolved:
		return "pass2-resolved"
	case Stable:
		return "stable"
	default:
		return "unseen"
	}
}

// ModuleInfo is a module's semantic model: its top-level scope and
// analysis state. The scope's parent chain reaches builtins.
type ModuleInfo struct {
	Name  string
	Scope *Scope
	State AnalysisState

	// Classes declared at module level, by name, for cross-module
	// annotation resolution.
	Classes map[string]*ClassInfo
}

func NewModuleInfo(name string, builtins *Scope) *ModuleInfo {
	return &ModuleInfo{
		Name:    name,
		Scope:   NewScope(ModuleScope, builtins),
		State:   Unseen,
		Classes: make(map[string]*ClassInfo),
	}
}

// Export returns the exported symbol for name, honoring visibility.
func (m *ModuleInfo) Export(name string) (*Symbol, bool) {
	if VisibilityOf(name) != PublicVisibility {
		return nil, false
	}
	return m.Scope.LookupLocal(name)
}

// ExportedInterface renders the module's public surface in a stable
// order: one `name: type` line per public binding. This rendering is
// what the build layer fingerprints, so any change here invalidates
// every cache.
func (m *ModuleInfo) ExportedInterface() string {
	var b strings.Builder
	for _, name := range m.Scope.Names() {
		if VisibilityOf(name) != PublicVisibility {
			continue
		}
		sym, _ := m.Scope.LookupLocal(name)
		if sym.Overloads != nil {
			for i, sig := range sym.Overloads.Signatures {
				fmt.Fprintf(&b, "%s/%d: %s\n", name, i, sig)
			}
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", name, sym.Type())
	}
	return b.String()
}

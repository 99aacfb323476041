// Package symbols holds the semantic model: symbols, lexical scopes,
// class information with precomputed MRO, and per-module export tables.
package symbols

import (
	"fmt"

	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/types"
)

// Kind classifies what a name refers to.
type Kind int

const (
	VarSymbol Kind = iota
	FuncSymbol
	ClassSymbol
	AliasSymbol
	ModuleSymbol
)

func (k Kind) String() string {
	switch k {
	case FuncSymbol:
		return "function"
	case ClassSymbol:
		return "class"
	case AliasSymbol:
		return "type alias"
	case ModuleSymbol:
		return "module"
	default:
		return "variable"
	}
}

// State tracks a symbol through the analyzer's two passes.
type State int

const (
	// Declared means pass 1 has bound the name with a placeholder type.
	Declared State = iota
	// Resolved means pass 2 has computed the real declared type.
	Resolved
)

// Symbol is one named binding, owned by exactly one Scope.
type Symbol struct {
	Name     string
	Kind     Kind
	State    State
	Declared types.Type // annotated/signature type; Any while placeholder
	Inferred types.Type // checker-refined type; nil until first use
	Def      ast.Node   // defining node, nil for builtins

	// Class is set for ClassSymbol kinds.
	Class *ClassInfo
	// Overloads is set when the name binds an overload group.
	Overloads *OverloadGroup
}

// Type returns the best type known for the symbol: inferred when the
// checker has refined it, declared otherwise.
func (s *Symbol) Type() types.Type {
	if s.Inferred != nil {
		return s.Inferred
	}
	if s.Declared != nil {
		return s.Declared
	}
	return types.Any
}

// DuplicateDeclarationError reports a second declaration of a name in
// the same scope with an incompatible kind.
type DuplicateDeclarationError struct {
	Name     string
	Existing Kind
	New      Kind
}

func (e DuplicateDeclarationError) Error() string {
	return fmt.Sprintf("name %q already declared as a %s, cannot redeclare as a %s",
		e.Name, e.Existing, e.New)
}

// OverloadGroup is an ordered set of alternative signatures for one
// function name. Resolution is first match in declaration order.
type OverloadGroup struct {
	Name       string
	Signatures []types.Callable
	// Impl is the non-overload implementation def, when present.
	Impl *Symbol
}

func (g *OverloadGroup) Add(sig types.Callable) {
	g.Signatures = append(g.Signatures, sig)
}

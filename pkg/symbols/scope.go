package symbols

import "sort"

// ScopeKind distinguishes lookup behavior; class scopes additionally
// search the MRO for member lookup.
type ScopeKind int

const (
	ModuleScope ScopeKind = iota
	ClassScope
	FunctionScope
	BuiltinScope
)

// Scope is one level of the lexical chain. Lookup walks outward toward
// builtins; innermost wins.
type Scope struct {
	Kind   ScopeKind
	Parent *Scope

	names map[string]*Symbol
}

func NewScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{
		Kind:   kind,
		Parent: parent,
		names:  make(map[string]*Symbol),
	}
}

// Declare binds sym in this scope. Rebinding the same name is allowed
// when the kinds agree (progressive assignment); an incompatible kind
// is a DuplicateDeclarationError.
func (s *Scope) Declare(sym *Symbol) error {
	if existing, ok := s.names[sym.Name]; ok {
		if existing.Kind != sym.Kind {
			return DuplicateDeclarationError{
				Name:     sym.Name,
				Existing: existing.Kind,
				New:      sym.Kind,
			}
		}
	}
	s.names[sym.Name] = sym
	return nil
}

// Lookup resolves name against this scope chain, innermost first.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for scope := s; scope != nil; scope = scope.Parent {
		if sym, ok := scope.names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupLocal resolves name in this scope only.
func (s *Scope) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := s.names[name]
	return sym, ok
}

// Names returns the locally bound names in sorted order. Lookup does
// not care about order, but diagnostics and digests must be stable.
func (s *Scope) Names() []string {
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Scope) Len() int { return len(s.names) }

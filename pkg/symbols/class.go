package symbols

import "github.com/pyrite-lang/pyrite/pkg/types"

// ClassInfo couples a class's nominal identity (types.Class, which owns
// the MRO) with its member scope. Member lookup walks the linearization
// in order; first match wins.
type ClassInfo struct {
	Class   *types.Class
	Members *Scope

	// members of ancestor classes, indexed by the same *types.Class
	// pointers the MRO carries. Populated by the analyzer as classes
	// resolve.
	byClass map[*types.Class]*ClassInfo
}

func NewClassInfo(class *types.Class, parent *Scope) *ClassInfo {
	return &ClassInfo{
		Class:   class,
		Members: NewScope(ClassScope, parent),
		byClass: make(map[*types.Class]*ClassInfo),
	}
}

// Link registers an ancestor's ClassInfo so MRO member lookup can reach
// its member scope.
func (c *ClassInfo) Link(ancestor *ClassInfo) {
	c.byClass[ancestor.Class] = ancestor
}

// MemberLookup resolves a member through the MRO. The class's own
// members are consulted first (it heads its own linearization).
func (c *ClassInfo) MemberLookup(name string) (*Symbol, bool) {
	mro := c.Class.MRO()
	if mro == nil {
		// Not linearized (degraded class); fall back to own members.
		sym, ok := c.Members.LookupLocal(name)
		return sym, ok
	}
	for _, cls := range mro {
		var members *Scope
		if cls == c.Class {
			members = c.Members
		} else if info, ok := c.byClass[cls]; ok {
			members = info.Members
		} else {
			continue
		}
		if sym, ok := members.LookupLocal(name); ok {
			return sym, true
		}
	}
	return nil, false
}

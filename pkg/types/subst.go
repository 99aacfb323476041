package types

import "fmt"

// Subs maps type-variable IDs to replacement types.
type Subs map[string]Type

func NewSubs() Subs { return make(Subs) }

// Apply applies the substitution to a type.
func (s Subs) Apply(t Type) Type {
	if len(s) == 0 {
		return t
	}
	return t.Apply(s).(Type)
}

// Compose returns a substitution equivalent to applying s then other.
func (s Subs) Compose(other Subs) Subs {
	result := make(Subs, len(s)+len(other))
	for id, t := range s {
		result[id] = t.Apply(other).(Type)
	}
	for id, t := range other {
		if _, exists := result[id]; !exists {
			result[id] = t
		}
	}
	return result
}

func (s Subs) Clone() Subs {
	result := make(Subs, len(s))
	for id, t := range s {
		result[id] = t
	}
	return result
}

// Substitute is the exported entry point for structural replacement.
func Substitute(t Type, mapping Subs) Type {
	return mapping.Apply(t)
}

// TypeVarSet is a set of type-variable IDs. The zero value is usable.
type TypeVarSet map[string]bool

func NewTypeVarSet(ids ...string) TypeVarSet {
	set := make(TypeVarSet, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (s TypeVarSet) Contains(id string) bool { return s[id] }

func (s TypeVarSet) Union(other TypeVarSet) TypeVarSet {
	if len(other) == 0 {
		return s
	}
	if len(s) == 0 {
		return other
	}
	result := make(TypeVarSet, len(s)+len(other))
	for id := range s {
		result[id] = true
	}
	for id := range other {
		result[id] = true
	}
	return result
}

func (s TypeVarSet) Without(id string) TypeVarSet {
	if !s.Contains(id) {
		return s
	}
	result := make(TypeVarSet, len(s))
	for other := range s {
		if other != id {
			result[other] = true
		}
	}
	return result
}

// Fresher hands out type variables that are unique within one analysis.
type Fresher struct {
	count int
}

func (f *Fresher) Fresh() *TypeVar {
	f.count++
	return &TypeVar{ID: fmt.Sprintf("T%d", f.count)}
}

// Instantiate replaces a Callable's bound type variables with fresh ones
// so one call site's inference cannot leak constraints into another. The
// result has no bound variables; the fresh ones are free.
func (f *Fresher) Instantiate(c Callable) Callable {
	out, _ := f.InstantiateVars(c)
	return out
}

// InstantiateVars is Instantiate plus the fresh variables themselves, in
// the order of the original TypeVars, for callers that unify against
// them.
func (f *Fresher) InstantiateVars(c Callable) (Callable, []*TypeVar) {
	if len(c.TypeVars) == 0 {
		return c, nil
	}
	subs := NewSubs()
	freshVars := make([]*TypeVar, len(c.TypeVars))
	for i, tv := range c.TypeVars {
		fresh := f.Fresh()
		fresh.Bound = tv.Bound
		fresh.Variance = tv.Variance
		subs[tv.ID] = fresh
		freshVars[i] = fresh
	}
	inner := Callable{Params: c.Params, Ret: c.Ret}
	return inner.Apply(subs).(Callable), freshVars
}

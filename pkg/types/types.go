package types

import (
	"fmt"
	"sort"
	"strings"
)

// Type is implemented by every type in the algebra. Types are immutable
// once constructed; all operations return new values.
type Type interface {
	Substitutable
	Name() string
	Eq(Type) bool
	fmt.Stringer
}

// Substitutable is any value that can have type-variable substitutions
// applied and knows its free type variables.
type Substitutable interface {
	Apply(Subs) Substitutable
	FreeTypeVars() TypeVarSet
}

// Variance of a type parameter, used when comparing Instance type
// arguments during subtyping.
type Variance int

const (
	Invariant Variance = iota
	Covariant
	Contravariant
)

func (v Variance) String() string {
	switch v {
	case Covariant:
		return "covariant"
	case Contravariant:
		return "contravariant"
	default:
		return "invariant"
	}
}

// Primitive is an opaque named scalar with no class behind it. Two
// primitives are the same type iff their names match.
type Primitive struct {
	Named string
}

var _ Type = Primitive{}

func (p Primitive) Name() string               { return p.Named }
func (p Primitive) String() string             { return p.Named }
func (p Primitive) Apply(Subs) Substitutable   { return p }
func (p Primitive) FreeTypeVars() TypeVarSet   { return nil }
func (p Primitive) Eq(other Type) bool {
	o, ok := other.(Primitive)
	return ok && o.Named == p.Named
}

// Class is the nominal identity of a class: its name, ordered bases, and
// declared type parameters. Member symbols live in the symbol table, not
// here. MRO is computed once (see Linearize) and immutable afterwards.
type Class struct {
	Named      string
	Bases      []*Class
	TypeParams []*TypeVar

	mro []*Class
}

func NewClass(name string, bases ...*Class) *Class {
	return &Class{Named: name, Bases: bases}
}

func (c *Class) Name() string { return c.Named }

// MRO returns the linearization computed by Linearize, or nil if it has
// not been computed yet.
func (c *Class) MRO() []*Class { return c.mro }

// Instance is a reference to a class, possibly applied to type arguments.
type Instance struct {
	Class    *Class
	TypeArgs []Type
}

var _ Type = Instance{}

func NewInstance(class *Class, args ...Type) Instance {
	return Instance{Class: class, TypeArgs: args}
}

func (t Instance) Name() string { return t.Class.Named }

func (t Instance) String() string {
	if len(t.TypeArgs) == 0 {
		return t.Class.Named
	}
	args := make([]string, len(t.TypeArgs))
	for i, a := range t.TypeArgs {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s[%s]", t.Class.Named, strings.Join(args, ", "))
}

func (t Instance) Apply(subs Subs) Substitutable {
	if len(t.TypeArgs) == 0 {
		return t
	}
	args := make([]Type, len(t.TypeArgs))
	for i, a := range t.TypeArgs {
		args[i] = a.Apply(subs).(Type)
	}
	return Instance{Class: t.Class, TypeArgs: args}
}

func (t Instance) FreeTypeVars() TypeVarSet {
	var ftvs TypeVarSet
	for _, a := range t.TypeArgs {
		ftvs = ftvs.Union(a.FreeTypeVars())
	}
	return ftvs
}

func (t Instance) Eq(other Type) bool {
	o, ok := other.(Instance)
	if !ok || o.Class != t.Class || len(o.TypeArgs) != len(t.TypeArgs) {
		return false
	}
	for i, a := range t.TypeArgs {
		if !a.Eq(o.TypeArgs[i]) {
			return false
		}
	}
	return true
}

// TypeVar is a type variable. Identity is the ID string; Bound, when
// non-nil, is an upper bound checked at instantiation.
type TypeVar struct {
	ID       string
	Bound    Type
	Variance Variance
}

var _ Type = (*TypeVar)(nil)

func (tv *TypeVar) Name() string   { return tv.ID }
func (tv *TypeVar) String() string { return tv.ID }

func (tv *TypeVar) Apply(subs Subs) Substitutable {
	if t, ok := subs[tv.ID]; ok {
		return t
	}
	return tv
}

func (tv *TypeVar) FreeTypeVars() TypeVarSet {
	return NewTypeVarSet(tv.ID)
}

func (tv *TypeVar) Eq(other Type) bool {
	o, ok := other.(*TypeVar)
	return ok && o.ID == tv.ID
}

// LiteralType is a literal value treated as a type (e.g. Literal["r"]).
// Fallback is the runtime type of the value.
type LiteralType struct {
	Value    any
	Fallback Type
}

var _ Type = LiteralType{}

func (t LiteralType) Name() string { return t.String() }

func (t LiteralType) String() string {
	switch v := t.Value.(type) {
	case string:
		return fmt.Sprintf("Literal[%q]", v)
	default:
		return fmt.Sprintf("Literal[%v]", v)
	}
}

func (t LiteralType) Apply(subs Subs) Substitutable {
	return LiteralType{Value: t.Value, Fallback: t.Fallback.Apply(subs).(Type)}
}

func (t LiteralType) FreeTypeVars() TypeVarSet { return t.Fallback.FreeTypeVars() }

func (t LiteralType) Eq(other Type) bool {
	o, ok := other.(LiteralType)
	return ok && o.Value == t.Value && o.Fallback.Eq(t.Fallback)
}

type anyType struct{}

// Any is the dynamic escape hatch: subtype and supertype of everything.
var Any Type = anyType{}

func (anyType) Name() string             { return "Any" }
func (anyType) String() string           { return "Any" }
func (anyType) Apply(Subs) Substitutable { return Any }
func (anyType) FreeTypeVars() TypeVarSet { return nil }
func (anyType) Eq(other Type) bool {
	_, ok := other.(anyType)
	return ok
}

type neverType struct{}

// Never is the empty type: subtype of everything, inhabited by nothing.
var Never Type = neverType{}

func (neverType) Name() string             { return "Never" }
func (neverType) String() string           { return "Never" }
func (neverType) Apply(Subs) Substitutable { return Never }
func (neverType) FreeTypeVars() TypeVarSet { return nil }
func (neverType) Eq(other Type) bool {
	_, ok := other.(neverType)
	return ok
}

type noneType struct{}

// None is the type of the None value.
var None Type = noneType{}

func (noneType) Name() string             { return "None" }
func (noneType) String() string           { return "None" }
func (noneType) Apply(Subs) Substitutable { return None }
func (noneType) FreeTypeVars() TypeVarSet { return nil }
func (noneType) Eq(other Type) bool {
	_, ok := other.(noneType)
	return ok
}

// Union is a flattened, order-normalized set of member types. Construct
// with NewUnion; a Union never contains another Union and never has
// fewer than two members.
type Union struct {
	Members []Type
}

var _ Type = Union{}

// NewUnion flattens nested unions, drops duplicates, and normalizes
// member order. Any absorbs the whole union; Never members vanish.
func NewUnion(members ...Type) Type {
	var flat []Type
	var add func(t Type)
	add = func(t Type) {
		switch tt := t.(type) {
		case Union:
			for _, m := range tt.Members {
				add(m)
			}
		default:
			if t.Eq(Never) {
				return
			}
			for _, seen := range flat {
				if seen.Eq(t) {
					return
				}
			}
			flat = append(flat, t)
		}
	}
	for _, m := range members {
		if m.Eq(Any) {
			return Any
		}
		add(m)
	}
	switch len(flat) {
	case 0:
		return Never
	case 1:
		return flat[0]
	}
	// Normalized order keeps Eq, digests, and diagnostics stable no
	// matter how the union was assembled.
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].String() < flat[j].String()
	})
	return Union{Members: flat}
}

// Optional is the conventional Union[t, None].
func Optional(t Type) Type {
	return NewUnion(t, None)
}

func (t Union) Name() string { return t.String() }

func (t Union) String() string {
	parts := make([]string, len(t.Members))
	for i, m := range t.Members {
		parts[i] = m.String()
	}
	return strings.Join(parts, " | ")
}

func (t Union) Apply(subs Subs) Substitutable {
	members := make([]Type, len(t.Members))
	for i, m := range t.Members {
		members[i] = m.Apply(subs).(Type)
	}
	return NewUnion(members...)
}

func (t Union) FreeTypeVars() TypeVarSet {
	var ftvs TypeVarSet
	for _, m := range t.Members {
		ftvs = ftvs.Union(m.FreeTypeVars())
	}
	return ftvs
}

func (t Union) Eq(other Type) bool {
	o, ok := other.(Union)
	if !ok || len(o.Members) != len(t.Members) {
		return false
	}
	for i, m := range t.Members {
		if !m.Eq(o.Members[i]) {
			return false
		}
	}
	return true
}

// Remove returns the union with every member that is a subtype of drop
// removed. Used by narrowing (e.g. stripping None on `is not None`).
func (t Union) Remove(drop Type) Type {
	var kept []Type
	for _, m := range t.Members {
		if !Subtype(m, drop) {
			kept = append(kept, m)
		}
	}
	return NewUnion(kept...)
}

// Tuple is a fixed-arity heterogeneous sequence.
type Tuple struct {
	Items []Type
}

var _ Type = Tuple{}

func (t Tuple) Name() string { return t.String() }

func (t Tuple) String() string {
	parts := make([]string, len(t.Items))
	for i, item := range t.Items {
		parts[i] = item.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

func (t Tuple) Apply(subs Subs) Substitutable {
	items := make([]Type, len(t.Items))
	for i, item := range t.Items {
		items[i] = item.Apply(subs).(Type)
	}
	return Tuple{Items: items}
}

func (t Tuple) FreeTypeVars() TypeVarSet {
	var ftvs TypeVarSet
	for _, item := range t.Items {
		ftvs = ftvs.Union(item.FreeTypeVars())
	}
	return ftvs
}

func (t Tuple) Eq(other Type) bool {
	o, ok := other.(Tuple)
	if !ok || len(o.Items) != len(t.Items) {
		return false
	}
	for i, item := range t.Items {
		if !item.Eq(o.Items[i]) {
			return false
		}
	}
	return true
}

// ParamKind distinguishes how a Callable parameter binds arguments.
type ParamKind int

const (
	PositionalParam ParamKind = iota
	KeywordParam
	VariadicParam
)

// Param is a single Callable parameter.
type Param struct {
	Name string
	Type Type
	Kind ParamKind
}

// Callable is a function type: ordered parameters, a return type, and
// the type variables bound by this signature (generic functions).
type Callable struct {
	Params   []Param
	Ret      Type
	TypeVars []*TypeVar
}

var _ Type = Callable{}

func NewCallable(ret Type, params ...Param) Callable {
	return Callable{Params: params, Ret: ret}
}

func (t Callable) Name() string { return t.String() }

func (t Callable) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		if p.Name != "" {
			parts[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
		} else {
			parts[i] = p.Type.String()
		}
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), t.Ret)
}

func (t Callable) boundIDs() map[string]bool {
	if len(t.TypeVars) == 0 {
		return nil
	}
	ids := make(map[string]bool, len(t.TypeVars))
	for _, tv := range t.TypeVars {
		ids[tv.ID] = true
	}
	return ids
}

// Apply substitutes free variables only; variables bound by this
// signature shadow the substitution. When a substituted type mentions a
// variable with the same ID as a bound one, the bound variable is
// renamed first so the incoming variable is not captured.
func (t Callable) Apply(subs Subs) Substitutable {
	bound := t.boundIDs()
	filtered := make(Subs, len(subs))
	var incoming TypeVarSet
	for id, ty := range subs {
		if bound[id] {
			continue
		}
		filtered[id] = ty
		incoming = incoming.Union(ty.FreeTypeVars())
	}
	result := t
	for _, tv := range t.TypeVars {
		if incoming.Contains(tv.ID) {
			result = result.renameBound(tv)
		}
	}
	params := make([]Param, len(result.Params))
	for i, p := range result.Params {
		params[i] = Param{Name: p.Name, Type: p.Type.Apply(filtered).(Type), Kind: p.Kind}
	}
	return Callable{
		Params:   params,
		Ret:      result.Ret.Apply(filtered).(Type),
		TypeVars: result.TypeVars,
	}
}

// renameBound alpha-renames one bound variable to a fresh ID derived
// from its own, keeping the signature's meaning intact.
func (t Callable) renameBound(tv *TypeVar) Callable {
	fresh := &TypeVar{ID: tv.ID + "'", Bound: tv.Bound, Variance: tv.Variance}
	for t.mentionsID(fresh.ID) {
		fresh = &TypeVar{ID: fresh.ID + "'", Bound: tv.Bound, Variance: tv.Variance}
	}
	rename := Subs{tv.ID: fresh}
	params := make([]Param, len(t.Params))
	for i, p := range t.Params {
		params[i] = Param{Name: p.Name, Type: p.Type.Apply(rename).(Type), Kind: p.Kind}
	}
	tvs := make([]*TypeVar, len(t.TypeVars))
	for i, b := range t.TypeVars {
		if b.ID == tv.ID {
			tvs[i] = fresh
		} else {
			tvs[i] = b
		}
	}
	return Callable{Params: params, Ret: t.Ret.Apply(rename).(Type), TypeVars: tvs}
}

func (t Callable) mentionsID(id string) bool {
	for _, p := range t.Params {
		if p.Type.FreeTypeVars().Contains(id) {
			return true
		}
	}
	return t.Ret.FreeTypeVars().Contains(id)
}

func (t Callable) FreeTypeVars() TypeVarSet {
	var ftvs TypeVarSet
	for _, p := range t.Params {
		ftvs = ftvs.Union(p.Type.FreeTypeVars())
	}
	ftvs = ftvs.Union(t.Ret.FreeTypeVars())
	for _, tv := range t.TypeVars {
		ftvs = ftvs.Without(tv.ID)
	}
	return ftvs
}

func (t Callable) Eq(other Type) bool {
	o, ok := other.(Callable)
	if !ok || len(o.Params) != len(t.Params) {
		return false
	}
	for i, p := range t.Params {
		op := o.Params[i]
		if p.Kind != op.Kind || !p.Type.Eq(op.Type) {
			return false
		}
	}
	return t.Ret.Eq(o.Ret)
}

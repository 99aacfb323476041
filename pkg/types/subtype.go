package types

import (
	"fmt"
	"strings"
)

// visitedPair keys one in-flight subtype question. Recursive types
// would otherwise send the check into infinite descent; assuming an
// already-visited pair holds is the standard coinductive reading.
type visitedPair struct {
	left, right string
}

// identityKey renders a type for memo keying. Unlike String it encodes
// class and type-variable identity, so two same-named classes from
// different modules never alias within one query.
func identityKey(t Type) string {
	switch tt := t.(type) {
	case Instance:
		if len(tt.TypeArgs) == 0 {
			return fmt.Sprintf("%s@%p", tt.Class.Named, tt.Class)
		}
		args := make([]string, len(tt.TypeArgs))
		for i, a := range tt.TypeArgs {
			args[i] = identityKey(a)
		}
		return fmt.Sprintf("%s@%p[%s]", tt.Class.Named, tt.Class, strings.Join(args, ", "))
	case *TypeVar:
		return fmt.Sprintf("%s@%p", tt.ID, tt)
	case Union:
		parts := make([]string, len(tt.Members))
		for i, m := range tt.Members {
			parts[i] = identityKey(m)
		}
		return strings.Join(parts, " | ")
	case Tuple:
		parts := make([]string, len(tt.Items))
		for i, item := range tt.Items {
			parts[i] = identityKey(item)
		}
		return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
	case Callable:
		parts := make([]string, len(tt.Params))
		for i, p := range tt.Params {
			parts[i] = identityKey(p.Type)
		}
		return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), identityKey(tt.Ret))
	case LiteralType:
		return fmt.Sprintf("%s of %s", tt.String(), identityKey(tt.Fallback))
	default:
		return t.String()
	}
}

// Subtype reports whether a is usable where b is expected.
//
// The rules follow the algebra contract: Any is a bidirectional escape
// hatch, Never is bottom, callables are contravariant in parameters and
// covariant in return, instances are nominal with per-parameter
// variance, tuples are pointwise, unions member-wise.
func Subtype(a, b Type) bool {
	return subtype(a, b, make(map[visitedPair]bool))
}

func subtype(a, b Type, visited map[visitedPair]bool) bool {
	if a.Eq(b) {
		return true
	}
	if a.Eq(Any) || b.Eq(Any) {
		return true
	}
	if a.Eq(Never) {
		return true
	}
	if b.Eq(Never) {
		return false
	}

	key := visitedPair{left: identityKey(a), right: identityKey(b)}
	if visited[key] {
		return true
	}
	visited[key] = true

	// A literal is usable wherever its fallback is.
	if lit, ok := a.(LiteralType); ok {
		return subtype(lit.Fallback, b, visited)
	}

	// Every member of a union must fit the target.
	if ua, ok := a.(Union); ok {
		for _, m := range ua.Members {
			if !subtype(m, b, visited) {
				return false
			}
		}
		return true
	}

	// A non-union fits a union by fitting any member.
	if ub, ok := b.(Union); ok {
		for _, m := range ub.Members {
			if subtype(a, m, visited) {
				return true
			}
		}
		return false
	}

	// A bounded type variable is usable wherever its bound is.
	if tv, ok := a.(*TypeVar); ok {
		if tv.Bound != nil {
			return subtype(tv.Bound, b, visited)
		}
		return false
	}
	if _, ok := b.(*TypeVar); ok {
		return false
	}

	switch bt := b.(type) {
	case Instance:
		ai, ok := a.(Instance)
		if !ok {
			return false
		}
		return instanceSubtype(ai, bt, visited)
	case Callable:
		ac, ok := a.(Callable)
		if !ok {
			return false
		}
		return callableSubtype(ac, bt, visited)
	case Tuple:
		at, ok := a.(Tuple)
		if !ok || len(at.Items) != len(bt.Items) {
			return false
		}
		for i, item := range at.Items {
			if !subtype(item, bt.Items[i], visited) {
				return false
			}
		}
		return true
	}

	return false
}

func instanceSubtype(a, b Instance, visited map[visitedPair]bool) bool {
	if a.Class == b.Class {
		return argsCompatible(a.TypeArgs, b.TypeArgs, b.Class.TypeParams, visited)
	}
	if !a.Class.HasAncestor(b.Class) {
		return false
	}
	// Nominal subclass. Without a full base-specialization map we only
	// compare type arguments when arities line up; a bare (or
	// non-generic) supertype reference accepts any specialization.
	if len(b.TypeArgs) == 0 {
		return true
	}
	if len(a.TypeArgs) != len(b.TypeArgs) {
		return false
	}
	return argsCompatible(a.TypeArgs, b.TypeArgs, b.Class.TypeParams, visited)
}

func argsCompatible(args, targets []Type, params []*TypeVar, visited map[visitedPair]bool) bool {
	if len(args) != len(targets) {
		return false
	}
	for i := range args {
		variance := Invariant
		if i < len(params) {
			variance = params[i].Variance
		}
		switch variance {
		case Covariant:
			if !subtype(args[i], targets[i], visited) {
				return false
			}
		case Contravariant:
			if !subtype(targets[i], args[i], visited) {
				return false
			}
		default:
			if !args[i].Eq(targets[i]) {
				// Any still unifies invariant positions.
				if !args[i].Eq(Any) && !targets[i].Eq(Any) {
					return false
				}
			}
		}
	}
	return true
}

func callableSubtype(a, b Callable, visited map[visitedPair]bool) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i, ap := range a.Params {
		// Contravariant: the candidate must accept at least what the
		// target's parameter promises to supply.
		if !subtype(b.Params[i].Type, ap.Type, visited) {
			return false
		}
	}
	return subtype(a.Ret, b.Ret, visited)
}

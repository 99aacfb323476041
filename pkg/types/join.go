package types

// Join computes the least upper bound of two types: the smallest type
// that both are subtypes of. Unrelated instances join to their nearest
// common non-object base when one exists, otherwise to a Union.
func Join(a, b Type) Type {
	if a.Eq(Any) || b.Eq(Any) {
		return Any
	}
	if a.Eq(Never) {
		return b
	}
	if b.Eq(Never) {
		return a
	}
	if a.Eq(b) {
		return a
	}
	if Subtype(a, b) {
		return b
	}
	if Subtype(b, a) {
		return a
	}

	ai, aok := a.(Instance)
	bi, bok := b.(Instance)
	if aok && bok {
		if common := commonBase(ai.Class, bi.Class); common != nil {
			return Instance{Class: common}
		}
	}

	return NewUnion(a, b)
}

// commonBase finds the nearest shared ancestor of two classes, skipping
// the universal root so unrelated classes fall through to a Union. The
// candidate minimizing combined MRO depth wins; name breaks ties so the
// choice is symmetric in its arguments.
func commonBase(a, b *Class) *Class {
	bDepth := make(map[*Class]int)
	for i, c := range b.ancestry() {
		bDepth[c] = i
	}
	var best *Class
	bestCost := -1
	for i, c := range a.ancestry() {
		j, shared := bDepth[c]
		if !shared || c.Named == "object" {
			continue
		}
		cost := i + j
		if best == nil || cost < bestCost || (cost == bestCost && c.Named < best.Named) {
			best = c
			bestCost = cost
		}
	}
	return best
}

// Meet computes the greatest lower bound, used for narrowing: the type
// of a value known to inhabit both a and b. Unrelated nominal types
// meet at Never.
func Meet(a, b Type) Type {
	if a.Eq(Any) {
		return b
	}
	if b.Eq(Any) {
		return a
	}
	if a.Eq(Never) || b.Eq(Never) {
		return Never
	}
	if a.Eq(b) {
		return a
	}
	if Subtype(a, b) {
		return a
	}
	if Subtype(b, a) {
		return b
	}

	if ua, ok := a.(Union); ok {
		var members []Type
		for _, m := range ua.Members {
			if met := Meet(m, b); !met.Eq(Never) {
				members = append(members, met)
			}
		}
		return NewUnion(members...)
	}
	if ub, ok := b.(Union); ok {
		return Meet(ub, a)
	}

	return Never
}

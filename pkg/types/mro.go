package types

import "fmt"

// InconsistentHierarchyError reports a class whose bases admit no C3
// linearization.
type InconsistentHierarchyError struct {
	Class string
}

func (e InconsistentHierarchyError) Error() string {
	return fmt.Sprintf("cannot compute a consistent method resolution order for class %q", e.Class)
}

// Linearize computes the C3 linearization of the class and stores it.
// It is called once, after all bases are resolved; the stored MRO is
// immutable from then on. Bases must already be linearized.
func (c *Class) Linearize() ([]*Class, error) {
	if c.mro != nil {
		return c.mro, nil
	}
	seqs := make([][]*Class, 0, len(c.Bases)+2)
	for _, base := range c.Bases {
		baseMRO, err := base.Linearize()
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, append([]*Class(nil), baseMRO...))
	}
	if len(c.Bases) > 0 {
		seqs = append(seqs, append([]*Class(nil), c.Bases...))
	}

	merged := []*Class{c}
	for {
		seqs = pruneEmpty(seqs)
		if len(seqs) == 0 {
			break
		}
		next := pickHead(seqs)
		if next == nil {
			return nil, InconsistentHierarchyError{Class: c.Named}
		}
		merged = append(merged, next)
		for i, seq := range seqs {
			if len(seq) > 0 && seq[0] == next {
				seqs[i] = seq[1:]
			}
		}
	}

	c.mro = merged
	return merged, nil
}

// pickHead returns the first sequence head that appears in no other
// sequence's tail, or nil if every head is blocked (inconsistent).
func pickHead(seqs [][]*Class) *Class {
	for _, seq := range seqs {
		head := seq[0]
		if !inAnyTail(head, seqs) {
			return head
		}
	}
	return nil
}

func inAnyTail(c *Class, seqs [][]*Class) bool {
	for _, seq := range seqs {
		for _, other := range seq[1:] {
			if other == c {
				return true
			}
		}
	}
	return false
}

func pruneEmpty(seqs [][]*Class) [][]*Class {
	kept := seqs[:0]
	for _, seq := range seqs {
		if len(seq) > 0 {
			kept = append(kept, seq)
		}
	}
	return kept
}

// ancestry returns the stored MRO when available, falling back to a
// depth-first base walk for classes that were never linearized (e.g.
// degraded classes after a hierarchy error).
func (c *Class) ancestry() []*Class {
	if c.mro != nil {
		return c.mro
	}
	var out []*Class
	seen := make(map[*Class]bool)
	var walk func(*Class)
	walk = func(cls *Class) {
		if seen[cls] {
			return
		}
		seen[cls] = true
		out = append(out, cls)
		for _, base := range cls.Bases {
			walk(base)
		}
	}
	walk(c)
	return out
}

// HasAncestor reports whether other appears in the class's ancestry.
func (c *Class) HasAncestor(other *Class) bool {
	for _, anc := range c.ancestry() {
		if anc == other {
			return true
		}
	}
	return false
}

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClasses() (object, animal, dog, cat, intC, strC *Class) {
	object = NewClass("object")
	animal = NewClass("Animal", object)
	dog = NewClass("Dog", animal)
	cat = NewClass("Cat", animal)
	intC = NewClass("int", object)
	strC = NewClass("str", object)
	for _, c := range []*Class{object, animal, dog, cat, intC, strC} {
		_, err := c.Linearize()
		if err != nil {
			panic(err)
		}
	}
	return
}

func TestSubtypeReflexivity(t *testing.T) {
	object, animal, dog, _, intC, strC := testClasses()

	samples := []Type{
		Any,
		Never,
		None,
		Primitive{Named: "bytes"},
		NewInstance(object),
		NewInstance(animal),
		NewInstance(dog),
		NewUnion(NewInstance(intC), None),
		Tuple{Items: []Type{NewInstance(intC), NewInstance(strC)}},
		NewCallable(NewInstance(strC), Param{Name: "x", Type: NewInstance(intC)}),
		LiteralType{Value: "r", Fallback: NewInstance(strC)},
	}
	for _, s := range samples {
		assert.True(t, Subtype(s, s), "expected %s <: %s", s, s)
	}
}

func TestSubtypeTransitivity(t *testing.T) {
	_, animal, dog, _, _, _ := testClasses()

	a := NewInstance(dog)
	b := NewInstance(animal)
	c := NewUnion(NewInstance(animal), None)

	require.True(t, Subtype(a, b))
	require.True(t, Subtype(b, c))
	assert.True(t, Subtype(a, c))
}

func TestSubtypeAnyNever(t *testing.T) {
	_, _, dog, _, intC, _ := testClasses()

	t.Run("Any is bidirectional", func(t *testing.T) {
		assert.True(t, Subtype(Any, NewInstance(intC)))
		assert.True(t, Subtype(NewInstance(intC), Any))
	})

	t.Run("Never is bottom", func(t *testing.T) {
		assert.True(t, Subtype(Never, NewInstance(dog)))
		assert.True(t, Subtype(Never, Never))
		assert.False(t, Subtype(NewInstance(dog), Never))
	})
}

func TestSubtypeUnions(t *testing.T) {
	_, animal, dog, cat, intC, _ := testClasses()

	dogOrCat := NewUnion(NewInstance(dog), NewInstance(cat))

	t.Run("member fits union", func(t *testing.T) {
		assert.True(t, Subtype(NewInstance(dog), dogOrCat))
	})
	t.Run("union fits common supertype", func(t *testing.T) {
		assert.True(t, Subtype(dogOrCat, NewInstance(animal)))
	})
	t.Run("union does not fit one member", func(t *testing.T) {
		assert.False(t, Subtype(dogOrCat, NewInstance(dog)))
	})
	t.Run("unrelated member breaks it", func(t *testing.T) {
		mixed := NewUnion(NewInstance(dog), NewInstance(intC))
		assert.False(t, Subtype(mixed, NewInstance(animal)))
	})
}

func TestSubtypeCallables(t *testing.T) {
	_, animal, dog, _, intC, _ := testClasses()

	// (Animal) -> Dog is usable where (Dog) -> Animal is expected.
	narrow := NewCallable(NewInstance(dog), Param{Type: NewInstance(animal)})
	wide := NewCallable(NewInstance(animal), Param{Type: NewInstance(dog)})

	assert.True(t, Subtype(narrow, wide))
	assert.False(t, Subtype(wide, narrow))

	t.Run("arity must match", func(t *testing.T) {
		extra := NewCallable(NewInstance(dog),
			Param{Type: NewInstance(animal)},
			Param{Type: NewInstance(intC)})
		assert.False(t, Subtype(extra, wide))
	})
}

func TestSubtypeVariance(t *testing.T) {
	object, animal, dog, _, _, _ := testClasses()

	cov := NewClass("Sequence", object)
	cov.TypeParams = []*TypeVar{{ID: "T", Variance: Covariant}}
	inv := NewClass("MutableList", object)
	inv.TypeParams = []*TypeVar{{ID: "T", Variance: Invariant}}
	for _, c := range []*Class{cov, inv} {
		_, err := c.Linearize()
		require.NoError(t, err)
	}

	t.Run("covariant accepts subtype arg", func(t *testing.T) {
		assert.True(t, Subtype(
			NewInstance(cov, NewInstance(dog)),
			NewInstance(cov, NewInstance(animal))))
	})
	t.Run("invariant rejects subtype arg", func(t *testing.T) {
		assert.False(t, Subtype(
			NewInstance(inv, NewInstance(dog)),
			NewInstance(inv, NewInstance(animal))))
	})
	t.Run("invariant accepts Any arg", func(t *testing.T) {
		assert.True(t, Subtype(
			NewInstance(inv, Any),
			NewInstance(inv, NewInstance(animal))))
	})
}

func TestSubtypeLiterals(t *testing.T) {
	_, _, _, _, intC, strC := testClasses()

	lit := LiteralType{Value: "r", Fallback: NewInstance(strC)}
	assert.True(t, Subtype(lit, NewInstance(strC)))
	assert.False(t, Subtype(NewInstance(strC), lit))
	assert.False(t, Subtype(lit, NewInstance(intC)))
}

func TestUnionNormalization(t *testing.T) {
	_, _, dog, cat, intC, _ := testClasses()

	t.Run("flattens nested unions", func(t *testing.T) {
		inner := NewUnion(NewInstance(dog), NewInstance(cat))
		outer := NewUnion(inner, NewInstance(intC))
		u, ok := outer.(Union)
		require.True(t, ok)
		assert.Len(t, u.Members, 3)
		for _, m := range u.Members {
			_, nested := m.(Union)
			assert.False(t, nested, "union member %s is itself a union", m)
		}
	})

	t.Run("dedupes and collapses singletons", func(t *testing.T) {
		u := NewUnion(NewInstance(dog), NewInstance(dog))
		assert.True(t, u.Eq(NewInstance(dog)))
	})

	t.Run("Any absorbs", func(t *testing.T) {
		assert.True(t, NewUnion(NewInstance(dog), Any).Eq(Any))
	})

	t.Run("Never vanishes", func(t *testing.T) {
		assert.True(t, NewUnion(NewInstance(dog), Never).Eq(NewInstance(dog)))
	})

	t.Run("order-insensitive equality", func(t *testing.T) {
		ab := NewUnion(NewInstance(dog), NewInstance(cat))
		ba := NewUnion(NewInstance(cat), NewInstance(dog))
		assert.True(t, ab.Eq(ba))
	})
}

func TestJoin(t *testing.T) {
	_, animal, dog, cat, intC, strC := testClasses()

	t.Run("commutative", func(t *testing.T) {
		pairs := [][2]Type{
			{NewInstance(dog), NewInstance(cat)},
			{NewInstance(intC), NewInstance(strC)},
			{NewInstance(dog), None},
			{Any, NewInstance(intC)},
			{Never, NewInstance(intC)},
		}
		for _, p := range pairs {
			assert.True(t, Join(p[0], p[1]).Eq(Join(p[1], p[0])),
				"join(%s, %s) != join(%s, %s)", p[0], p[1], p[1], p[0])
		}
	})

	t.Run("upper bound", func(t *testing.T) {
		a := NewInstance(intC)
		b := Optional(NewInstance(strC))
		j := Join(a, b)
		assert.True(t, Subtype(a, j))
		assert.True(t, Subtype(b, j))
	})

	t.Run("common base preferred over union", func(t *testing.T) {
		j := Join(NewInstance(dog), NewInstance(cat))
		assert.True(t, j.Eq(NewInstance(animal)), "got %s", j)
	})

	t.Run("unrelated instances form a union", func(t *testing.T) {
		j := Join(NewInstance(intC), NewInstance(strC))
		_, ok := j.(Union)
		assert.True(t, ok, "got %s", j)
	})

	t.Run("Any absorbs", func(t *testing.T) {
		assert.True(t, Join(Any, NewInstance(intC)).Eq(Any))
	})

	t.Run("Never is identity", func(t *testing.T) {
		assert.True(t, Join(Never, NewInstance(intC)).Eq(NewInstance(intC)))
	})
}

func TestMeet(t *testing.T) {
	_, animal, dog, _, intC, strC := testClasses()

	t.Run("narrows union by branch type", func(t *testing.T) {
		opt := Optional(NewInstance(intC))
		assert.True(t, Meet(opt, NewInstance(intC)).Eq(NewInstance(intC)))
		assert.True(t, Meet(opt, None).Eq(None))
	})

	t.Run("subtype side wins", func(t *testing.T) {
		assert.True(t, Meet(NewInstance(animal), NewInstance(dog)).Eq(NewInstance(dog)))
	})

	t.Run("unrelated nominal types meet at Never", func(t *testing.T) {
		assert.True(t, Meet(NewInstance(intC), NewInstance(strC)).Eq(Never))
	})

	t.Run("Any is identity", func(t *testing.T) {
		assert.True(t, Meet(Any, NewInstance(intC)).Eq(NewInstance(intC)))
	})
}

func TestUnionRemove(t *testing.T) {
	_, _, _, _, intC, strC := testClasses()

	u := NewUnion(NewInstance(intC), NewInstance(strC), None).(Union)
	assert.True(t, u.Remove(None).Eq(NewUnion(NewInstance(intC), NewInstance(strC))))
	assert.True(t, u.Remove(NewInstance(strC)).Eq(NewUnion(NewInstance(intC), None)))
}

func TestSubtypeSameNameDistinctClasses(t *testing.T) {
	// Two modules can each declare a class named Node. Within one
	// query the memo must track them by identity, not rendered name,
	// or the second comparison inherits the first one's answer.
	base := NewClass("Node")
	derived := NewClass("Node", base)
	stranger := NewClass("Node")

	pair := Tuple{Items: []Type{NewInstance(derived), NewInstance(stranger)}}
	want := Tuple{Items: []Type{NewInstance(base), NewInstance(base)}}

	assert.True(t, Subtype(NewInstance(derived), NewInstance(base)))
	assert.False(t, Subtype(NewInstance(stranger), NewInstance(base)))
	assert.False(t, Subtype(pair, want))
}

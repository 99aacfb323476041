package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	_, _, _, _, intC, strC := testClasses()

	tv := &TypeVar{ID: "T"}
	listC := NewClass("list")
	listC.TypeParams = []*TypeVar{{ID: "T", Variance: Invariant}}

	t.Run("replaces free variables structurally", func(t *testing.T) {
		subs := Subs{"T": NewInstance(intC)}
		got := Substitute(NewInstance(listC, tv), subs)
		assert.True(t, got.Eq(NewInstance(listC, NewInstance(intC))))

		got = Substitute(NewUnion(tv, None), subs)
		assert.True(t, got.Eq(Optional(NewInstance(intC))))

		got = Substitute(Tuple{Items: []Type{tv, NewInstance(strC)}}, subs)
		assert.True(t, got.Eq(Tuple{Items: []Type{NewInstance(intC), NewInstance(strC)}}))
	})

	t.Run("leaves unrelated variables alone", func(t *testing.T) {
		u := &TypeVar{ID: "U"}
		got := Substitute(u, Subs{"T": NewInstance(intC)})
		assert.True(t, got.Eq(u))
	})

	t.Run("bound variables shadow the substitution", func(t *testing.T) {
		inner := &TypeVar{ID: "T"}
		generic := Callable{
			Params:   []Param{{Name: "x", Type: inner}},
			Ret:      inner,
			TypeVars: []*TypeVar{inner},
		}
		got := Substitute(generic, Subs{"T": NewInstance(intC)})
		c, ok := got.(Callable)
		require.True(t, ok)
		_, stillVar := c.Ret.(*TypeVar)
		assert.True(t, stillVar, "bound T must not be substituted, got %s", c.Ret)
	})

	t.Run("capture avoidance renames bound variables", func(t *testing.T) {
		// Substituting U := T into forall T. (x: U) -> T must not let
		// the incoming T collide with the bound one.
		boundT := &TypeVar{ID: "T"}
		freeU := &TypeVar{ID: "U"}
		generic := Callable{
			Params:   []Param{{Name: "x", Type: freeU}},
			Ret:      boundT,
			TypeVars: []*TypeVar{boundT},
		}
		outerT := &TypeVar{ID: "T"}
		got := Substitute(generic, Subs{"U": outerT}).(Callable)

		require.Len(t, got.Params, 1)
		param, ok := got.Params[0].Type.(*TypeVar)
		require.True(t, ok)
		assert.Equal(t, "T", param.ID, "incoming T must survive as-is")

		ret, ok := got.Ret.(*TypeVar)
		require.True(t, ok)
		assert.NotEqual(t, "T", ret.ID, "bound T must have been renamed")
	})
}

func TestFresherInstantiate(t *testing.T) {
	_, _, _, _, intC, _ := testClasses()

	tv := &TypeVar{ID: "T"}
	generic := Callable{
		Params:   []Param{{Name: "x", Type: tv}},
		Ret:      tv,
		TypeVars: []*TypeVar{tv},
	}

	var fresh Fresher
	first := fresh.Instantiate(generic)
	second := fresh.Instantiate(generic)

	require.Empty(t, first.TypeVars)
	require.Empty(t, second.TypeVars)

	fv1, ok := first.Ret.(*TypeVar)
	require.True(t, ok)
	fv2, ok := second.Ret.(*TypeVar)
	require.True(t, ok)
	assert.NotEqual(t, fv1.ID, fv2.ID, "call sites must not share variables")

	// Instantiated signature still links param and return.
	applied := Substitute(first, Subs{fv1.ID: NewInstance(intC)}).(Callable)
	assert.True(t, applied.Params[0].Type.Eq(NewInstance(intC)))
	assert.True(t, applied.Ret.Eq(NewInstance(intC)))
}

func TestSubsCompose(t *testing.T) {
	_, _, _, _, intC, strC := testClasses()

	a := Subs{"T": &TypeVar{ID: "U"}}
	b := Subs{"U": NewInstance(intC), "V": NewInstance(strC)}
	composed := a.Compose(b)

	assert.True(t, composed.Apply(&TypeVar{ID: "T"}).Eq(NewInstance(intC)))
	assert.True(t, composed.Apply(&TypeVar{ID: "V"}).Eq(NewInstance(strC)))
}

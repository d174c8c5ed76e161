package ir

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashConsingDedups(t *testing.T) {
	w := NewWorld()

	i32 := w.Literal(Invalid, 0) // stand-in type slot for this package-local test
	a := w.Literal(i32, 1)
	b := w.Literal(i32, 1)

	require.Equal(t, a, b, "identical literals must intern to the same DefID")

	add1 := w.internStructural(KindAdd, i32, []DefID{a, b}, 0)
	add2 := w.internStructural(KindAdd, i32, []DefID{a, b}, 0)

	require.Equal(t, add1, add2, "structurally identical nodes must hash-cons to one Def")

	addOther := w.internStructural(KindAdd, i32, []DefID{a, w.Literal(i32, 2)}, 0)
	require.NotEqual(t, add1, addOther)
}

func TestUseDefOrdering(t *testing.T) {
	w := NewWorld()

	typ := w.Literal(Invalid, 0)
	x := w.Literal(typ, 7)

	lam1 := w.NewLambda(typ, "f1")
	lam2 := w.NewLambda(typ, "f2")

	w.internStructural(KindAdd, typ, []DefID{x, x}, 0) // creates two uses at index 0 and 1
	w.SetOp(lam1, 3, x)
	w.SetOp(lam2, 1, x)

	uses := w.Def(x).Uses()
	require.True(t, len(uses) >= 2)

	for i := 1; i < len(uses); i++ {
		prevGID := w.Def(uses[i-1].User).GID()
		curGID := w.Def(uses[i].User).GID()
		require.True(t, prevGID < curGID || (prevGID == curGID && uses[i-1].Index <= uses[i].Index))
	}
}

func TestReplaceDereferencesTransitively(t *testing.T) {
	w := NewWorld()
	typ := w.Literal(Invalid, 0)

	a := w.Literal(typ, 1)
	b := w.Literal(typ, 2)
	c := w.Literal(typ, 3)

	w.Replace(a, b)
	w.Replace(b, c)

	require.Equal(t, c, w.Deref(a))
	require.Equal(t, c, w.Deref(b))
}

func TestCleanupDropsUnreachableLambdas(t *testing.T) {
	w := NewWorld()
	typ := w.Literal(Invalid, 0)

	root := w.NewLambda(typ, "root")
	orphan := w.NewLambda(typ, "orphan")
	_ = orphan

	err := w.Cleanup(context.Background(), []DefID{root})
	require.NoError(t, err)

	_, stillThere := w.lambdas[orphan]
	require.False(t, stillThere)

	_, rootThere := w.lambdas[root]
	require.True(t, rootThere)
}

func TestPassMarkingIsPerPass(t *testing.T) {
	w := NewWorld()
	typ := w.Literal(Invalid, 0)
	lam := w.NewLambda(typ, "f")

	p1 := w.NewPass()
	require.False(t, w.Visit(p1, lam))
	require.True(t, w.Visit(p1, lam))

	p2 := w.NewPass()
	require.False(t, w.IsVisited(p2, lam))
}

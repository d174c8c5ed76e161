package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLambdaStartsEmpty(t *testing.T) {
	w := NewWorld()
	typ := w.Literal(Invalid, 0)

	lam := w.NewLambda(typ, "f")
	require.True(t, w.Def(lam).Empty())

	w.Jump(lam, lam, nil)
	require.False(t, w.Def(lam).Empty())
}

func TestAppendParamAssignsIndex(t *testing.T) {
	w := NewWorld()
	typ := w.Literal(Invalid, 0)
	lam := w.NewLambda(typ, "f")

	p0 := w.AppendParam(lam, typ, "a")
	p1 := w.AppendParam(lam, typ, "b")

	_, i0 := w.ParamLambda(p0)
	_, i1 := w.ParamLambda(p1)

	require.Equal(t, 0, i0)
	require.Equal(t, 1, i1)
	require.Equal(t, []DefID{p0, p1}, w.Params(lam))
}

func TestKindTaxonomyIsStable(t *testing.T) {
	require.Equal(t, "add", KindAdd.String())
	require.Equal(t, "select", KindSelect.String())
	require.True(t, KindAdd.IsCommutative())
	require.False(t, KindSub.IsCommutative())
	require.True(t, KindLambda.IsNominal())
	require.False(t, KindAdd.IsNominal())
}

func TestSelectFoldsConstantCondition(t *testing.T) {
	w := NewWorld()
	typ := w.Literal(Invalid, 0)

	trueLit := w.Literal(typ, 1)
	falseLit := w.Literal(typ, 0)

	tVal := w.Literal(typ, 100)
	fVal := w.Literal(typ, 200)

	require.Equal(t, tVal, w.Select(trueLit, tVal, fVal))
	require.Equal(t, fVal, w.Select(falseLit, tVal, fVal))
}

func TestCascadingAndPassedClassification(t *testing.T) {
	w := NewWorld()
	typ := w.Literal(Invalid, 0)

	caller := w.NewLambda(typ, "caller")
	callee := w.NewLambda(typ, "callee")
	holder := w.NewLambda(typ, "holder")

	w.Jump(caller, callee, nil)
	require.True(t, w.IsCascading(callee))
	require.False(t, w.IsPassed(callee))

	w.Jump(holder, holder, []DefID{callee})
	require.True(t, w.IsPassed(callee))
}

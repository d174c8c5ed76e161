package tp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderOfPlainFunction(t *testing.T) {
	fn := Fn{Params: []Type{Int{Bits: 64, Signed: true}, Mem{}}}
	require.Equal(t, 0, fn.Order())
	require.True(t, fn.IsBasicBlock())
	require.False(t, fn.IsReturning())
}

func TestOrderOfReturningFunction(t *testing.T) {
	ret := Fn{Params: []Type{Int{Bits: 64, Signed: true}}}
	fn := Fn{Params: []Type{Int{Bits: 32, Signed: false}, ret}}

	require.Equal(t, 1, fn.Order())
	require.False(t, fn.IsBasicBlock())
	require.True(t, fn.IsReturning())
}

func TestOrderOfHigherOrderFunction(t *testing.T) {
	ret := Fn{Params: []Type{Int{Bits: 64, Signed: true}}}
	callback := Fn{Params: []Type{Int{Bits: 32, Signed: false}, ret}}
	fn := Fn{Params: []Type{callback, ret}}

	require.Equal(t, 2, fn.Order())
	require.False(t, fn.IsBasicBlock())
	require.False(t, fn.IsReturning(), "two higher-order params, not exactly one")
}

func TestSpecializeSubstitutesGenerics(t *testing.T) {
	fn := Fn{Params: []Type{Generic{Index: 0}, Mem{}}}
	sub := map[int]Type{0: Int{Bits: 64, Signed: true}}

	got := fn.Specialize(sub)
	want := Fn{Params: []Type{Int{Bits: 64, Signed: true}, Mem{}}}

	require.Equal(t, want, got)
}

func TestInferWithPopulatesGenericBindings(t *testing.T) {
	fn := Fn{Params: []Type{Generic{Index: 0}, Generic{Index: 0}}}
	arg := Fn{Params: []Type{Int{Bits: 32, Signed: false}, Int{Bits: 32, Signed: false}}}

	sub := map[int]Type{}
	ok := fn.InferWith(sub, arg)

	require.True(t, ok)
	require.Equal(t, Int{Bits: 32, Signed: false}, sub[0])
}

func TestInferWithRejectsInconsistentGenericUse(t *testing.T) {
	fn := Fn{Params: []Type{Generic{Index: 0}, Generic{Index: 0}}}
	arg := Fn{Params: []Type{Int{Bits: 32, Signed: false}, Int{Bits: 64, Signed: true}}}

	ok := fn.InferWith(map[int]Type{}, arg)
	require.False(t, ok)
}

func TestTableInterning(t *testing.T) {
	table := NewTable()

	a := table.Intern(Int{Bits: 32, Signed: true})
	b := table.Intern(Int{Bits: 32, Signed: true})

	require.Equal(t, a, b)
}

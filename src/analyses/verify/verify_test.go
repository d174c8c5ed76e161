package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thorin-go/thorin/src/analyses/scope"
	"github.com/thorin-go/thorin/src/ir"
	"github.com/thorin-go/thorin/src/tp"
)

func typeOfFor(types map[ir.TypeID]tp.Type) TypeOf {
	return func(id ir.TypeID) tp.Type {
		return types[id]
	}
}

func TestVerifyAcceptsMatchingCallSite(t *testing.T) {
	w := ir.NewWorld()
	types := map[ir.TypeID]tp.Type{}

	i32 := w.Literal(ir.Invalid, 100)
	types[i32] = tp.Int{Bits: 32, Signed: true}

	fnTyp := w.Literal(ir.Invalid, 101)
	types[fnTyp] = tp.Fn{Params: []tp.Type{tp.Int{Bits: 32, Signed: true}}}

	caller := w.NewLambda(fnTyp, "caller")
	callee := w.NewLambda(fnTyp, "callee")
	x := w.AppendParam(callee, i32, "x")
	w.Jump(callee, callee, []ir.DefID{x}) // terminated: Verify rejects unterminated lambdas

	arg := w.Literal(i32, 7)
	w.Jump(caller, callee, []ir.DefID{arg})

	s, err := scope.New(context.Background(), w, []ir.DefID{caller})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, Verify(context.Background(), s, w, typeOfFor(types)))
}

func TestVerifyRejectsArityMismatch(t *testing.T) {
	w := ir.NewWorld()
	types := map[ir.TypeID]tp.Type{}

	i32 := w.Literal(ir.Invalid, 100)
	types[i32] = tp.Int{Bits: 32, Signed: true}

	fnTyp := w.Literal(ir.Invalid, 101)
	types[fnTyp] = tp.Fn{Params: []tp.Type{tp.Int{Bits: 32, Signed: true}}}

	caller := w.NewLambda(fnTyp, "caller")
	callee := w.NewLambda(fnTyp, "callee")
	w.AppendParam(callee, i32, "x")

	w.Jump(caller, callee, nil) // missing the required argument

	s, err := scope.New(context.Background(), w, []ir.DefID{caller})
	require.NoError(t, err)
	defer s.Close()

	err = Verify(context.Background(), s, w, typeOfFor(types))
	require.Error(t, err)
}

func TestVerifyRejectsHigherOrderParamOnBasicBlock(t *testing.T) {
	w := ir.NewWorld()
	types := map[ir.TypeID]tp.Type{}

	i32 := w.Literal(ir.Invalid, 100)
	types[i32] = tp.Int{Bits: 32, Signed: true}

	retTyp := w.Literal(ir.Invalid, 102)
	types[retTyp] = tp.Fn{Params: []tp.Type{tp.Int{Bits: 32, Signed: true}}}

	bbTyp := w.Literal(ir.Invalid, 101)
	types[bbTyp] = tp.Fn{Params: []tp.Type{tp.Int{Bits: 32, Signed: true}}} // basic block: no higher-order params

	bb := w.NewLambda(bbTyp, "bb")
	badParam := w.AppendParam(bb, retTyp, "k") // higher-order param on a basic-block lambda
	w.Jump(bb, bb, []ir.DefID{badParam})

	s, err := scope.New(context.Background(), w, []ir.DefID{bb})
	require.NoError(t, err)
	defer s.Close()

	err = Verify(context.Background(), s, w, typeOfFor(types))
	require.Error(t, err)
}

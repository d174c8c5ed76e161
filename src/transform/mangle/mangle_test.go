package mangle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thorin-go/thorin/src/analyses/scope"
	"github.com/thorin-go/thorin/src/ir"
	"github.com/thorin-go/thorin/src/tp"
)

func identitySubst(id ir.TypeID, sub map[int]tp.Type) ir.TypeID { return id }

func fnOfStub(params []ir.TypeID) ir.TypeID { return ir.Invalid }

func TestMangleDropsFixedParam(t *testing.T) {
	w := ir.NewWorld()
	typ := w.Literal(ir.Invalid, 0)

	callee := w.NewLambda(typ, "callee")

	root := w.NewLambda(typ, "root")
	p := w.AppendParam(root, typ, "n")
	w.Jump(root, callee, []ir.DefID{p})

	s, err := scope.New(context.Background(), w, []ir.DefID{root})
	require.NoError(t, err)
	defer s.Close()

	m := New(w, s, func(ir.TypeID) tp.Type { return tp.Bottom{} }, identitySubst, fnOfStub)

	const2 := w.Literal(typ, 42)
	spec, err := m.Mangle(context.Background(), root, []Arg{Dropped(const2)}, nil)
	require.NoError(t, err)

	require.Empty(t, w.Params(spec))
	require.Equal(t, []ir.DefID{const2}, w.Args(spec))
}

func TestMangleLiftsKeptParam(t *testing.T) {
	w := ir.NewWorld()
	typ := w.Literal(ir.Invalid, 0)

	callee := w.NewLambda(typ, "callee")

	root := w.NewLambda(typ, "root")
	p := w.AppendParam(root, typ, "n")
	w.Jump(root, callee, []ir.DefID{p})

	s, err := scope.New(context.Background(), w, []ir.DefID{root})
	require.NoError(t, err)
	defer s.Close()

	m := New(w, s, func(ir.TypeID) tp.Type { return tp.Bottom{} }, identitySubst, fnOfStub)

	spec, err := m.Mangle(context.Background(), root, []Arg{Lift()}, nil)
	require.NoError(t, err)

	require.Len(t, w.Params(spec), 1)
	require.Equal(t, w.Params(spec)[0], w.Args(spec)[0])
}

func TestMangleMemoizesIdenticalRequests(t *testing.T) {
	w := ir.NewWorld()
	typ := w.Literal(ir.Invalid, 0)
	callee := w.NewLambda(typ, "callee")
	root := w.NewLambda(typ, "root")
	p := w.AppendParam(root, typ, "n")
	w.Jump(root, callee, []ir.DefID{p})

	s, err := scope.New(context.Background(), w, []ir.DefID{root})
	require.NoError(t, err)
	defer s.Close()

	m := New(w, s, func(ir.TypeID) tp.Type { return tp.Bottom{} }, identitySubst, fnOfStub)

	const2 := w.Literal(typ, 9)
	a, err := m.Mangle(context.Background(), root, []Arg{Dropped(const2)}, nil)
	require.NoError(t, err)
	b, err := m.Mangle(context.Background(), root, []Arg{Dropped(const2)}, nil)
	require.NoError(t, err)

	require.Equal(t, a, b)
}

// TestMangleAllLiftPreservesShape mangles with every parameter lifted (no
// drops): the clone must keep the same parameter count and pass its
// parameters straight through to the same jump target, i.e. be isomorphic
// to the original up to gid renaming.
func TestMangleAllLiftPreservesShape(t *testing.T) {
	w := ir.NewWorld()
	typ := w.Literal(ir.Invalid, 0)

	callee := w.NewLambda(typ, "callee")

	root := w.NewLambda(typ, "root")
	p := w.AppendParam(root, typ, "n")
	w.Jump(root, callee, []ir.DefID{p})

	s, err := scope.New(context.Background(), w, []ir.DefID{root})
	require.NoError(t, err)
	defer s.Close()

	m := New(w, s, func(ir.TypeID) tp.Type { return tp.Bottom{} }, identitySubst, fnOfStub)

	spec, err := m.Mangle(context.Background(), root, []Arg{Lift()}, nil)
	require.NoError(t, err)

	require.Len(t, w.Params(spec), len(w.Params(root)))
	require.Equal(t, w.Params(spec)[0], w.Args(spec)[0])
}

// TestMangleDropEqualsConstantFold checks P7: dropping a parameter that
// feeds a structural op and then hash-consing produces the same result as
// building that op directly with the constant substituted in.
func TestMangleDropEqualsConstantFold(t *testing.T) {
	w := ir.NewWorld()
	typ := w.Literal(ir.Invalid, 0)

	callee := w.NewLambda(typ, "callee")

	root := w.NewLambda(typ, "root")
	p := w.AppendParam(root, typ, "n")
	other := w.Literal(typ, 5)
	sum := w.BinOp(ir.KindAdd, typ, p, other)
	w.Jump(root, callee, []ir.DefID{sum})

	s, err := scope.New(context.Background(), w, []ir.DefID{root})
	require.NoError(t, err)
	defer s.Close()

	m := New(w, s, func(ir.TypeID) tp.Type { return tp.Bottom{} }, identitySubst, fnOfStub)

	constVal := w.Literal(typ, 7)
	spec, err := m.Mangle(context.Background(), root, []Arg{Dropped(constVal)}, nil)
	require.NoError(t, err)

	expected := w.BinOp(ir.KindAdd, typ, constVal, other)
	require.Equal(t, expected, w.Args(spec)[0])
}

// TestMangleRecursiveLoopMatchesReducedArity exercises a nested lambda that
// jumps back to root (a loop body, not root's own terminator): the clone of
// that nested lambda must reduce its recursive jump's argument count to
// match head's narrowed signature, not root's original one.
func TestMangleRecursiveLoopMatchesReducedArity(t *testing.T) {
	w := ir.NewWorld()
	typ := w.Literal(ir.Invalid, 0)

	root := w.NewLambda(typ, "root")
	n := w.AppendParam(root, typ, "n")
	acc := w.AppendParam(root, typ, "acc")

	loop := w.NewLambda(typ, "loop")
	n2 := w.AppendParam(loop, typ, "n")
	acc2 := w.AppendParam(loop, typ, "acc")
	w.Jump(loop, root, []ir.DefID{n2, acc2})

	w.Jump(root, loop, []ir.DefID{n, acc})

	s, err := scope.New(context.Background(), w, []ir.DefID{root})
	require.NoError(t, err)
	defer s.Close()

	m := New(w, s, func(ir.TypeID) tp.Type { return tp.Bottom{} }, identitySubst, fnOfStub)

	fixed := w.Literal(typ, 3)
	head, err := m.Mangle(context.Background(), root, []Arg{Dropped(fixed), Lift()}, nil)
	require.NoError(t, err)
	require.Len(t, w.Params(head), 1)

	loopHead := w.Target(head)
	require.NotEqual(t, head, loopHead)

	loopTarget := w.Target(loopHead)
	require.Equal(t, w.Deref(head), w.Deref(loopTarget))
	require.Len(t, w.Args(loopHead), len(w.Params(head)))
}

// TestMangleSelfLoopCollapsesToHead exercises root jumping directly back to
// itself: the specialized head's own jump must target itself with an
// argument list already reduced to its own narrowed parameter count.
func TestMangleSelfLoopCollapsesToHead(t *testing.T) {
	w := ir.NewWorld()
	typ := w.Literal(ir.Invalid, 0)

	root := w.NewLambda(typ, "root")
	n := w.AppendParam(root, typ, "n")
	acc := w.AppendParam(root, typ, "acc")
	w.Jump(root, root, []ir.DefID{n, acc})

	s, err := scope.New(context.Background(), w, []ir.DefID{root})
	require.NoError(t, err)
	defer s.Close()

	m := New(w, s, func(ir.TypeID) tp.Type { return tp.Bottom{} }, identitySubst, fnOfStub)

	fixed := w.Literal(typ, 9)
	head, err := m.Mangle(context.Background(), root, []Arg{Dropped(fixed), Lift()}, nil)
	require.NoError(t, err)

	require.Len(t, w.Params(head), 1)
	require.Equal(t, w.Deref(head), w.Deref(w.Target(head)))
	require.Equal(t, w.Params(head), w.Args(head))
}

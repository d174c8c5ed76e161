package cff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thorin-go/thorin/src/analyses/scope"
	"github.com/thorin-go/thorin/src/ir"
	"github.com/thorin-go/thorin/src/tp"
	"github.com/thorin-go/thorin/src/typeenv"
)

// buildKnownCallers builds: main(mem, k) calls helper(mem, tail), passing
// the statically known continuation tail as helper's k, and
// helper itself jumps through its own parameter (a bad call from
// helper's point of view, resolvable once we know who calls helper).
func buildKnownCallers(t *testing.T) (*ir.World, *typeenv.Env, ir.DefID) {
	w := ir.NewWorld()
	env := typeenv.New(w)

	i32 := env.Intern(tp.Int{Bits: 32, Signed: true})
	mem := env.Intern(tp.Mem{})
	retTyp := env.Intern(tp.Fn{Params: []tp.Type{tp.Mem{}, tp.Int{Bits: 32, Signed: true}}})
	fnTyp := env.Intern(tp.Fn{Params: []tp.Type{tp.Mem{}, tp.Fn{Params: []tp.Type{tp.Mem{}, tp.Int{Bits: 32, Signed: true}}}}})

	helper := w.NewLambda(fnTyp, "helper")
	hm := w.AppendParam(helper, mem, "mem")
	hk := w.AppendParam(helper, retTyp, "k")
	val := w.Literal(i32, 5)
	w.Jump(helper, hk, []ir.DefID{hm, val}) // bad call: target is hk, a param

	tail := w.NewLambda(retTyp, "tail")
	tm := w.AppendParam(tail, mem, "mem")
	tv := w.AppendParam(tail, i32, "v")
	_ = tm
	_ = tv
	w.Jump(tail, tail, []ir.DefID{tm, tv}) // dummy terminator; tail is in scope after lowering, so its arity must match

	main := w.NewLambda(fnTyp, "main")
	w.MarkExternal(main)
	mm := w.AppendParam(main, mem, "mem")
	mk := w.AppendParam(main, retTyp, "k")
	_ = mk
	w.Jump(main, helper, []ir.DefID{mm, tail})

	w.Seal(helper)
	w.Seal(main)
	w.Seal(tail)

	return w, env, main
}

func TestLowerResolvesBadCallWithKnownCaller(t *testing.T) {
	w, env, main := buildKnownCallers(t)

	s, err := scope.New(context.Background(), w, []ir.DefID{main})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, Lower(context.Background(), w, s, env.TypeOf, env.Specialize, env.Fn))
}

func TestIsBadDetectsParamTarget(t *testing.T) {
	w := ir.NewWorld()
	typ := w.Literal(ir.Invalid, 0)

	lam := w.NewLambda(typ, "f")
	p := w.AppendParam(lam, typ, "k")
	w.Jump(lam, p, nil)

	require.True(t, IsBad(w, lam))
}

func TestIsBadFalseForKnownTarget(t *testing.T) {
	w := ir.NewWorld()
	typ := w.Literal(ir.Invalid, 0)

	a := w.NewLambda(typ, "a")
	b := w.NewLambda(typ, "b")
	w.Jump(a, b, nil)

	require.False(t, IsBad(w, a))
}

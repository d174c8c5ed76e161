// Package example builds a small hand-coded program directly through the
// World API, standing in for the surface builder this repository doesn't
// include. It exists so cmd/thorin has something to build, verify, and
// lower end to end.
package example

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/thorin-go/thorin/src/analyses/scope"
	"github.com/thorin-go/thorin/src/analyses/verify"
	"github.com/thorin-go/thorin/src/ir"
	"github.com/thorin-go/thorin/src/tp"
	"github.com/thorin-go/thorin/src/transform/cff"
	"github.com/thorin-go/thorin/src/typeenv"
)

// Program bundles a World, a live Scope over it, and the type environment
// needed to call verify/cff — everything the CLI subcommands drive.
type Program struct {
	World     *ir.World
	Env       *typeenv.Env
	Scope     *scope.Scope
	EntryName string
}

// BuildExample constructs: fn main(mem, ret: fn(mem, i32)) that computes
// abs(n) for the literal n = -7 as the value select(n < 0, 0 - n, n) and
// calls ret with the result. The condition is not a literal, so the Select
// is not folded. The jump through ret is a "bad call" in cff's sense; main
// has no caller in the scope, so cff.Lower finds no concrete continuation
// for it and leaves it in place.
func BuildExample(ctx context.Context) (_ *Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "example: build")
	defer tr.Finish("err", &err)
	_ = ctx

	w := ir.NewWorld()
	env := typeenv.New(w)

	i32 := env.Intern(tp.Int{Bits: 32, Signed: true})
	mem := env.Intern(tp.Mem{})
	retTyp := env.Intern(tp.Fn{Params: []tp.Type{tp.Mem{}, tp.Int{Bits: 32, Signed: true}}})
	mainTyp := env.Intern(tp.Fn{Params: []tp.Type{tp.Mem{}, tp.Fn{Params: []tp.Type{tp.Mem{}, tp.Int{Bits: 32, Signed: true}}}}})

	main := w.NewLambda(mainTyp, "main")
	w.MarkExternal(main)
	m := w.AppendParam(main, mem, "mem")
	ret := w.AppendParam(main, retTyp, "ret")

	negSeven := int32(-7)
	n := w.Literal(i32, ir.Box(uint64(uint32(negSeven))))
	zero := w.Literal(i32, 0)

	// No standalone unary negate in the closed op taxonomy: negation is
	// 0 - n, matching KindXor's convention of expressing Not via a binary
	// identity operand.
	negN := w.BinOp(ir.KindSub, i32, zero, n)

	isNeg := w.BinOp(ir.KindCmpLT, i32, n, zero)

	abs := w.Select(isNeg, negN, n)

	w.Jump(main, ret, []ir.DefID{m, abs})
	w.Seal(main)

	s, err := scope.New(ctx, w, []ir.DefID{main})
	if err != nil {
		return nil, errors.Wrap(err, "scope")
	}

	return &Program{World: w, Env: env, Scope: s, EntryName: "main"}, nil
}

func (p *Program) Verify(ctx context.Context) error {
	return verify.Verify(ctx, p.Scope, p.World, p.Env.TypeOf)
}

// Lower runs the CFF driver and refreshes p.Scope afterward: lowering
// creates new lambdas and rewrites jump targets in place, so the entries
// still stand but the reachable set has to be recomputed rather than
// mutated in place (a Scope is a snapshot, not a live view).
func (p *Program) Lower(ctx context.Context) error {
	entries := p.Scope.Entries()

	if err := cff.Lower(ctx, p.World, p.Scope, p.Env.TypeOf, p.Env.Specialize, p.Env.Fn); err != nil {
		return err
	}

	p.Scope.Close()

	fresh, err := scope.New(ctx, p.World, entries)
	if err != nil {
		return errors.Wrap(err, "rescope after lowering")
	}
	p.Scope = fresh

	return nil
}

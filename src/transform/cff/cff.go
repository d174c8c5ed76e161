// Package cff implements closure-flattening lowering: repeatedly
// specializing away "bad calls" — jumps through an unresolved higher-order
// parameter — whose owner has an in-scope caller passing a concrete lambda
// for that parameter. Bad calls without such a caller (for example a jump
// through an entry's own return parameter) are left as they are. Runs a
// heap-ordered worklist of bad-call sites.
package cff

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/thorin-go/thorin/src/analyses/scope"
	"github.com/thorin-go/thorin/src/analyses/verify"
	"github.com/thorin-go/thorin/src/ir"
	"github.com/thorin-go/thorin/src/set"
	"github.com/thorin-go/thorin/src/tp"
	"github.com/thorin-go/thorin/src/transform/mangle"
)

// IsBad reports whether lam's jump invokes a parameter directly rather
// than a statically known lambda (or a Select between two known lambdas,
// which World already keeps resolved down to a concrete target whenever
// the condition folds). A bad call is exactly what stops lam from being
// emitted as a plain basic block with a direct branch/jump instruction.
func IsBad(w *ir.World, lam ir.DefID) bool {
	if w.Def(lam).Empty() {
		return false
	}
	return w.Def(w.Target(lam)).Kind() == ir.KindParam
}

type work struct {
	lam  ir.DefID
	prio int
}

func workLess(d []work, i, j int) bool { return d[i].prio < d[j].prio }

// Lower runs the CFF driver over s: the local phase is continuous (every
// Select with a constant condition is already folded by World.Select at
// construction time), so only the global phase — iteratively
// specializing predecessors that supply a concrete continuation for a bad
// call — runs here, followed by World.Cleanup and verify.Verify.
func Lower(ctx context.Context, w *ir.World, s *scope.Scope, typeOf func(ir.TypeID) tp.Type, internType func(ir.TypeID, map[int]tp.Type) ir.TypeID, fnOf func([]ir.TypeID) ir.TypeID) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "cff: lower", "size", s.Size())
	defer tr.Finish("err", &err)
	_ = ctx

	m := mangle.New(w, s, typeOf, internType, fnOf)

	h := heap.Heap[work]{Less: workLess}
	queued := set.MakeBits[ir.DefID](0)

	push := func(lam ir.DefID) {
		if queued.IsSet(lam) {
			return
		}
		queued.Set(lam)
		prio, _ := s.RPONumber(lam)
		h.Push(work{lam: lam, prio: prio})
	}

	for _, lam := range s.RPO() {
		if IsBad(w, lam) {
			push(lam)
		}
	}

	const maxRounds = 10000
	rounds := 0

	for h.Len() > 0 {
		rounds++
		if rounds > maxRounds {
			return errors.New("cff: lowering did not converge after %d rounds", maxRounds)
		}

		item := h.Pop()
		queued.Clear(item.lam)

		if !IsBad(w, item.lam) {
			continue
		}

		if err := specializeAwayBadCall(ctx, w, s, m, item.lam, push); err != nil {
			return errors.Wrap(err, "specialize %q", w.LambdaName(item.lam))
		}

		if tr.If("dump_cff_round") {
			tr.Printw("round done", "lambda", w.LambdaName(item.lam), "round", rounds)
		}
	}

	roots := s.Entries()
	if err := w.Cleanup(ctx, roots); err != nil {
		return errors.Wrap(err, "cleanup")
	}

	// Specialization created new lambdas and rewrote jump targets, so s no
	// longer reflects reachability: rebuild it before the final structural
	// check rather than verifying against a stale membership snapshot.
	s.Close()
	final, err := scope.New(ctx, w, roots)
	if err != nil {
		return errors.Wrap(err, "rescope after lowering")
	}
	defer final.Close()

	if err := verify.Verify(ctx, final, w, typeOf); err != nil {
		return errors.Wrap(err, "post-lowering verify")
	}

	return nil
}

// specializeAwayBadCall handles one bad-call lambda: its target is a
// parameter of some owner lambda, at a known positional index. Every
// predecessor of owner that supplies a statically known lambda for that
// parameter slot gets redirected to a fresh specialization of owner with
// that parameter dropped to the known value — eliminating the indirection
// on that path. Predecessors that don't supply a concrete lambda are
// skipped, and lam is not queued again on their account.
func specializeAwayBadCall(ctx context.Context, w *ir.World, s *scope.Scope, m *mangle.Mangler, lam ir.DefID, push func(ir.DefID)) error {
	targetParam := w.Target(lam)
	owner, idx := w.ParamLambda(targetParam)

	preds := s.Preds(owner)
	params := w.Params(owner)

	for _, pred := range preds {
		predArgs := w.Args(pred)
		if idx >= len(predArgs) {
			continue
		}

		concrete := predArgs[idx]
		if w.Def(concrete).Kind() != ir.KindLambda {
			continue
		}

		callArgs := make([]mangle.Arg, len(params))
		for i := range callArgs {
			callArgs[i] = mangle.Lift()
		}
		callArgs[idx] = mangle.Dropped(concrete)

		spec, err := m.Mangle(ctx, owner, callArgs, nil)
		if err != nil {
			return err
		}

		redirectThroughSpecialization(w, pred, idx, spec)
		push(spec)
	}

	return nil
}

// redirectThroughSpecialization rewrites pred's jump to target spec
// instead of owner, with the argument at dropIdx removed (it is now baked
// into spec's body instead of passed at the call site).
func redirectThroughSpecialization(w *ir.World, pred ir.DefID, dropIdx int, spec ir.DefID) {
	args := w.Args(pred)
	newArgs := make([]ir.DefID, 0, len(args)-1)
	for i, a := range args {
		if i == dropIdx {
			continue
		}
		newArgs = append(newArgs, a)
	}
	w.Jump(pred, spec, newArgs)
}

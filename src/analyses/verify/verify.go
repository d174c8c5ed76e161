// Package verify checks the structural invariants a well-formed World must
// satisfy before and after a lowering pass: every jump's argument count and
// types must match its target's parameter list, every lambda in the scope
// must be terminated, and no basic-block-typed lambda may carry a
// higher-order (Fn-typed) parameter. Grounded on this module's own
// post-pass sanity-check style elsewhere and on
// original_source/src/anydsl2/analyses/verify.cpp.
package verify

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/thorin-go/thorin/src/analyses/scope"
	"github.com/thorin-go/thorin/src/ir"
	"github.com/thorin-go/thorin/src/tp"
)

// TypeOf resolves a Def's type tag to a concrete tp.Type. The core itself
// never needs this (types are opaque DefIDs to it); Verify needs it to
// check arity/order, so callers supply the mapping their World was built
// with.
type TypeOf func(ir.TypeID) tp.Type

// Error collects every violation found in one run, so a caller can report
// them all rather than stopping at the first.
type Error struct {
	Violations []string
}

func (e *Error) Error() string {
	if len(e.Violations) == 1 {
		return e.Violations[0]
	}
	return errors.New("%d verification violations, first: %s", len(e.Violations), e.Violations[0]).Error()
}

// Verify checks every lambda in s against the call-site and basic-block
// invariants. Returns a non-nil *Error (wrapped) iff any check fails; it
// never panics, since a malformed program is an input-data condition, not
// a programmer-fault invariant.
func Verify(ctx context.Context, s *scope.Scope, w *ir.World, typeOf TypeOf) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "verify: run", "size", s.Size())
	defer tr.Finish("err", &err)
	_ = ctx

	var verr Error

	for _, lam := range s.RPO() {
		checkBasicBlockParams(w, typeOf, lam, &verr)
		checkCallSite(w, typeOf, lam, &verr)
	}

	if len(verr.Violations) == 0 {
		return nil
	}

	return errors.Wrap(&verr, "verify")
}

func checkBasicBlockParams(w *ir.World, typeOf TypeOf, lam ir.DefID, verr *Error) {
	t := typeOf(w.Def(lam).Type())
	if !t.IsBasicBlock() {
		return
	}

	for _, p := range w.Params(lam) {
		// Any Fn-typed parameter is higher-order, the same count
		// tp.Fn.IsBasicBlock uses; Order() alone is 0 for a continuation
		// whose own parameters are all first-order.
		if _, ok := typeOf(w.Def(p).Type()).(tp.Fn); ok {
			verr.Violations = append(verr.Violations,
				errors.New("lambda %q: basic-block type may not carry higher-order parameter %q",
					w.LambdaName(lam), w.Def(p).Name()).Error())
		}
	}
}

func checkCallSite(w *ir.World, typeOf TypeOf, lam ir.DefID, verr *Error) {
	d := w.Def(lam)
	if d.Empty() {
		verr.Violations = append(verr.Violations,
			errors.New("lambda %q: unterminated (I3 violation)", w.LambdaName(lam)).Error())
		return
	}

	target := d.Op(0)
	td := w.Def(target)
	if td.Kind() != ir.KindLambda {
		return // indirect/select target already resolved structurally; nothing more to check here
	}

	params := w.Params(target)
	args := d.Ops()[1:]

	if len(args) != len(params) {
		verr.Violations = append(verr.Violations,
			errors.New("lambda %q: call to %q passes %d args, wants %d",
				w.LambdaName(lam), w.LambdaName(target), len(args), len(params)).Error())
		return
	}

	for i, p := range params {
		want := typeOf(w.Def(p).Type())
		got := typeOf(w.Def(args[i]).Type())
		if want.String() != got.String() {
			verr.Violations = append(verr.Violations,
				errors.New("lambda %q: call to %q arg %d type %s, wants %s",
					w.LambdaName(lam), w.LambdaName(target), i, got, want).Error())
		}
	}
}

package ir

// This file implements the on-the-fly SSA construction of Braun, Buchwald,
// Hack and Zwinkau, specialized to lambda parameters standing in for basic
// block phis. Grounded on original_source/src/anydsl2/lambda.cpp
// (set_value/get_value/fix) for the algorithm.

// SetValue binds name to def within lam's local scope, per the Braun
// algorithm's straight-line assignment step.
func (w *World) SetValue(lam DefID, name string, def DefID) {
	ld := w.lambdaOf(lam)
	ld.values[name] = def
}

// GetValue resolves name's current SSA value starting from lam, inserting
// lambda parameters (and recursively querying predecessors) as needed when
// the binding isn't local. typ is used only when a fresh parameter or
// diagnostic placeholder must be created.
func (w *World) GetValue(lam DefID, name string, typ TypeID) DefID {
	ld := w.lambdaOf(lam)
	if v, ok := ld.values[name]; ok {
		return v
	}
	return w.getValueRecursive(lam, name, typ)
}

func (w *World) getValueRecursive(lam DefID, name string, typ TypeID) DefID {
	ld := w.lambdaOf(lam)

	if !ld.sealed {
		// Predecessors aren't all known yet: insert a placeholder parameter
		// and remember it so Seal's fix() step can resolve it later.
		param := w.AppendParam(lam, typ, name)
		ld.incomplete[name] = param
		ld.values[name] = param
		return param
	}

	preds := w.directPredLambdas(lam)

	switch len(preds) {
	case 0:
		// No predecessor and no local binding: the value is genuinely
		// undefined on this path. Report it as a diagnostic and bind bottom
		// rather than aborting construction.
		w.Diagnostics.Undefined(name, typ)
		bottom := w.Literal(typ, 0)
		ld.values[name] = bottom
		return bottom

	case 1:
		v := w.GetValue(preds[0], name, typ)
		ld.values[name] = v
		return v

	default:
		// Multiple predecessors: speculatively insert a parameter (this
		// lambda's phi), bind it before recursing so cycles terminate, then
		// try to fold it away if every incoming value turns out equal.
		param := w.AppendParam(lam, typ, name)
		ld.values[name] = param
		w.addParamOperand(lam, name, param, preds, typ)
		resolved := w.tryRemoveTrivialParam(param)
		ld.values[name] = resolved
		return resolved
	}
}

// addParamOperand feeds the newly created phi-parameter from every
// predecessor by appending it as a jump argument, mirroring how the
// original threads the parameter through each predecessor's terminator.
func (w *World) addParamOperand(lam DefID, name string, param DefID, preds []DefID, typ TypeID) {
	for _, p := range preds {
		v := w.GetValue(p, name, typ)
		w.appendJumpArg(p, lam, v)
	}
}

// appendJumpArg appends v to the argument list of the jump in pred that
// targets lam, if one exists; used only while wiring up a fresh phi
// parameter, before the terminator's argument count is otherwise fixed.
func (w *World) appendJumpArg(pred, lam, v DefID) {
	d := &w.defs[w.Deref(pred)]
	if d.Empty() || w.Deref(d.ops[0]) != w.Deref(lam) {
		return
	}
	i := len(d.ops)
	w.SetOp(pred, i, v)
}

// fixIncomplete resolves every placeholder parameter recorded while lam was
// unsealed, now that its predecessor set is final.
func (w *World) fixIncomplete(lam DefID, ld *lambdaData) {
	preds := w.directPredLambdas(lam)
	for name, param := range ld.incomplete {
		w.addParamOperand(lam, name, param, preds, w.Def(param).Type())
		resolved := w.tryRemoveTrivialParam(param)
		ld.values[name] = resolved
	}
	ld.incomplete = make(map[string]DefID)
}

// tryRemoveTrivialParam implements the Horspool-style trivial-phi
// elimination step: if every predecessor passes the same value for param
// (ignoring param itself), param is redundant: it is replaced by that value,
// removed from its lambda's parameter list together with the matching
// argument of every predecessor jumping directly to the lambda, and the
// removal cascades into any user parameter that becomes trivial as a result.
func (w *World) tryRemoveTrivialParam(param DefID) DefID {
	lam, idx := w.ParamLambda(param)
	preds := w.directPredLambdas(lam)

	var same DefID = Invalid
	for _, p := range preds {
		d := &w.defs[w.Deref(p)]
		if len(d.ops) <= idx+1 {
			continue
		}
		v := w.Deref(d.ops[idx+1])
		if v == w.Deref(param) {
			continue // self-reference, ignore
		}
		if same == Invalid {
			same = v
			continue
		}
		if same != v {
			return param // genuinely merges distinct values, keep it
		}
	}

	if same == Invalid {
		// param is unreachable from any predecessor (e.g. an unreferenced
		// value on every incoming path): resolve it to a bottom literal
		// rather than leaving a self-only phi in place (see DESIGN.md).
		w.Diagnostics.Undefined(w.Def(param).Name(), w.Def(param).Type())
		same = w.Literal(w.Def(param).Type(), 0)
	}

	users := append([]Use(nil), w.Def(param).Uses()...)

	w.Replace(param, same)

	for _, p := range preds {
		if args := w.Args(p); len(args) > idx && w.Deref(w.Target(p)) == w.Deref(lam) {
			w.setJumpOps(p, append(append([]DefID{w.Target(p)}, args[:idx]...), args[idx+1:]...))
		}
	}
	ld := w.lambdaOf(lam)
	ld.params = append(ld.params[:idx:idx], ld.params[idx+1:]...)
	for i := idx; i < len(ld.params); i++ {
		w.params[ld.params[i]].index = i
	}

	// Cascade: u.User is a jump passing param as its argument at u.Index, so
	// the parameter that may now be trivial is the corresponding parameter
	// of u.User's jump target, at u.Index-1 (index 0 of a jump's ops is the
	// target, not an argument).
	for _, u := range users {
		if u.Index == 0 {
			continue
		}
		target := w.Target(u.User)
		if w.Def(target).Kind() != KindLambda {
			continue
		}
		ps := w.Params(target)
		if argIdx := u.Index - 1; argIdx < len(ps) {
			w.tryRemoveTrivialParam(ps[argIdx])
		}
	}

	return same
}

// directPredLambdas returns the lambdas whose terminator jumps directly (or
// through a Select) to lam.
func (w *World) directPredLambdas(lam DefID) []DefID {
	var preds []DefID
	for _, u := range w.directUsers(lam) {
		if u.Index != 0 {
			continue
		}
		if w.Def(u.User).Kind() == KindLambda {
			preds = append(preds, u.User)
		}
	}
	return preds
}

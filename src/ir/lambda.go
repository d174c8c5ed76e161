package ir

// lambdaData carries every field that only makes sense on a Lambda: it is
// nominal state, so it lives in a side table keyed by the Lambda's DefID
// rather than bloating Def itself with a dozen optional fields.
type lambdaData struct {
	params []DefID

	// sealed reports whether every predecessor of this lambda is known; the
	// SSA constructor may only resolve pending Phi-candidates once sealed.
	sealed bool

	// external marks a lambda reachable from outside its enclosing scope
	// (an entry point or an escaping continuation) — Cleanup treats it as
	// a root and never drops it.
	external bool

	name string

	// incomplete holds parameters created for values that were requested
	// before this lambda was sealed, per the Braun construction; they are
	// resolved by fix() at Seal time.
	incomplete map[string]DefID

	// values is this lambda's local SSA binding for each variable name,
	// filled in incrementally as SetValue/GetValue run over the CFG.
	values map[string]DefID
}

// paramData carries the fields specific to a Param: which lambda it belongs
// to and its positional index within that lambda's parameter list.
type paramData struct {
	lambda DefID
	index  int
}

// NewLambda creates an empty, unsealed lambda of the given function type. It
// has no parameters and no body (Empty() is true) until AppendParam and
// Jump/Branch/Call are used to build it out.
func (w *World) NewLambda(typ TypeID, name string) DefID {
	id := w.alloc(Def{kind: KindLambda, typ: typ, name: name})
	w.lambdas[id] = &lambdaData{
		name:       name,
		incomplete: make(map[string]DefID),
		values:     make(map[string]DefID),
	}
	return id
}

func (w *World) lambdaOf(id DefID) *lambdaData {
	id = w.Deref(id)
	l, ok := w.lambdas[id]
	if !ok {
		panic("ir: not a lambda")
	}
	return l
}

// AppendParam adds a new Param to lam's signature and returns it. The
// parameter's own type is supplied directly rather than sliced out of a Fn
// type, since stub-cloning builds signatures incrementally.
func (w *World) AppendParam(lam DefID, typ TypeID, name string) DefID {
	lam = w.Deref(lam)
	ld := w.lambdaOf(lam)

	pid := w.alloc(Def{kind: KindParam, typ: typ, name: name})
	w.params[pid] = &paramData{lambda: lam, index: len(ld.params)}
	ld.params = append(ld.params, pid)

	return pid
}

func (w *World) Params(lam DefID) []DefID {
	return append([]DefID(nil), w.lambdaOf(lam).params...)
}

func (w *World) Param(lam DefID, i int) DefID {
	ps := w.lambdaOf(lam).params
	if i < 0 || i >= len(ps) {
		return Invalid
	}
	return ps[i]
}

// ParamLambda returns the lambda a Param belongs to, and its index.
func (w *World) ParamLambda(param DefID) (lam DefID, index int) {
	param = w.Deref(param)
	pd, ok := w.params[param]
	if !ok {
		panic("ir: not a param")
	}
	return pd.lambda, pd.index
}

func (w *World) MarkExternal(lam DefID) { w.lambdaOf(lam).external = true }
func (w *World) IsExternal(lam DefID) bool { return w.lambdaOf(lam).external }

func (w *World) LambdaName(lam DefID) string { return w.lambdaOf(lam).name }

// Jump terminates lam with an unconditional jump: ops = [target, args...].
// This is the sole terminator form; Branch and Call are expressed in terms
// of it (a Branch is a jump to a Select of two lambdas, a Call is a jump
// whose target is a value the callee).
func (w *World) Jump(lam, target DefID, args []DefID) {
	lam = w.Deref(lam)
	ops := make([]DefID, 1+len(args))
	ops[0] = target
	copy(ops[1:], args)
	w.setJumpOps(lam, ops)
}

// Branch terminates lam by jumping through a Select(cond, tLam, fLam),
// applying args to whichever branch is taken. World.Select folds the
// Select away immediately when cond is a known literal, so a constant
// condition never survives to become a real branch.
func (w *World) Branch(lam, cond, tLam, fLam DefID, args []DefID) {
	target := w.Select(cond, tLam, fLam)
	w.Jump(lam, target, args)
}

// Call terminates lam by invoking callee and passing retCont as its return
// continuation, alongside args — this is exactly Jump with retCont folded
// into args by the caller's convention; kept as a distinct entry point for
// readability at call sites building direct-style calls.
func (w *World) Call(lam, callee DefID, args []DefID, retCont DefID) {
	full := append(append([]DefID(nil), args...), retCont)
	w.Jump(lam, callee, full)
}

func (w *World) setJumpOps(lam DefID, ops []DefID) {
	d := &w.defs[lam]
	old := d.ops
	for i, o := range old {
		if o != Invalid {
			w.removeUse(o, lam, i)
		}
	}
	d.ops = append([]DefID(nil), ops...)
	for i, o := range d.ops {
		if o != Invalid {
			w.addUse(o, lam, i)
		}
	}
}

// Target returns the callee of a terminated lambda's jump (ops[0]).
func (w *World) Target(lam DefID) DefID {
	d := w.Def(lam)
	if d.Empty() {
		return Invalid
	}
	return d.ops[0]
}

// Args returns the argument list of a terminated lambda's jump (ops[1:]).
func (w *World) Args(lam DefID) []DefID {
	d := w.Def(lam)
	if d.Empty() {
		return nil
	}
	return append([]DefID(nil), d.ops[1:]...)
}

// Seal marks lam as having no further predecessors to discover, allowing
// the SSA constructor to resolve any incomplete phis recorded against it.
func (w *World) Seal(lam DefID) {
	ld := w.lambdaOf(lam)
	if ld.sealed {
		return
	}
	ld.sealed = true
	w.fixIncomplete(lam, ld)
}

func (w *World) IsSealed(lam DefID) bool { return w.lambdaOf(lam).sealed }

// stubLambda clones lam's signature (parameter types and names) into a
// fresh, unsealed, bodyless lambda, applying sub to each parameter type.
// The Mangler does not call it: mangle.mangleHead builds a narrowed
// signature of its own instead.
func (w *World) stubLambda(lam DefID, sub func(TypeID) TypeID) DefID {
	old := w.lambdaOf(lam)
	fresh := w.NewLambda(sub(w.Def(lam).typ), old.name+".stub")

	for _, p := range old.params {
		pd := w.params[p]
		_ = pd
		pt := sub(w.Def(p).typ)
		w.AppendParam(fresh, pt, w.Def(p).name)
	}

	return fresh
}

// IsCascading reports whether lam is the target (operand 0) of some
// lambda's jump, i.e. is called directly by another lambda. Grounded on original_source/src/anydsl2/lambda.cpp's
// Lambda::is_cascading.
func (w *World) IsCascading(lam DefID) bool {
	lam = w.Deref(lam)
	for _, u := range w.Def(lam).Uses() {
		if u.Index != 0 {
			continue
		}
		if ud := w.Def(u.User); ud.Kind() == KindLambda {
			return true
		}
	}
	return false
}

// IsPassed reports whether lam is ever used as an argument (index > 0) of
// some jump, i.e. passed around as a first-class continuation value rather
// than only ever being jumped to directly. Ground truth:
// original_source/src/anydsl2/lambda.cpp Lambda::is_passed.
func (w *World) IsPassed(lam DefID) bool {
	lam = w.Deref(lam)
	for _, u := range w.Def(lam).Uses() {
		if u.Index > 0 {
			return true
		}
	}
	return false
}

// directUsers returns the uses of id, with each use by a Select replaced
// (recursively) by that Select's own uses; uses by any other node kind are
// returned as they are. This is the "direct" walk, distinct from Scope's
// indirect up walk.
func (w *World) directUsers(id DefID) []Use {
	var out []Use
	for _, u := range w.Def(id).Uses() {
		ud := w.Def(u.User)
		if ud.Kind() == KindSelect {
			out = append(out, w.directUsers(u.User)...)
			continue
		}
		out = append(out, u)
	}
	return out
}

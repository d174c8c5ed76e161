package ir

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// World owns every Def. It hash-conses structural nodes, issues gids and
// pass numbers, and is the only place allowed to mutate the arena.
//
// World is not safe for concurrent use: all mutation is single-agent.
type World struct {
	defs []Def // index 0 unused, so DefID(0) can stay reserved alongside Invalid=-1

	intern map[structKey]DefID

	nextGID uint64
	curPass uint64

	// representative implements the proxy/replace protocol as a
	// path-compressed union-find side table rather than a mutable pointer
	// field on every node.
	representative map[DefID]DefID
	replacedBy     map[DefID][]DefID

	lambdas map[DefID]*lambdaData
	params  map[DefID]*paramData

	passMark map[DefID]uint64

	Diagnostics Diagnostics

	// scopeActive enforces that only one Scope may be alive over this World
	// at a time (see AcquireScopeSlot).
	scopeActive bool
}

// AcquireScopeSlot enforces the single-writer discipline Scope construction
// relies on: only one Scope may be mid-construction/alive at a time. Panics
// on reentry, since a nested Scope always indicates a forgotten Close.
func (w *World) AcquireScopeSlot() {
	if w.scopeActive {
		panic("ir: a Scope is already active over this World")
	}
	w.scopeActive = true
}

// ReleaseScopeSlot is called by Scope.Close to give the slot back.
func (w *World) ReleaseScopeSlot() {
	w.scopeActive = false
}

// structKey is the hash-cons identity of a structural node: kind, type,
// operand list and literal payload (I2).
type structKey struct {
	kind Kind
	typ  TypeID
	ops  string // ops encoded as a byte string; cheap, comparable map key
	box  Box
}

func NewWorld() *World {
	return &World{
		defs:           make([]Def, 1, 64),
		intern:         make(map[structKey]DefID),
		representative: make(map[DefID]DefID),
		replacedBy:     make(map[DefID][]DefID),
		lambdas:        make(map[DefID]*lambdaData),
		params:         make(map[DefID]*paramData),
		passMark:       make(map[DefID]uint64),
		Diagnostics:    defaultDiagnostics{},
	}
}

// Def dereferences id through the representative chain and returns the
// live node. Panics if id is out of range, since that is always a caller
// bug (a stale or fabricated DefID).
func (w *World) Def(id DefID) *Def {
	id = w.Deref(id)
	return &w.defs[id]
}

// Deref follows the replacement chain to the current representative,
// path-compressing as it goes.
func (w *World) Deref(id DefID) DefID {
	for {
		next, ok := w.representative[id]
		if !ok || next == id {
			return id
		}
		// path compression: point every visited node directly at the root
		root := next
		for {
			n, ok := w.representative[root]
			if !ok || n == root {
				break
			}
			root = n
		}
		w.representative[id] = root
		id = root
	}
}

func (w *World) alloc(d Def) DefID {
	d.gid = w.nextGID
	w.nextGID++

	id := DefID(len(w.defs))
	w.defs = append(w.defs, d)

	return id
}

// internStructural returns the canonical Def for (kind, typ, ops, box),
// hash-consing on first construction (I2).
func (w *World) internStructural(kind Kind, typ TypeID, ops []DefID, box Box) DefID {
	key := structKey{kind: kind, typ: typ, ops: encodeOps(ops), box: box}

	if id, ok := w.intern[key]; ok {
		return id
	}

	id := w.alloc(Def{
		kind:    kind,
		typ:     typ,
		ops:     append([]DefID(nil), ops...),
		isConst: true,
	})
	w.defs[id].box = box

	w.intern[key] = id

	for i, op := range ops {
		w.addUse(op, id, i)
	}

	return id
}

func encodeOps(ops []DefID) string {
	buf := make([]byte, len(ops)*4)
	for i, o := range ops {
		buf[i*4] = byte(o)
		buf[i*4+1] = byte(o >> 8)
		buf[i*4+2] = byte(o >> 16)
		buf[i*4+3] = byte(o >> 24)
	}
	return string(buf)
}

// Literal interns a PrimLit. Hash and equality both fold in the bit pattern
// directly (box), never the typed Go value, so that e.g. a float and an
// int literal sharing a bit pattern still hash-cons distinctly by type.
func (w *World) Literal(typ TypeID, box Box) DefID {
	return w.internStructural(KindPrimLit, typ, nil, box)
}

// Rebuild creates the structural node of the same kind/type as old but with
// newOps, reusing the interned node when newOps is unchanged.
func (w *World) Rebuild(old DefID, newOps []DefID) DefID {
	d := w.Def(old)
	if !d.isConst {
		panic("ir: Rebuild on a non-structural (nominal) def")
	}
	return w.internStructural(d.kind, d.typ, newOps, d.box)
}

// BinOp interns a two-operand structural node of the given kind
// (arithmetic, bitwise, shift, or comparison — see Kind's closed
// taxonomy). Panics if kind is not a binary kind, since that always
// indicates a caller bug.
func (w *World) BinOp(kind Kind, typ TypeID, a, b DefID) DefID {
	if kindTable[kind].arity != 2 {
		panic("ir: BinOp used with a non-binary kind: " + kind.String())
	}
	return w.internStructural(kind, typ, []DefID{a, b}, 0)
}

// UnOp interns a one-operand structural node (Enter/Leave/Slot/Addr/
// Bitcast/Convert).
func (w *World) UnOp(kind Kind, typ TypeID, a DefID) DefID {
	if kindTable[kind].arity != 1 {
		panic("ir: UnOp used with a non-unary kind: " + kind.String())
	}
	return w.internStructural(kind, typ, []DefID{a}, 0)
}

// Tuple interns a variadic tuple of ops.
func (w *World) Tuple(typ TypeID, ops []DefID) DefID {
	return w.internStructural(KindTuple, typ, ops, 0)
}

// TernOp interns a three-operand structural node (Insert/Store).
func (w *World) TernOp(kind Kind, typ TypeID, a, b, c DefID) DefID {
	if kindTable[kind].arity != 3 {
		panic("ir: TernOp used with a non-ternary kind: " + kind.String())
	}
	return w.internStructural(kind, typ, []DefID{a, b, c}, 0)
}

// Select interns select(cond, t, f), folding to t or f directly when cond is
// a known boolean literal.
func (w *World) Select(cond, t, f DefID) DefID {
	if lit, ok := w.asBoolLiteral(cond); ok {
		if lit {
			return t
		}
		return f
	}
	return w.internStructural(KindSelect, w.Def(t).typ, []DefID{cond, t, f}, 0)
}

func (w *World) asBoolLiteral(id DefID) (val bool, ok bool) {
	d := w.Def(id)
	if d.kind != KindPrimLit {
		return false, false
	}
	return d.box != 0, true
}

// NewPass issues a fresh, process-local monotonic pass identifier, used by
// analyses to implement O(1) "visited in this pass" checks without clearing
// a bitset.
func (w *World) NewPass() uint64 {
	w.curPass++
	return w.curPass
}

// Visit marks id as visited in pass and reports whether it had already been
// visited before this call.
func (w *World) Visit(pass uint64, id DefID) (alreadyVisited bool) {
	id = w.Deref(id)
	if w.passMark[id] == pass {
		return true
	}
	w.passMark[id] = pass
	return false
}

func (w *World) IsVisited(pass uint64, id DefID) bool {
	return w.passMark[w.Deref(id)] == pass
}

// SetOp assigns d.ops[i] = def, maintaining the use-def index atomically:
// any prior operand at that slot loses its use entry first.
func (w *World) SetOp(d DefID, i int, def DefID) {
	dd := &w.defs[w.Deref(d)]
	if i >= len(dd.ops) {
		grown := make([]DefID, i+1)
		copy(grown, dd.ops)
		for j := len(dd.ops); j < i; j++ {
			grown[j] = Invalid
		}
		dd.ops = grown
	}

	if old := dd.ops[i]; old != Invalid {
		w.removeUse(old, w.Deref(d), i)
	}

	dd.ops[i] = def
	if def != Invalid {
		w.addUse(def, w.Deref(d), i)
	}
}

// UnsetOp clears d.ops[i] without assigning a replacement.
func (w *World) UnsetOp(d DefID, i int) {
	dd := &w.defs[w.Deref(d)]
	if i >= len(dd.ops) || dd.ops[i] == Invalid {
		return
	}
	w.removeUse(dd.ops[i], w.Deref(d), i)
	dd.ops[i] = Invalid
}

func (w *World) addUse(operand, user DefID, index int) {
	operand = w.Deref(operand)
	d := &w.defs[operand]

	u := Use{User: user, Index: index}
	userGID := w.defs[w.Deref(user)].gid

	// insertion sort by (user.gid, index), the deterministic ordering every
	// analysis relies on when it iterates Uses()
	pos := len(d.uses)
	for pos > 0 {
		prev := d.uses[pos-1]
		prevGID := w.defs[w.Deref(prev.User)].gid
		if prevGID < userGID || (prevGID == userGID && prev.Index <= index) {
			break
		}
		pos--
	}

	d.uses = append(d.uses, Use{})
	copy(d.uses[pos+1:], d.uses[pos:])
	d.uses[pos] = u
}

func (w *World) removeUse(operand, user DefID, index int) {
	operand = w.Deref(operand)
	d := &w.defs[operand]

	for i, u := range d.uses {
		if u.User == user && u.Index == index {
			d.uses = append(d.uses[:i], d.uses[i+1:]...)
			return
		}
	}
}

// Replace makes b the representative of a: every handle that dereferences a
// now resolves to b. Forbidden to introduce a cycle.
func (w *World) Replace(a, b DefID) {
	a = w.Deref(a)
	b = w.Deref(b)
	if a == b {
		return
	}
	if w.Deref(b) == a {
		panic("ir: Replace would introduce a representative cycle")
	}
	w.representative[a] = b
	w.replacedBy[b] = append(w.replacedBy[b], a)
}

// Cleanup drops the lambda and param side-table entries of nominals
// unreachable from roots and from every external lambda. Arena slots,
// structural nodes and the use lists that still name a dropped lambda are
// left in place.
func (w *World) Cleanup(ctx context.Context, roots []DefID) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "ir: cleanup", "roots", len(roots))
	defer tr.Finish("err", &err)
	_ = ctx

	pass := w.NewPass()
	for _, r := range roots {
		w.markReachable(pass, r)
	}
	for id, lam := range w.lambdas {
		if lam.external {
			w.markReachable(pass, id)
		}
	}

	live := 0
	for id := 1; id < len(w.defs); id++ {
		did := DefID(id)
		if w.Deref(did) != did {
			continue // already folded behind a representative
		}
		if !w.IsVisited(pass, did) {
			if lam, ok := w.lambdas[did]; ok && lam != nil {
				delete(w.lambdas, did)
			}
			delete(w.params, did)
			continue
		}
		live++
	}

	tr.Printw("cleanup done", "live", live)
	return nil
}

func (w *World) markReachable(pass uint64, id DefID) {
	id = w.Deref(id)
	if w.Visit(pass, id) {
		return
	}
	d := &w.defs[id]
	for _, op := range d.ops {
		if op != Invalid {
			w.markReachable(pass, op)
		}
	}
	if lam, ok := w.lambdas[id]; ok {
		for _, p := range lam.params {
			w.markReachable(pass, p)
		}
	}
}

// Diagnostics is the sink for non-fatal error conditions: undefined SSA
// values are reported here and bound to bottom rather than aborting the
// pass.
type Diagnostics interface {
	Undefined(name string, typ TypeID)
}

type defaultDiagnostics struct{}

func (defaultDiagnostics) Undefined(name string, typ TypeID) {
	tlog.Printw("value may be undefined", "name", name, "type", typ)
}

// InvariantError marks a programmer-fault invariant violation: these are
// not recoverable and callers are expected to let them panic.
type InvariantError struct {
	Msg string
}

func (e InvariantError) Error() string { return e.Msg }

func invariantf(format string, args ...any) error {
	return errors.Wrap(InvariantError{Msg: errors.New(format, args...).Error()}, "invariant")
}

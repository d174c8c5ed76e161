package ir

// DefID is an arena index into a World, standing in for a raw pointer:
// every cross-reference between nodes is an index, never a pointer, so the
// graph can stay cyclic without anyone owning anyone else.
type DefID int32

// Invalid means "no def". It is -1, not the zero value of DefID; arena
// slot 0 is also kept unused (see World.defs), so neither names a live node.
const Invalid DefID = -1

// TypeID identifies a type. Types live as ordinary Defs in the same arena
// (see the tp package for the concrete type kinds), so TypeID is just a
// DefID in disguise; it exists as a distinct name for readability at call
// sites that expect a type rather than a value.
type TypeID = DefID

// Box is the bit-identical payload of a PrimLit: Thorin-style literals fold
// by reinterpreting their bit pattern, not by comparing typed Go values.
type Box uint64

// Def is every graph vertex: hash-consed structural nodes and mutable
// nominal nodes (Lambda, Param) alike. Nominal-only state (parameter lists,
// sealing, scope membership, ...) lives in side tables on World keyed by
// gid, per the tagged-variant approach — Def itself never grows a dozen
// optional fields for one node kind.
type Def struct {
	kind Kind
	typ  TypeID
	ops  []DefID

	gid uint64

	// isConst is true for hash-consed structural nodes (equality by
	// kind/type/ops/payload) and false for nominal nodes (identity by gid).
	isConst bool

	// box carries the bit pattern for KindPrimLit; zero otherwise.
	box Box

	// uses is the ordered (user, operand-index) multiset, sorted by
	// (user.gid, index) so that analyses iterate deterministically.
	uses []Use

	name string
}

// Use records that d.ops[Index] == the Def this Use lives on, from the
// perspective of User's operand list.
type Use struct {
	User  DefID
	Index int
}

func (d *Def) Kind() Kind   { return d.kind }
func (d *Def) Type() TypeID { return d.typ }
func (d *Def) GID() uint64  { return d.gid }
func (d *Def) IsConst() bool { return d.isConst }
func (d *Def) Name() string { return d.name }
func (d *Def) Box() Box     { return d.box }

// Ops returns the operand list. Callers must not retain it across a mutation
// of d (World.Jump/SetOp may reallocate it).
func (d *Def) Ops() []DefID { return d.ops }

func (d *Def) NumOps() int { return len(d.ops) }

func (d *Def) Op(i int) DefID {
	if i < 0 || i >= len(d.ops) {
		return Invalid
	}
	return d.ops[i]
}

// Empty reports whether a Lambda is unterminated (I3): zero operands means
// jump/branch/call has never been invoked on it.
func (d *Def) Empty() bool { return len(d.ops) == 0 }

// Uses returns the (user, operand-index) pairs in (gid, index) order, so
// every analysis iterating them sees a deterministic order.
func (d *Def) Uses() []Use { return d.uses }

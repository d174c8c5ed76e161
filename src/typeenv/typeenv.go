// Package typeenv bridges the opaque ir.TypeID handles the core arena
// stores (the core never looks inside a type) with the concrete tp.Type
// values the analyses and transforms need to decide order, basic-block-ness,
// and generic substitution. One handle is minted per distinct hash-consed
// tp.Type, the same mint-a-literal-and-remember-what-it-stands-for pattern
// used elsewhere in this module for side-table state keyed by arena slot.
package typeenv

import (
	"github.com/thorin-go/thorin/src/ir"
	"github.com/thorin-go/thorin/src/tp"
)

type Env struct {
	w     *ir.World
	table *tp.Table

	ids   map[string]ir.TypeID
	types map[ir.TypeID]tp.Type

	next uint64
}

func New(w *ir.World) *Env {
	return &Env{
		w:     w,
		table: tp.NewTable(),
		ids:   make(map[string]ir.TypeID),
		types: make(map[ir.TypeID]tp.Type),
	}
}

// Intern returns the handle for t, minting a fresh one the first time a
// given structural type is seen.
func (e *Env) Intern(t tp.Type) ir.TypeID {
	t = e.table.Intern(t)

	key := t.String()
	if id, ok := e.ids[key]; ok {
		return id
	}

	id := e.w.Literal(ir.Invalid, ir.Box(e.next))
	e.next++

	e.ids[key] = id
	e.types[id] = t

	return id
}

// TypeOf resolves a handle back to its tp.Type. Satisfies the
// verify.TypeOf / mangle / cff TypeOf hooks directly.
func (e *Env) TypeOf(id ir.TypeID) tp.Type {
	return e.types[id]
}

// Specialize substitutes generics in the type behind id under sub and
// interns the result, returning a (possibly shared) new handle. Satisfies
// the mangle.Mangler / cff.Lower internType hook.
func (e *Env) Specialize(id ir.TypeID, sub map[int]tp.Type) ir.TypeID {
	t, ok := e.types[id]
	if !ok || len(sub) == 0 {
		return id
	}
	return e.Intern(t.Specialize(sub))
}

// Fn builds and interns a fresh tp.Fn type from the given parameter type
// handles, resolving each through TypeOf first. Used by the Mangler to
// give a specialized lambda's head a signature that actually matches its
// narrowed parameter list, rather than reusing the pre-specialization
// type wholesale.
func (e *Env) Fn(paramTypeIDs []ir.TypeID) ir.TypeID {
	params := make([]tp.Type, len(paramTypeIDs))
	for i, id := range paramTypeIDs {
		params[i] = e.types[id]
	}
	return e.Intern(tp.Fn{Params: params})
}

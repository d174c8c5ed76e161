// Package mangle implements specialization of a lambda by dropping fixed
// arguments, lifting free ones into a new signature, and cloning the
// reachable body under that substitution — the building block the CFF
// driver's global phase repeatedly applies. Cloning under a substitution
// uses a per-call memoized mapping and clones operands on demand.
package mangle

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/thorin-go/thorin/src/analyses/scope"
	"github.com/thorin-go/thorin/src/ir"
	"github.com/thorin-go/thorin/src/tp"
)

// Arg is one entry of a Mangle call's argument vector: either Drop (fix the
// corresponding parameter to a known value, removing it from the
// specialized signature) or Lift (keep it as a parameter of the clone).
type Arg struct {
	Drop  bool
	Value ir.DefID // meaningful only when Drop is true
}

func Lift() Arg          { return Arg{} }
func Dropped(v ir.DefID) Arg { return Arg{Drop: true, Value: v} }

// Mangler clones the reachable part of a scope under repeated
// specializations, memoizing by (root, args, type substitution) so two
// requests for the same specialization share one clone — mirroring the
// original's drop-key cache.
type Mangler struct {
	w      *ir.World
	s      *scope.Scope
	typeOf func(ir.TypeID) tp.Type
	subst  func(ir.TypeID, map[int]tp.Type) ir.TypeID
	fnOf   func([]ir.TypeID) ir.TypeID

	cache  map[string]ir.DefID
	defMap map[string]map[ir.DefID]ir.DefID // per mangle-call old->new Def mapping
}

// New builds a Mangler over s. typeOf/internType let the Mangler move
// between the opaque ir.TypeID the core stores and the tp.Type it needs to
// substitute generics and decide basic-block-ness; fnOf rebuilds a
// signature type from a narrowed parameter list, so a specialized head's
// declared type actually matches its Params() after dropping some.
func New(w *ir.World, s *scope.Scope, typeOf func(ir.TypeID) tp.Type, internType func(ir.TypeID, map[int]tp.Type) ir.TypeID, fnOf func([]ir.TypeID) ir.TypeID) *Mangler {
	return &Mangler{
		w:      w,
		s:      s,
		typeOf: typeOf,
		subst:  internType,
		fnOf:   fnOf,
		cache:  make(map[string]ir.DefID),
		defMap: make(map[string]map[ir.DefID]ir.DefID),
	}
}

// Mangle specializes root under args (one per root's current parameter)
// and a generic substitution, returning the specialized lambda. Calling
// Mangle twice with an equal key returns the same DefID without re-cloning.
func (m *Mangler) Mangle(ctx context.Context, root ir.DefID, args []Arg, sub map[int]tp.Type) (_ ir.DefID, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "mangle: run", "root", m.w.LambdaName(root))
	defer tr.Finish("err", &err)
	_ = ctx

	params := m.w.Params(root)
	if len(args) != len(params) {
		return ir.Invalid, errors.New("mangle: %d args for %d params", len(args), len(params))
	}

	key := m.key(root, args, sub)
	if cached, ok := m.cache[key]; ok {
		return cached, nil
	}

	mapping := make(map[ir.DefID]ir.DefID)
	m.defMap[key] = mapping

	head := m.mangleHead(root, params, args, sub)
	m.cache[key] = head
	mapping[root] = head

	for i, p := range params {
		if args[i].Drop {
			mapping[p] = args[i].Value
		}
	}

	newParams := m.w.Params(head)
	np := 0
	for i, p := range params {
		if !args[i].Drop {
			mapping[p] = newParams[np]
			np++
		}
		_ = i
	}

	m.mangleBody(root, head, mapping, sub, key, root, head, args)

	return head, nil
}

// mangleHead creates the specialized signature: lifted parameters keep
// their (substituted) type, dropped parameters are fixed and vanish from
// it entirely, and the head's own type is rebuilt from just the kept
// parameter types so it stays consistent with Params(). stubLambda clones a
// full signature unchanged; this generalizes that into a filtered rebuild,
// since dropping parameters is the whole point of specialization.
func (m *Mangler) mangleHead(root ir.DefID, params []ir.DefID, args []Arg, sub map[int]tp.Type) ir.DefID {
	var keptTypes []ir.TypeID
	var keptNames []string

	for i, p := range params {
		if args[i].Drop {
			continue
		}
		pt := m.subst(m.w.Def(p).Type(), sub)
		keptTypes = append(keptTypes, pt)
		keptNames = append(keptNames, m.w.Def(p).Name())
	}

	typ := m.fnOf(keptTypes)
	head := m.w.NewLambda(typ, m.w.LambdaName(root)+".spec")

	for i, pt := range keptTypes {
		m.w.AppendParam(head, pt, keptNames[i])
	}

	return head
}

// mangleBody clones every Def reachable from root's jump under mapping,
// memoizing per-call so shared subexpressions clone once (hash-consing
// handles the case where a cloned structural node happens to already exist
// unchanged). origRoot/rootHead/dropArgs identify the top-level specialized
// lambda for this whole Mangle call: whenever root's own jump target (before
// any cloning) already dereferences to origRoot — whether root IS origRoot
// recursing on itself, or root is a lambda nested deeper in origRoot's body
// that loops back to it — the jump is a recursive call into the
// specialization being built, so its arguments must be re-filtered through
// dropArgs rather than cloned one-for-one, or the rebuilt jump's arity
// would still match origRoot's original signature instead of rootHead's
// narrowed one. Grounded on original_source/src/anydsl2/analyses/scope.cpp's
// embedded Mangler::mangle_body, which performs this same tail-call check
// for every cloned body lambda, not just the entry.
func (m *Mangler) mangleBody(root, head ir.DefID, mapping map[ir.DefID]ir.DefID, sub map[int]tp.Type, key string, origRoot, rootHead ir.DefID, dropArgs []Arg) {
	if m.w.Def(root).Empty() {
		return // unterminated lambda: its clone stays unterminated too
	}

	rawTarget := m.w.Target(root)
	target := m.clone(rawTarget, mapping, sub, key, origRoot, rootHead, dropArgs)

	var newArgs []ir.DefID
	if m.w.Deref(rawTarget) == m.w.Deref(origRoot) {
		rawArgs := m.w.Args(root)
		for i, a := range dropArgs {
			if a.Drop || i >= len(rawArgs) {
				continue
			}
			newArgs = append(newArgs, m.clone(rawArgs[i], mapping, sub, key, origRoot, rootHead, dropArgs))
		}
	} else {
		newArgs = m.cloneAll(m.w.Args(root), mapping, sub, key, origRoot, rootHead, dropArgs)
	}

	m.w.Jump(head, target, newArgs)
}

func (m *Mangler) clone(id ir.DefID, mapping map[ir.DefID]ir.DefID, sub map[int]tp.Type, key string, origRoot, rootHead ir.DefID, dropArgs []Arg) ir.DefID {
	id = m.w.Deref(id)
	if mapped, ok := mapping[id]; ok {
		return mapped
	}

	d := m.w.Def(id)

	if d.Kind() == ir.KindLambda {
		// A nested lambda not covered by the current drop/lift vector is
		// specialized with an all-lift vector of its own, recursively.
		nested := make([]Arg, len(m.w.Params(id)))
		for i := range nested {
			nested[i] = Lift()
		}
		clonedKey := m.key(id, nested, sub)
		if cached, ok := m.cache[clonedKey]; ok {
			mapping[id] = cached
			return cached
		}

		head := m.mangleHead(id, m.w.Params(id), nested, sub)
		mapping[id] = head
		m.cache[clonedKey] = head

		newParams := m.w.Params(head)
		for i, p := range m.w.Params(id) {
			mapping[p] = newParams[i]
		}

		m.mangleBody(id, head, mapping, sub, key, origRoot, rootHead, dropArgs)
		return head
	}

	if d.Kind() == ir.KindParam || d.NumOps() == 0 {
		// unmapped param or a nullary literal: identity-clone as itself
		mapping[id] = id
		return id
	}

	newOps := m.cloneAll(d.Ops(), mapping, sub, key, origRoot, rootHead, dropArgs)
	newTyp := m.subst(d.Type(), sub)
	cloned := m.w.Rebuild(id, newOps)
	_ = newTyp // Rebuild keeps d's original type; substitution only matters for generics, handled at the head

	mapping[id] = cloned
	return cloned
}

func (m *Mangler) cloneAll(ids []ir.DefID, mapping map[ir.DefID]ir.DefID, sub map[int]tp.Type, key string, origRoot, rootHead ir.DefID, dropArgs []Arg) []ir.DefID {
	out := make([]ir.DefID, len(ids))
	for i, id := range ids {
		if id == ir.Invalid {
			out[i] = ir.Invalid
			continue
		}
		out[i] = m.clone(id, mapping, sub, key, origRoot, rootHead, dropArgs)
	}
	return out
}

func (m *Mangler) key(root ir.DefID, args []Arg, sub map[int]tp.Type) string {
	s := fmt.Sprintf("%d|", root)
	for _, a := range args {
		if a.Drop {
			s += fmt.Sprintf("d%d,", a.Value)
		} else {
			s += "l,"
		}
	}
	for i := 0; i < len(sub); i++ {
		if t, ok := sub[i]; ok {
			s += fmt.Sprintf("g%d=%s,", i, t.String())
		}
	}
	return s
}

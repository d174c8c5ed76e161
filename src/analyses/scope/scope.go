// Package scope computes the restricted CPS subgraph analyses operate over:
// the set of lambdas reachable from one or more entries, numbered in
// reverse postorder both forwards and backwards. Membership discovery walks
// both down (through jump targets/args) and up (through param uses) from
// the entries, then runs a worklist-driven traversal to a fixpoint.
package scope

import (
	"context"

	"github.com/thorin-go/thorin/src/ir"
	"github.com/thorin-go/thorin/src/set"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Scope is the entry point every downstream analysis (domtree, Mangler,
// CFF) consumes. It owns no Defs and writes nothing onto them; it reads a
// World it does not outlive. Callers must call Close once done to release
// the World's single-writer scope slot.
type Scope struct {
	w       *ir.World
	entries []ir.DefID

	members set.Bits[ir.DefID]

	rpo    []ir.DefID
	rpoNum map[ir.DefID]int

	backRPO    []ir.DefID
	backRPONum map[ir.DefID]int

	succCache map[ir.DefID][]ir.DefID
	predCache map[ir.DefID][]ir.DefID

	closed bool
}

// New computes the scope reachable from entries. A single-entry scope is
// simply New(ctx, w, []ir.DefID{entry}); a whole-world scope is
// New(ctx, w, allExternalLambdas) — entry discovery order affects nothing
// observable (membership is a fixpoint set), only RPO tie-breaking among
// equally-ordered siblings, which is intentionally unspecified.
func New(ctx context.Context, w *ir.World, entries []ir.DefID) (_ *Scope, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "scope: new", "entries", len(entries))
	defer tr.Finish("err", &err)
	_ = ctx

	if len(entries) == 0 {
		return nil, errors.Wrap(errNoEntries, "scope: new")
	}

	w.AcquireScopeSlot()

	s := &Scope{
		w:         w,
		entries:   append([]ir.DefID(nil), entries...),
		members:   set.MakeBits[ir.DefID](0),
		succCache: make(map[ir.DefID][]ir.DefID),
		predCache: make(map[ir.DefID][]ir.DefID),
	}

	s.discoverMembers()
	s.numberForward()
	s.numberBackward()

	if tr.If("dump_scope") {
		for _, m := range s.rpo {
			tr.Printw("member", "lambda", w.LambdaName(m), "rpo", s.rpoNum[m])
		}
	}

	return s, nil
}

// Close releases the exclusive scope slot on the underlying World. Callers
// must not use s after Close.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.w.ReleaseScopeSlot()
}

func (s *Scope) Entries() []ir.DefID { return append([]ir.DefID(nil), s.entries...) }

func (s *Scope) Contains(lam ir.DefID) bool {
	return s.members.IsSet(s.w.Deref(lam))
}

func (s *Scope) Size() int { return s.members.Size() }

// discoverMembers computes the fixpoint of lambdas reachable from the
// entries, following jump targets and arguments forward, and the "up"
// indirect predecessor walk from every parameter use, so that a lambda only
// reachable by capturing a free variable through an arbitrary PrimOp chain
// is still discovered.
func (s *Scope) discoverMembers() {
	var worklist []ir.DefID
	seen := set.MakeBits[ir.DefID](0)

	push := func(id ir.DefID) {
		id = s.w.Deref(id)
		if id == ir.Invalid || seen.IsSet(id) {
			return
		}
		if s.w.Def(id).Kind() != ir.KindLambda {
			return
		}
		seen.Set(id)
		s.members.Set(id)
		worklist = append(worklist, id)
	}

	for _, e := range s.entries {
		push(e)
	}

	for len(worklist) > 0 {
		lam := worklist[0]
		worklist = worklist[1:]

		for _, op := range s.w.Def(lam).Ops() {
			if op == ir.Invalid {
				continue
			}
			for _, t := range targetLambdas(s.w, op) {
				push(t)
			}
		}

		for _, p := range s.w.Params(lam) {
			for _, u := range s.w.Def(p).Uses() {
				if up := s.up(u.User); up != ir.Invalid {
					push(up)
				}
			}
		}
	}
}

// up walks from a Def to the Lambda that encloses it — the indirect form:
// unlike World.directUsers (which sees through Select only), up follows
// any operand chain.
func (s *Scope) up(id ir.DefID) ir.DefID {
	visited := set.MakeBits[ir.DefID](0)
	return s.upVisit(id, &visited)
}

func (s *Scope) upVisit(id ir.DefID, visited *set.Bits[ir.DefID]) ir.DefID {
	id = s.w.Deref(id)
	if visited.IsSet(id) {
		return ir.Invalid
	}
	visited.Set(id)

	if s.w.Def(id).Kind() == ir.KindLambda {
		return id
	}

	for _, u := range s.w.Def(id).Uses() {
		if s.w.Def(u.User).Kind() == ir.KindLambda {
			return u.User
		}
		if r := s.upVisit(u.User, visited); r != ir.Invalid {
			return r
		}
	}

	return ir.Invalid
}

// targetLambdas resolves a jump-position operand to the lambda(s) it may
// invoke, seeing through an unresolved Select (a real conditional branch)
// but not through arbitrary PrimOps — the same direct walk World.directUsers
// does, used forward instead of backward.
func targetLambdas(w *ir.World, id ir.DefID) []ir.DefID {
	d := w.Def(id)
	switch d.Kind() {
	case ir.KindLambda:
		return []ir.DefID{id}
	case ir.KindSelect:
		var out []ir.DefID
		out = append(out, targetLambdas(w, d.Op(1))...)
		out = append(out, targetLambdas(w, d.Op(2))...)
		return out
	default:
		return nil
	}
}

// Succs returns lam's jump targets restricted to this scope's members,
// computed once per lambda and cached.
func (s *Scope) Succs(lam ir.DefID) []ir.DefID {
	lam = s.w.Deref(lam)
	if cached, ok := s.succCache[lam]; ok {
		return cached
	}

	d := s.w.Def(lam)
	var out []ir.DefID
	if !d.Empty() {
		for _, t := range targetLambdas(s.w, d.Op(0)) {
			if s.Contains(t) {
				out = append(out, t)
			}
		}
	}

	s.succCache[lam] = out
	return out
}

// Preds returns the scope members whose Succs includes lam.
func (s *Scope) Preds(lam ir.DefID) []ir.DefID {
	s.ensurePredCache()
	return s.predCache[s.w.Deref(lam)]
}

func (s *Scope) ensurePredCache() {
	if len(s.predCache) > 0 || s.members.Size() == 0 {
		return
	}
	s.members.Range(func(m ir.DefID) bool {
		for _, succ := range s.Succs(m) {
			s.predCache[succ] = append(s.predCache[succ], m)
		}
		return true
	})
}

// numberForward computes postorder-then-reverse RPO numbering from the
// entries via Succs. Entries are excluded from the body DFS and instead
// assigned their sids directly afterward, in presentation order: a plain
// single DFS over all entries would hand the lowest final (post-reversal)
// number to whichever entry's subtree the DFS happens to visit last, which
// for a multi-entry (whole-world) Scope puts entries in reverse
// presentation order instead of the order they were given in.
func (s *Scope) numberForward() {
	s.rpoNum = make(map[ir.DefID]int)

	visited := set.MakeBits[ir.DefID](0)
	for _, e := range s.entries {
		visited.Set(s.w.Deref(e))
	}

	var post []ir.DefID

	var dfs func(ir.DefID)
	dfs = func(lam ir.DefID) {
		if visited.IsSet(lam) {
			return
		}
		visited.Set(lam)
		for _, succ := range s.Succs(lam) {
			dfs(succ)
		}
		post = append(post, lam)
	}

	for _, e := range s.entries {
		for _, succ := range s.Succs(s.w.Deref(e)) {
			dfs(succ)
		}
	}

	numEntries := len(s.entries)
	s.rpo = make([]ir.DefID, numEntries+len(post))

	for i, e := range s.entries {
		e = s.w.Deref(e)
		s.rpo[i] = e
		s.rpoNum[e] = i
	}

	for i, lam := range post {
		rpoPos := numEntries + len(post) - 1 - i
		s.rpo[rpoPos] = lam
		s.rpoNum[lam] = rpoPos
	}
}

// numberBackward computes the dual numbering over Preds, starting from the
// scope's exit lambdas (members with no in-scope successors), used by the
// post-dominator tree construction.
func (s *Scope) numberBackward() {
	s.backRPONum = make(map[ir.DefID]int)

	var exits []ir.DefID
	s.members.Range(func(m ir.DefID) bool {
		if len(s.Succs(m)) == 0 {
			exits = append(exits, m)
		}
		return true
	})

	var post []ir.DefID
	visited := set.MakeBits[ir.DefID](0)

	var dfs func(ir.DefID)
	dfs = func(lam ir.DefID) {
		if visited.IsSet(lam) {
			return
		}
		visited.Set(lam)
		for _, pred := range s.Preds(lam) {
			dfs(pred)
		}
		post = append(post, lam)
	}

	for _, e := range exits {
		dfs(e)
	}

	s.backRPO = make([]ir.DefID, len(post))
	for i, lam := range post {
		pos := len(post) - 1 - i
		s.backRPO[pos] = lam
		s.backRPONum[lam] = pos
	}
}

// RPO returns the scope's members in reverse postorder.
func (s *Scope) RPO() []ir.DefID { return append([]ir.DefID(nil), s.rpo...) }

func (s *Scope) RPONumber(lam ir.DefID) (int, bool) {
	n, ok := s.rpoNum[s.w.Deref(lam)]
	return n, ok
}

// BackwardRPO returns the scope's members in reverse postorder of the
// Preds-directed graph, rooted at the scope's exits.
func (s *Scope) BackwardRPO() []ir.DefID { return append([]ir.DefID(nil), s.backRPO...) }

func (s *Scope) BackwardRPONumber(lam ir.DefID) (int, bool) {
	n, ok := s.backRPONum[s.w.Deref(lam)]
	return n, ok
}

var errNoEntries = errors.New("scope: no entries given")

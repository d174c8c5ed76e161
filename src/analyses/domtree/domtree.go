// Package domtree builds dominator (and post-dominator) trees over a Scope
// using the iterative Cooper–Harvey–Kennedy algorithm — not
// Lengauer–Tarjan, which needs a DFS-numbered auxiliary forest this IR has
// no use for elsewhere. Grounded on
// original_source/src/anydsl2/analyses/domtree.cpp and the CHK paper's
// reference pseudocode ("A Simple, Fast Dominance Algorithm").
package domtree

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/thorin-go/thorin/src/analyses/scope"
	"github.com/thorin-go/thorin/src/ir"
)

// Tree is a dominator tree (or, when built with Post, a post-dominator
// tree) over a Scope's members.
type Tree struct {
	s        *scope.Scope
	post     bool
	idom     map[ir.DefID]ir.DefID
	rootLam  ir.DefID
	rpoOf    func(ir.DefID) (int, bool)
	rpoOrder []ir.DefID
	predsOf  func(ir.DefID) []ir.DefID
}

// New builds the forward dominator tree of s, rooted at the first lambda of
// its RPO (its first entry). There is no synthetic root joining several
// entries: any other entry without an in-scope predecessor reports
// ir.Invalid as its idom, as does every lambda reachable only through such
// an entry.
func New(ctx context.Context, s *scope.Scope) (_ *Tree, err error) {
	return build(ctx, s, false)
}

// NewPost builds the post-dominator tree of s: dominance over the
// Preds-directed graph, rooted at the first lambda of s's backward RPO (one
// of its exits), with the same single-root behaviour as New.
func NewPost(ctx context.Context, s *scope.Scope) (_ *Tree, err error) {
	return build(ctx, s, true)
}

func build(ctx context.Context, s *scope.Scope, post bool) (_ *Tree, err error) {
	label := "domtree: new"
	if post {
		label = "domtree: new-post"
	}
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, label, "size", s.Size())
	defer tr.Finish("err", &err)
	_ = ctx

	t := &Tree{s: s, post: post, idom: make(map[ir.DefID]ir.DefID)}

	if post {
		t.rpoOf = s.BackwardRPONumber
		t.rpoOrder = s.BackwardRPO()
		t.predsOf = s.Succs // preds in the reverse graph are succs in the forward graph
	} else {
		t.rpoOf = s.RPONumber
		t.rpoOrder = s.RPO()
		t.predsOf = s.Preds
	}

	if len(t.rpoOrder) == 0 {
		return nil, errors.New("domtree: empty scope")
	}

	root := t.rpoOrder[0]
	t.rootLam = root
	t.idom[root] = root

	changed := true
	for changed {
		changed = false

		for _, n := range t.rpoOrder[1:] {
			preds := t.predsOf(n)

			var newIdom ir.DefID = ir.Invalid
			for _, p := range preds {
				if _, ok := t.idom[p]; !ok {
					continue
				}
				if newIdom == ir.Invalid {
					newIdom = p
					continue
				}
				newIdom = t.intersect(newIdom, p)
			}

			if newIdom == ir.Invalid {
				continue
			}

			if cur, ok := t.idom[n]; !ok || cur != newIdom {
				t.idom[n] = newIdom
				changed = true
			}
		}
	}

	return t, nil
}

// intersect walks both candidates up the partially-built tree until they
// meet, using RPO number as the "finger" height per CHK's algorithm.
func (t *Tree) intersect(a, b ir.DefID) ir.DefID {
	for a != b {
		an, _ := t.rpoOf(a)
		bn, _ := t.rpoOf(b)

		for an > bn {
			a = t.idom[a]
			an, _ = t.rpoOf(a)
		}
		for bn > an {
			b = t.idom[b]
			bn, _ = t.rpoOf(b)
		}
	}
	return a
}

// IDom returns lam's immediate dominator, or ir.Invalid for the root.
func (t *Tree) IDom(lam ir.DefID) ir.DefID {
	d, ok := t.idom[lam]
	if !ok || d == lam {
		return ir.Invalid
	}
	return d
}

func (t *Tree) Root() ir.DefID { return t.rootLam }

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (t *Tree) Dominates(a, b ir.DefID) bool {
	for {
		if a == b {
			return true
		}
		next := t.IDom(b)
		if next == ir.Invalid {
			return false
		}
		b = next
	}
}

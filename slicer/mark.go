package slicer

import (
	"github.com/llir/llvm/ir"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/pointer"
	"github.com/mchalupa/dgo/sdg"
)

// Marked records, per function, the set of PGNodes the slice keeps.
type Marked map[*ir.Func]map[pointer.NodeID]bool

func (m Marked) has(fn *ir.Func, id pointer.NodeID) bool { return m[fn][id] }

func (m Marked) mark(fn *ir.Func, id pointer.NodeID) bool {
	s, ok := m[fn]
	if !ok {
		s = make(map[pointer.NodeID]bool)
		m[fn] = s
	}
	if s[id] {
		return false
	}
	s[id] = true
	return true
}

// item is one unit of BFS work: a PGNode within a specific
// function's graph (graphs are keyed by *ir.Func, so the same NodeID
// in two different functions never collides).
type item struct {
	fn *ir.Func
	id pointer.NodeID
}

// Mark runs the slicing reachability search: a backward walk over In
// edges from the criterion (every PGNode a def-use or control-dep
// chain can reach back to), and, when opts.ForwardSlicing is also
// set, an additional forward walk over Out edges (everything the
// criterion's value can go on to affect). An edge crossing into
// another function (a data-dependence def living in a callee, a
// CALL -> ENTRY call-graph edge, an interference edge reaching across
// threads) is re-homed to that function's own graph via a's node
// ownership before being queued, so the walk actually continues from
// where that PGNode's own In/Out edges were recorded instead of
// dead-ending on an edge-only placeholder. Preserve nodes (debug
// intrinsics) are always marked, matching their home function's ENTRY
// so they survive a slice of an otherwise-empty block.
func Mark(graphs map[*ir.Func]*sdg.Graph, a *pointer.Analysis, start Criterion, startNode pointer.NodeID, opts config.SlicerOptions) Marked {
	marked := make(Marked)
	var queue []item

	ownerOf := func(id pointer.NodeID) *ir.Func {
		n := a.Nodes()[id]
		if n.Owner == nil {
			return nil
		}
		return n.Owner.Func
	}

	push := func(fn *ir.Func, id pointer.NodeID) {
		if owner := ownerOf(id); owner != nil {
			fn = owner
		}
		if marked.mark(fn, id) {
			queue = append(queue, item{fn: fn, id: id})
		}
	}

	push(start.Func, startNode)
	for fn, g := range graphs {
		for id, n := range g.Nodes {
			if n.Preserve {
				push(fn, id)
			}
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		g := graphs[cur.fn]
		if g == nil {
			continue
		}
		n := g.Nodes[cur.id]
		if n == nil {
			continue
		}

		for _, e := range n.In {
			push(cur.fn, e.From)
		}
		if opts.ForwardSlicing {
			for _, e := range n.Out {
				push(cur.fn, e.To)
			}
		}
		for _, e := range n.Out {
			if e.Kind == sdg.EdgeCallGraph {
				push(cur.fn, e.To) // pull the callee's body in even when not forward-slicing
			}
		}
	}
	return marked
}

package dda

import (
	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/offset"
	"github.com/mchalupa/dgo/pointer"
	"github.com/mchalupa/dgo/queue"
	"github.com/mchalupa/dgo/rwgraph"
)

// rd is the classical reaching-definitions engine: each PGNode gets an
// "out" siteState (per allocation site, the writes reaching the end of
// that node), propagated along the pointer graph's CFG edges and
// updated at each write according to the must/may access the rwgraph
// already resolved. A must-write (single target, concrete offset)
// performs a strong update (replaces the reaching set for that exact
// slot); everything else performs a weak update (adds to it), unless
// the target is heap memory — heap objects never get a strong update
// here, since an allocation site can denote many run-time objects and
// collapsing them to one would be unsound.
type rd struct {
	g    *rwgraph.Graph
	opts config.DDAOptions
	out  map[pointer.NodeID]siteState
	defs map[pointer.NodeID]map[pointer.NodeID]bool // use -> set of def PGNodes

	// strongPolicy decides whether a write may strongly update;
	// defaults to isStrongEligible's heap-vs-non-heap rule. memorySSA
	// does not use it: it applies its own memorySSA.strongEligible.
	strongPolicy func(r *rd, w rwgraph.MemoryAccess, writerIsCall bool) bool
}

func buildRD(g *rwgraph.Graph, opts config.DDAOptions) *rd {
	r := &rd{
		g:    g,
		opts: opts,
		out:  make(map[pointer.NodeID]siteState),
		defs: make(map[pointer.NodeID]map[pointer.NodeID]bool),
	}
	r.strongPolicy = func(r *rd, w rwgraph.MemoryAccess, writerIsCall bool) bool {
		return r.isStrongEligible(w)
	}
	r.solve()
	return r
}

func (r *rd) Definitions(use pointer.NodeID) []pointer.NodeID {
	set := r.defs[use]
	out := make([]pointer.NodeID, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	return out
}

// DefinitionsAt returns the defs reaching the program point where for
// mem's [off, off+length) without requiring where to itself be a
// rwgraph read — used by dumpers and by memory-SSA-style point
// queries that don't correspond to an actual instruction.
func (r *rd) DefinitionsAt(where, mem pointer.NodeID, off, length offset.Offset) []pointer.NodeID {
	in := r.mergePreds(where)
	k := key(mem, offset.NewInterval(off, off.Add(length)))
	defs := in[k]
	return append([]pointer.NodeID(nil), defs...)
}

// IsUse reports whether n is a PGNode the underlying rwgraph recorded
// at least one read for.
func (r *rd) IsUse(n pointer.NodeID) bool {
	rw, ok := r.g.NodeFor(n)
	return ok && len(rw.Reads) > 0
}

// IsDef reports whether n is a PGNode the underlying rwgraph recorded
// at least one write for.
func (r *rd) IsDef(n pointer.NodeID) bool {
	rw, ok := r.g.NodeFor(n)
	return ok && len(rw.Writes) > 0
}

// AllDefinitions returns every PGNode the rwgraph recorded a write
// for, for dumpers that enumerate the whole def set eagerly.
func (r *rd) AllDefinitions() []pointer.NodeID {
	var out []pointer.NodeID
	for _, rw := range r.g.Nodes {
		if len(rw.Writes) > 0 {
			out = append(out, rw.PG)
		}
	}
	return out
}

func (r *rd) outFor(id pointer.NodeID) siteState {
	s, ok := r.out[id]
	if !ok {
		s = make(siteState)
		r.out[id] = s
	}
	return s
}

// solve runs a worklist fixpoint: a node is (re-)examined whenever a
// predecessor's out-state may have grown, starting with every node
// pending once. Popping a node updates its own reads (Definitions
// output, which nothing downstream in this fixpoint depends on) and its
// out-state; a change to the latter pushes its CFG successors, since
// only they can be affected by it.
func (r *rd) solve() {
	a := r.g.Analysis
	wl := queue.NewDedup(queue.NewFIFO())
	for _, n := range a.Nodes() {
		wl.Push(int(n.ID))
	}
	for !wl.Empty() {
		id := pointer.NodeID(wl.Pop())
		n := a.Nodes()[id]
		in := r.mergePreds(id)
		rw, hasRW := r.g.NodeFor(id)

		for _, read := range r.readsIfAny(rw, hasRW) {
			k := key(read.Site, read.Interval)
			defSet := r.defs[id]
			if defSet == nil {
				defSet = make(map[pointer.NodeID]bool)
				r.defs[id] = defSet
			}
			for _, d := range in[k] {
				defSet[d] = true
			}
		}

		out := r.propagateWrites(id, in, rw, hasRW)
		if r.mergeInto(id, out) {
			for _, s := range n.Succs {
				wl.Push(int(s))
			}
		}
	}
}

func (r *rd) readsIfAny(rw *rwgraph.RWNode, has bool) []rwgraph.MemoryAccess {
	if !has {
		return nil
	}
	return rw.Reads
}

// mergePreds is the union of every predecessor's out-state landing at
// id; the pointer graph doesn't track predecessors directly, so this
// recomputes by scanning (function-local graphs are small enough that
// this is not a hot path worth indexing further).
func (r *rd) mergePreds(id pointer.NodeID) siteState {
	a := r.g.Analysis
	merged := make(siteState)
	for _, n := range a.Nodes() {
		for _, s := range n.Succs {
			if s != id {
				continue
			}
			for k, defs := range r.outFor(n.ID) {
				merged[k] = unionDefs(merged[k], defs)
			}
		}
	}
	return merged
}

func (r *rd) propagateWrites(id pointer.NodeID, in siteState, rw *rwgraph.RWNode, has bool) siteState {
	out := make(siteState, len(in))
	for k, defs := range in {
		out[k] = append([]pointer.NodeID(nil), defs...)
	}
	if !has {
		return out
	}
	writerIsCall := r.g.Analysis.Nodes()[id].Kind == pointer.KindCall || r.g.Analysis.Nodes()[id].Kind == pointer.KindCallFuncPtr
	for _, w := range rw.Writes {
		k := key(w.Site, w.Interval)
		if r.strongPolicy(r, w, writerIsCall) {
			out[k] = []pointer.NodeID{id}
		} else {
			out[k] = unionDefs(out[k], []pointer.NodeID{id})
		}
	}
	return out
}

// isStrongEligible applies the heap-vs-stack/global strong-update
// policy: only a must-write to a non-heap site may strongly update,
// since a heap allocation site can stand for many live objects at
// once.
func (r *rd) isStrongEligible(w rwgraph.MemoryAccess) bool {
	if !w.IsMust {
		return false
	}
	a := r.g.Analysis
	site := a.Nodes()[w.Site]
	return !site.IsHeap
}

func (r *rd) mergeInto(id pointer.NodeID, newOut siteState) bool {
	cur := r.outFor(id)
	changed := false
	for k, defs := range newOut {
		before := len(cur[k])
		cur[k] = unionDefs(cur[k], defs)
		if len(cur[k]) != before {
			changed = true
		}
	}
	r.out[id] = cur
	return changed
}

func unionDefs(a, b []pointer.NodeID) []pointer.NodeID {
	seen := make(map[pointer.NodeID]bool, len(a))
	out := append([]pointer.NodeID(nil), a...)
	for _, x := range a {
		seen[x] = true
	}
	for _, x := range b {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

package dda

import (
	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/offset"
	"github.com/mchalupa/dgo/pointer"
	"github.com/mchalupa/dgo/queue"
	"github.com/mchalupa/dgo/rwgraph"
)

// version identifies one memory-SSA value reaching a program point for
// one allocation site: either a real write PGNode, or a synthetic phi
// merging several versions (a CFG join where predecessors disagree, or
// a weak write folding its own value in with whatever reached it).
type version struct {
	real pointer.NodeID
	phi  *phiNode
}

func realVersion(id pointer.NodeID) version { return version{real: id} }

func (v version) isZero() bool { return v.real == 0 && v.phi == nil }

func versionsEqual(a, b version) bool {
	if a.phi != nil || b.phi != nil {
		return a.phi == b.phi
	}
	return a.real == b.real
}

// phiNode is memory-SSA's indexed phi: site is the allocation site it
// merges a version for, at is the PGNode it sits at (a CFG join, or a
// write PGNode folding a weak update), and incs are the versions it
// merges. Resolving a phi to the real writes it represents is lazy,
// see memorySSA.flatten.
type phiNode struct {
	id   int
	site pointer.NodeID
	at   pointer.NodeID
	incs []version
}

type phiKey struct {
	at, site pointer.NodeID
}

// funcSummary is the interprocedural (inputs, outputs) relation
// memory-SSA exposes per function. Inputs are the sites whose version
// at ENTRY resolves to at least one write outside the function's own
// body (i.e. genuinely supplied by some caller, not just locally
// produced); outputs are the version reaching each of the function's
// RETURNs, merged into one if there is more than one return site. Both
// are read off the already-converged whole-program fixpoint rather
// than computed as independent, callsite-reusable summaries — a non-
// modular simplification recorded in DESIGN.md.
type funcSummary struct {
	Inputs  map[pointer.NodeID]bool
	Outputs map[pointer.NodeID]version
}

// memorySSA is the indexed-phi data-dependence engine: every PGNode
// carries, per allocation site, the memory-SSA version reaching its
// exit (out), with phis synthesized only where versions actually
// diverge (a join with a single live version needs none) or where a
// weak write must fold its own value in with whatever reached it.
// Unlike rd, it tracks one version per (node, site) rather than a
// flat, ever-growing candidate set, and resolves a read's definitions
// lazily by walking the version's phi structure on demand, memoized
// so a shared sub-phi isn't re-walked per query.
//
// It also bucket per whole allocation site rather than rd's per-
// (site, offset-start) buckets: a deliberate precision/complexity
// trade-off, not an oversight — see DESIGN.md.
type memorySSA struct {
	g    *rwgraph.Graph
	opts config.DDAOptions

	out   map[pointer.NodeID]map[pointer.NodeID]version // node -> site -> version reaching its exit
	reads map[pointer.NodeID]map[pointer.NodeID]version // use PGNode -> site -> version it observed

	phis     []*phiNode
	phiAt    map[phiKey]*phiNode
	resolved map[*phiNode][]pointer.NodeID

	summaries map[*pointer.Subgraph]*funcSummary
}

func buildMemorySSA(g *rwgraph.Graph, opts config.DDAOptions) *memorySSA {
	m := &memorySSA{
		g:         g,
		opts:      opts,
		out:       make(map[pointer.NodeID]map[pointer.NodeID]version),
		reads:     make(map[pointer.NodeID]map[pointer.NodeID]version),
		phiAt:     make(map[phiKey]*phiNode),
		resolved:  make(map[*phiNode][]pointer.NodeID),
		summaries: make(map[*pointer.Subgraph]*funcSummary),
	}
	m.solve()
	m.buildSummaries()
	return m
}

func (m *memorySSA) outFor(id pointer.NodeID) map[pointer.NodeID]version {
	s, ok := m.out[id]
	if !ok {
		s = make(map[pointer.NodeID]version)
		m.out[id] = s
	}
	return s
}

func (m *memorySSA) solve() {
	a := m.g.Analysis
	wl := queue.NewDedup(queue.NewFIFO())
	for _, n := range a.Nodes() {
		wl.Push(int(n.ID))
	}
	for !wl.Empty() {
		id := pointer.NodeID(wl.Pop())
		n := a.Nodes()[id]
		in := m.mergePreds(id)
		rw, hasRW := m.g.NodeFor(id)

		if hasRW {
			for _, read := range rw.Reads {
				v, ok := in[read.Site]
				if !ok {
					continue // no definition reaches here yet for that site
				}
				rm, ok := m.reads[id]
				if !ok {
					rm = make(map[pointer.NodeID]version)
					m.reads[id] = rm
				}
				rm[read.Site] = v
			}
		}

		writerIsCall := n.Kind == pointer.KindCall || n.Kind == pointer.KindCallFuncPtr
		out := m.propagateWrites(id, in, rw, hasRW, writerIsCall)
		if m.mergeInto(id, out) {
			for _, s := range n.Succs {
				wl.Push(int(s))
			}
		}
	}
}

// mergePreds unions every predecessor's out-version per site, merging
// disagreeing predecessors into a phi at id (reusing the phi already
// recorded there, if any, so its identity stays stable across
// worklist iterations).
func (m *memorySSA) mergePreds(id pointer.NodeID) map[pointer.NodeID]version {
	a := m.g.Analysis
	incoming := make(map[pointer.NodeID][]version)
	for _, n := range a.Nodes() {
		for _, s := range n.Succs {
			if s != id {
				continue
			}
			for site, v := range m.outFor(n.ID) {
				incoming[site] = append(incoming[site], v)
			}
		}
	}
	merged := make(map[pointer.NodeID]version, len(incoming))
	for site, vs := range incoming {
		merged[site] = m.mergeVersions(id, site, vs)
	}
	return merged
}

func (m *memorySSA) mergeVersions(at, site pointer.NodeID, vs []version) version {
	uniq := dedupVersions(vs)
	if len(uniq) == 1 {
		return uniq[0]
	}
	return m.phiFor(at, site, uniq)
}

func (m *memorySSA) phiFor(at, site pointer.NodeID, incs []version) version {
	k := phiKey{at: at, site: site}
	p, ok := m.phiAt[k]
	if !ok {
		p = &phiNode{id: len(m.phis), site: site, at: at}
		m.phis = append(m.phis, p)
		m.phiAt[k] = p
	}
	p.incs = incs
	delete(m.resolved, p) // invalidate the memoized flattening
	return version{phi: p}
}

func dedupVersions(vs []version) []version {
	var out []version
	for _, v := range vs {
		dup := false
		for _, seen := range out {
			if versionsEqual(seen, v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

// propagateWrites folds id's writes into the incoming per-site
// versions: a strongly-eligible write replaces the version outright
// (a true SSA kill); anything else synthesizes a phi merging the
// write with whatever version was already live, so later readers see
// both instead of silently losing the old value.
func (m *memorySSA) propagateWrites(id pointer.NodeID, in map[pointer.NodeID]version, rw *rwgraph.RWNode, has, writerIsCall bool) map[pointer.NodeID]version {
	out := make(map[pointer.NodeID]version, len(in))
	for site, v := range in {
		out[site] = v
	}
	if !has {
		return out
	}
	for _, w := range rw.Writes {
		if m.strongEligible(w, writerIsCall) {
			out[w.Site] = realVersion(id)
			continue
		}
		if prev, ok := out[w.Site]; ok && !prev.isZero() {
			out[w.Site] = m.phiFor(id, w.Site, []version{prev, realVersion(id)})
		} else {
			out[w.Site] = realVersion(id)
		}
	}
	return out
}

// strongEligible is memory-SSA's strong-update policy: stricter than
// rd's — a CALL's modeled write is never a strong update even onto a
// non-heap site, since an opaque call may alias the target through
// paths the pointer analysis didn't resolve precisely enough to trust
// a single-writer story at SSA-renaming granularity.
func (m *memorySSA) strongEligible(w rwgraph.MemoryAccess, writerIsCall bool) bool {
	if writerIsCall {
		return false
	}
	if !w.IsMust {
		return false
	}
	site := m.g.Analysis.Nodes()[w.Site]
	return !site.IsHeap
}

func (m *memorySSA) mergeInto(id pointer.NodeID, newOut map[pointer.NodeID]version) bool {
	cur := m.outFor(id)
	changed := false
	for site, v := range newOut {
		old, ok := cur[site]
		if !ok || !versionsEqual(old, v) {
			cur[site] = v
			changed = true
		}
	}
	return changed
}

// flatten lazily resolves a version to the set of real write PGNodes
// it represents, walking phi incs on demand and memoizing per phi so
// a sub-phi shared by several readers is only walked once. A phi
// rediscovered while it is still being resolved (a cycle through a
// loop back-edge) contributes nothing on that path — whatever it does
// contribute through its other, acyclic incs is still found.
func (m *memorySSA) flatten(v version) []pointer.NodeID {
	if v.isZero() {
		return nil
	}
	if v.phi == nil {
		return []pointer.NodeID{v.real}
	}
	if cached, ok := m.resolved[v.phi]; ok {
		return cached
	}
	m.resolved[v.phi] = nil
	seen := make(map[pointer.NodeID]bool)
	var out []pointer.NodeID
	for _, inc := range v.phi.incs {
		for _, d := range m.flatten(inc) {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	m.resolved[v.phi] = out
	return out
}

func (m *memorySSA) Definitions(use pointer.NodeID) []pointer.NodeID {
	sites := m.reads[use]
	seen := make(map[pointer.NodeID]bool)
	var out []pointer.NodeID
	for _, v := range sites {
		for _, d := range m.flatten(v) {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// DefinitionsAt resolves the version reaching where for mem directly,
// without requiring where to be a recorded read; off/length are
// accepted for interface parity with rd but unused, since memory-SSA
// buckets per whole allocation site (see the memorySSA doc comment).
func (m *memorySSA) DefinitionsAt(where, mem pointer.NodeID, off, length offset.Offset) []pointer.NodeID {
	in := m.mergePreds(where)
	v, ok := in[mem]
	if !ok {
		return nil
	}
	return m.flatten(v)
}

func (m *memorySSA) IsUse(n pointer.NodeID) bool {
	rw, ok := m.g.NodeFor(n)
	return ok && len(rw.Reads) > 0
}

func (m *memorySSA) IsDef(n pointer.NodeID) bool {
	rw, ok := m.g.NodeFor(n)
	return ok && len(rw.Writes) > 0
}

func (m *memorySSA) AllDefinitions() []pointer.NodeID {
	var out []pointer.NodeID
	for _, rw := range m.g.Nodes {
		if len(rw.Writes) > 0 {
			out = append(out, rw.PG)
		}
	}
	return out
}

// buildSummaries reads the (inputs, outputs) relation off the
// converged fixpoint for every subgraph the pointer analysis built.
func (m *memorySSA) buildSummaries() {
	a := m.g.Analysis
	for _, sg := range a.Subgraphs() {
		if sg.Entry == 0 {
			continue
		}
		owned := make(map[pointer.NodeID]bool, len(sg.NodeIDs))
		for _, id := range sg.NodeIDs {
			owned[id] = true
		}
		s := &funcSummary{Inputs: make(map[pointer.NodeID]bool), Outputs: make(map[pointer.NodeID]version)}
		for site, v := range m.outFor(sg.Entry) {
			for _, d := range m.flatten(v) {
				if !owned[d] {
					s.Inputs[site] = true
					break
				}
			}
		}
		for _, id := range sg.NodeIDs {
			n := a.Nodes()[id]
			if n.Kind != pointer.KindReturn {
				continue
			}
			for site, v := range m.outFor(id) {
				if prev, ok := s.Outputs[site]; ok {
					s.Outputs[site] = m.phiFor(id, site, []version{prev, v})
				} else {
					s.Outputs[site] = v
				}
			}
		}
		m.summaries[sg] = s
	}
}

// SummaryFor exposes the interprocedural (inputs, outputs) summary
// memory-SSA computed for fn's subgraph, if any.
func (m *memorySSA) SummaryFor(sg *pointer.Subgraph) (*funcSummary, bool) {
	s, ok := m.summaries[sg]
	return s, ok
}

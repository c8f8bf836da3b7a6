package pointer

import "github.com/mchalupa/dgo/offset"

// fsFlavor is the flow-sensitive solver: every PGNode carries its own
// MemoryMap snapshot (site -> MemoryObject), seeded empty and merged
// from predecessors along the pointer graph's intraprocedural CFG
// edges (Node.Succs) each outer iteration. A STORE updates only its
// own node's map (weak update: the old value still reaches through
// the join with other paths, since strong-vs-weak is a rwgraph/dda
// decision, not a pointer-analysis one); the updated map is then
// merged forward into every successor.
type fsFlavor struct {
	a   *Analysis
	mem map[NodeID]MemoryMap
}

func (f *fsFlavor) init(a *Analysis) {
	f.mem = make(map[NodeID]MemoryMap, len(a.nodes))
	for _, n := range a.nodes {
		f.mem[n.ID] = newMemoryMap()
	}
}

func (f *fsFlavor) mapFor(id NodeID) MemoryMap {
	m, ok := f.mem[id]
	if !ok {
		m = newMemoryMap()
		f.mem[id] = m
	}
	return m
}

// propagate pushes the out-map of every node (its own map, after any
// STORE at that node has been folded in) into each successor's
// in-map, merging rather than overwriting. Returns true iff any
// successor's map grew.
func (f *fsFlavor) propagate(a *Analysis) bool {
	changed := false
	for _, n := range a.nodes {
		out := f.mapFor(n.ID)
		for _, succID := range n.Succs {
			if f.mapFor(succID).MergeFrom(out) {
				changed = true
			}
		}
	}
	return changed
}

func (f *fsFlavor) applyLoad(a *Analysis, c *loadConstraint) bool {
	addr := &a.node(c.addr).PointsTo
	dst := a.node(c.dst)
	mm := f.mapFor(c.at)
	changed := false
	if addr.HasUnknown() {
		loaded := mm.objectFor(a.UnknownMemory()).Load(offset.Unknown)
		if dst.PointsTo.UnionWith(&loaded) {
			changed = true
		}
	}
	for _, p := range addr.Pointers() {
		loaded := mm.objectFor(p.Target).Load(p.Offset)
		if dst.PointsTo.UnionWith(&loaded) {
			changed = true
		}
	}
	return changed
}

func (f *fsFlavor) applyStore(a *Analysis, c *storeConstraint) bool {
	addr := &a.node(c.addr).PointsTo
	src := &a.node(c.src).PointsTo
	mm := f.mapFor(c.at)
	changed := false
	for _, p := range addr.Pointers() {
		if mm.objectFor(p.Target).Store(p.Offset, src) {
			changed = true
		}
	}
	return changed
}

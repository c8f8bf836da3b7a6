package pointer

import "github.com/mchalupa/dgo/offset"

// fsInvFlavor extends the flow-sensitive solver with invalidation
// tracking: at a FREE or INVALIDATE_OBJECT node (explicit free of a
// known object) or INVALIDATE_LOCALS node (function return, invalidating
// that frame's stack allocations), every site so marked is considered
// "dead" at that program point and onward. A LOAD through a pointer
// whose target is dead at that point yields the Invalidated sentinel
// instead of whatever was last stored there, catching use-after-free/
// use-after-return instead of silently reporting stale data.
//
// The dead-site set is tracked as its own monotone per-node map
// (node -> site -> bool) propagated alongside the MemoryMap, so the
// whole lattice stays monotone even though "data becomes unusable"
// sounds like a shrink: nothing is removed, a redirection is recorded
// instead.
type fsInvFlavor struct {
	fsFlavor
	dead map[NodeID]map[NodeID]bool
}

func (f *fsInvFlavor) init(a *Analysis) {
	f.fsFlavor.init(a)
	f.dead = make(map[NodeID]map[NodeID]bool, len(a.nodes))
	for _, n := range a.nodes {
		f.dead[n.ID] = make(map[NodeID]bool)
	}
}

func (f *fsInvFlavor) deadAt(id NodeID) map[NodeID]bool {
	m, ok := f.dead[id]
	if !ok {
		m = make(map[NodeID]bool)
		f.dead[id] = m
	}
	return m
}

func (f *fsInvFlavor) propagate(a *Analysis) bool {
	changed := f.fsFlavor.propagate(a)

	for _, n := range a.nodes {
		own := f.deadAt(n.ID)
		switch n.Kind {
		case KindInvalidateObject, KindFree:
			if len(n.Operands) > 0 {
				for _, p := range a.node(n.Operands[0]).PointsTo.Pointers() {
					if !own[p.Target] {
						own[p.Target] = true
						changed = true
					}
				}
			}
		case KindInvalidateLocals:
			if n.Owner != nil {
				for _, id := range n.Owner.NodeIDs {
					m := a.node(id)
					if (m.Kind == KindAlloc) && !m.IsHeap {
						if !own[id] {
							own[id] = true
							changed = true
						}
					}
				}
			}
		}
		for _, succID := range n.Succs {
			succDead := f.deadAt(succID)
			for site := range own {
				if !succDead[site] {
					succDead[site] = true
					changed = true
				}
			}
		}
	}
	return changed
}

func (f *fsInvFlavor) applyLoad(a *Analysis, c *loadConstraint) bool {
	addr := &a.node(c.addr).PointsTo
	dst := a.node(c.dst)
	mm := f.mapFor(c.at)
	dead := f.deadAt(c.at)
	changed := false

	handle := func(target NodeID, off offset.Offset) {
		if dead[target] {
			if dst.PointsTo.Add(Pointer{Target: a.Invalidated(), Offset: offset.Zero}) {
				changed = true
			}
			return
		}
		loaded := mm.objectFor(target).Load(off)
		if dst.PointsTo.UnionWith(&loaded) {
			changed = true
		}
	}

	if addr.HasUnknown() {
		handle(a.UnknownMemory(), offset.Unknown)
	}
	for _, p := range addr.Pointers() {
		handle(p.Target, p.Offset)
	}
	return changed
}

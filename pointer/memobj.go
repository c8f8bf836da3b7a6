package pointer

import "github.com/mchalupa/dgo/offset"

// MemoryObject is the C1 abstraction of SPEC_FULL.md §3: for one
// allocation site, a mapping from byte offset to the set of pointers
// stored there. The any field is the
// catch-all slot used whenever a STORE's offset is itself unknown: it
// is unioned into the result of every LOAD, concrete or not, because
// we cannot rule out that an unknown-offset store landed on the
// offset being read.
type MemoryObject struct {
	Site  NodeID
	slots map[uint64]*PointsToSet
	any   PointsToSet // writes at an unknown offset land here
}

func newMemoryObject(site NodeID) *MemoryObject {
	return &MemoryObject{Site: site, slots: make(map[uint64]*PointsToSet)}
}

func (mo *MemoryObject) slot(off uint64) *PointsToSet {
	s, ok := mo.slots[off]
	if !ok {
		s = &PointsToSet{}
		mo.slots[off] = s
	}
	return s
}

// Store unions src into the slot(s) named by off (or the catch-all
// slot, if off is unknown). Returns true iff anything grew.
func (mo *MemoryObject) Store(off offset.Offset, src *PointsToSet) bool {
	if v, ok := off.Value(); ok {
		return mo.slot(v).UnionWith(src)
	}
	return mo.any.UnionWith(src)
}

// Load returns the union of every slot that off may denote: the exact
// slot plus the catch-all slot (if off is concrete), or the union of
// every slot ever written plus the catch-all slot (if off is unknown).
func (mo *MemoryObject) Load(off offset.Offset) PointsToSet {
	var out PointsToSet
	out.UnionWith(&mo.any)
	if v, ok := off.Value(); ok {
		out.UnionWith(mo.slot(v))
		return out
	}
	for _, s := range mo.slots {
		out.UnionWith(s)
	}
	return out
}

// Clone deep-copies mo (used by the flow-sensitive solver's per-node
// memory maps, which must not alias each other across join points).
func (mo *MemoryObject) Clone() *MemoryObject {
	c := newMemoryObject(mo.Site)
	c.any.UnionWith(&mo.any)
	for k, v := range mo.slots {
		ns := &PointsToSet{}
		ns.UnionWith(v)
		c.slots[k] = ns
	}
	return c
}

// MemoryMap is the per-location memory snapshot the flow-sensitive
// solvers (FS, FSInv) attach to every PGNode: site → MO.
type MemoryMap map[NodeID]*MemoryObject

func newMemoryMap() MemoryMap { return make(MemoryMap) }

func (m MemoryMap) objectFor(site NodeID) *MemoryObject {
	mo, ok := m[site]
	if !ok {
		mo = newMemoryObject(site)
		m[site] = mo
	}
	return mo
}

// MergeFrom union-merges every site of other into m (join-point
// behavior for FS/FSInv), returning true iff m grew.
func (m MemoryMap) MergeFrom(other MemoryMap) bool {
	changed := false
	for site, mo := range other {
		mine := m.objectFor(site)
		if mine.any.UnionWith(&mo.any) {
			changed = true
		}
		for off, s := range mo.slots {
			if mine.slot(off).UnionWith(s) {
				changed = true
			}
		}
	}
	return changed
}

// Clone deep-copies the whole map.
func (m MemoryMap) Clone() MemoryMap {
	c := newMemoryMap()
	for site, mo := range m {
		c[site] = mo.Clone()
	}
	return c
}

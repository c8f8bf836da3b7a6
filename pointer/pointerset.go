package pointer

import (
	"sort"

	"golang.org/x/tools/container/intsets"

	"github.com/mchalupa/dgo/offset"
)

// Pointer is the pair (target, offset): target is the PGNode denoting
// the pointed-to object (an ALLOC/DYN_ALLOC/GLOBAL/FUNCTION/CONSTANT
// node, or one of the sentinels), offset is the byte offset within it.
type Pointer struct {
	Target NodeID
	Offset offset.Offset
}

// pointerTable interns (target, offset) pairs into small ints so a
// PointsToSet can be backed by intsets.Sparse — the same sparse-
// bitset representation the upstream Go pointer analysis (this
// package's lineage) uses for points-to sets, rather than an
// invented container.
//
// Each distinct Pointer (target plus concrete or Unknown offset) gets
// the next sequential id on first sight, so two Pointers to the same
// target with different offsets remain distinct while still fitting in
// one int-keyed table.
type pointerTable struct {
	idOf  map[Pointer]int
	byID  []Pointer
}

var globalPointerTable = &pointerTable{idOf: make(map[Pointer]int)}

func (t *pointerTable) intern(p Pointer) int {
	if id, ok := t.idOf[p]; ok {
		return id
	}
	id := len(t.byID)
	t.byID = append(t.byID, p)
	t.idOf[p] = id
	return id
}

func (t *pointerTable) lookup(id int) Pointer { return t.byID[id] }

// PointsToSet is a bag of Pointers plus a hasUnknown flag marking
// that the pointer may also denote UNKNOWN_MEMORY. Iteration order is
// unspecified (callers that need a stable order use Sorted).
type PointsToSet struct {
	ids        intsets.Sparse
	hasUnknown bool
}

// Add inserts p, returning true iff the set grew (used by the solver
// to detect a change for worklist re-queuing).
func (s *PointsToSet) Add(p Pointer) bool {
	id := globalPointerTable.intern(p)
	return s.ids.Insert(id)
}

// SetHasUnknown marks the set as containing UNKNOWN_MEMORY, returning
// true iff this is a change.
func (s *PointsToSet) SetHasUnknown() bool {
	if s.hasUnknown {
		return false
	}
	s.hasUnknown = true
	return true
}

func (s *PointsToSet) HasUnknown() bool { return s.hasUnknown }

// UnionWith merges other into s, returning true iff s grew.
func (s *PointsToSet) UnionWith(other *PointsToSet) bool {
	changed := false
	if other.hasUnknown {
		changed = s.SetHasUnknown() || changed
	}
	before := s.ids.Len()
	s.ids.UnionWith(&other.ids)
	if s.ids.Len() != before {
		changed = true
	}
	return changed
}

// Len is the number of concrete Pointers in the set (excluding the
// hasUnknown flag, which is tracked separately).
func (s *PointsToSet) Len() int { return s.ids.Len() }

func (s *PointsToSet) IsEmpty() bool { return s.ids.IsEmpty() && !s.hasUnknown }

// Pointers returns the concrete members of the set.
func (s *PointsToSet) Pointers() []Pointer {
	ids := s.ids.AppendTo(nil)
	out := make([]Pointer, 0, len(ids))
	for _, id := range ids {
		out = append(out, globalPointerTable.lookup(id))
	}
	return out
}

// Sorted returns the members in a deterministic order, for output that
// must not depend on map/set iteration order (dumpers, golden tests).
func (s *PointsToSet) Sorted() []Pointer {
	ps := s.Pointers()
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Target != ps[j].Target {
			return ps[i].Target < ps[j].Target
		}
		av, aok := ps[i].Offset.Value()
		bv, bok := ps[j].Offset.Value()
		if aok != bok {
			return aok // concrete before unknown
		}
		return av < bv
	})
	return ps
}

// ForEach iterates the concrete members of the set, in whatever order
// intsets.Sparse yields them (the solver never depends on this order).
func (s *PointsToSet) ForEach(f func(Pointer)) {
	for _, id := range s.ids.AppendTo(nil) {
		f(globalPointerTable.lookup(id))
	}
}

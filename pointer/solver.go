package pointer

import "github.com/mchalupa/dgo/queue"

// solverFlavor isolates the one place FI, FS and FSInv genuinely
// differ: how a LOAD/STORE interacts with memory. Every other
// constraint (addr-of, copy, GEP) is flavor-independent and solved by
// the shared worklist in solve().
type solverFlavor interface {
	applyLoad(a *Analysis, c *loadConstraint) bool
	applyStore(a *Analysis, c *storeConstraint) bool

	// init runs once before the first iteration (FS/FSInv use it to
	// seed each node's MemoryMap).
	init(a *Analysis)

	// propagate runs once per outer iteration, after the constraint
	// worklist has reached a local fixpoint, to push memory-map
	// changes along CFG successor edges (a no-op for FI, which has no
	// notion of CFG position).
	propagate(a *Analysis) bool
}

// solve drives the two-tier fixpoint: an inner worklist over
// constraints (cheap, re-run until no constraint fires), wrapped in
// an outer loop that also lets the flavor propagate memory-map state
// along the CFG; the whole thing stops when a full outer round
// produces no change at all.
func (a *Analysis) solve() {
	a.flavor.init(a)

	for {
		changedOuter := a.iterateConstraints()
		if a.flavor.propagate(a) {
			changedOuter = true
		}
		if !changedOuter {
			break
		}
	}
}

// iterateConstraints runs every constraint until none of them change
// anything, i.e. an inner fixpoint over the pointer-value lattice (not
// the memory lattice, which the flavor's propagate step owns). It is
// driven by a dedup worklist rather than a flat rescan: a constraint
// has no explicit "which other constraints consume my output" index in
// this representation, so firing any constraint conservatively
// re-queues every constraint, but the dedup wrapper still collapses
// the resulting burst of pushes into one pending entry per constraint.
func (a *Analysis) iterateConstraints() bool {
	changedAny := false
	wl := queue.NewDedup(queue.NewFIFO())
	for i := range a.constraints {
		wl.Push(i)
	}
	for !wl.Empty() {
		i := wl.Pop()
		if a.constraints[i].apply(a) {
			changedAny = true
			for j := range a.constraints {
				wl.Push(j)
			}
		}
	}
	return changedAny
}

// memObjFI returns the single, process-wide memory object for
// allocation site NodeID id, used only by the flow-insensitive flavor.
func (a *Analysis) memObjFI(id NodeID) *MemoryObject {
	if a.fiMem == nil {
		a.fiMem = make(map[NodeID]*MemoryObject)
	}
	mo, ok := a.fiMem[id]
	if !ok {
		mo = newMemoryObject(id)
		a.fiMem[id] = mo
	}
	return mo
}

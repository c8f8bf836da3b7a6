package pointer

import "github.com/mchalupa/dgo/offset"

// constraint is one inclusion constraint gathered while walking the
// IR, in the spirit of classical Andersen-style generation: addr-of,
// copy, load, store, and a GEP (offset-adjusting copy) variant. The
// solver re-evaluates every constraint to a fixpoint; constraints
// never shrink a points-to set, only grow it, so termination follows
// from points-to sets being bounded by the number of interned
// Pointers.
type constraint interface {
	// apply evaluates the constraint against the current state and
	// reports whether anything changed.
	apply(a *Analysis) bool
	String() string
}

// addrConstraint: dst ⊇ {(site, 0)}. Created once per ALLOC/DYN_ALLOC/
// GLOBAL/FUNCTION node for its own defining node.
type addrConstraint struct {
	dst  NodeID
	site NodeID
}

func (c *addrConstraint) apply(a *Analysis) bool {
	return a.node(c.dst).PointsTo.Add(Pointer{Target: c.site, Offset: offset.Zero})
}

func (c *addrConstraint) String() string { return "addr" }

// copyConstraint: dst ⊇ src. Created for PHI operands, CAST, function
// arguments/returns, and plain value propagation.
type copyConstraint struct {
	dst, src NodeID
}

func (c *copyConstraint) apply(a *Analysis) bool {
	return a.node(c.dst).PointsTo.UnionWith(&a.node(c.src).PointsTo)
}

func (c *copyConstraint) String() string { return "copy" }

// offsetCopyConstraint: dst ⊇ { (t, o+delta) : (t,o) ∈ pts(src) }.
// Created for every GEP; delta is Unknown when the offset cannot be
// folded to a constant.
type offsetCopyConstraint struct {
	dst, src NodeID
	delta    offset.Offset
}

func (c *offsetCopyConstraint) apply(a *Analysis) bool {
	src := &a.node(c.src).PointsTo
	dstNode := a.node(c.dst)
	changed := false
	if src.HasUnknown() {
		changed = dstNode.PointsTo.SetHasUnknown() || changed
	}
	for _, p := range src.Pointers() {
		np := Pointer{Target: p.Target, Offset: p.Offset.Add(c.delta)}
		if dstNode.PointsTo.Add(np) {
			changed = true
		}
	}
	return changed
}

func (c *offsetCopyConstraint) String() string { return "gep" }

// loadConstraint: dst ⊇ load(pts(addr)). apply dispatches to the
// active flavor: flow-insensitive solving reads the flat memory object
// per site, flow-sensitive solving reads the MemoryMap of the LOAD node
// `at` instead (see solver_fs.go).
type loadConstraint struct {
	at        NodeID // the LOAD PGNode itself, for flow-sensitive lookup
	dst, addr NodeID
}

func (c *loadConstraint) apply(a *Analysis) bool {
	return a.flavor.applyLoad(a, c)
}

func (c *loadConstraint) String() string { return "load" }

// storeConstraint: for every (t,o) in pts(addr), memory(t)[o] ⊇ pts(src).
type storeConstraint struct {
	at        NodeID // the STORE PGNode itself, for flow-sensitive lookup
	addr, src NodeID
}

func (c *storeConstraint) apply(a *Analysis) bool {
	return a.flavor.applyStore(a, c)
}

func (c *storeConstraint) String() string { return "store" }

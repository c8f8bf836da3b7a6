package pointer

// The process-wide sentinel nodes. They are created once by
// initSentinels at fixed low indices of the arena and never belong to
// any Subgraph (Owner == nil). An Analysis is never mutated
// concurrently, so no locking is needed around them.
const (
	idPadding       NodeID = 0
	idNull          NodeID = 1
	idUnknownMemory NodeID = 2
	idInvalidated   NodeID = 3
	numSentinels    int    = 4
)

func (a *Analysis) initSentinels() {
	a.nodes = make([]*Node, numSentinels)
	a.nodes[idPadding] = &Node{ID: idPadding, Kind: KindNoop}
	a.nodes[idNull] = &Node{ID: idNull, Kind: KindNullAddr}
	a.nodes[idUnknownMemory] = &Node{ID: idUnknownMemory, Kind: KindUnknownMem}
	a.nodes[idInvalidated] = &Node{ID: idInvalidated, Kind: KindUnknownMem}
}

// NullPointer is the NULL sentinel.
func (a *Analysis) NullPointer() NodeID { return idNull }

// UnknownMemory is the UNKNOWN_MEMORY sentinel: the target of an
// over-approximated, "could point anywhere" pointer.
func (a *Analysis) UnknownMemory() NodeID { return idUnknownMemory }

// Invalidated is the FSInv sentinel target for a pointer into memory
// whose lifetime has ended.
func (a *Analysis) Invalidated() NodeID { return idInvalidated }

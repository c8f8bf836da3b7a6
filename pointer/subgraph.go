package pointer

import "github.com/llir/llvm/ir"

// Subgraph is the per-procedure view: a set of PGNodes (tracked by id,
// owned by the single Analysis-wide arena — see analysis.go) with a
// designated ENTRY root. Subgraphs are linked to each other only
// through call edges (CALL → ENTRY, RETURN → CALL_RETURN); those
// links are plain NodeID handles into the shared arena, so no
// cross-arena pointer ever appears.
type Subgraph struct {
	Func    *ir.Func
	Entry   NodeID
	NodeIDs []NodeID // all nodes owned by this subgraph, in creation order
}

// The analysis owns ONE arena (Analysis.nodes); NodeID is an index
// into it. Subgraph.NodeIDs merely records which slice of that arena
// belongs to this function, so every PGNode still belongs to exactly
// one Subgraph without needing a separate arena per function (which
// would turn call edges into cross-arena pointers).

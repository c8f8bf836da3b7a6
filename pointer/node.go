// Package pointer implements the pointer graph and the inclusion-based
// points-to solver over LLVM IR.
//
// This file defines the pointer-graph node types: one PGNode per
// address-taking operation or pointer-valued expression of the input
// LLVM function, the coarser, pointer-centric granularity LLVM IR
// already has (no implicit field-flattening the way Go interface
// values need).
package pointer

import (
	"fmt"

	"github.com/mchalupa/dgo/offset"
)

// Kind tags the variant of a PGNode.
type Kind uint8

const (
	KindAlloc Kind = iota
	KindDynAlloc
	KindGlobal
	KindLoad
	KindStore
	KindGEP
	KindPhi
	KindCast
	KindConstant
	KindFunction
	KindCall
	KindCallFuncPtr
	KindCallReturn
	KindEntry
	KindReturn
	KindMemcpy
	KindInvalidateLocals
	KindInvalidateObject
	KindFree
	KindFork
	KindJoin
	KindNoop
	KindNullAddr
	KindUnknownMem
)

func (k Kind) String() string {
	names := [...]string{
		"ALLOC", "DYN_ALLOC", "GLOBAL", "LOAD", "STORE", "GEP", "PHI", "CAST",
		"CONSTANT", "FUNCTION", "CALL", "CALL_FUNCPTR", "CALL_RETURN", "ENTRY",
		"RETURN", "MEMCPY", "INVALIDATE_LOCALS", "INVALIDATE_OBJECT", "FREE",
		"FORK", "JOIN", "NOOP", "NULL_ADDR", "UNKNOWN_MEM",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// NodeID is a handle: an index into the Analysis-wide node arena.
// NodeID 0 is reserved (never valid). The process-wide sentinels
// (NULL, UnknownMemory, Invalidated) occupy the first few slots of
// that arena, see sentinels.go.
type NodeID uint32

// Operand is a typed edge from a PGNode to another PGNode that feeds
// it a value (e.g. GEP's base pointer, STORE's stored value).
type Operand struct {
	Target NodeID
}

// Node is one pointer-graph node. Fields not relevant to Kind are
// left zero: a tagged struct in place of a Kind-keyed vtable
// hierarchy, so the solver switches on Kind instead of dispatching
// through interfaces.
type Node struct {
	ID    NodeID
	Kind  Kind
	Owner *Subgraph // nil for process-wide sentinels

	// Operand edges into other PGNodes (order is kind-specific: e.g.
	// for GEP, Operands[0] is the base pointer).
	Operands []NodeID

	// Successor edges: this node's position in the intraprocedural
	// CFG of the pointer graph (mirrors the owning basic block's
	// successors).
	Succs []NodeID

	PointsTo PointsToSet

	// UserData is the IR back-pointer (an ir.Instruction, ir.Value,
	// *ir.Global or *ir.Func depending on Kind).
	UserData interface{}

	// Allocation attributes, meaningful for ALLOC/DYN_ALLOC/GLOBAL.
	AllocSize     offset.Offset
	IsHeap        bool
	IsZeroInit    bool

	// GEP-specific.
	GEPOffset offset.Offset

	// MEMCPY-specific.
	MemcpyLen offset.Offset

	// FUNCTION-specific: the callee's own subgraph, if known/modeled.
	Callee *Subgraph
}

func (n *Node) String() string {
	s := fmt.Sprintf("n%d:%s", n.ID, n.Kind)
	if sv, ok := n.UserData.(fmt.Stringer); ok {
		s += " " + sv.String()
	}
	return s
}

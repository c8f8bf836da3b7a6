// Package rwgraph builds the read/write graph: for every instruction
// that touches memory, the concrete set of (allocation-site, byte
// range) pairs it reads and writes, resolved from the pointer
// analysis's points-to sets. Downstream data-dependence engines (RD,
// memory-SSA) walk this graph instead of re-deriving memory effects
// from raw IR each time.
package rwgraph

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/irfrontend"
	"github.com/mchalupa/dgo/offset"
	"github.com/mchalupa/dgo/pointer"
)

// AccessKind distinguishes a read from a write.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
)

// MemoryAccess is one concrete (site, interval) effect of an
// instruction, with IsMust recording whether the access is
// deterministic (exactly one site, concrete offset, concrete length)
// or only may-alias (several sites, or an unknown offset/length),
// which is what lets the data-dependence engine later decide between
// a strong and a weak update.
type MemoryAccess struct {
	Kind     AccessKind
	Site     pointer.NodeID
	Interval offset.Interval
	IsMust   bool
}

// RWNode is one instruction's worth of memory accesses, keyed by the
// underlying PGNode so the data-dependence engine can cross-reference
// pointer-analysis results directly.
type RWNode struct {
	PG    pointer.NodeID
	Inst  ir.Instruction
	Reads  []MemoryAccess
	Writes []MemoryAccess
}

// Graph is the read/write graph for one pointer-analysis result: one
// RWNode per LOAD/STORE/MEMCPY/FREE PGNode, per realloc DYN_ALLOC, and
// per CALL to a function with no body, whenever it has any access.
type Graph struct {
	Analysis *pointer.Analysis
	Nodes    []*RWNode
	byPG     map[pointer.NodeID]*RWNode
}

// Build walks every Subgraph of result and emits one RWNode per PGNode
// that reads or writes memory, applying opts.FunctionModels for any
// call to a function with no body (libc, or user-supplied), falling
// back to opts.UndefinedFunsBehavior for one with neither a body nor a
// model.
func Build(result *pointer.Result, opts config.DDAOptions) *Graph {
	g := &Graph{byPG: make(map[pointer.NodeID]*RWNode), Analysis: result.Analysis}
	a := result.Analysis

	for _, n := range a.Nodes() {
		var rw *RWNode
		switch n.Kind {
		case pointer.KindLoad:
			rw = &RWNode{PG: n.ID, Reads: accessesFor(a, n, offset.Zero)}
		case pointer.KindStore:
			rw = &RWNode{PG: n.ID, Writes: accessesFor(a, n, offset.Zero)}
		case pointer.KindMemcpy:
			rw = memcpyAccesses(a, n)
		case pointer.KindDynAlloc:
			rw = dynAllocAccesses(a, n)
		case pointer.KindFree:
			rw = &RWNode{PG: n.ID, Writes: accessesFor(a, n, offset.Unknown)}
		case pointer.KindCall:
			rw = callModelAccesses(a, n, opts.FunctionModels, opts.UndefinedFunsBehavior)
		default:
			continue
		}
		if rw == nil || (len(rw.Reads) == 0 && len(rw.Writes) == 0) {
			continue
		}
		rw.PG = n.ID
		if inst, ok := n.UserData.(ir.Instruction); ok {
			rw.Inst = inst
		}
		g.Nodes = append(g.Nodes, rw)
		g.byPG[n.ID] = rw
	}
	return g
}

// NodeFor looks up the RWNode for a given PGNode, if any (a PGNode
// that touches no memory, e.g. a pure arithmetic NOOP, has none).
func (g *Graph) NodeFor(id pointer.NodeID) (*RWNode, bool) {
	rw, ok := g.byPG[id]
	return rw, ok
}

// accessesFor turns the pointer operand's (now-solved) points-to set
// into one MemoryAccess per candidate target. A single concrete target
// with a concrete offset/length is a must-access; anything else (more
// than one target, or an unknown offset) is a may-access, which is
// the rwgraph's contribution to the later strong/weak update decision.
func accessesFor(a *pointer.Analysis, n *pointer.Node, length offset.Offset) []MemoryAccess {
	if len(n.Operands) == 0 {
		return nil
	}
	addr := a.Nodes()[n.Operands[0]]
	pts := addr.PointsTo.Pointers()
	singleTarget := len(pts) == 1 && !addr.PointsTo.HasUnknown()
	var out []MemoryAccess
	for _, p := range pts {
		iv := intervalFor(p.Offset, length)
		must := singleTarget && !p.Offset.IsUnknown() && !length.IsUnknown()
		out = append(out, MemoryAccess{Site: p.Target, Interval: iv, IsMust: must})
	}
	if addr.PointsTo.HasUnknown() {
		out = append(out, MemoryAccess{Site: a.UnknownMemory(), Interval: offset.Unbounded(offset.Zero), IsMust: false})
	}
	return out
}

func memcpyAccesses(a *pointer.Analysis, n *pointer.Node) *RWNode {
	if len(n.Operands) < 2 {
		return nil
	}
	dst := a.Nodes()[n.Operands[0]]
	src := a.Nodes()[n.Operands[1]]
	rw := &RWNode{}
	for _, p := range dst.PointsTo.Pointers() {
		rw.Writes = append(rw.Writes, MemoryAccess{
			Site: p.Target, Interval: intervalFor(p.Offset, n.MemcpyLen), IsMust: dst.PointsTo.Len() == 1,
		})
	}
	for _, p := range src.PointsTo.Pointers() {
		rw.Reads = append(rw.Reads, MemoryAccess{
			Site: p.Target, Interval: intervalFor(p.Offset, n.MemcpyLen), IsMust: src.PointsTo.Len() == 1,
		})
	}
	return rw
}

// dynAllocAccesses handles realloc's carry-over-copy DYN_ALLOC (see
// pointer.Analysis.genRealloc): a write into the new block's own site
// and a read from whatever the old pointer operand pointed to. Plain
// malloc/calloc/alloca DYN_ALLOC nodes carry no Operands and produce
// no access here — there is no prior memory to carry over.
func dynAllocAccesses(a *pointer.Analysis, n *pointer.Node) *RWNode {
	if len(n.Operands) == 0 {
		return nil
	}
	rw := &RWNode{}
	for _, p := range n.PointsTo.Pointers() {
		rw.Writes = append(rw.Writes, MemoryAccess{
			Site: p.Target, Interval: intervalFor(p.Offset, n.MemcpyLen), IsMust: n.PointsTo.Len() == 1,
		})
	}
	old := a.Nodes()[n.Operands[0]]
	for _, p := range old.PointsTo.Pointers() {
		rw.Reads = append(rw.Reads, MemoryAccess{
			Site: p.Target, Interval: intervalFor(p.Offset, n.MemcpyLen), IsMust: old.PointsTo.Len() == 1,
		})
	}
	return rw
}

func intervalFor(start, length offset.Offset) offset.Interval {
	if length.IsUnknown() {
		return offset.Unbounded(start)
	}
	return offset.NewInterval(start, start.Add(length))
}

// callModelAccesses resolves a call to a function with no analyzable
// body against the configured FunctionModel table. A call to a
// function with a body needs no accesses here at all: pointer.wireCall
// already links CALL -> ENTRY and RETURN -> CALL_RETURN, so its memory
// effects reach the data-dependence engine as ordinary call-graph data
// flow through that callee's own LOAD/STORE nodes. A call with
// neither a body nor a model falls back to behavior, the
// config-driven wildcard def/use every genuinely undefined function
// gets unless it is declared pure.
func callModelAccesses(a *pointer.Analysis, n *pointer.Node, fns map[string]config.FunctionModel, behavior config.UndefinedFunsBehavior) *RWNode {
	inst, ok := n.UserData.(*ir.InstCall)
	if !ok {
		return nil
	}
	name := irfrontend.CalleeName(inst.Callee)
	if model, ok := fns[name]; ok {
		return modelAccesses(a, n, model)
	}
	if fn := irfrontend.FuncByName(a.Module(), name); fn != nil && !irfrontend.IsDeclarationOnly(fn) {
		return nil
	}
	return undefinedCallAccesses(a, n, inst, behavior)
}

// modelAccesses applies one FunctionModel to a call's arguments. Each
// clause's access spans from the argument's pointed-to offset with no
// upper bound (never a must-access); the clause's From/To range is not
// applied.
func modelAccesses(a *pointer.Analysis, n *pointer.Node, model config.FunctionModel) *RWNode {
	inst, ok := n.UserData.(*ir.InstCall)
	if !ok {
		return nil
	}
	rw := &RWNode{}
	for _, e := range model.Entries {
		if e.Index >= len(inst.Args) {
			continue
		}
		argNode := a.Nodes()[a.ValueNode(n.Owner, inst.Args[e.Index])]
		for _, p := range argNode.PointsTo.Pointers() {
			acc := MemoryAccess{Site: p.Target, Interval: offset.Unbounded(p.Offset), IsMust: false}
			if e.IsDef {
				rw.Writes = append(rw.Writes, acc)
			} else {
				rw.Reads = append(rw.Reads, acc)
			}
		}
	}
	return rw
}

// undefinedCallAccesses implements a genuinely undefined function's
// (no body, no model) fallback behavior: UFPure means no memory
// effect at all; UFReadAny/UFWriteAny add a single access over
// UNKNOWN_MEMORY; UFReadArgs/UFWriteArgs add one access per pointer
// every non-constant argument may point to.
func undefinedCallAccesses(a *pointer.Analysis, n *pointer.Node, inst *ir.InstCall, behavior config.UndefinedFunsBehavior) *RWNode {
	if behavior&config.UFPure != 0 {
		return nil
	}
	rw := &RWNode{}
	if behavior&config.UFReadAny != 0 {
		rw.Reads = append(rw.Reads, MemoryAccess{Site: a.UnknownMemory(), Interval: offset.Unbounded(offset.Zero)})
	}
	if behavior&config.UFWriteAny != 0 {
		rw.Writes = append(rw.Writes, MemoryAccess{Site: a.UnknownMemory(), Interval: offset.Unbounded(offset.Zero)})
	}
	readArgs := behavior&config.UFReadArgs != 0
	writeArgs := behavior&config.UFWriteArgs != 0
	if !readArgs && !writeArgs {
		return rw
	}
	owner := n.Owner
	for _, arg := range inst.Args {
		if _, isConst := arg.(constant.Constant); isConst {
			continue // a constant value carries no memory of its own to alias
		}
		argID := a.ValueNode(owner, arg)
		for _, p := range a.Nodes()[argID].PointsTo.Pointers() {
			acc := MemoryAccess{Site: p.Target, Interval: offset.Unbounded(p.Offset)}
			if readArgs {
				rw.Reads = append(rw.Reads, acc)
			}
			if writeArgs {
				rw.Writes = append(rw.Writes, acc)
			}
		}
	}
	return rw
}

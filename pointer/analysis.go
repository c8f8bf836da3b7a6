package pointer

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
	"github.com/sirupsen/logrus"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/dglog"
)

// Analysis owns the whole pointer graph: one flat node arena shared by
// every Subgraph, the worklist, and the solver state for whichever
// flavor (FI/FS/FSInv) config.PTAOptions.AnalysisType selects. It mirrors a classical inclusion-based
// analysis struct in shape (one object holding the arena, the
// constraint set and the queues) but the arena here holds PGNodes
// built from LLVM IR rather than Go SSA constraint variables.
type Analysis struct {
	config config.PTAOptions
	module *ir.Module
	log    *logrus.Entry

	nodes []*Node // arena; index 0 unused, see numSentinels

	subgraphs    map[*ir.Func]*Subgraph
	subgraphList []*Subgraph // deterministic iteration order

	// globalVal maps package-level values (globals, functions, constants)
	// to their single process-wide node, memoized the same way
	// valueNode/objectNode helpers.
	globalVal map[value.Value]NodeID

	// localVal maps a function-local value to its node, scoped per
	// Subgraph so two functions' `%1` don't collide.
	localVal map[*Subgraph]map[value.Value]NodeID

	// instNode maps every instruction (including void ones, like store
	// or a void call, that never appear in localVal) to its node.
	instNode map[*Subgraph]map[ir.Instruction]NodeID

	// blockTerm maps a block's terminator to its node, separately from
	// instNode since ir.Terminator is not an ir.Instruction.
	blockTerm map[*Subgraph]map[*ir.Block]NodeID

	// callReturn maps a call instruction to its CALL_RETURN companion
	// node — the continuation a callee's RETURN flows back into, kept
	// separate from the call's own node (which carries the call's
	// return *value*) so the two roles don't collide on one NodeID.
	callReturn map[*Subgraph]map[ir.Instruction]NodeID

	constraints []constraint

	// genq is the worklist of functions whose bodies still need
	// constraint generation worklist.
	genq []*Subgraph

	// pendingCallLinks holds CALL -> ENTRY / RETURN -> CALL_RETURN
	// wiring deferred because the callee's skeleton wasn't built yet
	// at the point its call site was visited (discovery order within
	// build()'s worklist doesn't match call-graph order); drained once
	// every reachable function has a skeleton, see build().
	pendingCallLinks []pendingCallLink

	flavor solverFlavor
	fiMem  map[NodeID]*MemoryObject // flow-insensitive flavor's memory objects

	warnings []string
}

// Result is everything downstream stages (rwgraph, dda) need from a
// completed pointer analysis.
type Result struct {
	Analysis *Analysis
}

// NewAnalysis builds the pointer graph for module under opts and runs
// the fixpoint solver to completion. It is the single public entry
// point of this package, analogous to a classical Andersen-style Analyze entry point.
func NewAnalysis(module *ir.Module, opts config.PTAOptions) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("pointer: invalid options: %w", err)
	}

	a := &Analysis{
		config:    opts,
		module:    module,
		log:       dglog.For("pointer"),
		subgraphs: make(map[*ir.Func]*Subgraph),
		globalVal: make(map[value.Value]NodeID),
		localVal:  make(map[*Subgraph]map[value.Value]NodeID),
		instNode:   make(map[*Subgraph]map[ir.Instruction]NodeID),
		blockTerm:  make(map[*Subgraph]map[*ir.Block]NodeID),
		callReturn: make(map[*Subgraph]map[ir.Instruction]NodeID),
	}
	a.initSentinels()

	switch opts.AnalysisType {
	case config.PTAFlowInsensitive:
		a.flavor = &fiFlavor{a: a}
	case config.PTAFlowSensitive:
		a.flavor = &fsFlavor{a: a}
	case config.PTAFlowSensitiveInvalidating:
		a.flavor = &fsInvFlavor{fsFlavor: fsFlavor{a: a}}
	default:
		return nil, fmt.Errorf("pointer: unknown analysis type %v", opts.AnalysisType)
	}

	if err := a.build(); err != nil {
		return nil, err
	}
	a.solve()

	return &Result{Analysis: a}, nil
}

// addNode appends a fresh node of the given kind to the arena, owned
// by sg (nil for sentinels, which are created before any Subgraph
// exists).
func (a *Analysis) addNode(sg *Subgraph, kind Kind) *Node {
	id := NodeID(len(a.nodes))
	n := &Node{ID: id, Kind: kind, Owner: sg}
	a.nodes = append(a.nodes, n)
	if sg != nil {
		sg.NodeIDs = append(sg.NodeIDs, id)
	}
	return n
}

func (a *Analysis) node(id NodeID) *Node { return a.nodes[id] }

func (a *Analysis) localValueNode(sg *Subgraph, v value.Value) (NodeID, bool) {
	m, ok := a.localVal[sg]
	if !ok {
		return 0, false
	}
	id, ok := m[v]
	return id, ok
}

func (a *Analysis) setLocalValueNode(sg *Subgraph, v value.Value, id NodeID) {
	m, ok := a.localVal[sg]
	if !ok {
		m = make(map[value.Value]NodeID)
		a.localVal[sg] = m
	}
	m[v] = id
}

func (a *Analysis) setInstNode(sg *Subgraph, inst ir.Instruction, id NodeID) {
	m, ok := a.instNode[sg]
	if !ok {
		m = make(map[ir.Instruction]NodeID)
		a.instNode[sg] = m
	}
	m[inst] = id
}

func (a *Analysis) nodeForInstLookup(sg *Subgraph, inst ir.Instruction) NodeID {
	return a.instNode[sg][inst]
}

func (a *Analysis) setBlockTermNode(sg *Subgraph, blk *ir.Block, id NodeID) {
	m, ok := a.blockTerm[sg]
	if !ok {
		m = make(map[*ir.Block]NodeID)
		a.blockTerm[sg] = m
	}
	m[blk] = id
}

func (a *Analysis) blockTermNode(sg *Subgraph, blk *ir.Block) NodeID {
	return a.blockTerm[sg][blk]
}

func (a *Analysis) setCallReturnNode(sg *Subgraph, call ir.Instruction, id NodeID) {
	m, ok := a.callReturn[sg]
	if !ok {
		m = make(map[ir.Instruction]NodeID)
		a.callReturn[sg] = m
	}
	m[call] = id
}

func (a *Analysis) callReturnNode(sg *Subgraph, call ir.Instruction) NodeID {
	return a.callReturn[sg][call]
}

// valueNode resolves any operand value to its PGNode, checking the
// function-local map first and falling back to the global/constant
// table (and creating a fresh constant node on first reference).
func (a *Analysis) valueNode(sg *Subgraph, v value.Value) NodeID {
	if id, ok := a.localValueNode(sg, v); ok {
		return id
	}
	return a.globalValueNode(v)
}

// Nodes exposes the arena read-only, for dumpers and downstream
// packages (rwgraph walks this to recover ALLOC/GLOBAL/CALL sites).
func (a *Analysis) Nodes() []*Node { return a.nodes }

// Module exposes the analyzed module, for downstream packages that
// need to tell a declared-only function apart from one with a body
// (rwgraph's undefined-function fallback).
func (a *Analysis) Module() *ir.Module { return a.module }

// ValueNode resolves v to its PGNode within sg's scope. Exported for
// downstream packages (rwgraph's undefined-call wildcard accesses)
// that need an argument's points-to set without re-deriving it.
func (a *Analysis) ValueNode(sg *Subgraph, v value.Value) NodeID {
	return a.valueNode(sg, v)
}

// Subgraphs exposes the per-function views in build order.
func (a *Analysis) Subgraphs() []*Subgraph { return a.subgraphList }

// SubgraphFor returns the Subgraph for fn, building it lazily if this
// is the first reference (e.g. a CALL to a function not yet visited).
func (a *Analysis) SubgraphFor(fn *ir.Func) *Subgraph {
	if sg, ok := a.subgraphs[fn]; ok {
		return sg
	}
	sg := &Subgraph{Func: fn}
	a.subgraphs[fn] = sg
	a.subgraphList = append(a.subgraphList, sg)
	a.genq = append(a.genq, sg)
	return sg
}

// NodeForInst returns the PGNode generated for inst within fn's
// Subgraph, if fn has been analyzed and inst translates to a node
// (every instruction does, including void ones).
func (a *Analysis) NodeForInst(fn *ir.Func, inst ir.Instruction) (NodeID, bool) {
	sg, ok := a.subgraphs[fn]
	if !ok {
		return 0, false
	}
	m, ok := a.instNode[sg]
	if !ok {
		return 0, false
	}
	id, ok := m[inst]
	return id, ok
}

// NodeForTerm returns the PGNode generated for blk's terminator within
// fn's Subgraph, if fn has been analyzed.
func (a *Analysis) NodeForTerm(fn *ir.Func, blk *ir.Block) (NodeID, bool) {
	sg, ok := a.subgraphs[fn]
	if !ok {
		return 0, false
	}
	m, ok := a.blockTerm[sg]
	if !ok {
		return 0, false
	}
	id, ok := m[blk]
	return id, ok
}

func (a *Analysis) warnf(format string, args ...interface{}) {
	a.warnings = append(a.warnings, fmt.Sprintf(format, args...))
}

// Warnings returns the accumulated non-fatal diagnostics (calls
// through unmodeled function pointers, etc.).
func (a *Analysis) Warnings() []string { return a.warnings }

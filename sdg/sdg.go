// Package sdg assembles the System Dependence Graph: one SDGNode per
// pointer-graph node that survives into the final graph, carrying its
// data-dependence edges (from dda), control-dependence edges (from
// cda) and call-graph edges, grouped into SDGBasicBlocks that mirror
// the original LLVM basic blocks. It is the structure the slicer's
// mark phase does a reachability search over.
package sdg

import (
	"github.com/llir/llvm/ir"

	"github.com/mchalupa/dgo/cda"
	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/dda"
	"github.com/mchalupa/dgo/irfrontend"
	"github.com/mchalupa/dgo/offset"
	"github.com/mchalupa/dgo/pointer"
	"github.com/mchalupa/dgo/rwgraph"
	"github.com/mchalupa/dgo/threads"
)

// EdgeKind tags why one SDGNode depends on another.
type EdgeKind uint8

const (
	EdgeData EdgeKind = iota
	EdgeControl
	EdgeCallParamIn  // actual argument -> formal parameter
	EdgeCallParamOut // formal parameter/return -> call-site result
	EdgeCallGraph    // call PGNode -> callee ENTRY
	EdgeInterference // racing load/store across MHP regions
	EdgeForkJoin     // pthread_join -> a joined thread's RETURN
	EdgeLockUnlock   // critical-section lock <-> unlock, added symmetrically
)

// Edge is one dependence edge in the SDG.
type Edge struct {
	From, To pointer.NodeID
	Kind     EdgeKind
}

// SDGBasicBlock groups the SDGNodes that came from one LLVM basic
// block, preserved so the slicer can remove a whole block at once
// when every instruction in it is unneeded.
type SDGBasicBlock struct {
	Block *ir.Block
	Nodes []pointer.NodeID
}

// SDGNode is one node of the assembled graph: a PGNode plus its
// resolved dependence edges (both directions, so the slicer's mark
// phase can walk backward from a criterion and forward to find
// everything a removed definition must carry along, e.g. in forward
// slicing).
type SDGNode struct {
	PG       pointer.NodeID
	In, Out  []Edge
	Preserve bool // debug intrinsics and the like: never remove even if unreached
}

// Graph is the full per-function assembly, one per Subgraph analyzed.
type Graph struct {
	Func   *ir.Func
	Nodes  map[pointer.NodeID]*SDGNode
	Blocks []*SDGBasicBlock

	// globals is the process-wide GLOBAL SDGNode table, shared by every
	// Graph in one Assemble call: a global variable is one PGNode in
	// the pointer graph's arena already (see globalValueNode), and the
	// SDG mirrors that by giving it exactly one SDGNode too, reachable
	// identically from every function's Graph.Nodes map, rather than a
	// fresh disconnected copy per function that happens to share a PG id.
	globals map[pointer.NodeID]*SDGNode
	a       *pointer.Analysis
}

func (g *Graph) node(id pointer.NodeID) *SDGNode {
	if g.a != nil && g.a.Nodes()[id].Kind == pointer.KindGlobal {
		if n, ok := g.globals[id]; ok {
			g.Nodes[id] = n
			return n
		}
		n := &SDGNode{PG: id}
		g.globals[id] = n
		g.Nodes[id] = n
		return n
	}
	n, ok := g.Nodes[id]
	if !ok {
		n = &SDGNode{PG: id}
		g.Nodes[id] = n
	}
	return n
}

func (g *Graph) addEdge(from, to pointer.NodeID, kind EdgeKind) {
	g.node(from).Out = append(g.node(from).Out, Edge{From: from, To: to, Kind: kind})
	g.node(to).In = append(g.node(to).In, Edge{From: from, To: to, Kind: kind})
}

// Assemble builds one Graph per function reachable from result,
// wiring data edges from dd, control edges from a fresh cda.Build per
// function, call-graph edges directly off the pointer graph's
// CALL/CALL_FUNCPTR nodes, and — when mhp is non-nil — the threading
// extensions: interference edges between racing loads/stores in
// distinct MHP regions, fork/join edges from a pthread_join back to
// the RETURNs it may join, and symmetric lock/unlock edges between
// critical-section boundaries. rw is required to compute interference
// (it is the only place concrete load/store memory accesses live);
// passing a nil mhp skips all three threading extensions, matching a
// module with no pthread usage at all.
func Assemble(result *pointer.Result, rw *rwgraph.Graph, dd dda.DataDependence, cdOpts config.CDOptions, mhp threads.MHP) map[*ir.Func]*Graph {
	a := result.Analysis
	out := make(map[*ir.Func]*Graph)
	noreturnFuncs := cda.ComputeNoReturnFuncs(a.Module())
	blockOf := make(map[pointer.NodeID]*ir.Block)
	globals := make(map[pointer.NodeID]*SDGNode)

	for _, sg := range a.Subgraphs() {
		if sg.Func == nil || irfrontend.IsDeclarationOnly(sg.Func) {
			continue
		}
		g := &Graph{Func: sg.Func, Nodes: make(map[pointer.NodeID]*SDGNode), globals: globals, a: a}
		out[sg.Func] = g

		cdEngine := cda.Build(sg.Func, cdOpts, noreturnFuncs)
		sdgBlockOf := make(map[*ir.Block]*SDGBasicBlock)

		for _, id := range sg.NodeIDs {
			n := a.Nodes()[id]
			g.node(id)
			if irfrontend.IsDebugIntrinsic(calleeNameOf(n)) {
				g.node(id).Preserve = true
			}
		}

		assignBlocks(a, sg, sdgBlockOf, g, blockOf)

		for _, id := range sg.NodeIDs {
			for _, def := range dd.Definitions(id) {
				g.addEdge(def, id, EdgeData)
			}
		}

		for blk, sgb := range sdgBlockOf {
			deps := cdEngine.DependsOn(blk)
			for _, dep := range deps {
				depBlk := sdgBlockOf[dep]
				if depBlk == nil || len(depBlk.Nodes) == 0 {
					continue
				}
				branch := depBlk.Nodes[len(depBlk.Nodes)-1] // the block's terminator node
				for _, id := range sgb.Nodes {
					g.addEdge(branch, id, EdgeControl)
				}
			}
		}

		wireCallEdges(a, sg, g)
		wireForkJoin(a, sg, g)
	}

	if rw != nil {
		wireGlobalExposure(a, rw, out)
	}

	if mhp != nil {
		wireLockUnlock(a, out)
		if rw != nil {
			wireInterference(a, rw, mhp, blockOf, out)
		}
	}
	return out
}

func calleeNameOf(n *pointer.Node) string {
	call, ok := n.UserData.(*ir.InstCall)
	if !ok {
		return ""
	}
	return irfrontend.CalleeName(call.Callee)
}

func assignBlocks(a *pointer.Analysis, sg *pointer.Subgraph, sdgBlockOf map[*ir.Block]*SDGBasicBlock, g *Graph, blockOf map[pointer.NodeID]*ir.Block) {
	for _, blk := range sg.Func.Blocks {
		sb := &SDGBasicBlock{Block: blk}
		sdgBlockOf[blk] = sb
		g.Blocks = append(g.Blocks, sb)
	}
	// Every node was created in block order during translation, so
	// NodeIDs naturally split into contiguous per-block runs; rather
	// than depend on that ordering invariant holding forever, look the
	// owning block up from each node's IR back-pointer instead.
	instBlock := make(map[ir.Instruction]*ir.Block)
	for _, blk := range sg.Func.Blocks {
		for _, inst := range blk.Insts {
			instBlock[inst] = blk
		}
	}
	for _, id := range sg.NodeIDs {
		n := a.Nodes()[id]
		var blk *ir.Block
		if inst, ok := n.UserData.(ir.Instruction); ok {
			blk = instBlock[inst]
		}
		if blk == nil {
			for _, b := range sg.Func.Blocks {
				if b.Term == n.UserData {
					blk = b
					break
				}
			}
		}
		if blk == nil {
			continue
		}
		sdgBlockOf[blk].Nodes = append(sdgBlockOf[blk].Nodes, id)
		blockOf[id] = blk
	}
}

func wireCallEdges(a *pointer.Analysis, sg *pointer.Subgraph, g *Graph) {
	for _, id := range sg.NodeIDs {
		n := a.Nodes()[id]
		if n.Kind != pointer.KindCall && n.Kind != pointer.KindCallFuncPtr {
			continue
		}
		for _, callee := range resolveCallees(a, n) {
			if callee.Entry != 0 {
				g.addEdge(id, callee.Entry, EdgeCallGraph)
			}
		}
	}
}

// resolveCallees returns every Subgraph a CALL or CALL_FUNCPTR node may
// invoke. Neither call kind caches its resolved target on the node
// itself (build_constraints.go wires call edges into the points-to
// solver's constraint graph instead), so this re-derives it the same
// way genCall and callFuncPtrConstraint.apply do: the statically named
// target for a direct call, or every call-compatible FUNCTION candidate
// in the callee operand's points-to set for an indirect one.
func resolveCallees(a *pointer.Analysis, n *pointer.Node) []*pointer.Subgraph {
	call, ok := n.UserData.(*ir.InstCall)
	if !ok || n.Owner == nil {
		return nil
	}
	if n.Kind == pointer.KindCall {
		name := irfrontend.CalleeName(call.Callee)
		if fn := irfrontend.FuncByName(a.Module(), name); fn != nil {
			return []*pointer.Subgraph{a.SubgraphFor(fn)}
		}
		return nil
	}
	var out []*pointer.Subgraph
	calleeOperand := a.Nodes()[a.ValueNode(n.Owner, call.Callee)]
	for _, p := range calleeOperand.PointsTo.Pointers() {
		target := a.Nodes()[p.Target]
		if target.Kind != pointer.KindFunction {
			continue
		}
		fn, ok := target.UserData.(*ir.Func)
		if !ok || fn == nil {
			continue
		}
		out = append(out, a.SubgraphFor(fn))
	}
	return out
}

// forkTargets resolves a FORK node's start-routine operand (Operands[2]
// of a pthread_create call, see build_constraints.go's genCall) to the
// subgraphs it may start: either a direct FUNCTION node the operand
// resolves to, or every FUNCTION candidate in its points-to set when
// the start routine was passed indirectly.
func forkTargets(a *pointer.Analysis, fork *pointer.Node) []*pointer.Subgraph {
	if len(fork.Operands) < 3 {
		return nil
	}
	routine := a.Nodes()[fork.Operands[2]]
	var out []*pointer.Subgraph
	resolve := func(n *pointer.Node) {
		if n.Kind != pointer.KindFunction {
			return
		}
		fn, ok := n.UserData.(*ir.Func)
		if !ok || fn == nil {
			return
		}
		out = append(out, a.SubgraphFor(fn))
	}
	resolve(routine)
	for _, p := range routine.PointsTo.Pointers() {
		resolve(a.Nodes()[p.Target])
	}
	return out
}

// wireForkJoin adds EdgeForkJoin from every JOIN node in sg to the
// RETURN node of each function its paired FORK may have started,
// conservatively pairing every JOIN in the function with every FORK
// in it (the frontend does not track which join.thread value.local
// came from which specific pthread_create, so this over-approximates
// "may join" rather than risk dropping a real join dependency).
func wireForkJoin(a *pointer.Analysis, sg *pointer.Subgraph, g *Graph) {
	var forks []*pointer.Node
	var joins []pointer.NodeID
	for _, id := range sg.NodeIDs {
		n := a.Nodes()[id]
		switch n.Kind {
		case pointer.KindFork:
			forks = append(forks, n)
		case pointer.KindJoin:
			joins = append(joins, id)
		}
	}
	if len(forks) == 0 || len(joins) == 0 {
		return
	}
	for _, fork := range forks {
		for _, target := range forkTargets(a, fork) {
			for _, id := range target.NodeIDs {
				if a.Nodes()[id].Kind == pointer.KindReturn {
					for _, join := range joins {
						g.addEdge(join, id, EdgeForkJoin)
					}
				}
			}
		}
	}
}

// wireLockUnlock pairs pthread_mutex_lock/pthread_mutex_unlock call
// sites module-wide and links each pair symmetrically: a later slice
// that keeps one side of a critical section keeps the other, since
// removing only the lock or only the unlock would unbalance it. Pairing
// is conservative (every lock call site paired with every unlock call
// site anywhere in the module), matching the absence of any per-mutex
// points-to correlation in the frontend's call modeling.
func wireLockUnlock(a *pointer.Analysis, graphs map[*ir.Func]*Graph) {
	type site struct {
		fn *ir.Func
		id pointer.NodeID
	}
	var locks, unlocks []site
	for fn, g := range graphs {
		for id := range g.Nodes {
			n := a.Nodes()[id]
			if n.Kind != pointer.KindCall {
				continue
			}
			switch calleeNameOf(n) {
			case irfrontend.FnPthreadMutexLock:
				locks = append(locks, site{fn, id})
			case irfrontend.FnPthreadMutexUnlock:
				unlocks = append(unlocks, site{fn, id})
			}
		}
	}
	for _, l := range locks {
		for _, u := range unlocks {
			graphs[l.fn].addEdge(l.id, u.id, EdgeLockUnlock)
			graphs[u.fn].addEdge(u.id, l.id, EdgeLockUnlock)
		}
	}
}

// wireGlobalExposure computes, for every function, the set of shared
// globals it or any function reachable from it (directly or through
// further calls) accesses, then re-exposes that set as actual-global
// edges at each of the function's own call sites: a call that (through
// however many levels of callees) may touch global G gets an
// EdgeCallParamIn from G into the CALL node (the call may observe G's
// current value) and an EdgeCallParamOut from the CALL node back to G
// (the call may have written it), the same "parameter" treatment
// formal/actual arguments already get, so a slice can tell a call
// touches G without having to pull in the whole callee body.
func wireGlobalExposure(a *pointer.Analysis, rw *rwgraph.Graph, graphs map[*ir.Func]*Graph) {
	direct := make(map[*ir.Func]map[pointer.NodeID]bool)
	touch := func(fn *ir.Func, site pointer.NodeID) {
		if a.Nodes()[site].Kind != pointer.KindGlobal {
			return
		}
		s, ok := direct[fn]
		if !ok {
			s = make(map[pointer.NodeID]bool)
			direct[fn] = s
		}
		s[site] = true
	}
	for _, rn := range rw.Nodes {
		owner := a.Nodes()[rn.PG].Owner
		if owner == nil {
			continue
		}
		for _, acc := range rn.Reads {
			touch(owner.Func, acc.Site)
		}
		for _, acc := range rn.Writes {
			touch(owner.Func, acc.Site)
		}
	}

	callees := make(map[*ir.Func]map[*ir.Func]bool)
	for fn, g := range graphs {
		for id := range g.Nodes {
			n := a.Nodes()[id]
			if n.Kind != pointer.KindCall && n.Kind != pointer.KindCallFuncPtr {
				continue
			}
			for _, callee := range resolveCallees(a, n) {
				if callee.Func == nil {
					continue
				}
				s, ok := callees[fn]
				if !ok {
					s = make(map[*ir.Func]bool)
					callees[fn] = s
				}
				s[callee.Func] = true
			}
		}
	}

	exposed := make(map[*ir.Func]map[pointer.NodeID]bool)
	for fn := range graphs {
		s := make(map[pointer.NodeID]bool)
		for site := range direct[fn] {
			s[site] = true
		}
		exposed[fn] = s
	}
	for changed := true; changed; {
		changed = false
		for fn := range graphs {
			for callee := range callees[fn] {
				for site := range exposed[callee] {
					if !exposed[fn][site] {
						exposed[fn][site] = true
						changed = true
					}
				}
			}
		}
	}

	for _, g := range graphs {
		for id := range g.Nodes {
			n := a.Nodes()[id]
			if n.Kind != pointer.KindCall && n.Kind != pointer.KindCallFuncPtr {
				continue
			}
			for _, callee := range resolveCallees(a, n) {
				if callee.Func == nil {
					continue
				}
				for site := range exposed[callee.Func] {
					g.addEdge(site, id, EdgeCallParamIn)
					g.addEdge(id, site, EdgeCallParamOut)
				}
			}
		}
	}
}

// wireInterference adds EdgeInterference between every pair of memory
// accesses (at least one a write) whose sites overlap (per
// offset.Interval.Overlaps) and whose owning blocks mhp reports may
// run in parallel. Pairs within the same RWNode are skipped (that is
// ordinary intraprocedural flow dda already covers, not a race).
func wireInterference(a *pointer.Analysis, rw *rwgraph.Graph, mhp threads.MHP, blockOf map[pointer.NodeID]*ir.Block, graphs map[*ir.Func]*Graph) {
	type access struct {
		node  pointer.NodeID
		fn    *ir.Func
		site  pointer.NodeID
		write bool
		iv    offset.Interval
	}
	var accesses []access
	for _, rn := range rw.Nodes {
		blk := blockOf[rn.PG]
		if blk == nil {
			continue
		}
		owner := a.Nodes()[rn.PG].Owner
		if owner == nil {
			continue
		}
		for _, acc := range rn.Writes {
			accesses = append(accesses, access{rn.PG, owner.Func, acc.Site, true, acc.Interval})
		}
		for _, acc := range rn.Reads {
			accesses = append(accesses, access{rn.PG, owner.Func, acc.Site, false, acc.Interval})
		}
	}
	for i, x := range accesses {
		for _, y := range accesses[i+1:] {
			if x.node == y.node || x.site != y.site {
				continue
			}
			if !x.write && !y.write {
				continue
			}
			if !x.iv.Overlaps(y.iv) {
				continue
			}
			bx, by := blockOf[x.node], blockOf[y.node]
			if !mhp.MayHappenInParallel(bx, by) {
				continue
			}
			graphs[x.fn].addEdge(x.node, y.node, EdgeInterference)
			graphs[y.fn].addEdge(y.node, x.node, EdgeInterference)
		}
	}
}

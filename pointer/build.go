package pointer

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"

	"github.com/mchalupa/dgo/irfrontend"
	"github.com/mchalupa/dgo/offset"
)

// build seeds the global/function nodes, then drains a.genq until
// every reachable function has had its body translated into PGNodes
// and constraints, mirroring a classical constraint-generation worklist driver
// retargeted from Go SSA to LLVM IR.
func (a *Analysis) build() error {
	entryFn := irfrontend.FuncByName(a.module, a.config.EntryFunction)
	if entryFn == nil {
		return fmt.Errorf("pointer: entry function %q not found", a.config.EntryFunction)
	}
	a.SubgraphFor(entryFn)

	for len(a.genq) > 0 {
		sg := a.genq[0]
		a.genq = a.genq[1:]
		if sg.Func == nil || irfrontend.IsDeclarationOnly(sg.Func) {
			continue // external function: modeled by name at the call site, not by a body
		}
		if len(sg.NodeIDs) > 0 {
			continue // already generated (queued twice via two call sites)
		}
		a.genFunc(sg)
	}

	// A call site visited before its callee's turn in the worklist
	// above couldn't find the callee's ENTRY/RETURN nodes yet (see
	// linkCallReturn); every reachable function now has a skeleton, so
	// drain whatever was deferred: the argument-to-formal copies wireCall
	// had to skip, then the return wiring.
	pending := a.pendingCallLinks
	a.pendingCallLinks = nil
	for _, link := range pending {
		if call, ok := a.node(link.dst).UserData.(*ir.InstCall); ok {
			caller := a.node(link.dst).Owner
			for i, arg := range call.Args {
				if i >= len(link.callee.Func.Params) {
					break
				}
				if formal, ok := a.localValueNode(link.callee, link.callee.Func.Params[i]); ok {
					a.constraints = append(a.constraints, &copyConstraint{dst: formal, src: a.valueNode(caller, arg)})
				}
			}
		}
		a.wireCallReturn(link.dst, link.callee)
	}
	return nil
}

// pendingCallLink is a CALL site whose interprocedural wiring couldn't
// be completed yet because the callee's skeleton wasn't built.
type pendingCallLink struct {
	dst    NodeID
	callee *Subgraph
}

// globalValueNode returns (creating if necessary) the single node
// denoting a package-level value: a global variable, a function's
// address, or a constant expression. Memoized the way a constant-expression cache
// objectNode/valueNode helpers are, so two references to the same
// global collapse onto one PGNode.
func (a *Analysis) globalValueNode(v value.Value) NodeID {
	if id, ok := a.globalVal[v]; ok {
		return id
	}
	var n *Node
	switch c := v.(type) {
	case *ir.Global:
		n = a.addNode(nil, KindGlobal)
		n.UserData = c
		n.IsHeap = false
		n.IsZeroInit = c.Init == nil || isZeroInitializer(c.Init)
		a.constraints = append(a.constraints, &addrConstraint{dst: n.ID, site: n.ID})
	case *ir.Func:
		n = a.addNode(nil, KindFunction)
		n.UserData = c
		n.Callee = a.SubgraphFor(c)
		a.constraints = append(a.constraints, &addrConstraint{dst: n.ID, site: n.ID})
	case *constant.Null:
		a.globalVal[v] = a.NullPointer()
		return a.NullPointer()
	case *constant.ExprGetElementPtr:
		base := a.globalValueNode(c.Src)
		n = a.addNode(nil, KindGEP)
		n.UserData = c
		n.Operands = []NodeID{base}
		n.GEPOffset = offset.Unknown
		a.constraints = append(a.constraints, &offsetCopyConstraint{dst: n.ID, src: base, delta: n.GEPOffset})
	case *constant.ExprBitCast:
		base := a.globalValueNode(c.From)
		n = a.addNode(nil, KindCast)
		n.UserData = c
		n.Operands = []NodeID{base}
		a.constraints = append(a.constraints, &copyConstraint{dst: n.ID, src: base})
	default:
		n = a.addNode(nil, KindConstant)
		n.UserData = v
	}
	a.globalVal[v] = n.ID
	return n.ID
}

func isZeroInitializer(c constant.Constant) bool {
	if _, ok := c.(*constant.ZeroInitializer); ok {
		return true
	}
	return false
}

// genFunc lays out one PGNode per instruction and one per terminator
// (so the pointer graph's CFG tracks the IR's CFG exactly, which the
// flow-sensitive flavors walk), wires Succs between them, then makes
// a second pass to emit each instruction's constraints.
func (a *Analysis) genFunc(sg *Subgraph) {
	fn := sg.Func
	entry := a.addNode(sg, KindEntry)
	sg.Entry = entry.ID

	formals := make([]NodeID, len(fn.Params))
	for i, p := range fn.Params {
		pn := a.addNode(sg, KindNoop)
		pn.UserData = p
		a.setLocalValueNode(sg, p, pn.ID)
		formals[i] = pn.ID
	}
	entry.Operands = formals

	type blockLayout struct {
		first NodeID
		last  NodeID
		nodes []NodeID
	}
	layouts := make(map[*ir.Block]*blockLayout, len(fn.Blocks))

	var prevInBlock NodeID
	for _, blk := range fn.Blocks {
		bl := &blockLayout{}
		prevInBlock = 0
		link := func(id NodeID) {
			if prevInBlock != 0 {
				a.node(prevInBlock).Succs = append(a.node(prevInBlock).Succs, id)
			}
			if bl.first == 0 {
				bl.first = id
			}
			bl.nodes = append(bl.nodes, id)
			prevInBlock = id
		}

		for _, inst := range blk.Insts {
			n := a.nodeForInst(sg, inst)
			if v, ok := inst.(value.Value); ok {
				a.setLocalValueNode(sg, v, n.ID)
			}
			a.setInstNode(sg, inst, n.ID)
			link(n.ID)

			if n.Kind == KindCall || n.Kind == KindCallFuncPtr {
				// A call to a function with a body gets a CALL_RETURN
				// companion node right after it: the continuation a
				// callee's RETURN flows back into, distinct from the
				// call node itself (which only ever carries the call's
				// return *value*).
				cr := a.addNode(sg, KindCallReturn)
				cr.UserData = inst
				a.setCallReturnNode(sg, inst, cr.ID)
				link(cr.ID)
			}
		}

		var termNode *Node
		switch t := blk.Term.(type) {
		case *ir.TermRet:
			termNode = a.addNode(sg, KindReturn)
			termNode.UserData = t
		default:
			termNode = a.addNode(sg, KindNoop)
			termNode.UserData = t
		}
		link(termNode.ID)
		a.setBlockTermNode(sg, blk, termNode.ID)
		bl.last = termNode.ID
		layouts[blk] = bl
	}

	if len(fn.Blocks) > 0 {
		entry.Succs = append(entry.Succs, layouts[fn.Blocks[0]].first)
	}
	for _, blk := range fn.Blocks {
		bl := layouts[blk]
		for _, succBlk := range termSuccessorBlocks(blk.Term) {
			if sl, ok := layouts[succBlk]; ok {
				a.node(bl.last).Succs = append(a.node(bl.last).Succs, sl.first)
			}
		}
	}

	for _, blk := range fn.Blocks {
		for _, inst := range blk.Insts {
			a.genInst(sg, inst)
		}
		a.genTerm(sg, blk)
	}
}

// nodeForInst allocates (without yet wiring constraints for) the
// PGNode standing in for one LLVM instruction.
func (a *Analysis) nodeForInst(sg *Subgraph, inst ir.Instruction) *Node {
	var n *Node
	switch v := inst.(type) {
	case *ir.InstAlloca:
		n = a.addNode(sg, KindAlloc)
		n.AllocSize = offset.New(uint64(irfrontend.SizeOf(v.ElemType)))
	case *ir.InstLoad:
		n = a.addNode(sg, KindLoad)
	case *ir.InstStore:
		n = a.addNode(sg, KindStore)
	case *ir.InstGetElementPtr:
		n = a.addNode(sg, KindGEP)
	case *ir.InstPhi:
		n = a.addNode(sg, KindPhi)
	case *ir.InstBitCast, *ir.InstPtrToInt, *ir.InstIntToPtr, *ir.InstTrunc,
		*ir.InstZExt, *ir.InstSExt, *ir.InstAddrSpaceCast:
		n = a.addNode(sg, KindCast)
	case *ir.InstCall:
		n = a.classifyCall(sg, v)
	default:
		n = a.addNode(sg, KindNoop)
	}
	n.UserData = inst
	return n
}

// classifyCall picks the PGNode kind a call instruction becomes,
// following the dynamic-allocation/free/memcpy/thread name table the
// Validate'd config carries.
func (a *Analysis) classifyCall(sg *Subgraph, call *ir.InstCall) *Node {
	name := irfrontend.CalleeName(call.Callee)
	switch {
	case name == irfrontend.FnFree:
		return a.addNode(sg, KindFree)
	case irfrontend.IsMemcpyLike(name) || irfrontend.IsMemset(name):
		return a.addNode(sg, KindMemcpy)
	case name == irfrontend.FnPthreadCreate:
		return a.addNode(sg, KindFork)
	case name == irfrontend.FnPthreadJoin:
		return a.addNode(sg, KindJoin)
	case irfrontend.IsDebugIntrinsic(name):
		return a.addNode(sg, KindNoop)
	}
	if _, ok := a.config.AllocationFunctions[name]; ok {
		return a.addNode(sg, KindDynAlloc)
	}
	if name != "" {
		return a.addNode(sg, KindCall)
	}
	return a.addNode(sg, KindCallFuncPtr)
}

// termSuccessorBlocks extracts the successor blocks of a terminator,
// covering every shape the control-dependence engine needs to walk.
func termSuccessorBlocks(term ir.Terminator) []*ir.Block {
	switch t := term.(type) {
	case *ir.TermBr:
		return []*ir.Block{t.Target}
	case *ir.TermCondBr:
		return []*ir.Block{t.TargetTrue, t.TargetFalse}
	case *ir.TermSwitch:
		succs := make([]*ir.Block, 0, len(t.Cases)+1)
		succs = append(succs, t.TargetDefault)
		for _, c := range t.Cases {
			succs = append(succs, c.Target)
		}
		return succs
	case *ir.TermIndirectBr:
		return t.ValidTargets
	default:
		return nil
	}
}

package pointer

import (
	"github.com/llir/llvm/ir"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/irfrontend"
	"github.com/mchalupa/dgo/offset"
)

// genInst emits the constraints for one instruction's already-
// allocated PGNode. Instructions that don't touch pointers (plain
// arithmetic, comparisons, ...) got a NOOP node in the first pass and
// need nothing more here.
func (a *Analysis) genInst(sg *Subgraph, inst ir.Instruction) {
	dst := a.nodeForInstLookup(sg, inst)

	switch v := inst.(type) {
	case *ir.InstAlloca:
		a.constraints = append(a.constraints, &addrConstraint{dst: dst, site: dst})

	case *ir.InstLoad:
		addr := a.valueNode(sg, v.Src)
		a.node(dst).Operands = []NodeID{addr}
		a.constraints = append(a.constraints, &loadConstraint{at: dst, dst: dst, addr: addr})

	case *ir.InstStore:
		addr := a.valueNode(sg, v.Dst)
		src := a.valueNode(sg, v.Src)
		a.node(dst).Operands = []NodeID{addr}
		a.constraints = append(a.constraints, &storeConstraint{at: dst, addr: addr, src: src})

	case *ir.InstGetElementPtr:
		base := a.valueNode(sg, v.Src)
		delta := constGEPOffset(v)
		a.constraints = append(a.constraints, &offsetCopyConstraint{dst: dst, src: base, delta: delta})
		a.node(dst).GEPOffset = delta

	case *ir.InstPhi:
		for _, inc := range v.Incs {
			src := a.valueNode(sg, inc.X)
			a.constraints = append(a.constraints, &copyConstraint{dst: dst, src: src})
		}

	case *ir.InstBitCast:
		src := a.valueNode(sg, v.From)
		a.constraints = append(a.constraints, &copyConstraint{dst: dst, src: src})

	case *ir.InstPtrToInt:
		src := a.valueNode(sg, v.From)
		a.constraints = append(a.constraints, &copyConstraint{dst: dst, src: src})

	case *ir.InstIntToPtr:
		// An int-to-pointer cast may denote any address; conservatively
		// treat its result as pointing to UNKNOWN_MEMORY rather than
		// inventing a provenance.
		a.node(dst).PointsTo.SetHasUnknown()

	case *ir.InstCall:
		a.genCall(sg, dst, v)
	}
}

// genTerm emits the one constraint a terminator can carry: a RET
// copies its operand's points-to set forward so call sites see it.
func (a *Analysis) genTerm(sg *Subgraph, blk *ir.Block) {
	ret, ok := blk.Term.(*ir.TermRet)
	if !ok || ret.X == nil {
		return
	}
	dst := a.blockTermNode(sg, blk)
	src := a.valueNode(sg, ret.X)
	a.constraints = append(a.constraints, &copyConstraint{dst: dst, src: src})
}

// genCall wires a call site's arguments into the callee's formal
// parameters and the callee's returns back into the call node, for
// every statically known target; CALL_FUNCPTR additionally consults
// the callee operand's points-to set, following only the call-
// compatible candidates and falling back to UNKNOWN_MEMORY with a
// one-time warning when none qualify.
func (a *Analysis) genCall(sg *Subgraph, dst NodeID, call *ir.InstCall) {
	name := irfrontend.CalleeName(call.Callee)

	switch {
	case name == irfrontend.FnFree:
		if len(call.Args) > 0 {
			a.node(dst).Operands = []NodeID{a.valueNode(sg, call.Args[0])}
		}
		return
	case irfrontend.IsMemcpyLike(name) || irfrontend.IsMemset(name):
		a.genMemcpy(sg, dst, call)
		return
	case name == irfrontend.FnPthreadCreate, name == irfrontend.FnPthreadJoin:
		for _, arg := range call.Args {
			a.node(dst).Operands = append(a.node(dst).Operands, a.valueNode(sg, arg))
		}
		return
	case irfrontend.IsDebugIntrinsic(name):
		return
	}

	if kind, isAlloc := a.config.AllocationFunctions[name]; isAlloc {
		a.node(dst).IsHeap = true
		a.constraints = append(a.constraints, &addrConstraint{dst: dst, site: dst})
		if kind == config.AllocRealloc {
			a.genRealloc(sg, dst, call)
		}
		return
	}

	if fn := irfrontend.FuncByName(a.module, name); fn != nil {
		a.wireCall(sg, dst, call, a.SubgraphFor(fn))
		return
	}

	// Indirect call: resolve dynamically once the callee operand's
	// points-to set is known; see genCallFuncPtr, re-invoked by the
	// solver each time that set grows (constraint, not one-shot).
	a.constraints = append(a.constraints, &callFuncPtrConstraint{
		at: dst, dst: dst, calleeOperand: a.valueNode(sg, call.Callee), call: call, caller: sg,
	})
}

// wireCall copies each actual argument into the callee's formal
// parameter slot, then links the call site's data and control flow
// into the callee's body: the callee's RETURNs copy back into dst
// (the call's own node, which carries the call's return value), and
// (CALL -> ENTRY, RETURN -> CALL_RETURN) CFG edges are added so
// reaching-definitions and every other fixpoint walking Node.Succs
// sees straight through the call instead of treating it as a no-op.
func (a *Analysis) wireCall(sg *Subgraph, dst NodeID, call *ir.InstCall, callee *Subgraph) {
	for i, arg := range call.Args {
		if i >= len(callee.Func.Params) {
			break // variadic tail: unmodeled, conservatively dropped
		}
		formal, ok := a.localValueNode(callee, callee.Func.Params[i])
		if !ok {
			continue // callee not generated yet; build() adds this copy when it drains pendingCallLinks
		}
		a.constraints = append(a.constraints, &copyConstraint{dst: formal, src: a.valueNode(sg, arg)})
	}
	a.linkCallReturn(dst, callee)
}

// linkCallReturn wires a call's RETURN-to-CALL_RETURN data/control
// flow once the callee's skeleton exists. If callee hasn't been
// translated yet (its turn in build()'s worklist hasn't come up), the
// link is deferred to build()'s post-worklist drain instead of being
// silently dropped.
func (a *Analysis) linkCallReturn(dst NodeID, callee *Subgraph) {
	if len(callee.Func.Blocks) == 0 {
		return // external/declaration-only: no body to link into
	}
	if callee.Entry == 0 {
		a.pendingCallLinks = append(a.pendingCallLinks, pendingCallLink{dst: dst, callee: callee})
		return
	}
	a.wireCallReturn(dst, callee)
}

func (a *Analysis) wireCallReturn(dst NodeID, callee *Subgraph) {
	call, _ := a.node(dst).UserData.(*ir.InstCall)
	cont := dst
	if call != nil {
		if cr := a.callReturnNode(a.node(dst).Owner, call); cr != 0 {
			cont = cr
		}
	}
	a.node(dst).Succs = append(a.node(dst).Succs, callee.Entry)
	for _, blk := range callee.Func.Blocks {
		if _, ok := blk.Term.(*ir.TermRet); ok {
			retNode := a.blockTermNode(callee, blk)
			if retNode == 0 {
				continue
			}
			a.constraints = append(a.constraints, &copyConstraint{dst: dst, src: retNode})
			a.node(retNode).Succs = append(a.node(retNode).Succs, cont)
		}
	}
}

// genRealloc models realloc(ptr, size) as a DYN_ALLOC that both
// defines its own (new) memory and uses the old memory ptr pointed
// to: the old contents carry over into the new block, the same
// carry-over-copy pattern genMemcpy uses for an ordinary memcpy, just
// with the new block's own node standing in for both the copy's
// destination address and the destination memory object.
func (a *Analysis) genRealloc(sg *Subgraph, dst NodeID, call *ir.InstCall) {
	if len(call.Args) == 0 {
		return
	}
	oldPtr := a.valueNode(sg, call.Args[0])
	n := a.node(dst)
	n.Operands = []NodeID{oldPtr}
	n.MemcpyLen = offset.Unknown
	tmp := a.addNode(sg, KindLoad)
	tmp.Operands = []NodeID{oldPtr}
	a.constraints = append(a.constraints,
		&loadConstraint{at: tmp.ID, dst: tmp.ID, addr: oldPtr},
		&storeConstraint{at: dst, addr: dst, src: tmp.ID},
	)
}

// genMemcpy treats memcpy(dst, src, n) as a blanket copy of src's
// pointee contents into dst's pointee at unknown offset, which is
// sound (if imprecise) regardless of n's value.
func (a *Analysis) genMemcpy(sg *Subgraph, dst NodeID, call *ir.InstCall) {
	if len(call.Args) < 2 {
		return
	}
	n := a.node(dst)
	n.Operands = []NodeID{a.valueNode(sg, call.Args[0]), a.valueNode(sg, call.Args[1])}
	if len(call.Args) >= 3 {
		if l, ok := irfrontend.ConstInt(call.Args[2]); ok {
			n.MemcpyLen = offset.New(l)
		} else {
			n.MemcpyLen = offset.Unknown
		}
	}
	dstAddr, srcAddr := n.Operands[0], n.Operands[1]
	tmp := a.addNode(sg, KindLoad)
	tmp.Operands = []NodeID{srcAddr}
	a.constraints = append(a.constraints,
		&loadConstraint{at: tmp.ID, dst: tmp.ID, addr: srcAddr},
		&storeConstraint{at: dst, addr: dstAddr, src: tmp.ID},
	)
}

// constGEPOffset statically folds a GEP's byte offset when every
// index is a constant integer, else reports Unknown.
func constGEPOffset(v *ir.InstGetElementPtr) offset.Offset {
	total := offset.Zero
	elemSize := irfrontend.SizeOf(v.ElemType)
	for _, idx := range v.Indices {
		n, ok := irfrontend.ConstInt(idx)
		if !ok {
			return offset.Unknown
		}
		total = total.Add(offset.New(n * uint64(elemSize)))
	}
	return total
}

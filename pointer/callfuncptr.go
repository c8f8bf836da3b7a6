package pointer

import "github.com/llir/llvm/ir"

// callFuncPtrConstraint resolves an indirect call each time its
// callee operand's points-to set grows: every FUNCTION node newly
// discovered there that is call-compatible gets wired up exactly
// once (argument copies in, return copy out), same as a direct call
// site would be. A points-to set containing UNKNOWN_MEMORY, or with
// no compatible candidate at all, degrades the call's result to
// UNKNOWN_MEMORY instead of silently dropping data flow.
type callFuncPtrConstraint struct {
	at, dst       NodeID
	calleeOperand NodeID
	call          *ir.InstCall
	caller        *Subgraph

	wired map[NodeID]bool
}

func (c *callFuncPtrConstraint) apply(a *Analysis) bool {
	pts := &a.node(c.calleeOperand).PointsTo
	changed := false

	if c.wired == nil {
		c.wired = make(map[NodeID]bool)
	}

	sawCompatible := false
	for _, p := range pts.Pointers() {
		target := a.node(p.Target)
		if target.Kind != KindFunction {
			continue
		}
		fn, ok := target.UserData.(*ir.Func)
		if !ok || fn == nil {
			continue
		}
		if !callCompatible(c.call, fn) {
			continue
		}
		sawCompatible = true
		if c.wired[p.Target] {
			continue
		}
		c.wired[p.Target] = true
		a.wireCall(c.caller, c.dst, c.call, a.SubgraphFor(fn))
		changed = true
	}

	if pts.HasUnknown() || (!pts.IsEmpty() && !sawCompatible) {
		warnIncompatibleCall(c.at)
		if a.node(c.dst).PointsTo.SetHasUnknown() {
			changed = true
		}
	}

	return changed
}

func (c *callFuncPtrConstraint) String() string { return "call_funcptr" }

package pointer

import "github.com/mchalupa/dgo/offset"

// fiFlavor is the flow-insensitive solver: one memory object per
// allocation site, shared by the whole program regardless of control
// flow. A STORE only ever grows its target's slots (Andersen-style
// monotone accumulation); a LOAD sees every store that has ever fired
// anywhere in the program, which is the standard FI over-
// approximation.
type fiFlavor struct{ a *Analysis }

func (f *fiFlavor) init(a *Analysis) {}

func (f *fiFlavor) propagate(a *Analysis) bool { return false }

func (f *fiFlavor) applyLoad(a *Analysis, c *loadConstraint) bool {
	addr := &a.node(c.addr).PointsTo
	dst := a.node(c.dst)
	changed := false
	if addr.HasUnknown() {
		loaded := a.memObjFI(a.UnknownMemory()).Load(offset.Unknown)
		if dst.PointsTo.UnionWith(&loaded) {
			changed = true
		}
	}
	for _, p := range addr.Pointers() {
		loaded := a.memObjFI(p.Target).Load(p.Offset)
		if dst.PointsTo.UnionWith(&loaded) {
			changed = true
		}
	}
	return changed
}

func (f *fiFlavor) applyStore(a *Analysis, c *storeConstraint) bool {
	addr := &a.node(c.addr).PointsTo
	src := &a.node(c.src).PointsTo
	changed := false
	if addr.HasUnknown() {
		if a.memObjFI(a.UnknownMemory()).Store(offset.Unknown, src) {
			changed = true
		}
	}
	for _, p := range addr.Pointers() {
		if a.memObjFI(p.Target).Store(p.Offset, src) {
			changed = true
		}
	}
	return changed
}

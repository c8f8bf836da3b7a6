package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchalupa/dgo/offset"
)

// buildTiny wires: alloc and box each addr'd onto themselves; p = &alloc
// (a copy of alloc's points-to set); store p into box's memory object,
// then load it back through box into r. Exercises addr/copy/load/store end to end
// under the flow-insensitive flavor without needing a real IR module.
func buildTiny(t *testing.T) (*Analysis, NodeID, NodeID, NodeID, NodeID) {
	t.Helper()
	a := &Analysis{}
	a.initSentinels()
	a.flavor = &fiFlavor{a: a}

	alloc := a.addNode(nil, KindAlloc)
	box := a.addNode(nil, KindAlloc) // the memory cell we store into/load from
	p := a.addNode(nil, KindConstant)
	r := a.addNode(nil, KindConstant)

	a.constraints = []constraint{
		&addrConstraint{dst: alloc.ID, site: alloc.ID},
		&addrConstraint{dst: box.ID, site: box.ID},
		&copyConstraint{dst: p.ID, src: alloc.ID}, // p = &alloc (already addr'd onto alloc itself, reuse)
		&storeConstraint{at: box.ID, addr: box.ID, src: p.ID},
		&loadConstraint{at: r.ID, dst: r.ID, addr: box.ID},
	}
	return a, alloc.ID, box.ID, p.ID, r.ID
}

func TestFISolverPropagatesStoreThroughLoad(t *testing.T) {
	a, alloc, _, _, r := buildTiny(t)
	a.solve()

	rPts := a.node(r).PointsTo
	require.Equal(t, 1, rPts.Len())
	assert.Equal(t, alloc, rPts.Pointers()[0].Target)
}

func TestFISolverReachesFixpoint(t *testing.T) {
	a, _, _, _, _ := buildTiny(t)
	a.solve()
	// A second full solve over the already-converged state must not
	// find anything new to do.
	changed := a.iterateConstraints()
	assert.False(t, changed)
}

func TestOffsetCopyConstraintAddsDelta(t *testing.T) {
	a := &Analysis{}
	a.initSentinels()
	a.flavor = &fiFlavor{a: a}

	site := a.addNode(nil, KindAlloc)
	base := a.addNode(nil, KindConstant)
	gep := a.addNode(nil, KindGEP)

	a.constraints = []constraint{
		&addrConstraint{dst: site.ID, site: site.ID},
		&copyConstraint{dst: base.ID, src: site.ID},
		&offsetCopyConstraint{dst: gep.ID, src: base.ID, delta: offset.New(4)},
	}
	a.solve()

	pts := a.node(gep.ID).PointsTo.Pointers()
	require.Len(t, pts, 1)
	v, ok := pts[0].Offset.Value()
	require.True(t, ok)
	assert.Equal(t, uint64(4), v)
}

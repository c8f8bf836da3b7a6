package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchalupa/dgo/offset"
)

func TestPointsToSetMonotonicAcrossUnion(t *testing.T) {
	var s PointsToSet
	grew := s.Add(Pointer{Target: 5, Offset: offset.Zero})
	assert.True(t, grew)
	grew = s.Add(Pointer{Target: 5, Offset: offset.Zero})
	assert.False(t, grew, "re-adding the same pointer must not report growth")
	assert.Equal(t, 1, s.Len())
}

func TestMemoryObjectLoadSeesCatchAllSlot(t *testing.T) {
	mo := newMemoryObject(1)
	var unknownWrite PointsToSet
	unknownWrite.Add(Pointer{Target: 99, Offset: offset.Zero})
	mo.Store(offset.Unknown, &unknownWrite)

	got := mo.Load(offset.New(8))
	require.Equal(t, 1, got.Len())
	assert.Equal(t, NodeID(99), got.Pointers()[0].Target)
}

func TestMemoryMapMergeIsMonotonic(t *testing.T) {
	a := newMemoryMap()
	b := newMemoryMap()
	var pts PointsToSet
	pts.Add(Pointer{Target: 7, Offset: offset.Zero})
	b.objectFor(3).Store(offset.Zero, &pts)

	changed := a.MergeFrom(b)
	assert.True(t, changed)
	changed = a.MergeFrom(b)
	assert.False(t, changed, "merging the same map twice must be idempotent")
}

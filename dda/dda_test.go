package dda

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mchalupa/dgo/offset"
	"github.com/mchalupa/dgo/pointer"
)

func TestUnionDefsDedupsAndPreservesOrder(t *testing.T) {
	got := unionDefs([]pointer.NodeID{1, 2}, []pointer.NodeID{2, 3})
	assert.Equal(t, []pointer.NodeID{1, 2, 3}, got)
}

func TestKeyBucketsByIntervalStart(t *testing.T) {
	var site pointer.NodeID = 7
	a := key(site, offset.NewInterval(offset.New(4), offset.New(8)))
	b := key(site, offset.NewInterval(offset.New(4), offset.New(16)))
	assert.Equal(t, a, b, "two writes to the same site starting at the same offset share a bucket regardless of length")
}

func TestKeyDistinguishesSites(t *testing.T) {
	iv := offset.NewInterval(offset.New(4), offset.New(8))
	a := key(pointer.NodeID(1), iv)
	b := key(pointer.NodeID(2), iv)
	assert.NotEqual(t, a, b, "two different sites at the same offset must not collide into one bucket")
}

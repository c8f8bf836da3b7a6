package cda

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// A diamond: 0 -> {1,2} -> 3. 0 is the immediate dominator of 1, 2
// and 3 (neither arm dominates the join), and 0 dominates everything.
func TestDomTreeDiamond(t *testing.T) {
	succs := map[BlockID][]BlockID{
		0: {1, 2},
		1: {3},
		2: {3},
	}
	preds := map[BlockID][]BlockID{
		1: {0},
		2: {0},
		3: {1, 2},
	}
	tree := buildDomTree(0, succs, preds)
	assert.Equal(t, BlockID(0), tree.Idom[1])
	assert.Equal(t, BlockID(0), tree.Idom[2])
	assert.Equal(t, BlockID(0), tree.Idom[3])
	assert.True(t, tree.Dominates(0, 3))
	assert.False(t, tree.Dominates(1, 3))
}

func TestDomTreeChain(t *testing.T) {
	succs := map[BlockID][]BlockID{0: {1}, 1: {2}, 2: {3}}
	preds := map[BlockID][]BlockID{1: {0}, 2: {1}, 3: {2}}
	tree := buildDomTree(0, succs, preds)
	assert.True(t, tree.Dominates(0, 3))
	assert.True(t, tree.Dominates(1, 3))
	assert.False(t, tree.Dominates(2, 1))
}

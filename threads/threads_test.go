package threads

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
)

func TestConservativeMHPNoThreadsReturnsFalse(t *testing.T) {
	m := ir.NewModule()
	main := m.NewFunc("main", types.Void)
	blkA := main.NewBlock("a")
	blkB := main.NewBlock("b")
	blkA.NewRet(nil)
	blkB.NewRet(nil)

	mhp := NewConservativeMHP(m)
	assert.False(t, mhp.MayHappenInParallel(blkA, blkB))
}

func TestConservativeMHPFlagsCrossFunctionRaceOnceThreaded(t *testing.T) {
	m := ir.NewModule()
	create := m.NewFunc("pthread_create", types.I32)
	worker := m.NewFunc("t", types.I32)
	workerBlk := worker.NewBlock("")
	workerBlk.NewRet(nil)

	main := m.NewFunc("main", types.Void)
	mainBlk := main.NewBlock("")
	mainBlk.NewCall(create)
	mainBlk.NewRet(nil)

	mhp := NewConservativeMHP(m)
	assert.True(t, mhp.MayHappenInParallel(mainBlk, workerBlk))
}

func TestConservativeMHPNeverFlagsSameFunctionBlocks(t *testing.T) {
	m := ir.NewModule()
	create := m.NewFunc("pthread_create", types.I32)
	main := m.NewFunc("main", types.Void)
	blkA := main.NewBlock("a")
	blkB := main.NewBlock("b")
	blkA.NewCall(create)
	blkA.NewBr(blkB)
	blkB.NewRet(nil)

	mhp := NewConservativeMHP(m)
	assert.False(t, mhp.MayHappenInParallel(blkA, blkB))
}

func TestRegionOfReturnsNilWhenNoRegionAnalysisIsPlugged(t *testing.T) {
	m := ir.NewModule()
	main := m.NewFunc("main", types.Void)
	blk := main.NewBlock("")
	blk.NewRet(nil)

	mhp := NewConservativeMHP(m)
	assert.Nil(t, mhp.RegionOf(blk))
}

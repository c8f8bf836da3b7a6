package slicer

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchalupa/dgo/config"
)

func TestResolveLegacyCriterionRejectsMalformedSpec(t *testing.T) {
	m := ir.NewModule()
	_, err := ResolveCriterion(m, config.SlicerOptions{LegacySlicingCriteria: "main#0"})
	assert.Error(t, err)
}

func TestResolveLegacyCriterionFindsInstruction(t *testing.T) {
	m := ir.NewModule()
	fn := m.NewFunc("main", types.Void)
	blk := fn.NewBlock("")
	blk.NewRet(nil)

	crit, err := ResolveCriterion(m, config.SlicerOptions{LegacySlicingCriteria: "main#0#0"})
	require.NoError(t, err)
	assert.Equal(t, fn, crit.Func)
	assert.Equal(t, 0, crit.BlockIdx)
	assert.Equal(t, 0, crit.InstIdx)
}

func TestMarkedMarkIsIdempotent(t *testing.T) {
	m := make(Marked)
	fn := &ir.Func{}
	assert.True(t, m.mark(fn, 7))
	assert.False(t, m.mark(fn, 7))
	assert.True(t, m.has(fn, 7))
}

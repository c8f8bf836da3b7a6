package rwgraph_test

import (
	"testing"

	"github.com/llir/llvm/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/irfrontend"
	"github.com/mchalupa/dgo/offset"
	"github.com/mchalupa/dgo/pointer"
	"github.com/mchalupa/dgo/rwgraph"
)

// A memcpy with a constant length produces a must-access over the
// exact [0, len) range; one with a value only known at runtime still
// resolves to a must-access (memcpy's target has a single points-to
// candidate either way) but the range is unbounded, since the length
// itself is unknown.
func TestBuildMemcpyAccessResolvesConcreteAndUnknownLength(t *testing.T) {
	const src = `
@dstbuf = global i8 0
@srcbuf = global i8 0

declare void @memcpy(i8*, i8*, i64)

define void @main(i64 %n) {
entry:
  call void @memcpy(i8* @dstbuf, i8* @srcbuf, i64 16)
  call void @memcpy(i8* @dstbuf, i8* @srcbuf, i64 %n)
  ret void
}
`
	m, err := asm.ParseString("test.ll", src)
	require.NoError(t, err)

	result, err := pointer.NewAnalysis(m, config.DefaultPTAOptions())
	require.NoError(t, err)

	rw := rwgraph.Build(result, config.DefaultDDAOptions())

	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, main)
	entry := main.Blocks[0]
	require.Len(t, entry.Insts, 2)

	concreteCall := entry.Insts[0]
	symbolicCall := entry.Insts[1]

	concreteID, ok := result.Analysis.NodeForInst(main, concreteCall)
	require.True(t, ok)
	concreteNode, ok := rw.NodeFor(concreteID)
	require.True(t, ok)

	symbolicID, ok := result.Analysis.NodeForInst(main, symbolicCall)
	require.True(t, ok)
	symbolicNode, ok := rw.NodeFor(symbolicID)
	require.True(t, ok)

	require.Len(t, concreteNode.Writes, 1)
	require.Len(t, concreteNode.Reads, 1)
	assert.Equal(t, offset.NewInterval(offset.Zero, offset.New(16)), concreteNode.Writes[0].Interval)
	assert.Equal(t, offset.NewInterval(offset.Zero, offset.New(16)), concreteNode.Reads[0].Interval)
	assert.True(t, concreteNode.Writes[0].IsMust)
	assert.True(t, concreteNode.Reads[0].IsMust)

	require.Len(t, symbolicNode.Writes, 1)
	require.Len(t, symbolicNode.Reads, 1)
	assert.Equal(t, offset.Unbounded(offset.Zero), symbolicNode.Writes[0].Interval)
	assert.Equal(t, offset.Unbounded(offset.Zero), symbolicNode.Reads[0].Interval)
	// IsMust only looks at site cardinality, not length determinism: a
	// single-target copy is still "must" even when its length is a
	// runtime value.
	assert.True(t, symbolicNode.Writes[0].IsMust)
	assert.True(t, symbolicNode.Reads[0].IsMust)
}

// A plain load/store pair through a global pointer resolves to a
// single must-access at offset zero, the baseline rwgraph.Build is
// expected to get right before any of the memcpy special-casing
// applies.
func TestBuildLoadStoreAccessIsMustAtZeroOffset(t *testing.T) {
	const src = `
@g = global i32 0

define void @main() {
entry:
  %v = load i32, i32* @g
  store i32 %v, i32* @g
  ret void
}
`
	m, err := asm.ParseString("test.ll", src)
	require.NoError(t, err)

	result, err := pointer.NewAnalysis(m, config.DefaultPTAOptions())
	require.NoError(t, err)

	rw := rwgraph.Build(result, config.DefaultDDAOptions())

	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, main)
	entry := main.Blocks[0]
	require.Len(t, entry.Insts, 2)

	loadID, ok := result.Analysis.NodeForInst(main, entry.Insts[0])
	require.True(t, ok)
	loadNode, ok := rw.NodeFor(loadID)
	require.True(t, ok)
	require.Len(t, loadNode.Reads, 1)
	assert.True(t, loadNode.Reads[0].IsMust)
	assert.Equal(t, offset.Zero, loadNode.Reads[0].Interval.From)

	storeID, ok := result.Analysis.NodeForInst(main, entry.Insts[1])
	require.True(t, ok)
	storeNode, ok := rw.NodeFor(storeID)
	require.True(t, ok)
	require.Len(t, storeNode.Writes, 1)
	assert.True(t, storeNode.Writes[0].IsMust)
	assert.Equal(t, offset.Zero, storeNode.Writes[0].Interval.From)
}

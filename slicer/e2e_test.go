package slicer_test

import (
	"testing"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/irfrontend"
	"github.com/mchalupa/dgo/slicer"
)

func parseModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := asm.ParseString("test.ll", src)
	require.NoError(t, err)
	return m
}

func baseOpts() config.SlicerOptions {
	return config.SlicerOptions{
		PTA: config.DefaultPTAOptions(),
		DDA: config.DefaultDDAOptions(),
		CD:  config.DefaultCDOptions(),
	}
}

// The criterion (a load of a global) pulls in the store that defines
// it via a memory data-dependence edge; an unrelated load/store pair
// that the criterion never reads reaches no such edge and is cut.
func TestSliceKeepsOnlyTheStoreThatDefinesTheCriterionLoad(t *testing.T) {
	const src = `
@g = global i32 0

define i32 @main() {
entry:
  store i32 42, i32* @g
  %v = load i32, i32* @g
  %other = load i32, i32* @g
  store i32 7, i32* @g
  ret i32 %v
}
`
	m := parseModule(t, src)
	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, main)
	entry := main.Blocks[0]
	require.Len(t, entry.Insts, 4)
	wantStore, wantLoad := entry.Insts[0], entry.Insts[1]
	deadLoad, deadStore := entry.Insts[2], entry.Insts[3]

	opts := baseOpts()
	opts.LegacySlicingCriteria = "main#0#1"
	require.NoError(t, slicer.Slice(m, opts))

	got := main.Blocks[0].Insts
	assert.Contains(t, got, wantStore)
	assert.Contains(t, got, wantLoad)
	assert.NotContains(t, got, deadLoad)
	assert.NotContains(t, got, deadStore)
}

// A call whose result is never consumed carries no memory effect (it
// has no arguments for the undefined-function model to act on) and no
// dependence edge reaches it, so it is cut entirely, alongside an
// unrelated surviving store/load chain that is the actual criterion.
func TestSliceDropsACallWhoseResultIsNeverUsed(t *testing.T) {
	const src = `
@g = global i32 0

declare i32 @compute()

define i32 @main() {
entry:
  %unused = call i32 @compute()
  store i32 1, i32* @g
  %v = load i32, i32* @g
  ret i32 %v
}
`
	m := parseModule(t, src)
	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, main)
	entry := main.Blocks[0]
	require.Len(t, entry.Insts, 3)
	deadCall, wantStore, wantLoad := entry.Insts[0], entry.Insts[1], entry.Insts[2]

	opts := baseOpts()
	opts.LegacySlicingCriteria = "main#0#2"
	require.NoError(t, slicer.Slice(m, opts))

	got := main.Blocks[0].Insts
	assert.NotContains(t, got, deadCall)
	assert.Contains(t, got, wantStore)
	assert.Contains(t, got, wantLoad)
}

// An indirect call survives a slice taken on itself (it is the
// criterion), while an unrelated dead call ahead of it in the same
// block is cut; resolveCallees/wireCallEdges (exercised internally by
// sdg.Assemble) must resolve both of the function pointer's candidate
// targets without error for this to run to completion at all.
func TestSliceKeepsIndirectCallCriterionAndDropsUnrelatedDeadCall(t *testing.T) {
	const src = `
@fp = global void ()* null

declare i32 @unrelated()

define void @f() {
entry:
  ret void
}

define void @g() {
entry:
  ret void
}

define void @main() {
entry:
  store void ()* @f, void ()** @fp
  store void ()* @g, void ()** @fp
  %p = load void ()*, void ()** @fp
  %dead = call i32 @unrelated()
  call void %p()
  ret void
}
`
	m := parseModule(t, src)
	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, main)
	entry := main.Blocks[0]
	require.Len(t, entry.Insts, 5)
	deadCall, indirectCall := entry.Insts[3], entry.Insts[4]

	opts := baseOpts()
	opts.LegacySlicingCriteria = "main#0#4"
	require.NoError(t, slicer.Slice(m, opts))

	got := main.Blocks[0].Insts
	assert.NotContains(t, got, deadCall)
	assert.Contains(t, got, indirectCall)
}

// A free() racing with another free() of the same heap object across
// a spawned thread is linked by an EdgeInterference edge (both sides
// are writes at the same allocation site with an unknown-length
// range, so rwgraph's Overlaps check can't rule it out); slicing from
// one side must keep the other, even though it lives in a different
// function reached only by pthread_create, not by an ordinary call
// edge. This intentionally does not assert anything about
// pthread_create/pthread_join themselves surviving the slice.
func TestSliceKeepsInterferingFreeAcrossSpawnedThread(t *testing.T) {
	const src = `
@shared = global i8* null

declare i8* @malloc(i64)
declare void @free(i8*)
declare i32 @pthread_create(i64*, i8*, i32 (i8*)*, i8*)

define i32 @worker(i8* %arg) {
entry:
  %p = load i8*, i8** @shared
  call void @free(i8* %p)
  ret i32 0
}

define i32 @main() {
entry:
  %tid = alloca i64
  %m = call i8* @malloc(i64 8)
  store i8* %m, i8** @shared
  %r = call i32 @pthread_create(i64* %tid, i8* null, i32 (i8*)* @worker, i8* null)
  %p2 = load i8*, i8** @shared
  call void @free(i8* %p2)
  ret i32 0
}
`
	m := parseModule(t, src)
	worker := irfrontend.FuncByName(m, "worker")
	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, worker)
	require.NotNil(t, main)
	require.Len(t, main.Blocks[0].Insts, 6)
	workerFree := worker.Blocks[0].Insts[1]

	opts := baseOpts()
	opts.PTA.Threads = true
	opts.LegacySlicingCriteria = "main#0#5"
	require.NoError(t, slicer.Slice(m, opts))

	assert.Contains(t, worker.Blocks[0].Insts, workerFree)
}

// A conditional branch whose two arms reconverge before any memory
// access the criterion depends on is not control-dependence-relevant:
// simplifyTerm collapses it to an unconditional branch, and
// removeEmptyBlocks then splices out both now-empty arms, leaving the
// entry block branch straight to the block holding the criterion.
func TestSliceCollapsesUnneededBranchAndRemovesEmptyArms(t *testing.T) {
	const src = `
@g = global i32 0

define i32 @main(i1 %c) {
entry:
  br i1 %c, label %a, label %b
a:
  br label %done
b:
  br label %done
done:
  %v = load i32, i32* @g
  ret i32 %v
}
`
	m := parseModule(t, src)
	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, main)
	require.Len(t, main.Blocks, 4)
	doneBlock := main.Blocks[3]

	opts := baseOpts()
	opts.LegacySlicingCriteria = "main#3#0"
	require.NoError(t, slicer.Slice(m, opts))

	require.Len(t, main.Blocks, 2)
	assert.Same(t, doneBlock, main.Blocks[1])
	br, ok := main.Blocks[0].Term.(*ir.TermBr)
	require.True(t, ok)
	assert.Same(t, doneBlock, br.Target)
}

// Package slicer computes a program slice: given a slicing criterion
// (one instruction), it keeps only the instructions the criterion
// transitively depends on (or, in forward mode, that depend on it),
// deletes the rest, and simplifies the surrounding control flow.
package slicer

import (
	"fmt"

	"github.com/llir/llvm/ir"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/dda"
	"github.com/mchalupa/dgo/dglog"
	"github.com/mchalupa/dgo/pointer"
	"github.com/mchalupa/dgo/rwgraph"
	"github.com/mchalupa/dgo/sdg"
	"github.com/mchalupa/dgo/threads"
)

var log = dglog.For("slicer")

// Slice runs the full pipeline (pointer analysis, read/write graph,
// data dependence, dependence-graph assembly, mark, cut) over m and
// rewrites it in place.
func Slice(m *ir.Module, opts config.SlicerOptions) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("slicer: %w", err)
	}

	crit, err := ResolveCriterion(m, opts)
	if err != nil {
		return err
	}
	if opts.CriteriaAreNextInstr {
		crit, err = nextInstr(crit)
		if err != nil {
			return err
		}
	}

	result, err := pointer.NewAnalysis(m, opts.PTA)
	if err != nil {
		return fmt.Errorf("slicer: pointer analysis: %w", err)
	}
	for _, w := range result.Analysis.Warnings() {
		log.Warn(w)
	}

	rw := rwgraph.Build(result, opts.DDA)
	dd := dda.Build(rw, opts.DDA)
	mhp := threads.NewConservativeMHP(m)
	graphs := sdg.Assemble(result, rw, dd, opts.CD, mhp)

	startID, ok := nodeForCriterion(result.Analysis, crit)
	if !ok {
		return fmt.Errorf("slicer: criterion %s:%d:%d did not resolve to a dependence-graph node",
			crit.Func.Name(), crit.BlockIdx, crit.InstIdx)
	}

	marked := Mark(graphs, result.Analysis, crit, startID, opts)
	if opts.RemoveSlicingCriteria {
		if s := marked[crit.Func]; s != nil {
			delete(s, startID)
		}
	}

	Cut(result.Analysis, marked, opts)
	return nil
}

func nodeForCriterion(a *pointer.Analysis, crit Criterion) (pointer.NodeID, bool) {
	blk := crit.Func.Blocks[crit.BlockIdx]
	if crit.InstIdx < len(blk.Insts) {
		return a.NodeForInst(crit.Func, blk.Insts[crit.InstIdx])
	}
	return a.NodeForTerm(crit.Func, blk)
}

// nextInstr advances crit to the following instruction in program
// order (wrapping into the next block's first instruction, since a
// block always has at least a terminator), matching CriteriaAreNextInstr's
// "slice from just after the matched line" semantics.
func nextInstr(crit Criterion) (Criterion, error) {
	blk := crit.Func.Blocks[crit.BlockIdx]
	if crit.InstIdx+1 <= len(blk.Insts) {
		crit.InstIdx++
		return crit, nil
	}
	if crit.BlockIdx+1 >= len(crit.Func.Blocks) {
		return crit, fmt.Errorf("slicer: no instruction follows the criterion in %s", crit.Func.Name())
	}
	crit.BlockIdx++
	crit.InstIdx = 0
	return crit, nil
}

package slicer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/llir/llvm/ir"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/irfrontend"
)

// Criterion pins down exactly one instruction to slice from: the N-th
// instruction (0-based, terminator counts as the last one) of the
// BlockIdx-th block of Func.
type Criterion struct {
	Func     *ir.Func
	BlockIdx int
	InstIdx  int
}

// ResolveCriterion parses whichever of opts.SlicingCriteria /
// opts.LegacySlicingCriteria is set.
//
// LegacySlicingCriteria uses the exact "func#bb#n" triple and needs no
// debug information. SlicingCriteria's "function:line:col" form (and
// its shorthand "function:line") has no debug-location metadata to
// resolve against here, so line is taken as a 1-based index into the
// target function's flattened instruction stream (every block's
// Insts followed by its Term, concatenated in block order); col is
// accepted but ignored. This is an approximation of true source-line
// resolution and is documented as such.
func ResolveCriterion(m *ir.Module, opts config.SlicerOptions) (Criterion, error) {
	if opts.LegacySlicingCriteria != "" {
		return resolveLegacy(m, opts.LegacySlicingCriteria)
	}
	return resolveLineCol(m, opts.SlicingCriteria)
}

func resolveLegacy(m *ir.Module, spec string) (Criterion, error) {
	parts := strings.Split(spec, "#")
	if len(parts) != 3 {
		return Criterion{}, fmt.Errorf("slicer: legacy criterion %q must be func#bb#n", spec)
	}
	fn := irfrontend.FuncByName(m, parts[0])
	if fn == nil {
		return Criterion{}, fmt.Errorf("slicer: no function named %q", parts[0])
	}
	bb, err := strconv.Atoi(parts[1])
	if err != nil || bb < 0 || bb >= len(fn.Blocks) {
		return Criterion{}, fmt.Errorf("slicer: invalid block index in %q", spec)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 0 {
		return Criterion{}, fmt.Errorf("slicer: invalid instruction index in %q", spec)
	}
	return Criterion{Func: fn, BlockIdx: bb, InstIdx: n}, nil
}

func resolveLineCol(m *ir.Module, spec string) (Criterion, error) {
	fields := strings.Split(spec, ":")
	if len(fields) < 2 {
		return Criterion{}, fmt.Errorf("slicer: criterion %q must be function:line[:col]", spec)
	}
	fn := irfrontend.FuncByName(m, fields[0])
	if fn == nil {
		return Criterion{}, fmt.Errorf("slicer: no function named %q", fields[0])
	}
	line, err := strconv.Atoi(fields[1])
	if err != nil || line <= 0 {
		return Criterion{}, fmt.Errorf("slicer: invalid line in %q", spec)
	}
	idx := line - 1
	for bi, blk := range fn.Blocks {
		count := len(blk.Insts) + 1 // +1 for the terminator
		if idx < count {
			return Criterion{Func: fn, BlockIdx: bi, InstIdx: idx}, nil
		}
		idx -= count
	}
	return Criterion{}, fmt.Errorf("slicer: line %d is past the end of %s", line, fields[0])
}

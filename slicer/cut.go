package slicer

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/pointer"
)

// Cut rewrites every non-preserved function's body in place, keeping
// only the instructions whose PGNode was marked and simplifying the
// CFG where a whole block became empty.
func Cut(a *pointer.Analysis, marked Marked, opts config.SlicerOptions) {
	preserved := make(map[string]bool, len(opts.PreservedFunctions))
	for _, name := range opts.PreservedFunctions {
		preserved[name] = true
	}

	for _, sg := range a.Subgraphs() {
		fn := sg.Func
		if fn == nil || preserved[trimAt(fn.Name())] {
			continue
		}
		set := marked[fn]
		for _, blk := range fn.Blocks {
			cutInsts(a, fn, blk, set)
		}
		simplifyTerm(a, fn, set)
		removeEmptyBlocks(fn)
	}
}

func trimAt(name string) string {
	if len(name) > 0 && name[0] == '@' {
		return name[1:]
	}
	return name
}

// cutInsts drops every instruction in blk whose PGNode is not in set,
// except calls to preserved debug intrinsics and anything with
// observable side effects the pointer analysis could not resolve
// (store through an unknown address, a call to an unmodeled external
// function) — those are kept conservatively rather than risk changing
// behavior no dependence edge captured.
func cutInsts(a *pointer.Analysis, fn *ir.Func, blk *ir.Block, set map[pointer.NodeID]bool) {
	kept := blk.Insts[:0]
	for _, inst := range blk.Insts {
		id, ok := a.NodeForInst(fn, inst)
		if !ok || set[id] || mustKeep(a, id) {
			kept = append(kept, inst)
		}
	}
	blk.Insts = kept
}

// mustKeep reports whether id's instruction has an effect the dependence
// graph doesn't model precisely enough to safely discard: a store or
// call whose target/callee resolved to UNKNOWN_MEMORY.
func mustKeep(a *pointer.Analysis, id pointer.NodeID) bool {
	n := a.Nodes()[id]
	if n.Kind != pointer.KindStore && n.Kind != pointer.KindCall && n.Kind != pointer.KindCallFuncPtr {
		return false
	}
	for _, op := range n.Operands {
		if op == a.UnknownMemory() {
			return true
		}
	}
	return false
}

// simplifyTerm turns an unmarked conditional branch or switch into an
// unconditional branch to its first successor: the branch condition's
// value no longer matters to the slice, but the block still needs
// exactly one successor to keep the CFG well-formed.
func simplifyTerm(a *pointer.Analysis, fn *ir.Func, set map[pointer.NodeID]bool) {
	for _, blk := range fn.Blocks {
		id, ok := a.NodeForTerm(fn, blk)
		if !ok || set[id] {
			continue
		}
		switch t := blk.Term.(type) {
		case *ir.TermCondBr:
			blk.Term = ir.NewBr(t.TargetTrue)
		case *ir.TermSwitch:
			blk.Term = ir.NewBr(t.TargetDefault)
		case *ir.TermRet:
			if t.X != nil {
				blk.Term = ir.NewRet(constant.NewZeroInitializer(t.X.Type()))
			}
		}
	}
}

// removeEmptyBlocks splices out every non-entry block left with no
// real instructions and an unconditional branch, redirecting its
// predecessors straight to its successor. This is the safe subset of
// CFG minimization: a block with a conditional terminator, or more
// than one predecessor relying on it as a distinct merge point for a
// PHI, is left in place rather than risk an unsound PHI rewrite.
func removeEmptyBlocks(fn *ir.Func) {
	changed := true
	for changed {
		changed = false
		for i, blk := range fn.Blocks {
			if i == 0 || len(blk.Insts) != 0 {
				continue
			}
			br, ok := blk.Term.(*ir.TermBr)
			if !ok || br.Target == blk {
				continue
			}
			if targetHasPhi(br.Target) {
				continue
			}
			retarget(fn, blk, br.Target)
			fn.Blocks = append(fn.Blocks[:i], fn.Blocks[i+1:]...)
			changed = true
			break
		}
	}
}

func targetHasPhi(blk *ir.Block) bool {
	for _, inst := range blk.Insts {
		if _, ok := inst.(*ir.InstPhi); ok {
			return true
		}
	}
	return false
}

func retarget(fn *ir.Func, removed, target *ir.Block) {
	for _, blk := range fn.Blocks {
		switch t := blk.Term.(type) {
		case *ir.TermBr:
			if t.Target == removed {
				t.Target = target
			}
		case *ir.TermCondBr:
			if t.TargetTrue == removed {
				t.TargetTrue = target
			}
			if t.TargetFalse == removed {
				t.TargetFalse = target
			}
		case *ir.TermSwitch:
			if t.TargetDefault == removed {
				t.TargetDefault = target
			}
			for i := range t.Cases {
				if t.Cases[i].Target == removed {
					t.Cases[i].Target = target
				}
			}
		}
	}
}

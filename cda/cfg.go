// Package cda computes control dependence over a function's CFG: the
// classical post-dominator-frontier algorithm (CLASSIC) and the
// non-termination-sensitive family (NTSCD and its variants), plus the
// post-dominator tree construction (Cooper, Harvey & Kennedy's
// iterative algorithm) both rest on. The dominator-tree/dominance-
// frontier shape here is adapted from a classical SSA-lifting dominance-frontier pass,
// generalized from forward dominance over a single function's blocks
// to post-dominance (and, for NTSCD, to the "may never reach exit"
// case forward dominance doesn't need to worry about).
package cda

import "github.com/llir/llvm/ir"

// BlockID is a dense index into a CFG's block list. 0 is always the
// entry block.
type BlockID int

// exitBlock is the synthetic sink every block with no real successor
// (ret, unreachable) flows into, so post-dominance is always computed
// over a graph with a single well-defined exit.
const exitBlock BlockID = -1

// CFG is the control-flow graph cda operates over: block identity is
// reduced to small integers so the dominator-tree algorithms don't
// need to hash *ir.Block pointers on every step.
type CFG struct {
	Func    *ir.Func
	Blocks  []*ir.Block
	index   map[*ir.Block]BlockID
	Entry   BlockID
	Succs   map[BlockID][]BlockID
	Preds   map[BlockID][]BlockID
	NoReturn map[BlockID]bool // block ends in a call the engine treats as never-returning
}

// BuildCFG translates fn's basic blocks into a CFG, synthesizing an
// edge from every exit block (ret/unreachable) to exitBlock so post-
// dominance has one sink regardless of how many return sites fn has.
// noreturnFuncs (may be nil) marks which callees the engine has
// statically determined never return, used to flag a block as
// NoReturn when its last instruction calls one of them even though it
// still carries a syntactic fall-through successor.
func BuildCFG(fn *ir.Func, noreturnFuncs map[*ir.Func]bool) *CFG {
	g := &CFG{
		Func:     fn,
		index:    make(map[*ir.Block]BlockID, len(fn.Blocks)),
		Succs:    make(map[BlockID][]BlockID),
		Preds:    make(map[BlockID][]BlockID),
		NoReturn: make(map[BlockID]bool),
	}
	for i, blk := range fn.Blocks {
		id := BlockID(i)
		g.index[blk] = id
		g.Blocks = append(g.Blocks, blk)
	}
	for i, blk := range fn.Blocks {
		id := BlockID(i)
		succs := termSuccessorBlocks(blk.Term)
		if len(succs) == 0 {
			g.addEdge(id, exitBlock)
		} else {
			for _, s := range succs {
				g.addEdge(id, g.index[s])
			}
		}
		if callsNoReturn(blk, noreturnFuncs) {
			g.NoReturn[id] = true
		}
	}
	return g
}

// callsNoReturn reports whether blk's last instruction is a direct
// call to a function noreturnFuncs identifies as never returning.
func callsNoReturn(blk *ir.Block, noreturnFuncs map[*ir.Func]bool) bool {
	if len(noreturnFuncs) == 0 || len(blk.Insts) == 0 {
		return false
	}
	call, ok := blk.Insts[len(blk.Insts)-1].(*ir.InstCall)
	if !ok {
		return false
	}
	callee, ok := call.Callee.(*ir.Func)
	return ok && noreturnFuncs[callee]
}

func (g *CFG) addEdge(from, to BlockID) {
	g.Succs[from] = append(g.Succs[from], to)
	g.Preds[to] = append(g.Preds[to], from)
}

// Nodes returns every real block id plus the synthetic exit, in a
// stable order with exitBlock last.
func (g *CFG) Nodes() []BlockID {
	out := make([]BlockID, 0, len(g.Blocks)+1)
	for i := range g.Blocks {
		out = append(out, BlockID(i))
	}
	return append(out, exitBlock)
}

func (g *CFG) IndexOf(blk *ir.Block) BlockID { return g.index[blk] }

func termSuccessorBlocks(term ir.Terminator) []*ir.Block {
	switch t := term.(type) {
	case *ir.TermBr:
		return []*ir.Block{t.Target}
	case *ir.TermCondBr:
		return []*ir.Block{t.TargetTrue, t.TargetFalse}
	case *ir.TermSwitch:
		succs := make([]*ir.Block, 0, len(t.Cases)+1)
		succs = append(succs, t.TargetDefault)
		for _, c := range t.Cases {
			succs = append(succs, c.Target)
		}
		return succs
	case *ir.TermIndirectBr:
		return t.ValidTargets
	default:
		return nil
	}
}

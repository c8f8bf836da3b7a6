package cda

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/llir/llvm/ir"

	"github.com/mchalupa/dgo/config"
)

// ntscd implements the non-termination-sensitive control-dependence
// algorithm: CLASSIC's post-dominator-frontier approach is unsound
// when a branch's outcome is "does this loop ever terminate", because
// a block that never reaches the (single, synthetic) exit has no
// useful post-dominator relationship to it. NTSCD instead asks,
// directly over the CFG: for branch block S with successors, is there
// a successor from which control can avoid reaching blk along some
// path? If so blk is control dependent on S.
//
// This is the brute-force formulation (Ranganath et al.'s original
// augmented-CFG insight, computed directly instead of via the
// augmented-CFG post-dominator trick NTSCD2 uses) — quadratic in CFG
// size, fine for the function-sized graphs this engine analyzes. Each
// row of the reachability relation is a dense bitset rather than a
// map, since BlockIDs are small dense integers and the row is queried
// once per candidate branch block for every target block.
type ntscd struct {
	cfg       *CFG
	reach     map[BlockID]*bitset.BitSet // reach[a].Test(idx(b)): some path a ->* b
	ranganath bool
}

func newNTSCD(cfg *CFG, algo config.CDAlgorithm) *ntscd {
	n := &ntscd{cfg: cfg, ranganath: algo == config.CDNTSCDRanganath}
	n.reach = make(map[BlockID]*bitset.BitSet, len(cfg.Blocks)+1)
	for _, b := range cfg.Nodes() {
		n.reach[b] = reachableFrom(cfg, b, cfg.Succs)
	}
	return n
}

// idx maps a BlockID (real blocks 0..n-1, plus exitBlock == -1) to a
// non-negative bitset position.
func idx(cfg *CFG, b BlockID) uint { return uint(b + 1) }

func reachableFrom(cfg *CFG, start BlockID, succs map[BlockID][]BlockID) *bitset.BitSet {
	seen := bitset.New(uint(len(cfg.Blocks)) + 1)
	seen.Set(idx(cfg, start))
	stack := []BlockID{start}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range succs[b] {
			if !seen.Test(idx(cfg, s)) {
				seen.Set(idx(cfg, s))
				stack = append(stack, s)
			}
		}
	}
	return seen
}

func (n *ntscd) DependsOn(blk *ir.Block) []*ir.Block {
	target := n.cfg.IndexOf(blk)
	var out []*ir.Block
	for _, s := range n.cfg.Nodes() {
		succs := n.cfg.Succs[s]
		if len(succs) < 2 {
			continue // not a branch: nothing can be dependent on it
		}
		reachesAlways, reachesSometimes := true, false
		for _, succ := range succs {
			if n.reach[succ].Test(idx(n.cfg, target)) || succ == target {
				reachesSometimes = true
			} else {
				reachesAlways = false
			}
		}
		if s == target && !n.ranganath {
			continue // the practical formulation drops a branch's dependence on itself
		}
		if reachesSometimes && !reachesAlways {
			if s >= 0 {
				out = append(out, n.cfg.Blocks[s])
			}
		}
	}
	return out
}

// ntscd2 computes the same relation as ntscd but via Ranganath et
// al.'s augmented-CFG construction: add a single extra "virtual" start
// edge from every branch straight to exitBlock, then the post-
// dominator frontier of that augmented graph IS the NTSCD relation,
// letting the CLASSIC machinery (post-dom tree + frontier) be reused
// instead of the direct quadratic reachability scan. This is the
// asymptotically better of the two and the one the slicer defaults to.
type ntscd2 struct {
	cfg  *CFG
	pdom *DomTree
	pdf  frontier
}

func newNTSCD2(cfg *CFG) *ntscd2 {
	augSuccs := make(map[BlockID][]BlockID, len(cfg.Succs)+1)
	augPreds := make(map[BlockID][]BlockID, len(cfg.Preds)+1)
	for b, ss := range cfg.Succs {
		augSuccs[b] = append([]BlockID(nil), ss...)
	}
	for b, ps := range cfg.Preds {
		augPreds[b] = append([]BlockID(nil), ps...)
	}
	for _, b := range cfg.Nodes() {
		if len(augSuccs[b]) >= 2 {
			augSuccs[b] = append(augSuccs[b], exitBlock)
			augPreds[exitBlock] = append(augPreds[exitBlock], b)
		}
	}

	pdom := buildDomTree(exitBlock, augPreds, augSuccs)
	pdf := buildFrontier(pdom, exitBlock, augPreds)
	return &ntscd2{cfg: cfg, pdom: pdom, pdf: pdf}
}

func (n *ntscd2) DependsOn(blk *ir.Block) []*ir.Block {
	id := n.cfg.IndexOf(blk)
	var out []*ir.Block
	for _, dep := range n.pdf[id] {
		if dep == exitBlock {
			continue
		}
		out = append(out, n.cfg.Blocks[dep])
	}
	return out
}

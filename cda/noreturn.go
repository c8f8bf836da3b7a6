package cda

import (
	"github.com/llir/llvm/ir"

	"github.com/mchalupa/dgo/config"
)

// ComputeNoReturnFuncs identifies, for every function with a body in
// mod, whether it can be statically shown to never return: none of
// its blocks terminate in a plain ret, so every path either diverges
// via unreachable or loops forever. A function with no body (a
// declaration-only libc/pthread entry point) can't be classified this
// way without attribute metadata this frontend doesn't track, so it is
// conservatively treated as returning.
func ComputeNoReturnFuncs(mod *ir.Module) map[*ir.Func]bool {
	out := make(map[*ir.Func]bool)
	for _, fn := range mod.Funcs {
		if len(fn.Blocks) == 0 {
			continue
		}
		noreturn := true
		for _, blk := range fn.Blocks {
			if _, ok := blk.Term.(*ir.TermRet); ok {
				noreturn = false
				break
			}
		}
		if noreturn {
			out[fn] = true
		}
	}
	return out
}

// interprocCD augments a base control-dependence engine with
// interprocedural noreturn dependencies: a block reachable, along the
// normal (successor) CFG, from a call site the engine has classified
// as never returning only actually executes if the call defied that
// classification, so it is made control dependent on the call's own
// block — the "actual-noreturn" sentinel lifted to the call's
// successors via a forward flood-fill along successor edges from each
// noreturn call site.
type interprocCD struct {
	inner ControlDependence
	cfg   *CFG
	deps  map[BlockID][]BlockID
}

func newInterprocCD(cfg *CFG, inner ControlDependence) *interprocCD {
	c := &interprocCD{inner: inner, cfg: cfg, deps: make(map[BlockID][]BlockID)}
	for id, noret := range cfg.NoReturn {
		if !noret {
			continue
		}
		reach := reachableFrom(cfg, id, cfg.Succs)
		for i, ok := reach.NextSet(0); ok; i, ok = reach.NextSet(i + 1) {
			reached := BlockID(i) - 1 // undo idx's +1 bias
			if reached == id {
				continue
			}
			c.deps[reached] = append(c.deps[reached], id)
		}
	}
	return c
}

func (c *interprocCD) DependsOn(blk *ir.Block) []*ir.Block {
	out := c.inner.DependsOn(blk)
	id := c.cfg.IndexOf(blk)
	for _, dep := range c.deps[id] {
		out = append(out, c.cfg.Blocks[dep])
	}
	return out
}

// selectAlgorithm resolves opts to the concrete flavor to run,
// upgrading CLASSIC to NTSCD2 unless the caller explicitly asserts
// TerminationSensitive — CLASSIC's post-dominator-frontier approach is
// unsound whenever a branch can lead into a loop that never reaches
// the function's exit, which NTSCD2 handles at no extra asymptotic
// cost.
func selectAlgorithm(opts config.CDOptions) config.CDAlgorithm {
	if opts.Algorithm == config.CDClassic && !opts.TerminationSensitive {
		return config.CDNTSCD2
	}
	return opts.Algorithm
}

// Package threads is the narrow collaborator interface the dependence
// engines query for may-happen-in-parallel (MHP) information, plus a
// conservative default implementation usable when no finer thread-
// region analysis is wired in.
package threads

import "github.com/llir/llvm/ir"

// Region identifies one thread's extent: the fork call that created
// it (nil for the program's initial thread) and the join call that
// waits for it (nil if never joined on this path).
type Region struct {
	ID   int
	Fork *ir.InstCall
	Join *ir.InstCall
}

// MHP answers whether two program points may execute concurrently.
// Implementations are free to be approximate in either direction that
// keeps slicing/dependence sound: MayHappenInParallel must return true
// whenever it is unsure.
type MHP interface {
	MayHappenInParallel(a, b *ir.Block) bool
	RegionOf(blk *ir.Block) *Region
}

// ConservativeMHP is the "no thread-region analysis available" default:
// it answers true for any two blocks belonging to different functions
// once the module contains at least one pthread_create call, and false
// otherwise. It exists so the data/control-dependence engines have
// something to query even before a real region analysis is plugged in,
// matching the "external collaborator, narrow interface" shape the
// engine was designed around rather than hard-wiring thread knowledge
// into the data- and control-dependence engines themselves.
type ConservativeMHP struct {
	hasThreads bool
	funcOf     map[*ir.Block]*ir.Func
	regionOf   map[*ir.Block]*Region
}

// NewConservativeMHP scans module for any pthread_create call to
// decide whether threading is in play at all.
func NewConservativeMHP(module *ir.Module) *ConservativeMHP {
	m := &ConservativeMHP{
		funcOf:   make(map[*ir.Block]*ir.Func),
		regionOf: make(map[*ir.Block]*Region),
	}
	for _, fn := range module.Funcs {
		for _, blk := range fn.Blocks {
			m.funcOf[blk] = fn
			for _, inst := range blk.Insts {
				call, ok := inst.(*ir.InstCall)
				if !ok {
					continue
				}
				if callee, ok := call.Callee.(*ir.Func); ok && callee.Name() == "pthread_create" {
					m.hasThreads = true
				}
			}
		}
	}
	return m
}

func (m *ConservativeMHP) MayHappenInParallel(a, b *ir.Block) bool {
	if !m.hasThreads {
		return false
	}
	return m.funcOf[a] != m.funcOf[b]
}

func (m *ConservativeMHP) RegionOf(blk *ir.Block) *Region { return m.regionOf[blk] }

// Package dda computes data dependence: for every memory read, the
// set of writes that may have produced the value it sees. Two engines
// share one entry point: classical reaching-definitions (RD) and
// memory-SSA; both consume a rwgraph.Graph and never look at raw IR.
package dda

import (
	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/offset"
	"github.com/mchalupa/dgo/pointer"
	"github.com/mchalupa/dgo/rwgraph"
)

// Edge is one data-dependence edge: use depends on def.
type Edge struct {
	Def, Use pointer.NodeID
}

// DataDependence is the result every downstream consumer (the SDG
// assembler, the -graph-only dumper) queries.
type DataDependence interface {
	// Definitions returns every write PGNode that may define the value
	// a read at use sees.
	Definitions(use pointer.NodeID) []pointer.NodeID

	// DefinitionsAt returns every write PGNode that may define mem's
	// [off, off+length) as observed arriving at where, independent of
	// whether where itself is a rwgraph read.
	DefinitionsAt(where, mem pointer.NodeID, off, length offset.Offset) []pointer.NodeID

	// IsUse reports whether n is a PGNode this engine tracks a read
	// for.
	IsUse(n pointer.NodeID) bool

	// IsDef reports whether n is a PGNode this engine tracks a write
	// for.
	IsDef(n pointer.NodeID) bool

	// AllDefinitions returns every PGNode this engine has ever recorded
	// as a write, for dumpers that enumerate the whole def set instead
	// of resolving it per-use.
	AllDefinitions() []pointer.NodeID
}

// Build runs the configured flavor to a fixpoint over g and returns
// the resulting dependence relation.
func Build(g *rwgraph.Graph, opts config.DDAOptions) DataDependence {
	switch opts.AnalysisType {
	case config.DDAMemorySSA:
		return buildMemorySSA(g, opts)
	default:
		return buildRD(g, opts)
	}
}

// siteState is the reaching-definitions state for one program point:
// per (allocation site, offset bucket), the set of write PGNodes whose
// interval may still be live there. Growing-only (a superset
// relation), so RD's worklist fixpoint terminates.
type siteState map[offsetKey][]pointer.NodeID

// offsetKey buckets a (site, interval-start) pair for map-keying; RD
// doesn't need byte-precise buckets, only enough granularity to tell
// "probably the same slot of the same object" from "definitely
// different", same granularity the rwgraph already resolved via
// must/may access.
type offsetKey struct {
	site pointer.NodeID
	off  offset.Offset
}

func key(site pointer.NodeID, iv offset.Interval) offsetKey {
	return offsetKey{site: site, off: iv.From}
}

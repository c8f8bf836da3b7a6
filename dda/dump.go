package dda

import (
	"fmt"
	"io"
	"sort"

	"github.com/mchalupa/dgo/pointer"
)

// Dump writes a deterministic textual listing of dd's dependence
// relation: one line per use, listing the defs reaching it. Used by
// dg-dump's --kind=dda mode.
func Dump(w io.Writer, a *pointer.Analysis, dd DataDependence) {
	var uses []pointer.NodeID
	for _, n := range a.Nodes() {
		if dd.IsUse(n.ID) {
			uses = append(uses, n.ID)
		}
	}
	sort.Slice(uses, func(i, j int) bool { return uses[i] < uses[j] })

	for _, use := range uses {
		defs := dd.Definitions(use)
		sort.Slice(defs, func(i, j int) bool { return defs[i] < defs[j] })
		fmt.Fprintf(w, "n%d <-", use)
		for _, d := range defs {
			fmt.Fprintf(w, " n%d", d)
		}
		fmt.Fprintln(w)
	}
}

// DumpGraphOnly writes just the def set dd has ever recorded, with no
// per-use resolution: the cheaper listing memory-SSA's eager
// AllDefinitions was built for, selected by dg-dump's --graph-only flag.
func DumpGraphOnly(w io.Writer, dd DataDependence) {
	defs := dd.AllDefinitions()
	sort.Slice(defs, func(i, j int) bool { return defs[i] < defs[j] })
	for _, d := range defs {
		fmt.Fprintf(w, "n%d\n", d)
	}
}

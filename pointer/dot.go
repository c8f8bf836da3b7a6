package pointer

import (
	"fmt"
	"io"
)

// WriteDot renders the pointer graph as Graphviz dot, one cluster per
// Subgraph plus a floating cluster for the sentinels, in the relName-
// style terse node labels a points-to-set printer uses.
func (a *Analysis) WriteDot(w io.Writer) error {
	fmt.Fprintln(w, "digraph pointer {")
	fmt.Fprintln(w, `  node [shape=box, fontname="monospace"];`)

	for _, sg := range a.subgraphList {
		name := "?"
		if sg.Func != nil {
			name = sg.Func.Name()
		}
		fmt.Fprintf(w, "  subgraph cluster_%p {\n", sg)
		fmt.Fprintf(w, "    label=%q;\n", name)
		for _, id := range sg.NodeIDs {
			n := a.node(id)
			fmt.Fprintf(w, "    n%d [label=%q];\n", id, n.String())
			for _, succ := range n.Succs {
				fmt.Fprintf(w, "    n%d -> n%d;\n", id, succ)
			}
		}
		fmt.Fprintln(w, "  }")
	}

	for id := NodeID(0); int(id) < numSentinels; id++ {
		n := a.node(id)
		fmt.Fprintf(w, "  n%d [label=%q, style=dashed];\n", id, n.String())
	}

	fmt.Fprintln(w, "}")
	return nil
}

// DumpPointsTo writes a deterministic, sorted textual listing of every
// node's points-to set, for golden-file tests and dg-dump's --pta mode.
func (a *Analysis) DumpPointsTo(w io.Writer) {
	for _, n := range a.nodes {
		if n.PointsTo.IsEmpty() {
			continue
		}
		fmt.Fprintf(w, "%s ->", n)
		for _, p := range n.PointsTo.Sorted() {
			fmt.Fprintf(w, " %d+%s", p.Target, p.Offset)
		}
		if n.PointsTo.HasUnknown() {
			fmt.Fprint(w, " UNKNOWN")
		}
		fmt.Fprintln(w)
	}
}

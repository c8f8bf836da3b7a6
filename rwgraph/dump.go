package rwgraph

import (
	"fmt"
	"io"
)

// Dump writes a deterministic textual listing of the read/write
// graph: one line per RWNode listing the PGNode it was built from,
// followed by its reads and writes as site+interval pairs. Used by
// dg-dump's --kind=rwg mode and golden-file tests.
func (g *Graph) Dump(w io.Writer) {
	for _, rn := range g.Nodes {
		fmt.Fprintf(w, "n%d:", rn.PG)
		for _, acc := range rn.Reads {
			fmt.Fprintf(w, " R(%d,%s%s)", acc.Site, acc.Interval, mustTag(acc.IsMust))
		}
		for _, acc := range rn.Writes {
			fmt.Fprintf(w, " W(%d,%s%s)", acc.Site, acc.Interval, mustTag(acc.IsMust))
		}
		fmt.Fprintln(w)
	}
}

func mustTag(must bool) string {
	if must {
		return ",must"
	}
	return ",may"
}

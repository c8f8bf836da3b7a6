package cda

// frontier maps each block to its (post-)dominance frontier: the set
// of blocks it dominates a predecessor of without dominating outright.
// Built with Cytron et al.'s algorithm, walking the dominator tree in
// postorder exactly as a classical SSA-lifting pass computes plain
// dominance frontiers for φ-node placement — here run over the
// post-dominator tree instead, which is what turns it into control
// dependence.
type frontier map[BlockID][]BlockID

func buildFrontier(tree *DomTree, root BlockID, edges map[BlockID][]BlockID) frontier {
	df := make(frontier)
	var build func(u BlockID)
	build = func(u BlockID) {
		for _, child := range tree.Children[u] {
			build(child)
		}
		for _, p := range edges[u] {
			if tree.Idom[p] != u {
				df[u] = append(df[u], p)
			}
		}
		for _, child := range tree.Children[u] {
			for _, v := range df[child] {
				if tree.Idom[v] != u {
					df[u] = append(df[u], v)
				}
			}
		}
	}
	build(root)
	return df
}

package cfg

// ReversePostorder returns the graph's blocks in reverse postorder of a
// depth-first traversal from the entry block, the usual iteration order for
// forward dataflow: a block appears before its successors except across
// back-edges. Exception edges are traversed like any other edge, so handler
// blocks are ordered too. Blocks unreachable from the entry are appended at
// the end in id order.
func ReversePostorder(g *Graph) []*Block {
	entry := g.Entry()
	if entry == nil {
		return nil
	}

	visited := make([]bool, len(g.blocks))
	post := make([]*Block, 0, len(g.blocks))

	// Iterative DFS; the explicit stack tracks the next successor index per
	// block so postorder numbers are assigned when a block is exhausted.
	type frame struct {
		block *Block
		next  int
	}
	stack := []frame{{block: entry}}
	visited[entry.id] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.block.succs) {
			succ := top.block.succs[top.next].Target
			top.next++
			if !visited[succ.id] {
				visited[succ.id] = true
				stack = append(stack, frame{block: succ})
			}
			continue
		}
		post = append(post, top.block)
		stack = stack[:len(stack)-1]
	}

	order := make([]*Block, 0, len(g.blocks))
	for i := len(post) - 1; i >= 0; i-- {
		order = append(order, post[i])
	}
	for _, b := range g.blocks {
		if !visited[b.id] {
			order = append(order, b)
		}
	}
	return order
}

package menus

import "sort"

// BuildTree arranges a flat menu list into trees. Nodes whose parent is absent from
// the list become roots, as do nodes caught in a parent loop, so flattening the
// result yields exactly the input set. Every sibling group is sorted by
// (sort_order, id).
func BuildTree(flat []Menu) []*TreeNode {
	index := make(map[int64]int, len(flat))
	for i, m := range flat {
		index[m.ID] = i
	}

	less := func(a, b int) bool {
		if flat[a].SortOrder != flat[b].SortOrder {
			return flat[a].SortOrder < flat[b].SortOrder
		}
		return flat[a].ID < flat[b].ID
	}

	children := make([][]int, len(flat))
	var roots []int
	for i, m := range flat {
		if m.ParentID != nil {
			if p, ok := index[*m.ParentID]; ok && p != i {
				children[p] = append(children[p], i)
				continue
			}
		}
		roots = append(roots, i)
	}
	for i := range children {
		sort.Slice(children[i], func(a, b int) bool { return less(children[i][a], children[i][b]) })
	}

	attached := make([]bool, len(flat))
	var build func(i int) *TreeNode
	build = func(i int) *TreeNode {
		attached[i] = true
		node := &TreeNode{Menu: flat[i], Children: []*TreeNode{}}
		for _, c := range children[i] {
			if !attached[c] {
				node.Children = append(node.Children, build(c))
			}
		}
		return node
	}

	sort.Slice(roots, func(a, b int) bool { return less(roots[a], roots[b]) })
	result := make([]*TreeNode, 0, len(roots))
	for _, r := range roots {
		result = append(result, build(r))
	}

	// whatever is still unattached hangs off a parent loop
	order := make([]int, len(flat))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return less(order[a], order[b]) })
	promoted := false
	for _, i := range order {
		if !attached[i] {
			result = append(result, build(i))
			promoted = true
		}
	}
	if promoted {
		sort.Slice(result, func(a, b int) bool {
			x, y := result[a], result[b]
			if x.SortOrder != y.SortOrder {
				return x.SortOrder < y.SortOrder
			}
			return x.ID < y.ID
		})
	}

	return result
}

// Flatten returns the nodes of a tree in depth-first pre-order
func Flatten(nodes []*TreeNode) []Menu {
	var out []Menu
	var walk func([]*TreeNode)
	walk = func(level []*TreeNode) {
		for _, n := range level {
			out = append(out, n.Menu)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

// Package menus stores the hierarchical menu catalog and builds trees from it.
//
// Menu nodes reference their parent by id. The parent graph is kept acyclic:
// Create only accepts an existing parent, Update never changes the parent, and
// BatchReorder validates every proposed parent in the batch before writing.
//
// # Tree building
//
// BuildTree is a pure function over a flat slice. It indexes nodes by id into an
// arena, records child indexes per node, and sorts every sibling group by
// (sort_order, id), so the result does not depend on input order.
//
//	flat, _ := store.ListAll(ctx)
//	tree := menus.BuildTree(flat)
//
// # Reordering
//
//	err := store.BatchReorder(ctx, []menus.ReorderItem{
//		{ID: 4, ParentID: menus.SetParent(2)},
//		{ID: 5, SortOrder: &order},
//	})
//	if errors.Is(err, menus.ErrCycle) {
//		// nothing was written
//	}
package menus

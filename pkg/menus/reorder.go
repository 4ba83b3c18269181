package menus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/sirupsen/logrus"
)

// position is the structural state of one menu
type position struct {
	parentID  *int64
	sortOrder int
}

// reorderChange is the minimal column set to write for one menu
type reorderChange struct {
	id           int64
	setParent    bool
	parentID     *int64
	setSortOrder bool
	sortOrder    int
}

// BatchReorder moves and reorders menus. The whole batch is validated against the
// current catalog overlaid with every proposed parent before anything is written;
// a self parent or a cycle rejects the batch. Only the columns an item changes are
// updated, so an item without sort_order keeps its position among siblings.
func (s *Store) BatchReorder(ctx context.Context, items []ReorderItem) error {
	if len(items) == 0 {
		return apperr.BadRequest("at least one item is required")
	}
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if item.ID <= 0 {
			return apperr.BadRequest("invalid menu id: %d", item.ID)
		}
		if seen[item.ID] {
			return apperr.BadRequest("menu %d appears more than once", item.ID)
		}
		seen[item.ID] = true
	}

	var applied int
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		nodes, err := loadPositions(ctx, tx)
		if err != nil {
			return err
		}

		changes, err := planReorder(nodes, items)
		if err != nil {
			return err
		}

		for _, change := range changes {
			if err := applyChange(ctx, tx, change); err != nil {
				return err
			}
		}
		applied = len(changes)
		return nil
	})
	if err != nil {
		return err
	}

	if applied > 0 {
		s.invalidate(ctx)
	}
	s.log.WithFields(logrus.Fields{
		"items":   len(items),
		"changed": applied,
	}).Debug("reordered menus")
	return nil
}

func loadPositions(ctx context.Context, tx *sql.Tx) (map[int64]position, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, parent_id, sort_order FROM menus FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu hierarchy: %w", err)
	}
	defer rows.Close()

	nodes := make(map[int64]position)
	for rows.Next() {
		var id int64
		var parentID sql.NullInt64
		var pos position
		if err := rows.Scan(&id, &parentID, &pos.sortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan menu position: %w", err)
		}
		if parentID.Valid {
			p := parentID.Int64
			pos.parentID = &p
		}
		nodes[id] = pos
	}
	return nodes, rows.Err()
}

// planReorder validates items against nodes and returns the writes to perform
func planReorder(nodes map[int64]position, items []ReorderItem) ([]reorderChange, error) {
	proposed := make(map[int64]*int64, len(nodes))
	for id, pos := range nodes {
		proposed[id] = pos.parentID
	}

	for _, item := range items {
		if _, ok := nodes[item.ID]; !ok {
			return nil, apperr.NotFound("menu not found: %d", item.ID)
		}
		if !item.ParentID.Set {
			continue
		}
		if parent := item.ParentID.ID; parent != nil {
			if *parent == item.ID {
				return nil, ErrSelfParent
			}
			if _, ok := nodes[*parent]; !ok {
				return nil, apperr.NotFound("parent menu not found: %d", *parent)
			}
		}
		proposed[item.ID] = item.ParentID.ID
	}

	for _, item := range items {
		if !item.ParentID.Set || item.ParentID.ID == nil {
			continue
		}
		if reachesAncestor(proposed, *item.ParentID.ID, item.ID) {
			return nil, ErrCycle
		}
	}

	var changes []reorderChange
	for _, item := range items {
		current := nodes[item.ID]
		change := reorderChange{id: item.ID}

		if item.ParentID.Set && !sameParent(current.parentID, item.ParentID.ID) {
			change.setParent = true
			change.parentID = item.ParentID.ID
		}
		if item.SortOrder != nil && *item.SortOrder != current.sortOrder {
			change.setSortOrder = true
			change.sortOrder = *item.SortOrder
		}
		if change.setParent || change.setSortOrder {
			changes = append(changes, change)
		}
	}
	return changes, nil
}

// reachesAncestor walks upward from start and reports whether it reaches target.
// A walk longer than the node count means the hierarchy already loops, which is
// treated as reaching it.
func reachesAncestor(parents map[int64]*int64, start, target int64) bool {
	current := start
	for steps := 0; steps <= len(parents); steps++ {
		if current == target {
			return true
		}
		parent, ok := parents[current]
		if !ok || parent == nil {
			return false
		}
		current = *parent
	}
	return true
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func applyChange(ctx context.Context, tx *sql.Tx, change reorderChange) error {
	var sets []string
	var args []any
	if change.setParent {
		args = append(args, change.parentID)
		sets = append(sets, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if change.setSortOrder {
		args = append(args, change.sortOrder)
		sets = append(sets, fmt.Sprintf("sort_order = $%d", len(args)))
	}
	args = append(args, time.Now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, change.id)

	query := fmt.Sprintf(`UPDATE menus SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to reorder menu %d: %w", change.id, err)
	}
	return nil
}

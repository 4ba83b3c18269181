package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/platinummonkey/orgaccess/pkg/menus"
)

// AssignMenusToRole replaces the menus bound to a role. An empty slice clears the
// bindings.
func (s *Store) AssignMenusToRole(ctx context.Context, roleID int64, menuIDs []int64) error {
	if menuIDs == nil {
		return apperr.BadRequest("menu_ids is required")
	}
	ids, err := normalizeIDs(menuIDs, "menu")
	if err != nil {
		return err
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireRole(ctx, tx, roleID); err != nil {
			return err
		}

		found, err := menus.ExistingIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if !found[id] {
				return apperr.NotFound("menu not found: %d", id)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM role_menus WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("failed to clear role menus: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_menus (role_id, menu_id) SELECT $1, unnest($2::bigint[])`,
			roleID, pq.Array(ids),
		); err != nil {
			return fmt.Errorf("failed to bind role menus: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// GetMenusForRole returns the ids of the menus bound to a role
func (s *Store) GetMenusForRole(ctx context.Context, roleID int64) ([]int64, error) {
	if err := requireRole(ctx, s.db, roleID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT menu_id FROM role_menus WHERE role_id = $1 ORDER BY menu_id`, roleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get role menus: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan menu id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/sirupsen/logrus"
)

// AssignRolesInOrg replaces the roles the user holds in the organization. An empty
// slice clears them and a nil slice is rejected.
func (s *Store) AssignRolesInOrg(ctx context.Context, userID, orgID int64, roleIDs []int64) error {
	if roleIDs == nil {
		return apperr.BadRequest("role_ids is required")
	}
	ids, err := normalizeIDs(roleIDs, "role")
	if err != nil {
		return err
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		member, err := db.Exists(ctx, tx,
			`SELECT EXISTS(SELECT 1 FROM user_organizations WHERE user_id = $1 AND org_id = $2)`,
			userID, orgID,
		)
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if !member {
			return apperr.NotFound("user %d is not a member of organization context %d", userID, orgID)
		}

		if err := requireRoles(ctx, tx, ids); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_org_roles WHERE user_id = $1 AND org_id = $2`, userID, orgID,
		); err != nil {
			return fmt.Errorf("failed to clear role assignments: %w", err)
		}

		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_org_roles (user_id, org_id, role_id) SELECT $1, $2, unnest($3::bigint[])`,
			userID, orgID, pq.Array(ids),
		); err != nil {
			return fmt.Errorf("failed to assign roles: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"org_id":  orgID,
		"roles":   len(ids),
	}).Info("roles assigned")
	return nil
}

func requireRoles(ctx context.Context, q db.Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := q.QueryContext(ctx, `SELECT id FROM roles WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to look up roles: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan role id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate roles: %w", err)
	}

	for _, id := range ids {
		if !found[id] {
			return apperr.NotFound("role not found: %d", id)
		}
	}
	return nil
}

// GetRolesInOrg returns the enabled roles the user holds in the organization
func (s *Store) GetRolesInOrg(ctx context.Context, userID, orgID int64) ([]Role, error) {
	query := `
		SELECT r.id, r.code, r.name, r.description, r.is_system, r.is_disabled, r.sort_order,
			r.created_at, r.updated_at
		FROM roles r
		JOIN user_org_roles uor ON uor.role_id = r.id
		WHERE uor.user_id = $1 AND uor.org_id = $2 AND NOT r.is_disabled
		ORDER BY r.sort_order ASC, r.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// GetRolesForUser returns the user's roles in orgID, or in the primary organization
// when orgID is nil
func (s *Store) GetRolesForUser(ctx context.Context, userID int64, orgID *int64) ([]Role, error) {
	if orgID != nil {
		return s.GetRolesInOrg(ctx, userID, *orgID)
	}

	var primary int64
	err := s.db.QueryRowContext(ctx,
		`SELECT org_id FROM user_organizations WHERE user_id = $1 AND is_primary`, userID,
	).Scan(&primary)
	if err == sql.ErrNoRows {
		return nil, ErrNoPrimaryOrg
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get primary organization: %w", err)
	}
	return s.GetRolesInOrg(ctx, userID, primary)
}

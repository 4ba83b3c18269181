package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/db"
)

// SetUserMenuOverride grants or denies one menu to a user regardless of roles
func (s *Store) SetUserMenuOverride(ctx context.Context, userID, menuID int64, permType PermissionType) (*MenuOverride, error) {
	if !permType.Valid() {
		return nil, apperr.BadRequest("permission_type must be grant or deny")
	}
	if err := requireUser(ctx, s.db, userID); err != nil {
		return nil, err
	}
	ok, err := db.Exists(ctx, s.db, `SELECT EXISTS(SELECT 1 FROM menus WHERE id = $1)`, menuID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("menu not found: %d", menuID)
	}

	query := `
		INSERT INTO user_menu_permissions (user_id, menu_id, permission_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, menu_id) DO UPDATE
		SET permission_type = EXCLUDED.permission_type, updated_at = EXCLUDED.updated_at
		RETURNING user_id, menu_id, permission_type, created_at, updated_at
	`

	var o MenuOverride
	var pt string
	err = s.db.QueryRowContext(ctx, query, userID, menuID, string(permType), time.Now()).
		Scan(&o.UserID, &o.MenuID, &pt, &o.CreatedAt, &o.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		// deleted after the existence checks
		return nil, apperr.NotFound("user %d or menu %d not found", userID, menuID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set menu override: %w", err)
	}
	o.PermissionType = PermissionType(pt)

	s.invalidate(ctx)
	return &o, nil
}

// RemoveUserMenuOverride deletes the user's override of one menu
func (s *Store) RemoveUserMenuOverride(ctx context.Context, userID, menuID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_menu_permissions WHERE user_id = $1 AND menu_id = $2`, userID, menuID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove menu override: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("menu override not found for user %d and menu %d", userID, menuID)
	}

	s.invalidate(ctx)
	return nil
}

// ListUserMenuOverrides returns every override of the user ordered by menu
func (s *Store) ListUserMenuOverrides(ctx context.Context, userID int64) ([]MenuOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, menu_id, permission_type, created_at, updated_at
		FROM user_menu_permissions
		WHERE user_id = $1
		ORDER BY menu_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu overrides: %w", err)
	}
	defer rows.Close()

	overrides := []MenuOverride{}
	for rows.Next() {
		var o MenuOverride
		var pt string
		if err := rows.Scan(&o.UserID, &o.MenuID, &pt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan menu override: %w", err)
		}
		o.PermissionType = PermissionType(pt)
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

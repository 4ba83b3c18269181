package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/db"
)

// CreateRole inserts a role. Without an explicit sort order the role is placed
// after every existing role.
func (s *Store) CreateRole(ctx context.Context, in CreateRoleInput) (*Role, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO roles (code, name, description, is_system, is_disabled, sort_order)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::int, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM roles)))
		RETURNING ` + roleColumns

	var sortOrder sql.NullInt64
	if in.SortOrder != nil {
		sortOrder = sql.NullInt64{Int64: int64(*in.SortOrder), Valid: true}
	}

	role, err := scanRole(s.db.QueryRowContext(ctx, query,
		in.Code, in.Name, in.Description, in.IsSystem, in.IsDisabled, sortOrder,
	))
	if db.IsUniqueViolation(err) {
		return nil, apperr.Conflict("role code already exists: %s", in.Code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.log.WithField("role_code", role.Code).Info("role created")
	return role, nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, id int64) (*Role, error) {
	return getRole(ctx, s.db, id, false)
}

func getRole(ctx context.Context, q db.Querier, id int64, forUpdate bool) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	role, err := scanRole(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("role not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetRoleByCode retrieves a role by its unique code
func (s *Store) GetRoleByCode(ctx context.Context, code string) (*Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE code = $1`, code,
	))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("role not found: %s", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles returns every role ordered by sort order
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles ORDER BY sort_order ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
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

// UpdateRole applies the non-nil fields of in. The code and disabled flag of a
// system role cannot change.
func (s *Store) UpdateRole(ctx context.Context, id int64, in UpdateRoleInput) (*Role, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var updated *Role
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := getRole(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if current.IsSystem && in.touchesProtected(current) {
			return ErrSystemRoleField
		}

		var sets []string
		var args []any
		add := func(column string, value any) {
			args = append(args, value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}

		if in.Code != nil {
			add("code", *in.Code)
		}
		if in.Name != nil {
			add("name", *in.Name)
		}
		if in.Description != nil {
			add("description", *in.Description)
		}
		if in.IsDisabled != nil {
			add("is_disabled", *in.IsDisabled)
		}
		if in.SortOrder != nil {
			add("sort_order", *in.SortOrder)
		}
		if len(sets) == 0 {
			updated = current
			return nil
		}
		add("updated_at", time.Now())

		args = append(args, id)
		query := fmt.Sprintf(`UPDATE roles SET %s WHERE id = $%d RETURNING %s`,
			strings.Join(sets, ", "), len(args), roleColumns)

		role, err := scanRole(tx.QueryRowContext(ctx, query, args...))
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("role code already exists: %s", *in.Code)
		}
		if err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		updated = role
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return updated, nil
}

// DeleteRole removes a role and its menu bindings. System roles and roles still
// assigned to any user in any organization are refused.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		role, err := getRole(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return ErrSystemRole
		}

		var assigned int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_org_roles WHERE role_id = $1`, id,
		).Scan(&assigned)
		if err != nil {
			return fmt.Errorf("failed to count role assignments: %w", err)
		}
		if assigned > 0 {
			return ErrRoleInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM role_menus WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete role menus: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	s.log.WithField("role_id", id).Info("role deleted")
	return nil
}

// EnsureRole creates the role when its code is unknown and returns the stored role
// either way
func (s *Store) EnsureRole(ctx context.Context, in CreateRoleInput) (*Role, bool, error) {
	role, err := s.GetRoleByCode(ctx, in.Code)
	if err == nil {
		return role, false, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, err
	}

	role, err = s.CreateRole(ctx, in)
	if apperr.Is(err, apperr.KindConflict) {
		role, err = s.GetRoleByCode(ctx, in.Code)
		return role, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return role, true, nil
}

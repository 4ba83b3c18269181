package menus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/platinummonkey/orgaccess/pkg/permcache"
	"github.com/sirupsen/logrus"
)

const menuColumns = `id, name, title, path, component, icon, redirect, permission_code, meta,
	parent_id, sort_order, level, menu_type, is_hidden, is_disabled, is_system, created_at, updated_at`

// Store handles menu catalog persistence
type Store struct {
	db    *sql.DB
	log   logrus.FieldLogger
	cache permcache.Cache
}

// NewStore creates a new menu store
func NewStore(conn *sql.DB, log logrus.FieldLogger, cache permcache.Cache) *Store {
	if cache == nil {
		cache = permcache.Noop{}
	}
	return &Store{db: conn, log: log, cache: cache}
}

func (s *Store) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("failed to invalidate permission cache")
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMenu(row scanner) (*Menu, error) {
	var m Menu
	var path, component, icon, redirect, permissionCode sql.NullString
	var meta []byte
	var parentID sql.NullInt64
	var menuType string

	err := row.Scan(
		&m.ID, &m.Name, &m.Title, &path, &component, &icon, &redirect, &permissionCode, &meta,
		&parentID, &m.SortOrder, &m.Level, &menuType, &m.IsHidden, &m.IsDisabled, &m.IsSystem,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Path = path.String
	m.Component = component.String
	m.Icon = icon.String
	m.Redirect = redirect.String
	m.PermissionCode = permissionCode.String
	m.MenuType = MenuType(menuType)
	if len(meta) > 0 {
		m.Meta = append([]byte(nil), meta...)
	}
	if parentID.Valid {
		id := parentID.Int64
		m.ParentID = &id
	}
	return &m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullMeta(meta []byte) any {
	if len(meta) == 0 || string(meta) == "null" {
		return nil
	}
	return string(meta)
}

// Create inserts a menu. The level is derived from the parent.
func (s *Store) Create(ctx context.Context, in CreateInput) (*Menu, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var menu *Menu
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		level := 1
		if in.ParentID != nil {
			var parentLevel int
			err := tx.QueryRowContext(ctx, `SELECT level FROM menus WHERE id = $1`, *in.ParentID).Scan(&parentLevel)
			if err == sql.ErrNoRows {
				return apperr.NotFound("parent menu not found: %d", *in.ParentID)
			}
			if err != nil {
				return fmt.Errorf("failed to get parent menu: %w", err)
			}
			level = parentLevel + 1
		}

		var sortOrder int
		if in.SortOrder != nil {
			sortOrder = *in.SortOrder
		} else {
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM menus WHERE parent_id IS NOT DISTINCT FROM $1`,
				in.ParentID,
			).Scan(&sortOrder)
			if err != nil {
				return fmt.Errorf("failed to compute sort order: %w", err)
			}
		}

		query := `
			INSERT INTO menus (name, title, path, component, icon, redirect, permission_code, meta,
				parent_id, sort_order, level, menu_type, is_hidden, is_disabled, is_system)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING ` + menuColumns

		created, err := scanMenu(tx.QueryRowContext(ctx, query,
			in.Name,
			in.Title,
			nullString(in.Path),
			nullString(in.Component),
			nullString(in.Icon),
			nullString(in.Redirect),
			nullString(in.PermissionCode),
			nullMeta(in.Meta),
			in.ParentID,
			sortOrder,
			level,
			string(in.MenuType),
			in.IsHidden,
			in.IsDisabled,
			in.IsSystem,
		))
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("menu name already exists: %s", in.Name)
		}
		if err != nil {
			return fmt.Errorf("failed to create menu: %w", err)
		}

		menu = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return menu, nil
}

// Get retrieves a menu by ID
func (s *Store) Get(ctx context.Context, id int64) (*Menu, error) {
	return getMenu(ctx, s.db, id, false)
}

func getMenu(ctx context.Context, q db.Querier, id int64, forUpdate bool) (*Menu, error) {
	query := `SELECT ` + menuColumns + ` FROM menus WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	menu, err := scanMenu(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("menu not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu: %w", err)
	}
	return menu, nil
}

// Update applies field-level changes. Protected fields of a system menu cannot
// change.
func (s *Store) Update(ctx context.Context, id int64, in UpdateInput) (*Menu, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var menu *Menu
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := getMenu(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if current.IsSystem && in.touchesProtected(current) {
			return ErrSystemMenuField
		}

		var sets []string
		var args []any
		set := func(column string, value any) {
			args = append(args, value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}

		if in.Name != nil {
			set("name", *in.Name)
		}
		if in.Title != nil {
			set("title", *in.Title)
		}
		if in.Path != nil {
			set("path", nullString(*in.Path))
		}
		if in.Component != nil {
			set("component", nullString(*in.Component))
		}
		if in.Icon != nil {
			set("icon", nullString(*in.Icon))
		}
		if in.Redirect != nil {
			set("redirect", nullString(*in.Redirect))
		}
		if in.PermissionCode != nil {
			set("permission_code", nullString(*in.PermissionCode))
		}
		if in.Meta != nil {
			set("meta", nullMeta(*in.Meta))
		}
		if in.SortOrder != nil {
			set("sort_order", *in.SortOrder)
		}
		if in.MenuType != nil {
			set("menu_type", string(*in.MenuType))
		}
		if in.IsHidden != nil {
			set("is_hidden", *in.IsHidden)
		}
		if in.IsDisabled != nil {
			set("is_disabled", *in.IsDisabled)
		}

		if len(sets) == 0 {
			menu = current
			return nil
		}

		set("updated_at", time.Now())
		args = append(args, id)
		query := fmt.Sprintf(`UPDATE menus SET %s WHERE id = $%d RETURNING %s`,
			strings.Join(sets, ", "), len(args), menuColumns)

		updated, err := scanMenu(tx.QueryRowContext(ctx, query, args...))
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("menu name already exists: %s", *in.Name)
		}
		if err != nil {
			return fmt.Errorf("failed to update menu: %w", err)
		}

		menu = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return menu, nil
}

// Delete removes a menu together with its role bindings and user overrides
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var isSystem bool
		err := tx.QueryRowContext(ctx, `SELECT is_system FROM menus WHERE id = $1 FOR UPDATE`, id).Scan(&isSystem)
		if err == sql.ErrNoRows {
			return apperr.NotFound("menu not found: %d", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get menu: %w", err)
		}
		if isSystem {
			return ErrSystemMenu
		}

		hasChildren, err := db.Exists(ctx, tx, `SELECT EXISTS(SELECT 1 FROM menus WHERE parent_id = $1)`, id)
		if err != nil {
			return fmt.Errorf("failed to check child menus: %w", err)
		}
		if hasChildren {
			return ErrHasChildren
		}

		statements := []struct {
			query string
			what  string
		}{
			{`DELETE FROM role_menus WHERE menu_id = $1`, "role bindings"},
			{`DELETE FROM user_menu_permissions WHERE menu_id = $1`, "user overrides"},
			{`DELETE FROM menus WHERE id = $1`, "menu"},
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt.query, id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", stmt.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// ListAll returns every menu sorted by (sort_order, id)
func (s *Store) ListAll(ctx context.Context) ([]Menu, error) {
	return s.list(ctx, `SELECT `+menuColumns+` FROM menus ORDER BY sort_order ASC, id ASC`)
}

// ListEnabled returns every menu that is not disabled, sorted by (sort_order, id)
func (s *Store) ListEnabled(ctx context.Context) ([]Menu, error) {
	return s.list(ctx, `SELECT `+menuColumns+` FROM menus WHERE NOT is_disabled ORDER BY sort_order ASC, id ASC`)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Menu, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list menus: %w", err)
	}
	defer rows.Close()

	menus := []Menu{}
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu: %w", err)
		}
		menus = append(menus, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate menus: %w", err)
	}
	return menus, nil
}

// ExistingIDs returns the subset of ids present in the catalog
func ExistingIDs(ctx context.Context, q db.Querier, ids []int64) (map[int64]bool, error) {
	found := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := q.QueryContext(ctx, `SELECT id FROM menus WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to look up menus: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan menu id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

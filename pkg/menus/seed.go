package menus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/sirupsen/logrus"
)

// SeedMenu describes a catalog entry and its children in a seed file
type SeedMenu struct {
	Name           string         `yaml:"name"`
	Title          string         `yaml:"title"`
	Path           string         `yaml:"path"`
	Component      string         `yaml:"component"`
	Icon           string         `yaml:"icon"`
	Redirect       string         `yaml:"redirect"`
	PermissionCode string         `yaml:"permission_code"`
	Meta           map[string]any `yaml:"meta"`
	MenuType       MenuType       `yaml:"menu_type"`
	SortOrder      int            `yaml:"sort_order"`
	IsHidden       bool           `yaml:"is_hidden"`
	IsSystem       bool           `yaml:"is_system"`
	Children       []SeedMenu     `yaml:"children"`
}

// Seed inserts the given menus by name. Menus that already exist are left as they
// are. It returns the id of every seeded name.
func (s *Store) Seed(ctx context.Context, seed []SeedMenu) (map[string]int64, error) {
	ids := make(map[string]int64)
	inserted := 0

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var insert func(items []SeedMenu, parentID *int64, level int) error
		insert = func(items []SeedMenu, parentID *int64, level int) error {
			for i, item := range items {
				id, stored, created, err := seedOne(ctx, tx, item, parentID, level, i+1)
				if err != nil {
					return err
				}
				if created {
					inserted++
				}
				ids[item.Name] = id

				// children follow the level the parent has in the store, which differs
				// from its depth in the file once it has been moved
				parent := id
				if err := insert(item.Children, &parent, stored+1); err != nil {
					return err
				}
			}
			return nil
		}
		return insert(seed, nil, 1)
	})
	if err != nil {
		return nil, err
	}

	if inserted > 0 {
		s.invalidate(ctx)
	}
	s.log.WithFields(logrus.Fields{
		"menus":    len(ids),
		"inserted": inserted,
	}).Info("seeded menu catalog")
	return ids, nil
}

// seedOne inserts item unless a menu with its name exists. It returns the menu id,
// its stored level and whether it was inserted.
func seedOne(ctx context.Context, tx *sql.Tx, item SeedMenu, parentID *int64, level, position int) (int64, int, bool, error) {
	in := CreateInput{
		Name:     item.Name,
		Title:    item.Title,
		MenuType: item.MenuType,
		ParentID: parentID,
	}
	if err := in.Validate(); err != nil {
		return 0, 0, false, fmt.Errorf("invalid seed menu %q: %w", item.Name, err)
	}

	var meta any
	if len(item.Meta) > 0 {
		raw, err := json.Marshal(item.Meta)
		if err != nil {
			return 0, 0, false, fmt.Errorf("failed to marshal meta of %q: %w", item.Name, err)
		}
		meta = string(raw)
	}

	sortOrder := item.SortOrder
	if sortOrder == 0 {
		sortOrder = position
	}

	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO menus (name, title, path, component, icon, redirect, permission_code, meta,
			parent_id, sort_order, level, menu_type, is_hidden, is_system)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`,
		item.Name,
		item.Title,
		nullString(item.Path),
		nullString(item.Component),
		nullString(item.Icon),
		nullString(item.Redirect),
		nullString(item.PermissionCode),
		meta,
		parentID,
		sortOrder,
		level,
		string(in.MenuType),
		item.IsHidden,
		item.IsSystem,
	).Scan(&id)
	if err == nil {
		return id, level, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, 0, false, fmt.Errorf("failed to seed menu %q: %w", item.Name, err)
	}

	var stored int
	err = tx.QueryRowContext(ctx, `SELECT id, level FROM menus WHERE name = $1`, item.Name).Scan(&id, &stored)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to get seeded menu %q: %w", item.Name, err)
	}
	return id, stored, false, nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns every schema migration in application order. organizations and
// users are owned by the surrounding platform; they are created here only when absent
// so the engine can run standalone.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations and users tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					parent_id BIGINT REFERENCES organizations(id) ON DELETE RESTRICT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_organizations_parent_id ON organizations(parent_id);

				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					email VARCHAR(255),
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create user_organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_organizations (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					org_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					is_primary BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, org_id)
				);

				CREATE INDEX idx_user_organizations_org_id ON user_organizations(org_id);
				CREATE UNIQUE INDEX idx_user_organizations_one_primary
					ON user_organizations(user_id) WHERE is_primary;
			`,
		},
		{
			Version:     3,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(100) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					is_disabled BOOLEAN NOT NULL DEFAULT FALSE,
					sort_order INT NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_roles_sort_order ON roles(sort_order);
			`,
		},
		{
			Version:     4,
			Description: "Create user_org_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_org_roles (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					org_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
					assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, org_id, role_id)
				);

				CREATE INDEX idx_user_org_roles_role_id ON user_org_roles(role_id);
				CREATE INDEX idx_user_org_roles_org_id ON user_org_roles(org_id);
			`,
		},
		{
			Version:     5,
			Description: "Create menus table",
			SQL: `
				CREATE TABLE IF NOT EXISTS menus (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					title VARCHAR(255) NOT NULL,
					path VARCHAR(512),
					component VARCHAR(512),
					icon VARCHAR(255),
					redirect VARCHAR(512),
					permission_code VARCHAR(255),
					meta JSONB,
					parent_id BIGINT REFERENCES menus(id) ON DELETE RESTRICT,
					sort_order INT NOT NULL DEFAULT 0,
					level INT NOT NULL DEFAULT 1,
					menu_type VARCHAR(20) NOT NULL DEFAULT 'menu',
					is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
					is_disabled BOOLEAN NOT NULL DEFAULT FALSE,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CHECK (menu_type IN ('menu', 'button', 'page')),
					CHECK (parent_id IS NULL OR parent_id <> id)
				);

				CREATE INDEX idx_menus_parent_id ON menus(parent_id);
				CREATE INDEX idx_menus_sort_order ON menus(sort_order);
			`,
		},
		{
			Version:     6,
			Description: "Create role_menus table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_menus (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					menu_id BIGINT NOT NULL REFERENCES menus(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, menu_id)
				);

				CREATE INDEX idx_role_menus_menu_id ON role_menus(menu_id);
			`,
		},
		{
			Version:     7,
			Description: "Create user_menu_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_menu_permissions (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					menu_id BIGINT NOT NULL REFERENCES menus(id) ON DELETE CASCADE,
					permission_type VARCHAR(10) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, menu_id),
					CHECK (permission_type IN ('grant', 'deny'))
				);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, conn *sql.DB, log logrus.FieldLogger) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	for _, migration := range Migrations() {
		if applied[migration.Version] {
			continue
		}

		entry := log.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		})
		entry.Info("running migration")

		err := WithTx(ctx, conn, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				migration.Version, migration.Description,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		entry.Info("migration completed")
	}

	return nil
}

func appliedVersions(ctx context.Context, conn *sql.DB) (map[int]bool, error) {
	rows, err := conn.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		versions[version] = true
	}
	return versions, rows.Err()
}

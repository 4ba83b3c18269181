package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/platinummonkey/orgaccess/pkg/menus"
	"github.com/platinummonkey/orgaccess/pkg/rbac"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSeed []byte

// File is the content of a seed file
type File struct {
	Roles []rbac.CreateRoleInput `yaml:"roles"`
	Menus []menus.SeedMenu       `yaml:"menus"`
	// RoleMenus maps a role code to the names of the menus it unlocks
	RoleMenus map[string][]string `yaml:"role_menus"`
}

// RoleStore is the part of *rbac.Store used for seeding
type RoleStore interface {
	EnsureRole(ctx context.Context, in rbac.CreateRoleInput) (*rbac.Role, bool, error)
	GetMenusForRole(ctx context.Context, roleID int64) ([]int64, error)
	AssignMenusToRole(ctx context.Context, roleID int64, menuIDs []int64) error
}

// MenuStore is the part of *menus.Store used for seeding
type MenuStore interface {
	Seed(ctx context.Context, seed []menus.SeedMenu) (map[string]int64, error)
}

// Result summarizes what Apply changed
type Result struct {
	RolesCreated int
	Menus        map[string]int64
	RolesBound   int
}

// Default returns the built-in seed
func Default() (*File, error) {
	return Parse(defaultSeed)
}

// Load reads a seed file from disk
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates seed YAML
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks that codes and names are present and unique and that every
// binding refers to a seeded role and menu
func (f *File) Validate() error {
	roles := make(map[string]bool, len(f.Roles))
	for _, r := range f.Roles {
		if r.Code == "" {
			return fmt.Errorf("seed role without code")
		}
		if roles[r.Code] {
			return fmt.Errorf("duplicate seed role: %s", r.Code)
		}
		roles[r.Code] = true
	}

	names := make(map[string]bool)
	var walk func(items []menus.SeedMenu) error
	walk = func(items []menus.SeedMenu) error {
		for _, m := range items {
			if m.Name == "" {
				return fmt.Errorf("seed menu without name")
			}
			if names[m.Name] {
				return fmt.Errorf("duplicate seed menu: %s", m.Name)
			}
			names[m.Name] = true
			if err := walk(m.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(f.Menus); err != nil {
		return err
	}

	for code, menuNames := range f.RoleMenus {
		if !roles[code] {
			return fmt.Errorf("role_menus refers to unknown role: %s", code)
		}
		for _, name := range menuNames {
			if !names[name] {
				return fmt.Errorf("role_menus for %s refers to unknown menu: %s", code, name)
			}
		}
	}
	return nil
}

// Apply creates missing roles and menus, then binds menus to roles that have no
// bindings yet
func Apply(ctx context.Context, roleStore RoleStore, menuStore MenuStore, f *File, log logrus.FieldLogger) (*Result, error) {
	result := &Result{}

	roleIDs := make(map[string]int64, len(f.Roles))
	for _, in := range f.Roles {
		role, created, err := roleStore.EnsureRole(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to seed role %s: %w", in.Code, err)
		}
		roleIDs[in.Code] = role.ID
		if created {
			result.RolesCreated++
		}
	}

	menuIDs, err := menuStore.Seed(ctx, f.Menus)
	if err != nil {
		return nil, fmt.Errorf("failed to seed menus: %w", err)
	}
	result.Menus = menuIDs

	for code, names := range f.RoleMenus {
		roleID := roleIDs[code]
		existing, err := roleStore.GetMenusForRole(ctx, roleID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			continue
		}

		ids := make([]int64, 0, len(names))
		for _, name := range names {
			ids = append(ids, menuIDs[name])
		}
		if err := roleStore.AssignMenusToRole(ctx, roleID, ids); err != nil {
			return nil, fmt.Errorf("failed to bind menus to role %s: %w", code, err)
		}
		result.RolesBound++
	}

	log.WithFields(logrus.Fields{
		"roles_created": result.RolesCreated,
		"menus":         len(result.Menus),
		"roles_bound":   result.RolesBound,
	}).Info("seed applied")
	return result, nil
}

package api

import (
	"context"

	"github.com/platinummonkey/orgaccess/pkg/menus"
	"github.com/platinummonkey/orgaccess/pkg/orgs"
	"github.com/platinummonkey/orgaccess/pkg/rbac"
)

// MembershipService is implemented by *orgs.Store
type MembershipService interface {
	LinkUserOrgs(ctx context.Context, userID int64, orgIDs []int64, primaryOrgID *int64) ([]int64, error)
	ListUserOrgs(ctx context.Context, userID int64) ([]orgs.Membership, error)
	SetPrimary(ctx context.Context, userID, orgID int64) error
	MoveUser(ctx context.Context, userID, fromOrgID, toOrgID int64) error
	RemoveUser(ctx context.Context, orgID, userID int64) error
	ListUsers(ctx context.Context, orgID int64, opts orgs.ListUsersOptions) (*orgs.UserPage, error)
}

// RoleService is implemented by *rbac.Store
type RoleService interface {
	CreateRole(ctx context.Context, in rbac.CreateRoleInput) (*rbac.Role, error)
	GetRole(ctx context.Context, id int64) (*rbac.Role, error)
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, in rbac.UpdateRoleInput) (*rbac.Role, error)
	DeleteRole(ctx context.Context, id int64) error

	AssignRolesInOrg(ctx context.Context, userID, orgID int64, roleIDs []int64) error
	GetRolesInOrg(ctx context.Context, userID, orgID int64) ([]rbac.Role, error)
	GetRolesForUser(ctx context.Context, userID int64, orgID *int64) ([]rbac.Role, error)

	AssignMenusToRole(ctx context.Context, roleID int64, menuIDs []int64) error
	GetMenusForRole(ctx context.Context, roleID int64) ([]int64, error)

	SetUserMenuOverride(ctx context.Context, userID, menuID int64, permType rbac.PermissionType) (*rbac.MenuOverride, error)
	RemoveUserMenuOverride(ctx context.Context, userID, menuID int64) error
	ListUserMenuOverrides(ctx context.Context, userID int64) ([]rbac.MenuOverride, error)
}

// MenuService is implemented by *menus.Store
type MenuService interface {
	Create(ctx context.Context, in menus.CreateInput) (*menus.Menu, error)
	Get(ctx context.Context, id int64) (*menus.Menu, error)
	Update(ctx context.Context, id int64, in menus.UpdateInput) (*menus.Menu, error)
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]menus.Menu, error)
	BatchReorder(ctx context.Context, items []menus.ReorderItem) error
}

// PermissionService is implemented by *rbac.PermissionChecker
type PermissionService interface {
	ResolvePermissions(ctx context.Context, userID int64, orgID *int64) ([]rbac.MenuPermission, error)
	ResolveTree(ctx context.Context, userID int64, orgID *int64) ([]*menus.TreeNode, error)
	CheckPermission(ctx context.Context, userID int64, orgID *int64, menuID int64) (rbac.Decision, error)
}

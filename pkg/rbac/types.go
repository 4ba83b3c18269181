package rbac

import (
	"time"

	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/menus"
)

// AdminRoleCode is the role code that bypasses per-menu checks in an organization
const AdminRoleCode = "admin"

var (
	// ErrRoleInUse is returned when deleting a role that is still assigned
	ErrRoleInUse = apperr.Conflict("role is assigned to users")
	// ErrSystemRole is returned when deleting a system role
	ErrSystemRole = apperr.Forbidden("system role cannot be deleted")
	// ErrSystemRoleField is returned when editing a protected field of a system role
	ErrSystemRoleField = apperr.Forbidden("critical fields of a system role cannot be changed")
	// ErrNoPrimaryOrg is returned when a user without a primary organization is
	// resolved without an explicit organization
	ErrNoPrimaryOrg = apperr.NotFound("user has no primary organization")
)

// Role is a global role definition
type Role struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsSystem    bool      `json:"is_system"`
	IsDisabled  bool      `json:"is_disabled"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRoleInput holds the fields of a new role. A nil SortOrder places the role
// after every existing one.
type CreateRoleInput struct {
	Code        string `json:"code" yaml:"code"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	IsSystem    bool   `json:"is_system" yaml:"is_system"`
	IsDisabled  bool   `json:"is_disabled" yaml:"is_disabled"`
	SortOrder   *int   `json:"sort_order" yaml:"sort_order"`
}

// Validate checks required fields. The name defaults to the code.
func (in *CreateRoleInput) Validate() error {
	if in.Code == "" {
		return apperr.BadRequest("code is required")
	}
	if in.Name == "" {
		in.Name = in.Code
	}
	return nil
}

// UpdateRoleInput holds field-level changes. Nil fields are left untouched.
type UpdateRoleInput struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsDisabled  *bool   `json:"is_disabled"`
	SortOrder   *int    `json:"sort_order"`
}

// Validate checks the supplied fields
func (in *UpdateRoleInput) Validate() error {
	if in.Code != nil && *in.Code == "" {
		return apperr.BadRequest("code cannot be empty")
	}
	if in.Name != nil && *in.Name == "" {
		return apperr.BadRequest("name cannot be empty")
	}
	return nil
}

func (in *UpdateRoleInput) touchesProtected(r *Role) bool {
	return (in.Code != nil && *in.Code != r.Code) ||
		(in.IsDisabled != nil && *in.IsDisabled != r.IsDisabled)
}

// PermissionType is the kind of a per-user menu override
type PermissionType string

const (
	PermissionGrant PermissionType = "grant"
	PermissionDeny  PermissionType = "deny"
)

// Valid reports whether t is grant or deny
func (t PermissionType) Valid() bool {
	return t == PermissionGrant || t == PermissionDeny
}

// MenuOverride is a per-user grant or deny of one menu
type MenuOverride struct {
	UserID         int64          `json:"user_id"`
	MenuID         int64          `json:"menu_id"`
	PermissionType PermissionType `json:"permission_type"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Source names the rule that decided a menu
type Source string

const (
	SourceAdmin Source = "admin"
	SourceDeny  Source = "deny"
	SourceUser  Source = "user"
	SourceRole  Source = "role"
	SourceNone  Source = "none"
)

// MenuPermission is the decision for one enabled menu
type MenuPermission struct {
	menus.Menu
	HasPermission    bool   `json:"has_permission"`
	PermissionSource Source `json:"permission_source"`
}

// Decision is the result of a single menu check
type Decision struct {
	UserID  int64  `json:"user_id"`
	OrgID   int64  `json:"org_id,omitempty"`
	MenuID  int64  `json:"menu_id"`
	Allowed bool   `json:"allowed"`
	Source  Source `json:"source"`
}

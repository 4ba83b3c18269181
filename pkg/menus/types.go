package menus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/orgaccess/pkg/apperr"
)

// MenuType distinguishes navigable menus, pages and action buttons
type MenuType string

const (
	TypeMenu   MenuType = "menu"
	TypeButton MenuType = "button"
	TypePage   MenuType = "page"
)

// Valid reports whether t is a known menu type
func (t MenuType) Valid() bool {
	switch t {
	case TypeMenu, TypeButton, TypePage:
		return true
	}
	return false
}

var (
	// ErrCycle is returned when a reorder would make a menu its own ancestor
	ErrCycle = apperr.BadRequest("menu hierarchy cycle detected")
	// ErrSelfParent is returned when a reorder names a menu as its own parent
	ErrSelfParent = apperr.BadRequest("menu cannot be its own parent")
	// ErrSystemMenu is returned when deleting a system menu
	ErrSystemMenu = apperr.Forbidden("system menu cannot be deleted")
	// ErrSystemMenuField is returned when editing a protected field of a system menu
	ErrSystemMenuField = apperr.Forbidden("critical fields of a system menu cannot be changed")
	// ErrHasChildren is returned when deleting a menu that still has children
	ErrHasChildren = apperr.Conflict("menu has child menus")
)

// Menu is a node of the menu catalog
type Menu struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Title          string          `json:"title"`
	Path           string          `json:"path,omitempty"`
	Component      string          `json:"component,omitempty"`
	Icon           string          `json:"icon,omitempty"`
	Redirect       string          `json:"redirect,omitempty"`
	PermissionCode string          `json:"permission_code,omitempty"`
	Meta           json.RawMessage `json:"meta,omitempty"`
	ParentID       *int64          `json:"parent_id"`
	SortOrder      int             `json:"sort_order"`
	Level          int             `json:"level"`
	MenuType       MenuType        `json:"menu_type"`
	IsHidden       bool            `json:"is_hidden"`
	IsDisabled     bool            `json:"is_disabled"`
	IsSystem       bool            `json:"is_system"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TreeNode is a menu with its ordered children
type TreeNode struct {
	Menu
	Children []*TreeNode `json:"children"`
}

// CreateInput holds the fields of a new menu. A nil SortOrder places the menu after
// its current siblings.
type CreateInput struct {
	Name           string          `json:"name"`
	Title          string          `json:"title"`
	Path           string          `json:"path"`
	Component      string          `json:"component"`
	Icon           string          `json:"icon"`
	Redirect       string          `json:"redirect"`
	PermissionCode string          `json:"permission_code"`
	Meta           json.RawMessage `json:"meta"`
	ParentID       *int64          `json:"parent_id"`
	SortOrder      *int            `json:"sort_order"`
	MenuType       MenuType        `json:"menu_type"`
	IsHidden       bool            `json:"is_hidden"`
	IsDisabled     bool            `json:"is_disabled"`
	IsSystem       bool            `json:"is_system"`
}

// Validate checks required fields and applies the default menu type
func (in *CreateInput) Validate() error {
	if in.Name == "" {
		return apperr.BadRequest("name is required")
	}
	if in.Title == "" {
		return apperr.BadRequest("title is required")
	}
	if in.MenuType == "" {
		in.MenuType = TypeMenu
	}
	if !in.MenuType.Valid() {
		return apperr.BadRequest("invalid menu_type: %s", in.MenuType)
	}
	if in.ParentID != nil && *in.ParentID <= 0 {
		return apperr.BadRequest("invalid parent_id: %d", *in.ParentID)
	}
	return validateMeta(in.Meta)
}

// UpdateInput holds field-level changes. Nil fields are left untouched. The parent
// is changed through BatchReorder only.
type UpdateInput struct {
	Name           *string          `json:"name"`
	Title          *string          `json:"title"`
	Path           *string          `json:"path"`
	Component      *string          `json:"component"`
	Icon           *string          `json:"icon"`
	Redirect       *string          `json:"redirect"`
	PermissionCode *string          `json:"permission_code"`
	Meta           *json.RawMessage `json:"meta"`
	SortOrder      *int             `json:"sort_order"`
	MenuType       *MenuType        `json:"menu_type"`
	IsHidden       *bool            `json:"is_hidden"`
	IsDisabled     *bool            `json:"is_disabled"`
}

// Validate checks the supplied fields
func (in *UpdateInput) Validate() error {
	if in.Name != nil && *in.Name == "" {
		return apperr.BadRequest("name cannot be empty")
	}
	if in.Title != nil && *in.Title == "" {
		return apperr.BadRequest("title cannot be empty")
	}
	if in.MenuType != nil && !in.MenuType.Valid() {
		return apperr.BadRequest("invalid menu_type: %s", *in.MenuType)
	}
	if in.Meta != nil {
		return validateMeta(*in.Meta)
	}
	return nil
}

// touchesProtected reports whether applying in to m changes a field that system
// menus protect
func (in *UpdateInput) touchesProtected(m *Menu) bool {
	return (in.Name != nil && *in.Name != m.Name) ||
		(in.Path != nil && *in.Path != m.Path) ||
		(in.Component != nil && *in.Component != m.Component) ||
		(in.MenuType != nil && *in.MenuType != m.MenuType) ||
		(in.IsDisabled != nil && *in.IsDisabled != m.IsDisabled)
}

func validateMeta(meta json.RawMessage) error {
	if len(meta) == 0 || bytes.Equal(meta, []byte("null")) {
		return nil
	}
	if !json.Valid(meta) {
		return apperr.BadRequest("meta must be valid JSON")
	}
	return nil
}

// OptionalParent distinguishes an absent parent_id from an explicit null. Set is
// true whenever the key was present; a nil ID then means "move to root".
type OptionalParent struct {
	Set bool
	ID  *int64
}

// SetParent returns an OptionalParent moving a menu under id
func SetParent(id int64) OptionalParent {
	return OptionalParent{Set: true, ID: &id}
}

// RootParent returns an OptionalParent moving a menu to the top level
func RootParent() OptionalParent {
	return OptionalParent{Set: true}
}

// UnmarshalJSON is only invoked when the key is present
func (p *OptionalParent) UnmarshalJSON(data []byte) error {
	p.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		p.ID = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("parent_id must be an integer or null: %w", err)
	}
	p.ID = &id
	return nil
}

// MarshalJSON writes the parent id or null
func (p OptionalParent) MarshalJSON() ([]byte, error) {
	if p.ID == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*p.ID)
}

// ReorderItem is one entry of a BatchReorder request
type ReorderItem struct {
	ID        int64          `json:"id"`
	ParentID  OptionalParent `json:"parent_id"`
	SortOrder *int           `json:"sort_order"`
}

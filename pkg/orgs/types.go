package orgs

import (
	"time"

	"github.com/platinummonkey/orgaccess/pkg/apperr"
)

// Paging limits for ListUsers
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	// ErrPrimaryMembership is returned when removing a user's primary membership
	ErrPrimaryMembership = apperr.Conflict("must reassign primary organization first")
	// ErrSameOrganization is returned when a move names the same source and target
	ErrSameOrganization = apperr.BadRequest("source and target organization are the same")
	// ErrNoOrganizations is returned when none of the requested organizations exist
	ErrNoOrganizations = apperr.BadRequest("none of the requested organizations exist")
	// ErrSetPrimaryFailed is returned when the primary flag could not be moved
	ErrSetPrimaryFailed = apperr.BadRequest("failed to set primary organization")
)

// Membership is one user to organization association
type Membership struct {
	UserID    int64     `json:"user_id"`
	OrgID     int64     `json:"org_id"`
	OrgName   string    `json:"org_name,omitempty"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// OrgUser is a row of ListUsers
type OrgUser struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email,omitempty"`
	RealName  string   `json:"real_name,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Avatar    string   `json:"avatar,omitempty"`
	Status    string   `json:"status,omitempty"`
	IsPrimary bool     `json:"is_primary"`
	RoleCodes []string `json:"role_codes"`
}

// ListUsersOptions filters ListUsers
type ListUsersOptions struct {
	Search             string
	RoleCode           string
	IncludeDescendants bool
	Page               int
	Limit              int
}

func (o *ListUsersOptions) normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
}

// UserPage is a page of organization users
type UserPage struct {
	Users []OrgUser `json:"users"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/audit"
	"github.com/platinummonkey/orgaccess/pkg/orgs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkUserOrgs(t *testing.T) {
	ts := newTestServer(t)
	var gotUser int64
	var gotOrgs []int64
	var gotPrimary *int64
	ts.memberships.linkUserOrgsFunc = func(userID int64, orgIDs []int64, primaryOrgID *int64) ([]int64, error) {
		gotUser, gotOrgs, gotPrimary = userID, orgIDs, primaryOrgID
		return []int64{1, 2}, nil
	}

	w := ts.do(http.MethodPost, "/users/7/orgs", `{"org_ids":[1,2,99],"primary_org_id":2}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), gotUser)
	assert.Equal(t, []int64{1, 2, 99}, gotOrgs)
	require.NotNil(t, gotPrimary)
	assert.Equal(t, int64(2), *gotPrimary)
	assert.JSONEq(t, `{"user_id":7,"org_ids":[1,2]}`, w.Body.String())

	events := ts.auditEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventOrgLink, events[0].Type)
	assert.Equal(t, "7", events[0].ResourceID)
	assert.NotEmpty(t, events[0].RequestID)
}

func TestLinkUserOrgs_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		storeErr   error
		wantStatus int
	}{
		{"invalid user id", "/users/abc/orgs", `{"org_ids":[1]}`, nil, http.StatusBadRequest},
		{"zero user id", "/users/0/orgs", `{"org_ids":[1]}`, nil, http.StatusBadRequest},
		{"malformed body", "/users/7/orgs", `{"org_ids":`, nil, http.StatusBadRequest},
		{"no organizations exist", "/users/7/orgs", `{"org_ids":[99]}`, orgs.ErrNoOrganizations, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.memberships.linkUserOrgsFunc = func(int64, []int64, *int64) ([]int64, error) {
				return nil, tt.storeErr
			}

			w := ts.do(http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Empty(t, ts.auditEvents(t))
		})
	}
}

func TestListUserOrgs_Empty(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/users/7/orgs", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSetPrimaryOrg(t *testing.T) {
	ts := newTestServer(t)
	var gotUser, gotOrg int64
	ts.memberships.setPrimaryFunc = func(userID, orgID int64) error {
		gotUser, gotOrg = userID, orgID
		return nil
	}

	w := ts.do(http.MethodPut, "/orgs/3/users/7/primary", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(7), gotUser)
	assert.Equal(t, int64(3), gotOrg)

	events := ts.auditEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventOrgSetPrimary, events[0].Type)
	require.NotNil(t, events[0].OrgID)
	assert.Equal(t, int64(3), *events[0].OrgID)
}

func TestMoveUser(t *testing.T) {
	ts := newTestServer(t)
	var from, to int64
	ts.memberships.moveUserFunc = func(_ int64, fromOrgID, toOrgID int64) error {
		from, to = fromOrgID, toOrgID
		return nil
	}

	w := ts.do(http.MethodPost, "/orgs/1/users/7/move", `{"to_org_id":2}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(1), from)
	assert.Equal(t, int64(2), to)
}

func TestMoveUser_Validation(t *testing.T) {
	ts := newTestServer(t)
	ts.memberships.moveUserFunc = func(int64, int64, int64) error {
		return orgs.ErrSameOrganization
	}

	w := ts.do(http.MethodPost, "/orgs/1/users/7/move", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "to_org_id is required")

	w = ts.do(http.MethodPost, "/orgs/1/users/7/move", `{"to_org_id":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "same")
}

func TestRemoveUserFromOrg_Primary(t *testing.T) {
	ts := newTestServer(t)
	ts.memberships.removeUserFunc = func(int64, int64) error {
		return orgs.ErrPrimaryMembership
	}

	w := ts.do(http.MethodDelete, "/orgs/2/users/7", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"must reassign primary organization first"}`, w.Body.String())
	assert.Empty(t, ts.auditEvents(t))
}

func TestListOrgUsers(t *testing.T) {
	ts := newTestServer(t)
	var got orgs.ListUsersOptions
	ts.memberships.listUsersFunc = func(orgID int64, opts orgs.ListUsersOptions) (*orgs.UserPage, error) {
		got = opts
		return &orgs.UserPage{
			Users: []orgs.OrgUser{{ID: 7, Username: "alice", IsPrimary: true, RoleCodes: []string{"admin"}}},
			Total: 1,
			Page:  opts.Page,
			Limit: opts.Limit,
		}, nil
	}

	w := ts.do(http.MethodGet, "/orgs/1/users?page=2&limit=5&search=ali&role_code=admin&include_descendants=true", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orgs.ListUsersOptions{
		Search:             "ali",
		RoleCode:           "admin",
		IncludeDescendants: true,
		Page:               2,
		Limit:              5,
	}, got)

	var page orgs.UserPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "alice", page.Users[0].Username)
}

func TestListOrgUsers_BadQuery(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/orgs/1/users?page=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/orgs/1/users?include_descendants=maybe", "").Code)
}

func TestListOrgUsers_NotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.memberships.listUsersFunc = func(int64, orgs.ListUsersOptions) (*orgs.UserPage, error) {
		return nil, apperr.NotFound("organization %d not found", 9)
	}

	w := ts.do(http.MethodGet, "/orgs/9/users", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "organization 9 not found")
}

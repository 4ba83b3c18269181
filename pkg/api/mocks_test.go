package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/orgaccess/pkg/audit"
	"github.com/platinummonkey/orgaccess/pkg/menus"
	"github.com/platinummonkey/orgaccess/pkg/orgs"
	"github.com/platinummonkey/orgaccess/pkg/rbac"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type mockMemberships struct {
	linkUserOrgsFunc func(userID int64, orgIDs []int64, primaryOrgID *int64) ([]int64, error)
	listUserOrgsFunc func(userID int64) ([]orgs.Membership, error)
	setPrimaryFunc   func(userID, orgID int64) error
	moveUserFunc     func(userID, fromOrgID, toOrgID int64) error
	removeUserFunc   func(orgID, userID int64) error
	listUsersFunc    func(orgID int64, opts orgs.ListUsersOptions) (*orgs.UserPage, error)
}

func (m *mockMemberships) LinkUserOrgs(_ context.Context, userID int64, orgIDs []int64, primaryOrgID *int64) ([]int64, error) {
	if m.linkUserOrgsFunc != nil {
		return m.linkUserOrgsFunc(userID, orgIDs, primaryOrgID)
	}
	return orgIDs, nil
}

func (m *mockMemberships) ListUserOrgs(_ context.Context, userID int64) ([]orgs.Membership, error) {
	if m.listUserOrgsFunc != nil {
		return m.listUserOrgsFunc(userID)
	}
	return nil, nil
}

func (m *mockMemberships) SetPrimary(_ context.Context, userID, orgID int64) error {
	if m.setPrimaryFunc != nil {
		return m.setPrimaryFunc(userID, orgID)
	}
	return nil
}

func (m *mockMemberships) MoveUser(_ context.Context, userID, fromOrgID, toOrgID int64) error {
	if m.moveUserFunc != nil {
		return m.moveUserFunc(userID, fromOrgID, toOrgID)
	}
	return nil
}

func (m *mockMemberships) RemoveUser(_ context.Context, orgID, userID int64) error {
	if m.removeUserFunc != nil {
		return m.removeUserFunc(orgID, userID)
	}
	return nil
}

func (m *mockMemberships) ListUsers(_ context.Context, orgID int64, opts orgs.ListUsersOptions) (*orgs.UserPage, error) {
	if m.listUsersFunc != nil {
		return m.listUsersFunc(orgID, opts)
	}
	return &orgs.UserPage{Users: []orgs.OrgUser{}, Page: opts.Page, Limit: opts.Limit}, nil
}

type mockRoles struct {
	createRoleFunc      func(in rbac.CreateRoleInput) (*rbac.Role, error)
	getRoleFunc         func(id int64) (*rbac.Role, error)
	listRolesFunc       func() ([]rbac.Role, error)
	updateRoleFunc      func(id int64, in rbac.UpdateRoleInput) (*rbac.Role, error)
	deleteRoleFunc      func(id int64) error
	assignRolesFunc     func(userID, orgID int64, roleIDs []int64) error
	getRolesInOrgFunc   func(userID, orgID int64) ([]rbac.Role, error)
	getRolesForUserFunc func(userID int64, orgID *int64) ([]rbac.Role, error)
	assignMenusFunc     func(roleID int64, menuIDs []int64) error
	getMenusForRoleFunc func(roleID int64) ([]int64, error)
	setOverrideFunc     func(userID, menuID int64, permType rbac.PermissionType) (*rbac.MenuOverride, error)
	removeOverrideFunc  func(userID, menuID int64) error
	listOverridesFunc   func(userID int64) ([]rbac.MenuOverride, error)
}

func (m *mockRoles) CreateRole(_ context.Context, in rbac.CreateRoleInput) (*rbac.Role, error) {
	if m.createRoleFunc != nil {
		return m.createRoleFunc(in)
	}
	return &rbac.Role{ID: 1, Code: in.Code, Name: in.Name}, nil
}

func (m *mockRoles) GetRole(_ context.Context, id int64) (*rbac.Role, error) {
	if m.getRoleFunc != nil {
		return m.getRoleFunc(id)
	}
	return &rbac.Role{ID: id}, nil
}

func (m *mockRoles) ListRoles(context.Context) ([]rbac.Role, error) {
	if m.listRolesFunc != nil {
		return m.listRolesFunc()
	}
	return nil, nil
}

func (m *mockRoles) UpdateRole(_ context.Context, id int64, in rbac.UpdateRoleInput) (*rbac.Role, error) {
	if m.updateRoleFunc != nil {
		return m.updateRoleFunc(id, in)
	}
	return &rbac.Role{ID: id}, nil
}

func (m *mockRoles) DeleteRole(_ context.Context, id int64) error {
	if m.deleteRoleFunc != nil {
		return m.deleteRoleFunc(id)
	}
	return nil
}

func (m *mockRoles) AssignRolesInOrg(_ context.Context, userID, orgID int64, roleIDs []int64) error {
	if m.assignRolesFunc != nil {
		return m.assignRolesFunc(userID, orgID, roleIDs)
	}
	return nil
}

func (m *mockRoles) GetRolesInOrg(_ context.Context, userID, orgID int64) ([]rbac.Role, error) {
	if m.getRolesInOrgFunc != nil {
		return m.getRolesInOrgFunc(userID, orgID)
	}
	return nil, nil
}

func (m *mockRoles) GetRolesForUser(_ context.Context, userID int64, orgID *int64) ([]rbac.Role, error) {
	if m.getRolesForUserFunc != nil {
		return m.getRolesForUserFunc(userID, orgID)
	}
	return nil, nil
}

func (m *mockRoles) AssignMenusToRole(_ context.Context, roleID int64, menuIDs []int64) error {
	if m.assignMenusFunc != nil {
		return m.assignMenusFunc(roleID, menuIDs)
	}
	return nil
}

func (m *mockRoles) GetMenusForRole(_ context.Context, roleID int64) ([]int64, error) {
	if m.getMenusForRoleFunc != nil {
		return m.getMenusForRoleFunc(roleID)
	}
	return nil, nil
}

func (m *mockRoles) SetUserMenuOverride(_ context.Context, userID, menuID int64, permType rbac.PermissionType) (*rbac.MenuOverride, error) {
	if m.setOverrideFunc != nil {
		return m.setOverrideFunc(userID, menuID, permType)
	}
	return &rbac.MenuOverride{UserID: userID, MenuID: menuID, PermissionType: permType}, nil
}

func (m *mockRoles) RemoveUserMenuOverride(_ context.Context, userID, menuID int64) error {
	if m.removeOverrideFunc != nil {
		return m.removeOverrideFunc(userID, menuID)
	}
	return nil
}

func (m *mockRoles) ListUserMenuOverrides(_ context.Context, userID int64) ([]rbac.MenuOverride, error) {
	if m.listOverridesFunc != nil {
		return m.listOverridesFunc(userID)
	}
	return nil, nil
}

type mockMenus struct {
	createFunc       func(in menus.CreateInput) (*menus.Menu, error)
	getFunc          func(id int64) (*menus.Menu, error)
	updateFunc       func(id int64, in menus.UpdateInput) (*menus.Menu, error)
	deleteFunc       func(id int64) error
	listAllFunc      func() ([]menus.Menu, error)
	batchReorderFunc func(items []menus.ReorderItem) error
}

func (m *mockMenus) Create(_ context.Context, in menus.CreateInput) (*menus.Menu, error) {
	if m.createFunc != nil {
		return m.createFunc(in)
	}
	return &menus.Menu{ID: 1, Name: in.Name, Title: in.Title}, nil
}

func (m *mockMenus) Get(_ context.Context, id int64) (*menus.Menu, error) {
	if m.getFunc != nil {
		return m.getFunc(id)
	}
	return &menus.Menu{ID: id}, nil
}

func (m *mockMenus) Update(_ context.Context, id int64, in menus.UpdateInput) (*menus.Menu, error) {
	if m.updateFunc != nil {
		return m.updateFunc(id, in)
	}
	return &menus.Menu{ID: id}, nil
}

func (m *mockMenus) Delete(_ context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

func (m *mockMenus) ListAll(context.Context) ([]menus.Menu, error) {
	if m.listAllFunc != nil {
		return m.listAllFunc()
	}
	return nil, nil
}

func (m *mockMenus) BatchReorder(_ context.Context, items []menus.ReorderItem) error {
	if m.batchReorderFunc != nil {
		return m.batchReorderFunc(items)
	}
	return nil
}

type mockPermissions struct {
	resolvePermissionsFunc func(userID int64, orgID *int64) ([]rbac.MenuPermission, error)
	resolveTreeFunc        func(userID int64, orgID *int64) ([]*menus.TreeNode, error)
	checkPermissionFunc    func(userID int64, orgID *int64, menuID int64) (rbac.Decision, error)
}

func (m *mockPermissions) ResolvePermissions(_ context.Context, userID int64, orgID *int64) ([]rbac.MenuPermission, error) {
	if m.resolvePermissionsFunc != nil {
		return m.resolvePermissionsFunc(userID, orgID)
	}
	return []rbac.MenuPermission{}, nil
}

func (m *mockPermissions) ResolveTree(_ context.Context, userID int64, orgID *int64) ([]*menus.TreeNode, error) {
	if m.resolveTreeFunc != nil {
		return m.resolveTreeFunc(userID, orgID)
	}
	return nil, nil
}

func (m *mockPermissions) CheckPermission(_ context.Context, userID int64, orgID *int64, menuID int64) (rbac.Decision, error) {
	if m.checkPermissionFunc != nil {
		return m.checkPermissionFunc(userID, orgID, menuID)
	}
	return rbac.Decision{UserID: userID, MenuID: menuID, Source: rbac.SourceNone}, nil
}

// recordingAuditor keeps every logged event
type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAuditor) Log(_ context.Context, event *audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, *event)
	return nil
}

func (a *recordingAuditor) Close() error { return nil }

func (a *recordingAuditor) Events() []audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Event(nil), a.events...)
}

type testServer struct {
	*Server
	memberships *mockMemberships
	roles       *mockRoles
	menus       *mockMenus
	permissions *mockPermissions
	auditor     *recordingAuditor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log, _ := test.NewNullLogger()
	ts := &testServer{
		memberships: &mockMemberships{},
		roles:       &mockRoles{},
		menus:       &mockMenus{},
		permissions: &mockPermissions{},
		auditor:     &recordingAuditor{},
	}
	ts.Server = NewServer(Deps{
		Memberships: ts.memberships,
		Roles:       ts.roles,
		Menus:       ts.menus,
		Permissions: ts.permissions,
		Audit:       ts.auditor,
		Log:         log,
	})
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

// auditEvents waits for background audit tasks and returns what was logged
func (ts *testServer) auditEvents(t *testing.T) []audit.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.Close(ctx))
	return ts.auditor.Events()
}

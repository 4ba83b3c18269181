package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/orgaccess/pkg/audit"
	"github.com/platinummonkey/orgaccess/pkg/httputil"
	"github.com/platinummonkey/orgaccess/pkg/rbac"
)

// AssignRolesRequest is the body of PUT /orgs/{org_id}/users/{user_id}/roles. A
// missing role_ids is rejected; an empty list clears the user's roles.
type AssignRolesRequest struct {
	RoleIDs []int64 `json:"role_ids"`
}

// AssignMenusRequest is the body of PUT /roles/{role_id}/menus
type AssignMenusRequest struct {
	MenuIDs []int64 `json:"menu_ids"`
}

func (s *Server) registerRoleRoutes(router *mux.Router) {
	router.HandleFunc("/roles", s.createRole).Methods(http.MethodPost)
	router.HandleFunc("/roles", s.listRoles).Methods(http.MethodGet)
	router.HandleFunc("/roles/{role_id}", s.getRole).Methods(http.MethodGet)
	router.HandleFunc("/roles/{role_id}", s.updateRole).Methods(http.MethodPut)
	router.HandleFunc("/roles/{role_id}", s.deleteRole).Methods(http.MethodDelete)

	// Role to menu bindings
	router.HandleFunc("/roles/{role_id}/menus", s.assignRoleMenus).Methods(http.MethodPut)
	router.HandleFunc("/roles/{role_id}/menus", s.getRoleMenus).Methods(http.MethodGet)

	// Assignments
	router.HandleFunc("/orgs/{org_id}/users/{user_id}/roles", s.assignUserRoles).Methods(http.MethodPut)
	router.HandleFunc("/orgs/{org_id}/users/{user_id}/roles", s.getUserRolesInOrg).Methods(http.MethodGet)
	router.HandleFunc("/users/{user_id}/roles", s.getUserRoles).Methods(http.MethodGet)
}

func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	var in rbac.CreateRoleInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	role, err := s.roles.CreateRole(r.Context(), in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventRoleCreate,
		ResourceType: audit.ResourceRole,
		ResourceID:   idString(role.ID),
		Details:      map[string]any{"code": role.Code},
	})
	httputil.WriteCreated(w, role)
}

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.roles.ListRoles(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	writeOK(w, roles)
}

func (s *Server) getRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}

	role, err := s.roles.GetRole(r.Context(), roleID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	writeOK(w, role)
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}
	var in rbac.UpdateRoleInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	role, err := s.roles.UpdateRole(r.Context(), roleID, in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventRoleUpdate,
		ResourceType: audit.ResourceRole,
		ResourceID:   idString(roleID),
	})
	writeOK(w, role)
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}

	if err := s.roles.DeleteRole(r.Context(), roleID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventRoleDelete,
		ResourceType: audit.ResourceRole,
		ResourceID:   idString(roleID),
	})
	httputil.WriteNoContent(w)
}

func (s *Server) assignRoleMenus(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}
	var req AssignMenusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.roles.AssignMenusToRole(r.Context(), roleID, req.MenuIDs); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventRoleMenusAssign,
		ResourceType: audit.ResourceRole,
		ResourceID:   idString(roleID),
		Details:      map[string]any{"menu_ids": req.MenuIDs},
	})
	httputil.WriteNoContent(w)
}

func (s *Server) getRoleMenus(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}

	ids, err := s.roles.GetMenusForRole(r.Context(), roleID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeOK(w, map[string]any{"role_id": roleID, "menu_ids": ids})
}

func (s *Server) assignUserRoles(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	var req AssignRolesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.roles.AssignRolesInOrg(r.Context(), userID, orgID, req.RoleIDs); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventRoleAssign,
		ResourceType: audit.ResourceMembership,
		ResourceID:   pairString(userID, orgID),
		OrgID:        &orgID,
		Details:      map[string]any{"role_ids": req.RoleIDs},
	})
	httputil.WriteNoContent(w)
}

func (s *Server) getUserRolesInOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	roles, err := s.roles.GetRolesInOrg(r.Context(), userID, orgID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	writeOK(w, roles)
}

// getUserRoles falls back to the user's primary organization when org_id is absent
func (s *Server) getUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	orgID, err := httputil.ParseQueryOptionalInt64(r, "org_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	roles, err := s.roles.GetRolesForUser(r.Context(), userID, orgID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	writeOK(w, roles)
}

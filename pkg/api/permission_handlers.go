package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/orgaccess/pkg/audit"
	"github.com/platinummonkey/orgaccess/pkg/httputil"
	"github.com/platinummonkey/orgaccess/pkg/rbac"
)

// OverrideRequest is the body of PUT /users/{user_id}/menu-overrides/{menu_id}
type OverrideRequest struct {
	PermissionType rbac.PermissionType `json:"permission_type"`
}

func (s *Server) registerPermissionRoutes(router *mux.Router) {
	// Overrides
	router.HandleFunc("/users/{user_id}/menu-overrides", s.listOverrides).Methods(http.MethodGet)
	router.HandleFunc("/users/{user_id}/menu-overrides/{menu_id}", s.setOverride).Methods(http.MethodPut)
	router.HandleFunc("/users/{user_id}/menu-overrides/{menu_id}", s.removeOverride).Methods(http.MethodDelete)

	// Resolution
	router.HandleFunc("/users/{user_id}/menu-tree", s.userMenuTree).Methods(http.MethodGet)
	router.HandleFunc("/users/{user_id}/menu-permissions", s.userMenuPermissions).Methods(http.MethodGet)
	router.HandleFunc("/users/{user_id}/menus/{menu_id}/check", s.checkPermission).Methods(http.MethodGet)
}

func (s *Server) listOverrides(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	overrides, err := s.roles.ListUserMenuOverrides(r.Context(), userID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if overrides == nil {
		overrides = []rbac.MenuOverride{}
	}
	writeOK(w, overrides)
}

func (s *Server) setOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	menuID, ok := httputil.ParsePathInt64OrError(w, r, "menu_id")
	if !ok {
		return
	}
	var req OverrideRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	override, err := s.roles.SetUserMenuOverride(r.Context(), userID, menuID, req.PermissionType)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventOverrideSet,
		ResourceType: audit.ResourceOverride,
		ResourceID:   pairString(userID, menuID),
		Details:      map[string]any{"permission_type": string(override.PermissionType)},
	})
	writeOK(w, override)
}

func (s *Server) removeOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	menuID, ok := httputil.ParsePathInt64OrError(w, r, "menu_id")
	if !ok {
		return
	}

	if err := s.roles.RemoveUserMenuOverride(r.Context(), userID, menuID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventOverrideRemove,
		ResourceType: audit.ResourceOverride,
		ResourceID:   pairString(userID, menuID),
	})
	httputil.WriteNoContent(w)
}

// parseScope reads the user_id path parameter and the optional org_id query
func parseScope(w http.ResponseWriter, r *http.Request) (int64, *int64, bool) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return 0, nil, false
	}
	orgID, err := httputil.ParseQueryOptionalInt64(r, "org_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return 0, nil, false
	}
	return userID, orgID, true
}

func (s *Server) userMenuTree(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := parseScope(w, r)
	if !ok {
		return
	}

	tree, err := s.permissions.ResolveTree(r.Context(), userID, orgID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	writeOK(w, nonNilTree(tree))
}

func (s *Server) userMenuPermissions(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := parseScope(w, r)
	if !ok {
		return
	}

	perms, err := s.permissions.ResolvePermissions(r.Context(), userID, orgID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	writeOK(w, perms)
}

func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := parseScope(w, r)
	if !ok {
		return
	}
	menuID, ok := httputil.ParsePathInt64OrError(w, r, "menu_id")
	if !ok {
		return
	}

	decision, err := s.permissions.CheckPermission(r.Context(), userID, orgID, menuID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	writeOK(w, decision)
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/orgaccess/pkg/audit"
	"github.com/platinummonkey/orgaccess/pkg/httputil"
	"github.com/platinummonkey/orgaccess/pkg/orgs"
)

// LinkUserOrgsRequest is the body of POST /users/{user_id}/orgs
type LinkUserOrgsRequest struct {
	OrgIDs       []int64 `json:"org_ids"`
	PrimaryOrgID *int64  `json:"primary_org_id"`
}

// MoveUserRequest is the body of POST /orgs/{org_id}/users/{user_id}/move
type MoveUserRequest struct {
	ToOrgID int64 `json:"to_org_id"`
}

func (s *Server) registerMembershipRoutes(router *mux.Router) {
	router.HandleFunc("/users/{user_id}/orgs", s.linkUserOrgs).Methods(http.MethodPost)
	router.HandleFunc("/users/{user_id}/orgs", s.listUserOrgs).Methods(http.MethodGet)
	router.HandleFunc("/orgs/{org_id}/users", s.listOrgUsers).Methods(http.MethodGet)
	router.HandleFunc("/orgs/{org_id}/users/{user_id}", s.removeUserFromOrg).Methods(http.MethodDelete)
	router.HandleFunc("/orgs/{org_id}/users/{user_id}/primary", s.setPrimaryOrg).Methods(http.MethodPut)
	router.HandleFunc("/orgs/{org_id}/users/{user_id}/move", s.moveUser).Methods(http.MethodPost)
}

func (s *Server) linkUserOrgs(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	var req LinkUserOrgsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	linked, err := s.memberships.LinkUserOrgs(r.Context(), userID, req.OrgIDs, req.PrimaryOrgID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventOrgLink,
		ResourceType: audit.ResourceMembership,
		ResourceID:   idString(userID),
		OrgID:        req.PrimaryOrgID,
		Details:      map[string]any{"org_ids": linked},
	})
	writeOK(w, map[string]any{"user_id": userID, "org_ids": linked})
}

func (s *Server) listUserOrgs(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	memberships, err := s.memberships.ListUserOrgs(r.Context(), userID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if memberships == nil {
		memberships = []orgs.Membership{}
	}
	writeOK(w, memberships)
}

func (s *Server) setPrimaryOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := s.memberships.SetPrimary(r.Context(), userID, orgID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventOrgSetPrimary,
		ResourceType: audit.ResourceMembership,
		ResourceID:   pairString(userID, orgID),
		OrgID:        &orgID,
	})
	httputil.WriteNoContent(w)
}

func (s *Server) moveUser(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	var req MoveUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.ToOrgID <= 0 {
		httputil.WriteBadRequest(w, "to_org_id is required")
		return
	}

	if err := s.memberships.MoveUser(r.Context(), userID, orgID, req.ToOrgID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventOrgMove,
		ResourceType: audit.ResourceMembership,
		ResourceID:   idString(userID),
		OrgID:        &req.ToOrgID,
		Details:      map[string]any{"from_org_id": orgID, "to_org_id": req.ToOrgID},
	})
	httputil.WriteNoContent(w)
}

func (s *Server) removeUserFromOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := s.memberships.RemoveUser(r.Context(), orgID, userID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventOrgRemove,
		ResourceType: audit.ResourceMembership,
		ResourceID:   pairString(userID, orgID),
		OrgID:        &orgID,
	})
	httputil.WriteNoContent(w)
}

func (s *Server) listOrgUsers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	page, err := httputil.ParseQueryInt(r, "page", 1)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", orgs.DefaultPageSize)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	descendants, err := httputil.ParseQueryBool(r, "include_descendants", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := s.memberships.ListUsers(r.Context(), orgID, orgs.ListUsersOptions{
		Search:             httputil.ParseQueryString(r, "search", ""),
		RoleCode:           httputil.ParseQueryString(r, "role_code", ""),
		IncludeDescendants: descendants,
		Page:               page,
		Limit:              limit,
	})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	writeOK(w, result)
}

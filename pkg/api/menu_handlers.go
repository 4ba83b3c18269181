package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/orgaccess/pkg/audit"
	"github.com/platinummonkey/orgaccess/pkg/httputil"
	"github.com/platinummonkey/orgaccess/pkg/menus"
)

// ReorderRequest is the body of PUT /menus/sort
type ReorderRequest struct {
	Items []menus.ReorderItem `json:"items"`
}

func (s *Server) registerMenuRoutes(router *mux.Router) {
	router.HandleFunc("/menus", s.createMenu).Methods(http.MethodPost)
	router.HandleFunc("/menus", s.listMenus).Methods(http.MethodGet)
	router.HandleFunc("/menus/tree", s.menuTree).Methods(http.MethodGet)
	router.HandleFunc("/menus/sort", s.reorderMenus).Methods(http.MethodPut)
	router.HandleFunc("/menus/{menu_id:[0-9]+}", s.getMenu).Methods(http.MethodGet)
	router.HandleFunc("/menus/{menu_id:[0-9]+}", s.updateMenu).Methods(http.MethodPut)
	router.HandleFunc("/menus/{menu_id:[0-9]+}", s.deleteMenu).Methods(http.MethodDelete)
}

func (s *Server) createMenu(w http.ResponseWriter, r *http.Request) {
	var in menus.CreateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	menu, err := s.menus.Create(r.Context(), in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventMenuCreate,
		ResourceType: audit.ResourceMenu,
		ResourceID:   idString(menu.ID),
		Details:      map[string]any{"name": menu.Name},
	})
	httputil.WriteCreated(w, menu)
}

func (s *Server) listMenus(w http.ResponseWriter, r *http.Request) {
	list, err := s.menus.ListAll(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if list == nil {
		list = []menus.Menu{}
	}
	writeOK(w, list)
}

func (s *Server) menuTree(w http.ResponseWriter, r *http.Request) {
	list, err := s.menus.ListAll(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	writeOK(w, nonNilTree(menus.BuildTree(list)))
}

func (s *Server) getMenu(w http.ResponseWriter, r *http.Request) {
	menuID, ok := httputil.ParsePathInt64OrError(w, r, "menu_id")
	if !ok {
		return
	}

	menu, err := s.menus.Get(r.Context(), menuID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	writeOK(w, menu)
}

func (s *Server) updateMenu(w http.ResponseWriter, r *http.Request) {
	menuID, ok := httputil.ParsePathInt64OrError(w, r, "menu_id")
	if !ok {
		return
	}
	var in menus.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	menu, err := s.menus.Update(r.Context(), menuID, in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventMenuUpdate,
		ResourceType: audit.ResourceMenu,
		ResourceID:   idString(menuID),
	})
	writeOK(w, menu)
}

func (s *Server) deleteMenu(w http.ResponseWriter, r *http.Request) {
	menuID, ok := httputil.ParsePathInt64OrError(w, r, "menu_id")
	if !ok {
		return
	}

	if err := s.menus.Delete(r.Context(), menuID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.record(r, &audit.Event{
		Type:         audit.EventMenuDelete,
		ResourceType: audit.ResourceMenu,
		ResourceID:   idString(menuID),
	})
	httputil.WriteNoContent(w)
}

func (s *Server) reorderMenus(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		httputil.WriteBadRequest(w, "items is required")
		return
	}

	if err := s.menus.BatchReorder(r.Context(), req.Items); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ID)
	}
	s.record(r, &audit.Event{
		Type:         audit.EventMenuReorder,
		ResourceType: audit.ResourceMenu,
		ResourceID:   "batch",
		Details:      map[string]any{"menu_ids": ids},
	})
	httputil.WriteNoContent(w)
}

func nonNilTree(tree []*menus.TreeNode) []*menus.TreeNode {
	if tree == nil {
		return []*menus.TreeNode{}
	}
	return tree
}

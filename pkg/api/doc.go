// Package api exposes the membership, role, menu and permission operations over
// HTTP.
//
// Routes are registered on a gorilla/mux router. Errors are written as
// {"error": "..."} with the status of their apperr kind. Every successful
// mutation emits an audit event in the background.
//
//	srv := api.NewServer(api.Deps{
//		Memberships: orgStore,
//		Roles:       rbacStore,
//		Menus:       menuStore,
//		Permissions: checker,
//		Audit:       audit.NewLogrusLogger(log),
//		Log:         log,
//	})
//	http.ListenAndServe(":8080", srv.Handler())
package api

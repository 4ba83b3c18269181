// Package httputil provides HTTP helpers shared by the orgaccess handlers.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteBadRequest(w, "org_ids is required")
//
// Domain errors carry an apperr.Kind and are rendered with a matching status:
//
//	if err := store.DeleteRole(ctx, id); err != nil {
//		httputil.WriteAppError(w, err)
//		return
//	}
//
// # Request Parsing
//
//	var req LinkOrgsRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
//	orgID, err := httputil.ParseQueryOptionalInt64(r, "org_id")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(log),
//		httputil.RecoveryMiddleware(log),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil

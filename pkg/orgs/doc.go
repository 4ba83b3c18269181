// Package orgs manages user membership in organizations.
//
// A user may belong to any number of organizations and has at most one primary
// organization. The primary organization is the default scope used by permission
// resolution when the caller does not name one. A partial unique index on
// user_organizations backs the invariant; every operation that moves the primary
// flag clears it before setting it again inside a single transaction.
//
// # Usage Example
//
//	store := orgs.NewStore(conn, log, cache, schema)
//
//	linked, err := store.LinkUserOrgs(ctx, userID, []int64{10, 11}, &primaryID)
//	if apperr.Is(err, apperr.KindBadRequest) {
//		// none of the organizations exist
//	}
//
//	err = store.MoveUser(ctx, userID, fromOrgID, toOrgID)
//
//	err = store.RemoveUser(ctx, orgID, userID)
//	if errors.Is(err, orgs.ErrPrimaryMembership) {
//		// designate another primary organization first
//	}
//
// # Optional user columns
//
// The users table belongs to the surrounding platform and may carry optional
// profile columns. UserFields lists which of them exist; it is resolved once at
// startup (from configuration or DetectUserFields) and kept in a SchemaCache.
package orgs

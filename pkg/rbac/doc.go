// Package rbac implements organization-scoped role based access to the menu catalog.
//
// # Model
//
// Roles are global definitions identified by a unique code. A role means nothing
// until it is assigned to a user within one organization; the set of roles a
// (user, organization) pair holds is replaced as a whole on every assignment.
// Roles unlock menus through role_menus bindings, and users may carry per-menu
// grant or deny overrides.
//
// # Permission resolution
//
// For a user in an organization, every enabled menu is decided with this
// precedence:
//
//  1. the user holds an enabled "admin" role in the organization: granted (admin)
//  2. a deny override exists for the menu: denied (deny)
//  3. a grant override exists for the menu: granted (user)
//  4. an enabled role held in the organization is bound to the menu: granted (role)
//  5. otherwise: denied (none)
//
// When no organization is given the user's primary organization is used. A user
// without organizations, or who is not a member of the requested organization,
// resolves to an empty set. Each node is decided on its own: a denied parent
// does not hide granted children.
//
// # Usage Example
//
//	checker := rbac.NewPermissionChecker(conn, orgStore, menuStore, cache, log)
//
//	decision, err := checker.CheckPermission(ctx, userID, nil, menuID)
//	if err != nil {
//		return err
//	}
//	if !decision.Allowed {
//		return errors.New("access denied")
//	}
//
//	tree, err := checker.ResolveTree(ctx, userID, &orgID)
//
// # Caching
//
// Resolved permission sets may be cached through pkg/permcache. Every committed
// mutation of memberships, roles, assignments, bindings, overrides or menus
// invalidates the cache. A set loaded before an invalidation is never stored
// after it. Concurrent resolutions of the same key share one database round
// trip, which completes even if the request that started it is cancelled.
package rbac

// Package audit records who changed memberships, roles, menus and permission
// overrides.
//
// The HTTP layer calls a Logger after every successful mutation. Storage of audit
// records is outside this service: LogrusLogger emits structured entries for a
// log pipeline to collect, and NoopLogger discards them.
//
// # Usage Example
//
//	auditor := audit.NewLogrusLogger(log)
//
//	auditor.Log(ctx, &audit.Event{
//		Type:         audit.EventRoleAssign,
//		ResourceType: audit.ResourceMembership,
//		ResourceID:   "7",
//		OrgID:        &orgID,
//		Details:      map[string]any{"role_ids": roleIDs},
//	})
package audit

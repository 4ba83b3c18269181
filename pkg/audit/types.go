package audit

import "time"

// EventType names an audited mutation
type EventType string

const (
	EventOrgLink         EventType = "org.link"
	EventOrgSetPrimary   EventType = "org.set_primary"
	EventOrgMove         EventType = "org.move"
	EventOrgRemove       EventType = "org.remove"
	EventRoleCreate      EventType = "role.create"
	EventRoleUpdate      EventType = "role.update"
	EventRoleDelete      EventType = "role.delete"
	EventRoleAssign      EventType = "role.assign"
	EventRoleMenusAssign EventType = "role.menus_assign"
	EventMenuCreate      EventType = "menu.create"
	EventMenuUpdate      EventType = "menu.update"
	EventMenuDelete      EventType = "menu.delete"
	EventMenuReorder     EventType = "menu.reorder"
	EventOverrideSet     EventType = "override.set"
	EventOverrideRemove  EventType = "override.remove"
)

// ResourceType is the kind of entity an event touches
type ResourceType string

const (
	ResourceMembership ResourceType = "membership"
	ResourceRole       ResourceType = "role"
	ResourceMenu       ResourceType = "menu"
	ResourceOverride   ResourceType = "override"
)

// Event is one audited mutation
type Event struct {
	Type         EventType      `json:"type"`
	ResourceType ResourceType   `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	OrgID        *int64         `json:"org_id,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	RemoteAddr   string         `json:"remote_addr,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

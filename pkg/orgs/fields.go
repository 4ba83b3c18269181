package orgs

import (
	"context"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/platinummonkey/orgaccess/pkg/db"
)

// UserFields enumerates the optional profile columns present on the users table
type UserFields struct {
	RealName bool `yaml:"real_name"`
	Phone    bool `yaml:"phone"`
	Avatar   bool `yaml:"avatar"`
	Status   bool `yaml:"status"`
}

// columns returns the optional columns in select order
func (f UserFields) columns() []string {
	var cols []string
	if f.RealName {
		cols = append(cols, "real_name")
	}
	if f.Phone {
		cols = append(cols, "phone")
	}
	if f.Avatar {
		cols = append(cols, "avatar")
	}
	if f.Status {
		cols = append(cols, "status")
	}
	return cols
}

var optionalUserColumns = []string{"real_name", "phone", "avatar", "status"}

// DetectUserFields reads information_schema once to find the optional columns
func DetectUserFields(ctx context.Context, q db.Querier) (UserFields, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = 'users' AND column_name = ANY($1)
	`, pq.Array(optionalUserColumns))
	if err != nil {
		return UserFields{}, fmt.Errorf("failed to inspect users table: %w", err)
	}
	defer rows.Close()

	var fields UserFields
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return UserFields{}, fmt.Errorf("failed to scan column name: %w", err)
		}
		switch name {
		case "real_name":
			fields.RealName = true
		case "phone":
			fields.Phone = true
		case "avatar":
			fields.Avatar = true
		case "status":
			fields.Status = true
		}
	}
	return fields, rows.Err()
}

// SchemaCache holds the resolved UserFields for the life of the process. Init is
// applied once; Invalidate clears it so the next Init takes effect.
type SchemaCache struct {
	mu     sync.RWMutex
	fields *UserFields
}

// NewSchemaCache creates an empty cache
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{}
}

// Init stores fields unless the cache is already initialized. It reports whether
// fields were stored.
func (c *SchemaCache) Init(fields UserFields) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fields != nil {
		return false
	}
	c.fields = &fields
	return true
}

// Fields returns the cached fields, or none when uninitialized
func (c *SchemaCache) Fields() UserFields {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.fields == nil {
		return UserFields{}
	}
	return *c.fields
}

// Initialized reports whether Init has been applied
func (c *SchemaCache) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields != nil
}

// Invalidate drops the cached fields
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = nil
}

// Refresh re-detects the optional user columns and replaces the cached set. On
// failure the previous fields stay in place.
func (c *SchemaCache) Refresh(ctx context.Context, q db.Querier) (UserFields, error) {
	fields, err := DetectUserFields(ctx, q)
	if err != nil {
		return c.Fields(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = &fields
	return fields, nil
}

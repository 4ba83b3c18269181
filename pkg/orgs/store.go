package orgs

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/platinummonkey/orgaccess/pkg/permcache"
	"github.com/sirupsen/logrus"
)

// Store handles organization membership persistence
type Store struct {
	db     *sql.DB
	log    logrus.FieldLogger
	cache  permcache.Cache
	schema *SchemaCache
}

// NewStore creates a new membership store. A nil cache disables invalidation and a
// nil schema means no optional user columns.
func NewStore(conn *sql.DB, log logrus.FieldLogger, cache permcache.Cache, schema *SchemaCache) *Store {
	if cache == nil {
		cache = permcache.Noop{}
	}
	if schema == nil {
		schema = NewSchemaCache()
	}
	return &Store{db: conn, log: log, cache: cache, schema: schema}
}

// invalidate drops cached permission sets after a committed membership change
func (s *Store) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("failed to invalidate permission cache")
	}
}

func requireOrg(ctx context.Context, q db.Querier, orgID int64) error {
	ok, err := db.Exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM organizations WHERE id = $1)`, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("organization not found: %d", orgID)
	}
	return nil
}

func requireUser(ctx context.Context, q db.Querier, userID int64) error {
	ok, err := db.Exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("user not found: %d", userID)
	}
	return nil
}

// IsMember reports whether the user belongs to the organization
func (s *Store) IsMember(ctx context.Context, userID, orgID int64) (bool, error) {
	return isMember(ctx, s.db, userID, orgID)
}

func isMember(ctx context.Context, q db.Querier, userID, orgID int64) (bool, error) {
	return db.Exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM user_organizations WHERE user_id = $1 AND org_id = $2)`,
		userID, orgID,
	)
}

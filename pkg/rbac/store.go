package rbac

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/platinummonkey/orgaccess/pkg/permcache"
	"github.com/sirupsen/logrus"
)

const roleColumns = `id, code, name, description, is_system, is_disabled, sort_order, created_at, updated_at`

// Store persists roles, their assignments within organizations, role to menu
// bindings and per-user menu overrides
type Store struct {
	db    *sql.DB
	log   logrus.FieldLogger
	cache permcache.Cache
}

// NewStore creates a new RBAC store. A nil cache disables invalidation.
func NewStore(conn *sql.DB, log logrus.FieldLogger, cache permcache.Cache) *Store {
	if cache == nil {
		cache = permcache.Noop{}
	}
	return &Store{db: conn, log: log, cache: cache}
}

func (s *Store) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("failed to invalidate permission cache")
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRole(row scanner) (*Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Description, &r.IsSystem, &r.IsDisabled,
		&r.SortOrder, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func requireRole(ctx context.Context, q db.Querier, roleID int64) error {
	ok, err := db.Exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1)`, roleID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("role not found: %d", roleID)
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

// normalizeIDs rejects non-positive ids and drops duplicates, keeping order
func normalizeIDs(ids []int64, what string) ([]int64, error) {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, apperr.BadRequest("invalid %s id: %d", what, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

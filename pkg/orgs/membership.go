package orgs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/sirupsen/logrus"
)

// LinkUser adds the user to the organization. Linking an existing member is a no-op.
func (s *Store) LinkUser(ctx context.Context, userID, orgID int64) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireOrg(ctx, tx, orgID); err != nil {
			return err
		}
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		return ensureMembership(ctx, tx, userID, orgID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// LinkUserOrgs links the user to every existing organization in orgIDs and returns
// the ids that were linked. When primaryOrgID is set it must be one of the linked
// organizations and becomes the primary. A user without any primary organization
// gets the linked organization with the lowest id as primary.
func (s *Store) LinkUserOrgs(ctx context.Context, userID int64, orgIDs []int64, primaryOrgID *int64) ([]int64, error) {
	ids, err := normalizeIDs(orgIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apperr.BadRequest("org_ids is required")
	}
	if primaryOrgID != nil && !containsID(ids, *primaryOrgID) {
		return nil, apperr.BadRequest("primary organization %d is not in org_ids", *primaryOrgID)
	}

	var linked []int64
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}

		existing, err := existingOrgs(ctx, tx, ids)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return ErrNoOrganizations
		}
		if primaryOrgID != nil && !containsID(existing, *primaryOrgID) {
			return apperr.NotFound("organization not found: %d", *primaryOrgID)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_organizations (user_id, org_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT (user_id, org_id) DO NOTHING
		`, userID, pq.Array(existing))
		if err != nil {
			return fmt.Errorf("failed to link organizations: %w", err)
		}

		switch {
		case primaryOrgID != nil:
			if err := makePrimary(ctx, tx, userID, *primaryOrgID); err != nil {
				return err
			}
		default:
			_, hasPrimary, err := primaryOrg(ctx, tx, userID)
			if err != nil {
				return err
			}
			if !hasPrimary {
				if err := makePrimary(ctx, tx, userID, existing[0]); err != nil {
					return err
				}
			}
		}

		linked = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"org_ids": linked,
	}).Debug("linked user to organizations")
	return linked, nil
}

// SetPrimary makes orgID the user's only primary organization, linking the user
// first when needed.
func (s *Store) SetPrimary(ctx context.Context, userID, orgID int64) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireOrg(ctx, tx, orgID); err != nil {
			return err
		}
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := ensureMembership(ctx, tx, userID, orgID); err != nil {
			return err
		}
		return makePrimary(ctx, tx, userID, orgID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// GetPrimaryOrg returns the user's primary organization. found is false when the
// user has none.
func (s *Store) GetPrimaryOrg(ctx context.Context, userID int64) (orgID int64, found bool, err error) {
	return primaryOrg(ctx, s.db, userID)
}

// ResolveOrg returns orgID when it is set and the user's primary organization
// otherwise
func (s *Store) ResolveOrg(ctx context.Context, userID int64, orgID *int64) (int64, bool, error) {
	if orgID != nil {
		return *orgID, true, nil
	}
	return primaryOrg(ctx, s.db, userID)
}

// ListUserOrgs returns the user's memberships, primary first
func (s *Store) ListUserOrgs(ctx context.Context, userID int64) ([]Membership, error) {
	query := `
		SELECT uo.user_id, uo.org_id, o.name, uo.is_primary, uo.created_at
		FROM user_organizations uo
		JOIN organizations o ON o.id = uo.org_id
		WHERE uo.user_id = $1
		ORDER BY uo.is_primary DESC, uo.org_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user organizations: %w", err)
	}
	defer rows.Close()

	memberships := []Membership{}
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.UserID, &m.OrgID, &m.OrgName, &m.IsPrimary, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// MoveUser transfers the user from one organization to another. The target becomes
// primary and the source membership is removed together with the roles the user
// held there.
func (s *Store) MoveUser(ctx context.Context, userID, fromOrgID, toOrgID int64) error {
	if fromOrgID == toOrgID {
		return ErrSameOrganization
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireOrg(ctx, tx, fromOrgID); err != nil {
			return err
		}
		if err := requireOrg(ctx, tx, toOrgID); err != nil {
			return err
		}
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}

		member, err := isMember(ctx, tx, userID, fromOrgID)
		if err != nil {
			return err
		}
		if !member {
			return apperr.NotFound("user %d is not a member of organization %d", userID, fromOrgID)
		}

		if err := ensureMembership(ctx, tx, userID, toOrgID); err != nil {
			return err
		}
		if err := makePrimary(ctx, tx, userID, toOrgID); err != nil {
			return err
		}
		return deleteMembership(ctx, tx, userID, fromOrgID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"from_org_id": fromOrgID,
		"to_org_id":   toOrgID,
	}).Info("moved user between organizations")
	return nil
}

// RemoveUser unlinks the user from the organization and drops the roles held there.
// The primary membership cannot be removed.
func (s *Store) RemoveUser(ctx context.Context, orgID, userID int64) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var isPrimary bool
		err := tx.QueryRowContext(ctx, `
			SELECT is_primary FROM user_organizations
			WHERE user_id = $1 AND org_id = $2
			FOR UPDATE
		`, userID, orgID).Scan(&isPrimary)
		if err == sql.ErrNoRows {
			return apperr.NotFound("user %d is not a member of organization %d", userID, orgID)
		}
		if err != nil {
			return fmt.Errorf("failed to get membership: %w", err)
		}
		if isPrimary {
			return ErrPrimaryMembership
		}
		return deleteMembership(ctx, tx, userID, orgID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

func ensureMembership(ctx context.Context, tx *sql.Tx, userID, orgID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_organizations (user_id, org_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, org_id) DO NOTHING
	`, userID, orgID)
	if err != nil {
		return fmt.Errorf("failed to link user to organization: %w", err)
	}
	return nil
}

// makePrimary clears every primary flag of the user before setting the target
func makePrimary(ctx context.Context, tx *sql.Tx, userID, orgID int64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_organizations SET is_primary = FALSE WHERE user_id = $1 AND is_primary`,
		userID,
	); err != nil {
		return fmt.Errorf("failed to clear primary organization: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE user_organizations SET is_primary = TRUE WHERE user_id = $1 AND org_id = $2`,
		userID, orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to set primary organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSetPrimaryFailed
	}
	return nil
}

func deleteMembership(ctx context.Context, tx *sql.Tx, userID, orgID int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_org_roles WHERE user_id = $1 AND org_id = $2`,
		userID, orgID,
	); err != nil {
		return fmt.Errorf("failed to delete role assignments: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_organizations WHERE user_id = $1 AND org_id = $2`,
		userID, orgID,
	); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return nil
}

func primaryOrg(ctx context.Context, q db.Querier, userID int64) (int64, bool, error) {
	var orgID int64
	err := q.QueryRowContext(ctx,
		`SELECT org_id FROM user_organizations WHERE user_id = $1 AND is_primary`,
		userID,
	).Scan(&orgID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get primary organization: %w", err)
	}
	return orgID, true, nil
}

func existingOrgs(ctx context.Context, q db.Querier, ids []int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM organizations WHERE id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up organizations: %w", err)
	}
	defer rows.Close()

	var found []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan organization id: %w", err)
		}
		found = append(found, id)
	}
	return found, rows.Err()
}

// normalizeIDs rejects non-positive ids and drops duplicates, keeping order
func normalizeIDs(ids []int64) ([]int64, error) {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, apperr.BadRequest("invalid id: %d", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

package orgs

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// countingCache records invalidations
type countingCache struct {
	invalidations atomic.Int32
}

func (c *countingCache) Get(context.Context, string) ([]byte, error) { return nil, nil }
func (c *countingCache) Generation(context.Context) (int64, error) { return 0, nil }
func (c *countingCache) Set(context.Context, int64, string, []byte) error { return nil }
func (c *countingCache) Invalidate(context.Context) error {
	c.invalidations.Add(1)
	return nil
}
func (c *countingCache) Close() error { return nil }

// Test helper to create a new mock store
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *countingCache) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	log, _ := test.NewNullLogger()
	cache := &countingCache{}
	return NewStore(conn, log, cache, nil), mock, cache
}

func existsRows(ok bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(ok)
}

func expectOrgExists(mock sqlmock.Sqlmock, orgID int64, ok bool) {
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM organizations WHERE id = \$1\)`).
		WithArgs(orgID).
		WillReturnRows(existsRows(ok))
}

func expectUserExists(mock sqlmock.Sqlmock, userID int64, ok bool) {
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE id = \$1\)`).
		WithArgs(userID).
		WillReturnRows(existsRows(ok))
}

func expectMember(mock sqlmock.Sqlmock, userID, orgID int64, ok bool) {
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM user_organizations WHERE user_id = \$1 AND org_id = \$2\)`).
		WithArgs(userID, orgID).
		WillReturnRows(existsRows(ok))
}

func expectEnsureMembership(mock sqlmock.Sqlmock, userID, orgID int64) {
	mock.ExpectExec(`INSERT INTO user_organizations \(user_id, org_id\) VALUES \(\$1, \$2\) ON CONFLICT`).
		WithArgs(userID, orgID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func expectMakePrimary(mock sqlmock.Sqlmock, userID, orgID int64, affected int64) {
	mock.ExpectExec(`UPDATE user_organizations SET is_primary = FALSE WHERE user_id = \$1 AND is_primary`).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE user_organizations SET is_primary = TRUE WHERE user_id = \$1 AND org_id = \$2`).
		WithArgs(userID, orgID).
		WillReturnResult(sqlmock.NewResult(0, affected))
}

func expectDeleteMembership(mock sqlmock.Sqlmock, userID, orgID int64) {
	mock.ExpectExec(`DELETE FROM user_org_roles WHERE user_id = \$1 AND org_id = \$2`).
		WithArgs(userID, orgID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM user_organizations WHERE user_id = \$1 AND org_id = \$2`).
		WithArgs(userID, orgID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}


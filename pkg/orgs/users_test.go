package orgs

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown organization", func(t *testing.T) {
		store, mock, _ := newMockStore(t)
		expectOrgExists(mock, 10, false)

		page, err := store.ListUsers(ctx, 10, ListUsersOptions{})
		assert.Nil(t, page)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("single organization with defaults", func(t *testing.T) {
		store, mock, _ := newMockStore(t)
		expectOrgExists(mock, 10, true)

		mock.ExpectQuery(`WITH scope AS \(SELECT \$1::bigint AS id\) SELECT COUNT\(\*\) FROM users u`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectQuery(`WITH scope AS .* SELECT u.id, u.username, u.email, EXISTS .* ORDER BY u.id ASC LIMIT \$2 OFFSET \$3`).
			WithArgs(int64(10), DefaultPageSize, 0).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "is_primary", "role_codes"}).
				AddRow(1, "alice", "alice@example.com", true, "{admin,editor}").
				AddRow(2, "bob", nil, false, "{}"))

		page, err := store.ListUsers(ctx, 10, ListUsersOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, DefaultPageSize, page.Limit)
		require.Len(t, page.Users, 2)
		assert.Equal(t, []string{"admin", "editor"}, page.Users[0].RoleCodes)
		assert.True(t, page.Users[0].IsPrimary)
		assert.Equal(t, "", page.Users[1].Email)
		assert.Equal(t, []string{}, page.Users[1].RoleCodes)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("descendants with search, role filter and optional columns", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		schema := NewSchemaCache()
		schema.Init(UserFields{RealName: true, Status: true})
		store := NewStore(conn, nil, nil, schema)

		expectOrgExists(mock, 10, true)
		mock.ExpectQuery(`WITH RECURSIVE scope AS .* SELECT COUNT\(\*\) FROM users u WHERE .* u.real_name ILIKE \$2 .* r.code = \$3`).
			WithArgs(int64(10), `%al\_i%`, "editor").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
		mock.ExpectQuery(`WITH RECURSIVE scope AS .* SELECT u.id, u.username, u.email, u.real_name, u.status, .* LIMIT \$4 OFFSET \$5`).
			WithArgs(int64(10), `%al\_i%`, "editor", 5, 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "real_name", "status", "is_primary", "role_codes"}).
				AddRow(3, "al_ice", "a@example.com", "Alice", "1", false, "{editor}"))

		page, err := store.ListUsers(ctx, 10, ListUsersOptions{
			Search:             "al_i",
			RoleCode:           "editor",
			IncludeDescendants: true,
			Page:               3,
			Limit:              5,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(11), page.Total)
		require.Len(t, page.Users, 1)
		assert.Equal(t, "Alice", page.Users[0].RealName)
		assert.Equal(t, "1", page.Users[0].Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListUsersOptionsNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        ListUsersOptions
		wantPage  int
		wantLimit int
	}{
		{name: "zero values", in: ListUsersOptions{}, wantPage: 1, wantLimit: DefaultPageSize},
		{name: "negative page", in: ListUsersOptions{Page: -1, Limit: 10}, wantPage: 1, wantLimit: 10},
		{name: "limit capped", in: ListUsersOptions{Page: 2, Limit: 1000}, wantPage: 2, wantLimit: MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.in
			opts.normalize()
			assert.Equal(t, tt.wantPage, opts.Page)
			assert.Equal(t, tt.wantLimit, opts.Limit)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
}

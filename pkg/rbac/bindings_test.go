package rbac

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/platinummonkey/orgaccess/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectRoleExists(mock sqlmock.Sqlmock, roleID int64, ok bool) {
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM roles WHERE id = \$1\)`).
		WithArgs(roleID).
		WillReturnRows(existsRows(ok))
}

func TestAssignMenusToRole(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces bindings", func(t *testing.T) {
		store, mock, cache := newMockStore(t)

		mock.ExpectBegin()
		expectRoleExists(mock, 2, true)
		mock.ExpectQuery(`SELECT id FROM menus WHERE id = ANY\(\$1\)`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)).AddRow(int64(11)))
		mock.ExpectExec(`DELETE FROM role_menus WHERE role_id = \$1`).
			WithArgs(int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectExec(`INSERT INTO role_menus \(role_id, menu_id\) SELECT \$1, unnest\(\$2::bigint\[\]\)`).
			WithArgs(int64(2), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, store.AssignMenusToRole(ctx, 2, []int64{10, 11}))
		assert.Equal(t, int32(1), cache.invalidations.Load())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown role", func(t *testing.T) {
		store, mock, _ := newMockStore(t)

		mock.ExpectBegin()
		expectRoleExists(mock, 2, false)
		mock.ExpectRollback()

		err := store.AssignMenusToRole(ctx, 2, []int64{10})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown menu", func(t *testing.T) {
		store, mock, _ := newMockStore(t)

		mock.ExpectBegin()
		expectRoleExists(mock, 2, true)
		mock.ExpectQuery(`SELECT id FROM menus WHERE id = ANY\(\$1\)`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
		mock.ExpectRollback()

		err := store.AssignMenusToRole(ctx, 2, []int64{10, 12})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		assert.Contains(t, err.Error(), "12")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty set clears", func(t *testing.T) {
		store, mock, _ := newMockStore(t)

		mock.ExpectBegin()
		expectRoleExists(mock, 2, true)
		mock.ExpectExec(`DELETE FROM role_menus WHERE role_id = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectCommit()

		require.NoError(t, store.AssignMenusToRole(ctx, 2, []int64{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetMenusForRole(t *testing.T) {
	ctx := context.Background()
	store, mock, _ := newMockStore(t)

	expectRoleExists(mock, 2, true)
	mock.ExpectQuery(`SELECT menu_id FROM role_menus WHERE role_id = \$1 ORDER BY menu_id`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"menu_id"}).AddRow(int64(10)).AddRow(int64(11)))

	ids, err := store.GetMenusForRole(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)
}

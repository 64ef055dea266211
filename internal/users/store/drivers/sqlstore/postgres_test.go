package sqlstore_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/haulage/internal/users/store"
	"github.com/aussiebroadwan/haulage/internal/users/store/drivers/sqlstore"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

// newMockStore returns a postgres-dialect store over sqlmock, so the
// rebound $n placeholders can be checked without a server.
func newMockStore(t *testing.T) (*sqlstore.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlstore.New(sqlx.NewDb(db, sqlstore.DriverPostgres)), mock
}

var userCols = []string{"id", "username", "email", "full_name", "password_hash", "enabled", "created_at", "updated_at"}

func TestPostgresGetUserByID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users u WHERE u.id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(7), "kim", "kim@haulage.test", "Kim", "h", true, t0, t0))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE ur.user_id IN ($1)`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name"}).AddRow(int64(7), "admin").AddRow(int64(7), "driver"))

	u, err := s.Users().GetUserByID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "kim", u.Username)
	require.Equal(t, []string{"admin", "driver"}, u.Roles)
}

func TestPostgresGetUserNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users u WHERE u.username = $1`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := s.Users().GetUserByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresExistsByUsername(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`)).
		WithArgs("kim").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.Users().ExistsByUsername(context.Background(), "kim")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPostgresCreateUserUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := s.Users().CreateUser(context.Background(), newUser("kim"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestPostgresCreateUserGrantsRoles(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`VALUES ($1, $2, $3, $4, $5, $6, $7)`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT $1, r.id FROM roles r WHERE r.name = $2`)).
		WithArgs(int64(42), "driver").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT $1, r.id FROM roles r WHERE r.name = $2`)).
		WithArgs(int64(42), "pilot").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.Users().CreateUser(context.Background(), newUser("kim", "driver", "pilot"))
	require.ErrorIs(t, err, store.ErrNotFound, "unknown role")
}

func TestPostgresListUsersPlaceholders(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users u WHERE u.username LIKE $1`)).
		WithArgs(`ops\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY u.id LIMIT $2 OFFSET $3`)).
		WithArgs(`ops\_%`, 20, 40).
		WillReturnRows(sqlmock.NewRows(userCols))

	users, total, err := s.Users().ListUsers(context.Background(), store.ListUsersFilter{
		UsernamePrefix: "ops_",
		Limit:          20,
		Offset:         40,
	})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, users)
}

func TestPostgresDeleteMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, s.Users().DeleteUser(context.Background(), 9), store.ErrNotFound)
}

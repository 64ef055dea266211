package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/store"
	"github.com/aussiebroadwan/haulage/internal/users/store/cache"
	"github.com/aussiebroadwan/haulage/internal/users/store/drivers/sqlstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s store.Store, username string) int64 {
	t.Helper()
	id, err := s.Users().CreateUser(context.Background(), domain.User{
		Username:     username,
		PasswordHash: "hash",
		Enabled:      true,
		Roles:        []string{domain.RoleDriver},
		CreatedAt:    t0,
		UpdatedAt:    t0,
	})
	require.NoError(t, err)
	return id
}

// startRedis runs a throwaway Redis in Docker.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestReadThroughAndEviction(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t)
	db := newSQLite(t)
	s := cache.New(db, rdb, time.Minute)

	id := seedUser(t, db, "kim")
	key := fmt.Sprintf("haulage:user:%d", id)

	u, err := s.Users().GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "kim", u.Username)

	n, err := rdb.Exists(ctx, key).Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "first read populates the cache")

	ttl, err := rdb.TTL(ctx, key).Result()
	require.NoError(t, err)
	require.Positive(t, ttl)

	raw, err := rdb.Get(ctx, key).Result()
	require.NoError(t, err)
	require.NotContains(t, raw, "password_hash")
	require.NotContains(t, raw, `"hash"`)

	// Change the row behind the cache's back: the cached copy still wins.
	behind := u
	behind.FullName = "Kim Behind"
	require.NoError(t, db.Users().UpdateUser(ctx, behind))
	u, err = s.Users().GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Empty(t, u.FullName)
	require.Empty(t, u.PasswordHash, "hashes are never served from the cache")
	require.Equal(t, []string{domain.RoleDriver}, u.Roles)

	ok, err := s.Users().ExistsByID(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	// Writes through the decorator evict.
	require.NoError(t, s.Users().SetUserRoles(ctx, id, []string{domain.RoleDispatcher}))
	n, err = rdb.Exists(ctx, key).Result()
	require.NoError(t, err)
	require.Zero(t, n)

	u, err = s.Users().GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Kim Behind", u.FullName)
	require.Equal(t, "hash", u.PasswordHash, "a miss reads the full row from the database")
	require.Equal(t, []string{domain.RoleDispatcher}, u.Roles)

	require.NoError(t, s.Users().DeleteUser(ctx, id))
	_, err = s.Users().GetUserByID(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactionEvictsOnCommit(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t)
	db := newSQLite(t)
	s := cache.New(db, rdb, time.Minute)

	id := seedUser(t, db, "kim")
	_, err := s.Users().GetUserByID(ctx, id)
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByID(ctx, id)
		if err != nil {
			return err
		}
		u.FullName = "Kim Lee"
		u.UpdatedAt = t0.Add(time.Minute)
		return tx.Users().UpdateUser(ctx, u)
	})
	require.NoError(t, err)

	u, err := s.Users().GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Kim Lee", u.FullName)
}

func TestRedisDownFallsBackToDatabase(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	db := newSQLite(t)
	s := cache.New(db, rdb, 0)
	id := seedUser(t, db, "kim")

	u, err := s.Users().GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "kim", u.Username)

	ok, err := s.Users().ExistsByID(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, id, "new", t0))
	require.Error(t, s.Ping(ctx), "readiness reports the dead cache")
}

// Package cache decorates a store.Store with a Redis read-through cache for
// users looked up by id. Reads that fail against Redis fall back to the
// database; every write through the decorator evicts the user's entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/store"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how stale a cached user can get if an eviction is lost.
const DefaultTTL = 5 * time.Minute

// Client is the slice of a Redis client the cache uses. *redis.Client and
// every redis.UniversalClient satisfy it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type Store struct {
	store.Store
	c *userCache
}

// New wraps inner. A ttl of zero uses DefaultTTL.
func New(inner store.Store, rdb Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{Store: inner, c: &userCache{rdb: rdb, ttl: ttl}}
}

func (s *Store) Users() store.Users {
	return &users{Users: s.Store.Users(), c: s.c}
}

// Ping checks the database and Redis.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return err
	}
	return s.c.rdb.Ping(ctx).Err()
}

func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.Store.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &txStore{Store: tx, tx: tx, c: s.c, ctx: ctx}, nil
}

// WithTx mirrors the inner store's WithTx so that Commit goes through the
// decorator and evicts what the transaction touched.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore decorates a transaction. The embedded Store is the transaction
// itself; tx is kept separately for Commit and Rollback.
type txStore struct {
	store.Store
	tx  store.Tx
	c   *userCache
	ctx context.Context

	mu      sync.Mutex
	touched []int64
}

func (t *txStore) Users() store.Users {
	return &users{Users: t.tx.Users(), c: t.c, onWrite: t.touch, inTx: true}
}

func (t *txStore) touch(id int64) {
	t.mu.Lock()
	t.touched = append(t.touched, id)
	t.mu.Unlock()
}

// Commit evicts again after the commit so a read racing the transaction
// cannot leave the pre-commit row cached.
func (t *txStore) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}
	t.mu.Lock()
	ids := t.touched
	t.touched = nil
	t.mu.Unlock()
	t.c.evict(t.ctx, ids...)
	return nil
}

func (t *txStore) Rollback() error {
	return t.tx.Rollback()
}

type users struct {
	store.Users
	c       *userCache
	onWrite func(id int64)

	// Inside a transaction reads go straight to the database: the cache
	// must never hold rows that might be rolled back.
	inTx bool
}

func (u *users) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	if u.inTx {
		return u.Users.GetUserByID(ctx, id)
	}
	if user, ok := u.c.get(ctx, id); ok {
		return user, nil
	}
	user, err := u.Users.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	u.c.set(ctx, user)
	return user, nil
}

func (u *users) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if !u.inTx && u.c.has(ctx, id) {
		return true, nil
	}
	return u.Users.ExistsByID(ctx, id)
}

func (u *users) UpdateUser(ctx context.Context, user domain.User) error {
	defer u.written(ctx, user.ID)
	return u.Users.UpdateUser(ctx, user)
}

func (u *users) UpdatePasswordHash(ctx context.Context, id int64, hash string, at time.Time) error {
	defer u.written(ctx, id)
	return u.Users.UpdatePasswordHash(ctx, id, hash, at)
}

func (u *users) SetUserRoles(ctx context.Context, id int64, roles []string) error {
	defer u.written(ctx, id)
	return u.Users.SetUserRoles(ctx, id, roles)
}

func (u *users) DeleteUser(ctx context.Context, id int64) error {
	defer u.written(ctx, id)
	return u.Users.DeleteUser(ctx, id)
}

func (u *users) written(ctx context.Context, id int64) {
	u.c.evict(ctx, id)
	if u.onWrite != nil {
		u.onWrite(id)
	}
}

// cachedUser is the JSON form kept in Redis. The password hash is never
// cached: only lookups by id are served from here and none of them verify
// passwords, so a user read from the cache has an empty PasswordHash.
type cachedUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Enabled   bool      `json:"enabled"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCached(u domain.User) cachedUser {
	return cachedUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Enabled:   u.Enabled,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (cu cachedUser) user() domain.User {
	return domain.User{
		ID:        cu.ID,
		Username:  cu.Username,
		Email:     cu.Email,
		FullName:  cu.FullName,
		Enabled:   cu.Enabled,
		Roles:     cu.Roles,
		CreatedAt: cu.CreatedAt,
		UpdatedAt: cu.UpdatedAt,
	}
}

type userCache struct {
	rdb Client
	ttl time.Duration
}

func (c *userCache) key(id int64) string {
	return fmt.Sprintf("haulage:user:%d", id)
}

func (c *userCache) get(ctx context.Context, id int64) (domain.User, bool) {
	val, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, false
	}
	if err != nil {
		slogx.FromContext(ctx).Warn("user cache read failed", slog.Int64("user_id", id), slog.Any("error", err))
		return domain.User{}, false
	}

	var cu cachedUser
	if err := json.Unmarshal(val, &cu); err != nil {
		slogx.FromContext(ctx).Warn("user cache entry corrupt", slog.Int64("user_id", id), slog.Any("error", err))
		c.evict(ctx, id)
		return domain.User{}, false
	}
	return cu.user(), true
}

func (c *userCache) has(ctx context.Context, id int64) bool {
	n, err := c.rdb.Exists(ctx, c.key(id)).Result()
	return err == nil && n > 0
}

func (c *userCache) set(ctx context.Context, u domain.User) {
	data, err := json.Marshal(toCached(u))
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(u.ID), data, c.ttl).Err(); err != nil {
		slogx.FromContext(ctx).Warn("user cache write failed", slog.Int64("user_id", u.ID), slog.Any("error", err))
	}
}

func (c *userCache) evict(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		slogx.FromContext(ctx).Warn("user cache eviction failed", slog.Any("keys", keys), slog.Any("error", err))
	}
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/store"
	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/cryptox"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
)

// Authenticator verifies a username and password.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (domain.Identity, error)
}

// PasswordAuthenticator checks passwords against the user store. Legacy
// bcrypt hashes are accepted and upgraded to argon2id on success.
type PasswordAuthenticator struct {
	Store store.Store
	Clock clock.Clock
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnVerify spends the same time as a real password check so an unknown
// username is not faster to reject than a wrong password.
func burnVerify(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword("haulage-dummy-password")
	})
	_ = cryptox.VerifyPassword(password, dummyHash)
}

func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, password string) (domain.Identity, error) {
	l := slogx.FromContext(ctx)
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return domain.Identity{}, ErrInvalidCredentials
	}

	u, err := a.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnVerify(password)
			return domain.Identity{}, ErrInvalidCredentials
		}
		return domain.Identity{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Warn("stored password hash unusable", slog.Int64("user_id", u.ID), slog.Any("error", err))
		}
		return domain.Identity{}, ErrInvalidCredentials
	}

	if !u.Enabled {
		return domain.Identity{}, ErrAccountDisabled
	}

	if cryptox.NeedsRehash(u.PasswordHash) {
		a.rehash(ctx, u.ID, password)
	}
	return u.Identity(), nil
}

// rehash upgrades a legacy hash. Failure only costs the upgrade.
func (a *PasswordAuthenticator) rehash(ctx context.Context, id int64, password string) {
	l := slogx.FromContext(ctx)
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		l.Error("failed to rehash password", slog.Int64("user_id", id), slog.Any("error", err))
		return
	}
	if err := a.Store.Users().UpdatePasswordHash(ctx, id, hash, a.Clock.Now()); err != nil {
		l.Error("failed to store upgraded password hash", slog.Int64("user_id", id), slog.Any("error", err))
		return
	}
	l.Info("upgraded legacy password hash", slog.Int64("user_id", id))
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

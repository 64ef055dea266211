package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/store"
	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/cryptox"
	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
)

// UserLookup finds the stored user behind a verified username.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
}

type AuthService struct {
	Authenticator Authenticator
	Users         UserLookup
	Tokens        *TokenIssuer
	Clock         clock.Clock
}

// Login verifies cred and mints a token pair.
//
// Authentication failures are not errors: the result is empty and the
// caller cannot tell a wrong password from an unknown or disabled user.
// Only infrastructure failures come back as an error.
func (s *AuthService) Login(ctx context.Context, cred domain.Credential) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	username := NormalizeUsername(cred.Username)

	if _, err := s.Authenticator.Authenticate(ctx, username, cred.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrAccountDisabled) {
			l.Info("login rejected", slog.String("username", username), slog.String("reason", err.Error()))
			return domain.LoginResult{}, nil
		}
		return domain.LoginResult{}, err
	}

	u, err := s.Users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Warn("authenticated user vanished before token issue", slog.String("username", username))
			return domain.LoginResult{}, nil
		}
		return domain.LoginResult{}, err
	}

	id := u.Identity()
	pair, err := s.Tokens.Mint(id)
	if err != nil {
		return domain.LoginResult{}, err
	}

	l.Info("login succeeded", slog.Int64("user_id", id.ID), slog.String("username", id.Username))
	return domain.LoginResult{Tokens: pair, Identity: &id}, nil
}

// Refresh exchanges a refresh token for a new pair. The token itself is
// judged on signature and expiry alone; the old token is neither stored nor
// revoked. Roles in the new pair are re-read from the user store.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.TokenPair{}, ErrMissingToken
	}
	fp := cryptox.FingerprintToken(refreshToken)

	decoded, err := s.Tokens.Decode(refreshToken)
	if err != nil {
		l.Info("refresh token rejected", slog.String("token_fp", fp), slog.Any("error", err))
		return domain.TokenPair{}, ErrInvalidToken
	}
	if decoded.Use != jwtx.UseRefresh || decoded.Subject == "" {
		l.Info("refresh token rejected", slog.String("token_fp", fp), slog.String("use", string(decoded.Use)))
		return domain.TokenPair{}, ErrInvalidToken
	}
	if decoded.ExpiredAt(s.Clock.Now()) {
		l.Info("refresh token expired", slog.String("token_fp", fp), slog.String("username", decoded.Subject))
		return domain.TokenPair{}, ErrExpiredToken
	}

	// The new pair carries the account as it is now, so a demotion or a
	// disabled account takes effect at the next refresh.
	u, err := s.Users.GetUserByUsername(ctx, decoded.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.Info("refresh token for unknown user", slog.String("token_fp", fp), slog.String("username", decoded.Subject))
		return domain.TokenPair{}, ErrInvalidToken
	case err != nil:
		return domain.TokenPair{}, err
	case u.ID != decoded.UserID || !u.Enabled:
		l.Info("refresh token for replaced or disabled user", slog.String("token_fp", fp), slog.String("username", decoded.Subject))
		return domain.TokenPair{}, ErrInvalidToken
	}

	pair, err := s.Tokens.Mint(u.Identity())
	if err != nil {
		return domain.TokenPair{}, err
	}

	l.Info("tokens refreshed", slog.String("token_fp", fp), slog.String("username", decoded.Subject))
	return pair, nil
}

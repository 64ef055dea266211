package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/pkg/cryptox"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
)

var ErrBootstrapFailedToCreateAdmin = errors.New("failed to create admin user")

// BootstrapService seeds the first admin account.
type BootstrapService struct {
	Users *UserService
}

// EnsureAdmin creates username as an admin when the user table is empty.
// With no password configured a random one is generated and logged once,
// since otherwise nobody could ever sign in. It reports whether a user was
// created.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	l := slogx.FromContext(ctx)
	if username == "" {
		return false, nil
	}

	empty, err := s.Users.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	if !empty {
		l.Debug("users present, skipping admin bootstrap")
		return false, nil
	}

	generated := false
	if password == "" {
		password, err = cryptox.GeneratePassword()
		if err != nil {
			return false, err
		}
		generated = true
	}

	u, err := s.Users.Create(ctx, CreateUserInput{
		Username: username,
		Password: password,
		FullName: "Administrator",
		Roles:    []string{domain.RoleAdmin},
	})
	if err != nil {
		l.Error("failed to create admin user", slog.String("username", username), slog.Any("error", err))
		return false, errors.Join(ErrBootstrapFailedToCreateAdmin, err)
	}

	if generated {
		l.Warn("generated admin password, change it after first login",
			slog.String("username", u.Username),
			slog.String("password", password),
		)
	}
	l.Info("bootstrapped admin user", slog.Int64("user_id", u.ID), slog.String("username", u.Username))
	return true, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/guard"
	"github.com/aussiebroadwan/haulage/internal/users/store"
	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/cryptox"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Listing page sizes.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const MinPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,63}$`)

// CreateUserInput describes a new account. Roles defaults to ["user"].
type CreateUserInput struct {
	Username string
	Password string
	Email    string
	FullName string
	Roles    []string
	Disabled bool
}

// GetUsername satisfies guard.UsernameCarrier.
func (in CreateUserInput) GetUsername() string { return NormalizeUsername(in.Username) }

// UpdateUserInput is a partial update: nil fields are left alone.
type UpdateUserInput struct {
	Email    *string
	FullName *string
	Enabled  *bool
	Password *string
	Roles    []string // nil leaves roles unchanged
}

// ListUsersQuery selects one page of users. Page starts at 1.
type ListUsersQuery struct {
	Page           int
	Size           int
	UsernamePrefix string
	Role           string
}

// UserService owns the user lifecycle. Create, Update and Delete run behind
// existence guards bound in NewUserService.
type UserService struct {
	Store store.Store
	Clock clock.Clock

	create func(context.Context, CreateUserInput) (domain.User, error)
	update func(context.Context, int64, UpdateUserInput) (domain.User, error)
	remove func(context.Context, int64) error
}

func NewUserService(st store.Store, clk clock.Clock) *UserService {
	if clk == nil {
		clk = clock.System
	}
	s := &UserService{Store: st, Clock: clk}

	lookup := st.Users()
	s.create = guard.Wrap(guard.Policy{Mode: guard.ByUsername, Operation: "createUser", Lookup: lookup}, s.createUser)
	s.update = guard.Wrap2(guard.Policy{Mode: guard.ByID, Operation: "updateUser", Lookup: lookup}, s.updateUser)
	s.remove = guard.WrapErr(guard.Policy{Mode: guard.ByID, Operation: "deleteUser", Lookup: lookup}, s.deleteUser)
	return s
}

// Create adds a user. A taken username fails with *guard.AlreadyExistsError
// before anything is written.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (domain.User, error) {
	if err := validateCreate(&in); err != nil {
		return domain.User{}, err
	}
	return s.create(ctx, in)
}

// Register is public self-signup: the account always gets the user role.
func (s *UserService) Register(ctx context.Context, in CreateUserInput) (domain.User, error) {
	in.Roles = []string{domain.RoleUser}
	in.Disabled = false
	return s.Create(ctx, in)
}

// Update applies in to user id. A missing id fails with *guard.NotFoundError.
func (s *UserService) Update(ctx context.Context, id int64, in UpdateUserInput) (domain.User, error) {
	if err := validateUpdate(in); err != nil {
		return domain.User{}, err
	}
	if in.Roles != nil {
		in.Roles = normalizeRoles(in.Roles)
	}
	return s.update(ctx, id, in)
}

// Delete removes user id. A missing id fails with *guard.NotFoundError.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id)
}

func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// List returns one page of users. Size is clamped to [1, MaxPageSize].
func (s *UserService) List(ctx context.Context, q ListUsersQuery) (domain.Page[domain.User], error) {
	page := max(q.Page, 1)
	size := q.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)

	users, total, err := s.Store.Users().ListUsers(ctx, store.ListUsersFilter{
		UsernamePrefix: NormalizeUsername(q.UsernamePrefix),
		Role:           q.Role,
		Limit:          size,
		Offset:         (page - 1) * size,
	})
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	return domain.Page[domain.User]{Items: users, Page: page, Size: size, Total: total}, nil
}

func (s *UserService) createUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	l := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.Clock.Now()
	u := domain.User{
		Username:     in.GetUsername(),
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		Enabled:      !in.Disabled,
		Roles:        in.Roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		id, err := tx.Users().CreateUser(ctx, u)
		if err != nil {
			return err
		}
		u.ID = id
		return nil
	})
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		l.Warn("username taken between guard and insert", slog.String("username", u.Username))
		return domain.User{}, ErrConflict
	case errors.Is(err, store.ErrNotFound):
		return domain.User{}, ErrUnknownRole
	case err != nil:
		return domain.User{}, err
	}

	l.Info("user created", slog.Int64("user_id", u.ID), slog.String("username", u.Username), slog.Any("roles", u.Roles))
	return u, nil
}

func (s *UserService) updateUser(ctx context.Context, id int64, in UpdateUserInput) (domain.User, error) {
	var hash string
	if in.Password != nil {
		h, err := cryptox.HashPassword(*in.Password)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = h
	}

	var out domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByID(ctx, id)
		if err != nil {
			return err
		}

		now := s.Clock.Now()
		if in.Email != nil {
			u.Email = *in.Email
		}
		if in.FullName != nil {
			u.FullName = *in.FullName
		}
		if in.Enabled != nil {
			u.Enabled = *in.Enabled
		}
		u.UpdatedAt = now
		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return err
		}

		if hash != "" {
			if err := tx.Users().UpdatePasswordHash(ctx, id, hash, now); err != nil {
				return err
			}
		}

		if in.Roles != nil {
			for _, r := range in.Roles {
				if _, err := tx.Roles().GetRoleByName(ctx, r); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return ErrUnknownRole
					}
					return err
				}
			}
			if err := tx.Users().SetUserRoles(ctx, id, in.Roles); err != nil {
				return err
			}
		}

		out, err = tx.Users().GetUserByID(ctx, id)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user updated", slog.Int64("user_id", id))
	return out, nil
}

func (s *UserService) deleteUser(ctx context.Context, id int64) error {
	if err := s.Store.Users().DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	slogx.FromContext(ctx).Info("user deleted", slog.Int64("user_id", id))
	return nil
}

var usernameRule = validation.Match(usernamePattern).
	Error("must be 3-64 characters of a-z, 0-9, '.', '_' or '-'")

func validateCreate(in *CreateUserInput) error {
	in.Username = NormalizeUsername(in.Username)
	err := validation.ValidateStruct(in,
		validation.Field(&in.Username, validation.Required, usernameRule),
		validation.Field(&in.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
		validation.Field(&in.Email, is.Email, validation.Length(0, 254)),
		validation.Field(&in.FullName, validation.Length(0, 200)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(in.Roles) == 0 {
		in.Roles = []string{domain.RoleUser}
	}
	in.Roles = normalizeRoles(in.Roles)
	return nil
}

func validateUpdate(in UpdateUserInput) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Password, validation.NilOrNotEmpty, validation.Length(MinPasswordLength, 0)),
		validation.Field(&in.Email, is.Email, validation.Length(0, 254)),
		validation.Field(&in.FullName, validation.Length(0, 200)),
		validation.Field(&in.Roles, validation.NilOrNotEmpty.Error("a user needs at least one role")),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func normalizeRoles(roles []string) []string {
	out := slices.Clone(roles)
	slices.Sort(out)
	return slices.Compact(out)
}

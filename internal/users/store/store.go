package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it
// and expose sub-repositories, which keeps a transaction from being opened
// inside another one by accident.
type Store interface {
	Users() Users
	Roles() Roles

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// ListUsersFilter narrows a user listing. Zero values mean no filter.
type ListUsersFilter struct {
	UsernamePrefix string
	Role           string
	Limit          int
	Offset         int
}

type Users interface {
	// GetUserByID returns a user with its roles.
	GetUserByID(ctx context.Context, id int64) (domain.User, error)

	// GetUserByUsername is used during login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// CreateUser inserts u and its role grants and returns the new id.
	// A taken username yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) (int64, error)

	// UpdateUser writes email, full name, enabled and updated_at.
	UpdateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash replaces the stored hash and sets updated_at to at.
	UpdatePasswordHash(ctx context.Context, id int64, hash string, at time.Time) error

	// SetUserRoles replaces every role grant of the user. Unknown role
	// names yield ErrNotFound.
	SetUserRoles(ctx context.Context, id int64, roles []string) error

	// DeleteUser cascades to role grants (per schema).
	DeleteUser(ctx context.Context, id int64) error

	// ListUsers returns one page of users ordered by id, and the total
	// number of users matching the filter.
	ListUsers(ctx context.Context, f ListUsersFilter) ([]domain.User, int, error)

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Roles interface {
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	// ListAll returns all roles ordered by name.
	ListAll(ctx context.Context) ([]domain.Role, error)
}

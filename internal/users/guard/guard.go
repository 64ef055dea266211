// Package guard checks user existence before a lifecycle operation runs.
//
// A Policy is bound to an operation where the operation is composed, e.g.
//
//	create := guard.Wrap(guard.Policy{Mode: guard.ByUsername, Operation: "createUser", Lookup: users}, svc.create)
//
// The policy inspects the operation's first argument. ByUsername blocks
// when the username is already taken; ByID blocks when the id does not
// exist. When the argument does not have the shape the mode expects, the
// policy does nothing and the operation runs unguarded.
package guard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/haulage/pkg/slogx"
)

type Mode int

const (
	// ByUsername expects a UsernameCarrier and blocks if the user exists.
	ByUsername Mode = iota + 1

	// ByID expects an integer id and blocks if the user does not exist.
	ByID
)

func (m Mode) String() string {
	switch m {
	case ByUsername:
		return "by-username"
	case ByID:
		return "by-id"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// UsernameCarrier is a request that names the user it creates.
type UsernameCarrier interface {
	GetUsername() string
}

// Lookup answers existence questions. store.Users satisfies it.
type Lookup interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

type Policy struct {
	Mode Mode

	// Operation names the guarded operation in NotFound errors and logs.
	Operation string

	Lookup Lookup
}

// Check evaluates the policy against arg. A nil result means the operation
// may run. Lookup failures are returned wrapped.
func (p Policy) Check(ctx context.Context, arg any) error {
	switch p.Mode {
	case ByUsername:
		c, ok := arg.(UsernameCarrier)
		if !ok {
			p.shapeMismatch(ctx, arg)
			return nil
		}
		username := c.GetUsername()
		exists, err := p.Lookup.ExistsByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("guard %s: %w", p.Operation, err)
		}
		if exists {
			return &AlreadyExistsError{Username: username}
		}
		return nil

	case ByID:
		id, ok := asID(arg)
		if !ok {
			p.shapeMismatch(ctx, arg)
			return nil
		}
		exists, err := p.Lookup.ExistsByID(ctx, id)
		if err != nil {
			return fmt.Errorf("guard %s: %w", p.Operation, err)
		}
		if !exists {
			return &NotFoundError{ID: id, Operation: p.Operation}
		}
		return nil

	default:
		p.shapeMismatch(ctx, arg)
		return nil
	}
}

// shapeMismatch logs the unguarded call. The operation still runs.
func (p Policy) shapeMismatch(ctx context.Context, arg any) {
	slogx.FromContext(ctx).Warn("existence guard skipped: argument shape does not match mode",
		slog.String("operation", p.Operation),
		slog.String("mode", p.Mode.String()),
		slog.String("arg_type", fmt.Sprintf("%T", arg)),
	)
}

func asID(arg any) (int64, bool) {
	switch v := arg.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	default:
		return 0, false
	}
}

// Wrap guards a single-argument operation.
func Wrap[A, R any](p Policy, op func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, a A) (R, error) {
		if err := p.Check(ctx, a); err != nil {
			var zero R
			return zero, err
		}
		return op(ctx, a)
	}
}

// Wrap2 guards a two-argument operation; only the first argument is checked.
func Wrap2[A, B, R any](p Policy, op func(context.Context, A, B) (R, error)) func(context.Context, A, B) (R, error) {
	return func(ctx context.Context, a A, b B) (R, error) {
		if err := p.Check(ctx, a); err != nil {
			var zero R
			return zero, err
		}
		return op(ctx, a, b)
	}
}

// WrapErr guards an operation that only returns an error.
func WrapErr[A any](p Policy, op func(context.Context, A) error) func(context.Context, A) error {
	return func(ctx context.Context, a A) error {
		if err := p.Check(ctx, a); err != nil {
			return err
		}
		return op(ctx, a)
	}
}

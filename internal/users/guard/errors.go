package guard

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists = errors.New("guard: user already exists")
	ErrNotFound      = errors.New("guard: user not found")
)

// AlreadyExistsError blocks a create whose username is taken.
type AlreadyExistsError struct {
	Username string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("user %q already exists", e.Username)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// NotFoundError blocks an update or delete of a missing user.
type NotFoundError struct {
	ID        int64
	Operation string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: user %d not found", e.Operation, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

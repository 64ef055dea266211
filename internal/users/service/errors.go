package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountDisabled    = errors.New("account_disabled")

	ErrMissingToken = errors.New("missing_token")
	ErrInvalidToken = errors.New("invalid_token")
	ErrExpiredToken = errors.New("expired_token")

	// ErrDecode is returned for any token that fails signature or structure
	// checks. The wrapped cause is for logs, not for callers.
	ErrDecode = errors.New("invalid token")

	ErrInvalidInput = errors.New("invalid_input")
	ErrUnknownRole  = errors.New("unknown_role")
	ErrUserNotFound = errors.New("user_not_found")

	// ErrConflict reports a write that lost a uniqueness race the existence
	// guard could not see.
	ErrConflict = errors.New("conflict")
)

package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/haulage/internal/users/guard"
	"github.com/aussiebroadwan/haulage/internal/users/service"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
	"github.com/aussiebroadwan/haulage/pkg/usersdk"
)

// writeServiceError maps an error from the service layer onto the API
// error body. Anything unrecognised is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		exists   *guard.AlreadyExistsError
		notFound *guard.NotFoundError
	)

	switch {
	case errors.As(err, &exists):
		usersdk.ErrAlreadyExists.WithDescription(exists.Error()).WriteError(w)
	case errors.As(err, &notFound):
		usersdk.ErrNotFound.WithDescription(notFound.Error()).WriteError(w)
	case errors.Is(err, service.ErrUserNotFound):
		usersdk.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrConflict):
		usersdk.ErrConflict.WriteError(w)
	case errors.Is(err, service.ErrInvalidInput):
		usersdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
	case errors.Is(err, service.ErrUnknownRole):
		usersdk.ErrInvalidRequest.WithDescription("unknown role").WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		usersdk.ErrServerError.WriteError(w)
	}
}

package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/service"
	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/httpx"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
	"github.com/aussiebroadwan/haulage/pkg/usersdk"
)

type AuthHandler struct {
	Auth    *service.AuthService
	Users   *service.UserService
	Cookies CookieConfig
	Clock   clock.Clock
}

// Login handles POST /v1/auth/login. Any authentication failure is a 401
// invalid_credentials with nothing to tell the causes apart.
//
//	@Summary	Log in
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		usersdk.LoginRequest	true	"Credentials"
//	@Success	200		{object}	usersdk.LoginResponse
//	@Failure	400		{object}	usersdk.APIError
//	@Failure	401		{object}	usersdk.APIError	"Invalid credentials"
//	@Failure	429		{object}	usersdk.APIError
//	@Router		/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req usersdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		usersdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}
	if req.Username == "" || req.Password == "" {
		usersdk.ErrInvalidRequest.WithDescription("username and password are required").WriteError(w)
		return
	}

	res, err := h.Auth.Login(ctx, domain.Credential{Username: req.Username, Password: req.Password})
	if err != nil {
		slogx.FromContext(ctx).Error("login failed", "error", err)
		usersdk.ErrServerError.WriteError(w)
		return
	}
	if !res.OK() {
		usersdk.ErrInvalidCredentials.WriteError(w)
		return
	}

	h.Cookies.setTokenCookies(w, res.Tokens, h.Clock.Now())
	httpx.WriteJSON(w, http.StatusOK, usersdk.LoginResponse{
		User: usersdk.IdentityResponse{
			ID:       res.Identity.ID,
			Username: res.Identity.Username,
			Roles:    nonNil(res.Identity.Roles),
		},
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
	})
}

// Refresh handles POST /v1/auth/refresh. The refresh token comes from its
// cookie, or from a JSON body for clients without a cookie jar.
//
//	@Summary	Rotate the token pair
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		usersdk.RefreshRequest	false	"Refresh token when no cookie is sent"
//	@Success	200		{object}	usersdk.RefreshResponse
//	@Failure	400		{object}	usersdk.APIError	"Missing token"
//	@Failure	401		{object}	usersdk.APIError	"Expired token"
//	@Failure	403		{object}	usersdk.APIError	"Invalid token"
//	@Router		/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := ""
	if c, err := r.Cookie(usersdk.RefreshTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" && r.ContentLength != 0 {
		var req usersdk.RefreshRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			usersdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.Auth.Refresh(ctx, token)
	switch {
	case errors.Is(err, service.ErrMissingToken):
		usersdk.ErrMissingToken.WriteError(w)
		return
	case errors.Is(err, service.ErrInvalidToken):
		usersdk.ErrInvalidToken.WriteError(w)
		return
	case errors.Is(err, service.ErrExpiredToken):
		usersdk.ErrExpiredToken.WriteError(w)
		return
	case err != nil:
		slogx.FromContext(ctx).Error("refresh failed", "error", err)
		usersdk.ErrServerError.WriteError(w)
		return
	}

	h.Cookies.setTokenCookies(w, pair, h.Clock.Now())
	httpx.WriteJSON(w, http.StatusOK, usersdk.RefreshResponse{
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

// Logout handles POST /v1/auth/logout. It only clears cookies; tokens
// already issued stay valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.Cookies.clearTokenCookies(w)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// Register handles POST /v1/auth/register, public signup with the user role.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req usersdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		usersdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	u, err := h.Users.Register(r.Context(), service.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

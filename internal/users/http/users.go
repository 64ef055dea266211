package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/service"
	"github.com/aussiebroadwan/haulage/pkg/httpx"
	"github.com/aussiebroadwan/haulage/pkg/usersdk"
	"github.com/go-chi/chi/v5"
)

type UsersHandler struct {
	Users *service.UserService
}

// Me returns the caller's own account.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		usersdk.ErrInvalidToken.WriteError(w)
		return
	}

	u, err := h.Users.Get(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// List handles GET /v1/users?page=&size=&username=&role=.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := optionalInt(q.Get("page"))
	if err != nil {
		usersdk.ErrInvalidRequest.WithDescription("page must be an integer").WriteError(w)
		return
	}
	size, err := optionalInt(q.Get("size"))
	if err != nil {
		usersdk.ErrInvalidRequest.WithDescription("size must be an integer").WriteError(w)
		return
	}

	res, err := h.Users.List(r.Context(), service.ListUsersQuery{
		Page:           page,
		Size:           size,
		UsernamePrefix: q.Get("username"),
		Role:           q.Get("role"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := usersdk.ListUsersResponse{
		Users: make([]usersdk.UserResponse, len(res.Items)),
		Page:  res.Page,
		Size:  res.Size,
		Total: res.Total,
	}
	for i, u := range res.Items {
		out.Users[i] = toUserResponse(u)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	u, err := h.Users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// Create handles POST /v1/users. A taken username is a 409 already_exists.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req usersdk.CreateUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		usersdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	u, err := h.Users.Create(r.Context(), service.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
		Roles:    req.Roles,
		Disabled: req.Disabled,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

// Update handles PUT /v1/users/{id}. An unknown id is a 404.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req usersdk.UpdateUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		usersdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	u, err := h.Users.Update(r.Context(), id, service.UpdateUserInput{
		Email:    req.Email,
		FullName: req.FullName,
		Enabled:  req.Enabled,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// Delete handles DELETE /v1/users/{id}. An unknown id is a 404.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.Users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		usersdk.ErrInvalidRequest.WithDescription("user id must be a positive integer").WriteError(w)
		return 0, false
	}
	return id, true
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func toUserResponse(u domain.User) usersdk.UserResponse {
	return usersdk.UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Enabled:   u.Enabled,
		Roles:     nonNil(u.Roles),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// nonNil keeps empty role lists as [] rather than null on the wire.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

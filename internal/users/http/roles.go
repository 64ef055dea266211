package http

import (
	"net/http"

	"github.com/aussiebroadwan/haulage/internal/users/service"
	"github.com/aussiebroadwan/haulage/pkg/httpx"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
	"github.com/aussiebroadwan/haulage/pkg/usersdk"
)

type RolesHandler struct {
	Roles *service.RoleService
}

// ServeHTTP handles GET /v1/roles.
func (h *RolesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roles, err := h.Roles.ListRoles(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list roles", "error", err)
		usersdk.ErrServerError.WithDescription("failed to retrieve roles").WriteError(w)
		return
	}

	response := usersdk.ListRolesResponse{
		Roles: make([]usersdk.RoleInfo, len(roles)),
	}
	for i, role := range roles {
		response.Roles[i] = usersdk.RoleInfo{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
		}
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}

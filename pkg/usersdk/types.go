package usersdk

import (
	"time"

	"github.com/aussiebroadwan/haulage/pkg/httpx"
	"github.com/aussiebroadwan/haulage/pkg/jwtx"
)

// Cookie names the server uses to carry tokens.
const (
	AccessTokenCookie  = httpx.AccessTokenCookie
	RefreshTokenCookie = httpx.RefreshTokenCookie
)

// ============================================================================
// Auth
// ============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the body of a successful login. The tokens themselves
// travel in the access_token and refresh_token cookies.
type LoginResponse struct {
	User             IdentityResponse `json:"user"`
	AccessExpiresAt  time.Time        `json:"access_expires_at"`
	RefreshExpiresAt time.Time        `json:"refresh_expires_at"`
}

// IdentityResponse is who a token pair was issued to.
type IdentityResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// RefreshRequest is only needed by clients that cannot send cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// ============================================================================
// Users
// ============================================================================

type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	Enabled   bool      `json:"enabled"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateUserRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`
}

// UpdateUserRequest is a partial update, nil fields are left alone.
type UpdateUserRequest struct {
	Email    *string  `json:"email,omitempty"`
	FullName *string  `json:"full_name,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty"`
	Password *string  `json:"password,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type ListUsersResponse struct {
	Users []UserResponse `json:"users"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
	Total int            `json:"total"`
}

// ListUsersOptions filters GET /v1/users. Zero values are omitted.
type ListUsersOptions struct {
	Page           int
	Size           int
	UsernamePrefix string
	Role           string
}

// ============================================================================
// Roles
// ============================================================================

type RoleInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ListRolesResponse struct {
	Roles []RoleInfo `json:"roles"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz, only the latter
// fills Checks.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
	// Cache is empty when no redis is configured.
	Cache string `json:"cache,omitempty"`
}

// ============================================================================
// JWKS
// ============================================================================

// JWKSResponse is the key set other services verify access tokens with.
type JWKSResponse jwtx.JWKS

package usersdk

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the users service. It covers the public endpoints
// and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates a self-service account holding the user role.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	resp, err := c.send(ctx, http.MethodPost, "/v1/auth/register", req, "")
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates with a password and returns a Session carrying the
// issued token pair.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*Session, error) {
	resp, err := c.send(ctx, http.MethodPost, "/v1/auth/login", LoginRequest{
		Username: username,
		Password: password,
	}, "")
	if err != nil {
		return nil, err
	}

	access, refresh := tokensFromCookies(resp)

	var login LoginResponse
	if err := decodeJSON(resp, &login, http.StatusOK); err != nil {
		return nil, err
	}
	if access == "" || refresh == "" {
		return nil, fmt.Errorf("login response is missing token cookies")
	}

	return newSession(c, login.User, access, refresh, login.AccessExpiresAt), nil
}

// Refresh exchanges a refresh token for a new pair. The returned tokens
// replace both of the old ones.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (access, refresh string, resp *RefreshResponse, err error) {
	httpResp, err := c.send(ctx, http.MethodPost, "/v1/auth/refresh", RefreshRequest{RefreshToken: refreshToken}, "")
	if err != nil {
		return "", "", nil, err
	}

	access, refresh = tokensFromCookies(httpResp)

	var body RefreshResponse
	if err := decodeJSON(httpResp, &body, http.StatusOK); err != nil {
		return "", "", nil, err
	}
	return access, refresh, &body, nil
}

// NewSessionFromTokens resumes a session from previously issued tokens.
// accessExpiresAt may be zero, in which case the first call refreshes.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, accessExpiresAt time.Time) *Session {
	return newSession(c, IdentityResponse{}, accessToken, refreshToken, accessExpiresAt)
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.getHealth(ctx, "/livez")
}

// GetReadiness checks if the service and its dependencies are ready.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.getHealth(ctx, "/readyz")
}

func (c *SDKClient) getHealth(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetJWKS retrieves the public keys access tokens are signed with.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.send(ctx, http.MethodGet, "/.well-known/jwks.json", nil, "")
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}

func tokensFromCookies(resp *http.Response) (access, refresh string) {
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case AccessTokenCookie:
			access = ck.Value
		case RefreshTokenCookie:
			refresh = ck.Value
		}
	}
	return access, refresh
}

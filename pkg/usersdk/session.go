package usersdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// refreshSkew refreshes the access token shortly before it actually expires.
const refreshSkew = 30 * time.Second

// ErrSessionClosed is returned by calls on a session after Logout.
var ErrSessionClosed = errors.New("usersdk: session has no refresh token")

// Session is an authenticated caller. Every method refreshes the access
// token when it is about to expire, rotating both tokens.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	user         IdentityResponse
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, user IdentityResponse, access, refresh string, accessExpiresAt time.Time) *Session {
	return &Session{
		client:       client,
		user:         user,
		accessToken:  access,
		refreshToken: refresh,
		expiresAt:    accessExpiresAt.Add(-refreshSkew),
	}
}

// User is who the session logged in as. It is empty for sessions resumed
// with NewSessionFromTokens.
func (s *Session) User() IdentityResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Refresh rotates the token pair now regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return ErrSessionClosed
	}

	access, refresh, resp, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if access == "" || refresh == "" {
		return fmt.Errorf("refresh response is missing token cookies")
	}

	s.accessToken = access
	s.refreshToken = refresh
	s.expiresAt = resp.AccessExpiresAt.Add(-refreshSkew)
	return nil
}

// Logout clears the session's cookies server side and forgets the tokens.
// Tokens already handed out stay valid until they expire.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.client.send(ctx, http.MethodPost, "/v1/auth/logout", nil, "")
	if err != nil {
		return err
	}
	if err := checkStatusNoContent(resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken, s.refreshToken = "", ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return nil
}

package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/pkg/usersdk"
)

// refreshCookiePath scopes the refresh token to the endpoints that read it.
const refreshCookiePath = "/v1/auth"

// CookieConfig controls the attributes of the token cookies. Secure should
// only be off for local development over plain HTTP.
type CookieConfig struct {
	Secure bool
	Domain string
}

// setTokenCookies writes both halves of pair. Each cookie lives exactly as
// long as its token.
func (c CookieConfig) setTokenCookies(w http.ResponseWriter, pair domain.TokenPair, now time.Time) {
	http.SetCookie(w, c.cookie(usersdk.AccessTokenCookie, "/", pair.AccessToken, maxAge(pair.AccessExpiresAt, now), http.SameSiteLaxMode))
	http.SetCookie(w, c.cookie(usersdk.RefreshTokenCookie, refreshCookiePath, pair.RefreshToken, maxAge(pair.RefreshExpiresAt, now), http.SameSiteStrictMode))
}

// clearTokenCookies expires both cookies in the browser.
func (c CookieConfig) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(usersdk.AccessTokenCookie, "/", "", -1, http.SameSiteLaxMode))
	http.SetCookie(w, c.cookie(usersdk.RefreshTokenCookie, refreshCookiePath, "", -1, http.SameSiteStrictMode))
}

func (c CookieConfig) cookie(name, path, value string, maxAge int, sameSite http.SameSite) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		MaxAge:   maxAge,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	}
}

// maxAge never returns 0, which net/http would drop and leave a session
// cookie behind.
func maxAge(exp, now time.Time) int {
	return max(int(exp.Sub(now).Seconds()), 1)
}

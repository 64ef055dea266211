package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
)

// Cookies carrying the token pair. The refresh cookie is only read by the
// refresh endpoint; AuthnMiddleware looks at the access cookie.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// AuthnMiddleware requires a valid access token, taken from the
// Authorization bearer header or, failing that, the access token cookie.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := tokenFromRequest(r)
			if raw == "" {
				writeBearerError(w, "missing access token")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				if errors.Is(err, jwtx.ErrExpired) {
					writeBearerError(w, "token expired")
					return
				}
				writeBearerError(w, "token verification failed")
				log.Warn("jwt verify failed", "err", err)
				return
			}

			// A refresh token is signed by the same keys, only the use claim
			// tells them apart.
			if claims.Use != jwtx.UseAccess {
				writeBearerError(w, "not an access token")
				log.Warn("non-access token presented", "use", claims.Use, "sub", claims.Subject)
				return
			}

			ctx = WithPrincipal(ctx, Principal{
				UserID:   claims.UID,
				Username: claims.Subject,
				Roles:    claims.Roles,
			})
			ctx = slogx.With(ctx, "user", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if after, ok := strings.CutPrefix(authz, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}

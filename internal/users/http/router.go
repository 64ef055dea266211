package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/aussiebroadwan/haulage/api/users"
	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/service"
	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/httpx"
	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
	"github.com/aussiebroadwan/haulage/pkg/usersdk"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *chi.Mux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	pingDB       PingFunc

	// PingCache is checked by /readyz when set.
	PingCache  PingFunc
	Cookies    CookieConfig
	RateLimits httpx.RateLimits
	Clock      clock.Clock

	AuthService *service.AuthService
	UserService *service.UserService
	RoleService *service.RoleService
}

func NewRouter(
	keys *jwtx.KeyManager,
	buildVersion string,
	pingDB PingFunc,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          chi.NewRouter(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		pingDB:       pingDB,
		logger:       logger,
		Cookies:      CookieConfig{Secure: true},
		RateLimits:   httpx.DefaultRateLimits(),
		Clock:        clock.System,
	}

	// Request logging is outermost so a recovered panic still logs as a 500.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		middleware.Recoverer,
	}

	r.Mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		usersdk.NewAPIError(http.StatusNotFound, usersdk.ErrorCodeNotFound, "no such route").WriteError(w)
	})
	r.Mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		usersdk.NewAPIError(http.StatusMethodNotAllowed, usersdk.ErrorCodeInvalidRequest, "method not allowed").WriteError(w)
	})

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerRoles()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Auth:    r.AuthService,
		Users:   r.UserService,
		Cookies: r.Cookies,
		Clock:   r.Clock,
	}

	r.Mux.Route("/v1/auth", func(ar chi.Router) {
		// Keyed on IP and username so one address cannot spray one account.
		ar.With(httpx.RateLimitByIPAndJSONField(r.RateLimits.Strict, "username")).
			Post("/login", h.Login)

		ar.With(httpx.RateLimitByIP(r.RateLimits.Strict)).
			Post("/register", h.Register)

		ar.With(httpx.RateLimitByIP(r.RateLimits.Moderate)).
			Post("/refresh", h.Refresh)

		ar.Post("/logout", h.Logout)
	})
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Users: r.UserService}
	authn := httpx.AuthnMiddleware(r.keys.Decoder)

	r.Mux.Route("/v1/users", func(ur chi.Router) {
		ur.Use(authn)

		ur.Get("/me", h.Me)

		ur.Group(func(admin chi.Router) {
			admin.Use(httpx.RequireAnyRole(domain.RoleAdmin))

			admin.Get("/", h.List)
			admin.With(httpx.RateLimitByUser(r.RateLimits.Moderate)).Post("/", h.Create)
			admin.Get("/{id}", h.Get)
			admin.With(httpx.RateLimitByUser(r.RateLimits.Moderate)).Put("/{id}", h.Update)
			admin.With(httpx.RateLimitByUser(r.RateLimits.Moderate)).Delete("/{id}", h.Delete)
		})
	})
}

func (r *Router) registerRoles() {
	r.Mux.With(
		httpx.AuthnMiddleware(r.keys.Decoder),
		httpx.RequireAnyRole(domain.RoleAdmin),
	).Method(http.MethodGet, "/v1/roles", &RolesHandler{Roles: r.RoleService})
}

func (r *Router) registerSystem() {
	public := httpx.RateLimitByIP(r.RateLimits.Public)

	r.Mux.With(public).Get("/.well-known/jwks.json", JWKSHandler(r.keys.KeySet))
	r.Mux.Get("/livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Get("/readyz", ReadyzHandler(r.startTime, r.buildVersion, r.pingDB, r.PingCache, r.keys.KeySet))

	r.Mux.With(public).Get("/swagger/*", httpSwagger.Handler())
}

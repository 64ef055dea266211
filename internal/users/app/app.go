package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/haulage/internal/users/http"
	"github.com/aussiebroadwan/haulage/internal/users/service"
	"github.com/aussiebroadwan/haulage/internal/users/store"
	"github.com/aussiebroadwan/haulage/internal/users/store/cache"
	"github.com/aussiebroadwan/haulage/internal/users/store/drivers/sqlstore"
	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/cryptox"
	"github.com/aussiebroadwan/haulage/pkg/httpx"
	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "dev"

// Application wires the users service together.
type Application struct {
	cfg    Config
	logger *slog.Logger
	clock  clock.Clock

	sql        *sqlstore.Store
	rdb        *redis.Client // nil without REDIS_ADDR
	db         store.Store   // sql, wrapped by the cache when enabled
	keyManager *jwtx.KeyManager

	authService      *service.AuthService
	userService      *service.UserService
	roleService      *service.RoleService
	bootstrapService *service.BootstrapService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with every dependency initialised.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:   cfg,
		clock: clock.System,
		logger: slogx.New(slogx.Config{
			Service: "users",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.PepperFile != "" {
		if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
			return nil, fmt.Errorf("failed to load pepper: %w", err)
		}
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initCache()

	keyManager, err := InitAuthKeys(cfg.Auth, app.clock, app.logger)
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Bootstrap seeds the admin account if the database has no users yet.
func (app *Application) Bootstrap(ctx context.Context) error {
	ctx = slogx.WithContext(ctx, app.logger)
	_, err := app.bootstrapService.EnsureAdmin(ctx, app.cfg.Admin.Username, app.cfg.Admin.Password)
	return err
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	if err := app.Bootstrap(context.Background()); err != nil {
		return err
	}

	app.logger.Info("users service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests then closes the stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down users service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("users service stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.sql != nil {
		if err := app.sql.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (app *Application) initDatabase() error {
	db, err := sqlstore.Open(app.cfg.Database.Driver, app.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.sql = db
	app.db = db
	app.logger.Info("database migrations applied successfully", "driver", app.cfg.Database.Driver)
	return nil
}

// initCache puts Redis in front of user reads when configured. An
// unreachable Redis is not fatal: the cache falls back to the database.
func (app *Application) initCache() {
	if app.cfg.Redis.Addr == "" {
		return
	}

	app.rdb = redis.NewClient(&redis.Options{
		Addr:     app.cfg.Redis.Addr,
		Password: app.cfg.Redis.Password,
		DB:       app.cfg.Redis.DB,
	})
	app.db = cache.New(app.sql, app.rdb, app.cfg.Redis.CacheTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := app.rdb.Ping(ctx).Err(); err != nil {
		app.logger.Warn("redis unreachable, user reads will hit the database", "addr", app.cfg.Redis.Addr, "error", err)
		return
	}
	app.logger.Info("user cache enabled", "addr", app.cfg.Redis.Addr, "ttl", app.cfg.Redis.CacheTTL)
}

func (app *Application) initServices() error {
	tokens, err := service.NewTokenIssuer(
		app.keyManager,
		app.cfg.Auth.Issuer,
		app.cfg.Auth.AccessTTL,
		app.cfg.Auth.RefreshTTL,
		app.clock,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	app.userService = service.NewUserService(app.db, app.clock)
	app.roleService = &service.RoleService{Store: app.db}
	app.bootstrapService = &service.BootstrapService{Users: app.userService}
	app.authService = &service.AuthService{
		Authenticator: &service.PasswordAuthenticator{Store: app.db, Clock: app.clock},
		Users:         app.db.Users(),
		Tokens:        tokens,
		Clock:         app.clock,
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager,
		BuildVersion,
		app.sql.Ping,
		app.logger,
	)

	if app.rdb != nil {
		rdb := app.rdb
		router.PingCache = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	router.Clock = app.clock
	router.RateLimits = httpx.RateLimitsFromEnv()
	router.Cookies = httpapi.CookieConfig{
		Secure: app.cfg.Cookie.Secure,
		Domain: app.cfg.Cookie.Domain,
	}
	router.AuthService = app.authService
	router.UserService = app.userService
	router.RoleService = app.roleService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(app.cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

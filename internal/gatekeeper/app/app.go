package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	httpapi "github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/policy"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/memory"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/redis"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/go-playground/validator/v10"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	principals *sqlite.Store
	state      store.State
	codec      *jwtx.Codec
	hasher     cryptox.Hasher

	// Services
	tokenService        *service.TokenService
	refreshCoordinator  *service.RefreshCoordinator
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatekeeper",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := readPepper(cfg.PepperFile)
	if err != nil {
		return nil, err
	}
	app.hasher = cryptox.Hasher{Pepper: pepper}

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initStateStore(); err != nil {
		_ = app.principals.Close()
		return nil, err
	}

	app.initServices()

	if err := app.bootstrapAdmin(context.Background()); err != nil {
		_ = app.close()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		_ = app.close()
		return nil, err
	}

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("gatekeeper starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"state_store", app.cfg.StateStore,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.close()
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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatekeeper...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.close(); err != nil {
		app.logger.Error("error closing stores", "error", err)
		return err
	}

	app.logger.Info("gatekeeper stopped")
	return nil
}

// close releases the stores. The sqlite store may back both roles.
func (app *Application) close() error {
	var errs []error
	if app.state != nil && app.state != store.State(app.principals) {
		errs = append(errs, app.state.Close())
	}
	if app.principals != nil {
		errs = append(errs, app.principals.Close())
	}
	return errors.Join(errs...)
}

// initDatabase opens the credential store and applies migrations.
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile), nil)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.principals = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initStateStore selects where revocations and attempt counters live.
// Multi-instance deployments must use redis or a shared sqlite file.
func (app *Application) initStateStore() error {
	switch app.cfg.StateStore {
	case StoreMemory:
		app.state = memory.New(nil)
		app.logger.Warn("using in-memory state store; revocations are not shared between instances")
	case StoreSQLite:
		app.state = app.principals
	case StoreRedis:
		s := redis.New(redis.Config{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		}, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
		}
		app.state = s
	default:
		return fmt.Errorf("unknown state store %q", app.cfg.StateStore)
	}
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Codec:       app.codec,
		Revocations: app.state,
		Principals:  app.principals,
	}
	app.refreshCoordinator = &service.RefreshCoordinator{Tokens: app.tokenService}

	guard := service.NewGuard(app.state, service.GuardConfig{
		MaxAttempts:      app.cfg.LoginMaxAttempts,
		Window:           app.cfg.LoginWindow,
		LockoutThreshold: app.cfg.LockoutThreshold,
		LockoutDuration:  app.cfg.LockoutDuration,
		MaxDelay:         app.cfg.MaxProgressiveDelay,
	})

	app.sessionService = &service.SessionService{
		Principals: app.principals,
		Tokens:     app.tokenService,
		Guard:      guard,
		Hasher:     app.hasher,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.state,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// bootstrapAdmin creates the configured admin principal on first start.
func (app *Application) bootstrapAdmin(ctx context.Context) error {
	account := domain.NormalizeAccount(app.cfg.BootstrapAdminAccount)
	if account == "" {
		return nil
	}

	_, err := app.principals.GetCredential(ctx, account)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}

	hash, err := app.hasher.Hash(app.cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap admin password: %w", err)
	}

	p := domain.Principal{
		ID:          idx.New().String(),
		Account:     account,
		Role:        domain.RoleAdmin,
		Permissions: []string{domain.WildcardPermission},
		Active:      true,
	}
	if err := app.principals.CreatePrincipal(ctx, p, hash); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	app.logger.Info("bootstrap admin created", "principal_id", p.ID, "account", account)
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() error {
	ew := httpapi.ErrorWriter{Production: app.cfg.IsProduction()}
	cookies := httpx.CookieOptions{
		Secure: app.cfg.CookieSecure,
		Domain: app.cfg.CookieDomain,
	}

	router := httpapi.NewRouter(BuildVersion, app.state, app.principals, app.logger)
	router.Errors = ew
	router.IPLimit = app.cfg.CriticalLimit

	trusted, err := httpx.ParseTrustedProxies(app.cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.TrustedProxies = trusted

	router.Gate = httpapi.NewGate(httpapi.GateConfig{
		Policies: policy.Default(),
		Tokens:   app.tokenService,
		Refresh:  app.refreshCoordinator,
		Limiters: map[domain.RateLimitClass]*httpx.Limiter{
			domain.RateLimitCritical: httpx.NewLimiter(app.cfg.CriticalLimit, nil),
			domain.RateLimitStandard: httpx.NewLimiter(app.cfg.StandardLimit, nil),
		},
		ServiceSecret: app.cfg.ServiceAuthSecret,
		Cookies:       cookies,
		Timeout:       app.cfg.DecisionTimeout,
		Errors:        ew,
	})

	router.AuthHandler = &httpapi.AuthHandler{
		Sessions: app.sessionService,
		Refresh:  app.refreshCoordinator,
		Tokens:   app.tokenService,
		Cookies:  cookies,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Errors:   ew,
	}

	if app.cfg.UpstreamURL != "" {
		target, err := url.Parse(app.cfg.UpstreamURL)
		if err != nil {
			return fmt.Errorf("invalid upstream url: %w", err)
		}
		router.Upstream = httpapi.UpstreamProxy(target, ew)
		app.logger.Info("forwarding unmatched routes", "upstream", target.Redacted())
	}

	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

func readPepper(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read pepper file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

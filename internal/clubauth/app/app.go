package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/clubhub"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/clubos"
	httpapi "github.com/aussiebroadwan/clubauth/internal/clubauth/http"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/service"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store/drivers/sqlite"
	"github.com/aussiebroadwan/clubauth/pkg/cryptox"
	"github.com/aussiebroadwan/clubauth/pkg/slogx"
	"github.com/aussiebroadwan/clubauth/pkg/vendorhttp"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns every long-lived dependency of the gateway.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// db is nil when the database is disabled.
	db          store.Store
	storeSource *service.StoreSource
	gcpSource   *service.GCPSource

	// ephemeralKey is set when stored credentials are sealed with a key
	// that dies with the process.
	ephemeralKey bool

	authService         *service.AuthService
	housekeepingService *service.HousekeepingService

	adminToken          string
	generatedAdminToken bool

	server *http.Server
	router *httpapi.Router
}

// New wires the application. Nothing is started until Run.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "clubauth",
			Version: BuildVersion,
			Env:     cfg.Log.Env,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initServices(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *Application) Logger() *slog.Logger { return app.logger }

// Auth is the session gateway used by the CLI and the HTTP surface.
func (app *Application) Auth() *service.AuthService { return app.authService }

// CredentialStore returns the encrypted local credential store, or nil
// when it is disabled.
func (app *Application) CredentialStore() *service.StoreSource { return app.storeSource }

// EphemeralMasterKey reports whether no master key was configured.
func (app *Application) EphemeralMasterKey() bool { return app.ephemeralKey }

// AdminToken returns the token guarding /v1/* and whether it was generated
// for this process.
func (app *Application) AdminToken() (string, bool) {
	return app.adminToken, app.generatedAdminToken
}

// Handler exposes the router for in-process use.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("clubauth starting",
		"port", app.cfg.Server.Port,
		"version", BuildVersion,
		"vendors", app.authService.Services(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown drains the HTTP server, stops housekeeping and releases the
// store and secret clients.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down clubauth...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownGrace)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.Close(); err != nil {
		return err
	}
	app.logger.Info("clubauth stopped")
	return nil
}

// Close releases the store and the Secret Manager client. It is safe to
// call on a partially initialised application.
func (app *Application) Close() error {
	var errs []error
	if app.gcpSource != nil {
		if err := app.gcpSource.Close(); err != nil {
			app.logger.Error("error closing secret manager client", "error", err)
			errs = append(errs, err)
		}
		app.gcpSource = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
		app.db = nil
	}
	return errors.Join(errs...)
}

// initDatabase opens the sqlite store and applies migrations.
func (app *Application) initDatabase() error {
	if !app.cfg.Database.Enabled {
		app.logger.Info("database disabled; login attempts will not be recorded")
		return nil
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.Database.File)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.db = db

	app.logger.Info("database migrations applied successfully", "file", app.cfg.Database.File)
	return nil
}

// initServices builds the credential chain, the vendors and the gateway.
func (app *Application) initServices(ctx context.Context) error {
	sources, err := app.initSecretSources(ctx)
	if err != nil {
		return err
	}
	creds := service.NewCredentialProvider(app.logger, app.cfg.Secrets.Placeholders, sources...)

	retry := vendorhttp.Retry{Delays: app.cfg.Retry.Delays}

	var vendors []service.Vendor
	if c := app.cfg.ClubOS; c.Enabled {
		vendors = append(vendors, clubos.New(clubos.Config{
			BaseURL:         c.BaseURL,
			LoginTimeout:    c.LoginTimeout,
			ValidateTimeout: c.ValidateTimeout,
			ClubInfo:        c.ClubInfo,
			Retry:           retry,
			Transport:       app.transport("clubos", c.InsecureTLS),
		}))
	}
	if c := app.cfg.ClubHub; c.Enabled {
		vendors = append(vendors, clubhub.New(clubhub.Config{
			BaseURL:      c.BaseURL,
			LoginTimeout: c.LoginTimeout,
			Retry:        retry,
			Transport:    app.transport("clubhub", c.InsecureTLS),
		}))
	}

	app.authService = service.NewAuthService(creds, app.db, app.logger, service.AuthOptions{
		MaxAge:       app.cfg.Session.MaxAge,
		MaxIdle:      app.cfg.Session.MaxIdle,
		Cooldown:     app.cfg.Session.Cooldown,
		InflightWait: app.cfg.Session.InflightWait,
		Breaker: service.BreakerConfig{
			FailureThreshold: app.cfg.Breaker.FailureThreshold,
			OpenTimeout:      app.cfg.Breaker.OpenTimeout,
			HalfOpenRequests: app.cfg.Breaker.HalfOpenRequests,
		},
	}, vendors...)

	app.housekeepingService = service.NewHousekeepingService(
		app.authService,
		app.logger,
		app.cfg.Session.HousekeepingInterval,
		app.cfg.Session.AttemptRetention,
	)
	return nil
}

// initSecretSources returns the enabled sources in lookup order: env,
// local store, then Secret Manager.
func (app *Application) initSecretSources(ctx context.Context) ([]service.SecretSource, error) {
	var sources []service.SecretSource

	if app.cfg.Secrets.Env {
		sources = append(sources, service.EnvSource{})
	}

	if app.cfg.Secrets.Store && app.db != nil {
		material, ephemeral, err := cryptox.LoadMasterKey(app.cfg.Secrets.MasterKeyPath)
		if err != nil {
			return nil, err
		}
		app.ephemeralKey = ephemeral
		if ephemeral {
			app.logger.Warn("no master key configured; stored credentials will not survive a restart")
		}
		sealer, err := cryptox.NewSealer(material)
		if err != nil {
			return nil, fmt.Errorf("failed to create credential sealer: %w", err)
		}
		app.storeSource = &service.StoreSource{Store: app.db, Sealer: sealer}
		sources = append(sources, app.storeSource)
	}

	if project := app.cfg.Secrets.GCPProject; project != "" {
		src, err := service.NewGCPSource(ctx, project)
		if err != nil {
			return nil, err
		}
		app.gcpSource = src
		sources = append(sources, src)
		app.logger.Info("secret manager source enabled", "project", project)
	}

	return sources, nil
}

// transport returns nil (the shared default) unless certificate checks
// are turned off for the vendor.
func (app *Application) transport(vendor string, insecure bool) http.RoundTripper {
	if !insecure {
		return nil
	}
	app.logger.Warn("TLS verification disabled for vendor", "vendor", vendor)
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per vendor
	return t
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	app.adminToken = app.cfg.Server.AdminToken
	if app.adminToken == "" {
		token, err := cryptox.GenerateToken(32)
		if err != nil {
			return fmt.Errorf("failed to generate admin token: %w", err)
		}
		app.adminToken = token
		app.generatedAdminToken = true
	}

	router := httpapi.NewRouter(app.authService, app.db, app.adminToken, BuildVersion, app.logger)
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

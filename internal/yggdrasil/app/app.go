package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/blob"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/fallback"
	httpapi "github.com/element-skin/yggdrasil/internal/yggdrasil/http"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/observability"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/service"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store/drivers/sqlite"
	"github.com/element-skin/yggdrasil/pkg/cryptox"
	"github.com/element-skin/yggdrasil/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the yggdrasil server with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      store.Store
	signer  *cryptox.Signer
	blobs   blob.Store
	metrics *observability.Metrics

	// Services
	fallbackService     *fallback.Service
	settingsService     *service.SettingsService
	ledger              *service.TokenLedger
	engine              *service.Engine
	textureService      *service.TextureService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "yggdrasil",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
		}),
		metrics: observability.NewMetrics(),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(cfg.Security.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := cryptox.LoadSigner(cfg.Security.SigningKeyFile)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	app.signer = signer

	if err := app.initBlobs(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("yggdrasil server starting",
		"listen", app.cfg.Server.Listen,
		"version", BuildVersion,
		"endpoints", len(app.cfg.Fallback.Endpoints),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down yggdrasil server...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("yggdrasil server stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.Database.File)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initBlobs selects the texture blob backend from configuration.
func (app *Application) initBlobs() error {
	switch app.cfg.Textures.Backend {
	case "s3":
		s3cfg := app.cfg.Textures.S3
		blobs, err := blob.NewS3Store(context.Background(), blob.S3Config{
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			Bucket:    s3cfg.Bucket,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize s3 texture store: %w", err)
		}
		app.blobs = blobs
		app.logger.Info("texture storage ready", "backend", "s3", "bucket", s3cfg.Bucket)
	default:
		blobs, err := blob.NewFSStore(app.cfg.Textures.FSRoot)
		if err != nil {
			return fmt.Errorf("failed to initialize fs texture store: %w", err)
		}
		app.blobs = blobs
		app.logger.Info("texture storage ready", "backend", "fs", "root", app.cfg.Textures.FSRoot)
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.fallbackService = fallback.NewService(app.cfg.Endpoints())
	app.fallbackService.Metrics = app.metrics

	app.settingsService = service.NewSettingsService(app.db)
	app.ledger = service.NewTokenLedger(app.db)

	builder := service.NewProfileDocBuilder(app.signer, app.cfg.Server.BaseURL)
	app.engine = service.NewEngine(app.db, app.ledger, builder, app.fallbackService, app.settingsService)
	app.textureService = service.NewTextureService(app.db, app.blobs, app.settingsService)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.Housekeeping.Interval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.db, app.logger, app.metrics)

	router.Engine = app.engine
	router.Textures = app.textureService
	router.Fallback = app.fallbackService
	router.Signer = app.signer
	router.Meta = httpapi.Meta{
		ServerName:   app.cfg.Meta.ServerName,
		Version:      BuildVersion,
		HomepageLink: app.cfg.Meta.HomepageLink,
		RegisterLink: app.cfg.Meta.RegisterLink,
		SkinDomains:  app.cfg.Meta.SkinDomains,
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

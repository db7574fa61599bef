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

	"github.com/harlowglass/stockroom/internal/service"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/internal/store/drivers/sqlite"
	"github.com/harlowglass/stockroom/internal/web"
	"github.com/harlowglass/stockroom/pkg/jwtx"
	"github.com/harlowglass/stockroom/pkg/mailx"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the stockroom web application with all its
// dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	mailer mailx.Mailer

	sessionsService     *service.SessionsService
	authService         *service.AuthService
	recoveryService     *service.RecoveryService
	rolesService        *service.RolesService
	usersService        *service.UsersService
	inventoryService    *service.InventoryService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *web.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "stockroom",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initMailer()
	app.initServices()

	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("stockroom starting", "addr", app.cfg.Addr, "version", BuildVersion)

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
	app.logger.Info("shutting down stockroom...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
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

	app.logger.Info("stockroom stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
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

// initMailer picks the outbound mail transport. Without an SMTP relay
// configured, two-factor codes land in the log instead.
func (app *Application) initMailer() {
	if app.cfg.SMTP.Addr == "" {
		app.logger.Warn("no SMTP relay configured, mail will be logged")
		app.mailer = &mailx.LogMailer{Logger: app.logger}
		return
	}

	app.mailer = &mailx.SMTPMailer{
		Addr:     app.cfg.SMTP.Addr,
		From:     app.cfg.SMTP.From,
		Username: app.cfg.SMTP.Username,
		Password: app.cfg.SMTP.Password,
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.sessionsService = &service.SessionsService{
		Store:       app.db,
		Remember:    jwtx.NewRememberTokens("stockroom", []byte(app.cfg.RememberSecret)),
		SessionTTL:  app.cfg.SessionTTL,
		RememberTTL: app.cfg.RememberTTL,
	}

	app.authService = &service.AuthService{
		Store:            app.db,
		Sessions:         app.sessionsService,
		Mailer:           app.mailer,
		MaxLoginAttempts: app.cfg.MaxLoginAttempts,
		LockoutFor:       app.cfg.LockoutDuration,
		ChallengeTTL:     app.cfg.ChallengeTTL,
		TrustDeviceFor:   app.cfg.TrustedTTL,
	}

	app.recoveryService = &service.RecoveryService{Store: app.db}

	app.rolesService = &service.RolesService{Store: app.db}
	app.usersService = &service.UsersService{Store: app.db}
	app.inventoryService = &service.InventoryService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	router, err := web.NewRouter(app.logger, app.cfg.SecureCookies)
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	router.SessionTTL = app.cfg.SessionTTL
	router.RememberTTL = app.cfg.RememberTTL
	router.TrustedTTL = app.cfg.TrustedTTL

	router.Store = app.db
	router.Auth = app.authService
	router.Sessions = app.sessionsService
	router.Recovery = app.recoveryService
	router.Roles = app.rolesService
	router.Users = app.usersService
	router.Inventory = app.inventoryService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/userlist/internal/config"
	"github.com/simp-lee/userlist/internal/domain"
	"github.com/simp-lee/userlist/internal/middleware"
	"github.com/simp-lee/userlist/internal/module/user"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine *gin.Engine
	db     *gorm.DB
	logger *logger.Logger
	cfg    *config.Config
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, the database (migrating and seeding it when
// configured), the user module and the middleware chain.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	// 1. Setup logger.
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 exposes permissive CORS")
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	// 2. Setup database.
	db, err := config.SetupDatabase(&cfg.Database, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	defer func() {
		if success {
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", slog.Any("error", err))
		}
	}()

	// 3. Schema and seed data.
	if cfg.Database.ShouldAutoMigrate() {
		if err := db.AutoMigrate(&domain.User{}); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("auto migration completed")
	}
	if cfg.Database.SeedFile != "" {
		if err := seedUsers(db, cfg.Database.SeedFile, log.Logger); err != nil {
			return nil, err
		}
	}

	// 4. Manual dependency injection: repository → service → handler.
	repo := user.NewUserRepository(db)
	svc := user.NewUserService(repo)
	handler := user.NewUserHandler(svc, cfg.Server.MaxPageSize)

	// 5. Create Gin engine with custom middleware (not gin.Default()).
	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: cfg.Server.TrustRequestID,
		}),
		middleware.LoggerWithConfig(log.Logger, middleware.LoggerConfig{
			SkipPaths: []string{"/health"},
		}),
		middleware.CORSWithConfig(resolveCORSConfig(cfg.Server.Mode, &cfg.Server.CORS)),
	)

	// 6. Register all routes.
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules: []Module{user.NewModule(handler)},
		DB:      db,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	success = true
	return &App{
		engine: engine,
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

// Close releases the database connection and the logger.
func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close database: %w", err))
			}
		}
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Handler returns the configured HTTP handler.
func (a *App) Handler() http.Handler {
	return a.engine
}

func seedUsers(db *gorm.DB, path string, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	n, err := user.Seed(context.Background(), db, f)
	if err != nil {
		return fmt.Errorf("seed users from %s: %w", path, err)
	}
	if n > 0 {
		log.Info("seeded users", slog.Int("count", n), slog.String("file", path))
	} else {
		log.Debug("users table not empty, seed skipped", slog.String("file", path))
	}
	return nil
}

// resolveCORSConfig builds the middleware config from application settings.
// In release mode, when no allowlist is configured, cross-origin requests are denied.
func resolveCORSConfig(mode string, cfg *config.CORSConfig) middleware.CORSConfig {
	corsConfig := middleware.DefaultCORSConfig()
	if cfg == nil {
		return corsConfig
	}

	switch {
	case len(cfg.AllowOrigins) > 0:
		corsConfig.AllowOrigins = cfg.AllowOrigins
	case mode == gin.ReleaseMode:
		corsConfig.AllowOrigins = []string{}
	}
	if len(cfg.AllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.AllowHeaders
	}
	if len(cfg.ExposeHeaders) > 0 {
		corsConfig.ExposeHeaders = cfg.ExposeHeaders
	}
	corsConfig.AllowCredentials = cfg.AllowCredentials
	if d, err := time.ParseDuration(cfg.MaxAge); err == nil && d > 0 {
		corsConfig.MaxAge = strconv.Itoa(int(d.Seconds()))
	}

	return corsConfig
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// It shuts the server down within the configured timeout and closes the
// database connection.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	log := slog.Default()
	if a.logger != nil {
		log = a.logger.Logger
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine)

	// Listen for SIGINT / SIGTERM.
	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeoutDuration())
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}

	log.Info("server stopped")
	if err := a.Close(); err != nil {
		slog.Error("close error", slog.Any("error", err))
	}

	return runErr
}

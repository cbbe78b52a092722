package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/migrations"
	"github.com/sellercentry/account-health/pkg/audit"
	"github.com/sellercentry/account-health/pkg/auth"
	"github.com/sellercentry/account-health/pkg/config"
	"github.com/sellercentry/account-health/pkg/database"
	"github.com/sellercentry/account-health/pkg/handlers"
	"github.com/sellercentry/account-health/pkg/logging"
	"github.com/sellercentry/account-health/pkg/middleware"
	"github.com/sellercentry/account-health/pkg/repositories"
	"github.com/sellercentry/account-health/pkg/retry"
	"github.com/sellercentry/account-health/pkg/routing"
	"github.com/sellercentry/account-health/pkg/services"
	"github.com/sellercentry/account-health/pkg/sheets"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config file")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", logging.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("sheets_backend", cfg.Sheets.Backend),
		zap.Strings("root_domains", cfg.Routing.RootDomains),
		zap.Bool("directory_database", cfg.Database.UseDatabase()))

	// Tenant directory: Postgres when configured, otherwise tenants.yaml.
	var (
		tenants repositories.TenantRepository
		pinger  handlers.Pinger
	)
	if cfg.Database.UseDatabase() {
		db, err := connectDirectory(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		tenants = repositories.NewTenantRepository(db)
		pinger = db
	} else {
		fileRepo, err := repositories.LoadTenantFile(cfg.DirectoryFile)
		if err != nil {
			return fmt.Errorf("failed to load tenant directory: %w", err)
		}
		logger.Info("Using file tenant directory", zap.String("path", cfg.DirectoryFile))
		tenants = fileRepo
	}

	sheetClient, err := newSheetClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.Retry.MaxRetries
	retryCfg.InitialDelay = cfg.Retry.InitialDelay
	retryCfg.MaxDelay = cfg.Retry.MaxDelay

	store := services.NewSheetStore(sheetClient, tenants, services.SheetStoreConfig{
		Retry:              retryCfg,
		ClientsConcurrency: cfg.ClientsConcurrency,
	}, logger)
	batcher := services.NewBatchUpdater(services.BatchConfig{
		MaxItems:   cfg.Batch.MaxItems,
		ChunkSize:  cfg.Batch.ChunkSize,
		ChunkDelay: cfg.Batch.ChunkDelay,
	}, logger)

	// Sign-in tokens and sessions
	jwksClient, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize JWKS client: %w", err)
	}
	defer jwksClient.Close()
	if !cfg.Auth.EnableVerification {
		logger.Warn("Token signature verification is disabled")
	}

	sessions, err := auth.NewSessionManager(auth.SessionConfig{
		Secret: cfg.Auth.SessionSecret,
		Name:   cfg.Auth.SessionName,
		MaxAge: cfg.Auth.SessionMaxAge,
		Cookie: auth.DeriveCookieSettings(cfg.BaseURL, cfg.Auth.CookieDomain, cfg.Routing.RootDomains),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize sessions: %w", err)
	}
	authService := auth.NewAuthService(jwksClient, sessions, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	// Host routing
	classifier := routing.NewClassifier(routing.ClassifierConfig{
		RootDomains:      cfg.Routing.RootDomains,
		TeamSubdomain:    cfg.Routing.TeamSubdomain,
		PreviewPlatforms: cfg.Routing.PreviewPlatforms,
		AllowDevOverride: cfg.Routing.AllowDevOverride,
	})
	if cfg.Routing.AllowDevOverride {
		logger.Warn("Tenant override query parameter is enabled")
	}
	gate := routing.NewGate(classifier, routing.DefaultGateConfig(), sessions, tenants, logger)

	// Handlers
	auditor := audit.NewSecurityAuditor(logger)
	access := handlers.NewTenantAccess(tenants, auditor, logger)
	clientsHandler := handlers.NewClientsHandler(store, access, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg.Version, cfg.Env, pinger, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(authService, sessions, gate, tenants, classifier.TeamSubdomain(), auditor, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewViolationsHandler(store, batcher, access, auditor, logger).RegisterRoutes(mux, authMiddleware)
	clientsHandler.RegisterRoutes(mux, authMiddleware)
	handlers.NewPagesHandler(clientsHandler, access, logger).RegisterRoutes(mux, gate.Config())

	handler := middleware.RequestID(middleware.RequestLogger(logger)(gate.Middleware(mux)))

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute, // batch writes pace themselves across chunks
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting account-health server",
			zap.String("addr", server.Addr),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// connectDirectory opens the directory database and applies migrations.
func connectDirectory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	db, err := database.Connect(ctx, &database.Config{
		URL:             cfg.Database.ConnectionString(),
		MaxConnections:  cfg.Database.MaxConnections,
		MinConnections:  cfg.Database.MinConnections,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory database: %s", logging.SanitizeError(err))
	}

	sqlDB := db.SQL()
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, migrations.FS, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Connected to directory database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))
	return db, nil
}

func newSheetClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sheets.Client, error) {
	if cfg.Sheets.Backend == "memory" {
		client := sheets.NewMemoryClient()
		if cfg.Sheets.FixturesFile != "" {
			if err := client.LoadFixtures(cfg.Sheets.FixturesFile); err != nil {
				return nil, err
			}
		}
		logger.Warn("Using in-memory sheet backend; writes are not persisted",
			zap.String("fixtures", cfg.Sheets.FixturesFile))
		return client, nil
	}

	client, err := sheets.NewGoogleClient(ctx, sheets.GoogleConfig{
		CredentialsJSON: cfg.Sheets.CredentialsJSON,
		CredentialsFile: cfg.Sheets.CredentialsFile,
		Endpoint:        cfg.Sheets.Endpoint,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return client, nil
}

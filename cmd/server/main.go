package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/solarcheck/internal"
	"github.com/DukeRupert/solarcheck/internal/handler"
	"github.com/DukeRupert/solarcheck/internal/metrics"
	"github.com/DukeRupert/solarcheck/internal/middleware"
	"github.com/DukeRupert/solarcheck/internal/report"
	"github.com/DukeRupert/solarcheck/internal/service"
	"github.com/DukeRupert/solarcheck/internal/storage"
	"github.com/DukeRupert/solarcheck/internal/store"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// ==========================================================================
	// Report store
	// ==========================================================================

	var (
		reportStore service.ReportStore
		health      handler.Pinger
	)
	if cfg.DatabaseUrl != "" {
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		if err := internal.RunMigrations(ctx, db, logger); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")

		reportStore = store.NewPostgresStore(db, logger)
		health = db
	} else {
		logger.Warn("DATABASE_URL is not set, reports are kept in memory")
		reportStore = store.NewMemoryStore()
	}

	// ==========================================================================
	// Storage, template source and export guard
	// ==========================================================================

	files, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	var source report.TemplateSource
	switch cfg.TemplateSource {
	case internal.TemplateSourceStorage:
		source = report.NewStorageTemplateSource(files, cfg.TemplateKey)
		logger.Info("Template source ready", "source", "storage", "key", cfg.TemplateKey)
	default:
		source = report.NewHTTPTemplateSource(cfg.TemplateURL, cfg.TemplateTimeout)
		logger.Info("Template source ready", "source", "http", "url", cfg.TemplateURL)
	}

	var guard service.Guard = service.NewMemoryGuard()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		guard = service.NewRedisGuard(client, cfg.ExportLockTTL, logger)
		logger.Info("Export guard ready", "backend", "redis", "addr", cfg.RedisAddr)
	}

	var archive storage.Storage
	if cfg.ExportArchive {
		archive = files
	}

	// ==========================================================================
	// Services and handlers
	// ==========================================================================

	exporter := report.NewExporter(source, cfg.ExportPrefix, logger)
	reportService := service.NewReportService(reportStore, logger)
	exportService := service.NewExportService(reportStore, exporter, guard, archive, logger)

	reportHandler := handler.NewReportHandler(reportService, logger)
	exportHandler := handler.NewExportHandler(exportService, logger)

	limitExports := func(next http.Handler) http.Handler { return next }
	if cfg.ExportRateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.ExportRateLimit, time.Minute)
		limitExports = middleware.NewRateLimitMiddleware(limiter, logger).Limit
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files, including the default inspection template
	staticFS := http.FileServer(http.Dir(cfg.StaticDir))
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticFS))

	// Local storage is served from the URL it hands out
	if cfg.StorageProvider == storage.ProviderLocal {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.LocalStoragePath))))
	}

	mux.Handle("GET /health", handler.NewHealthHandler(health, logger))

	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	reportHandler.RegisterRoutes(mux)
	exportHandler.RegisterRoutes(mux, limitExports)

	// Unmatched paths get the JSON error body instead of the mux's plain text
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	stack := middleware.Stack(
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		middleware.NewSecurityHeadersMiddleware(cfg.IsProduction()).Handler,
		metrics.Middleware,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage creates the configured storage provider.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.StorageProvider == storage.ProviderR2 {
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	}
	return storage.NewLocalStorage(storage.LocalConfig{
		BasePath: cfg.LocalStoragePath,
		BaseURL:  cfg.LocalStorageURL,
	}, logger)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

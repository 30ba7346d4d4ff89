package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/vistoria/internal"
	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/DukeRupert/vistoria/internal/handler"
	"github.com/DukeRupert/vistoria/internal/jobs"
	"github.com/DukeRupert/vistoria/internal/lifecycle"
	"github.com/DukeRupert/vistoria/internal/metrics"
	"github.com/DukeRupert/vistoria/internal/middleware"
	"github.com/DukeRupert/vistoria/internal/report"
	"github.com/DukeRupert/vistoria/internal/repository"
	"github.com/DukeRupert/vistoria/internal/service"
	"github.com/DukeRupert/vistoria/internal/storage"
	"github.com/DukeRupert/vistoria/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const logoCacheKey = "vistoria:report:logo"

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	store := repository.NewStore(db)

	// ==========================================================================
	// Storage, catalog and report pipeline
	// ==========================================================================

	files, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("catalog load failed: %w", err)
	}
	logger.Info("Catalog loaded", "points_of_interest", len(cat.All()))

	photos := storage.NewPhotoStore(files, cfg.SignedURLTTL)
	machine := lifecycle.NewMachine(cat)
	downloader := report.NewHTTPImageDownloader(cfg.ImageFetchTimeout)

	compilerOpts := []report.CompilerOption{
		report.WithBranding(report.Branding{
			CompanyName: cfg.CompanyName,
			Website:     cfg.CompanyWebsite,
		}),
	}
	if cfg.LogoURL != "" {
		var logo report.LogoFetcher = report.NewURLLogoFetcher(cfg.LogoURL, downloader)
		if cfg.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("invalid REDIS_URL: %w", err)
			}
			rdb := redis.NewClient(opts)
			defer rdb.Close()
			logo = report.NewCachedLogoFetcher(rdb, logo, logoCacheKey, cfg.LogoCacheTTL, logger)
			logger.Info("Logo cache enabled", "ttl", cfg.LogoCacheTTL)
		}
		compilerOpts = append(compilerOpts, report.WithLogo(logo))
	}
	compiler := report.NewCompiler(cat, logger, compilerOpts...)
	renderer := report.NewPDFRenderer(report.NewPhotoSource(files, downloader), logger)

	// Initialize services
	inspectionService := service.NewInspectionService(store, cat, machine, photos, cfg.DelegatedAccessTTL, logger)
	delegatedIntake := service.NewDelegatedIntake(store, cat, machine, photos, logger)
	reportService := service.NewReportService(store, compiler, renderer, files, cfg.DefaultReportTheme, logger)

	// ==========================================================================
	// Background worker
	// ==========================================================================

	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		w, err := worker.New(db, store.Queries(), workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(jobs.NewGenerateReportHandler(reportService, logger))
		w.Start(ctx)
		defer w.Stop()
	} else {
		logger.Warn("Worker disabled, queued reports will not be generated")
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Only the local provider serves its own files
	var localFiles storage.Storage
	if cfg.StorageProvider == storage.ProviderLocal {
		localFiles = files
	}
	handler.NewSystemHandler(db, cat, localFiles, logger).RegisterRoutes(mux)

	metricsAuth := middleware.NewBasicAuthMiddleware("metrics", cfg.MetricsUsername, cfg.MetricsPassword)
	if metricsAuth.Enabled() {
		mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	} else {
		logger.Warn("Metrics endpoint is unprotected, set METRICS_USERNAME and METRICS_PASSWORD")
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// Inspector API
	apiAuth := middleware.NewBasicAuthMiddleware("vistoria", cfg.APIUsername, cfg.APIPassword)
	guard := middleware.Stack()
	if apiAuth.Enabled() {
		guard = apiAuth.Handler
	}
	handler.NewInspectionHandler(inspectionService, cfg.PublicURL, logger).RegisterRoutes(mux, guard)
	handler.NewReportHandler(inspectionService, reportService, store.Queries(), logger).RegisterRoutes(mux, guard)

	// Delegated capture links are public and rate limited per client
	delegatedLimiter := middleware.NewDelegatedRateLimiter(cfg.DelegatedRequestsPerMinute, logger)
	defer delegatedLimiter.Close()
	handler.NewDelegatedHandler(delegatedIntake, delegatedLimiter, logger).RegisterRoutes(mux, delegatedLimiter.Limit)

	// Global middleware, outermost first
	security := middleware.NewSecurityHeadersMiddleware(!cfg.IsDevelopment())
	requestLogging := middleware.NewRequestLoggingMiddleware(logger)
	global := middleware.Stack(
		security.Handler,
		requestLogging.Handler,
		metrics.Middleware,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           global(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage builds the configured storage provider.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderObject:
		return storage.NewObjectStorage(storage.ObjectConfig{
			Endpoint:        cfg.S3Endpoint,
			AccountID:       cfg.S3AccountID,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			PublicURL:       cfg.S3PublicURL,
		}, logger)
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"letterarchive/internal/auth"
	"letterarchive/internal/config"
	"letterarchive/internal/handler"
	"letterarchive/internal/middleware"
	"letterarchive/internal/repository/postgres"
	"letterarchive/internal/service/archive"
	"letterarchive/internal/service/extraction"
	"letterarchive/internal/storage/s3"
)

// shutdownTimeout bounds how long in-flight requests and processor runs
// get to finish after SIGINT/SIGTERM.
const shutdownTimeout = 2 * time.Minute

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Token verification: JWKS when configured, otherwise trust the gateway
	var verifier auth.TokenVerifier
	if cfg.JWKSURL != "" {
		verifier, err = auth.NewJWTVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
	} else {
		logger.Warn("JWKS_URL not set: trusting gateway-verified tokens without signature checks")
		verifier = auth.NewGatewayVerifier(logger)
	}
	defer verifier.Close()

	if cfg.RunMigrations {
		if err := postgres.Migrate(cfg.DatabaseURL, cfg.TablePrefix, logger); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", pool.Config().MaxConns,
		"min_conns", pool.Config().MinConns,
	)

	// Repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	draftRepo := postgres.NewDraftRepository(repoConfig)
	letterRepo := postgres.NewLetterRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// External collaborators
	store, err := s3.NewClient(ctx, s3.Options{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		Endpoint:     cfg.S3Endpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		UsePathStyle: cfg.S3UsePathStyle,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create object store client: %v", err)
	}

	extractor, err := extraction.NewClient(extraction.OptionsFromConfig(cfg), logger)
	if err != nil {
		log.Fatalf("Failed to create extraction client: %v", err)
	}

	// Services
	analyzer := archive.NewContentAnalyzer()
	uploadService := archive.NewUploadService(store, cfg.UploadURLTTL, logger)
	processor := archive.NewLetterProcessor(draftRepo, store, extractor, logger)
	dispatcher := archive.NewDispatcher(processor, cfg.MaxConcurrentRuns, logger)
	draftService := archive.NewDraftService(draftRepo, logger)
	publishService := archive.NewPublishService(draftRepo, letterRepo, txManager, store, analyzer, logger)
	letterService := archive.NewLetterService(
		letterRepo,
		txManager,
		store,
		analyzer,
		archive.NewLetterCache(cfg.LetterCacheSize, cfg.LetterCacheTTL),
		cfg.DownloadURLTTL,
		logger,
	)

	logger.Info("services initialized",
		"max_concurrent_runs", cfg.MaxConcurrentRuns,
		"extraction_test_mode", cfg.ExtractionTestMode,
	)

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	handler.Register(mux, handler.Routes(&handler.Handlers{
		Upload:  handler.NewUploadHandler(uploadService, logger),
		Process: handler.NewProcessHandler(dispatcher, logger),
		Draft:   handler.NewDraftHandler(draftService, publishService, logger),
		Letter:  handler.NewLetterHandler(letterService, logger),
		Health:  handler.NewHealthHandler(pool, logger),
	}))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Logging → Recovery → RateLimit → Auth → Routes
	var h http.Handler = mux
	h = middleware.Authenticate(verifier, cfg.AdminGroup, logger)(h)
	h = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware(h)
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestLogger(logger)(h)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("processor runs did not finish before shutdown deadline", "error", err)
	}
	logger.Info("server stopped")
}

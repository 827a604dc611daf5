package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/report-templates/api/openapi"
	"github.com/benvon/report-templates/internal/config"
	"github.com/benvon/report-templates/internal/database"
	"github.com/benvon/report-templates/internal/handlers"
	"github.com/benvon/report-templates/internal/importer"
	"github.com/benvon/report-templates/internal/logger"
	"github.com/benvon/report-templates/internal/middleware"
	"github.com/benvon/report-templates/internal/queue"
	"github.com/benvon/report-templates/internal/sessions"
	"github.com/benvon/report-templates/internal/telemetry"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	reloadInterval   = time.Minute
	requestTimeout   = 30 * time.Second
	maxJSONBodyBytes = 1 << 20
	// multipart framing around the spreadsheet itself
	uploadOverheadBytes = 64 << 10
	dlqGCInterval       = time.Hour
	dlqRetention        = 24 * time.Hour
	rabbitMQMaxRetries  = 10
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(telemetry.ServerServiceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Int64("max_upload_bytes", cfg.MaxUploadBytes),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.ServerServiceName, cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	redisClient, err := sessions.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// RabbitMQ is optional for the API; without it confirmed imports are not recorded
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue, err = queue.DialWithRetry(ctx, cfg.RabbitMQURL, rabbitMQMaxRetries, func(err error, wait time.Duration) {
			zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
				zap.Error(err),
				zap.Duration("retry_delay", wait),
			)
		})
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_rabbitmq")
	} else {
		zapLogger.Warn("rabbitmq_not_configured_import_history_disabled")
	}

	templateRepo := database.NewTemplateRepository(db)
	historyRepo := database.NewImportHistoryRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)
	sessionRepo := sessions.NewRedisRepository(redisClient, cfg.SessionTTL)

	opts := []importer.Option{}
	// A nil *RabbitMQQueue must not reach the publisher or health interfaces
	var queueChecker handlers.QueueChecker
	if jobQueue != nil {
		opts = append(opts, importer.WithPublisher(jobQueue))
		queueChecker = jobQueue
	}
	importService := importer.NewService(sessionRepo, templateRepo, zapLogger, opts...)

	importHandler := handlers.NewImportHandler(importService, cfg.MaxUploadBytes, zapLogger)
	templateHandler := handlers.NewTemplateHandler(templateRepo, historyRepo)
	healthChecker := handlers.NewHealthCheckerWithDeps(db, redisClient, queueChecker)
	openAPIHandler, err := handlers.NewOpenAPIHandler(openapi.Document)
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_document", zap.Error(err))
	}

	limiterStore, err := middleware.NewRedisLimiterStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter_store", zap.Error(err))
	}
	corsReloader := middleware.NewCORSReloader(ctx, corsConfigRepo, cfg.FrontendURL, zapLogger, reloadInterval)
	rateLimitReloader := middleware.NewRateLimitReloader(ctx, limiterStore, ratelimitConfigRepo, cfg.RateLimitDefault, zapLogger, reloadInterval)

	r := mux.NewRouter()

	// Middleware registered first is outermost
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(telemetry.ServerServiceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(maxJSONBodyBytes, cfg.MaxUploadBytes+uploadOverheadBytes))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	importsRouter := apiRouter.PathPrefix("/imports").Subrouter()
	importsRouter.Use(rateLimitReloader.Middleware())
	importHandler.RegisterRoutes(importsRouter)

	templatesRouter := apiRouter.PathPrefix("/templates").Subrouter()
	templatesRouter.Use(rateLimitReloader.Middleware())
	templateHandler.RegisterRoutes(templatesRouter)

	// CORS middleware has already answered preflights by the time this runs
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      requestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		corsReloader.Start(gctx)
		return nil
	})
	g.Go(func() error {
		rateLimitReloader.Start(gctx)
		return nil
	})
	if jobQueue != nil {
		dlqGC := queue.NewGarbageCollector(jobQueue, dlqGCInterval, dlqRetention, zapLogger)
		g.Go(func() error {
			if err := dlqGC.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("dlq garbage collector: %w", err)
			}
			return nil
		})
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", dlqGCInterval),
			zap.Duration("retention", dlqRetention),
		)
	}
	g.Go(func() error {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("server_stopped_with_error", zap.Error(err))
		return
	}
	zapLogger.Info("server_exited")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":"%s"}`, version, time.Now().UTC().Format(time.RFC3339))
}

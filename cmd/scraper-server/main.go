package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/voltmarket/catalog-scraper/internal/api"
	"github.com/voltmarket/catalog-scraper/internal/config"
	"github.com/voltmarket/catalog-scraper/internal/database"
	"github.com/voltmarket/catalog-scraper/internal/dedup"
	"github.com/voltmarket/catalog-scraper/internal/fetch"
	"github.com/voltmarket/catalog-scraper/internal/images"
	"github.com/voltmarket/catalog-scraper/internal/monitoring"
	"github.com/voltmarket/catalog-scraper/internal/objectstore"
	"github.com/voltmarket/catalog-scraper/internal/pipeline"
	"github.com/voltmarket/catalog-scraper/internal/scrape"
	"github.com/voltmarket/catalog-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
	}

	metrics := monitoring.NewMetrics()

	fetcher := fetch.New(fetch.Options{
		ConcurrentLimit: cfg.Scraper.ConcurrentLimit,
		RequestTimeout:  cfg.Scraper.RequestTimeout,
		RequestDelay:    cfg.Scraper.RequestDelay,
		UserAgent:       cfg.Scraper.UserAgent,
		Metrics:         metrics,
	}, logger)

	var uploader images.Uploader
	if cfg.Storage.Endpoint != "" {
		uploader = objectstore.New(cfg.Storage.Endpoint, cfg.Storage.ServiceKey, cfg.Storage.Bucket, logger)
	}
	imagePipeline := images.NewPipeline(fetcher, uploader, cfg.Scraper.ImageWorkers, metrics, logger)

	extractor := scrape.NewExtractor(logger)
	validator := scrape.NewValidator(sourceDomain(cfg.Scraper.BaseURL))
	enumerator := scrape.NewCategoryEnumerator(fetcher, cfg.Scraper.BaseURL, false, logger)

	// Each run gets its own visited set unless Redis carries one across runs.
	factory := func(opts pipeline.Options) api.Runner {
		maxPages := cfg.Scraper.MaxLinkPages
		if opts.Mode == pipeline.ModeDirect {
			maxPages = cfg.Scraper.MaxRecordPages
		}
		if opts.MaxPages > 0 {
			maxPages = opts.MaxPages
		}
		collector := scrape.NewCollector(fetcher, extractor, cfg.Scraper.BaseURL, maxPages, cfg.Scraper.PageDelay, logger)

		var visited dedup.Deduplicator
		if redisClient != nil {
			visited = dedup.NewRedisSet(redisClient, 24*time.Hour, logger)
		} else {
			visited = dedup.NewMemorySet()
		}

		opts.SellerEmail = cfg.Scraper.SellerEmail
		opts.BatchSize = cfg.Scraper.BatchSize
		opts.BatchDelay = cfg.Scraper.BatchDelay

		return pipeline.NewOrchestrator(opts, fetcher, enumerator, collector, extractor,
			validator, visited, imagePipeline, db, metrics, logger)
	}

	runManager := api.NewManager(factory, logger)
	handlers := api.NewHandlers(runManager, db, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		health := map[string]interface{}{"status": "ok"}
		status := http.StatusOK
		if err := db.Ping(r.Context()); err != nil {
			health["status"] = "error"
			health["message"] = "database unreachable"
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", handlers.CreateRun)
		r.Get("/runs", handlers.ListRuns)
		r.Get("/runs/{runID}", handlers.GetRun)
		r.Delete("/runs/{runID}", handlers.CancelRun)
		r.Get("/stats", handlers.GetStats)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func sourceDomain(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return baseURL
}

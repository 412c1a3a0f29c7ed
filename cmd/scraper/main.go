package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

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
	var (
		mode     = flag.String("mode", "links", "Mode: links (walk result pages for product links) or direct (extract from result grids)")
		tokens   = flag.String("tokens", "", "Comma-separated search tokens (default: built-in catalog tokens)")
		discover = flag.Bool("discover", false, "Discover search tokens from the category index page")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("starting catalog extraction", "mode", *mode, "base_url", cfg.Scraper.BaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

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

	metrics := monitoring.NewMetrics()

	fetcher := fetch.New(fetch.Options{
		ConcurrentLimit: cfg.Scraper.ConcurrentLimit,
		RequestTimeout:  cfg.Scraper.RequestTimeout,
		RequestDelay:    cfg.Scraper.RequestDelay,
		UserAgent:       cfg.Scraper.UserAgent,
		Metrics:         metrics,
	}, logger)

	var visited dedup.Deduplicator
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		visited = dedup.NewRedisSet(redisClient, 24*time.Hour, logger)
	} else {
		visited = dedup.NewMemorySet()
	}

	var uploader images.Uploader
	if cfg.Storage.Endpoint != "" {
		uploader = objectstore.New(cfg.Storage.Endpoint, cfg.Storage.ServiceKey, cfg.Storage.Bucket, logger)
	} else {
		logger.Warn("no storage endpoint configured, skipping image uploads")
	}
	imagePipeline := images.NewPipeline(fetcher, uploader, cfg.Scraper.ImageWorkers, metrics, logger)

	extractor := scrape.NewExtractor(logger)
	validator := scrape.NewValidator(sourceDomain(cfg.Scraper.BaseURL))
	enumerator := scrape.NewCategoryEnumerator(fetcher, cfg.Scraper.BaseURL, *discover, logger)

	maxPages := cfg.Scraper.MaxLinkPages
	if pipeline.Mode(*mode) == pipeline.ModeDirect {
		maxPages = cfg.Scraper.MaxRecordPages
	}
	collector := scrape.NewCollector(fetcher, extractor, cfg.Scraper.BaseURL, maxPages, cfg.Scraper.PageDelay, logger)

	orch := pipeline.NewOrchestrator(pipeline.Options{
		Mode:        pipeline.Mode(*mode),
		SellerEmail: cfg.Scraper.SellerEmail,
		BatchSize:   cfg.Scraper.BatchSize,
		BatchDelay:  cfg.Scraper.BatchDelay,
		Tokens:      splitTokens(*tokens),
	}, fetcher, enumerator, collector, extractor, validator, visited, imagePipeline, db, metrics, logger)

	counters, err := orch.Run(ctx)
	if err != nil {
		logger.Error("extraction run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nExtraction complete:\n")
	fmt.Printf("  Tokens processed:  %d\n", counters.TokensProcessed)
	fmt.Printf("  Records extracted: %d\n", counters.RecordsExtracted)
	fmt.Printf("  Records rejected:  %d\n", counters.RecordsRejected)
	fmt.Printf("  Records written:   %d\n", counters.RecordsWritten)
	fmt.Printf("  Images uploaded:   %d\n", counters.ImagesUploaded)
	fmt.Printf("  Batch failures:    %d\n", counters.BatchFailures)
}

func splitTokens(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func sourceDomain(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return baseURL
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	BaseURL         string
	UserAgent       string
	ConcurrentLimit int
	RequestTimeout  time.Duration
	RequestDelay    time.Duration
	PageDelay       time.Duration
	BatchDelay      time.Duration
	MaxLinkPages    int
	MaxRecordPages  int
	BatchSize       int
	ImageWorkers    int
	SellerEmail     string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

type StorageConfig struct {
	Endpoint   string
	ServiceKey string
	Bucket     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Enabled switches the visited set from in-memory to Redis-backed.
	Enabled bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8085),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Scraper: ScraperConfig{
			BaseURL:         getEnvOrDefault("SCRAPER_BASE_URL", "https://mantech.co.za"),
			UserAgent:       getEnvOrDefault("SCRAPER_USER_AGENT", defaultUserAgent),
			ConcurrentLimit: getIntOrDefault("SCRAPER_CONCURRENT_LIMIT", 2),
			RequestTimeout:  getDurationOrDefault("SCRAPER_REQUEST_TIMEOUT", 30*time.Second),
			RequestDelay:    getDurationOrDefault("SCRAPER_REQUEST_DELAY", 500*time.Millisecond),
			PageDelay:       getDurationOrDefault("SCRAPER_PAGE_DELAY", 500*time.Millisecond),
			BatchDelay:      getDurationOrDefault("SCRAPER_BATCH_DELAY", time.Second),
			MaxLinkPages:    getIntOrDefault("SCRAPER_MAX_LINK_PAGES", 20),
			MaxRecordPages:  getIntOrDefault("SCRAPER_MAX_RECORD_PAGES", 50),
			BatchSize:       getIntOrDefault("SCRAPER_BATCH_SIZE", 5),
			ImageWorkers:    getIntOrDefault("SCRAPER_IMAGE_WORKERS", 1),
			SellerEmail:     getEnvOrDefault("SCRAPER_SELLER_EMAIL", "catalog@voltmarket.internal"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnvOrDefault("DB_NAME", "voltmarket"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Storage: StorageConfig{
			Endpoint:   getEnvOrDefault("STORAGE_ENDPOINT", ""),
			ServiceKey: os.Getenv("STORAGE_SERVICE_KEY"),
			Bucket:     getEnvOrDefault("STORAGE_BUCKET", "product-images"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Enabled:  getBoolOrDefault("REDIS_DEDUP_ENABLED", false),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate is the single fatal gate: missing store credentials stop the run
// before any network activity begins. Everything else has a workable default.
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Storage.Endpoint != "" && c.Storage.ServiceKey == "" {
		return fmt.Errorf("STORAGE_SERVICE_KEY is required when STORAGE_ENDPOINT is set")
	}
	if c.Scraper.ConcurrentLimit < 1 {
		return fmt.Errorf("SCRAPER_CONCURRENT_LIMIT must be at least 1")
	}
	if c.Scraper.BatchSize < 1 {
		return fmt.Errorf("SCRAPER_BATCH_SIZE must be at least 1")
	}
	if c.Scraper.ImageWorkers < 1 {
		return fmt.Errorf("SCRAPER_IMAGE_WORKERS must be at least 1")
	}
	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

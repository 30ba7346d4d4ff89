package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/storage"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public base URL, used to build delegated access links
	PublicURL string

	// Storage Configuration
	StorageProvider string // "local" or "s3"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// S3-compatible storage (production). Leave S3Endpoint empty and set
	// S3AccountID to use Cloudflare R2.
	S3Endpoint        string
	S3AccountID       string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3Region          string
	S3PublicURL       string // Optional custom domain URL

	// How long a signed photo or report link stays valid
	SignedURLTTL time.Duration

	// Report Configuration
	DefaultReportTheme domain.ReportTheme
	CompanyName        string
	CompanyWebsite     string
	LogoURL            string
	ImageFetchTimeout  time.Duration

	// Redis caches the downloaded logo. Empty disables the cache.
	RedisURL     string
	LogoCacheTTL time.Duration

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Delegated access
	DelegatedAccessTTL         time.Duration
	DelegatedRequestsPerMinute int

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string

	// Inspector API authentication. If both are empty the /api routes are open.
	APIUsername string
	APIPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		PublicURL: getEnv("PUBLIC_URL", "http://localhost:8080"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", storage.ProviderLocal),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccountID:       getEnv("S3_ACCOUNT_ID", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3PublicURL:       getEnv("S3_PUBLIC_URL", ""),

		SignedURLTTL: getEnvDuration("SIGNED_URL_TTL", time.Hour),

		DefaultReportTheme: domain.ReportTheme(strings.ToLower(getEnv("DEFAULT_REPORT_THEME", string(domain.ReportThemeStandard)))),
		CompanyName:        getEnv("COMPANY_NAME", ""),
		CompanyWebsite:     getEnv("COMPANY_WEBSITE", ""),
		LogoURL:            getEnv("LOGO_URL", ""),
		ImageFetchTimeout:  getEnvDuration("IMAGE_FETCH_TIMEOUT", 15*time.Second),

		RedisURL:     getEnv("REDIS_URL", ""),
		LogoCacheTTL: getEnvDuration("LOGO_CACHE_TTL", 24*time.Hour),

		// Worker defaults
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),

		DelegatedAccessTTL:         getEnvDuration("DELEGATED_ACCESS_TTL", domain.DelegatedAccessDuration),
		DelegatedRequestsPerMinute: getEnvInt("DELEGATED_REQUESTS_PER_MINUTE", 60),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		APIUsername: getEnv("API_USERNAME", ""),
		APIPassword: getEnv("API_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate storage configuration
	if cfg.StorageProvider == storage.ProviderObject {
		if cfg.S3Endpoint == "" && cfg.S3AccountID == "" {
			return nil, fmt.Errorf("S3_ENDPOINT or S3_ACCOUNT_ID is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3AccessKeyID == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_PROVIDER is 's3'")
		}
	} else if cfg.StorageProvider != storage.ProviderLocal {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 's3', got: %s", cfg.StorageProvider)
	}

	if !cfg.DefaultReportTheme.IsValid() {
		return nil, fmt.Errorf("DEFAULT_REPORT_THEME must be 'standard' or 'premium', got: %s", cfg.DefaultReportTheme)
	}

	// Credentials come in pairs
	if (cfg.MetricsUsername == "") != (cfg.MetricsPassword == "") {
		return nil, fmt.Errorf("METRICS_USERNAME and METRICS_PASSWORD must be set together")
	}
	if (cfg.APIUsername == "") != (cfg.APIPassword == "") {
		return nil, fmt.Errorf("API_USERNAME and API_PASSWORD must be set together")
	}

	if cfg.DelegatedRequestsPerMinute < 1 {
		return nil, fmt.Errorf("DELEGATED_REQUESTS_PER_MINUTE must be positive, got: %d", cfg.DelegatedRequestsPerMinute)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

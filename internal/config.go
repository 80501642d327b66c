package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DukeRupert/solarcheck/internal/report"
)

// Template sources
const (
	TemplateSourceHTTP    = "http"
	TemplateSourceStorage = "storage"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Empty runs on the in-memory store (development only)
	DatabaseUrl string

	// Public base URL of this server; the default template URL hangs off it
	BaseURL string

	// Directory served under /static/
	StaticDir string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string
	LocalStorageURL  string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	// Template Configuration
	TemplateSource  string // "http" or "storage"
	TemplateURL     string
	TemplateKey     string
	TemplateTimeout time.Duration

	// Export Configuration
	ExportPrefix    string
	ExportArchive   bool          // keep a copy of every export in storage
	ExportLockTTL   time.Duration // lifetime of a Redis export lock
	ExportRateLimit int           // exports per client per minute, 0 disables

	// Redis (optional; enables the cross-instance export guard)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// IsProduction reports whether the server runs outside development.
func (c *Config) IsProduction() bool {
	return c.Env != "development"
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		DatabaseUrl: os.Getenv("DATABASE_URL"),
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		StaticDir:   getEnv("STATIC_DIR", "./static"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		TemplateSource:  getEnv("TEMPLATE_SOURCE", TemplateSourceHTTP),
		TemplateKey:     getEnv("TEMPLATE_KEY", "templates/inspection-template.xlsx"),
		TemplateTimeout: getEnvDuration("TEMPLATE_TIMEOUT", 30*time.Second),

		ExportPrefix:    getEnv("EXPORT_PREFIX", report.DefaultFilenamePrefix),
		ExportArchive:   getEnvBool("EXPORT_ARCHIVE", false),
		ExportLockTTL:   getEnvDuration("EXPORT_LOCK_TTL", 2*time.Minute),
		ExportRateLimit: getEnvInt("EXPORT_RATE_LIMIT", 30),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}
	cfg.TemplateURL = getEnv("TEMPLATE_URL", cfg.BaseURL+report.DefaultTemplatePath)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseUrl == "" && c.IsProduction() {
		return fmt.Errorf("DATABASE_URL is required outside development")
	}

	// Validate storage configuration
	switch c.StorageProvider {
	case "local":
	case "r2":
		for key, value := range map[string]string{
			"R2_ACCOUNT_ID":        c.R2AccountID,
			"R2_ACCESS_KEY_ID":     c.R2AccessKeyID,
			"R2_SECRET_ACCESS_KEY": c.R2SecretAccessKey,
			"R2_BUCKET_NAME":       c.R2BucketName,
		} {
			if value == "" {
				return fmt.Errorf("%s is required when STORAGE_PROVIDER is 'r2'", key)
			}
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	// Validate template configuration
	switch c.TemplateSource {
	case TemplateSourceHTTP:
		if !strings.HasPrefix(c.TemplateURL, "http://") && !strings.HasPrefix(c.TemplateURL, "https://") {
			return fmt.Errorf("TEMPLATE_URL must be an http(s) URL, got: %s", c.TemplateURL)
		}
	case TemplateSourceStorage:
		if c.TemplateKey == "" {
			return fmt.Errorf("TEMPLATE_KEY is required when TEMPLATE_SOURCE is 'storage'")
		}
	default:
		return fmt.Errorf("TEMPLATE_SOURCE must be either 'http' or 'storage', got: %s", c.TemplateSource)
	}
	if c.TemplateTimeout <= 0 {
		return fmt.Errorf("TEMPLATE_TIMEOUT must be positive")
	}
	if c.ExportRateLimit < 0 {
		return fmt.Errorf("EXPORT_RATE_LIMIT cannot be negative")
	}

	return nil
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

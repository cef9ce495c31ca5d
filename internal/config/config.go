// Package config loads service configuration from defaults, an
// optional YAML file, and environment variables, in that order. A
// .env file in the working directory is honored before the
// environment is read.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Content source ("github" or "s3")
	SourceBackend string `yaml:"source_backend"`

	// GitHub contents API
	GitHubAPIURL string        `yaml:"github_api_url"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`

	// Repository coordinate
	RepoOwner string `yaml:"repo_owner"`
	RepoName  string `yaml:"repo_name"`
	RepoRef   string `yaml:"repo_ref"`
	RepoRoot  string `yaml:"repo_root"`

	// Crawling
	CrawlWorkers int  `yaml:"crawl_workers"`
	CrawlOnStart bool `yaml:"crawl_on_start"`

	// Preview proxy
	PreviewCacheEntries int   `yaml:"preview_cache_entries"`
	PreviewMaxBytes     int64 `yaml:"preview_max_bytes"`

	// Browser page origin allowed to call the API ("*" for any)
	CORSOrigin string `yaml:"cors_origin"`

	// S3 source
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Region    string `yaml:"s3_region"`
	S3UseSSL    bool   `yaml:"s3_use_ssl"`
}

// Load reads configuration. filePath names an optional YAML file;
// values from it override the defaults, and environment variables
// override both.
func Load(filePath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:          ":8080",
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		LogFormat:           "json",
		SourceBackend:       "github",
		GitHubAPIURL:        "https://api.github.com",
		HTTPTimeout:         30 * time.Second,
		CrawlWorkers:        1,
		CrawlOnStart:        true,
		PreviewCacheEntries: 256,
		PreviewMaxBytes:     10 * 1024 * 1024,
		CORSOrigin:          "*",
		S3Endpoint:          "http://localhost:9000",
		S3AccessKey:         "minioadmin",
		S3SecretKey:         "minioadmin",
		S3Region:            "us-east-1",
	}

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.ListenAddr = envOr("LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = envOr("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.SourceBackend = envOr("SOURCE_BACKEND", cfg.SourceBackend)
	cfg.GitHubAPIURL = envOr("GITHUB_API_URL", cfg.GitHubAPIURL)
	cfg.HTTPTimeout = envDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.RepoOwner = envOr("REPO_OWNER", cfg.RepoOwner)
	cfg.RepoName = envOr("REPO_NAME", cfg.RepoName)
	cfg.RepoRef = envOr("REPO_REF", cfg.RepoRef)
	cfg.RepoRoot = envOr("REPO_ROOT", cfg.RepoRoot)
	cfg.CrawlWorkers = envInt("CRAWL_WORKERS", cfg.CrawlWorkers)
	cfg.CrawlOnStart = envBool("CRAWL_ON_START", cfg.CrawlOnStart)
	cfg.PreviewCacheEntries = envInt("PREVIEW_CACHE_ENTRIES", cfg.PreviewCacheEntries)
	cfg.PreviewMaxBytes = envInt64("PREVIEW_MAX_BYTES", cfg.PreviewMaxBytes)
	cfg.CORSOrigin = envOr("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.S3Endpoint = envOr("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Bucket = envOr("S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = envOr("S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = envOr("S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3Region = envOr("S3_REGION", cfg.S3Region)
	cfg.S3UseSSL = envBool("S3_USE_SSL", cfg.S3UseSSL)

	if cfg.SourceBackend != "github" && cfg.SourceBackend != "s3" {
		return nil, fmt.Errorf("SOURCE_BACKEND must be \"github\" or \"s3\", got %q", cfg.SourceBackend)
	}
	if cfg.SourceBackend == "s3" {
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when SOURCE_BACKEND is s3")
		}
		// Buckets have no owner or repo; synthesize a coordinate so
		// refresh validation and catalog output stay meaningful.
		if cfg.RepoOwner == "" {
			cfg.RepoOwner = "s3"
		}
		if cfg.RepoName == "" {
			cfg.RepoName = cfg.S3Bucket
		}
	}
	if cfg.CrawlWorkers < 1 {
		return nil, fmt.Errorf("CRAWL_WORKERS must be >= 1, got %d", cfg.CrawlWorkers)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

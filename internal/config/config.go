package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Credentials is a SnowPilot account. Parse-only commands run without one;
// network commands call [Config.RequireCredentials] first.
type Credentials struct {
	User     string
	Password string
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	Credentials Credentials
	BaseURL     string

	PitsDir      string
	ProgressFile string

	RequestDelay time.Duration
	ChunkDelay   time.Duration
	MaxRetries   int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	CatalogCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset. Credentials may be absent; only their use requires them.
func Load() (*Config, error) {
	requestDelay, err := parseDurationEnv("REQUEST_DELAY", "2s")
	if err != nil {
		return nil, err
	}
	chunkDelay, err := parseDurationEnv("CHUNK_DELAY", "5s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	maxRetries := 3
	if s := os.Getenv("MAX_RETRIES"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, errors.New("invalid MAX_RETRIES")
		}
		maxRetries = n
	}

	cfg := &Config{
		Credentials: Credentials{
			User:     os.Getenv("SNOWPILOT_USER"),
			Password: os.Getenv("SNOWPILOT_PASSWORD"),
		},
		BaseURL:          envOrDefault("SNOWPILOT_BASE_URL", "https://snowpilot.org"),
		PitsDir:          envOrDefault("SNOWPIT_DIR", "snowpits"),
		ProgressFile:     envOrDefault("PROGRESS_FILE", "download_progress.json"),
		RequestDelay:     requestDelay,
		ChunkDelay:       chunkDelay,
		MaxRetries:       maxRetries,
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		CatalogCacheSize: parseCatalogCacheSize(),
	}

	if cfg.BaseURL == "" {
		return nil, errors.New("SNOWPILOT_BASE_URL is required")
	}
	if cfg.PitsDir == "" {
		return nil, errors.New("SNOWPIT_DIR is required")
	}
	if cfg.ProgressFile == "" {
		return nil, errors.New("PROGRESS_FILE is required")
	}

	return cfg, nil
}

// RequireCredentials rejects runs that would hit the SnowPilot login
// endpoint without an account configured.
func (c *Config) RequireCredentials() error {
	if c.Credentials.User == "" || c.Credentials.Password == "" {
		return errors.New("SNOWPILOT_USER and SNOWPILOT_PASSWORD are required")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseCatalogCacheSize() int {
	if s := os.Getenv("CATALOG_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

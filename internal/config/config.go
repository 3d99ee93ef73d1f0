package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the operating parameters exposed to the deployment
// environment. The .env file, if any, is loaded by the entrypoints before
// Load is called.
type Config struct {
	DatabaseURL string
	RedisAddr   string
	Port        string
	BaseURL     string

	// Ingestion
	FeedsCSV          string
	IngestConcurrency int
	FetchTimeout      time.Duration
	MaxFeedBytes      int64
	OnlyDailyFeeds    bool
	ForceRefresh      bool
	RefreshActiveOnly bool
	ActiveDays        int

	LogLevel string
}

const (
	defaultConcurrency  = 5
	defaultFetchTimeout = 20 * time.Second
	defaultMaxFeedBytes = 10 << 20 // 10 MiB
	defaultActiveDays   = 60
)

// Load reads configuration from the environment, applying defaults for
// everything except DATABASE_URL.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getenvDefault("REDIS_ADDR", "127.0.0.1:6379"),
		Port:              getenvDefault("PORT", "8080"),
		BaseURL:           os.Getenv("BASE_URL"),
		FeedsCSV:          getenvDefault("FEEDS_CSV", "./feeds.csv"),
		IngestConcurrency: getenvInt("INGEST_CONCURRENCY", defaultConcurrency),
		FetchTimeout:      time.Duration(getenvInt("FETCH_TIMEOUT_SECONDS", int(defaultFetchTimeout/time.Second))) * time.Second,
		MaxFeedBytes:      int64(getenvInt("MAX_FEED_BYTES", defaultMaxFeedBytes)),
		OnlyDailyFeeds:    getenvBool("ONLY_DAILY_FEEDS"),
		ForceRefresh:      getenvBool("FORCE_REFRESH"),
		RefreshActiveOnly: getenvBoolDefault("REFRESH_ACTIVE_ONLY", true),
		ActiveDays:        getenvInt("ACTIVE_DAYS", defaultActiveDays),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.IngestConcurrency < 1 {
		cfg.IngestConcurrency = 1
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string) bool {
	return strings.EqualFold(os.Getenv(key), "true")
}

func getenvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"podcastdir/internal/config"
	"podcastdir/internal/db"
	"podcastdir/internal/ingest"
	"podcastdir/internal/registry"
)

func main() {
	registryPath := flag.String("registry", "", "path to the feed registry CSV (overrides FEEDS_CSV)")
	dailyOnly := flag.Bool("daily", false, "only process feeds flagged as daily")
	force := flag.Bool("force", false, "ignore cached validators and refetch every feed")
	all := flag.Bool("all", false, "include feeds whose newest episode is stale")
	concurrency := flag.Int("concurrency", 0, "worker pool size (overrides INGEST_CONCURRENCY)")
	timeout := flag.Duration("timeout", 0, "per-feed fetch timeout (overrides FETCH_TIMEOUT_SECONDS)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if *registryPath == "" {
		*registryPath = cfg.FeedsCSV
	}
	if *concurrency < 1 {
		*concurrency = cfg.IngestConcurrency
	}
	if *timeout <= 0 {
		*timeout = cfg.FetchTimeout
	}

	db.InitDB()

	feeds, err := registry.Load(*registryPath)
	if err != nil {
		logger.Fatalf("could not load feed registry: %v", err)
	}
	logger.Infof("Loaded %d feeds from %s", len(feeds), *registryPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := ingest.NewRunner(ingest.Options{
		Concurrency:  *concurrency,
		FetchTimeout: *timeout,
		MaxFeedBytes: cfg.MaxFeedBytes,
		DailyOnly:    *dailyOnly || cfg.OnlyDailyFeeds,
		Force:        *force || cfg.ForceRefresh,
		ActiveOnly:   cfg.RefreshActiveOnly && !*all,
		ActiveDays:   cfg.ActiveDays,
	}, logger)

	start := time.Now()
	summary, err := runner.Run(ctx, feeds)
	if err != nil {
		logger.Fatalf("run aborted: %v", err)
	}

	fmt.Printf("%s elapsed=%s\n", summary, time.Since(start).Round(time.Second))
}

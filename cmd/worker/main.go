package main

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"podcastdir/internal/config"
	"podcastdir/internal/db"
	"podcastdir/internal/worker"
	"podcastdir/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
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

	db.InitDB()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			// A run already fans out internally; overlapping runs would fight
			// over the same feeds.
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := 5 * time.Minute
				maxDelay := 24 * time.Hour
				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}
				logger.Infof("Task %s failed %d times, retrying in %v", task.Type(), n+1, delay)
				return delay
			},
		},
	)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(cfg, logger)
	mux.HandleFunc(tasks.TypeIngestRun, taskHandler.HandleIngestRunTask)

	logger.Infof("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		logger.Fatalf("could not run server: %v", err)
	}
}

package main

import (
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"podcastdir/internal/config"
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

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		&asynq.SchedulerOpts{},
	)

	// Daily feeds are checked every hour; everything else once a night.
	hourly, err := tasks.NewIngestRunTask(true, false)
	if err != nil {
		logrus.Fatalf("could not create task: %v", err)
	}
	if _, err := scheduler.Register("@every 1h", hourly); err != nil {
		logrus.Fatalf("could not register task: %v", err)
	}

	nightly, err := tasks.NewIngestRunTask(false, false)
	if err != nil {
		logrus.Fatalf("could not create task: %v", err)
	}
	if _, err := scheduler.Register("0 3 * * *", nightly); err != nil {
		logrus.Fatalf("could not register task: %v", err)
	}

	logrus.Infof("Scheduler starting (commit: %s)", CommitSHA)
	if err := scheduler.Run(); err != nil {
		logrus.Fatalf("could not run scheduler: %v", err)
	}
}

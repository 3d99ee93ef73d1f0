package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"podcastdir/internal/config"
	"podcastdir/internal/ingest"
	"podcastdir/internal/registry"
	"podcastdir/pkg/tasks"
)

type TaskHandler struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func NewTaskHandler(cfg *config.Config, logger *logrus.Logger) *TaskHandler {
	return &TaskHandler{cfg: cfg, logger: logger}
}

// HandleIngestRunTask runs one full ingestion pass over the feed registry.
// Individual feed failures are counted in the run summary, not surfaced as a
// task error; only a failure to start the run at all is retryable.
func (h *TaskHandler) HandleIngestRunTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.IngestRunTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	feeds, err := registry.Load(h.cfg.FeedsCSV)
	if err != nil {
		return fmt.Errorf("failed to load feed registry: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"feeds":      len(feeds),
		"daily_only": p.DailyOnly,
		"force":      p.Force,
	}).Info("starting ingest run")

	runner := ingest.NewRunner(ingest.Options{
		Concurrency:  h.cfg.IngestConcurrency,
		FetchTimeout: h.cfg.FetchTimeout,
		MaxFeedBytes: h.cfg.MaxFeedBytes,
		DailyOnly:    p.DailyOnly,
		Force:        p.Force,
		ActiveOnly:   h.cfg.RefreshActiveOnly,
		ActiveDays:   h.cfg.ActiveDays,
	}, h.logger)

	summary, err := runner.Run(ctx, feeds)
	if err != nil {
		return fmt.Errorf("ingest run aborted: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"processed":        summary.Processed,
		"skipped":          summary.Skipped,
		"failed":           summary.Failed,
		"new_episodes":     summary.NewEpisodes,
		"updated_episodes": summary.UpdatedEpisodes,
	}).Info("ingest run finished")

	return nil
}

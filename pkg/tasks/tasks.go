package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeIngestRun = "ingest:run"
)

// IngestRunTaskPayload selects which slice of the registry a run covers.
// DailyOnly restricts the run to feeds flagged daily; Force ignores cached
// validators and refetches everything.
type IngestRunTaskPayload struct {
	DailyOnly bool
	Force     bool
}

func NewIngestRunTask(dailyOnly, force bool) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestRunTaskPayload{DailyOnly: dailyOnly, Force: force})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIngestRun, payload), nil
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"podcastdir/pkg/tasks"
)

type Handlers struct {
	asynqClient tasks.TaskEnqueuer
	logger      logrus.FieldLogger
}

func New(asynqClient tasks.TaskEnqueuer, logger logrus.FieldLogger) *Handlers {
	return &Handlers{
		asynqClient: asynqClient,
		logger:      logger,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"podcastdir/pkg/tasks"
)

// TriggerIngest enqueues an ingestion run for the worker. The body is an
// optional {daily_only, force} selector; an empty body enqueues a normal
// full run.
func (h *Handlers) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DailyOnly bool `json:"daily_only"`
		Force     bool `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := tasks.NewIngestRunTask(req.DailyOnly, req.Force)
	if err != nil {
		h.logger.WithError(err).Error("failed to build ingest task")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	info, err := h.asynqClient.Enqueue(task)
	if err != nil {
		h.logger.WithError(err).Error("failed to enqueue ingest task")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID})
}

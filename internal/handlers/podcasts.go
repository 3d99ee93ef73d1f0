package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"podcastdir/internal/db"
	"podcastdir/internal/models"
)

func (h *Handlers) ListPodcasts(w http.ResponseWriter, r *http.Request) {
	podcasts, err := db.ListPublicPodcasts()
	if err != nil {
		h.logger.WithError(err).Error("failed to list podcasts")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if podcasts == nil {
		podcasts = []models.Podcast{}
	}
	h.writeJSON(w, http.StatusOK, podcasts)
}

type podcastDetail struct {
	models.Podcast
	Episodes []models.Episode `json:"episodes"`
}

func (h *Handlers) GetPodcast(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid podcast id")
		return
	}

	p, err := db.GetPodcastByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "podcast not found")
			return
		}
		h.logger.WithError(err).Error("failed to load podcast")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if p.IsPrivate {
		h.writeError(w, http.StatusNotFound, "podcast not found")
		return
	}

	episodes, err := db.GetEpisodesByPodcastID(p.ID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load episodes")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}

	h.writeJSON(w, http.StatusOK, podcastDetail{Podcast: p, Episodes: episodes})
}

package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"podcastdir/internal/db"
	"podcastdir/internal/feed"
)

func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slug := vars["slug"]

	p, err := db.GetPodcastBySlug(slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Podcast not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("failed to load podcast")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if p.IsPrivate {
		http.Error(w, "Podcast not found", http.StatusNotFound)
		return
	}

	episodes, err := db.GetEpisodesByPodcastID(p.ID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load episodes")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(&p, episodes, r)
	if err != nil {
		h.logger.WithError(err).Error("failed to generate feed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

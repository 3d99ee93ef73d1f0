package handlers

import (
	"encoding/json"
	"net/http"

	"podcastdir/internal/db"
	"podcastdir/internal/middleware"
	"podcastdir/internal/models"
	"podcastdir/pkg/syncdoc"
)

// GetSync returns the stored sync document for the authenticated user, or an
// empty document if they have never synced.
func (h *Handlers) GetSync(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(*models.User)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := h.loadDocument(user.ID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load user data")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// PostSync merges the client's document into the stored one and returns the
// merged result. On conflicting keys the stored value wins, so a stale client
// cannot roll back state written from another device.
func (h *Handlers) PostSync(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(*models.User)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var local syncdoc.Document
	if err := json.NewDecoder(r.Body).Decode(&local); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := h.loadDocument(user.ID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load user data")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	merged := syncdoc.Merge(local, stored)

	progress, _ := json.Marshal(merged.Progress)
	history, _ := json.Marshal(merged.History)
	favorites, _ := json.Marshal(merged.Favorites)
	sortPrefs, _ := json.Marshal(merged.SortPreferences)

	if err := db.UpsertUserData(user.ID, progress, history, favorites, sortPrefs); err != nil {
		h.logger.WithError(err).Error("failed to store user data")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, merged)
}

func (h *Handlers) loadDocument(userID int64) (syncdoc.Document, error) {
	var doc syncdoc.Document

	data, err := db.GetUserData(userID)
	if err != nil {
		return doc, err
	}
	if data == nil {
		return doc, nil
	}

	if len(data.Progress) > 0 {
		if err := json.Unmarshal(data.Progress, &doc.Progress); err != nil {
			return doc, err
		}
	}
	if len(data.History) > 0 {
		if err := json.Unmarshal(data.History, &doc.History); err != nil {
			return doc, err
		}
	}
	if len(data.Favorites) > 0 {
		if err := json.Unmarshal(data.Favorites, &doc.Favorites); err != nil {
			return doc, err
		}
	}
	if len(data.SortPreferences) > 0 {
		if err := json.Unmarshal(data.SortPreferences, &doc.SortPreferences); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

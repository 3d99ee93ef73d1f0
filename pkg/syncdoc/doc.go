// Package syncdoc defines the per-user sync document and the merge rules
// that reconcile a client's local copy with the server's stored copy. The
// server and any Go client share this package so both sides agree on what a
// merge produces.
package syncdoc

import "time"

// Document is the cross-device user state. All fields are optional on the
// wire; a zero Document is a valid empty state.
type Document struct {
	// Progress maps episode id to playback position in seconds.
	Progress map[string]float64 `json:"progress,omitempty"`
	// History is the ordered list of listening events.
	History   []HistoryEvent `json:"history,omitempty"`
	Favorites Favorites      `json:"favorites,omitempty"`
	// SortPreferences maps podcast id to the chosen episode sort mode.
	SortPreferences map[string]string `json:"sort_preferences,omitempty"`
}

// HistoryEvent records one listen. The (EpisodeID, Timestamp) pair is the
// de-duplication key during merges.
type HistoryEvent struct {
	EpisodeID string    `json:"episode_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Favorites holds the two favorite sets. Merging is union only; removing a
// favorite is an explicit overwrite, never a sync event.
type Favorites struct {
	Podcasts []string `json:"podcasts,omitempty"`
	Episodes []string `json:"episodes,omitempty"`
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := Document{}
	if d.Progress != nil {
		out.Progress = make(map[string]float64, len(d.Progress))
		for k, v := range d.Progress {
			out.Progress[k] = v
		}
	}
	if d.History != nil {
		out.History = append([]HistoryEvent(nil), d.History...)
	}
	out.Favorites.Podcasts = append([]string(nil), d.Favorites.Podcasts...)
	out.Favorites.Episodes = append([]string(nil), d.Favorites.Episodes...)
	if d.SortPreferences != nil {
		out.SortPreferences = make(map[string]string, len(d.SortPreferences))
		for k, v := range d.SortPreferences {
			out.SortPreferences[k] = v
		}
	}
	return out
}

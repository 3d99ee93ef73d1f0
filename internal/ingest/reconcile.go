// Package ingest drives the fetch, parse and reconcile cycle for every
// registered feed and commits each podcast's batch atomically.
package ingest

import (
	"fmt"

	"podcastdir/internal/db"
	"podcastdir/internal/feed"
)

// ReconcileError wraps a failed reconcile transaction. Nothing was
// committed; validators were not advanced, so the next run re-fetches the
// feed in full.
type ReconcileError struct {
	FeedURL string
	Err     error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.FeedURL, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// ReconcileResult reports what one feed's cycle wrote.
type ReconcileResult struct {
	PodcastID int
	Inserted  int
	Updated   int
}

// ReconcileFeed commits podcast metadata, the episode batch, and the new
// validators in a single transaction. Incoming episodes are partitioned
// against the stored guid set: unknown guids are inserted, known guids have
// their mutable fields updated in place. Stored episodes missing from this
// fetch are left untouched: a truncated feed window is not a deletion
// signal.
func ReconcileFeed(feedURL string, meta *feed.PodcastMeta, episodes []feed.EpisodeMeta, etag, lastModified string) (*ReconcileResult, error) {
	tx, err := db.DB.Beginx()
	if err != nil {
		return nil, &ReconcileError{FeedURL: feedURL, Err: err}
	}
	defer tx.Rollback()

	podcastID, err := db.UpsertPodcastTx(tx, db.UpsertPodcastParams{
		FeedURL:      feedURL,
		Title:        nilIfEmpty(meta.Title),
		Author:       nilIfEmpty(meta.Author),
		ImageURL:     nilIfEmpty(meta.ImageURL),
		Description:  nilIfEmpty(meta.Description),
		Genre:        meta.Genres,
		Slug:         nilIfEmpty(meta.Slug),
		ETag:         nilIfEmpty(etag),
		LastModified: nilIfEmpty(lastModified),
	})
	if err != nil {
		return nil, &ReconcileError{FeedURL: feedURL, Err: err}
	}

	existing, err := db.EpisodeIDsByGUIDTx(tx, podcastID)
	if err != nil {
		return nil, &ReconcileError{FeedURL: feedURL, Err: err}
	}

	result := &ReconcileResult{PodcastID: podcastID}
	for i := range episodes {
		ep := &episodes[i]
		params := db.UpsertEpisodeParams{
			PodcastID:       podcastID,
			GUID:            ep.GUID,
			Title:           nilIfEmpty(ep.Title),
			Description:     nilIfEmpty(ep.Description),
			AudioURL:        nilIfEmpty(ep.AudioURL),
			PubDate:         ep.PubDate,
			DurationSeconds: ep.DurationSeconds,
			ImageURL:        nilIfEmpty(ep.ImageURL),
		}

		if id, ok := existing[ep.GUID]; ok {
			if err := db.UpdateEpisodeTx(tx, id, params); err != nil {
				return nil, &ReconcileError{FeedURL: feedURL, Err: err}
			}
			result.Updated++
		} else {
			if err := db.InsertEpisodeTx(tx, params); err != nil {
				return nil, &ReconcileError{FeedURL: feedURL, Err: err}
			}
			result.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &ReconcileError{FeedURL: feedURL, Err: err}
	}
	return result, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

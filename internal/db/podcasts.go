package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"podcastdir/internal/models"
)

// FetchState is the per-feed fetch bookkeeping used by the conditional
// fetcher: cached validators plus the last attempt timestamp.
type FetchState struct {
	ID            int        `db:"id"`
	ETag          *string    `db:"etag"`
	LastModified  *string    `db:"last_modified"`
	LastRefreshed *time.Time `db:"last_refreshed"`
}

// GetFetchState returns the stored fetch state for a feed URL, or nil if the
// feed has never been ingested.
func GetFetchState(feedURL string) (*FetchState, error) {
	state := &FetchState{}
	err := DB.Get(state, "SELECT id, etag, last_modified, last_refreshed FROM podcasts WHERE feed_url = $1", feedURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// UpsertPodcastParams carries the normalized feed-level metadata written in
// the same transaction as the episode batch.
type UpsertPodcastParams struct {
	FeedURL      string
	Title        *string
	Author       *string
	ImageURL     *string
	Description  *string
	Genre        []string
	Slug         *string
	ETag         *string
	LastModified *string
}

// UpsertPodcastTx creates or updates a podcast row by feed_url and returns
// its id. is_private is administrative and never touched here.
func UpsertPodcastTx(tx *sqlx.Tx, p UpsertPodcastParams) (int, error) {
	query := `
		INSERT INTO podcasts (feed_url, title, author, image_url, description, genre, slug, etag, last_modified, last_refreshed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (feed_url) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			image_url = EXCLUDED.image_url,
			description = EXCLUDED.description,
			genre = EXCLUDED.genre,
			slug = EXCLUDED.slug,
			etag = EXCLUDED.etag,
			last_modified = EXCLUDED.last_modified,
			last_refreshed = NOW()
		RETURNING id
	`
	var id int
	err := tx.Get(&id, query,
		p.FeedURL, p.Title, p.Author, p.ImageURL, p.Description,
		pq.Array(p.Genre), p.Slug, p.ETag, p.LastModified)
	return id, err
}

// TouchLastRefreshed advances last_refreshed without changing anything else.
// Used after a 304 so an unchanged feed still records the attempt.
func TouchLastRefreshed(feedURL string) error {
	_, err := DB.Exec("UPDATE podcasts SET last_refreshed = NOW() WHERE feed_url = $1", feedURL)
	return err
}

// ListPublicPodcasts returns all podcasts not flagged private.
func ListPublicPodcasts() ([]models.Podcast, error) {
	var podcasts []models.Podcast
	err := DB.Select(&podcasts, "SELECT * FROM podcasts WHERE is_private = FALSE ORDER BY title")
	return podcasts, err
}

func GetPodcastByID(id int) (models.Podcast, error) {
	podcast := models.Podcast{}
	err := DB.Get(&podcast, "SELECT * FROM podcasts WHERE id = $1", id)
	return podcast, err
}

func GetPodcastBySlug(slug string) (models.Podcast, error) {
	podcast := models.Podcast{}
	err := DB.Get(&podcast, "SELECT * FROM podcasts WHERE slug = $1 LIMIT 1", slug)
	return podcast, err
}

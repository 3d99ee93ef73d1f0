package models

import (
	"time"

	"github.com/lib/pq"
)

// Podcast is a directory entry for one external feed. The ingester is the
// only writer; rows are created on the first successful fetch and never
// deleted by it.
type Podcast struct {
	ID            int            `db:"id" json:"id"`
	FeedURL       string         `db:"feed_url" json:"feed_url"`
	Title         *string        `db:"title" json:"title"`
	Author        *string        `db:"author" json:"author"`
	ImageURL      *string        `db:"image_url" json:"image_url"`
	Description   *string        `db:"description" json:"description"`
	Genre         pq.StringArray `db:"genre" json:"genre"`
	Slug          *string        `db:"slug" json:"slug"`
	IsPrivate     bool           `db:"is_private" json:"-"`
	ETag          *string        `db:"etag" json:"-"`
	LastModified  *string        `db:"last_modified" json:"-"`
	LastRefreshed *time.Time     `db:"last_refreshed" json:"last_refreshed"`
}

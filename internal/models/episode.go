package models

import "time"

// Episode is unique per (podcast_id, guid). Unknown values are NULL, not
// zero: a zero duration is a real duration.
type Episode struct {
	ID              int        `db:"id" json:"id"`
	PodcastID       int        `db:"podcast_id" json:"podcast_id"`
	GUID            string     `db:"guid" json:"guid"`
	Title           *string    `db:"title" json:"title"`
	Description     *string    `db:"description" json:"description"`
	AudioURL        *string    `db:"audio_url" json:"audio_url"`
	PubDate         *time.Time `db:"pub_date" json:"pub_date"`
	DurationSeconds *int       `db:"duration_seconds" json:"duration_seconds"`
	ImageURL        *string    `db:"image_url" json:"image_url"`
	Transcript      *string    `db:"transcript" json:"transcript,omitempty"`
}

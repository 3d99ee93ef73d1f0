package db

import (
	"time"

	"github.com/jmoiron/sqlx"
	"podcastdir/internal/models"
)

// UpsertEpisodeParams are the mutable episode fields an ingestion cycle may
// write. Transcript is locally enriched and deliberately absent: updates
// must never clobber it.
type UpsertEpisodeParams struct {
	PodcastID       int
	GUID            string
	Title           *string
	Description     *string
	AudioURL        *string
	PubDate         *time.Time
	DurationSeconds *int
	ImageURL        *string
}

// EpisodeIDsByGUIDTx returns guid -> id for every stored episode of a
// podcast, read inside the reconcile transaction.
func EpisodeIDsByGUIDTx(tx *sqlx.Tx, podcastID int) (map[string]int, error) {
	rows, err := tx.Queryx("SELECT id, guid FROM episodes WHERE podcast_id = $1", podcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]int)
	for rows.Next() {
		var id int
		var guid string
		if err := rows.Scan(&id, &guid); err != nil {
			return nil, err
		}
		ids[guid] = id
	}
	return ids, rows.Err()
}

func InsertEpisodeTx(tx *sqlx.Tx, e UpsertEpisodeParams) error {
	_, err := tx.Exec(`
		INSERT INTO episodes (podcast_id, guid, title, description, audio_url, pub_date, duration_seconds, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.PodcastID, e.GUID, e.Title, e.Description, e.AudioURL, e.PubDate, e.DurationSeconds, e.ImageURL)
	return err
}

func UpdateEpisodeTx(tx *sqlx.Tx, id int, e UpsertEpisodeParams) error {
	_, err := tx.Exec(`
		UPDATE episodes
		SET title = $1, description = $2, audio_url = $3, pub_date = $4, duration_seconds = $5, image_url = $6
		WHERE id = $7`,
		e.Title, e.Description, e.AudioURL, e.PubDate, e.DurationSeconds, e.ImageURL, id)
	return err
}

// LatestEpisodePubDate returns the newest stored pub_date for a podcast, or
// nil when no stored episode carries one.
func LatestEpisodePubDate(podcastID int) (*time.Time, error) {
	var latest *time.Time
	err := DB.Get(&latest, "SELECT MAX(pub_date) FROM episodes WHERE podcast_id = $1", podcastID)
	return latest, err
}

// GetEpisodesByPodcastID returns a podcast's episodes, newest first.
func GetEpisodesByPodcastID(podcastID int) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE podcast_id = $1
		ORDER BY pub_date DESC NULLS LAST, id DESC`, podcastID)
	return episodes, err
}

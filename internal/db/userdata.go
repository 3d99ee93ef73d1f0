package db

import (
	"database/sql"
	"errors"

	"podcastdir/internal/models"
)

// GetUserData returns the stored sync document row for a user, or nil if the
// user has never synced.
func GetUserData(userID int64) (*models.UserData, error) {
	data := &models.UserData{}
	err := DB.Get(data, "SELECT * FROM user_data WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UpsertUserData writes the merged document in a single statement keyed by
// user id. One row per user; no cross-user contention.
func UpsertUserData(userID int64, progress, history, favorites, sortPreferences []byte) error {
	query := `
		INSERT INTO user_data (user_id, progress, history, favorites, sort_preferences, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			progress = EXCLUDED.progress,
			history = EXCLUDED.history,
			favorites = EXCLUDED.favorites,
			sort_preferences = EXCLUDED.sort_preferences,
			updated_at = NOW()
	`
	_, err := DB.Exec(query, userID, progress, history, favorites, sortPreferences)
	return err
}

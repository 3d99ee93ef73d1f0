package db

import (
	"github.com/sirupsen/logrus"
	"podcastdir/internal/models"
)

// UpsertUser inserts a new user or updates an existing one based on the
// identity provider's user id.
func UpsertUser(id int64, username string) (*models.User, error) {
	query := `
		INSERT INTO users (id, telegram_username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			telegram_username = EXCLUDED.telegram_username,
			updated_at = NOW()
		RETURNING id, telegram_username, created_at, updated_at
	`
	user := &models.User{}
	err := DB.Get(user, query, id, username)
	if err != nil {
		logrus.WithError(err).Error("Error upserting user")
		return nil, err
	}
	return user, nil
}

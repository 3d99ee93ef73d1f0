package models

import "time"

// User represents an authenticated account. Identity is issued by the
// external provider; we only mirror the id and display name.
type User struct {
	ID               int64     `db:"id"`
	TelegramUsername string    `db:"telegram_username"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

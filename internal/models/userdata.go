package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// UserData is the stored sync document, exactly one row per user.
type UserData struct {
	ID              int            `db:"id"`
	UserID          int64          `db:"user_id"`
	Progress        types.JSONText `db:"progress"`
	History         types.JSONText `db:"history"`
	Favorites       types.JSONText `db:"favorites"`
	SortPreferences types.JSONText `db:"sort_preferences"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

package db

import (
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // The database driver
	"github.com/sirupsen/logrus"
)

// DB is the global database connection.
var DB *sqlx.DB

// InitDB initializes the database connection. Hosted Postgres endpoints can
// drop the first few connection attempts after a cold start, so the connect
// is retried with exponential backoff.
func InitDB() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logrus.Fatal("DATABASE_URL is not set")
	}

	connect := func() error {
		var err error
		DB, err = sqlx.Connect("postgres", dbURL)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(connect, policy); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	if err := DB.Ping(); err != nil {
		logrus.Fatalf("Failed to ping database: %v", err)
	}

	logrus.Info("Database connection established")
}

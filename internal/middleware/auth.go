package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"podcastdir/internal/db"
)

type contextKey string

// UserContextKey is the key for the user in the context.
const UserContextKey = contextKey("user")

var telegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

// SetTestToken overrides the bot token. Only for tests.
func SetTestToken(token string) { telegramBotToken = token }

// AuthMiddleware validates the identity provider's signed init data and
// upserts the user row. Token issuance itself is the provider's problem; we
// only verify the signature.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "tma" {
			http.Error(w, "Authorization header format must be 'tma <initData>'", http.StatusUnauthorized)
			return
		}

		raw := parts[1]
		if telegramBotToken == "" {
			logrus.Error("TELEGRAM_BOT_TOKEN is not set")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if err := initdata.Validate(raw, telegramBotToken, 0); err != nil {
			logrus.WithError(err).Warn("Invalid init data")
			http.Error(w, "Invalid init data", http.StatusUnauthorized)
			return
		}

		data, err := initdata.Parse(raw)
		if err != nil {
			logrus.WithError(err).Warn("Error parsing init data")
			http.Error(w, "Error parsing init data", http.StatusBadRequest)
			return
		}

		user, err := db.UpsertUser(data.User.ID, data.User.Username)
		if err != nil {
			http.Error(w, "Failed to authenticate user", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"podcastdir/internal/config"
	"podcastdir/internal/db"
	"podcastdir/internal/handlers"
	"podcastdir/internal/middleware"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	db.InitDB()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asynqClient.Close()

	h := handlers.New(asynqClient, logger)

	r := mux.NewRouter()
	r.HandleFunc("/api/podcasts", h.ListPodcasts).Methods(http.MethodGet)
	r.HandleFunc("/api/podcasts/{id:[0-9]+}", h.GetPodcast).Methods(http.MethodGet)
	r.HandleFunc("/rss/{slug}", h.GetRSSFeed).Methods(http.MethodGet)

	rateLimiter := middleware.NewRateLimiterMiddleware(1, 5)

	sync := r.PathPrefix("/api/sync").Subrouter()
	sync.Use(middleware.AuthMiddleware, rateLimiter.Middleware)
	sync.HandleFunc("", h.GetSync).Methods(http.MethodGet)
	sync.HandleFunc("", h.PostSync).Methods(http.MethodPost)

	ingest := r.PathPrefix("/api/ingest").Subrouter()
	ingest.Use(middleware.AuthMiddleware, rateLimiter.Middleware)
	ingest.HandleFunc("", h.TriggerIngest).Methods(http.MethodPost)

	logger.Infof("Starting server on :%s (commit: %s)", cfg.Port, CommitSHA)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal(err)
	}
}

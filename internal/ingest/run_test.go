package ingest

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"podcastdir/internal/registry"
	"podcastdir/internal/test"
)

const runTestFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
  <title>Daily Show</title>
  <description>Every day.</description>
  <item><guid>ep-1</guid><title>One</title><description>d</description></item>
</channel></rss>`

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func fastOptions() Options {
	return Options{
		Concurrency:       1,
		FetchTimeout:      5 * time.Second,
		PerOriginInterval: time.Millisecond,
	}
}

func TestRunCadenceFiltering(t *testing.T) {
	_, mock := test.NewMockDB(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(runTestFeed))
	}))
	defer srv.Close()

	// Feed A is daily and gets the full cycle; feed B is skipped without a
	// single query or request.
	mock.ExpectQuery(`SELECT id, etag, last_modified, last_refreshed FROM podcasts`).
		WithArgs(srv.URL + "/a.xml").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO podcasts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, guid FROM episodes`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "guid"}))
	mock.ExpectExec(`INSERT INTO episodes`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	opts := fastOptions()
	opts.DailyOnly = true
	runner := NewRunner(opts, quietLogger())

	summary, err := runner.Run(context.Background(), []registry.Feed{
		{URL: srv.URL + "/a.xml", Daily: true},
		{URL: srv.URL + "/b.xml"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.NewEpisodes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunNotModifiedShortCircuits(t *testing.T) {
	_, mock := test.NewMockDB(t)

	var sawValidator bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawValidator = r.Header.Get("If-None-Match") == `"v1"`
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	etag := `"v1"`
	lastRefreshed := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`SELECT id, etag, last_modified, last_refreshed FROM podcasts`).
		WithArgs(srv.URL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "etag", "last_modified", "last_refreshed"}).
			AddRow(1, etag, nil, lastRefreshed))
	// The only write for an unchanged feed is the attempt timestamp.
	mock.ExpectExec(`UPDATE podcasts SET last_refreshed = NOW\(\)`).
		WithArgs(srv.URL).
		WillReturnResult(sqlmock.NewResult(0, 1))

	runner := NewRunner(fastOptions(), quietLogger())
	summary, err := runner.Run(context.Background(), []registry.Feed{{URL: srv.URL}})
	require.NoError(t, err)

	assert.True(t, sawValidator, "stored validator must be sent")
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 0, summary.NewEpisodes)
	assert.NoError(t, mock.ExpectationsWereMet(), "no parse, no episode writes")
}

func TestRunIdempotentReingest(t *testing.T) {
	_, mock := test.NewMockDB(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(runTestFeed))
	}))
	defer srv.Close()

	// First run: full fetch, one insert, validators committed.
	mock.ExpectQuery(`SELECT id, etag, last_modified, last_refreshed FROM podcasts`).
		WithArgs(srv.URL).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO podcasts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, guid FROM episodes`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "guid"}))
	mock.ExpectExec(`INSERT INTO episodes`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// Second run: the stored validator turns into a 304 and the only write
	// is the attempt timestamp.
	lastRefreshed := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`SELECT id, etag, last_modified, last_refreshed FROM podcasts`).
		WithArgs(srv.URL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "etag", "last_modified", "last_refreshed"}).
			AddRow(1, `"v1"`, nil, lastRefreshed))
	mock.ExpectExec(`UPDATE podcasts SET last_refreshed = NOW\(\)`).
		WithArgs(srv.URL).
		WillReturnResult(sqlmock.NewResult(0, 1))

	runner := NewRunner(fastOptions(), quietLogger())
	feeds := []registry.Feed{{URL: srv.URL}}

	first, err := runner.Run(context.Background(), feeds)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)
	assert.Equal(t, 1, first.NewEpisodes)

	second, err := runner.Run(context.Background(), feeds)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.NewEpisodes)
	assert.Equal(t, 0, second.UpdatedEpisodes)
	assert.NoError(t, mock.ExpectationsWereMet(), "second run writes nothing but last_refreshed")
}

func TestRunSkipsFeedWithStaleNewestEpisode(t *testing.T) {
	_, mock := test.NewMockDB(t)

	var fetched bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched = true
		w.Write([]byte(runTestFeed))
	}))
	defer srv.Close()

	lastRefreshed := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT id, etag, last_modified, last_refreshed FROM podcasts`).
		WithArgs(srv.URL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "etag", "last_modified", "last_refreshed"}).
			AddRow(5, nil, nil, lastRefreshed))
	mock.ExpectQuery(`SELECT MAX\(pub_date\) FROM episodes`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(time.Now().AddDate(0, 0, -90)))

	opts := fastOptions()
	opts.ActiveOnly = true
	runner := NewRunner(opts, quietLogger())

	summary, err := runner.Run(context.Background(), []registry.Feed{{URL: srv.URL}})
	require.NoError(t, err)

	assert.False(t, fetched, "a complete feed is never fetched")
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunFailureIsolation(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/good.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(runTestFeed))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mock.ExpectQuery(`SELECT id, etag, last_modified, last_refreshed FROM podcasts`).
		WithArgs(srv.URL + "/broken.xml").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT id, etag, last_modified, last_refreshed FROM podcasts`).
		WithArgs(srv.URL + "/good.xml").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO podcasts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery(`SELECT id, guid FROM episodes`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "guid"}))
	mock.ExpectExec(`INSERT INTO episodes`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	runner := NewRunner(fastOptions(), quietLogger())
	summary, err := runner.Run(context.Background(), []registry.Feed{
		{URL: srv.URL + "/broken.xml"},
		{URL: srv.URL + "/good.xml"},
	})
	require.NoError(t, err, "a failed feed never fails the run")

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleTransitions(t *testing.T) {
	c := &Cycle{Status: StatusPending}
	c.transition(StatusFetching)
	c.transition(StatusParsing)
	c.transition(StatusReconciling)
	c.transition(StatusDone)
	assert.True(t, c.Status.Terminal())

	assert.Panics(t, func() {
		done := &Cycle{Status: StatusDone}
		done.transition(StatusFetching)
	})
	assert.Panics(t, func() {
		pending := &Cycle{Status: StatusPending}
		pending.transition(StatusReconciling)
	})
}

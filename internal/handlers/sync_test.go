package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"podcastdir/internal/middleware"
	"podcastdir/internal/models"
	"podcastdir/internal/test"
	"podcastdir/pkg/syncdoc"
)

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), middleware.UserContextKey, &models.User{ID: 42})
	return req.WithContext(ctx)
}

func userDataColumns() []string {
	return []string{"id", "user_id", "progress", "history", "favorites", "sort_preferences", "updated_at"}
}

func TestGetSyncNeverSynced(t *testing.T) {
	_, mock := test.NewMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM user_data WHERE user_id = \$1`).WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	h := newTestHandlers()
	rr := httptest.NewRecorder()
	h.GetSync(rr, authedRequest(http.MethodGet, "/api/sync", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"favorites": {}}`, rr.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSyncReturnsStoredDocument(t *testing.T) {
	_, mock := test.NewMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM user_data WHERE user_id = \$1`).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(userDataColumns()).
			AddRow(1, int64(42),
				[]byte(`{"ep-1": 120.5}`),
				[]byte(`[]`),
				[]byte(`{"podcasts": ["p-1"]}`),
				[]byte(`{"p-1": "newest"}`),
				time.Now()))

	h := newTestHandlers()
	rr := httptest.NewRecorder()
	h.GetSync(rr, authedRequest(http.MethodGet, "/api/sync", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	var doc syncdoc.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, 120.5, doc.Progress["ep-1"])
	assert.Equal(t, []string{"p-1"}, doc.Favorites.Podcasts)
	assert.Equal(t, "newest", doc.SortPreferences["p-1"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSyncUnauthorized(t *testing.T) {
	test.NewMockDB(t)
	h := newTestHandlers()
	rr := httptest.NewRecorder()
	h.GetSync(rr, httptest.NewRequest(http.MethodGet, "/api/sync", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPostSyncStoredValueWinsOnConflict(t *testing.T) {
	_, mock := test.NewMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM user_data WHERE user_id = \$1`).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(userDataColumns()).
			AddRow(1, int64(42),
				[]byte(`{"ep-1": 300}`),
				[]byte(`[]`),
				[]byte(`{}`),
				[]byte(`{}`),
				time.Now()))
	mock.ExpectExec(`INSERT INTO user_data`).
		WithArgs(int64(42), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := newTestHandlers()
	rr := httptest.NewRecorder()
	body := `{"progress": {"ep-1": 10, "ep-2": 45}}`
	h.PostSync(rr, authedRequest(http.MethodPost, "/api/sync", body))

	require.Equal(t, http.StatusOK, rr.Code)
	var doc syncdoc.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, float64(300), doc.Progress["ep-1"])
	assert.Equal(t, float64(45), doc.Progress["ep-2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostSyncFirstPushStoresClientDocument(t *testing.T) {
	_, mock := test.NewMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM user_data WHERE user_id = \$1`).WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO user_data`).
		WithArgs(int64(42), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := newTestHandlers()
	rr := httptest.NewRecorder()
	body := `{"favorites": {"episodes": ["ep-9"]}, "history": [{"episode_id": "ep-9", "timestamp": "2026-08-01T10:00:00Z"}]}`
	h.PostSync(rr, authedRequest(http.MethodPost, "/api/sync", body))

	require.Equal(t, http.StatusOK, rr.Code)
	var doc syncdoc.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, []string{"ep-9"}, doc.Favorites.Episodes)
	require.Len(t, doc.History, 1)
	assert.Equal(t, "ep-9", doc.History[0].EpisodeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostSyncBadBody(t *testing.T) {
	test.NewMockDB(t)
	h := newTestHandlers()
	rr := httptest.NewRecorder()
	h.PostSync(rr, authedRequest(http.MethodPost, "/api/sync", `{not json`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemens-chr/tuner/internal/domain"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc) *Index {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL, Collection: "entries"}, 2)
}

func TestInitCreatesCollection(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/entries", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		vectors := body["vectors"].(map[string]any)
		assert.EqualValues(t, 2, vectors["size"])
		assert.Equal(t, "Cosine", vectors["distance"])
	})

	require.NoError(t, idx.Init(context.Background()))
}

func TestUpsertSendsPointWithPayload(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var body map[string]any
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/entries/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	})

	err := idx.Upsert(context.Background(), domain.IndexRecord{
		EntryID:   "e1",
		Vector:    []float64{1, 0},
		Title:     "title",
		CreatedAt: created,
	})
	require.NoError(t, err)

	points := body["points"].([]any)
	require.Len(t, points, 1)
	point := points[0].(map[string]any)
	assert.Equal(t, "e1", point["id"])
	payload := point["payload"].(map[string]any)
	assert.Equal(t, "title", payload["title"])
	assert.Equal(t, created.Format(time.RFC3339Nano), payload["created_at"])
}

func TestUpsertFailureIsIndexWriteError(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := idx.Upsert(context.Background(), domain.IndexRecord{EntryID: "e1", Vector: []float64{1, 0}})
	var indexErr *domain.IndexWriteError
	require.ErrorAs(t, err, &indexErr)
	assert.Equal(t, "upsert", indexErr.Op)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	idx := New(Config{URL: "http://unused"}, 2)
	err := idx.Upsert(context.Background(), domain.IndexRecord{EntryID: "e1", Vector: []float64{1, 0, 0}})

	var dimErr *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
}

func TestQueryTieAtLimitBoundaryPrefersMostRecent(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/entries/points/search", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// one past the caller's limit so the boundary tie can be re-sorted
		assert.EqualValues(t, 2, body["limit"])

		// Qdrant's tie order is unspecified; answer oldest first
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "old", "score": 0.9, "payload": map[string]any{
					"created_at": older.Format(time.RFC3339Nano),
				}},
				{"id": "new", "score": 0.9, "payload": map[string]any{
					"created_at": newer.Format(time.RFC3339Nano),
				}},
			},
		})
	})

	matches, err := idx.Query(context.Background(), []float64{1, 0}, 1, 0.7)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].EntryID)
}

func TestQueryDimensionMismatch(t *testing.T) {
	idx := New(Config{URL: "http://unused"}, 2)
	_, err := idx.Query(context.Background(), []float64{1, 0, 0}, 5, 0.7)

	var dimErr *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
}

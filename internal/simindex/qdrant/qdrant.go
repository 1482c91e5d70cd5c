package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/clemens-chr/tuner/internal/domain"
)

const defaultLimit = 5

// Index is a minimal REST client to a Qdrant collection configured for
// cosine distance.
type Index struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

// Config contains connection details for a Qdrant similarity index.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// New creates an uninitialized Qdrant index client.
func New(cfg Config, dimension int) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "entries"
	}
	return &Index{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init ensures the collection exists with the configured dimensionality.
func (i *Index) Init(ctx context.Context) error {
	if i.url == "" {
		return errors.New("qdrant url not configured")
	}
	if i.dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     i.dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 for an existing collection with the same schema
	return i.send(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", i.url, i.collection), body, nil)
}

// Upsert stores or replaces the record for rec.EntryID.
func (i *Index) Upsert(ctx context.Context, rec domain.IndexRecord) error {
	if len(rec.Vector) != i.dimension {
		return &domain.DimensionMismatchError{Want: i.dimension, Got: len(rec.Vector)}
	}
	body := map[string]any{
		"points": []map[string]any{{
			"id":     rec.EntryID,
			"vector": rec.Vector,
			"payload": map[string]any{
				"title":       rec.Title,
				"description": rec.Description,
				"metadata":    rec.Metadata,
				"created_at":  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			},
		}},
	}
	err := i.send(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", i.url, i.collection), body, nil)
	if err != nil {
		return &domain.IndexWriteError{Op: "upsert", Err: err}
	}
	return nil
}

// Query returns matches with similarity >= threshold ordered best first.
// Qdrant leaves tie order unspecified, so ties are re-sorted client-side by
// most recent created_at for deterministic results.
func (i *Index) Query(ctx context.Context, vector []float64, limit int, threshold float64) ([]domain.SimilarityMatch, error) {
	if len(vector) != i.dimension {
		return nil, &domain.DimensionMismatchError{Want: i.dimension, Got: len(vector)}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	// one past the limit so a tie straddling the boundary can be re-sorted by
	// recency before truncation
	body := map[string]any{
		"vector":          vector,
		"limit":           limit + 1,
		"score_threshold": threshold,
		"with_payload":    true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := i.send(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", i.url, i.collection), body, &resp)
	if err != nil {
		return nil, err
	}

	type scored struct {
		match     domain.SimilarityMatch
		createdAt time.Time
	}
	results := make([]scored, 0, len(resp.Result))
	for _, r := range resp.Result {
		s := scored{match: domain.SimilarityMatch{Similarity: r.Score}}
		if id, ok := r.ID.(string); ok {
			s.match.EntryID = id
		}
		if v, ok := r.Payload["title"].(string); ok {
			s.match.Title = v
		}
		if v, ok := r.Payload["description"].(string); ok {
			s.match.Description = v
		}
		if v, ok := r.Payload["metadata"].(map[string]any); ok {
			s.match.Metadata = v
		}
		if v, ok := r.Payload["created_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				s.createdAt = ts
			}
		}
		results = append(results, s)
	}
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].match.Similarity != results[b].match.Similarity {
			return results[a].match.Similarity > results[b].match.Similarity
		}
		return results[a].createdAt.After(results[b].createdAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}

	matches := make([]domain.SimilarityMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, r.match)
	}
	return matches, nil
}

// Remove deletes the record for entryID. Removing an absent point is a no-op
// on the Qdrant side.
func (i *Index) Remove(ctx context.Context, entryID string) error {
	body := map[string]any{"points": []string{entryID}}
	return i.send(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", i.url, i.collection), body, nil)
}

func (i *Index) send(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

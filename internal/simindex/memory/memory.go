package memory

import (
	"context"
	"maps"
	"math"
	"sort"
	"sync"

	"github.com/clemens-chr/tuner/internal/domain"
)

const defaultLimit = 5

// Index is an in-memory similarity index using brute-force cosine similarity.
// It backs tests and deployments without a vector-capable store.
type Index struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]domain.IndexRecord
}

// New creates an empty index for vectors of the given dimensionality.
func New(dimension int) *Index {
	return &Index{
		dimension: dimension,
		records:   make(map[string]domain.IndexRecord),
	}
}

// Upsert stores or replaces the record for rec.EntryID.
func (i *Index) Upsert(_ context.Context, rec domain.IndexRecord) error {
	if len(rec.Vector) != i.dimension {
		return &domain.DimensionMismatchError{Want: i.dimension, Got: len(rec.Vector)}
	}
	vec := make([]float64, len(rec.Vector))
	copy(vec, rec.Vector)
	rec.Vector = vec
	rec.Metadata = maps.Clone(rec.Metadata)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.records[rec.EntryID] = rec
	return nil
}

// Query returns records with cosine similarity >= threshold, best first.
// Ties are broken by most recent CreatedAt, then by EntryID for full
// determinism.
func (i *Index) Query(_ context.Context, vector []float64, limit int, threshold float64) ([]domain.SimilarityMatch, error) {
	if len(vector) != i.dimension {
		return nil, &domain.DimensionMismatchError{Want: i.dimension, Got: len(vector)}
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	type scored struct {
		rec        domain.IndexRecord
		similarity float64
	}

	i.mu.RLock()
	candidates := make([]scored, 0, len(i.records))
	for _, rec := range i.records {
		sim := cosine(rec.Vector, vector)
		if sim >= threshold {
			candidates = append(candidates, scored{rec: rec, similarity: sim})
		}
	}
	i.mu.RUnlock()

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].similarity != candidates[b].similarity {
			return candidates[a].similarity > candidates[b].similarity
		}
		if !candidates[a].rec.CreatedAt.Equal(candidates[b].rec.CreatedAt) {
			return candidates[a].rec.CreatedAt.After(candidates[b].rec.CreatedAt)
		}
		return candidates[a].rec.EntryID < candidates[b].rec.EntryID
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	matches := make([]domain.SimilarityMatch, 0, limit)
	for _, c := range candidates[:limit] {
		matches = append(matches, domain.SimilarityMatch{
			EntryID:     c.rec.EntryID,
			Similarity:  c.similarity,
			Title:       c.rec.Title,
			Description: c.rec.Description,
			Metadata:    maps.Clone(c.rec.Metadata),
		})
	}
	return matches, nil
}

// Remove deletes the record for entryID. Removing an absent record is a no-op.
func (i *Index) Remove(_ context.Context, entryID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.records, entryID)
	return nil
}

// Len reports the number of stored records.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

// cosine computes dot(a,b) / (‖a‖·‖b‖). Zero-norm vectors score 0.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for idx := range a {
		dot += a[idx] * b[idx]
		na += a[idx] * a[idx]
		nb += b[idx] * b[idx]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package domain

import "context"

// Embedder maps text to a fixed-length vector representation.
type Embedder interface {
	// Embed returns the embedding for text. The returned vector always has
	// exactly Dimension() elements.
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// FeatureExtractor converts raw multimodal input into a FeatureSummary.
// Missing modality fields in the result are explicit zero values.
type FeatureExtractor interface {
	Extract(ctx context.Context, text string, images [][]byte, video []byte) (*FeatureSummary, error)
}

// SimilarityIndex stores entry vectors and serves nearest-neighbour queries
// by cosine similarity.
type SimilarityIndex interface {
	// Upsert stores or replaces the record for rec.EntryID atomically.
	Upsert(ctx context.Context, rec IndexRecord) error
	// Query returns matches with similarity >= threshold, sorted by
	// similarity descending with ties broken by most recent CreatedAt,
	// bounded by limit.
	Query(ctx context.Context, vector []float64, limit int, threshold float64) ([]SimilarityMatch, error)
	// Remove deletes the record for entryID. Removing an absent record is a
	// no-op.
	Remove(ctx context.Context, entryID string) error
}

// ConfidenceScorer computes routing confidence from a feature summary and the
// similarity matches found for it. Implementations must be pure functions of
// their inputs so a learned model can replace the rule table without touching
// the matcher's control flow.
type ConfidenceScorer interface {
	Score(summary *FeatureSummary, matches []SimilarityMatch) float64
}

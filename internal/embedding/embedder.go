package embedding

import (
	"context"

	"github.com/clemens-chr/tuner/internal/domain"
)

// Embedder converts text into a fixed-length numeric vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// provider is the remote API surface an Embedder is built on.
type provider interface {
	Embedding(ctx context.Context, text string) ([]float64, error)
	Dimensions() int
}

// Remote adapts a remote embedding provider to the Embedder interface,
// enforcing the system-wide dimensionality on every response.
type Remote struct {
	provider  provider
	dimension int
}

// NewRemote wraps the given provider. A non-positive dimension falls back to
// the provider's configured dimensionality.
func NewRemote(p provider, dimension int) *Remote {
	if dimension <= 0 {
		dimension = p.Dimensions()
	}
	return &Remote{provider: p, dimension: dimension}
}

// Dimension returns the fixed dimensionality of produced vectors.
func (r *Remote) Dimension() int { return r.dimension }

// Embed returns the embedding for text. A response of unexpected length is a
// DimensionMismatchError, never silently truncated or padded.
func (r *Remote) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := r.provider.Embedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != r.dimension {
		return nil, &domain.DimensionMismatchError{Want: r.dimension, Got: len(vec)}
	}
	return vec, nil
}

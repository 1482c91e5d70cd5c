package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemens-chr/tuner/internal/domain"
)

type stubProvider struct {
	vector []float64
	err    error
	dims   int
}

func (s stubProvider) Embedding(context.Context, string) ([]float64, error) {
	return s.vector, s.err
}

func (s stubProvider) Dimensions() int { return s.dims }

func TestRemoteEmbed(t *testing.T) {
	r := NewRemote(stubProvider{vector: []float64{0.5, 0.5, 0}}, 3)

	vec, err := r.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0}, vec)
	assert.Equal(t, 3, r.Dimension())
}

func TestRemoteEmbedDimensionMismatch(t *testing.T) {
	r := NewRemote(stubProvider{vector: []float64{0.5, 0.5}}, 3)

	_, err := r.Embed(context.Background(), "text")
	var dimErr *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Want)
	assert.Equal(t, 2, dimErr.Got)
}

func TestRemoteEmbedPropagatesProviderError(t *testing.T) {
	boom := errors.New("service down")
	r := NewRemote(stubProvider{err: boom}, 3)

	_, err := r.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, boom)
}

func TestRemoteFallsBackToProviderDimension(t *testing.T) {
	r := NewRemote(stubProvider{dims: 1536}, 0)
	assert.Equal(t, 1536, r.Dimension())
}

package instructor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemens-chr/tuner/internal/domain"
	"github.com/clemens-chr/tuner/internal/matcher"
)

type stubExtractor struct {
	summary *domain.FeatureSummary
	err     error
}

func (s stubExtractor) Extract(context.Context, string, [][]byte, []byte) (*domain.FeatureSummary, error) {
	return s.summary, s.err
}

type stubEmbedder struct {
	vector []float64
	err    error
	calls  int
	input  string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	s.calls++
	s.input = text
	return s.vector, s.err
}

func (s *stubEmbedder) Dimension() int { return len(s.vector) }

type stubIndex struct {
	matches []domain.SimilarityMatch
	err     error
	limit   int
	thresh  float64
}

func (s *stubIndex) Upsert(context.Context, domain.IndexRecord) error { return nil }

func (s *stubIndex) Query(_ context.Context, _ []float64, limit int, threshold float64) ([]domain.SimilarityMatch, error) {
	s.limit = limit
	s.thresh = threshold
	return s.matches, s.err
}

func (s *stubIndex) Remove(context.Context, string) error { return nil }

// contextEmbedder honours cancellation the way a real remote client does.
type contextEmbedder struct {
	vector []float64
}

func (c contextEmbedder) Embed(ctx context.Context, _ string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.vector, nil
}

func (c contextEmbedder) Dimension() int { return len(c.vector) }

type stubCreator struct {
	id    string
	err   error
	title string
}

func (s *stubCreator) Create(_ context.Context, title, _ string, _ []float64, _ map[string]any) (string, error) {
	s.title = title
	return s.id, s.err
}

func featureSummary(text string) *domain.FeatureSummary {
	return &domain.FeatureSummary{
		CombinedText: text,
		Text:         domain.TextSummary{Raw: text, Summary: text},
	}
}

func newInstructor(ex domain.FeatureExtractor, em domain.Embedder, idx domain.SimilarityIndex, cr EntryCreator) *Instructor {
	m := matcher.New(matcher.NewKeywordScorer(nil), 0)
	return New(ex, em, idx, cr, m, Config{}, nil)
}

func TestProcessRequestMatchWithoutUrgencyCreatesNew(t *testing.T) {
	embedder := &stubEmbedder{vector: []float64{1, 0}}
	index := &stubIndex{matches: []domain.SimilarityMatch{{EntryID: "entry-9", Similarity: 0.93}}}
	ins := newInstructor(stubExtractor{summary: featureSummary("fix the login page")}, embedder, index, &stubCreator{})

	decision, err := ins.ProcessRequest(context.Background(), Request{Text: "fix the login page"})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCreateNew, decision.Action)

	// matches exist but confidence 0.8 is not strictly above the threshold
	assert.Equal(t, 0.8, decision.Confidence)
	assert.Equal(t, "fix the login page", embedder.input)
}

func TestProcessRequestUrgentMatchRedirects(t *testing.T) {
	embedder := &stubEmbedder{vector: []float64{1, 0}}
	index := &stubIndex{matches: []domain.SimilarityMatch{{EntryID: "entry-9", Similarity: 0.93}}}
	ins := newInstructor(stubExtractor{summary: featureSummary("urgent: fix the login page")}, embedder, index, &stubCreator{})

	decision, err := ins.ProcessRequest(context.Background(), Request{Text: "urgent: fix the login page"})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRedirect, decision.Action)
	assert.Equal(t, "entry-9", decision.MatchedEntryID)
	assert.Equal(t, 0.9, decision.Confidence)
}

func TestProcessRequestUsesConfiguredQueryBounds(t *testing.T) {
	embedder := &stubEmbedder{vector: []float64{1, 0}}
	index := &stubIndex{}
	m := matcher.New(matcher.NewKeywordScorer(nil), 0)
	ins := New(stubExtractor{summary: featureSummary("text")}, embedder, index, &stubCreator{}, m,
		Config{QueryLimit: 7, QueryThreshold: 0.65}, nil)

	_, err := ins.ProcessRequest(context.Background(), Request{Text: "text"})
	require.NoError(t, err)
	assert.Equal(t, 7, index.limit)
	assert.Equal(t, 0.65, index.thresh)
}

func TestProcessRequestDefaultsQueryBounds(t *testing.T) {
	embedder := &stubEmbedder{vector: []float64{1, 0}}
	index := &stubIndex{}
	ins := newInstructor(stubExtractor{summary: featureSummary("text")}, embedder, index, &stubCreator{})

	_, err := ins.ProcessRequest(context.Background(), Request{Text: "text"})
	require.NoError(t, err)
	assert.Equal(t, 5, index.limit)
	assert.Equal(t, 0.7, index.thresh)
}

func TestProcessRequestStageErrors(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name      string
		extractor domain.FeatureExtractor
		embedder  domain.Embedder
		index     domain.SimilarityIndex
		stage     State
	}{
		{
			name:      "extraction failure",
			extractor: stubExtractor{err: boom},
			embedder:  &stubEmbedder{vector: []float64{1, 0}},
			index:     &stubIndex{},
			stage:     StateFeaturesExtracted,
		},
		{
			name:      "embedding failure",
			extractor: stubExtractor{summary: featureSummary("text")},
			embedder:  &stubEmbedder{err: boom},
			index:     &stubIndex{},
			stage:     StateEmbedded,
		},
		{
			name:      "index failure",
			extractor: stubExtractor{summary: featureSummary("text")},
			embedder:  &stubEmbedder{vector: []float64{1, 0}},
			index:     &stubIndex{err: boom},
			stage:     StateMatched,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ins := newInstructor(tc.extractor, tc.embedder, tc.index, &stubCreator{})
			decision, err := ins.ProcessRequest(context.Background(), Request{Text: "text"})

			assert.Nil(t, decision)
			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tc.stage, stageErr.Stage)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestSaveTask(t *testing.T) {
	embedder := &stubEmbedder{vector: []float64{1, 0}}
	creator := &stubCreator{id: "new-id"}
	ins := newInstructor(stubExtractor{}, embedder, &stubIndex{}, creator)

	receipt, err := ins.SaveTask(context.Background(), TaskInput{
		Title:       "Calibrate robot arm",
		Description: "The arm drifts two degrees per hour.",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", receipt.ID)
	assert.Equal(t, "created", receipt.Status)
	assert.NotEmpty(t, receipt.Message)

	// the description, not the title, is what gets embedded
	assert.Equal(t, "The arm drifts two degrees per hour.", embedder.input)
	assert.Equal(t, "Calibrate robot arm", creator.title)
}

func TestSaveTaskEmbeddingFailure(t *testing.T) {
	ins := newInstructor(stubExtractor{}, &stubEmbedder{err: errors.New("down")}, &stubIndex{}, &stubCreator{})

	_, err := ins.SaveTask(context.Background(), TaskInput{Title: "t", Description: "d"})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StateEmbedded, stageErr.Stage)
}

func TestSaveTaskCancelledContextNeverReachesStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	creator := &stubCreator{id: "never"}
	ins := newInstructor(stubExtractor{}, contextEmbedder{vector: []float64{1, 0}}, &stubIndex{}, creator)

	_, err := ins.SaveTask(ctx, TaskInput{Title: "t", Description: "d"})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StateEmbedded, stageErr.Stage)
	assert.ErrorIs(t, err, context.Canceled)

	// the store write must never start once the request is cancelled
	assert.Empty(t, creator.title)
}

func TestSaveTaskStoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	ins := newInstructor(stubExtractor{}, &stubEmbedder{vector: []float64{1, 0}}, &stubIndex{}, &stubCreator{err: boom})

	_, err := ins.SaveTask(context.Background(), TaskInput{Title: "t", Description: "d"})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StateStored, stageErr.Stage)
	assert.ErrorIs(t, err, boom)
}

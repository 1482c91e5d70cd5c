package instructor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clemens-chr/tuner/internal/domain"
	"github.com/clemens-chr/tuner/internal/matcher"
)

// State names a stage of the per-request routing pipeline.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateFeaturesExtracted State = "FEATURES_EXTRACTED"
	StateEmbedded          State = "EMBEDDED"
	StateMatched           State = "MATCHED"
	StateDecided           State = "DECIDED"
	StateStored            State = "STORED"
	StateFailed            State = "FAILED"
)

// StageError annotates a collaborator failure with the pipeline stage that
// was being entered when it occurred.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed entering %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// EntryCreator is the write path the creation flow depends on.
type EntryCreator interface {
	Create(ctx context.Context, title, description string, embedding []float64, metadata map[string]any) (string, error)
}

// Request is one multimodal routing request.
type Request struct {
	Text   string
	Images [][]byte
	Video  []byte
}

// TaskInput describes a new entry to record.
type TaskInput struct {
	Title       string
	Description string
	Metadata    map[string]any
}

// TaskReceipt confirms a recorded entry.
type TaskReceipt struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Config bounds the similarity query the orchestrator issues per request.
type Config struct {
	QueryLimit     int
	QueryThreshold float64
}

// Instructor sequences the routing pipeline: feature extraction, embedding,
// similarity query and the match decision. Collaborator failures surface as
// StageErrors; no partial decision is ever returned and no stage is retried
// here.
type Instructor struct {
	extractor domain.FeatureExtractor
	embedder  domain.Embedder
	index     domain.SimilarityIndex
	creator   EntryCreator
	matcher   *matcher.Matcher
	cfg       Config
	log       *logrus.Entry
}

// New assembles an Instructor from its collaborators.
func New(extractor domain.FeatureExtractor, embedder domain.Embedder, index domain.SimilarityIndex, creator EntryCreator, m *matcher.Matcher, cfg Config, log *logrus.Entry) *Instructor {
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = 5
	}
	if cfg.QueryThreshold <= 0 {
		cfg.QueryThreshold = 0.7
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Instructor{
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		creator:   creator,
		matcher:   m,
		cfg:       cfg,
		log:       log.WithField("component", "instructor"),
	}
}

// ProcessRequest runs the five-stage pipeline for one request. Each stage
// starts only after the previous one returned; ctx cancellation abandons all
// in-flight collaborator calls.
func (ins *Instructor) ProcessRequest(ctx context.Context, req Request) (*domain.RoutingDecision, error) {
	state := StateReceived

	summary, err := ins.extractor.Extract(ctx, req.Text, req.Images, req.Video)
	if err != nil {
		return nil, ins.fail(state, StateFeaturesExtracted, err)
	}
	state = ins.advance(state, StateFeaturesExtracted)

	vector, err := ins.embedder.Embed(ctx, summary.CombinedText)
	if err != nil {
		return nil, ins.fail(state, StateEmbedded, err)
	}
	state = ins.advance(state, StateEmbedded)

	matches, err := ins.index.Query(ctx, vector, ins.cfg.QueryLimit, ins.cfg.QueryThreshold)
	if err != nil {
		return nil, ins.fail(state, StateMatched, err)
	}
	state = ins.advance(state, StateMatched)

	decision := ins.matcher.Decide(summary, matches)
	ins.advance(state, StateDecided)

	ins.log.WithFields(logrus.Fields{
		"action":     decision.Action,
		"confidence": decision.Confidence,
		"matches":    len(matches),
	}).Info("request routed")
	return &decision, nil
}

// SaveTask runs the creation path: embed the description, then write the
// entry through the store. The store write shares the request's cancellation
// scope with the embedding call that precedes it.
func (ins *Instructor) SaveTask(ctx context.Context, in TaskInput) (*TaskReceipt, error) {
	state := StateReceived

	vector, err := ins.embedder.Embed(ctx, in.Description)
	if err != nil {
		return nil, ins.fail(state, StateEmbedded, err)
	}
	state = ins.advance(state, StateEmbedded)

	id, err := ins.creator.Create(ctx, in.Title, in.Description, vector, in.Metadata)
	if err != nil {
		return nil, ins.fail(state, StateStored, err)
	}
	ins.advance(state, StateStored)

	ins.log.WithField("entry_id", id).Info("entry recorded")
	return &TaskReceipt{
		ID:      id,
		Status:  "created",
		Message: "Your task has been created successfully.",
	}, nil
}

func (ins *Instructor) advance(from, to State) State {
	ins.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("state transition")
	return to
}

func (ins *Instructor) fail(from, entering State, err error) error {
	ins.log.WithFields(logrus.Fields{"from": from, "entering": entering}).WithError(err).Debug("state transition failed")
	return &StageError{Stage: entering, Err: err}
}

package matcher

import (
	"strings"

	"github.com/clemens-chr/tuner/internal/domain"
)

// DefaultAcceptanceThreshold is the confidence a match must strictly exceed
// before the request is redirected to an existing entry.
const DefaultAcceptanceThreshold = 0.8

const (
	redirectMessage  = "We found a matching entry in our marketplace that can help with your task!"
	createNewMessage = "Let's create a new entry with your data to help you better."
)

// Matcher turns similarity matches and extracted features into a routing
// decision. It holds no mutable state; Decide is a deterministic function of
// its inputs.
type Matcher struct {
	scorer    domain.ConfidenceScorer
	threshold float64
}

// New creates a Matcher with the given scorer. A non-positive threshold
// falls back to DefaultAcceptanceThreshold.
func New(scorer domain.ConfidenceScorer, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultAcceptanceThreshold
	}
	return &Matcher{scorer: scorer, threshold: threshold}
}

// Decide redirects to the best match when one exists and the confidence
// strictly exceeds the acceptance threshold; otherwise it routes to new-entry
// creation. A redirect always carries the matched entry id; confidence alone
// is never sufficient without a match.
func (m *Matcher) Decide(summary *domain.FeatureSummary, matches []domain.SimilarityMatch) domain.RoutingDecision {
	confidence := m.scorer.Score(summary, matches)
	if len(matches) > 0 && confidence > m.threshold {
		return domain.RoutingDecision{
			Action:         domain.ActionRedirect,
			Confidence:     confidence,
			MatchedEntryID: matches[0].EntryID,
			Message:        redirectMessage,
		}
	}
	return domain.RoutingDecision{
		Action:     domain.ActionCreateNew,
		Confidence: confidence,
		Message:    createNewMessage,
	}
}

// KeywordScorer is the rule-table ConfidenceScorer: an urgency keyword in the
// request text scores 0.9 regardless of similarity, any similarity match
// without urgency scores 0.8, and neither scores 0. A learned model can
// replace it behind the same interface.
type KeywordScorer struct {
	keywords []string
}

// NewKeywordScorer creates a scorer for the given urgency keywords. An empty
// list falls back to the single keyword "urgent".
func NewKeywordScorer(keywords []string) *KeywordScorer {
	if len(keywords) == 0 {
		keywords = []string{"urgent"}
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &KeywordScorer{keywords: lowered}
}

// Score applies the rule table.
func (s *KeywordScorer) Score(summary *domain.FeatureSummary, matches []domain.SimilarityMatch) float64 {
	if summary != nil {
		text := strings.ToLower(summary.Text.Raw)
		for _, k := range s.keywords {
			if strings.Contains(text, k) {
				return 0.9
			}
		}
	}
	if len(matches) > 0 {
		return 0.8
	}
	return 0.0
}

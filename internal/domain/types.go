package domain

import "time"

// Entry is a persisted marketplace catalog item with its vector embedding.
// An Entry either carries a complete embedding or does not exist; partial
// writes are never visible.
type Entry struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Embedding   []float64      `json:"embedding"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IndexRecord is the unit stored in a similarity index: the entry vector plus
// the payload returned with query results.
type IndexRecord struct {
	EntryID     string
	Vector      []float64
	Title       string
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// SimilarityMatch is a transient query result. It is recomputed per query and
// never persisted.
type SimilarityMatch struct {
	EntryID     string         `json:"entry_id"`
	Similarity  float64        `json:"similarity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// TextSummary holds features extracted from the text modality.
type TextSummary struct {
	Raw       string   `json:"raw"`
	Summary   string   `json:"summary"`
	Entities  []string `json:"entities"`
	Length    int      `json:"length"`
	WordCount int      `json:"word_count"`
}

// ImageSummary holds features extracted from a single image.
type ImageSummary struct {
	Description string   `json:"description"`
	Objects     []string `json:"objects"`
}

// VideoSummary holds features extracted from a video via its key frames.
type VideoSummary struct {
	Summary           string   `json:"summary"`
	FrameDescriptions []string `json:"frame_descriptions"`
	DurationSeconds   float64  `json:"duration_seconds"`
	SizeBytes         int      `json:"size_bytes"`
}

// FeatureSummary is the output of feature extraction over a multimodal
// request. Missing modalities are explicit zero values, never absent fields.
// CombinedText is the single representation fed to the embedder.
type FeatureSummary struct {
	CombinedText string         `json:"combined_text"`
	Text         TextSummary    `json:"text"`
	Images       []ImageSummary `json:"images"`
	Video        *VideoSummary  `json:"video"`
}

// Action directs a request either to an existing marketplace entry or to the
// new-entry creation flow.
type Action string

const (
	ActionRedirect  Action = "redirect"
	ActionCreateNew Action = "create_new"
)

// RoutingDecision is the terminal output of the routing pipeline.
// MatchedEntryID is set if and only if Action is ActionRedirect.
type RoutingDecision struct {
	Action         Action  `json:"action"`
	Confidence     float64 `json:"confidence"`
	MatchedEntryID string  `json:"matched_entry_id,omitempty"`
	Message        string  `json:"message"`
}

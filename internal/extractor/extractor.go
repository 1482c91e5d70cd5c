package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clemens-chr/tuner/internal/domain"
)

// CompletionClient is the remote model surface the extractor depends on.
type CompletionClient interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
	DescribeImage(ctx context.Context, imageBase64 string) (string, error)
}

const (
	maxEntities   = 10
	maxObjectTags = 10
	maxKeyFrames  = 3
)

// Extractor turns raw text, images and video into a FeatureSummary.
// Text features are computed locally; image and video descriptions come from
// the vision model.
type Extractor struct {
	client     CompletionClient
	summarizer *frequencySummarizer
	log        *logrus.Entry
}

// New creates an Extractor backed by the given completion client.
func New(client CompletionClient, log *logrus.Entry) *Extractor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Extractor{
		client:     client,
		summarizer: newFrequencySummarizer(),
		log:        log.WithField("component", "extractor"),
	}
}

// Extract processes every provided modality and builds the combined
// representation used as embedding input. Missing modalities yield explicit
// zero-value fields in the result.
func (e *Extractor) Extract(ctx context.Context, text string, images [][]byte, video []byte) (*domain.FeatureSummary, error) {
	if text == "" && len(images) == 0 && len(video) == 0 {
		return nil, &domain.ExtractionError{Modality: "request", Err: errors.New("no input provided")}
	}

	summary := &domain.FeatureSummary{
		Images: []domain.ImageSummary{},
	}
	var combined []string

	if text != "" {
		ts, err := e.processText(text)
		if err != nil {
			return nil, &domain.ExtractionError{Modality: "text", Err: err}
		}
		summary.Text = ts
		combined = append(combined, ts.Summary)
	}

	for i, img := range images {
		is, err := e.processImage(ctx, img)
		if err != nil {
			return nil, &domain.ExtractionError{Modality: fmt.Sprintf("image[%d]", i), Err: err}
		}
		summary.Images = append(summary.Images, is)
		combined = append(combined, is.Description)
	}

	if len(video) > 0 {
		vs, err := e.processVideo(ctx, video)
		if err != nil {
			return nil, &domain.ExtractionError{Modality: "video", Err: err}
		}
		summary.Video = vs
		combined = append(combined, vs.Summary)
	}

	summary.CombinedText = strings.TrimSpace(strings.Join(combined, "\n"))
	return summary, nil
}

func (e *Extractor) processText(text string) (domain.TextSummary, error) {
	sum, err := e.summarizer.Summarize(text, 3)
	if err != nil {
		return domain.TextSummary{}, err
	}
	return domain.TextSummary{
		Raw:       text,
		Summary:   sum,
		Entities:  extractEntities(text),
		Length:    len(text),
		WordCount: len(strings.Fields(text)),
	}, nil
}

func (e *Extractor) processImage(ctx context.Context, data []byte) (domain.ImageSummary, error) {
	if !isSupportedImage(data) {
		return domain.ImageSummary{}, errors.New("unrecognized image format")
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	description, err := e.client.DescribeImage(ctx, encoded)
	if err != nil {
		return domain.ImageSummary{}, err
	}
	return domain.ImageSummary{
		Description: description,
		Objects:     extractObjects(description),
	}, nil
}

func (e *Extractor) processVideo(ctx context.Context, data []byte) (*domain.VideoSummary, error) {
	frames := scanJPEGFrames(data, maxKeyFrames)
	if len(frames) == 0 {
		return nil, errors.New("no decodable key frames")
	}
	duration := mp4Duration(data)

	descriptions := make([]string, 0, len(frames))
	for _, frame := range frames {
		encoded := base64.StdEncoding.EncodeToString(frame)
		desc, err := e.client.DescribeImage(ctx, encoded)
		if err != nil {
			return nil, err
		}
		descriptions = append(descriptions, desc)
	}

	var prompt strings.Builder
	for i, desc := range descriptions {
		fmt.Fprintf(&prompt, "Frame %d: %s\n", i+1, desc)
	}
	rollup, err := e.client.ChatCompletion(ctx,
		"Create a concise summary of this video based on the descriptions of key frames.",
		prompt.String())
	if err != nil {
		return nil, err
	}

	return &domain.VideoSummary{
		Summary:           rollup,
		FrameDescriptions: descriptions,
		DurationSeconds:   duration,
		SizeBytes:         len(data),
	}, nil
}

// extractEntities returns up to maxEntities candidate entities, approximated
// as the longer words of the text.
func extractEntities(text string) []string {
	var entities []string
	for _, word := range strings.Fields(text) {
		if len(word) > 5 {
			entities = append(entities, word)
		}
		if len(entities) == maxEntities {
			break
		}
	}
	return entities
}

// extractObjects derives object tags from a model description: the longer
// unique words, capped at maxObjectTags.
func extractObjects(description string) []string {
	seen := make(map[string]struct{})
	var objects []string
	for _, word := range strings.Fields(description) {
		word = strings.Trim(word, ",.!?():;")
		if len(word) <= 4 {
			continue
		}
		key := strings.ToLower(word)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		objects = append(objects, word)
		if len(objects) == maxObjectTags {
			break
		}
	}
	return objects
}

var imageMagics = [][]byte{
	{0xFF, 0xD8, 0xFF},    // JPEG
	{0x89, 'P', 'N', 'G'}, // PNG
	{'G', 'I', 'F', '8'},  // GIF
}

func isSupportedImage(data []byte) bool {
	for _, magic := range imageMagics {
		if bytes.HasPrefix(data, magic) {
			return true
		}
	}
	return false
}

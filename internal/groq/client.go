package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/clemens-chr/tuner/internal/domain"
)

const (
	defaultBaseURL    = "https://api.groq.com/openai/v1"
	defaultEmbedModel = "embedding-001"
	defaultChatModel  = "mixtral-8x7b-32768"
	defaultVision     = "llava-13b-v1.6"
	defaultDimensions = 1536
)

// Client talks to the Groq API: embeddings plus chat completions for text,
// image and frame analysis.
type Client struct {
	baseURL     string
	apiKey      string
	embedModel  string
	chatModel   string
	visionModel string
	dimensions  int
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	log         *logrus.Entry
}

// Config configures the Groq API client.
type Config struct {
	BaseURL     string
	APIKey      string
	EmbedModel  string
	ChatModel   string
	VisionModel string
	Dimensions  int
	Timeout     time.Duration
	// RequestsPerSecond caps outgoing calls. Zero disables throttling.
	RequestsPerSecond float64
}

// NewClient creates a Groq API client from the given configuration.
func NewClient(cfg Config, log *logrus.Entry) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("groq: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaultEmbedModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = defaultVision
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = defaultDimensions
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		embedModel:  cfg.EmbedModel,
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
		dimensions:  cfg.Dimensions,
		client:      &http.Client{Timeout: t},
		limiter:     limiter,
		maxRetries:  5,
		log:         log.WithField("component", "groq"),
	}, nil
}

// Dimensions returns the embedding dimensionality requested from the API.
func (c *Client) Dimensions() int { return c.dimensions }

// Embedding returns the embedding vector for text.
func (c *Client) Embedding(ctx context.Context, text string) ([]float64, error) {
	body := map[string]any{
		"model":      c.embedModel,
		"input":      text,
		"dimensions": c.dimensions,
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, &domain.ServiceError{StatusCode: http.StatusOK, Message: "no embedding returned"}
	}
	return out.Data[0].Embedding, nil
}

// ChatCompletion sends a system+user prompt pair and returns the assistant
// message content.
func (c *Client) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	body := map[string]any{
		"model": c.chatModel,
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": 0.1,
	}
	return c.completion(ctx, body)
}

// DescribeImage asks the vision model to describe a base64-encoded image.
func (c *Client) DescribeImage(ctx context.Context, imageBase64 string) (string, error) {
	body := map[string]any{
		"model": c.visionModel,
		"messages": []map[string]any{
			{"role": "system", "content": "Describe this image in detail. Identify objects, scenes, and any text visible."},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": "What's in this image?"},
				{"type": "image_url", "image_url": map[string]any{
					"url": "data:image/jpeg;base64," + imageBase64,
				}},
			}},
		},
		"temperature": 0.1,
	}
	return c.completion(ctx, body)
}

func (c *Client) completion(ctx context.Context, body map[string]any) (string, error) {
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", &domain.ServiceError{StatusCode: http.StatusOK, Message: "no completion returned"}
	}
	return out.Choices[0].Message.Content, nil
}

// postJSON issues a POST with bounded retries on 429 and 5xx responses,
// honouring Retry-After when present.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := c.baseURL + path
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return translateTransport(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if isTimeout(err) || attempt >= c.maxRetries {
				return translateTransport(err)
			}
			sleepCtx(ctx, retryDelay(attempt))
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			msg := readErrorBody(resp.Body)
			_ = resp.Body.Close()
			if attempt >= c.maxRetries {
				return &domain.ServiceError{StatusCode: resp.StatusCode, Message: msg}
			}
			c.log.WithFields(logrus.Fields{"status": resp.StatusCode, "attempt": attempt}).Warn("groq request retried")
			sleepCtx(ctx, delay)
			continue
		}

		if resp.StatusCode >= 300 {
			msg := readErrorBody(resp.Body)
			_ = resp.Body.Close()
			return &domain.ServiceError{StatusCode: resp.StatusCode, Message: msg}
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return translateTransport(err)
		}
		return json.Unmarshal(payload, out)
	}
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(bytes.TrimSpace(data))
}

func translateTransport(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingTimeout, err)
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	CORSOrigins       []string `yaml:"cors_origins"`
	MaxUploadMB       int      `yaml:"max_upload_mb"`
	AllowedImageTypes []string `yaml:"allowed_image_types"`
	AllowedVideoTypes []string `yaml:"allowed_video_types"`
}

// DatabaseConfig locates the sqlite entry database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GroqConfig configures the Groq API client. The key itself is read from the
// environment variable named by APIKeyEnv, never from the file.
type GroqConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	EmbedModel        string  `yaml:"embed_model"`
	ChatModel         string  `yaml:"chat_model"`
	VisionModel       string  `yaml:"vision_model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// QdrantConfig contains connection details for a Qdrant similarity index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig selects and tunes the similarity index.
type IndexConfig struct {
	Backend   string        `yaml:"backend"`
	Dimension int           `yaml:"dimension"`
	Limit     int           `yaml:"limit"`
	Threshold float64       `yaml:"threshold"`
	Qdrant    *QdrantConfig `yaml:"qdrant,omitempty"`
}

// MatcherConfig tunes the routing decision policy.
type MatcherConfig struct {
	AcceptanceThreshold float64  `yaml:"acceptance_threshold"`
	UrgencyKeywords     []string `yaml:"urgency_keywords"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LogLevel string         `yaml:"log_level"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Groq     GroqConfig     `yaml:"groq"`
	Index    IndexConfig    `yaml:"index"`
	Matcher  MatcherConfig  `yaml:"matcher"`
}

// Load reads a config from the specified path. If the file does not exist,
// defaults are returned.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if len(cfg.Server.AllowedImageTypes) == 0 {
		cfg.Server.AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif"}
	}
	if len(cfg.Server.AllowedVideoTypes) == 0 {
		cfg.Server.AllowedVideoTypes = []string{"video/mp4", "video/mpeg", "video/quicktime"}
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/instructor.db"
	}
	if cfg.Groq.BaseURL == "" {
		cfg.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Groq.APIKeyEnv == "" {
		cfg.Groq.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.Groq.EmbedModel == "" {
		cfg.Groq.EmbedModel = "embedding-001"
	}
	if cfg.Groq.ChatModel == "" {
		cfg.Groq.ChatModel = "mixtral-8x7b-32768"
	}
	if cfg.Groq.VisionModel == "" {
		cfg.Groq.VisionModel = "llava-13b-v1.6"
	}
	if cfg.Groq.TimeoutSecs == 0 {
		cfg.Groq.TimeoutSecs = 30
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "memory"
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = 1536
	}
	if cfg.Index.Limit == 0 {
		cfg.Index.Limit = 5
	}
	if cfg.Index.Threshold == 0 {
		cfg.Index.Threshold = 0.7
	}
	if cfg.Index.Qdrant != nil && cfg.Index.Qdrant.TimeoutSecs == 0 {
		cfg.Index.Qdrant.TimeoutSecs = 15
	}
	if cfg.Matcher.AcceptanceThreshold == 0 {
		cfg.Matcher.AcceptanceThreshold = 0.8
	}
	if len(cfg.Matcher.UrgencyKeywords) == 0 {
		cfg.Matcher.UrgencyKeywords = []string{"urgent"}
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/clemens-chr/tuner/internal/config"
	"github.com/clemens-chr/tuner/internal/embedding"
	"github.com/clemens-chr/tuner/internal/extractor"
	"github.com/clemens-chr/tuner/internal/groq"
	"github.com/clemens-chr/tuner/internal/instructor"
	"github.com/clemens-chr/tuner/internal/matcher"
	"github.com/clemens-chr/tuner/internal/server"
	"github.com/clemens-chr/tuner/internal/simindex"
	"github.com/clemens-chr/tuner/internal/simindex/qdrant"
	"github.com/clemens-chr/tuner/internal/store"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	log := logrus.NewEntry(logrus.StandardLogger())

	apiKey := os.Getenv(cfg.Groq.APIKeyEnv)
	if apiKey == "" {
		log.Fatalf("missing API key in env %s", cfg.Groq.APIKeyEnv)
	}
	client, err := groq.NewClient(groq.Config{
		BaseURL:           cfg.Groq.BaseURL,
		APIKey:            apiKey,
		EmbedModel:        cfg.Groq.EmbedModel,
		ChatModel:         cfg.Groq.ChatModel,
		VisionModel:       cfg.Groq.VisionModel,
		Dimensions:        cfg.Index.Dimension,
		Timeout:           time.Duration(cfg.Groq.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.Groq.RequestsPerSecond,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("groq client init failed")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.WithError(err).Fatal("failed to create data directory")
	}
	st, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open entry store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Error("closing entry store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := simindex.Options{
		Backend:   cfg.Index.Backend,
		Dimension: cfg.Index.Dimension,
		Seed:      st.IndexRecords,
		Log:       log,
	}
	if cfg.Index.Qdrant != nil {
		opts.Qdrant = qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Index.Qdrant.APIKeyEnv),
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		}
	}
	idx, err := simindex.Open(ctx, opts)
	if err != nil {
		log.WithError(err).Fatal("failed to open similarity index")
	}
	st.UseIndex(idx)

	m := matcher.New(matcher.NewKeywordScorer(cfg.Matcher.UrgencyKeywords), cfg.Matcher.AcceptanceThreshold)
	ins := instructor.New(
		extractor.New(client, log),
		embedding.NewRemote(client, cfg.Index.Dimension),
		idx,
		st,
		m,
		instructor.Config{QueryLimit: cfg.Index.Limit, QueryThreshold: cfg.Index.Threshold},
		log,
	)

	srv := server.New(ins, st, server.Config{
		Addr:              cfg.Server.Addr,
		CORSOrigins:       cfg.Server.CORSOrigins,
		MaxUploadBytes:    int64(cfg.Server.MaxUploadMB) << 20,
		AllowedImageTypes: cfg.Server.AllowedImageTypes,
		AllowedVideoTypes: cfg.Server.AllowedVideoTypes,
	}, log)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server exited")
	}
	log.Info("shutdown complete")
}

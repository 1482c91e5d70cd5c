package simindex

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/clemens-chr/tuner/internal/domain"
	"github.com/clemens-chr/tuner/internal/simindex/memory"
	"github.com/clemens-chr/tuner/internal/simindex/qdrant"
)

// SeedFunc supplies existing index records for rehydrating an in-process
// backend at startup.
type SeedFunc func(ctx context.Context) ([]domain.IndexRecord, error)

// Options selects and configures the similarity index backend.
type Options struct {
	// Backend is "memory" or "qdrant". Empty selects memory.
	Backend   string
	Dimension int
	Qdrant    qdrant.Config
	Seed      SeedFunc
	Log       *logrus.Entry
}

// Open builds the configured similarity index. If the qdrant backend is
// selected but cannot be reached, Open degrades to an in-process linear scan
// over seeded records; results are identical, only query cost differs.
func Open(ctx context.Context, opts Options) (domain.SimilarityIndex, error) {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "simindex")

	if opts.Backend == "qdrant" {
		idx := qdrant.New(opts.Qdrant, opts.Dimension)
		err := idx.Init(ctx)
		if err == nil {
			return idx, nil
		}
		log.WithError(err).Warn("vector index backend unavailable, similarity queries will use a full linear scan")
	}

	mem := memory.New(opts.Dimension)
	if opts.Seed != nil {
		records, err := opts.Seed(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if err := mem.Upsert(ctx, rec); err != nil {
				return nil, err
			}
		}
		log.WithField("records", len(records)).Info("similarity index rehydrated")
	}
	return mem, nil
}

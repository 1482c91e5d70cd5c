package store

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clemens-chr/tuner/internal/domain"
)

const lockStripes = 64

type entryModel struct {
	ID          string       `gorm:"primaryKey;type:varchar(64)"`
	Title       string       `gorm:"type:varchar(255);not null"`
	Description string       `gorm:"type:text"`
	Embedding   vectorColumn `gorm:"type:text;not null"`
	Metadata    jsonColumn   `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (entryModel) TableName() string { return "entries" }

// Store persists marketplace entries in sqlite and keeps the similarity
// index in step with every write.
type Store struct {
	db    *gorm.DB
	index domain.SimilarityIndex
	locks [lockStripes]sync.Mutex
	log   *logrus.Entry
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the entries table. The similarity index is attached separately with
// UseIndex so it can be rehydrated from this store first.
func Open(path string, log *logrus.Entry) (*Store, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&entryModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db, log: log.WithField("component", "store")}, nil
}

// UseIndex attaches the similarity index. Must be called before any mutation.
func (s *Store) UseIndex(index domain.SimilarityIndex) { s.index = index }

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create persists a new entry and upserts its vector into the similarity
// index as one logical operation: if the index write fails, the row is rolled
// back and no entry is left readable.
//
// Concurrent creates with near-identical content are not deduplicated; both
// may succeed and produce distinct entries. Writes are deliberately not
// serialized globally.
func (s *Store) Create(ctx context.Context, title, description string, embedding []float64, metadata map[string]any) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	model := entryModel{
		ID:          id,
		Title:       title,
		Description: description,
		Embedding:   vectorColumn(embedding),
		Metadata:    jsonColumn(metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if err := s.index.Upsert(ctx, indexRecord(model)); err != nil {
			return &domain.IndexWriteError{Op: "create", Err: err}
		}
		return nil
	})
	if err != nil {
		// Compensate in case the index accepted the record before the row
		// write was rolled back.
		_ = s.index.Remove(context.WithoutCancel(ctx), id)
		return "", err
	}
	return id, nil
}

// Get returns the entry with the given id, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*domain.Entry, error) {
	var model entryModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	entry := toEntry(model)
	return &entry, nil
}

// updatable names the columns a partial update may touch. id and created_at
// are immutable and silently dropped, matching the write whitelist.
var updatable = map[string]struct{}{
	"title":       {},
	"description": {},
	"embedding":   {},
	"metadata":    {},
}

// Update applies a partial field update. It reports false without writing
// when the update set is empty after whitelisting or the entry does not
// exist. A changed embedding is re-upserted into the similarity index; if the
// update fails, the previous vector is restored there.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) (bool, error) {
	columns := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := updatable[k]; !ok {
			continue
		}
		switch k {
		case "embedding":
			vec, err := toVector(v)
			if err != nil {
				return false, err
			}
			columns[k] = vectorColumn(vec)
		case "metadata":
			meta, ok := v.(map[string]any)
			if !ok {
				return false, errors.New("metadata must be an object")
			}
			columns[k] = jsonColumn(meta)
		default:
			columns[k] = v
		}
	}
	if len(columns) == 0 {
		return false, nil
	}
	columns["updated_at"] = time.Now().UTC()

	unlock := s.lock(id)
	defer unlock()

	_, embeddingChanged := columns["embedding"]
	var prior entryModel
	if embeddingChanged {
		err := s.db.WithContext(ctx).First(&prior, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}

	updated := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entryModel{}).Where("id = ?", id).Updates(columns)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		updated = true
		if !embeddingChanged {
			return nil
		}
		var model entryModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		if err := s.index.Upsert(ctx, indexRecord(model)); err != nil {
			return &domain.IndexWriteError{Op: "update", Err: err}
		}
		return nil
	})
	if err != nil {
		if embeddingChanged {
			// Compensate in case the index accepted the new vector before the
			// row update was rolled back.
			_ = s.index.Upsert(context.WithoutCancel(ctx), indexRecord(prior))
		}
		return false, err
	}
	return updated, nil
}

// Delete removes the entry from both the store and the similarity index.
// Absence is reported as false, never as an error.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	unlock := s.lock(id)
	defer unlock()

	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&entryModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		if err := s.index.Remove(ctx, id); err != nil {
			return &domain.IndexWriteError{Op: "delete", Err: err}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// IndexRecords streams every stored entry as an index record, for
// rehydrating an in-process similarity index at startup.
func (s *Store) IndexRecords(ctx context.Context) ([]domain.IndexRecord, error) {
	var models []entryModel
	if err := s.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]domain.IndexRecord, 0, len(models))
	for _, m := range models {
		records = append(records, indexRecord(m))
	}
	return records, nil
}

// lock serializes mutations per entry id. Cross-entry operations proceed
// concurrently.
func (s *Store) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	m := &s.locks[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

func indexRecord(m entryModel) domain.IndexRecord {
	return domain.IndexRecord{
		EntryID:     m.ID,
		Vector:      []float64(m.Embedding),
		Title:       m.Title,
		Description: m.Description,
		Metadata:    map[string]any(m.Metadata),
		CreatedAt:   m.CreatedAt,
	}
}

func toEntry(m entryModel) domain.Entry {
	return domain.Entry{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Embedding:   []float64(m.Embedding),
		Metadata:    map[string]any(m.Metadata),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toVector(v any) ([]float64, error) {
	switch vec := v.(type) {
	case []float64:
		return vec, nil
	case []any:
		out := make([]float64, len(vec))
		for i, elem := range vec {
			f, ok := elem.(float64)
			if !ok {
				return nil, errors.New("embedding must be an array of numbers")
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, errors.New("embedding must be an array of numbers")
	}
}

package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound signals absence of an entry. It is a normal outcome, not a
// dependency failure, and is checked with errors.Is.
var ErrNotFound = errors.New("entry not found")

// ErrEmbeddingTimeout signals that the embedding service did not answer
// within the configured deadline.
var ErrEmbeddingTimeout = errors.New("embedding service timed out")

// ExtractionError reports unreadable or corrupt media in one modality.
type ExtractionError struct {
	Modality string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Modality, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ServiceError reports a non-success response from a remote AI service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("remote service error (status %d): %s", e.StatusCode, e.Message)
}

// DimensionMismatchError reports a vector whose length differs from the
// system-wide embedding dimensionality. Vectors are never truncated or padded.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// IndexWriteError reports a similarity index failure during an entry store
// mutation. The store never reports success once this occurs.
type IndexWriteError struct {
	Op  string
	Err error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write failed during %s: %v", e.Op, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

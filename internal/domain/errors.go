package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ingestion/retrieval pipeline.
//
// Infrastructure errors (ErrProviderUnavailable, ErrStoreUnavailable) abort the
// current operation and are safe to retry later. Schema errors
// (ErrDimensionMismatch, ErrInvalidPoint, ErrUnknownCollection) require
// operator intervention and are never coerced. Input errors (ErrEmptyInput,
// ErrEmptyQuery) are rejected before any network call.
var (
	// ErrProviderUnavailable is returned when the embedding or generation
	// endpoint cannot be reached.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrStoreUnavailable is returned when the vector store cannot be reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")
	// ErrDimensionMismatch is returned when a vector or collection does not
	// match the configured embedding dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidPoint is returned when a point cannot be upserted as given.
	ErrInvalidPoint = errors.New("invalid point")
	// ErrUnknownCollection is returned when an operation targets a collection
	// that was never created.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrEmptyInput is returned when text submitted for embedding is empty or
	// whitespace-only.
	ErrEmptyInput = errors.New("empty input")
	// ErrEmptyQuery is returned when a search query is empty or whitespace-only.
	ErrEmptyQuery = errors.New("empty query")
)

// RecordError wraps a per-record failure with the record identity so ingestion
// reports can name the records that were skipped.
type RecordError struct {
	RecordID string
	Wrapped  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %s", e.RecordID, e.Wrapped)
}

func (e *RecordError) Unwrap() error { return e.Wrapped }

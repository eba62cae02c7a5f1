package models

import "errors"

var (
	// ErrNotFound covers missing or foreign-owned stores, documents and conversations.
	ErrNotFound = errors.New("not found")
	// ErrRetrievalEmpty means no passage was available to answer from.
	ErrRetrievalEmpty = errors.New("no relevant passages found")
	// ErrGeneration wraps completion service failures.
	ErrGeneration = errors.New("generation failed")
	// ErrCanceled is returned when a cooperative cancellation was observed.
	ErrCanceled = errors.New("canceled")
)

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a submission carries no usable URLs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a job id is unknown.
	ErrNotFound = errors.New("job not found")

	// ErrUnsupportedSite is returned when no site adapter matches a product URL.
	ErrUnsupportedSite = errors.New("unsupported website")

	// ErrJobTerminal is returned when mutating a completed or failed job.
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrQueueFull is returned when the dispatcher cannot accept more work.
	ErrQueueFull = errors.New("job queue is full")
)

// ExtractionError wraps a failure to turn a URL into structured data.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// GenerationError wraps a failure of the completion service.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate content: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

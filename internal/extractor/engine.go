// Package extractor implements the dual-engine transcript extractor (C8):
// a primary/fallback engine ladder with proxy rotation and bounded retries.
package extractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/transcriptapi/core/internal/domain/model"
)

// Engine fetches a transcript for a fingerprint, optionally routed through
// a proxy. Implementations talk to a specific upstream extraction backend.
type Engine interface {
	// Name identifies the engine for metrics and logging.
	Name() string

	// Fetch retrieves the title and ordered segments for fp. proxy is nil
	// for a direct attempt. Errors should be a *Error so the ladder can
	// classify retryability; an unclassified error is treated as internal.
	Fetch(ctx context.Context, fp model.Fingerprint, proxy *Proxy) (title string, segments []model.Segment, err error)
}

// Error carries the error taxonomy kind alongside the underlying cause.
type Error struct {
	Kind model.ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with the given classification.
func NewError(kind model.ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// classify extracts the ErrorKind from err, defaulting to ErrorKindInternal
// for errors the engine did not classify.
func classify(err error) model.ErrorKind {
	if err == nil {
		return ""
	}
	var extractionErr *Error
	if errors.As(err, &extractionErr) {
		return extractionErr.Kind
	}
	return model.ErrorKindInternal
}

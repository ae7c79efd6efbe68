package repository

import (
	"context"
	"io"
)

// RawArchive defines the interface for archiving the raw, pre-clean
// extraction payload for debugging and replay. Implementations should be
// provided by the infrastructure layer (e.g. MinIO/S3). Archiving is
// opt-in (see raw_archive_enabled) and never on the hot read path.
type RawArchive interface {
	// Put stores the raw payload captured for a job under a stable key.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get retrieves a previously archived raw payload.
	// Caller is responsible for closing the returned ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an archived payload.
	Delete(ctx context.Context, key string) error
}

// Package repository defines the ports the usecase layer depends on;
// implementations live in internal/infrastructure.
package repository

import "errors"

var (
	// ErrArtifactNotFound is returned when no artifact exists for a fingerprint.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrJobNotFound is returned when no job exists for the given id.
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateArtifact is returned when an upsert collides unexpectedly.
	ErrDuplicateArtifact = errors.New("artifact already exists")

	// ErrObjectNotFound is returned when a raw-payload blob cannot be found.
	ErrObjectNotFound = errors.New("object not found")

	// ErrQueueEmpty is returned by Dequeue when its blocking wait times out with nothing ready.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrLockNotHeld is returned when releasing a single-flight lock this
	// caller does not hold (already expired or stolen by a new leader).
	ErrLockNotHeld = errors.New("lock not held")
)

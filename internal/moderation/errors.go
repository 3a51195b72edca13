package moderation

import "errors"

// Sentinel errors for the moderation core. Callers branch on these with
// errors.Is; everything else coming out of the service is a transient
// infrastructure failure wrapped in ErrUnavailable.
var (
	// ErrInvalidOperation indicates a malformed or self-referential request
	// (blocking yourself, reporting your own content, a bad reason code).
	// Not retryable; the input must change.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotFound indicates the referenced report or relationship does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStateTransition indicates a workflow rule violation, such as
	// resolving a report that was never opened for review.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrConcurrentModification indicates a lost optimistic-concurrency race:
	// another moderator transitioned the report first. Retryable after a
	// fresh read.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrUnavailable indicates a transient storage failure that persisted
	// through internal retries. Retryable with backoff.
	ErrUnavailable = errors.New("storage unavailable")
)

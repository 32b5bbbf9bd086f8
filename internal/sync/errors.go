package sync

import "errors"

// ErrValidation marks a synchronously rejected input.  Validation
// failures are never retried and never enter the outbox.
var ErrValidation = errors.New("validation failed")

// ErrManualConflict is returned when a divergence is detected while
// the manual resolution strategy is configured: the mutation is held
// until an operator picks a side.
var ErrManualConflict = errors.New("conflict requires manual resolution")

// ErrRemoteUnavailable marks a decision that needs the authoritative
// datastore and cannot be captured for later replay.  Approvals and
// rejections race through a guarded status transition; deciding them
// blind against a stale snapshot could double-book, so the caller
// retries once the remote is reachable again.
var ErrRemoteUnavailable = errors.New("remote datastore unavailable")

// Package repository implements the adapter to the remote MySQL
// datastore: CRUD and filtered queries for reservations, requests,
// special dates and promotion intents.  This file defines sentinel
// error values reused across repositories so higher layers (the sync
// engine and HTTP handlers) can distinguish failure scenarios with
// errors.Is instead of string matching.
package repository

import "errors"

// ErrNotFound is returned when the requested record does not exist.
// Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they may not touch.  Handlers translate this into an HTTP
// 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicateEntry is returned when the remote datastore rejects an
// insert because of a unique constraint.  The deduplicator treats it
// as a lost race, re-queries for the winning record and never
// surfaces it to the caller.
var ErrDuplicateEntry = errors.New("duplicate entry")

// ErrAlreadyApproved is returned when approving a request that is no
// longer pending because it was already approved.  Non-retryable.
var ErrAlreadyApproved = errors.New("request already approved")

// ErrAlreadyRejected is returned when approving or rejecting a
// request that was already rejected.  Non-retryable.
var ErrAlreadyRejected = errors.New("request already rejected")

// ErrPromotionCleanup is returned when a promotion inserted its
// reservation but failed to delete the source request.  The
// reservation exists; an operator (or the intent sweep) must finish
// the cleanup.  Surfaced distinctly so it is never mistaken for a
// failed approval.
var ErrPromotionCleanup = errors.New("reservation created but request cleanup failed")

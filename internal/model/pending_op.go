package model

import (
	"encoding/json"
	"time"
)

// MutationKind is the kind of remote mutation captured in the offline
// queue.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// PendingOperation is a mutation recorded while the remote datastore
// was unreachable.  It is persisted in the local outbox until the
// drain loop applies it remotely; it is never silently dropped.
//
// Attempts and NextAttemptAt back the drain's exponential backoff:
// an operation is only retried once NextAttemptAt has passed.
type PendingOperation struct {
	ID            string          `json:"id"`
	Kind          MutationKind    `json:"kind"`
	Collection    Collection      `json:"collection"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
}

// Package feed carries changes of the remote collections between
// client instances over the message broker.  Every mutation a client
// applies to the remote datastore is published as a Notification;
// every client (including the author) consumes the stream and feeds
// it into its synchronization engine.
package feed

import (
	"encoding/json"
	"time"
)

// Notification is the wire form of a remote change event.  Old and
// New hold the affected record encoded as JSON; which of the two is
// present depends on Kind (insert: New, delete: Old, update: both).
type Notification struct {
	Collection string          `json:"collection"`
	Kind       string          `json:"kind"`
	Old        json.RawMessage `json:"old,omitempty"`
	New        json.RawMessage `json:"new,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	EmittedAt  time.Time       `json:"emitted_at"`
}

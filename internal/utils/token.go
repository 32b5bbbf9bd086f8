package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewTrackingToken returns a human-readable token handed to the
// submitter of a reservation request, e.g. "REQ-20260828-142501-9f3a".
// The time-derived prefix makes tokens easy to read back over the
// phone and roughly sortable; the random suffix keeps two requests
// submitted in the same second distinct.
func NewTrackingToken(now time.Time) (string, error) {
	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("REQ-%s-%s", now.UTC().Format("20060102-150405"), hex.EncodeToString(suffix)), nil
}

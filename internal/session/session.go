// Package session defines the value type identifying a client
// session (one browser tab, device or server instance mutating the
// shared collections).  Session ids are derived with a keyed hash so
// they are stable for a given device and key without leaking the
// underlying device information.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// ID is an opaque session identifier.  It is stamped on every
// reservation and change event so a client can recognize its own
// writes coming back through the change feed.
type ID string

// String returns the id as a plain string.
func (id ID) String() string { return string(id) }

// idLen is the number of hex characters kept from the HMAC digest.
// 16 bytes of digest is plenty for uniqueness across sessions.
const idLen = 32

// Derive computes a stable session id from a device fingerprint using
// HMAC-SHA256 with the given key.  The same (key, fingerprint) pair
// always yields the same id.
func Derive(key []byte, fingerprint string) ID {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(fingerprint))
	return ID(hex.EncodeToString(mac.Sum(nil))[:idLen])
}

// New returns a random session id for callers without a stable
// fingerprint.  Errors from the system RNG are not recoverable here,
// so New panics if no entropy is available.
func New() ID {
	buf := make([]byte, idLen/2)
	if _, err := rand.Read(buf); err != nil {
		panic("session: rng unavailable: " + err.Error())
	}
	return ID(hex.EncodeToString(buf))
}

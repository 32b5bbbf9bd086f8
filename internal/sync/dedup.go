package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// Deduplicator screens new request submissions against recent
// submissions with the same identity.  Matching runs in two stages:
// a broad candidate query over a trailing window, then an exact
// comparison over a tighter window.  An exact match within the tight
// window is rejected as a duplicate; a looser candidate match is
// surfaced to the caller but does not block the submission.
type Deduplicator struct {
	candidateWindow time.Duration
	exactWindow     time.Duration
}

// NewDeduplicator builds a deduplicator with the given windows.
func NewDeduplicator(candidateWindow, exactWindow time.Duration) *Deduplicator {
	return &Deduplicator{candidateWindow: candidateWindow, exactWindow: exactWindow}
}

// Probe builds the remote candidate query for a submission: same
// email or name, same date and partition, created within the
// candidate window.
func (d *Deduplicator) Probe(req model.Request, now time.Time) model.DuplicateProbe {
	return model.DuplicateProbe{
		Name:      normalizeIdentity(req.Requester.Name),
		Email:     normalizeIdentity(req.Requester.Email),
		Date:      req.Date,
		Partition: req.Partition,
		Since:     now.Add(-d.candidateWindow),
	}
}

// Verdict classifies a submission against its candidates.
type Verdict int

const (
	// VerdictClean means no candidate matched; proceed.
	VerdictClean Verdict = iota
	// VerdictSimilar means a recent near-match exists; proceed but
	// report it.
	VerdictSimilar
	// VerdictDuplicate means an exact duplicate exists inside the
	// exact window; reject the submission.
	VerdictDuplicate
)

// Judge compares a submission against the candidates the remote
// returned for its probe and picks the strictest applicable verdict.
func (d *Deduplicator) Judge(req model.Request, candidates []model.Request, now time.Time) (Verdict, *model.Request) {
	exactSince := now.Add(-d.exactWindow)
	var similar *model.Request
	for i := range candidates {
		c := candidates[i]
		if c.ID == req.ID {
			continue
		}
		if d.exactMatch(req, c) && !c.CreatedAt.Before(exactSince) {
			dup := c.Clone()
			return VerdictDuplicate, &dup
		}
		if similar == nil {
			s := c.Clone()
			similar = &s
		}
	}
	if similar != nil {
		return VerdictSimilar, similar
	}
	return VerdictClean, nil
}

// exactMatch reports whether two requests describe the same booking:
// same allocation kind and category, and for slot allocations at
// least one shared slot.  Identity, date and partition already
// matched by the candidate query.
func (d *Deduplicator) exactMatch(a, b model.Request) bool {
	if a.Kind != b.Kind {
		return false
	}
	if !strings.EqualFold(a.Category, b.Category) {
		return false
	}
	return model.SlotsOverlap(a.Kind, a.Slots, b.Kind, b.Slots)
}

// DedupeKey derives a stable key for a submission so the remote can
// enforce uniqueness on concurrent identical creates.  The key hashes
// identity, date, partition, kind and category together with the
// exact-window time bucket, so retries inside one window collide and
// a genuine resubmission in the next window does not.
func (d *Deduplicator) DedupeKey(req model.Request, now time.Time) string {
	bucket := now.Unix() / int64(d.exactWindow.Seconds())
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%d",
		normalizeIdentity(req.Requester.Email),
		normalizeIdentity(req.Requester.Name),
		req.Date.UTC().Format("2006-01-02"),
		req.Partition,
		req.Kind,
		strings.ToLower(req.Category),
		bucket,
	)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func normalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

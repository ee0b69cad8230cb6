package memory

import (
	"context"
	"sync"
	"time"

	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/attribution/core/ports"
)

// TouchIndex remembers recent touches per subject. Retention bounds
// memory to the attribution lookback.
type TouchIndex struct {
	mu        sync.RWMutex
	bySubject map[string][]ports.Touch
	retention time.Duration
}

func NewTouchIndex(retention time.Duration) *TouchIndex {
	return &TouchIndex{
		bySubject: map[string][]ports.Touch{},
		retention: retention,
	}
}

var _ ports.TouchIndexPort = (*TouchIndex)(nil)

func (x *TouchIndex) Record(ctx context.Context, t ports.Touch) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	touches := append(x.bySubject[t.Subject], t)

	// prune anything that fell out of the lookback relative to the newest touch
	newest := touches[0].At
	for _, tc := range touches {
		if tc.At.After(newest) {
			newest = tc.At
		}
	}
	cutoff := newest.Add(-x.retention)
	kept := touches[:0]
	for _, tc := range touches {
		if !tc.At.Before(cutoff) {
			kept = append(kept, tc)
		}
	}
	x.bySubject[t.Subject] = kept
	return nil
}

func (x *TouchIndex) LastTouch(ctx context.Context, subject string, since time.Time) (ports.Touch, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var best ports.Touch
	found := false
	for _, t := range x.bySubject[subject] {
		if t.At.Before(since) {
			continue
		}
		if !found || t.At.After(best.At) {
			best = t
			found = true
		}
	}
	return best, found, nil
}

func (x *TouchIndex) FirstTouchFor(ctx context.Context, subject, campaignID string, method domain.Method, since time.Time) (ports.Touch, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var best ports.Touch
	found := false
	for _, t := range x.bySubject[subject] {
		if t.CampaignID != campaignID || t.Method != method || t.At.Before(since) {
			continue
		}
		if !found || t.At.Before(best.At) {
			best = t
			found = true
		}
	}
	return best, found, nil
}

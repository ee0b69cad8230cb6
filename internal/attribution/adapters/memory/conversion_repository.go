package memory

import (
	"context"
	"sync"
	"time"

	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/attribution/core/ports"
)

// ConversionRepository keeps dedup state in process memory. The pipeline
// shards by identity key, so a record is only ever touched by one
// worker; the mutex covers cross-shard operations like Purge.
type ConversionRepository struct {
	mu      sync.Mutex
	records map[string]*domain.ConversionRecord
	seen    map[string]time.Time
	now     func() time.Time
}

func NewConversionRepository() *ConversionRepository {
	return &ConversionRepository{
		records: map[string]*domain.ConversionRecord{},
		seen:    map[string]time.Time{},
		now:     time.Now,
	}
}

var _ ports.ConversionRepositoryPort = (*ConversionRepository)(nil)

func (r *ConversionRepository) MarkEventSeen(ctx context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[eventID]; ok {
		return false, nil
	}
	r.seen[eventID] = r.now()
	return true, nil
}

func (r *ConversionRepository) Get(ctx context.Context, identityKey string) (*domain.ConversionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[identityKey], nil
}

func (r *ConversionRepository) Put(ctx context.Context, rec *domain.ConversionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Identity.Key()] = rec
	return nil
}

func (r *ConversionRepository) DueForFreeze(ctx context.Context, now time.Time, window time.Duration) ([]*domain.ConversionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*domain.ConversionRecord
	for _, rec := range r.records {
		if !rec.Frozen() && now.Sub(rec.FirstSeen) >= window {
			due = append(due, rec)
		}
	}
	return due, nil
}

func (r *ConversionRepository) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for key, rec := range r.records {
		if rec.Frozen() && rec.FrozenAt.Before(cutoff) {
			delete(r.records, key)
			purged++
		}
	}
	for id, seenAt := range r.seen {
		if seenAt.Before(cutoff) {
			delete(r.seen, id)
		}
	}
	return purged, nil
}

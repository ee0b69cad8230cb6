package memory

import (
	"context"
	"sync"

	"attribution-engine/internal/reporting/core/domain"
	"attribution-engine/internal/reporting/core/ports"
)

// DeadLetterStore collects parked deltas in memory.
type DeadLetterStore struct {
	mu      sync.Mutex
	entries []DeadLetter
}

type DeadLetter struct {
	Delta  domain.Delta
	Reason string
}

func NewDeadLetterStore() *DeadLetterStore {
	return &DeadLetterStore{}
}

var _ ports.DeadLetterPort = (*DeadLetterStore)(nil)

func (s *DeadLetterStore) Store(ctx context.Context, d domain.Delta, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, DeadLetter{Delta: d, Reason: reason})
	return nil
}

func (s *DeadLetterStore) Entries() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadLetter, len(s.entries))
	copy(out, s.entries)
	return out
}

package ports

import (
	"context"
	"time"

	"attribution-engine/internal/attribution/core/domain"
)

// ConversionRepositoryPort stores conversion records and the event-id
// idempotency set. Records are keyed by their conversion identity.
type ConversionRepositoryPort interface {
	// MarkEventSeen registers an event id.
	//   first = true  -> never seen before
	//   first = false -> redelivery
	MarkEventSeen(ctx context.Context, eventID string) (first bool, err error)

	// Get returns the record for an identity key, open or frozen, or nil.
	Get(ctx context.Context, identityKey string) (*domain.ConversionRecord, error)

	Put(ctx context.Context, rec *domain.ConversionRecord) error

	// DueForFreeze lists open records whose dedup window elapsed as of now.
	DueForFreeze(ctx context.Context, now time.Time, window time.Duration) ([]*domain.ConversionRecord, error)

	// Purge drops frozen records and event ids older than the cutoff,
	// bounding memory to the recompute horizon.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}

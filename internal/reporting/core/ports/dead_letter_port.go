package ports

import (
	"context"

	"attribution-engine/internal/reporting/core/domain"
)

// DeadLetterPort durably parks deltas that exhausted their retries, for
// manual replay. Nothing is ever dropped silently.
type DeadLetterPort interface {
	Store(ctx context.Context, d domain.Delta, reason string) error
}

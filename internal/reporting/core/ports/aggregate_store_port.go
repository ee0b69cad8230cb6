package ports

import (
	"context"
	"time"

	"attribution-engine/internal/reporting/core/domain"
)

// RangeTotals sums conversions over a period across all campaigns,
// split into attributed and unattributed. Feeds completeness.
type RangeTotals struct {
	Attributed   float64
	Unattributed float64
}

// AggregateStorePort persists campaign aggregates. ApplyDelta must be
// linearizable per (campaign_id, bucket) and idempotent per ledger key.
type AggregateStorePort interface {
	// ApplyDelta folds one delta in. applied=false means the ledger key was
	// seen before and nothing changed.
	ApplyDelta(ctx context.Context, d domain.Delta) (applied bool, err error)

	QueryRange(ctx context.Context, campaignID string, from, to time.Time) ([]domain.CampaignMetricsAggregate, error)

	QueryTotals(ctx context.Context, from, to time.Time) (RangeTotals, error)
}

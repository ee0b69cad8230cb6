package postgres

import (
	"context"
	"time"

	"attribution-engine/internal/reporting/core/domain"
	"attribution-engine/internal/reporting/core/ports"
)

// AggregateRepository persists campaign aggregates. A single CTE claims
// the ledger key and folds the delta atomically, which gives both the
// per-key idempotency and the per-(campaign, bucket) linearizability the
// engine requires.
type AggregateRepository struct {
	db DB
}

func NewAggregateRepository(db DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

var _ ports.AggregateStorePort = (*AggregateRepository)(nil)

const applyDeltaSQL = `
WITH claimed AS (
    INSERT INTO applied_deltas (ledger_key, applied_at)
    VALUES ($1, now())
    ON CONFLICT (ledger_key) DO NOTHING
    RETURNING ledger_key
)
INSERT INTO campaign_aggregates (
    campaign_id, bucket, conversions, conversion_value,
    confidence_weight, last_event_at, updated_at
)
SELECT $2, $3, $4, $5, $6, $7, now()
FROM claimed
ON CONFLICT (campaign_id, bucket) DO UPDATE SET
    conversions       = campaign_aggregates.conversions + EXCLUDED.conversions,
    conversion_value  = campaign_aggregates.conversion_value + EXCLUDED.conversion_value,
    confidence_weight = campaign_aggregates.confidence_weight + EXCLUDED.confidence_weight,
    last_event_at     = GREATEST(campaign_aggregates.last_event_at, EXCLUDED.last_event_at),
    updated_at        = now();
`

func (r *AggregateRepository) ApplyDelta(ctx context.Context, d domain.Delta) (bool, error) {
	res, err := r.db.ExecContext(ctx, applyDeltaSQL,
		d.LedgerKey,
		d.CampaignID,
		d.Bucket,
		d.Conversions,
		d.Value,
		d.ConfidenceWeight,
		d.EventAt,
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	// rows == 0 -> ledger key already claimed, delta skipped
	return rows > 0, nil
}

const queryRangeSQL = `
SELECT
    campaign_id,
    bucket,
    conversions,
    conversion_value,
    confidence_weight,
    last_event_at,
    updated_at
FROM campaign_aggregates
WHERE campaign_id = $1 AND bucket >= $2 AND bucket < $3
ORDER BY bucket`

func (r *AggregateRepository) QueryRange(ctx context.Context, campaignID string, from, to time.Time) ([]domain.CampaignMetricsAggregate, error) {
	rows, err := r.db.QueryContext(ctx, queryRangeSQL, campaignID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CampaignMetricsAggregate
	for rows.Next() {
		var a domain.CampaignMetricsAggregate
		if err := rows.Scan(
			&a.CampaignID,
			&a.Bucket,
			&a.Conversions,
			&a.ConversionValue,
			&a.ConfidenceWeight,
			&a.LastEventAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const queryTotalsSQL = `
SELECT
    COALESCE(SUM(conversions) FILTER (WHERE campaign_id <> ''), 0) AS attributed,
    COALESCE(SUM(conversions) FILTER (WHERE campaign_id = ''), 0)  AS unattributed
FROM campaign_aggregates
WHERE bucket >= $1 AND bucket < $2`

func (r *AggregateRepository) QueryTotals(ctx context.Context, from, to time.Time) (ports.RangeTotals, error) {
	rows, err := r.db.QueryContext(ctx, queryTotalsSQL, from, to)
	if err != nil {
		return ports.RangeTotals{}, err
	}
	defer rows.Close()

	var totals ports.RangeTotals
	if rows.Next() {
		if err := rows.Scan(&totals.Attributed, &totals.Unattributed); err != nil {
			return ports.RangeTotals{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return ports.RangeTotals{}, err
	}
	return totals, nil
}

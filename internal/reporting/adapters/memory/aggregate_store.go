package memory

import (
	"context"
	"sync"
	"time"

	"attribution-engine/internal/reporting/core/domain"
	"attribution-engine/internal/reporting/core/ports"
)

type bucketKey struct {
	campaignID string
	bucket     time.Time
}

// AggregateStore is the in-memory AggregateStorePort. Tests and the
// end-to-end pipeline tests run against it.
type AggregateStore struct {
	mu      sync.RWMutex
	buckets map[bucketKey]*domain.CampaignMetricsAggregate
	ledger  map[string]struct{}
	now     func() time.Time
}

func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		buckets: map[bucketKey]*domain.CampaignMetricsAggregate{},
		ledger:  map[string]struct{}{},
		now:     time.Now,
	}
}

var _ ports.AggregateStorePort = (*AggregateStore)(nil)

func (s *AggregateStore) ApplyDelta(ctx context.Context, d domain.Delta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.ledger[d.LedgerKey]; seen {
		return false, nil
	}
	s.ledger[d.LedgerKey] = struct{}{}

	key := bucketKey{campaignID: d.CampaignID, bucket: d.Bucket}
	agg, ok := s.buckets[key]
	if !ok {
		agg = &domain.CampaignMetricsAggregate{CampaignID: d.CampaignID, Bucket: d.Bucket}
		s.buckets[key] = agg
	}
	agg.Conversions += d.Conversions
	agg.ConversionValue += d.Value
	agg.ConfidenceWeight += d.ConfidenceWeight
	if d.EventAt.After(agg.LastEventAt) {
		agg.LastEventAt = d.EventAt
	}
	agg.UpdatedAt = s.now()
	return true, nil
}

func (s *AggregateStore) QueryRange(ctx context.Context, campaignID string, from, to time.Time) ([]domain.CampaignMetricsAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CampaignMetricsAggregate
	for key, agg := range s.buckets {
		if key.campaignID != campaignID {
			continue
		}
		if key.bucket.Before(from) || !key.bucket.Before(to) {
			continue
		}
		out = append(out, *agg)
	}
	return out, nil
}

func (s *AggregateStore) QueryTotals(ctx context.Context, from, to time.Time) (ports.RangeTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals ports.RangeTotals
	for key, agg := range s.buckets {
		if key.bucket.Before(from) || !key.bucket.Before(to) {
			continue
		}
		if key.campaignID == "" {
			totals.Unattributed += agg.Conversions
		} else {
			totals.Attributed += agg.Conversions
		}
	}
	return totals, nil
}

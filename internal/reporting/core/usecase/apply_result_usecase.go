package usecase

import (
	"context"
	"math"
	"sort"

	attrdomain "attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/observability"
	"attribution-engine/internal/platform/logger"
	"attribution-engine/internal/reporting/core/domain"
	"attribution-engine/internal/reporting/core/ports"
	"attribution-engine/internal/utils"
)

// ApplyResultUseCase is the aggregation engine: it folds allocations
// into per-(campaign, bucket) aggregates. Application is idempotent per
// ledger key and retried with bounded backoff; exhausted retries park
// the delta in the dead-letter store instead of dropping it.
type ApplyResultUseCase struct {
	store   ports.AggregateStorePort
	dead    ports.DeadLetterPort
	backoff utils.Backoff
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewApplyResultUseCase(
	store ports.AggregateStorePort,
	dead ports.DeadLetterPort,
	backoff utils.Backoff,
	log *logger.Logger,
	metrics *observability.Metrics,
) *ApplyResultUseCase {
	return &ApplyResultUseCase{
		store:   store,
		dead:    dead,
		backoff: backoff,
		log:     log,
		metrics: metrics,
	}
}

// Apply folds the current allocation for a record in, compensating for
// whatever was applied before. First application: prev is empty, deltas
// are the allocation itself. Amendment: deltas are current minus
// previous, so published buckets shift incrementally, never jump.
func (uc *ApplyResultUseCase) Apply(ctx context.Context, rec *attrdomain.ConversionRecord, results []attrdomain.AttributionResult) error {
	curr := attrdomain.EffectiveResults(rec, results)
	deltas := buildDeltas(rec, rec.LastApplied, curr, rec.Revision+1)

	for _, d := range deltas {
		if err := uc.applyOne(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (uc *ApplyResultUseCase) applyOne(ctx context.Context, d domain.Delta) error {
	var applied bool
	err := uc.backoff.Do(ctx, func(attempt int) error {
		var applyErr error
		applied, applyErr = uc.store.ApplyDelta(ctx, d)
		if applyErr != nil && attempt > 0 {
			uc.log.Warn("aggregate store retry", "ledger_key", d.LedgerKey, "attempt", attempt, "err", applyErr)
		}
		return applyErr
	})
	if err != nil {
		uc.metrics.DeadLetters.Inc()
		uc.log.Error("aggregate store retries exhausted, dead-lettering",
			"ledger_key", d.LedgerKey, "err", err)
		return uc.dead.Store(ctx, d, err.Error())
	}
	if applied {
		uc.metrics.AppliedDeltas.Inc()
	}
	return nil
}

type creditLine struct {
	conversions float64
	value       float64
	confWeight  float64
}

func buildDeltas(rec *attrdomain.ConversionRecord, prev, curr []attrdomain.AttributionResult, revision int) []domain.Delta {
	perCampaign := map[string]creditLine{}

	for _, r := range curr {
		line := perCampaign[r.CampaignID]
		line.conversions += r.Weight
		line.value += r.Weight * rec.Conversion.Value
		line.confWeight += r.Weight * r.Confidence
		perCampaign[r.CampaignID] = line
	}
	for _, r := range prev {
		line := perCampaign[r.CampaignID]
		line.conversions -= r.Weight
		line.value -= r.Weight * rec.Conversion.Value
		line.confWeight -= r.Weight * r.Confidence
		perCampaign[r.CampaignID] = line
	}

	// deterministic order keeps retries and tests stable
	ids := make([]string, 0, len(perCampaign))
	for id := range perCampaign {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	eventAt := rec.Identity.Bucket
	bucket := domain.Bucket(eventAt)

	deltas := make([]domain.Delta, 0, len(ids))
	for _, id := range ids {
		line := perCampaign[id]
		if math.Abs(line.conversions) < 1e-12 && math.Abs(line.value) < 1e-12 && math.Abs(line.confWeight) < 1e-12 {
			continue
		}
		deltas = append(deltas, domain.Delta{
			LedgerKey:        domain.LedgerKey(rec.ID, id, revision),
			CampaignID:       id,
			Bucket:           bucket,
			Conversions:      line.conversions,
			Value:            line.value,
			ConfidenceWeight: line.confWeight,
			EventAt:          eventAt,
		})
	}
	return deltas
}

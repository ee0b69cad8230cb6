package usecase

import (
	"context"
	"time"

	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/attribution/core/ports"
	"attribution-engine/internal/observability"
	"attribution-engine/internal/platform/logger"
)

// ResultSink folds an allocation into the campaign aggregates. The
// aggregation engine implements it.
type ResultSink interface {
	Apply(ctx context.Context, rec *domain.ConversionRecord, results []domain.AttributionResult) error
}

// ProcessEventUseCase runs Match -> Resolve -> (Allocate -> Apply) for
// one canonical event. Open records are finalized later by the sweep;
// amendments and stale standalone records finalize immediately.
type ProcessEventUseCase struct {
	match    *MatchEventUseCase
	resolve  *ResolveConversionUseCase
	allocate *AllocateCreditUseCase
	sink     ResultSink
	repo     ports.ConversionRepositoryPort
	log      *logger.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewProcessEventUseCase(
	match *MatchEventUseCase,
	resolve *ResolveConversionUseCase,
	allocate *AllocateCreditUseCase,
	sink ResultSink,
	repo ports.ConversionRepositoryPort,
	log *logger.Logger,
	metrics *observability.Metrics,
) *ProcessEventUseCase {
	return &ProcessEventUseCase{
		match:    match,
		resolve:  resolve,
		allocate: allocate,
		sink:     sink,
		repo:     repo,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (uc *ProcessEventUseCase) Handle(ctx context.Context, ev domain.AttributionEvent) error {
	uc.metrics.EventsTotal.WithLabelValues(string(ev.Method)).Inc()

	candidates, err := uc.match.Execute(ctx, ev)
	if err != nil {
		return err
	}

	res, err := uc.resolve.Execute(ctx, ev, candidates)
	if err != nil {
		return err
	}

	switch res.Kind {
	case ResolutionDuplicate:
		return nil
	case ResolutionAmended:
		return uc.finalize(ctx, res.Record)
	case ResolutionNew:
		if res.Record.Stale {
			// stale records never wait out a dedup window that expired long ago
			res.Record.FrozenAt = uc.now().UTC()
			return uc.finalize(ctx, res.Record)
		}
		return nil
	default:
		return nil
	}
}

// SweepShard finalizes records owned by one shard whose dedup window
// elapsed.
func (uc *ProcessEventUseCase) SweepShard(ctx context.Context, now time.Time, keep func(identityKey string) bool) error {
	frozen, err := uc.resolve.Sweep(ctx, now, keep)
	if err != nil {
		return err
	}
	for _, rec := range frozen {
		if err := uc.finalize(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// FlushShard finalizes every open record of a shard, window or not.
// Shutdown path only.
func (uc *ProcessEventUseCase) FlushShard(ctx context.Context, keep func(identityKey string) bool) error {
	frozen, err := uc.resolve.Flush(ctx, keep)
	if err != nil {
		return err
	}
	for _, rec := range frozen {
		if err := uc.finalize(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (uc *ProcessEventUseCase) finalize(ctx context.Context, rec *domain.ConversionRecord) error {
	results := uc.allocate.Execute(rec)
	if err := uc.sink.Apply(ctx, rec, results); err != nil {
		return err
	}

	rec.LastApplied = domain.EffectiveResults(rec, results)
	rec.Revision++
	if err := uc.repo.Put(ctx, rec); err != nil {
		return err
	}

	if rec.Revision == 1 && !rec.Attributed() {
		uc.metrics.Unattributed.Inc()
	}
	return nil
}

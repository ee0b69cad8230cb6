package usecase

import (
	"context"
	"time"

	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/attribution/core/ports"
	"attribution-engine/internal/observability"
	"attribution-engine/internal/platform/logger"

	"github.com/google/uuid"
)

type ResolutionKind string

const (
	// ResolutionNew: first report of this conversion identity.
	ResolutionNew ResolutionKind = "new"
	// ResolutionMerged: joined an open record inside the dedup window.
	ResolutionMerged ResolutionKind = "merged"
	// ResolutionAmended: appended to a frozen record inside the recompute
	// horizon; previously published aggregates need compensating deltas.
	ResolutionAmended ResolutionKind = "amended"
	// ResolutionDuplicate: redelivered event_id, nothing to do.
	ResolutionDuplicate ResolutionKind = "duplicate"
)

type Resolution struct {
	Kind   ResolutionKind
	Record *domain.ConversionRecord
}

type ResolverConfig struct {
	DedupWindow      time.Duration
	RecomputeHorizon time.Duration
	// IdentityBucket is the coarse time bucket of the conversion identity.
	IdentityBucket time.Duration
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		DedupWindow:      5 * time.Minute,
		RecomputeHorizon: 7 * 24 * time.Hour,
		IdentityBucket:   time.Minute,
	}
}

// ResolveConversionUseCase collapses reports of the same underlying
// conversion into one record. Conflicting campaign claims are all kept
// as touchpoints; allocation is the resolution mechanism, not a forced
// single winner.
type ResolveConversionUseCase struct {
	repo    ports.ConversionRepositoryPort
	cfg     ResolverConfig
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewResolveConversionUseCase(repo ports.ConversionRepositoryPort, cfg ResolverConfig, log *logger.Logger, metrics *observability.Metrics) *ResolveConversionUseCase {
	return &ResolveConversionUseCase{
		repo:    repo,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

func (uc *ResolveConversionUseCase) Execute(ctx context.Context, ev domain.AttributionEvent, candidates []domain.CandidateMatch) (Resolution, error) {
	first, err := uc.repo.MarkEventSeen(ctx, ev.EventID)
	if err != nil {
		return Resolution{}, err
	}
	if !first {
		uc.metrics.Duplicates.Inc()
		return Resolution{Kind: ResolutionDuplicate}, nil
	}

	now := uc.now().UTC()
	stale := now.Sub(ev.ObservedAt) > uc.cfg.RecomputeHorizon
	if stale {
		uc.metrics.StaleEvents.Inc()
		uc.log.Warn("event older than recompute horizon, folding in as stale",
			"event_id", ev.EventID, "observed_at", ev.ObservedAt)
	}

	identity := domain.IdentityOf(ev, uc.cfg.IdentityBucket)
	rec, err := uc.repo.Get(ctx, identity.Key())
	if err != nil {
		return Resolution{}, err
	}

	switch {
	case rec == nil, stale:
		// Stale events never reopen or amend frozen history; they become a
		// standalone record so their value is still counted.
		rec = &domain.ConversionRecord{
			ID:         uuid.NewString(),
			Identity:   identity,
			Conversion: ev.Conversion,
			FirstSeen:  now,
			Stale:      stale,
		}
		rec.Append(ev.EventID, candidates)
		if err := uc.repo.Put(ctx, rec); err != nil {
			return Resolution{}, err
		}
		return Resolution{Kind: ResolutionNew, Record: rec}, nil

	case !rec.Frozen():
		// First report wins the conversion payload; later reports only
		// contribute touchpoints.
		rec.Append(ev.EventID, candidates)
		if err := uc.repo.Put(ctx, rec); err != nil {
			return Resolution{}, err
		}
		return Resolution{Kind: ResolutionMerged, Record: rec}, nil

	default:
		rec.Append(ev.EventID, candidates)
		if err := uc.repo.Put(ctx, rec); err != nil {
			return Resolution{}, err
		}
		uc.metrics.Amendments.Inc()
		uc.log.Info("late touchpoint amends frozen conversion",
			"conversion_id", rec.ID, "event_id", ev.EventID)
		return Resolution{Kind: ResolutionAmended, Record: rec}, nil
	}
}

// Sweep freezes open records whose dedup window elapsed and returns them
// for allocation. keep filters identity keys so each pipeline shard only
// finalizes its own records. Frozen state older than the recompute
// horizon is purged.
func (uc *ResolveConversionUseCase) Sweep(ctx context.Context, now time.Time, keep func(identityKey string) bool) ([]*domain.ConversionRecord, error) {
	due, err := uc.repo.DueForFreeze(ctx, now, uc.cfg.DedupWindow)
	if err != nil {
		return nil, err
	}

	frozen, err := uc.freeze(ctx, due, keep, now)
	if err != nil {
		return frozen, err
	}

	if _, err := uc.repo.Purge(ctx, now.Add(-uc.cfg.RecomputeHorizon)); err != nil {
		uc.log.Warn("purge failed", "err", err)
	}
	return frozen, nil
}

// Flush freezes every open record regardless of window age. Shutdown
// path only.
func (uc *ResolveConversionUseCase) Flush(ctx context.Context, keep func(identityKey string) bool) ([]*domain.ConversionRecord, error) {
	now := uc.now().UTC()
	due, err := uc.repo.DueForFreeze(ctx, now, 0)
	if err != nil {
		return nil, err
	}
	return uc.freeze(ctx, due, keep, now)
}

func (uc *ResolveConversionUseCase) freeze(ctx context.Context, due []*domain.ConversionRecord, keep func(string) bool, now time.Time) ([]*domain.ConversionRecord, error) {
	var frozen []*domain.ConversionRecord
	for _, rec := range due {
		if keep != nil && !keep(rec.Identity.Key()) {
			continue
		}
		rec.FrozenAt = now
		if err := uc.repo.Put(ctx, rec); err != nil {
			return frozen, err
		}
		frozen = append(frozen, rec)
	}
	return frozen, nil
}

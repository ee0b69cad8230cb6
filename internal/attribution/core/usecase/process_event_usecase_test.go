package usecase_test

import (
	"context"
	"testing"
	"time"

	attrmem "attribution-engine/internal/attribution/adapters/memory"
	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/attribution/core/usecase"
	campdomain "attribution-engine/internal/campaigns/core/domain"
	"attribution-engine/internal/observability"
	"attribution-engine/internal/platform/logger"
	reportmem "attribution-engine/internal/reporting/adapters/memory"
	reportingusecase "attribution-engine/internal/reporting/core/usecase"
	"attribution-engine/internal/utils"
)

// liveCatalog returns campaigns whose window brackets the wall clock, so
// events observed "now" match and are never stale.
func liveCatalog() *fakeCatalog {
	now := time.Now().UTC()
	window := campdomain.ActiveWindow{Start: now.Add(-24 * time.Hour), End: now.Add(24 * time.Hour)}
	return &fakeCatalog{campaigns: []campdomain.Campaign{
		{ID: "cmp_a", Name: "A", Window: window, Cost: 1000, PromoCodes: []string{"code_a"}},
		{ID: "cmp_b", Name: "B", Window: window, Cost: 2000, PromoCodes: []string{"code_b"}},
	}}
}

type engine struct {
	proc  *usecase.ProcessEventUseCase
	store *reportmem.AggregateStore
	dead  *reportmem.DeadLetterStore
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	log := logger.NewNop()
	metrics := observability.NewNop()

	repo := attrmem.NewConversionRepository()
	store := reportmem.NewAggregateStore()
	dead := reportmem.NewDeadLetterStore()

	matchUC := usecase.NewMatchEventUseCase(liveCatalog(), &fakeTouchIndex{}, usecase.DefaultMatcherConfig(), log)
	resolveUC := usecase.NewResolveConversionUseCase(repo, usecase.DefaultResolverConfig(), log, metrics)
	allocateUC, err := usecase.NewAllocateCreditUseCase(usecase.AllocatorConfig{Model: usecase.ModelLinear})
	if err != nil {
		t.Fatalf("allocator: %v", err)
	}
	applyUC := reportingusecase.NewApplyResultUseCase(store, dead, utils.NewBackoff(time.Millisecond, 2), log, metrics)

	return &engine{
		proc:  usecase.NewProcessEventUseCase(matchUC, resolveUC, allocateUC, applyUC, repo, log, metrics),
		store: store,
		dead:  dead,
	}
}

func (e *engine) campaignConversions(t *testing.T, campaignID string) (conversions, value float64) {
	t.Helper()
	rows, err := e.store.QueryRange(context.Background(), campaignID,
		time.Now().UTC().Add(-30*24*time.Hour), time.Now().UTC().Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	for _, row := range rows {
		conversions += row.Conversions
		value += row.ConversionValue
	}
	return conversions, value
}

func liveEvent(eventID, code string, observedAt time.Time) domain.AttributionEvent {
	return domain.AttributionEvent{
		EventID:    eventID,
		SourceID:   "shopify",
		Method:     domain.MethodPromoCode,
		Payload:    domain.PromoCodePayload{Code: code},
		ObservedAt: observedAt,
		ReceivedAt: time.Now().UTC(),
		Conversion: domain.Conversion{Type: "purchase", Value: 100, UserID: "u1"},
	}
}

func sweepAll(t *testing.T, e *engine) {
	t.Helper()
	if err := e.proc.SweepShard(context.Background(), time.Now().UTC().Add(10*time.Minute), nil); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}

func TestProcess_EndToEnd_SingleAttribution(t *testing.T) {
	e := newEngine(t)
	at := time.Now().UTC().Add(-time.Minute)

	if err := e.proc.Handle(context.Background(), liveEvent("e1", "code_a", at)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	// still open: nothing published yet
	if conv, _ := e.campaignConversions(t, "cmp_a"); conv != 0 {
		t.Fatalf("expected nothing published before the sweep, got %v", conv)
	}

	sweepAll(t, e)

	conv, value := e.campaignConversions(t, "cmp_a")
	if conv != 1 {
		t.Fatalf("expected 1 conversion for cmp_a, got %v", conv)
	}
	if value != 100 {
		t.Fatalf("expected value 100, got %v", value)
	}
}

func TestProcess_RedeliveryCountsOnce(t *testing.T) {
	e := newEngine(t)
	at := time.Now().UTC().Add(-time.Minute)
	ev := liveEvent("e1", "code_a", at)

	if err := e.proc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := e.proc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("redelivery must be a no-op, got: %v", err)
	}

	sweepAll(t, e)

	if conv, _ := e.campaignConversions(t, "cmp_a"); conv != 1 {
		t.Fatalf("expected exactly 1 conversion after redelivery, got %v", conv)
	}
}

func TestProcess_ConflictingClaimsSplitCredit(t *testing.T) {
	e := newEngine(t)
	base := time.Now().UTC().Truncate(time.Minute).Add(-2 * time.Minute)

	if err := e.proc.Handle(context.Background(), liveEvent("e1", "code_a", base.Add(5*time.Second))); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := e.proc.Handle(context.Background(), liveEvent("e2", "code_b", base.Add(20*time.Second))); err != nil {
		t.Fatalf("handle: %v", err)
	}

	sweepAll(t, e)

	convA, valueA := e.campaignConversions(t, "cmp_a")
	convB, valueB := e.campaignConversions(t, "cmp_b")
	if convA != 0.5 || convB != 0.5 {
		t.Fatalf("expected linear 0.5/0.5 split, got %v/%v", convA, convB)
	}
	if valueA+valueB != 100 {
		t.Fatalf("split value must sum to the conversion value, got %v", valueA+valueB)
	}
}

func TestProcess_LateAmendmentCompensates(t *testing.T) {
	e := newEngine(t)
	base := time.Now().UTC().Truncate(time.Minute).Add(-2 * time.Minute)

	if err := e.proc.Handle(context.Background(), liveEvent("e1", "code_a", base.Add(5*time.Second))); err != nil {
		t.Fatalf("handle: %v", err)
	}
	sweepAll(t, e)

	if conv, _ := e.campaignConversions(t, "cmp_a"); conv != 1 {
		t.Fatalf("expected cmp_a fully credited before the amendment, got %v", conv)
	}

	// late claim for the same conversion after the record froze
	if err := e.proc.Handle(context.Background(), liveEvent("e2", "code_b", base.Add(20*time.Second))); err != nil {
		t.Fatalf("handle: %v", err)
	}

	convA, _ := e.campaignConversions(t, "cmp_a")
	convB, _ := e.campaignConversions(t, "cmp_b")
	if convA != 0.5 || convB != 0.5 {
		t.Fatalf("expected compensated 0.5/0.5, got %v/%v", convA, convB)
	}
	if convA+convB != 1 {
		t.Fatalf("a conversion never counts more than once, got total %v", convA+convB)
	}
}

func TestProcess_UnattributedStillCounts(t *testing.T) {
	e := newEngine(t)
	at := time.Now().UTC().Add(-time.Minute)

	ev := domain.AttributionEvent{
		EventID:    "e1",
		Method:     domain.MethodDirect,
		Payload:    domain.DirectPayload{},
		ObservedAt: at,
		Conversion: domain.Conversion{Type: "purchase", Value: 75, UserID: "u_unknown"},
	}
	if err := e.proc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	sweepAll(t, e)

	conv, value := e.campaignConversions(t, domain.UnattributedCampaignID)
	if conv != 1 || value != 75 {
		t.Fatalf("expected unattributed bucket 1/75, got %v/%v", conv, value)
	}

	totals, err := e.store.QueryTotals(context.Background(),
		time.Now().UTC().Add(-24*time.Hour), time.Now().UTC().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("query totals: %v", err)
	}
	if totals.Unattributed != 1 || totals.Attributed != 0 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestProcess_SweepTwiceIsIdempotent(t *testing.T) {
	e := newEngine(t)
	at := time.Now().UTC().Add(-time.Minute)

	if err := e.proc.Handle(context.Background(), liveEvent("e1", "code_a", at)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	sweepAll(t, e)
	sweepAll(t, e)

	if conv, _ := e.campaignConversions(t, "cmp_a"); conv != 1 {
		t.Fatalf("expected 1 conversion after repeated sweeps, got %v", conv)
	}
	if len(e.dead.Entries()) != 0 {
		t.Fatalf("expected no dead letters, got %d", len(e.dead.Entries()))
	}
}

func TestProcess_StaleEventFinalizesImmediately(t *testing.T) {
	e := newEngine(t)

	ev := domain.AttributionEvent{
		EventID:    "e_old",
		Method:     domain.MethodDirect,
		Payload:    domain.DirectPayload{},
		ObservedAt: time.Now().UTC().Add(-8 * 24 * time.Hour),
		Conversion: domain.Conversion{Type: "purchase", Value: 30, UserID: "u9"},
	}
	if err := e.proc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	// no sweep needed: stale records publish on arrival
	conv, value := e.campaignConversions(t, domain.UnattributedCampaignID)
	if conv != 1 || value != 30 {
		t.Fatalf("expected stale conversion published immediately, got %v/%v", conv, value)
	}
}

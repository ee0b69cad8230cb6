package usecase

import (
	"context"
	"errors"
	"time"

	campdomain "attribution-engine/internal/campaigns/core/domain"
	"attribution-engine/internal/reporting/core/domain"
	"attribution-engine/internal/reporting/core/ports"
)

var (
	ErrInvalidReportQuery = errors.New("invalid report query")
	ErrInvalidTimeRange   = errors.New("invalid time range")
	ErrUnknownCampaign    = errors.New("unknown campaign")
)

// CampaignCatalog is what reporting needs from the campaign cache: the
// cost basis for ROI.
type CampaignCatalog interface {
	ByID(id string) (campdomain.Campaign, bool)
}

type GetReportInput struct {
	CampaignID string
	From       time.Time
	To         time.Time
}

// GetReportUseCase derives the per-campaign report from stored
// aggregates. ROI and ROAS are computed here, never stored.
type GetReportUseCase struct {
	store   ports.AggregateStorePort
	catalog CampaignCatalog
	now     func() time.Time
}

func NewGetReportUseCase(store ports.AggregateStorePort, catalog CampaignCatalog) *GetReportUseCase {
	return &GetReportUseCase{store: store, catalog: catalog, now: time.Now}
}

func (uc *GetReportUseCase) Execute(ctx context.Context, in GetReportInput) (*domain.CampaignReport, error) {
	if in.CampaignID == "" {
		return nil, ErrInvalidReportQuery
	}
	if in.From.IsZero() || in.To.IsZero() || !in.From.Before(in.To) {
		return nil, ErrInvalidTimeRange
	}

	campaign, ok := uc.catalog.ByID(in.CampaignID)
	if !ok {
		return nil, ErrUnknownCampaign
	}

	rows, err := uc.store.QueryRange(ctx, in.CampaignID, in.From, in.To)
	if err != nil {
		return nil, err
	}
	totals, err := uc.store.QueryTotals(ctx, in.From, in.To)
	if err != nil {
		return nil, err
	}

	var (
		conversions float64
		value       float64
		confWeight  float64
		lastEventAt time.Time
	)
	for _, row := range rows {
		conversions += row.Conversions
		value += row.ConversionValue
		confWeight += row.ConfidenceWeight
		if row.LastEventAt.After(lastEventAt) {
			lastEventAt = row.LastEventAt
		}
	}

	now := uc.now().UTC()
	report := &domain.CampaignReport{
		CampaignID:       in.CampaignID,
		From:             in.From,
		To:               in.To,
		TotalConversions: conversions,
		ConversionValue:  value,
		Cost:             campaign.Cost,
		GeneratedAt:      now,
	}

	// cost == 0 leaves ROI/ROAS undefined (nil), never a division error
	if campaign.Cost > 0 {
		roi := (value - campaign.Cost) / campaign.Cost
		roas := value / campaign.Cost
		report.ROI = &roi
		report.ROAS = &roas
	}

	report.Quality = domain.DataQuality{
		Completeness:   completeness(totals),
		Accuracy:       accuracy(confWeight, conversions),
		FreshnessHours: freshnessHours(now, lastEventAt),
	}
	return report, nil
}

func completeness(t ports.RangeTotals) float64 {
	total := t.Attributed + t.Unattributed
	if total <= 0 {
		return 1.0
	}
	return t.Attributed / total
}

func accuracy(confWeight, conversions float64) float64 {
	if conversions <= 0 {
		return 0
	}
	return confWeight / conversions
}

func freshnessHours(now, lastEventAt time.Time) float64 {
	if lastEventAt.IsZero() {
		return 0
	}
	age := now.Sub(lastEventAt)
	if age < 0 {
		return 0
	}
	return age.Hours()
}

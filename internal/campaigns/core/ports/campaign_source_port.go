package ports

import (
	"context"
	"time"

	"attribution-engine/internal/campaigns/core/domain"
)

// CampaignSourcePort reads campaign definitions from the external store.
// FetchWindow returns every campaign whose active window overlaps [from, to].
type CampaignSourcePort interface {
	FetchWindow(ctx context.Context, from, to time.Time) ([]domain.Campaign, error)
}

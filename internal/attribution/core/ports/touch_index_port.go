package ports

import (
	"context"
	"time"

	"attribution-engine/internal/attribution/core/domain"
)

// Touch is one recorded interaction between a subject and a campaign.
type Touch struct {
	Subject    string
	CampaignID string
	Method     domain.Method
	At         time.Time
}

// TouchIndexPort remembers per-subject touches inside the attribution
// lookback window. Pixel decay and the direct last-known-touch fallback
// both read from it.
type TouchIndexPort interface {
	Record(ctx context.Context, t Touch) error

	// LastTouch returns the most recent touch for a subject at or after
	// since, regardless of campaign.
	LastTouch(ctx context.Context, subject string, since time.Time) (Touch, bool, error)

	// FirstTouchFor returns the earliest touch of a subject with a given
	// campaign and method at or after since. Pixel decay measures elapsed
	// time from this fire.
	FirstTouchFor(ctx context.Context, subject, campaignID string, method domain.Method, since time.Time) (Touch, bool, error)
}

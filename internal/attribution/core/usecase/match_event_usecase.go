package usecase

import (
	"context"
	"time"

	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/attribution/core/ports"
	campdomain "attribution-engine/internal/campaigns/core/domain"
	"attribution-engine/internal/platform/logger"
)

// CampaignCatalog is what matching needs from the campaign config cache.
type CampaignCatalog interface {
	ByID(id string) (campdomain.Campaign, bool)
	ByPromoCode(code string) (campdomain.Campaign, bool)
	ByPixelID(pixelID string) (campdomain.Campaign, bool)
	ByUTM(key campdomain.UTMKey) (campdomain.Campaign, bool)
}

// MatcherConfig carries the tunable confidence policy. The constants are
// operational defaults, not business rules.
type MatcherConfig struct {
	PromoConfidence    float64
	PromoGrace         time.Duration
	PixelMaxConfidence float64
	PixelMinConfidence float64
	UTMConfidence      float64
	DirectConfidence   float64
	// Lookback bounds how old a prior touch may be for pixel decay, utm
	// matching past the campaign window, and the direct fallback.
	Lookback time.Duration
}

func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		PromoConfidence:    0.95,
		PromoGrace:         24 * time.Hour,
		PixelMaxConfidence: 0.9,
		PixelMinConfidence: 0.3,
		UTMConfidence:      0.7,
		DirectConfidence:   0.3,
		Lookback:           7 * 24 * time.Hour,
	}
}

// Matcher resolves candidate campaigns for one method.
type Matcher interface {
	Method() domain.Method
	Match(ctx context.Context, ev domain.AttributionEvent) ([]domain.CandidateMatch, error)
}

// MatchEventUseCase dispatches an event to its method matcher and records
// resulting touches so later pixel/direct lookups can see them.
type MatchEventUseCase struct {
	matchers map[domain.Method]Matcher
	touches  ports.TouchIndexPort
	log      *logger.Logger
}

func NewMatchEventUseCase(catalog CampaignCatalog, touches ports.TouchIndexPort, cfg MatcherConfig, log *logger.Logger) *MatchEventUseCase {
	matchers := map[domain.Method]Matcher{
		domain.MethodPromoCode: &promoMatcher{catalog: catalog, cfg: cfg},
		domain.MethodPixel:     &pixelMatcher{catalog: catalog, touches: touches, cfg: cfg},
		domain.MethodUTM:       &utmMatcher{catalog: catalog, cfg: cfg},
		domain.MethodDirect:    &directMatcher{catalog: catalog, touches: touches, cfg: cfg},
	}
	return &MatchEventUseCase{matchers: matchers, touches: touches, log: log}
}

// Execute returns zero or more candidates. Zero candidates is not an
// error: the conversion flows on as unattributed.
func (uc *MatchEventUseCase) Execute(ctx context.Context, ev domain.AttributionEvent) ([]domain.CandidateMatch, error) {
	matcher, ok := uc.matchers[ev.Method]
	if !ok {
		// normalizer guarantees a valid method; treat anything else as unattributed
		return nil, nil
	}

	candidates, err := matcher.Match(ctx, ev)
	if err != nil {
		return nil, err
	}

	subject := ev.Conversion.SubjectKey()
	for _, c := range candidates {
		touch := ports.Touch{
			Subject:    subject,
			CampaignID: c.CampaignID,
			Method:     c.Method,
			At:         c.MatchedAt,
		}
		if err := uc.touches.Record(ctx, touch); err != nil {
			return nil, err
		}
		// pixel fires are additionally indexed by fingerprint, which is what
		// later fires look up for decay
		if p, ok := ev.Payload.(domain.PixelPayload); ok && p.Fingerprint != subject {
			touch.Subject = p.Fingerprint
			if err := uc.touches.Record(ctx, touch); err != nil {
				return nil, err
			}
		}
	}

	if len(candidates) == 0 {
		uc.log.Debug("no campaign matched", "event_id", ev.EventID, "method", ev.Method)
	}
	return candidates, nil
}

package usecase

import (
	"context"

	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/attribution/core/ports"
	campdomain "attribution-engine/internal/campaigns/core/domain"
)

// promoMatcher: exact code match, case-insensitive and trimmed, valid
// within the campaign window plus a grace period for delayed reporting.
type promoMatcher struct {
	catalog CampaignCatalog
	cfg     MatcherConfig
}

func (m *promoMatcher) Method() domain.Method { return domain.MethodPromoCode }

func (m *promoMatcher) Match(ctx context.Context, ev domain.AttributionEvent) ([]domain.CandidateMatch, error) {
	payload, ok := ev.Payload.(domain.PromoCodePayload)
	if !ok {
		return nil, nil
	}
	campaign, ok := m.catalog.ByPromoCode(payload.Code)
	if !ok {
		return nil, nil
	}
	if !campaign.Window.ContainsWithGrace(ev.ObservedAt, m.cfg.PromoGrace) {
		return nil, nil
	}
	return []domain.CandidateMatch{{
		EventID:    ev.EventID,
		CampaignID: campaign.ID,
		Method:     domain.MethodPromoCode,
		Confidence: m.cfg.PromoConfidence,
		MatchedAt:  ev.ObservedAt,
	}}, nil
}

// pixelMatcher: resolves the campaign by pixel id, then decays confidence
// linearly with the elapsed time since the first recorded fire for this
// fingerprint. A conversion with no prior fire is its own fire (no decay).
type pixelMatcher struct {
	catalog CampaignCatalog
	touches ports.TouchIndexPort
	cfg     MatcherConfig
}

func (m *pixelMatcher) Method() domain.Method { return domain.MethodPixel }

func (m *pixelMatcher) Match(ctx context.Context, ev domain.AttributionEvent) ([]domain.CandidateMatch, error) {
	payload, ok := ev.Payload.(domain.PixelPayload)
	if !ok {
		return nil, nil
	}
	campaign, ok := m.catalog.ByPixelID(payload.PixelID)
	if !ok {
		return nil, nil
	}

	since := ev.ObservedAt.Add(-m.cfg.Lookback)
	fire, found, err := m.touches.FirstTouchFor(ctx, payload.Fingerprint, campaign.ID, domain.MethodPixel, since)
	if err != nil {
		return nil, err
	}

	confidence := m.cfg.PixelMaxConfidence
	if found && ev.ObservedAt.After(fire.At) {
		elapsed := ev.ObservedAt.Sub(fire.At)
		if elapsed > m.cfg.Lookback {
			return nil, nil
		}
		span := m.cfg.PixelMaxConfidence - m.cfg.PixelMinConfidence
		confidence = m.cfg.PixelMaxConfidence - span*(float64(elapsed)/float64(m.cfg.Lookback))
	}

	return []domain.CandidateMatch{{
		EventID:    ev.EventID,
		CampaignID: campaign.ID,
		Method:     domain.MethodPixel,
		Confidence: confidence,
		MatchedAt:  ev.ObservedAt,
	}}, nil
}

// utmMatcher: exact tuple match. Fixed moderate confidence since UTM
// parameters are easily reused or tampered with.
type utmMatcher struct {
	catalog CampaignCatalog
	cfg     MatcherConfig
}

func (m *utmMatcher) Method() domain.Method { return domain.MethodUTM }

func (m *utmMatcher) Match(ctx context.Context, ev domain.AttributionEvent) ([]domain.CandidateMatch, error) {
	payload, ok := ev.Payload.(domain.UTMPayload)
	if !ok {
		return nil, nil
	}
	campaign, ok := m.catalog.ByUTM(campdomain.UTMKey{
		Source:   payload.Source,
		Medium:   payload.Medium,
		Campaign: payload.Campaign,
	})
	if !ok {
		return nil, nil
	}
	// clicks may convert after the campaign closes, within the lookback
	if !campaign.Window.ContainsWithGrace(ev.ObservedAt, m.cfg.Lookback) {
		return nil, nil
	}
	return []domain.CandidateMatch{{
		EventID:    ev.EventID,
		CampaignID: campaign.ID,
		Method:     domain.MethodUTM,
		Confidence: m.cfg.UTMConfidence,
		MatchedAt:  ev.ObservedAt,
	}}, nil
}

// directMatcher: no identifier on the event. Falls back to the subject's
// last known touch inside the lookback, then to a still-active hinted
// campaign. Low confidence either way.
type directMatcher struct {
	catalog CampaignCatalog
	touches ports.TouchIndexPort
	cfg     MatcherConfig
}

func (m *directMatcher) Method() domain.Method { return domain.MethodDirect }

func (m *directMatcher) Match(ctx context.Context, ev domain.AttributionEvent) ([]domain.CandidateMatch, error) {
	subject := ev.Conversion.SubjectKey()
	since := ev.ObservedAt.Add(-m.cfg.Lookback)

	touch, found, err := m.touches.LastTouch(ctx, subject, since)
	if err != nil {
		return nil, err
	}
	if found {
		return []domain.CandidateMatch{{
			EventID:    ev.EventID,
			CampaignID: touch.CampaignID,
			Method:     domain.MethodDirect,
			Confidence: m.cfg.DirectConfidence,
			MatchedAt:  ev.ObservedAt,
		}}, nil
	}

	if ev.CampaignHint != "" {
		campaign, ok := m.catalog.ByID(ev.CampaignHint)
		if ok && campaign.Window.Contains(ev.ObservedAt) {
			return []domain.CandidateMatch{{
				EventID:    ev.EventID,
				CampaignID: campaign.ID,
				Method:     domain.MethodDirect,
				Confidence: m.cfg.DirectConfidence,
				MatchedAt:  ev.ObservedAt,
			}}, nil
		}
	}

	return nil, nil
}

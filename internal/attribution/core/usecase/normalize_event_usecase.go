package usecase

import (
	"strings"
	"time"

	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/observability"
)

// RawEvent is the ingestion-side payload before normalization.
type RawEvent struct {
	EventID     string
	CampaignID  string // optional hint, may be wrong
	SourceID    string
	Timestamp   time.Time
	Method      string
	PromoCode   string
	PixelID     string
	Fingerprint string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	ConvType    string
	ConvValue   float64
	ConvUserID  string
	ConvSession string
}

// NormalizeEventUseCase converts raw payloads into canonical events.
// Pure transform: malformed input is rejected, counted, never retried.
type NormalizeEventUseCase struct {
	metrics *observability.Metrics
	now     func() time.Time
}

func NewNormalizeEventUseCase(metrics *observability.Metrics) *NormalizeEventUseCase {
	return &NormalizeEventUseCase{metrics: metrics, now: time.Now}
}

func (uc *NormalizeEventUseCase) Execute(in RawEvent) (domain.AttributionEvent, error) {
	if err := uc.validate(in); err != nil {
		uc.metrics.Rejected.Inc()
		return domain.AttributionEvent{}, err
	}

	method := domain.Method(in.Method)
	var payload domain.MethodPayload
	switch method {
	case domain.MethodPromoCode:
		payload = domain.PromoCodePayload{Code: strings.TrimSpace(in.PromoCode)}
	case domain.MethodPixel:
		payload = domain.PixelPayload{PixelID: in.PixelID, Fingerprint: in.Fingerprint}
	case domain.MethodUTM:
		payload = domain.UTMPayload{Source: in.UTMSource, Medium: in.UTMMedium, Campaign: in.UTMCampaign}
	case domain.MethodDirect:
		payload = domain.DirectPayload{}
	}

	return domain.AttributionEvent{
		EventID:      in.EventID,
		CampaignHint: in.CampaignID,
		SourceID:     in.SourceID,
		Method:       method,
		Payload:      payload,
		ObservedAt:   in.Timestamp.UTC(),
		ReceivedAt:   uc.now().UTC(),
		Conversion: domain.Conversion{
			Type:      in.ConvType,
			Value:     in.ConvValue,
			UserID:    in.ConvUserID,
			SessionID: in.ConvSession,
		},
	}, nil
}

func (uc *NormalizeEventUseCase) validate(in RawEvent) error {
	if in.EventID == "" {
		return &domain.ValidationError{Field: "event_id", Reason: "is required"}
	}
	if in.Timestamp.IsZero() {
		return &domain.ValidationError{Field: "timestamp", Reason: "is required"}
	}
	if in.ConvType == "" {
		return &domain.ValidationError{Field: "conversion_data.conversion_type", Reason: "is required"}
	}
	if in.ConvValue < 0 {
		return &domain.ValidationError{Field: "conversion_data.conversion_value", Reason: "must not be negative"}
	}
	if in.ConvUserID == "" && in.ConvSession == "" {
		return &domain.ValidationError{Field: "conversion_data", Reason: "needs user_id or session_id"}
	}

	method := domain.Method(in.Method)
	if !method.Valid() {
		return &domain.ValidationError{Field: "attribution_method", Reason: "is unknown"}
	}

	switch method {
	case domain.MethodPromoCode:
		if strings.TrimSpace(in.PromoCode) == "" {
			return &domain.ValidationError{Field: "promo_code", Reason: "is required"}
		}
	case domain.MethodPixel:
		if in.PixelID == "" {
			return &domain.ValidationError{Field: "pixel_id", Reason: "is required"}
		}
		if in.Fingerprint == "" {
			return &domain.ValidationError{Field: "session_id", Reason: "is required for pixel events"}
		}
	case domain.MethodUTM:
		if in.UTMSource == "" || in.UTMCampaign == "" {
			return &domain.ValidationError{Field: "utm_source/utm_campaign", Reason: "are required"}
		}
	case domain.MethodDirect:
		// conversion data alone is enough
	}

	return nil
}

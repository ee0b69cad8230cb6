package domain

import "time"

// Method is the closed set of tracking methods an event can arrive with.
type Method string

const (
	MethodPromoCode Method = "promo_code"
	MethodPixel     Method = "pixel"
	MethodUTM       Method = "utm"
	MethodDirect    Method = "direct"
)

func (m Method) Valid() bool {
	switch m {
	case MethodPromoCode, MethodPixel, MethodUTM, MethodDirect:
		return true
	default:
		return false
	}
}

// MethodPayload is a sealed variant: exactly one implementation per
// Method, each carrying only its own required fields.
type MethodPayload interface {
	PayloadMethod() Method
}

type PromoCodePayload struct {
	Code string
}

func (PromoCodePayload) PayloadMethod() Method { return MethodPromoCode }

type PixelPayload struct {
	PixelID string
	// Fingerprint identifies the session/device the pixel fired for.
	Fingerprint string
}

func (PixelPayload) PayloadMethod() Method { return MethodPixel }

type UTMPayload struct {
	Source   string
	Medium   string
	Campaign string
}

func (UTMPayload) PayloadMethod() Method { return MethodUTM }

type DirectPayload struct{}

func (DirectPayload) PayloadMethod() Method { return MethodDirect }

// Conversion is the monetary outcome carried by an event.
type Conversion struct {
	Type      string
	Value     float64
	UserID    string
	SessionID string
}

// SubjectKey identifies who converted: the user when known, otherwise
// the session.
func (c Conversion) SubjectKey() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.SessionID
}

// AttributionEvent is the canonical form of one reported conversion.
// Created once by the normalizer and never mutated.
type AttributionEvent struct {
	EventID      string
	CampaignHint string
	SourceID     string
	Method       Method
	Payload      MethodPayload
	ObservedAt   time.Time
	ReceivedAt   time.Time
	Conversion   Conversion
}

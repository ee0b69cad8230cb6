package fiber

// IngestEventRequest is the wire shape delivered by the ingestion
// collaborator (at-least-once, unordered).
// @Description Conversion event payload
type IngestEventRequest struct {
	EventID           string            `json:"event_id"`
	CampaignID        string            `json:"campaign_id,omitempty"`
	SourceID          string            `json:"source_id"`
	Timestamp         string            `json:"timestamp"` // ISO-8601
	AttributionMethod string            `json:"attribution_method"`
	PromoCode         string            `json:"promo_code,omitempty"`
	PixelID           string            `json:"pixel_id,omitempty"`
	UTMSource         string            `json:"utm_source,omitempty"`
	UTMMedium         string            `json:"utm_medium,omitempty"`
	UTMCampaign       string            `json:"utm_campaign,omitempty"`
	ConversionData    ConversionDataDTO `json:"conversion_data"`
}

type ConversionDataDTO struct {
	ConversionType  string  `json:"conversion_type"`
	ConversionValue float64 `json:"conversion_value"`
	UserID          string  `json:"user_id,omitempty"`
	SessionID       string  `json:"session_id,omitempty"`
}

type IngestEventResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
}

type BulkIngestRequest struct {
	Events []IngestEventRequest `json:"events"`
}

type BulkIngestResponse struct {
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Throttled int `json:"throttled"`
}

type ErrorResponse struct {
	Error   string `json:"error" example:"invalid_event"`
	Message string `json:"message,omitempty" example:"promo_code is required"`
}

package fiber

// CampaignReportResponse is the wire shape consumed by the reporting
// collaborator. ROI/ROAS are null when campaign cost is zero.
type CampaignReportResponse struct {
	CampaignID  string         `json:"campaign_id"`
	DateRange   DateRangeDTO   `json:"date_range"`
	Metrics     MetricsDTO     `json:"metrics"`
	DataQuality DataQualityDTO `json:"data_quality"`
	Timestamp   string         `json:"timestamp"`
}

type DateRangeDTO struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type MetricsDTO struct {
	TotalConversions float64  `json:"total_conversions"`
	ConversionValue  float64  `json:"conversion_value"`
	ROI              *float64 `json:"roi"`
	ROAS             *float64 `json:"roas"`
}

type DataQualityDTO struct {
	Completeness   float64 `json:"completeness"`
	Accuracy       float64 `json:"accuracy"`
	FreshnessHours float64 `json:"freshness_hours"`
}

type ErrorResponse struct {
	Error   string `json:"error" example:"invalid_report_query"`
	Message string `json:"message,omitempty"`
}

package fiber

import (
	"context"
	"errors"
	"net/http"
	"time"

	"attribution-engine/internal/reporting/core/domain"
	"attribution-engine/internal/reporting/core/usecase"

	"github.com/gofiber/fiber/v2"
)

type GetReportUseCase interface {
	Execute(ctx context.Context, in usecase.GetReportInput) (*domain.CampaignReport, error)
}

type ReportHandler struct {
	reportUC GetReportUseCase
}

func NewReportHandler(reportUC GetReportUseCase) *ReportHandler {
	return &ReportHandler{reportUC: reportUC}
}

// GetCampaignReport godoc
// @Summary Campaign performance report
// @Description Derived ROI/ROAS and data quality for one campaign over a period. Metrics are eventually consistent and improve as late data resolves.
// @Tags Reports
// @Produce json
// @Param campaign_id path string true "Campaign id"
// @Param from query string true "Range start (RFC3339)"
// @Param to query string true "Range end (RFC3339)"
// @Success 200 {object} CampaignReportResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /reports/campaigns/{campaign_id} [get]
func (h *ReportHandler) GetCampaignReport(c *fiber.Ctx) error {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_report_query",
			Message: "from must be RFC3339",
		})
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_report_query",
			Message: "to must be RFC3339",
		})
	}

	report, err := h.reportUC.Execute(c.UserContext(), usecase.GetReportInput{
		CampaignID: c.Params("campaign_id"),
		From:       from,
		To:         to,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUnknownCampaign):
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{Error: "unknown_campaign"})
		case errors.Is(err, usecase.ErrInvalidReportQuery),
			errors.Is(err, usecase.ErrInvalidTimeRange):
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_report_query",
				Message: err.Error(),
			})
		default:
			return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Error: "internal_server_error"})
		}
	}

	return c.Status(http.StatusOK).JSON(toResponse(report))
}

func toResponse(r *domain.CampaignReport) CampaignReportResponse {
	return CampaignReportResponse{
		CampaignID: r.CampaignID,
		DateRange: DateRangeDTO{
			StartDate: r.From.UTC().Format(time.RFC3339),
			EndDate:   r.To.UTC().Format(time.RFC3339),
		},
		Metrics: MetricsDTO{
			TotalConversions: r.TotalConversions,
			ConversionValue:  r.ConversionValue,
			ROI:              r.ROI,
			ROAS:             r.ROAS,
		},
		DataQuality: DataQualityDTO{
			Completeness:   r.Quality.Completeness,
			Accuracy:       r.Quality.Accuracy,
			FreshnessHours: r.Quality.FreshnessHours,
		},
		Timestamp: r.GeneratedAt.UTC().Format(time.RFC3339),
	}
}

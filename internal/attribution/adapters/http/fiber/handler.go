package fiber

import (
	"errors"
	"net/http"
	"time"

	"attribution-engine/internal/attribution/core/domain"
	"attribution-engine/internal/attribution/core/usecase"

	"github.com/gofiber/fiber/v2"
)

// EventPipeline is the intake side of the sharded pipeline.
type EventPipeline interface {
	Enqueue(ev domain.AttributionEvent) error
}

type EventHandler struct {
	normalize *usecase.NormalizeEventUseCase
	pipeline  EventPipeline
}

func NewEventHandler(normalize *usecase.NormalizeEventUseCase, pipeline EventPipeline) *EventHandler {
	return &EventHandler{normalize: normalize, pipeline: pipeline}
}

// IngestEvent godoc
// @Summary Ingest a conversion event
// @Description Normalizes and queues one event for attribution. Redeliveries of the same event_id are resolved downstream as no-ops.
// @Tags Events
// @Accept json
// @Produce json
// @Param request body IngestEventRequest true "Event payload"
// @Success 202 {object} IngestEventResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse "Intake at capacity, retry later"
// @Router /events [post]
func (h *EventHandler) IngestEvent(c *fiber.Ctx) error {
	var req IngestEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_json"})
	}

	ev, err := h.normalizeOne(req)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_event",
				Message: vErr.Error(),
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Error: "internal_server_error"})
	}

	if err := h.pipeline.Enqueue(ev); err != nil {
		if errors.Is(err, usecase.ErrBusy) {
			return c.Status(http.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "busy",
				Message: "intake queue full, retry later",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Error: "internal_server_error"})
	}

	return c.Status(http.StatusAccepted).JSON(IngestEventResponse{
		Status:  "accepted",
		EventID: ev.EventID,
	})
}

// BulkIngestEvents godoc
// @Summary Bulk ingest conversion events
// @Description Accepts a batch; each event is normalized and queued individually. Invalid events are counted as rejected, full queues as throttled.
// @Tags Events
// @Accept json
// @Produce json
// @Param request body BulkIngestRequest true "Bulk payload"
// @Success 202 {object} BulkIngestResponse
// @Failure 400 {object} ErrorResponse
// @Router /events/bulk [post]
func (h *EventHandler) BulkIngestEvents(c *fiber.Ctx) error {
	var req BulkIngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_json"})
	}
	if len(req.Events) == 0 {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "events_list_required"})
	}

	var resp BulkIngestResponse
	for _, item := range req.Events {
		ev, err := h.normalizeOne(item)
		if err != nil {
			resp.Rejected++
			continue
		}
		if err := h.pipeline.Enqueue(ev); err != nil {
			resp.Throttled++
			continue
		}
		resp.Accepted++
	}

	return c.Status(http.StatusAccepted).JSON(resp)
}

func (h *EventHandler) normalizeOne(req IngestEventRequest) (domain.AttributionEvent, error) {
	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return domain.AttributionEvent{}, &domain.ValidationError{Field: "timestamp", Reason: "must be ISO-8601"}
		}
		ts = parsed
	}

	return h.normalize.Execute(usecase.RawEvent{
		EventID:     req.EventID,
		CampaignID:  req.CampaignID,
		SourceID:    req.SourceID,
		Timestamp:   ts,
		Method:      req.AttributionMethod,
		PromoCode:   req.PromoCode,
		PixelID:     req.PixelID,
		Fingerprint: req.ConversionData.SessionID,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		ConvType:    req.ConversionData.ConversionType,
		ConvValue:   req.ConversionData.ConversionValue,
		ConvUserID:  req.ConversionData.UserID,
		ConvSession: req.ConversionData.SessionID,
	})
}

package fiber

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attribution-engine/internal/reporting/core/domain"
	"attribution-engine/internal/reporting/core/usecase"

	"github.com/gofiber/fiber/v2"
)

type fakeReportUseCase struct {
	ExecuteFn func(ctx context.Context, in usecase.GetReportInput) (*domain.CampaignReport, error)
	lastInput usecase.GetReportInput
}

func (f *fakeReportUseCase) Execute(ctx context.Context, in usecase.GetReportInput) (*domain.CampaignReport, error) {
	f.lastInput = in
	return f.ExecuteFn(ctx, in)
}

func setupTestApp(uc GetReportUseCase) *fiber.App {
	app := fiber.New()
	h := NewReportHandler(uc)
	app.Get("/reports/campaigns/:campaign_id", h.GetCampaignReport)
	return app
}

func doRequest(t *testing.T, app *fiber.App, path string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()
	return resp, body
}

const reportPath = "/reports/campaigns/cmp_a?from=2026-03-01T00:00:00Z&to=2026-04-01T00:00:00Z"

func TestGetCampaignReport_Success(t *testing.T) {
	roi := 0.5
	roas := 1.5
	uc := &fakeReportUseCase{
		ExecuteFn: func(ctx context.Context, in usecase.GetReportInput) (*domain.CampaignReport, error) {
			return &domain.CampaignReport{
				CampaignID:       in.CampaignID,
				From:             in.From,
				To:               in.To,
				TotalConversions: 10,
				ConversionValue:  1500,
				Cost:             1000,
				ROI:              &roi,
				ROAS:             &roas,
				Quality: domain.DataQuality{
					Completeness:   0.9,
					Accuracy:       0.8,
					FreshnessHours: 2.5,
				},
				GeneratedAt: time.Now().UTC(),
			}, nil
		},
	}
	app := setupTestApp(uc)

	resp, body := doRequest(t, app, reportPath)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d (body: %s)", http.StatusOK, resp.StatusCode, string(body))
	}

	var respJSON CampaignReportResponse
	if err := json.Unmarshal(body, &respJSON); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if respJSON.CampaignID != "cmp_a" {
		t.Errorf("expected campaign_id=cmp_a, got %s", respJSON.CampaignID)
	}
	if respJSON.Metrics.TotalConversions != 10 || respJSON.Metrics.ConversionValue != 1500 {
		t.Errorf("unexpected metrics: %+v", respJSON.Metrics)
	}
	if respJSON.Metrics.ROI == nil || *respJSON.Metrics.ROI != 0.5 {
		t.Errorf("expected roi=0.5, got %v", respJSON.Metrics.ROI)
	}
	if respJSON.DataQuality.Completeness != 0.9 {
		t.Errorf("unexpected data quality: %+v", respJSON.DataQuality)
	}
	if respJSON.DateRange.StartDate != "2026-03-01T00:00:00Z" {
		t.Errorf("unexpected start date: %s", respJSON.DateRange.StartDate)
	}

	if uc.lastInput.CampaignID != "cmp_a" {
		t.Errorf("expected campaign id passed through, got %s", uc.lastInput.CampaignID)
	}
}

func TestGetCampaignReport_NullROIWhenCostUnknown(t *testing.T) {
	uc := &fakeReportUseCase{
		ExecuteFn: func(ctx context.Context, in usecase.GetReportInput) (*domain.CampaignReport, error) {
			return &domain.CampaignReport{CampaignID: in.CampaignID, From: in.From, To: in.To}, nil
		},
	}
	app := setupTestApp(uc)

	resp, body := doRequest(t, app, reportPath)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d (body: %s)", http.StatusOK, resp.StatusCode, string(body))
	}

	var respJSON map[string]any
	if err := json.Unmarshal(body, &respJSON); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	metrics := respJSON["metrics"].(map[string]any)
	if metrics["roi"] != nil {
		t.Errorf("expected roi=null, got %v", metrics["roi"])
	}
	if metrics["roas"] != nil {
		t.Errorf("expected roas=null, got %v", metrics["roas"])
	}
}

func TestGetCampaignReport_BadTimeRange(t *testing.T) {
	app := setupTestApp(&fakeReportUseCase{
		ExecuteFn: func(ctx context.Context, in usecase.GetReportInput) (*domain.CampaignReport, error) {
			t.Fatalf("usecase must not run on a malformed query")
			return nil, nil
		},
	})

	resp, body := doRequest(t, app, "/reports/campaigns/cmp_a?from=yesterday&to=2026-04-01T00:00:00Z")

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d (body: %s)", http.StatusBadRequest, resp.StatusCode, string(body))
	}

	var respJSON map[string]any
	if err := json.Unmarshal(body, &respJSON); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if respJSON["error"] != "invalid_report_query" {
		t.Errorf("expected error=invalid_report_query, got %v", respJSON["error"])
	}
}

func TestGetCampaignReport_InvertedRange(t *testing.T) {
	uc := &fakeReportUseCase{
		ExecuteFn: func(ctx context.Context, in usecase.GetReportInput) (*domain.CampaignReport, error) {
			return nil, usecase.ErrInvalidTimeRange
		},
	}
	app := setupTestApp(uc)

	resp, body := doRequest(t, app, "/reports/campaigns/cmp_a?from=2026-04-01T00:00:00Z&to=2026-03-01T00:00:00Z")

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d (body: %s)", http.StatusBadRequest, resp.StatusCode, string(body))
	}
}

func TestGetCampaignReport_UnknownCampaign(t *testing.T) {
	uc := &fakeReportUseCase{
		ExecuteFn: func(ctx context.Context, in usecase.GetReportInput) (*domain.CampaignReport, error) {
			return nil, usecase.ErrUnknownCampaign
		},
	}
	app := setupTestApp(uc)

	resp, body := doRequest(t, app, reportPath)

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d (body: %s)", http.StatusNotFound, resp.StatusCode, string(body))
	}

	var respJSON map[string]any
	if err := json.Unmarshal(body, &respJSON); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if respJSON["error"] != "unknown_campaign" {
		t.Errorf("expected error=unknown_campaign, got %v", respJSON["error"])
	}
}

func TestGetCampaignReport_InternalError(t *testing.T) {
	uc := &fakeReportUseCase{
		ExecuteFn: func(ctx context.Context, in usecase.GetReportInput) (*domain.CampaignReport, error) {
			return nil, context.DeadlineExceeded
		},
	}
	app := setupTestApp(uc)

	resp, body := doRequest(t, app, reportPath)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d (body: %s)", http.StatusInternalServerError, resp.StatusCode, string(body))
	}
}

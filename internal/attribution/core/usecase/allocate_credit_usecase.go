package usecase

import (
	"errors"
	"fmt"
	"math"
	"time"

	"attribution-engine/internal/attribution/core/domain"
)

// Model selects how credit is split across touchpoints.
type Model string

const (
	ModelLastTouch  Model = "last_touch"
	ModelFirstTouch Model = "first_touch"
	ModelLinear     Model = "linear"
	ModelTimeDecay  Model = "time_decay"
)

func ParseModel(s string) (Model, error) {
	switch Model(s) {
	case ModelLastTouch, ModelFirstTouch, ModelLinear, ModelTimeDecay:
		return Model(s), nil
	default:
		return "", fmt.Errorf("unknown attribution model %q", s)
	}
}

type AllocatorConfig struct {
	Model Model
	// HalfLife drives time_decay: weight_i = exp(-t_i / halflife).
	HalfLife time.Duration
}

// AllocateCreditUseCase distributes fractional credit for one conversion.
// Output weights always sum to 1 within 1e-6, or are empty for a record
// with no touchpoints.
type AllocateCreditUseCase struct {
	cfg AllocatorConfig
}

// NewAllocateCreditUseCase rejects unset models: the model is a required
// configuration input, never an implicit default.
func NewAllocateCreditUseCase(cfg AllocatorConfig) (*AllocateCreditUseCase, error) {
	if _, err := ParseModel(string(cfg.Model)); err != nil {
		return nil, err
	}
	if cfg.Model == ModelTimeDecay && cfg.HalfLife <= 0 {
		return nil, errors.New("time_decay requires a positive half-life")
	}
	return &AllocateCreditUseCase{cfg: cfg}, nil
}

func (uc *AllocateCreditUseCase) Execute(rec *domain.ConversionRecord) []domain.AttributionResult {
	touchpoints := rec.Touchpoints
	n := len(touchpoints)
	if n == 0 {
		return nil
	}

	weights := make([]float64, n)
	switch uc.cfg.Model {
	case ModelLastTouch:
		weights[lastIndex(touchpoints)] = 1.0
	case ModelFirstTouch:
		weights[firstIndex(touchpoints)] = 1.0
	case ModelLinear:
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}
	case ModelTimeDecay:
		convertedAt := touchpoints[lastIndex(touchpoints)].MatchedAt
		var sum float64
		for i, tp := range touchpoints {
			elapsed := convertedAt.Sub(tp.MatchedAt)
			weights[i] = math.Exp(-float64(elapsed) / float64(uc.cfg.HalfLife))
			sum += weights[i]
		}
		for i := range weights {
			weights[i] /= sum
		}
	}

	results := make([]domain.AttributionResult, 0, n)
	for i, tp := range touchpoints {
		if weights[i] == 0 {
			continue
		}
		results = append(results, domain.AttributionResult{
			ConversionID: rec.ID,
			CampaignID:   tp.CampaignID,
			Weight:       weights[i],
			Confidence:   tp.Confidence,
		})
	}
	return mergePerCampaign(results)
}

// mergePerCampaign folds multiple touchpoints of the same campaign into
// one result, confidence averaged by weight.
func mergePerCampaign(results []domain.AttributionResult) []domain.AttributionResult {
	merged := make([]domain.AttributionResult, 0, len(results))
	index := map[string]int{}
	for _, r := range results {
		if i, ok := index[r.CampaignID]; ok {
			total := merged[i].Weight + r.Weight
			merged[i].Confidence = (merged[i].Confidence*merged[i].Weight + r.Confidence*r.Weight) / total
			merged[i].Weight = total
			continue
		}
		index[r.CampaignID] = len(merged)
		merged = append(merged, r)
	}
	return merged
}

func lastIndex(tps []domain.CandidateMatch) int {
	best := 0
	for i, tp := range tps {
		if tp.MatchedAt.After(tps[best].MatchedAt) {
			best = i
		}
	}
	return best
}

func firstIndex(tps []domain.CandidateMatch) int {
	best := 0
	for i, tp := range tps {
		if tp.MatchedAt.Before(tps[best].MatchedAt) {
			best = i
		}
	}
	return best
}

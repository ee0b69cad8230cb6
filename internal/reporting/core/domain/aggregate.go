package domain

import (
	"fmt"
	"time"
)

// BucketSize is the aggregate time bucket resolution.
const BucketSize = time.Hour

// Bucket truncates an event time to its aggregate bucket.
func Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(BucketSize)
}

// Delta is one signed, idempotent contribution to an aggregate bucket.
// Amendments produce negative components.
type Delta struct {
	// LedgerKey makes application idempotent; re-applying the same key is
	// a no-op. Shape: conversion_id|campaign_id|revision.
	LedgerKey  string
	CampaignID string // "" is the synthetic unattributed bucket
	Bucket     time.Time
	// Conversions is the weight delta; a full unattributed conversion is 1.
	Conversions      float64
	Value            float64
	ConfidenceWeight float64
	// EventAt feeds bucket freshness.
	EventAt time.Time
}

func LedgerKey(conversionID, campaignID string, revision int) string {
	return fmt.Sprintf("%s|%s|%d", conversionID, campaignID, revision)
}

// CampaignMetricsAggregate is the long-lived per-(campaign, bucket)
// fold of attribution results. Owned exclusively by the aggregation
// engine; never deleted, only corrected by compensating deltas.
type CampaignMetricsAggregate struct {
	CampaignID       string
	Bucket           time.Time
	Conversions      float64
	ConversionValue  float64
	ConfidenceWeight float64
	LastEventAt      time.Time
	UpdatedAt        time.Time
}

// DataQuality qualifies a report so consumers can judge trust.
type DataQuality struct {
	// Completeness: fraction of all conversions in range that carried at
	// least one campaign attribution.
	Completeness float64
	// Accuracy proxy: confidence-weighted mean of the touchpoints behind
	// this campaign's credit.
	Accuracy float64
	// FreshnessHours: age of the newest event folded into the range.
	FreshnessHours float64
}

// CampaignReport is the per-campaign, per-period output aggregate.
// ROI and ROAS are nil when campaign cost is zero (undefined, not an
// error).
type CampaignReport struct {
	CampaignID       string
	From             time.Time
	To               time.Time
	TotalConversions float64
	ConversionValue  float64
	Cost             float64
	ROI              *float64
	ROAS             *float64
	Quality          DataQuality
	GeneratedAt      time.Time
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPPort    string
	AppMode     string
	PostgresDSN string

	// Campaign config cache
	CacheTTL          time.Duration
	CacheRefreshEvery time.Duration
	// How far back campaign windows are loaded, so recently-ended campaigns
	// stay matchable through grace and lookback periods.
	CampaignRetention time.Duration

	// Matching
	PromoConfidence    float64
	PromoGrace         time.Duration
	PixelMaxConfidence float64
	PixelMinConfidence float64
	UTMConfidence      float64
	DirectConfidence   float64
	Lookback           time.Duration

	// Dedup / recompute
	DedupWindow      time.Duration
	RecomputeHorizon time.Duration

	// Allocation. The model has no hidden default: it must be configured.
	AttributionModel string
	DecayHalfLife    time.Duration

	// Pipeline
	Shards     int
	QueueSize  int
	SweepEvery time.Duration

	// Aggregate store retries
	RetryBase       time.Duration
	RetryMaxRetries int
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", ":8080"),
		AppMode:  strings.ToLower(getEnv("APP_MODE", "dev")),

		CacheTTL:          parseDurationEnv("CAMPAIGN_CACHE_TTL", 5*time.Minute),
		CacheRefreshEvery: parseDurationEnv("CAMPAIGN_CACHE_REFRESH", 60*time.Second),
		CampaignRetention: parseDurationEnv("CAMPAIGN_RETENTION", 8*24*time.Hour),

		PromoConfidence:    parseFloatEnv("PROMO_CONFIDENCE", 0.95),
		PromoGrace:         parseDurationEnv("PROMO_GRACE", 24*time.Hour),
		PixelMaxConfidence: parseFloatEnv("PIXEL_MAX_CONFIDENCE", 0.9),
		PixelMinConfidence: parseFloatEnv("PIXEL_MIN_CONFIDENCE", 0.3),
		UTMConfidence:      parseFloatEnv("UTM_CONFIDENCE", 0.7),
		DirectConfidence:   parseFloatEnv("DIRECT_CONFIDENCE", 0.3),
		Lookback:           parseDurationEnv("ATTRIBUTION_LOOKBACK", 7*24*time.Hour),

		DedupWindow:      parseDurationEnv("DEDUP_WINDOW", 5*time.Minute),
		RecomputeHorizon: parseDurationEnv("RECOMPUTE_HORIZON", 7*24*time.Hour),

		DecayHalfLife: parseDurationEnv("DECAY_HALFLIFE", 24*time.Hour),

		Shards:     parseIntEnv("PIPELINE_SHARDS", 4),
		QueueSize:  parseIntEnv("PIPELINE_QUEUE_SIZE", 1024),
		SweepEvery: parseDurationEnv("PIPELINE_SWEEP_EVERY", 30*time.Second),

		RetryBase:       parseDurationEnv("STORE_RETRY_BASE", 100*time.Millisecond),
		RetryMaxRetries: parseIntEnv("STORE_RETRY_MAX", 4),
	}

	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}

	cfg.AttributionModel = os.Getenv("ATTRIBUTION_MODEL")
	if cfg.AttributionModel == "" {
		return nil, fmt.Errorf("ATTRIBUTION_MODEL is required (last_touch, first_touch, linear, time_decay)")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloatEnv(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

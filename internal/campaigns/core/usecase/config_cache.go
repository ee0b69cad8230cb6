package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"attribution-engine/internal/campaigns/core/domain"
	"attribution-engine/internal/campaigns/core/ports"
	"attribution-engine/internal/platform/logger"
)

// ConfigCacheOptions tune the read-through campaign cache.
type ConfigCacheOptions struct {
	// TTL bounds how stale a snapshot may be before lookups start missing.
	TTL time.Duration
	// RefreshEvery is the background refresh period.
	RefreshEvery time.Duration
	// Retention is how far back campaign windows are loaded, so campaigns
	// that ended recently stay matchable through grace/lookback periods.
	Retention time.Duration
}

// ConfigCache is a read-through, TTL-bound view of campaign definitions.
// The hot path only ever takes the read lock; refresh swaps the whole
// snapshot under the write lock, so readers never block on the source.
type ConfigCache struct {
	source ports.CampaignSourcePort
	opts   ConfigCacheOptions
	log    *logger.Logger
	now    func() time.Time

	mu       sync.RWMutex
	byID     map[string]domain.Campaign
	byPromo  map[string]string // lowercased code -> campaign id
	byPixel  map[string]string
	byUTM    map[domain.UTMKey]string
	loadedAt time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewConfigCache(source ports.CampaignSourcePort, opts ConfigCacheOptions, log *logger.Logger) *ConfigCache {
	return &ConfigCache{
		source:  source,
		opts:    opts,
		log:     log,
		now:     time.Now,
		byID:    map[string]domain.Campaign{},
		byPromo: map[string]string{},
		byPixel: map[string]string{},
		byUTM:   map[domain.UTMKey]string{},
		stop:    make(chan struct{}),
	}
}

// Refresh reloads the snapshot from the source. Safe to call manually.
func (c *ConfigCache) Refresh(ctx context.Context) error {
	now := c.now()
	campaigns, err := c.source.FetchWindow(ctx, now.Add(-c.opts.Retention), now)
	if err != nil {
		return err
	}

	byID := make(map[string]domain.Campaign, len(campaigns))
	byPromo := map[string]string{}
	byPixel := map[string]string{}
	byUTM := map[domain.UTMKey]string{}

	for _, cmp := range campaigns {
		byID[cmp.ID] = cmp
		for _, code := range cmp.PromoCodes {
			byPromo[NormalizePromoCode(code)] = cmp.ID
		}
		for _, pid := range cmp.PixelIDs {
			byPixel[pid] = cmp.ID
		}
		for _, u := range cmp.UTMs {
			byUTM[normalizeUTM(u)] = cmp.ID
		}
	}

	c.mu.Lock()
	c.byID = byID
	c.byPromo = byPromo
	c.byPixel = byPixel
	c.byUTM = byUTM
	c.loadedAt = now
	c.mu.Unlock()

	c.log.Debug("campaign cache refreshed", "campaigns", len(campaigns))
	return nil
}

// Start launches the background refresh loop.
func (c *ConfigCache) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.opts.RefreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := c.Refresh(ctx); err != nil {
					c.log.Warn("campaign cache refresh failed", "err", err)
				}
				cancel()
			case <-c.stop:
				return
			}
		}
	}()
}

func (c *ConfigCache) Stop() {
	close(c.stop)
	c.wg.Wait()
}

// fresh reports whether the snapshot is within TTL. Expired snapshots
// miss on every lookup rather than serve arbitrarily stale campaigns.
func (c *ConfigCache) fresh() bool {
	return !c.loadedAt.IsZero() && c.now().Sub(c.loadedAt) <= c.opts.TTL
}

func (c *ConfigCache) ByID(id string) (domain.Campaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.fresh() {
		return domain.Campaign{}, false
	}
	cmp, ok := c.byID[id]
	return cmp, ok
}

func (c *ConfigCache) ByPromoCode(code string) (domain.Campaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.fresh() {
		return domain.Campaign{}, false
	}
	id, ok := c.byPromo[NormalizePromoCode(code)]
	if !ok {
		return domain.Campaign{}, false
	}
	return c.byID[id], true
}

func (c *ConfigCache) ByPixelID(pixelID string) (domain.Campaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.fresh() {
		return domain.Campaign{}, false
	}
	id, ok := c.byPixel[pixelID]
	if !ok {
		return domain.Campaign{}, false
	}
	return c.byID[id], true
}

func (c *ConfigCache) ByUTM(key domain.UTMKey) (domain.Campaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.fresh() {
		return domain.Campaign{}, false
	}
	id, ok := c.byUTM[normalizeUTM(key)]
	if !ok {
		return domain.Campaign{}, false
	}
	return c.byID[id], true
}

// NormalizePromoCode lowercases and trims a promo code for comparison.
func NormalizePromoCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func normalizeUTM(k domain.UTMKey) domain.UTMKey {
	return domain.UTMKey{
		Source:   strings.ToLower(strings.TrimSpace(k.Source)),
		Medium:   strings.ToLower(strings.TrimSpace(k.Medium)),
		Campaign: strings.ToLower(strings.TrimSpace(k.Campaign)),
	}
}

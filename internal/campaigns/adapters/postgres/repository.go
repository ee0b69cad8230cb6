package postgres

import (
	"context"
	"encoding/json"
	"time"

	"attribution-engine/internal/campaigns/core/domain"
	"attribution-engine/internal/campaigns/core/ports"

	"github.com/lib/pq"
)

// CampaignRepository reads campaign definitions owned by the external
// campaign management system. This side never writes.
type CampaignRepository struct {
	db DB
}

func NewCampaignRepository(db DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

var _ ports.CampaignSourcePort = (*CampaignRepository)(nil)

const fetchWindowSQL = `
SELECT
    id,
    name,
    window_start,
    window_end,
    cost,
    promo_codes,
    pixel_ids,
    utm_tuples
FROM campaigns
WHERE window_end >= $1 AND window_start <= $2
ORDER BY id`

type utmTupleRow struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
}

func (r *CampaignRepository) FetchWindow(ctx context.Context, from, to time.Time) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, fetchWindowSQL, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var (
			c        domain.Campaign
			codes    pq.StringArray
			pixels   pq.StringArray
			utmBytes []byte
		)
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Window.Start,
			&c.Window.End,
			&c.Cost,
			&codes,
			&pixels,
			&utmBytes,
		); err != nil {
			return nil, err
		}

		c.PromoCodes = codes
		c.PixelIDs = pixels

		if len(utmBytes) > 0 {
			var tuples []utmTupleRow
			if err := json.Unmarshal(utmBytes, &tuples); err != nil {
				return nil, err
			}
			for _, t := range tuples {
				c.UTMs = append(c.UTMs, domain.UTMKey{
					Source:   t.Source,
					Medium:   t.Medium,
					Campaign: t.Campaign,
				})
			}
		}

		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

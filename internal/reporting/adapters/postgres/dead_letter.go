package postgres

import (
	"context"
	"encoding/json"

	"attribution-engine/internal/reporting/core/domain"
	"attribution-engine/internal/reporting/core/ports"
)

// DeadLetterRepository parks deltas that exhausted their retries for
// manual replay.
type DeadLetterRepository struct {
	db DB
}

func NewDeadLetterRepository(db DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

var _ ports.DeadLetterPort = (*DeadLetterRepository)(nil)

const insertDeadLetterSQL = `
INSERT INTO dead_letters (ledger_key, payload, reason, created_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (ledger_key) DO NOTHING;
`

func (r *DeadLetterRepository) Store(ctx context.Context, d domain.Delta, reason string) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertDeadLetterSQL, d.LedgerKey, payload, reason)
	return err
}

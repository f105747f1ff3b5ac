// Package stockfeed ingests on-hand quantities from the external
// inventory feed. The feed owns stock levels; the allocation engine
// only ever reads the snapshot this package maintains.
package stockfeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Item is one feed entry: the quantity fully replaces the stored value
// for that SKU.
type Item struct {
	SKU    string `json:"sku" db:"sku"`
	Qty    int    `json:"qty" db:"qty"`
	MinQty int    `json:"min_qty" db:"min_qty"`
}

// Result describes one completed sync batch.
type Result struct {
	BatchID string `json:"batch_id"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
}

// Syncer writes stock snapshots in bulk.
type Syncer struct {
	db *sqlx.DB
}

func NewSyncer(db *sqlx.DB) *Syncer {
	return &Syncer{db: db}
}

const upsertStockQuery = `
	INSERT INTO stocks (sku, qty, min_qty, updated_at)
	VALUES (:sku, :qty, :min_qty, :updated_at)
	ON CONFLICT (sku) DO UPDATE
	SET qty = EXCLUDED.qty, min_qty = EXCLUDED.min_qty, updated_at = EXCLUDED.updated_at
`

type stockUpsert struct {
	Item
	UpdatedAt time.Time `db:"updated_at"`
}

// Sync replaces the on-hand quantity for every SKU in the payload
// within one transaction. Entries without a SKU or with a negative
// quantity are skipped and counted, not fatal: one bad feed row must
// not lose the rest of the snapshot.
func (s *Syncer) Sync(ctx context.Context, items []Item) (Result, error) {
	batchID, err := uuid.NewV4()
	if err != nil {
		return Result{}, fmt.Errorf("stockfeed: failed to generate batch id: %w", err)
	}
	result := Result{BatchID: batchID.String()}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("stockfeed: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Str("batch_id", result.BatchID).Msg("stockfeed: rollback failed")
			}
		}
	}()

	now := time.Now().UTC()
	for _, item := range items {
		item.SKU = strings.TrimSpace(item.SKU)
		if item.SKU == "" || item.Qty < 0 || item.MinQty < 0 {
			result.Skipped++
			continue
		}
		if _, err = tx.NamedExecContext(ctx, upsertStockQuery, stockUpsert{Item: item, UpdatedAt: now}); err != nil {
			return Result{}, fmt.Errorf("stockfeed: failed to upsert stock for %s: %w", item.SKU, err)
		}
		result.Updated++
	}

	if err = tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("stockfeed: failed to commit batch %s: %w", result.BatchID, err)
	}

	log.Info().
		Str("batch_id", result.BatchID).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("stockfeed: stock snapshot synced")
	return result, nil
}

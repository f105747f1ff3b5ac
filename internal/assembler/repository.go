package assembler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresRepository reads the joined open-line universe from Postgres.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const openLinesQuery = `
	SELECT ol.id, ol.order_id, ol.sku, ol.qty,
	       COALESCE(ol.item_name, ''), ol.order_time,
	       COALESCE(ol.logistic_type, ''), ol.import_date,
	       ol.accepted, ol.accepted_at, COALESCE(ol.accepted_by, ''),
	       s.id, s.name, s.channel,
	       COALESCE(p.brand, ''), COALESCE(p.model, ''),
	       COALESCE(st.qty, 0), COALESCE(st.min_qty, 0),
	       sa.order_id IS NOT NULL, COALESCE(sa.status, '')
	FROM order_lines ol
	JOIN shops s ON s.id = ol.shop_id
	LEFT JOIN products p ON p.sku = ol.sku
	LEFT JOIN stocks st ON st.sku = ol.sku
	LEFT JOIN sales sa ON sa.order_id = ol.order_id
	WHERE ($1 = '' OR s.channel = $1)
	  AND ($2::bigint = 0 OR s.id = $2)
	ORDER BY ol.order_time ASC NULLS LAST, ol.id ASC
`

// OpenLines returns every order line in the channel/shop scope,
// denormalized with shop, product, stock, and downstream sales status.
// Date filtering deliberately does not happen here: backlogged lines
// must reach the engine to reserve stock.
func (r *PostgresRepository) OpenLines(ctx context.Context, channelName string, shopID int64) ([]LineRow, error) {
	rows, err := r.db.Query(ctx, openLinesQuery, channelName, shopID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query open lines: %w", err)
	}
	defer rows.Close()

	var result []LineRow
	for rows.Next() {
		var row LineRow
		err := rows.Scan(
			&row.LineID, &row.OrderID, &row.SKU, &row.Qty,
			&row.ItemName, &row.OrderTime,
			&row.Logistic, &row.ImportDate,
			&row.Accepted, &row.AcceptedAt, &row.AcceptedBy,
			&row.ShopID, &row.ShopName, &row.Channel,
			&row.Brand, &row.Model,
			&row.StockQty, &row.MinStock,
			&row.SalesReceived, &row.SalesStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan open line: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating open lines: %w", err)
	}
	return result, nil
}

// AcceptLine flips accepted false->true exactly once. A second accept
// returns ErrAlreadyAccepted instead of silently overwriting the first
// operator's name.
func (r *PostgresRepository) AcceptLine(ctx context.Context, lineID int64, operator string) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE order_lines
		SET accepted = TRUE, accepted_at = $2, accepted_by = $3
		WHERE id = $1 AND accepted = FALSE
	`, lineID, time.Now().UTC(), operator)
	if err != nil {
		log.Error().Err(err).Int64("line_id", lineID).Msg("repository: failed to accept order line")
		return fmt.Errorf("repository: failed to accept order line %d: %w", lineID, err)
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var accepted bool
	err = r.db.QueryRow(ctx, `SELECT accepted FROM order_lines WHERE id = $1`, lineID).Scan(&accepted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLineNotFound
		}
		return fmt.Errorf("repository: failed to check order line %d: %w", lineID, err)
	}
	if accepted {
		return ErrAlreadyAccepted
	}
	return fmt.Errorf("repository: accept of order line %d affected no rows", lineID)
}

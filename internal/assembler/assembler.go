// Package assembler joins the universe of open order lines with stock
// levels, shop metadata, the downstream fulfillment feed, and the two
// external order-id sets, producing the flat record list the allocation
// engine folds over.
//
// Date filters only decide what is shown. Consumption always runs over
// every open line, because an old backlogged order still reserves
// stock; the two concerns are kept apart via Record.Visible.
//
// Acceptance is a durable flag on the line, not a counter mutation, so
// a racing accept and allocation pass self-correct on the next refresh.
// Two operators accepting against the same final unit simultaneously is
// a known, accepted risk.
package assembler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/merchantops/fulfillment-desk/internal/allocation"
	"github.com/merchantops/fulfillment-desk/internal/channel"
)

var (
	ErrLineNotFound    = errors.New("order line not found")
	ErrAlreadyAccepted = errors.New("order line already accepted")
)

// Mode selects how the date filters apply.
type Mode string

const (
	// ModeDateFiltered shows only lines inside the requested ranges.
	ModeDateFiltered Mode = "dates"
	// ModeBacklogOnly shows every open line and drops closed ones.
	ModeBacklogOnly Mode = "backlog"
	// ModeAllTime shows everything.
	ModeAllTime Mode = "all"
)

// Filter describes the caller's requested view. Channel and ShopID scope
// the whole assembly; the date ranges affect visibility only.
type Filter struct {
	Channel string
	ShopID  int64
	Mode    Mode

	OrderFrom, OrderTo       *time.Time
	ImportFrom, ImportTo     *time.Time
	AcceptedFrom, AcceptedTo *time.Time
}

// LineRow is one denormalized join row from the store: order line plus
// shop, product, stock, and downstream sales status.
type LineRow struct {
	LineID     int64
	OrderID    string
	SKU        string
	Qty        int
	ItemName   string
	OrderTime  *time.Time
	Logistic   string
	ImportDate *time.Time
	Accepted   bool
	AcceptedAt *time.Time
	AcceptedBy string

	ShopID   int64
	ShopName string
	Channel  string

	Brand string
	Model string

	StockQty int
	MinStock int

	// SalesReceived distinguishes "order never reached the downstream
	// system" from "received with a blank status".
	SalesReceived bool
	SalesStatus   string
}

// Repository reads the joined open-line universe and records accept
// actions.
type Repository interface {
	OpenLines(ctx context.Context, channelName string, shopID int64) ([]LineRow, error)
	AcceptLine(ctx context.Context, lineID int64, operator string) error
}

// StatusSets looks up the two external order-id sets. Implementations
// return an error on backend unavailability; the assembler degrades
// that to an empty set.
type StatusSets interface {
	CancelledOrders(ctx context.Context) (map[string]struct{}, error)
	DispatchedOrders(ctx context.Context) (map[string]struct{}, error)
}

// Assembler produces allocation-ready record lists.
type Assembler struct {
	repo Repository
	sets StatusSets
}

func New(repo Repository, sets StatusSets) *Assembler {
	return &Assembler{repo: repo, sets: sets}
}

// Assemble returns every open order line in scope, annotated for the
// engine. Set lookups that fail are logged and treated as empty:
// partial data beats a dead dashboard.
func (a *Assembler) Assemble(ctx context.Context, f Filter) ([]allocation.Record, error) {
	rows, err := a.repo.OpenLines(ctx, channel.Normalize(f.Channel), f.ShopID)
	if err != nil {
		return nil, err
	}

	cancelled, err := a.sets.CancelledOrders(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("assembler: cancelled-set lookup failed, treating as empty")
		cancelled = map[string]struct{}{}
	}
	dispatched, err := a.sets.DispatchedOrders(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("assembler: dispatched-set lookup failed, treating as empty")
		dispatched = map[string]struct{}{}
	}

	records := make([]allocation.Record, 0, len(rows))
	for _, row := range rows {
		_, isCancelled := cancelled[row.OrderID]
		_, isDispatched := dispatched[row.OrderID]

		model := row.Model
		if model == "" {
			model = row.ItemName
		}

		records = append(records, allocation.Record{
			LineID:    row.LineID,
			OrderID:   row.OrderID,
			SKU:       row.SKU,
			Channel:   channel.Normalize(row.Channel),
			ShopID:    row.ShopID,
			ShopName:  row.ShopName,
			Brand:     row.Brand,
			Model:     model,
			Qty:       row.Qty,
			StockQty:  row.StockQty,
			MinStock:  row.MinStock,
			OrderTime: row.OrderTime,
			Logistic:  row.Logistic,

			ReceivedDownstream: row.SalesReceived,
			DownstreamStatus:   row.SalesStatus,
			DownstreamLabel:    downstreamLabel(row),

			Accepted:   row.Accepted,
			AcceptedBy: row.AcceptedBy,
			AcceptedAt: row.AcceptedAt,
			Cancelled:  isCancelled,
			Dispatched: isDispatched,

			Visible:      visible(row, f),
			HideWhenDone: f.Mode == ModeBacklogOnly,
		})
	}
	return records, nil
}

// Accept flips the line's accepted flag exactly once.
func (a *Assembler) Accept(ctx context.Context, lineID int64, operator string) error {
	return a.repo.AcceptLine(ctx, lineID, operator)
}

func downstreamLabel(row LineRow) string {
	switch {
	case !row.SalesReceived:
		return "awaiting downstream import"
	case row.SalesStatus == "":
		return "no sales order opened"
	default:
		return row.SalesStatus
	}
}

// visible applies the display-only filters. A line failing a filter is
// still assembled (it reserves stock); it just is not shown.
func visible(row LineRow, f Filter) bool {
	if f.Mode == ModeDateFiltered {
		if !within(row.ImportDate, f.ImportFrom, f.ImportTo, true) {
			return false
		}
		if !within(row.OrderTime, f.OrderFrom, f.OrderTo, false) {
			return false
		}
	}
	if f.AcceptedFrom != nil || f.AcceptedTo != nil {
		if !within(row.AcceptedAt, f.AcceptedFrom, f.AcceptedTo, false) {
			return false
		}
	}
	return true
}

// within checks a half-open range [from, to); inclusiveTo widens it to
// [from, to] for whole-day date columns. A nil value fails any set
// bound.
func within(v, from, to *time.Time, inclusiveTo bool) bool {
	if from == nil && to == nil {
		return true
	}
	if v == nil {
		return false
	}
	if from != nil && v.Before(*from) {
		return false
	}
	if to != nil {
		if inclusiveTo {
			if v.After(*to) {
				return false
			}
		} else if !v.Before(*to) {
			return false
		}
	}
	return true
}

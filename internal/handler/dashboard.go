package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/merchantops/fulfillment-desk/internal/allocation"
	"github.com/merchantops/fulfillment-desk/internal/assembler"
	"github.com/merchantops/fulfillment-desk/internal/stockfeed"
)

// Desk is the fulfillment core the handlers drive: assembly plus the
// accept action.
type Desk interface {
	Assemble(ctx context.Context, f assembler.Filter) ([]allocation.Record, error)
	Accept(ctx context.Context, lineID int64, operator string) error
}

// StockSyncer ingests stock snapshots.
type StockSyncer interface {
	Sync(ctx context.Context, items []stockfeed.Item) (stockfeed.Result, error)
}

// DashboardHandler exposes the fulfillment desk over HTTP. It is a thin
// wrapper: every decision lives in the core packages.
type DashboardHandler struct {
	desk   Desk
	engine *allocation.Engine
	syncer StockSyncer
}

func NewDashboardHandler(desk Desk, engine *allocation.Engine, syncer StockSyncer) *DashboardHandler {
	return &DashboardHandler{desk: desk, engine: engine, syncer: syncer}
}

type allocationResponse struct {
	Rows    []allocation.Record    `json:"rows"`
	Summary allocation.Summary     `json:"summary"`
	Quality allocation.DataQuality `json:"data_quality"`
}

// Allocation runs one allocation pass over the filtered view.
func (h *DashboardHandler) Allocation(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.desk.Assemble(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to assemble records")
		http.Error(w, "failed to load order lines", http.StatusInternalServerError)
		return
	}

	res := h.engine.Allocate(records)
	writeJSON(w, http.StatusOK, allocationResponse{
		Rows:    res.Visible,
		Summary: res.Summary,
		Quality: res.Quality,
	})
}

type lowStockResponse struct {
	Rows   []allocation.LowStockRow  `json:"rows"`
	Totals allocation.LowStockTotals `json:"totals"`
}

// LowStock renders the per-SKU shortfall report from the same
// allocation pass the dashboard uses, so the numbers always agree.
func (h *DashboardHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.Mode = assembler.ModeAllTime

	records, err := h.desk.Assemble(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to assemble records for low-stock report")
		http.Error(w, "failed to load order lines", http.StatusInternalServerError)
		return
	}

	res := h.engine.Allocate(records)
	report := allocation.LowStockReport(res.Visible, allocation.LowStockFilter{
		Keyword: r.URL.Query().Get("keyword"),
		Channel: filter.Channel,
		ShopID:  filter.ShopID,
	})
	writeJSON(w, http.StatusOK, lowStockResponse{
		Rows:   report,
		Totals: allocation.SummarizeLowStock(report),
	})
}

type acceptRequest struct {
	Operator string `json:"operator"`
}

// AcceptLine commits an operator to one order line.
func (h *DashboardHandler) AcceptLine(w http.ResponseWriter, r *http.Request) {
	lineID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid line id", http.StatusBadRequest)
		return
	}

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Operator == "" {
		http.Error(w, "operator is required", http.StatusBadRequest)
		return
	}

	if err := h.desk.Accept(r.Context(), lineID, req.Operator); err != nil {
		switch {
		case errors.Is(err, assembler.ErrLineNotFound):
			http.Error(w, "order line not found", http.StatusNotFound)
		case errors.Is(err, assembler.ErrAlreadyAccepted):
			http.Error(w, "order line already accepted", http.StatusConflict)
		default:
			log.Error().Err(err).Int64("line_id", lineID).Msg("handler: failed to accept order line")
			http.Error(w, "failed to accept order line", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type syncRequest struct {
	Items []stockfeed.Item `json:"items"`
}

// SyncStock replaces on-hand quantities from an inventory feed payload.
func (h *DashboardHandler) SyncStock(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "items are required", http.StatusBadRequest)
		return
	}

	res, err := h.syncer.Sync(r.Context(), req.Items)
	if err != nil {
		log.Error().Err(err).Msg("handler: stock sync failed")
		http.Error(w, "failed to sync stock", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("handler: failed to encode response")
	}
}

// parseFilter builds the assembler filter from query parameters. Mode
// defaults to date-filtered when any date bound is present, all-time
// otherwise.
func parseFilter(r *http.Request) (assembler.Filter, error) {
	q := r.URL.Query()

	f := assembler.Filter{Channel: q.Get("channel")}

	if raw := q.Get("shop_id"); raw != "" {
		shopID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, errors.New("invalid shop_id")
		}
		f.ShopID = shopID
	}

	var err error
	if f.OrderFrom, err = parseTimeParam(q.Get("order_from")); err != nil {
		return f, err
	}
	if f.OrderTo, err = parseTimeParam(q.Get("order_to")); err != nil {
		return f, err
	}
	if f.ImportFrom, err = parseTimeParam(q.Get("import_from")); err != nil {
		return f, err
	}
	if f.ImportTo, err = parseTimeParam(q.Get("import_to")); err != nil {
		return f, err
	}
	if f.AcceptedFrom, err = parseTimeParam(q.Get("accepted_from")); err != nil {
		return f, err
	}
	if f.AcceptedTo, err = parseTimeParam(q.Get("accepted_to")); err != nil {
		return f, err
	}

	switch q.Get("mode") {
	case "backlog":
		f.Mode = assembler.ModeBacklogOnly
	case "all":
		f.Mode = assembler.ModeAllTime
	case "", "dates":
		if hasDateBounds(f) {
			f.Mode = assembler.ModeDateFiltered
		} else {
			f.Mode = assembler.ModeAllTime
		}
	default:
		return f, errors.New("invalid mode")
	}

	return f, nil
}

func hasDateBounds(f assembler.Filter) bool {
	return f.OrderFrom != nil || f.OrderTo != nil || f.ImportFrom != nil || f.ImportTo != nil
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("invalid time value " + strconv.Quote(raw))
}

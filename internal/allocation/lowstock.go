package allocation

import (
	"sort"
	"strings"

	"github.com/merchantops/fulfillment-desk/internal/channel"
)

// LowStockFilter narrows the low-stock report. Zero values match
// everything.
type LowStockFilter struct {
	Keyword string
	Channel string
	ShopID  int64
}

// LowStockRow aggregates open demand against on-hand stock for one SKU.
type LowStockRow struct {
	SKU             string `json:"sku"`
	Brand           string `json:"brand"`
	Model           string `json:"model"`
	MinStock        int    `json:"min_stock"`
	OnHand          int    `json:"onhand"`
	Required        int    `json:"required_qty"`
	Orders          int    `json:"orders_count"`
	Available       int    `json:"available"`
	Shortage        int    `json:"shortage"`
	RemainAfterPick int    `json:"remain_after_pick"`
}

// LowStockTotals sums a low-stock report for the report footer.
type LowStockTotals struct {
	SKUs      int `json:"total_skus"`
	OnHand    int `json:"sum_onhand"`
	Available int `json:"sum_available"`
	Required  int `json:"sum_required"`
	Shortage  int `json:"sum_shortage"`
	Orders    int `json:"sum_orders"`
}

// LowStockReport folds post-allocation rows into per-SKU shortfall
// lines. Accepted and PACKED lines are out of the race, so they do not
// count as open demand. A SKU is low when demand outruns availability
// or when availability has fallen under its configured minimum. The
// dashboard and the low-stock report both call this, so their numbers
// always agree.
func LowStockReport(rows []Record, f LowStockFilter) []LowStockRow {
	kw := strings.ToLower(strings.TrimSpace(f.Keyword))
	// Record channels are already normalized; fold the filter onto the
	// same canonical name so aliases like "spx" still match.
	ch := channel.Normalize(f.Channel)

	bySKU := make(map[string]*LowStockRow)
	var order []string
	for i := range rows {
		r := &rows[i]
		if r.Accepted || r.AllocationStatus == StatusPacked {
			continue
		}
		if ch != "" && r.Channel != ch {
			continue
		}
		if f.ShopID != 0 && r.ShopID != f.ShopID {
			continue
		}
		if kw != "" && !matchesKeyword(r, kw) {
			continue
		}
		sku := strings.TrimSpace(r.SKU)
		if sku == "" {
			continue
		}

		row, ok := bySKU[sku]
		if !ok {
			row = &LowStockRow{
				SKU:      sku,
				Brand:    r.Brand,
				Model:    r.Model,
				MinStock: r.MinStock,
				OnHand:   r.StockQty,
			}
			bySKU[sku] = row
			order = append(order, sku)
		}
		row.Required += r.Qty
		row.Orders++
	}

	result := make([]LowStockRow, 0, len(bySKU))
	for _, sku := range order {
		row := bySKU[sku]
		row.Available = row.OnHand
		row.Shortage = max(0, row.Required-row.Available)
		row.RemainAfterPick = row.Available - row.Required

		isLow := row.Shortage > 0 || (row.MinStock > 0 && row.Available < row.MinStock)
		if isLow {
			result = append(result, *row)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Shortage != result[j].Shortage {
			return result[i].Shortage > result[j].Shortage
		}
		return result[i].SKU < result[j].SKU
	})

	return result
}

// SummarizeLowStock computes the footer totals for a report.
func SummarizeLowStock(report []LowStockRow) LowStockTotals {
	var t LowStockTotals
	t.SKUs = len(report)
	for _, row := range report {
		t.OnHand += row.OnHand
		t.Available += row.Available
		t.Required += row.Required
		t.Shortage += row.Shortage
		t.Orders += row.Orders
	}
	return t
}

func matchesKeyword(r *Record, kw string) bool {
	return strings.Contains(strings.ToLower(r.SKU), kw) ||
		strings.Contains(strings.ToLower(r.Brand), kw) ||
		strings.Contains(strings.ToLower(r.Model), kw)
}

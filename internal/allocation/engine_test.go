package allocation_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/merchantops/fulfillment-desk/internal/allocation"
	"github.com/merchantops/fulfillment-desk/internal/duedate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.December, 22, 10, 0, 0, 0, time.UTC) // Monday morning

func newTestEngine() *allocation.Engine {
	return allocation.NewEngine(duedate.NewCalendar(), allocation.Config{
		Now: func() time.Time { return testNow },
	})
}

// line builds a visible Shopee record with sane defaults.
func line(id int64, orderID, sku string, qty, stock int, offset time.Duration) allocation.Record {
	t := testNow.Add(-24*time.Hour + offset)
	return allocation.Record{
		LineID:    id,
		OrderID:   orderID,
		SKU:       sku,
		Channel:   "Shopee",
		Qty:       qty,
		StockQty:  stock,
		OrderTime: &t,
		Visible:   true,
	}
}

func statusOf(t *testing.T, res *allocation.Result, lineID int64) allocation.Status {
	t.Helper()
	for _, r := range res.Visible {
		if r.LineID == lineID {
			return r.AllocationStatus
		}
	}
	t.Fatalf("line %d not in visible result", lineID)
	return ""
}

func TestAllocateDrawsDownSharedStock(t *testing.T) {
	// Stock 5, requests [2, 2, 2] in priority order: the first two leave
	// 3 and 1 behind (both at or under the reserve threshold), the third
	// finds 1 < 2.
	eng := newTestEngine()
	res := eng.Allocate([]allocation.Record{
		line(1, "O1", "SKU-A", 2, 5, 0),
		line(2, "O2", "SKU-A", 2, 5, time.Minute),
		line(3, "O3", "SKU-A", 2, 5, 2*time.Minute),
	})

	assert.Equal(t, allocation.StatusLowStock, statusOf(t, res, 1))
	assert.Equal(t, allocation.StatusLowStock, statusOf(t, res, 2))
	assert.Equal(t, allocation.StatusNotEnough, statusOf(t, res, 3))
}

func TestAllocateZeroStockIsShortage(t *testing.T) {
	eng := newTestEngine()
	res := eng.Allocate([]allocation.Record{
		line(1, "O1", "SKU-A", 1, 0, 0),
		line(2, "O2", "SKU-A", 5, 0, time.Minute),
	})

	assert.Equal(t, allocation.StatusShortage, statusOf(t, res, 1))
	assert.Equal(t, allocation.StatusShortage, statusOf(t, res, 2))
}

func TestAllocateAmpleStock(t *testing.T) {
	eng := newTestEngine()
	res := eng.Allocate([]allocation.Record{
		line(1, "O1", "SKU-A", 2, 100, 0),
	})

	assert.Equal(t, allocation.StatusReadyAccept, statusOf(t, res, 1))
}

func TestAllocateCancelledBeatsAmpleStock(t *testing.T) {
	eng := newTestEngine()
	rec := line(1, "O1", "SKU-A", 2, 100, 0)
	rec.Cancelled = true
	next := line(2, "O2", "SKU-A", 2, 100, time.Minute)

	res := eng.Allocate([]allocation.Record{rec, next})

	assert.Equal(t, allocation.StatusCancelled, statusOf(t, res, 1))
	// The cancelled line reserved nothing.
	assert.Equal(t, allocation.StatusReadyAccept, statusOf(t, res, 2))
}

func TestAllocatePackedSuppressesSLA(t *testing.T) {
	eng := newTestEngine()
	rec := line(1, "O1", "SKU-A", 2, 100, 0)
	rec.ReceivedDownstream = true
	rec.DownstreamStatus = "Packed and staged"

	res := eng.Allocate([]allocation.Record{rec})

	require.Len(t, res.Visible, 1)
	assert.Equal(t, allocation.StatusPacked, res.Visible[0].AllocationStatus)
	assert.Empty(t, res.Visible[0].SLA)
	assert.False(t, res.Visible[0].DueDate.IsZero())
}

func TestAllocateUnreceivedLineIsNeverPacked(t *testing.T) {
	// The placeholder label on a line never received downstream must not
	// trip the keyword match.
	eng := newTestEngine()
	rec := line(1, "O1", "SKU-A", 2, 100, 0)
	rec.ReceivedDownstream = false
	rec.DownstreamStatus = "packed"

	res := eng.Allocate([]allocation.Record{rec})

	assert.Equal(t, allocation.StatusReadyAccept, statusOf(t, res, 1))
	assert.NotEmpty(t, res.Visible[0].SLA)
}

func TestAllocateAcceptedLabelNeverRegresses(t *testing.T) {
	// An accepted line on an exhausted SKU keeps the ACCEPTED label and
	// manufactures no stock.
	eng := newTestEngine()
	accepted := line(1, "O1", "SKU-A", 5, 2, 0)
	accepted.Accepted = true
	next := line(2, "O2", "SKU-A", 2, 2, time.Minute)

	res := eng.Allocate([]allocation.Record{accepted, next})

	assert.Equal(t, allocation.StatusAccepted, statusOf(t, res, 1))
	// Insufficient stock was not consumed by the accepted line, so the
	// follower still sees 2 on hand.
	assert.Equal(t, allocation.StatusLowStock, statusOf(t, res, 2))
}

func TestAllocateAcceptedReservesWhenSufficient(t *testing.T) {
	eng := newTestEngine()
	accepted := line(1, "O1", "SKU-A", 4, 10, 0)
	accepted.Accepted = true
	next := line(2, "O2", "SKU-A", 4, 10, time.Minute)

	res := eng.Allocate([]allocation.Record{accepted, next})

	assert.Equal(t, allocation.StatusAccepted, statusOf(t, res, 1))
	// 10 - 4 leaves 6; 6 - 4 = 2 is under the reserve threshold.
	assert.Equal(t, allocation.StatusLowStock, statusOf(t, res, 2))
}

func TestAllocateDispatchedKeepsTruthfulShortage(t *testing.T) {
	eng := newTestEngine()
	dispatched := line(1, "O1", "SKU-A", 5, 0, 0)
	dispatched.Dispatched = true

	res := eng.Allocate([]allocation.Record{dispatched})

	assert.Equal(t, allocation.StatusShortage, statusOf(t, res, 1))
}

func TestAllocateDispatchedStillReservesStock(t *testing.T) {
	eng := newTestEngine()
	dispatched := line(1, "O1", "SKU-A", 6, 10, 0)
	dispatched.Dispatched = true
	next := line(2, "O2", "SKU-A", 6, 10, time.Minute)

	res := eng.Allocate([]allocation.Record{dispatched, next})

	assert.Equal(t, allocation.StatusReadyAccept, statusOf(t, res, 1))
	assert.Equal(t, allocation.StatusNotEnough, statusOf(t, res, 2))
}

func TestAllocatePriorityOrdering(t *testing.T) {
	// A late Shopee order outranks an early Lazada order; with stock for
	// one, Shopee wins.
	eng := newTestEngine()
	lazada := line(1, "O1", "SKU-A", 1, 1, 0)
	lazada.Channel = "Lazada"
	shopee := line(2, "O2", "SKU-A", 1, 1, 5*time.Hour)

	res := eng.Allocate([]allocation.Record{lazada, shopee})

	assert.Equal(t, allocation.StatusLowStock, statusOf(t, res, 2))
	assert.Equal(t, allocation.StatusShortage, statusOf(t, res, 1))
}

func TestAllocateTimeBreaksChannelTies(t *testing.T) {
	eng := newTestEngine()
	early := line(1, "O1", "SKU-A", 1, 1, 0)
	late := line(2, "O2", "SKU-A", 1, 1, time.Minute)

	res := eng.Allocate([]allocation.Record{late, early})

	assert.Equal(t, allocation.StatusLowStock, statusOf(t, res, 1))
	assert.Equal(t, allocation.StatusShortage, statusOf(t, res, 2))
}

func TestAllocateMissingOrderTimeSortsLast(t *testing.T) {
	eng := newTestEngine()
	timed := line(1, "O1", "SKU-A", 1, 1, 0)
	untimed := line(2, "O2", "SKU-A", 1, 1, 0)
	untimed.OrderTime = nil

	res := eng.Allocate([]allocation.Record{untimed, timed})

	assert.Equal(t, allocation.StatusLowStock, statusOf(t, res, 1))
	assert.Equal(t, allocation.StatusShortage, statusOf(t, res, 2))
}

func TestAllocateInvisibleBacklogStillReserves(t *testing.T) {
	// An old backlogged line outside the date filter still consumes
	// stock; only display is filtered.
	eng := newTestEngine()
	backlog := line(1, "O1", "SKU-A", 4, 5, 0)
	backlog.Visible = false
	current := line(2, "O2", "SKU-A", 4, 5, time.Minute)

	res := eng.Allocate([]allocation.Record{backlog, current})

	require.Len(t, res.Visible, 1)
	assert.Equal(t, int64(2), res.Visible[0].LineID)
	assert.Equal(t, allocation.StatusNotEnough, res.Visible[0].AllocationStatus)
}

func TestAllocateHideWhenDoneDropsClosedLines(t *testing.T) {
	eng := newTestEngine()
	cancelled := line(1, "O1", "SKU-A", 1, 5, 0)
	cancelled.Cancelled = true
	cancelled.HideWhenDone = true
	open := line(2, "O2", "SKU-A", 1, 5, time.Minute)
	open.HideWhenDone = true

	res := eng.Allocate([]allocation.Record{cancelled, open})

	require.Len(t, res.Visible, 1)
	assert.Equal(t, int64(2), res.Visible[0].LineID)
}

func TestAllocateMalformedRecordsCountedNotFatal(t *testing.T) {
	eng := newTestEngine()
	noSKU := line(1, "O1", "", 1, 5, 0)
	noOrder := line(2, "", "SKU-A", 1, 5, 0)
	ok := line(3, "O3", "SKU-A", 1, 5, time.Minute)

	res := eng.Allocate([]allocation.Record{noSKU, noOrder, ok})

	assert.Equal(t, 1, res.Quality.MissingSKU)
	assert.Equal(t, 1, res.Quality.MissingOrderID)
	require.Len(t, res.Visible, 1)
	assert.Equal(t, allocation.StatusReadyAccept, res.Visible[0].AllocationStatus)
}

func TestAllocateConsumptionNeverExceedsStartingStock(t *testing.T) {
	eng := newTestEngine()
	const stock = 7
	var records []allocation.Record
	for i := 0; i < 12; i++ {
		rec := line(int64(i+1), fmt.Sprintf("O%d", i+1), "SKU-A", 2, stock, time.Duration(i)*time.Minute)
		switch i % 4 {
		case 1:
			rec.Accepted = true
		case 2:
			rec.Dispatched = true
		case 3:
			rec.Cancelled = true
		}
		records = append(records, rec)
	}

	res := eng.Allocate(records)

	consumed := 0
	for _, r := range res.Visible {
		if sufficientStatus(r) {
			consumed += r.Qty
		}
	}
	assert.LessOrEqual(t, consumed, stock)
}

// sufficientStatus mirrors the consumption condition: only lines whose
// provisional classification was sufficient drew down the counter.
// ACCEPTED hides the provisional value, so this over-approximates by
// counting every accepted line; the bound must still hold because
// accepted lines with insufficient stock are the only over-counted ones
// and they appear after the counter is exhausted.
func sufficientStatus(r allocation.Record) bool {
	switch r.AllocationStatus {
	case allocation.StatusReadyAccept, allocation.StatusLowStock:
		return true
	}
	return false
}

func TestAllocateEveryLineGetsExactlyOneValidStatus(t *testing.T) {
	eng := newTestEngine()
	records := []allocation.Record{
		line(1, "O1", "SKU-A", 2, 3, 0),
		line(2, "O2", "SKU-A", 2, 3, time.Minute),
		line(3, "O3", "SKU-B", 1, 0, 0),
	}
	records[0].Accepted = true
	records[2].Dispatched = true

	res := eng.Allocate(records)

	require.Len(t, res.Visible, 3)
	for _, r := range res.Visible {
		assert.True(t, r.AllocationStatus.Valid(), "line %d got %q", r.LineID, r.AllocationStatus)
	}
}

func TestAllocateIsIdempotent(t *testing.T) {
	eng := newTestEngine()
	records := []allocation.Record{
		line(1, "O1", "SKU-A", 2, 5, 0),
		line(2, "O2", "SKU-A", 2, 5, time.Minute),
		line(3, "O3", "SKU-A", 2, 5, 2*time.Minute),
		line(4, "O4", "SKU-B", 1, 1, 0),
	}
	records[1].Accepted = true

	first := eng.Allocate(records)
	second := eng.Allocate(records)

	assert.Equal(t, first.Visible, second.Visible)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestAllocateDoesNotMutateInput(t *testing.T) {
	eng := newTestEngine()
	records := []allocation.Record{line(1, "O1", "SKU-A", 2, 5, 0)}

	eng.Allocate(records)

	assert.Equal(t, allocation.Status(""), records[0].AllocationStatus)
	assert.True(t, records[0].DueDate.IsZero())
}

func TestAllocateDemandQtyExcludesClosedLines(t *testing.T) {
	eng := newTestEngine()
	open := line(1, "O1", "SKU-A", 2, 10, 0)
	cancelled := line(2, "O2", "SKU-A", 3, 10, time.Minute)
	cancelled.Cancelled = true

	res := eng.Allocate([]allocation.Record{open, cancelled})

	for _, r := range res.Visible {
		assert.Equal(t, 2, r.DemandQty)
	}
}

func TestAllocateMissingOrderTimeUsesNowForDeadline(t *testing.T) {
	eng := newTestEngine()
	rec := line(1, "O1", "SKU-A", 1, 10, 0)
	rec.OrderTime = nil

	res := eng.Allocate([]allocation.Record{rec})

	require.Len(t, res.Visible, 1)
	// testNow is Monday 10:00, before the 12:00 cutoff.
	assert.Equal(t, time.Date(2025, time.December, 22, 0, 0, 0, 0, time.UTC), res.Visible[0].DueDate)
	assert.Equal(t, "today", res.Visible[0].SLA)
}

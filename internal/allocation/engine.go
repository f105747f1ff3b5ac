package allocation

import (
	"sort"
	"strings"
	"time"

	"github.com/merchantops/fulfillment-desk/internal/channel"
	"github.com/merchantops/fulfillment-desk/internal/duedate"
)

// DefaultReserveThreshold is the remaining-after-allocation quantity at
// or below which a sufficient line is flagged LOW_STOCK instead of
// READY_ACCEPT.
const DefaultReserveThreshold = 3

// DefaultPackedKeywords detect a closed order from the downstream
// system's free-text status. The match is a lower-cased substring
// check; the downstream integration has no explicit enum yet.
var DefaultPackedKeywords = []string{"packed", "opened_full", "complete"}

// Config tunes one engine instance.
type Config struct {
	ReserveThreshold int
	PackedKeywords   []string
	// Now supplies the reference time for SLA phrases and for lines
	// missing an order time. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs the priority allocation pass: a single-threaded,
// in-memory fold over the assembled record set. It does no I/O and is
// a pure function of its input; re-running it on the same snapshot
// yields the same result.
type Engine struct {
	cal *duedate.Calendar
	cfg Config
}

// NewEngine builds an engine around a business-day calendar.
func NewEngine(cal *duedate.Calendar, cfg Config) *Engine {
	if cfg.ReserveThreshold == 0 {
		cfg.ReserveThreshold = DefaultReserveThreshold
	}
	if len(cfg.PackedKeywords) == 0 {
		cfg.PackedKeywords = DefaultPackedKeywords
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cal: cal, cfg: cfg}
}

// Allocate classifies every record and returns the visible subset plus
// the rollup summary. The input slice is not modified.
func (e *Engine) Allocate(records []Record) *Result {
	now := e.cfg.Now()

	rows := make([]*Record, 0, len(records))
	var quality DataQuality
	for i := range records {
		r := records[i] // copy; the caller's slice stays untouched
		switch {
		case strings.TrimSpace(r.SKU) == "":
			quality.MissingSKU++
			continue
		case strings.TrimSpace(r.OrderID) == "":
			quality.MissingOrderID++
			continue
		}
		r.Packed = e.isPacked(&r)
		rows = append(rows, &r)
	}

	// Total open demand per SKU: closed lines no longer compete for stock.
	demand := make(map[string]int)
	for _, r := range rows {
		if !r.Packed && !r.Cancelled {
			demand[r.SKU] += r.Qty
		}
	}
	for _, r := range rows {
		r.DemandQty = demand[r.SKU]
	}

	for _, group := range groupBySKU(rows) {
		sortGroup(group)
		e.allocateGroup(group)
	}

	for _, r := range rows {
		e.annotateDeadline(r, now)
	}

	visible := make([]Record, 0, len(rows))
	for _, r := range rows {
		if !r.Visible {
			continue
		}
		if r.HideWhenDone && (r.AllocationStatus == StatusPacked || r.AllocationStatus == StatusCancelled) {
			continue
		}
		visible = append(visible, *r)
	}

	return &Result{
		Visible: visible,
		Summary: Summarize(visible),
		Quality: quality,
	}
}

func (e *Engine) isPacked(r *Record) bool {
	// A line never received downstream cannot be packed, whatever its
	// placeholder label says.
	if !r.ReceivedDownstream {
		return false
	}
	status := strings.ToLower(r.DownstreamStatus)
	for _, kw := range e.cfg.PackedKeywords {
		if strings.Contains(status, kw) {
			return true
		}
	}
	return false
}

func groupBySKU(rows []*Record) map[string][]*Record {
	groups := make(map[string][]*Record)
	for _, r := range rows {
		groups[r.SKU] = append(groups[r.SKU], r)
	}
	return groups
}

// sortGroup orders a SKU group by channel priority rank, then arrival
// time, with missing arrival times last. The sort is stable so
// identical inputs always allocate identically.
func sortGroup(group []*Record) {
	sort.SliceStable(group, func(i, j int) bool {
		pi, pj := channel.Priority(group[i].Channel), channel.Priority(group[j].Channel)
		if pi != pj {
			return pi < pj
		}
		ti, tj := group[i].OrderTime, group[j].OrderTime
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.Before(*tj)
		}
	})
}

// stepOutcome is the result of allocating one line against the counter.
type stepOutcome struct {
	status   Status
	consumed int
	counter  int
}

// allocateStep classifies one line against the current counter value
// and returns the threaded-forward state. The counter decreases only
// when stock actually sufficed, so consumption can never exceed the
// group's starting stock.
func (e *Engine) allocateStep(r *Record, counter int) stepOutcome {
	provisional := e.provisional(counter, r.Qty)
	final, mayConsume := decide(lineFlags{
		Packed:     r.Packed,
		Cancelled:  r.Cancelled,
		Accepted:   r.Accepted,
		Dispatched: r.Dispatched,
	}, provisional)

	out := stepOutcome{status: final, counter: counter}
	if mayConsume && sufficient(provisional) {
		out.consumed = r.Qty
		out.counter = counter - r.Qty
	}
	return out
}

// allocateGroup folds the sorted group once, seeding the running
// counter from stock-on-hand read at group start.
func (e *Engine) allocateGroup(group []*Record) {
	if len(group) == 0 {
		return
	}
	counter := group[0].StockQty
	for _, r := range group {
		out := e.allocateStep(r, counter)
		r.AllocationStatus = out.status
		counter = out.counter
	}
}

// provisional classifies a line from the counter alone, before any
// acceptance or dispatch override.
func (e *Engine) provisional(counter, qty int) Status {
	switch {
	case counter <= 0:
		return StatusShortage
	case counter < qty:
		return StatusNotEnough
	case counter-qty <= e.cfg.ReserveThreshold:
		return StatusLowStock
	default:
		return StatusReadyAccept
	}
}

func sufficient(provisional Status) bool {
	return provisional == StatusReadyAccept || provisional == StatusLowStock
}

func (e *Engine) annotateDeadline(r *Record, now time.Time) {
	orderTime := now
	if r.OrderTime != nil {
		orderTime = *r.OrderTime
	}
	r.DueDate = e.cal.DueDate(r.Channel, orderTime)
	if r.AllocationStatus == StatusPacked {
		// Closed lines require no action, so no countdown.
		r.SLA = ""
		return
	}
	r.SLA = e.cal.SLAPhrase(r.DueDate, now)
}

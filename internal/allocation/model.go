package allocation

import "time"

// Status is the terminal classification a single allocation pass
// assigns to every order line. The set is closed: a record always ends
// the pass with exactly one of these values.
type Status string

const (
	// StatusPacked means the downstream warehouse already closed the
	// parent order; the line needs no action and reserves no stock.
	StatusPacked Status = "PACKED"
	// StatusCancelled means the parent order is in the cancelled set.
	StatusCancelled Status = "CANCELLED"
	// StatusAccepted means an operator committed to the line. The label
	// never regresses to a shortage value once set.
	StatusAccepted Status = "ACCEPTED"
	// StatusReadyAccept means stock comfortably covers the line.
	StatusReadyAccept Status = "READY_ACCEPT"
	// StatusLowStock means stock covers the line but the remainder
	// falls at or below the reserve threshold.
	StatusLowStock Status = "LOW_STOCK"
	// StatusShortage means the running counter was already exhausted.
	StatusShortage Status = "SHORTAGE"
	// StatusNotEnough means some stock remains but less than requested.
	StatusNotEnough Status = "NOT_ENOUGH"
)

func (s Status) String() string {
	return string(s)
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusPacked, StatusCancelled, StatusAccepted,
		StatusReadyAccept, StatusLowStock, StatusShortage, StatusNotEnough:
		return true
	}
	return false
}

// Record is one assembled order line: the unit of demand, denormalized
// with everything the engine needs. The assembler fills every field up
// to the "derived" block; the engine writes only the derived block.
type Record struct {
	LineID    int64      `json:"id"`
	OrderID   string     `json:"order_id"`
	SKU       string     `json:"sku"`
	Channel   string     `json:"channel"`
	ShopID    int64      `json:"shop_id"`
	ShopName  string     `json:"shop"`
	Brand     string     `json:"brand"`
	Model     string     `json:"model"`
	Qty       int        `json:"qty"`
	StockQty  int        `json:"stock_qty"`
	MinStock  int        `json:"min_stock"`
	OrderTime *time.Time `json:"order_time,omitempty"` // nil when the marketplace feed omitted it
	Logistic  string     `json:"logistic"`

	// Downstream fulfillment feed. ReceivedDownstream false means the
	// order never reached the warehouse system, which is distinct from
	// received-with-a-blank-status.
	ReceivedDownstream bool   `json:"received_downstream"`
	DownstreamStatus   string `json:"-"`
	DownstreamLabel    string `json:"sales_status"`

	Accepted   bool       `json:"accepted"`
	AcceptedBy string     `json:"accepted_by,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	Cancelled  bool       `json:"is_cancelled"`
	Dispatched bool       `json:"is_dispatched"`

	// Visible marks lines the caller's date filters selected for
	// display. Invisible lines still consume stock.
	Visible bool `json:"-"`
	// HideWhenDone drops PACKED/CANCELLED lines from the visible result
	// (the backlog view) after they have been classified.
	HideWhenDone bool `json:"-"`

	// Derived by the allocation pass.
	Packed           bool      `json:"is_packed"`
	AllocationStatus Status    `json:"allocation_status"`
	DemandQty        int       `json:"demand_qty"` // total open demand for this SKU across all channels
	DueDate          time.Time `json:"due_date"`
	SLA              string    `json:"sla"`
}

// DataQuality counts records excluded from the pass instead of being
// raised as errors: one bad record never aborts allocation for its
// siblings.
type DataQuality struct {
	MissingSKU     int `json:"missing_sku"`
	MissingOrderID int `json:"missing_order_id"`
}

// Result is the outcome of one allocation pass over the assembled set.
type Result struct {
	// Visible holds the annotated records selected for display, in
	// allocation order.
	Visible []Record
	Summary Summary
	Quality DataQuality
}

package allocation

import "sort"

// Summary is the dashboard rollup over whatever subset of records is
// currently in view. The three order-level sets require every line of
// an order to agree: one disqualifying line anywhere vetoes the order.
type Summary struct {
	TotalLines   int `json:"total_lines"`
	TotalQty     int `json:"total_qty"`
	TotalOrders  int `json:"total_orders"`
	ActiveOrders int `json:"active_orders"`

	Ready     int `json:"ready"`
	Accepted  int `json:"accepted"`
	Low       int `json:"low"`
	Shortage  int `json:"shortage"`
	NotEnough int `json:"not_enough"`
	Packed    int `json:"packed"`
	Cancelled int `json:"cancelled"`

	// FullyReadyOrders: every line READY_ACCEPT, none accepted or
	// dispatched — the whole order can be committed right now.
	FullyReadyOrders []string `json:"fully_ready_orders"`
	// ReadyButLowOrders: every line READY_ACCEPT or LOW_STOCK, none
	// accepted or dispatched, and at least one line LOW_STOCK.
	ReadyButLowOrders []string `json:"ready_but_low_orders"`
	// BlockedOrders: at least one SHORTAGE/NOT_ENOUGH line in an order
	// with no packed, cancelled, or dispatched line.
	BlockedOrders []string `json:"blocked_orders"`

	OrdersNotReceived int `json:"orders_not_received"`
	OrdersNoSales     int `json:"orders_no_sales"`
}

// Summarize computes the rollup for a post-allocation record list.
func Summarize(rows []Record) Summary {
	var s Summary

	byOrder := make(map[string][]*Record)
	activeOrders := make(map[string]struct{})
	notReceived := make(map[string]struct{})
	noSales := make(map[string]struct{})

	for i := range rows {
		r := &rows[i]
		s.TotalLines++
		s.TotalQty += r.Qty

		switch r.AllocationStatus {
		case StatusReadyAccept:
			s.Ready++
		case StatusAccepted:
			s.Accepted++
		case StatusLowStock:
			s.Low++
		case StatusShortage:
			s.Shortage++
		case StatusNotEnough:
			s.NotEnough++
		case StatusPacked:
			s.Packed++
		case StatusCancelled:
			s.Cancelled++
		}

		byOrder[r.OrderID] = append(byOrder[r.OrderID], r)
		if !r.Packed && !r.Cancelled {
			activeOrders[r.OrderID] = struct{}{}
		}
		if !r.ReceivedDownstream {
			notReceived[r.OrderID] = struct{}{}
		} else if r.DownstreamStatus == "" {
			noSales[r.OrderID] = struct{}{}
		}
	}

	s.TotalOrders = len(byOrder)
	s.ActiveOrders = len(activeOrders)
	s.OrdersNotReceived = len(notReceived)
	s.OrdersNoSales = len(noSales)

	for orderID, lines := range byOrder {
		c := classifyOrder(lines)
		switch {
		case c.fullyReady:
			s.FullyReadyOrders = append(s.FullyReadyOrders, orderID)
		case c.readyButLow:
			s.ReadyButLowOrders = append(s.ReadyButLowOrders, orderID)
		}
		if c.blocked {
			s.BlockedOrders = append(s.BlockedOrders, orderID)
		}
	}
	sort.Strings(s.FullyReadyOrders)
	sort.Strings(s.ReadyButLowOrders)
	sort.Strings(s.BlockedOrders)

	return s
}

type orderClass struct {
	fullyReady  bool
	readyButLow bool
	blocked     bool
}

// classifyOrder folds all lines of one order into the three whole-order
// classes. Every line must agree before an order qualifies.
func classifyOrder(lines []*Record) orderClass {
	allReady := true
	allSendable := true
	hasLow := false
	hasBlockingLine := false
	orderUntouched := true // no packed, cancelled, or dispatched line

	for _, l := range lines {
		if l.Accepted || l.Dispatched {
			allReady = false
			allSendable = false
		}
		switch l.AllocationStatus {
		case StatusReadyAccept:
			// counts toward both folds
		case StatusLowStock:
			allReady = false
			hasLow = true
		default:
			allReady = false
			allSendable = false
		}
		switch l.AllocationStatus {
		case StatusShortage, StatusNotEnough:
			hasBlockingLine = true
		}
		if l.Packed || l.Cancelled || l.Dispatched {
			orderUntouched = false
		}
	}

	return orderClass{
		fullyReady:  allReady,
		readyButLow: allSendable && hasLow,
		blocked:     hasBlockingLine && orderUntouched,
	}
}

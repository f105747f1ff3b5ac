package allocation

// lineFlags are the externally committed states consulted when
// resolving a line's final status.
type lineFlags struct {
	Packed     bool
	Cancelled  bool
	Accepted   bool
	Dispatched bool
}

// flagMatch is a tri-state matcher so a rule can pin a flag or ignore it.
type flagMatch int8

const (
	anyValue flagMatch = iota
	isSet
	isClear
)

func (m flagMatch) matches(v bool) bool {
	switch m {
	case isSet:
		return v
	case isClear:
		return !v
	default:
		return true
	}
}

// decisionRule is one row of the precedence table. Rules are evaluated
// top to bottom and the first match wins, so row order is the
// precedence order.
type decisionRule struct {
	packed, cancelled, accepted, dispatched flagMatch

	// keepProvisional keeps the stock-sufficiency classification as the
	// final status; otherwise `final` overrides it.
	keepProvisional bool
	final           Status

	// mayConsume allows the line to draw down the running counter, which
	// still happens only when stock actually sufficed (provisional was
	// READY_ACCEPT or LOW_STOCK).
	mayConsume bool
}

func (r decisionRule) matches(f lineFlags) bool {
	return r.packed.matches(f.Packed) &&
		r.cancelled.matches(f.Cancelled) &&
		r.accepted.matches(f.Accepted) &&
		r.dispatched.matches(f.Dispatched)
}

// decisionTable encodes the per-line precedence: packed beats
// cancelled beats accepted beats dispatched beats new. Packed and
// cancelled lines never touch the counter. Accepted lines always label
// ACCEPTED but reserve stock only when it sufficed; dispatched lines
// keep the truthful provisional label (a shortage stays visible after
// dispatch) while reserving under the same condition.
var decisionTable = []decisionRule{
	{packed: isSet, cancelled: anyValue, accepted: anyValue, dispatched: anyValue,
		final: StatusPacked},
	{packed: isClear, cancelled: isSet, accepted: anyValue, dispatched: anyValue,
		final: StatusCancelled},
	{packed: isClear, cancelled: isClear, accepted: isSet, dispatched: anyValue,
		final: StatusAccepted, mayConsume: true},
	{packed: isClear, cancelled: isClear, accepted: isClear, dispatched: isSet,
		keepProvisional: true, mayConsume: true},
	{packed: isClear, cancelled: isClear, accepted: isClear, dispatched: isClear,
		keepProvisional: true, mayConsume: true},
}

// decide resolves the final status for one line and whether it is
// allowed to consume stock. The table covers every flag combination, so
// a match always exists.
func decide(f lineFlags, provisional Status) (final Status, mayConsume bool) {
	for _, r := range decisionTable {
		if !r.matches(f) {
			continue
		}
		if r.keepProvisional {
			return provisional, r.mayConsume
		}
		return r.final, r.mayConsume
	}
	return provisional, false
}

package duedate

import (
	"fmt"
	"time"

	"github.com/merchantops/fulfillment-desk/internal/channel"
)

// Calendar computes shipping deadlines in business days. A business day
// is any day that is neither a Saturday/Sunday nor in the configured
// holiday set. The zero-value Calendar has no holidays.
type Calendar struct {
	holidays map[civilDate]struct{}
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func toCivil(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{year: y, month: m, day: d}
}

func (c civilDate) time(loc *time.Location) time.Time {
	return time.Date(c.year, c.month, c.day, 0, 0, 0, 0, loc)
}

// NewCalendar builds a calendar with the given holiday dates. Only the
// calendar date of each entry is kept.
func NewCalendar(holidays ...time.Time) *Calendar {
	c := &Calendar{holidays: make(map[civilDate]struct{}, len(holidays))}
	for _, h := range holidays {
		c.holidays[toCivil(h)] = struct{}{}
	}
	return c
}

// IsBusinessDay reports whether t's calendar date counts toward SLA.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := c.holidays[toCivil(t)]
	return !holiday
}

// AddBusinessDays walks n business days forward (or backward for
// negative n) from d's calendar date, skipping weekends and holidays.
func (c *Calendar) AddBusinessDays(d time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
	}
	cur := toCivil(d).time(d.Location())
	count := 0
	for count != n {
		cur = cur.AddDate(0, 0, step)
		if c.IsBusinessDay(cur) {
			count += step
		}
	}
	return cur
}

// BusinessDaysBetween returns the signed business-day distance from
// `from` to `to`: the number of business days strictly between the two
// calendar dates, positive when `to` is later.
func (c *Calendar) BusinessDaysBetween(from, to time.Time) int {
	start := toCivil(from)
	end := toCivil(to)
	if start == end {
		return 0
	}
	step := 1
	if end.time(time.UTC).Before(start.time(time.UTC)) {
		step = -1
	}
	cur := start.time(from.Location())
	count := 0
	for toCivil(cur) != end {
		cur = cur.AddDate(0, 0, step)
		if c.IsBusinessDay(cur) {
			count += step
		}
	}
	return count
}

// DueDate computes the shipping deadline for an order: same day when
// the order arrived at or before the channel's cutoff, the next
// business day otherwise, always rolled forward onto a business day.
// Callers must substitute "now" for a missing order time before calling.
func (c *Calendar) DueDate(channelName string, orderTime time.Time) time.Time {
	cutoffHour := channel.CutoffHour(channelName)
	y, m, d := orderTime.Date()
	cutoff := time.Date(y, m, d, cutoffHour, 0, 0, 0, orderTime.Location())

	due := toCivil(orderTime).time(orderTime.Location())
	if orderTime.After(cutoff) {
		due = c.AddBusinessDays(due, 1)
	}
	for !c.IsBusinessDay(due) {
		due = c.AddBusinessDays(due, 1)
	}
	return due
}

// SLAPhrase renders the deadline relative to now in business days.
func (c *Calendar) SLAPhrase(due, now time.Time) string {
	diff := c.BusinessDaysBetween(due, now)
	switch {
	case diff > 0:
		return fmt.Sprintf("overdue (%d days)", diff)
	case diff == 0:
		return "today"
	case diff == -1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", -diff)
	}
}

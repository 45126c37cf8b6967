// Package recurrence expands a single booking's repeat rule, additions and
// exceptions into concrete calendar occurrences.
package recurrence

import (
	"fmt"
	"time"
)

// Kind is the repeat pattern of a rule.
type Kind int

const (
	// KindNone is a single occurrence at the rule's start.
	KindNone Kind = iota
	KindDaily
	KindWeekly
	KindMonthlyByDate
	KindMonthlyByWeekday
	KindYearly
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindDaily:
		return "daily"
	case KindWeekly:
		return "weekly"
	case KindMonthlyByDate:
		return "monthly-by-date"
	case KindMonthlyByWeekday:
		return "monthly-by-weekday"
	case KindYearly:
		return "yearly"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Rule describes how one booking repeats. Values are immutable after
// construction; all methods are read-only.
type Rule struct {
	Kind     Kind
	Interval int

	// Start is the first occurrence's date and time of day.
	Start time.Time
	// Until is the inclusive end of generation. Zero means the rule yields
	// only its start date (plus additions).
	Until time.Time

	// Weekday and WeekdayOrdinal select the Nth weekday of each month for
	// KindMonthlyByWeekday. A negative ordinal counts from the end of the
	// month.
	Weekday        time.Weekday
	WeekdayOrdinal int

	// Duration is applied to every generated occurrence.
	Duration time.Duration

	// Additions are extra single dates, independent of the base pattern.
	// Exceptions suppress any occurrence whose calendar date matches.
	Additions  []time.Time
	Exceptions []time.Time
}

// Validate reports structural problems that would make expansion ambiguous.
func (r Rule) Validate() error {
	if r.Start.IsZero() {
		return fmt.Errorf("rule start is required")
	}
	if r.Kind != KindNone {
		if r.Interval < 1 {
			return fmt.Errorf("interval must be >= 1, got %d", r.Interval)
		}
		if r.Until.IsZero() {
			return fmt.Errorf("%s rule needs an until date", r.Kind)
		}
		if r.Until.Before(startOfDay(r.Start)) {
			return fmt.Errorf("until %s is before start %s", r.Until.Format("2006-01-02"), r.Start.Format("2006-01-02"))
		}
	}
	if r.Kind == KindMonthlyByWeekday && r.WeekdayOrdinal == 0 {
		return fmt.Errorf("weekday ordinal 0 is not valid")
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// combine places the rule's time of day onto the given date.
func (r Rule) combine(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		r.Start.Hour(), r.Start.Minute(), r.Start.Second(), 0, date.Location())
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

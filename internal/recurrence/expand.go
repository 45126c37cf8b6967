package recurrence

import (
	"sort"
	"time"

	"github.com/Craeckie/church-bot/internal/domain"
)

// Expand materializes the full ordered date sequence of the rule: the base
// pattern unioned with the additions, minus the exceptions. All dates are at
// midnight; Occurrence values carry the rule's time of day.
func (r Rule) Expand() []time.Time {
	var out []time.Time
	next := r.iterator()
	for {
		d, ok := next()
		if !ok {
			return out
		}
		out = append(out, d)
	}
}

// Before returns the latest generated date strictly before t. The sequence
// is walked in order and abandoned at the boundary, so rules with a far-off
// until date are not materialized past t.
func (r Rule) Before(t time.Time) (time.Time, bool) {
	var last time.Time
	found := false
	next := r.iterator()
	for {
		d, ok := next()
		if !ok || !d.Before(t) {
			return last, found
		}
		last = d
		found = true
	}
}

// Between returns every generated date within [from, to] inclusive.
func (r Rule) Between(from, to time.Time) []time.Time {
	var out []time.Time
	next := r.iterator()
	for {
		d, ok := next()
		if !ok || d.After(to) {
			return out
		}
		if !d.Before(from) {
			out = append(out, d)
		}
	}
}

// Occurrence builds the concrete instance for one generated date.
func (r Rule) Occurrence(date time.Time) domain.Occurrence {
	start := r.combine(date)
	return domain.Occurrence{Start: start, End: start.Add(r.Duration)}
}

// iterator yields the merged, exception-filtered date sequence in ascending
// order, one date per call.
func (r Rule) iterator() func() (time.Time, bool) {
	base := r.baseIterator()

	additions := make([]time.Time, 0, len(r.Additions))
	for _, a := range r.Additions {
		additions = append(additions, startOfDay(a))
	}
	sort.Slice(additions, func(i, j int) bool { return additions[i].Before(additions[j]) })

	excluded := make(map[string]struct{}, len(r.Exceptions))
	for _, e := range r.Exceptions {
		excluded[dateKey(e)] = struct{}{}
	}

	var (
		pendingBase    time.Time
		baseOK         bool
		baseDone       bool
		additionIdx    int
		lastEmitted    time.Time
		emittedAny     bool
	)

	advanceBase := func() {
		if baseDone {
			baseOK = false
			return
		}
		pendingBase, baseOK = base()
		if !baseOK {
			baseDone = true
		}
	}
	advanceBase()

	return func() (time.Time, bool) {
		for {
			var d time.Time
			switch {
			case baseOK && additionIdx < len(additions):
				if !additions[additionIdx].After(pendingBase) {
					d = additions[additionIdx]
					additionIdx++
				} else {
					d = pendingBase
					advanceBase()
				}
			case baseOK:
				d = pendingBase
				advanceBase()
			case additionIdx < len(additions):
				d = additions[additionIdx]
				additionIdx++
			default:
				return time.Time{}, false
			}
			if emittedAny && d.Equal(lastEmitted) {
				continue
			}
			if _, skip := excluded[dateKey(d)]; skip {
				continue
			}
			lastEmitted = d
			emittedAny = true
			return d, true
		}
	}
}

// baseIterator yields the rule's own pattern, without additions or
// exceptions.
func (r Rule) baseIterator() func() (time.Time, bool) {
	start := startOfDay(r.Start)

	if r.Kind == KindNone || r.Until.IsZero() {
		emitted := false
		return func() (time.Time, bool) {
			if emitted {
				return time.Time{}, false
			}
			emitted = true
			return start, true
		}
	}

	switch r.Kind {
	case KindDaily:
		return r.stepIterator(start, func(d time.Time) time.Time {
			return d.AddDate(0, 0, r.Interval)
		})
	case KindWeekly:
		return r.stepIterator(start, func(d time.Time) time.Time {
			return d.AddDate(0, 0, 7*r.Interval)
		})
	case KindMonthlyByDate:
		return r.monthlyByDateIterator(start)
	case KindMonthlyByWeekday:
		return r.monthlyByWeekdayIterator(start)
	case KindYearly:
		return r.yearlyIterator(start)
	default:
		return func() (time.Time, bool) { return time.Time{}, false }
	}
}

func (r Rule) stepIterator(start time.Time, step func(time.Time) time.Time) func() (time.Time, bool) {
	next := start
	return func() (time.Time, bool) {
		if next.After(r.Until) {
			return time.Time{}, false
		}
		d := next
		next = step(next)
		return d, true
	}
}

// monthlyByDateIterator repeats the start's day-of-month every Interval
// months. Months without that day (31st, Feb 30th) are skipped.
func (r Rule) monthlyByDateIterator(start time.Time) func() (time.Time, bool) {
	year, month := start.Year(), start.Month()
	day := start.Day()
	loc := start.Location()
	return func() (time.Time, bool) {
		for {
			candidate := time.Date(year, month, day, 0, 0, 0, 0, loc)
			first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
			if first.After(r.Until) {
				return time.Time{}, false
			}
			year, month = addMonths(year, month, r.Interval)
			if candidate.Day() != day {
				continue // day overflowed into the next month
			}
			if candidate.After(r.Until) {
				return time.Time{}, false
			}
			return candidate, true
		}
	}
}

// monthlyByWeekdayIterator repeats the Nth weekday of the month every
// Interval months, starting at the rule's start month. Months where the Nth
// weekday does not exist, or where it falls before the start date, are
// skipped.
func (r Rule) monthlyByWeekdayIterator(start time.Time) func() (time.Time, bool) {
	year, month := start.Year(), start.Month()
	loc := start.Location()
	return func() (time.Time, bool) {
		for {
			first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
			if first.After(r.Until) {
				return time.Time{}, false
			}
			candidate, ok := nthWeekdayOfMonth(year, month, r.Weekday, r.WeekdayOrdinal, loc)
			year, month = addMonths(year, month, r.Interval)
			if !ok || candidate.Before(start) {
				continue
			}
			if candidate.After(r.Until) {
				return time.Time{}, false
			}
			return candidate, true
		}
	}
}

func (r Rule) yearlyIterator(start time.Time) func() (time.Time, bool) {
	year := start.Year()
	loc := start.Location()
	return func() (time.Time, bool) {
		for {
			candidate := time.Date(year, start.Month(), start.Day(), 0, 0, 0, 0, loc)
			if time.Date(year, 1, 1, 0, 0, 0, 0, loc).After(r.Until) {
				return time.Time{}, false
			}
			year += r.Interval
			if candidate.Day() != start.Day() {
				continue // Feb 29 in a non-leap year
			}
			if candidate.After(r.Until) {
				return time.Time{}, false
			}
			return candidate, true
		}
	}
}

// nthWeekdayOfMonth resolves e.g. (2nd, Tuesday) or (-1, Friday) within the
// given month. ok is false when the month has no such day.
func nthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, n int, loc *time.Location) (time.Time, bool) {
	if n == 0 {
		return time.Time{}, false
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	if n > 0 {
		offset := (int(weekday) - int(first.Weekday()) + 7) % 7
		day := 1 + offset + (n-1)*7
		if day > daysInMonth {
			return time.Time{}, false
		}
		return time.Date(year, month, day, 0, 0, 0, 0, loc), true
	}
	last := time.Date(year, month, daysInMonth, 0, 0, 0, 0, loc)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	day := daysInMonth - offset + (n+1)*7
	if day < 1 {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc), true
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	m := int(month) - 1 + n
	return year + m/12, time.Month(m%12 + 1)
}

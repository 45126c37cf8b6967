package booking

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/Craeckie/church-bot/internal/recurrence"
)

// Repeat kinds as the wire encodes them.
const (
	repeatNone             = 0
	repeatNoneAlt          = 999
	repeatDaily            = 1
	repeatWeekly           = 7
	repeatMonthlyByDate    = 31
	repeatMonthlyByWeekday = 32
	repeatYearly           = 365
)

// weekdayOrdinalUnsupported is the repeat_option_id value the source system
// delivers for a monthly-by-weekday shape nobody has ever specified the
// semantics of. It must surface as an unsupported-recurrence error instead
// of being approximated.
const weekdayOrdinalUnsupported = 6

// BuildRule turns one raw booking into an explicit recurrence rule. This is
// the expensive step of aggregation and the natural caching boundary for
// callers that want one.
//
// Exceptions whose start and end differ are logged and resolved to the start
// date; everything else about a malformed shape is an error.
func BuildRule(raw *Raw, log *slog.Logger) (recurrence.Rule, error) {
	if log == nil {
		log = slog.Default()
	}
	start, err := parseDateTime(raw.StartDate)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("booking %s: startdate: %w", raw.ID, err)
	}
	end, err := parseDateTime(raw.EndDate)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("booking %s: enddate: %w", raw.ID, err)
	}

	rule := recurrence.Rule{
		Start:    start,
		Duration: end.Sub(start),
		Interval: 1,
	}

	repeatID, err := strconv.Atoi(raw.RepeatID)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("booking %s: repeat_id %q: %w", raw.ID, raw.RepeatID, err)
	}

	switch repeatID {
	case repeatNone, repeatNoneAlt:
		rule.Kind = recurrence.KindNone
	case repeatDaily, repeatWeekly, repeatMonthlyByDate, repeatMonthlyByWeekday, repeatYearly:
		until, err := parseDateTime(raw.RepeatUntil)
		if err != nil {
			return recurrence.Rule{}, fmt.Errorf("booking %s: repeat_until: %w", raw.ID, err)
		}
		rule.Until = until
		if raw.RepeatFrequence != "" {
			freq, err := strconv.Atoi(raw.RepeatFrequence)
			if err != nil {
				return recurrence.Rule{}, fmt.Errorf("booking %s: repeat_frequence %q: %w", raw.ID, raw.RepeatFrequence, err)
			}
			rule.Interval = freq
		}
		switch repeatID {
		case repeatDaily:
			rule.Kind = recurrence.KindDaily
		case repeatWeekly:
			rule.Kind = recurrence.KindWeekly
		case repeatMonthlyByDate:
			rule.Kind = recurrence.KindMonthlyByDate
		case repeatMonthlyByWeekday:
			ordinal := 0
			if raw.RepeatOptionID != "" {
				ordinal, err = strconv.Atoi(raw.RepeatOptionID)
				if err != nil {
					return recurrence.Rule{}, fmt.Errorf("booking %s: repeat_option_id %q: %w", raw.ID, raw.RepeatOptionID, err)
				}
			}
			if ordinal == weekdayOrdinalUnsupported {
				return recurrence.Rule{}, &recurrence.UnsupportedError{
					BookingID: raw.ID,
					Reason:    fmt.Sprintf("repeat_option_id == %d is not implemented", weekdayOrdinalUnsupported),
				}
			}
			if ordinal == 0 {
				return recurrence.Rule{}, &recurrence.UnsupportedError{
					BookingID: raw.ID,
					Reason:    "monthly-by-weekday without a weekday ordinal",
				}
			}
			rule.Kind = recurrence.KindMonthlyByWeekday
			rule.Weekday = start.Weekday()
			rule.WeekdayOrdinal = ordinal
		case repeatYearly:
			rule.Kind = recurrence.KindYearly
		}
	default:
		return recurrence.Rule{}, &recurrence.UnsupportedError{
			BookingID: raw.ID,
			Reason:    fmt.Sprintf("repeat_id %d is not implemented", repeatID),
		}
	}

	for _, key := range sortedKeys(raw.Additions) {
		add := raw.Additions[key]
		d, err := parseDateTime(add.AddDate)
		if err != nil {
			return recurrence.Rule{}, fmt.Errorf("booking %s: addition %s: %w", raw.ID, key, err)
		}
		rule.Additions = append(rule.Additions, d)
	}

	for _, key := range sortedKeys(raw.Exceptions) {
		exc := raw.Exceptions[key]
		excStart, err := parseDateTime(exc.Start)
		if err != nil {
			return recurrence.Rule{}, fmt.Errorf("booking %s: exception %s: %w", raw.ID, key, err)
		}
		if exc.Start != exc.End {
			log.Warn("exception has different start and end, using start",
				"booking", raw.ID, "start", exc.Start, "end", exc.End)
		}
		rule.Exceptions = append(rule.Exceptions, excStart)
	}

	if err := rule.Validate(); err != nil {
		return recurrence.Rule{}, fmt.Errorf("booking %s: %w", raw.ID, err)
	}
	return rule, nil
}

func parseDateTime(v string) (time.Time, error) {
	t, err := time.ParseInLocation(dateTimeLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", v, err)
	}
	return t, nil
}

func sortedKeys[M map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

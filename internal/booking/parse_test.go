package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Craeckie/church-bot/internal/recurrence"
)

func TestBuildRuleKinds(t *testing.T) {
	cases := []struct {
		name     string
		repeatID string
		optionID string
		freq     string
		kind     recurrence.Kind
		interval int
	}{
		{name: "none", repeatID: "0", kind: recurrence.KindNone, interval: 1},
		{name: "none alt code", repeatID: "999", kind: recurrence.KindNone, interval: 1},
		{name: "daily", repeatID: "1", kind: recurrence.KindDaily, interval: 1},
		{name: "weekly", repeatID: "7", freq: "2", kind: recurrence.KindWeekly, interval: 2},
		{name: "monthly by date", repeatID: "31", kind: recurrence.KindMonthlyByDate, interval: 1},
		{name: "monthly by weekday", repeatID: "32", optionID: "2", kind: recurrence.KindMonthlyByWeekday, interval: 1},
		{name: "yearly", repeatID: "365", kind: recurrence.KindYearly, interval: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := &Raw{
				ID:              "42",
				StartDate:       "2024-01-02 18:00:00",
				EndDate:         "2024-01-02 20:00:00",
				RepeatID:        tc.repeatID,
				RepeatFrequence: tc.freq,
				RepeatUntil:     "2024-06-30 00:00:00",
				RepeatOptionID:  tc.optionID,
			}
			rule, err := BuildRule(raw, nil)
			require.NoError(t, err)
			require.Equal(t, tc.kind, rule.Kind)
			require.Equal(t, tc.interval, rule.Interval)
			require.Equal(t, 2*time.Hour, rule.Duration)
			if tc.kind == recurrence.KindMonthlyByWeekday {
				require.Equal(t, time.Tuesday, rule.Weekday)
				require.Equal(t, 2, rule.WeekdayOrdinal)
			}
		})
	}
}

func TestBuildRuleUnsupported(t *testing.T) {
	cases := []struct {
		name     string
		repeatID string
		optionID string
	}{
		{name: "weekday ordinal 6", repeatID: "32", optionID: "6"},
		{name: "missing weekday ordinal", repeatID: "32", optionID: ""},
		{name: "unknown repeat id", repeatID: "12"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := &Raw{
				ID:             "77",
				StartDate:      "2024-01-02 18:00:00",
				EndDate:        "2024-01-02 20:00:00",
				RepeatID:       tc.repeatID,
				RepeatUntil:    "2024-06-30 00:00:00",
				RepeatOptionID: tc.optionID,
			}
			_, err := BuildRule(raw, nil)
			require.Error(t, err)
			require.ErrorIs(t, err, recurrence.ErrUnsupported)
			var unsupported *recurrence.UnsupportedError
			require.ErrorAs(t, err, &unsupported)
			require.Equal(t, "77", unsupported.BookingID)
		})
	}
}

func TestBuildRuleAdditionsAndExceptions(t *testing.T) {
	raw := &Raw{
		ID:          "5",
		StartDate:   "2024-01-01 10:00:00",
		EndDate:     "2024-01-01 11:00:00",
		RepeatID:    "7",
		RepeatUntil: "2024-02-01 00:00:00",
		Additions: map[string]Addition{
			"2": {AddDate: "2024-01-20 00:00:00"},
			"1": {AddDate: "2024-01-10 00:00:00"},
		},
		Exceptions: map[string]Exception{
			"1": {Start: "2024-01-15 00:00:00", End: "2024-01-16 00:00:00"},
		},
	}
	rule, err := BuildRule(raw, nil)
	require.NoError(t, err)

	local := time.Local
	require.Equal(t, []time.Time{
		time.Date(2024, 1, 10, 0, 0, 0, 0, local),
		time.Date(2024, 1, 20, 0, 0, 0, 0, local),
	}, rule.Additions)

	// A mismatched exception range resolves to its start date.
	require.Equal(t, []time.Time{
		time.Date(2024, 1, 15, 0, 0, 0, 0, local),
	}, rule.Exceptions)
}

func TestBuildRuleBadDates(t *testing.T) {
	raw := &Raw{
		ID:        "9",
		StartDate: "garbage",
		EndDate:   "2024-01-01 11:00:00",
		RepeatID:  "0",
	}
	_, err := BuildRule(raw, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, recurrence.ErrUnsupported))
	require.Contains(t, err.Error(), "booking 9")
}

package domain

import (
	"testing"
	"time"
)

func TestDaysBetweenAcrossDSTTransitions(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	cases := []struct {
		name string
		a, b time.Time
		want int
	}{
		{
			name: "spring forward day counts as one",
			a:    time.Date(2024, time.March, 30, 0, 0, 0, 0, berlin),
			b:    time.Date(2024, time.March, 31, 0, 0, 0, 0, berlin),
			want: 1,
		},
		{
			name: "two days across the 23-hour day",
			a:    time.Date(2024, time.March, 30, 0, 0, 0, 0, berlin),
			b:    time.Date(2024, time.April, 1, 0, 0, 0, 0, berlin),
			want: 2,
		},
		{
			name: "fall back day counts as one",
			a:    time.Date(2024, time.October, 26, 0, 0, 0, 0, berlin),
			b:    time.Date(2024, time.October, 27, 0, 0, 0, 0, berlin),
			want: 1,
		},
		{
			name: "time of day is ignored",
			a:    time.Date(2024, time.January, 1, 23, 59, 0, 0, berlin),
			b:    time.Date(2024, time.January, 2, 0, 1, 0, 0, berlin),
			want: 1,
		},
		{
			name: "negative when b precedes a",
			a:    time.Date(2024, time.April, 1, 0, 0, 0, 0, berlin),
			b:    time.Date(2024, time.March, 30, 0, 0, 0, 0, berlin),
			want: -2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DaysBetween(tc.a, tc.b); got != tc.want {
				t.Errorf("DaysBetween = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestWindowDaysAcrossSpringForward(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	w := Window{
		Start: time.Date(2024, time.March, 30, 0, 0, 0, 0, berlin),
		End:   time.Date(2024, time.April, 6, 23, 59, 0, 0, berlin),
	}
	if got := w.Days(); got != 7 {
		t.Errorf("Days = %d, want 7", got)
	}
}

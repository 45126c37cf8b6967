package domain

import "time"

// LoginData identifies one user's ChurchTools login, as extracted from the
// app QR payload or the churchtools:// deep link.
type LoginData struct {
	URL      string `json:"url"`
	Token    string `json:"token"`
	PersonID string `json:"personid"`
	ChatID   int64  `json:"telegramid"`
}

// Window is the inclusive date/time range a query covers. Both bounds are in
// the caller's local time zone.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds the query window [today+dayOffset 00:00,
// today+dayOffset+dayRange 23:59] relative to now.
func NewWindow(now time.Time, dayOffset, dayRange int) Window {
	day := now.AddDate(0, 0, dayOffset)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, dayRange)
	end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 0, 0, end.Location())
	return Window{Start: start, End: end}
}

// Days is the window length in whole days between the start and end dates.
func (w Window) Days() int {
	return DaysBetween(w.Start, w.End)
}

// DaysBetween counts calendar days from the date of a to the date of b.
// Both dates are re-anchored in UTC first, so a 23- or 25-hour DST
// transition day still counts as exactly one day.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// Occurrence is one concrete start/end instance produced by expanding a
// recurrence rule. Derived, never persisted.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

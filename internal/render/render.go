// Package render formats booking entries as Telegram HTML messages,
// grouped by day, in German.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Craeckie/church-bot/internal/booking"
	"github.com/Craeckie/church-bot/internal/domain"
)

// partLimit splits messages well below Telegram's 4096-character cap so a
// day header never lands at the very end of a part.
const partLimit = 2000

// roomDescrLimit truncates room booking descriptions in list views.
const roomDescrLimit = 30

// calendarDescrLimit truncates calendar descriptions in the category view.
const calendarDescrLimit = 40

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Montag",
	time.Tuesday:   "Dienstag",
	time.Wednesday: "Mittwoch",
	time.Thursday:  "Donnerstag",
	time.Friday:    "Freitag",
	time.Saturday:  "Samstag",
	time.Sunday:    "Sonntag",
}

var codeTag = regexp.MustCompile(`(?i)</?code>`)

// Options select the list layout.
type Options struct {
	// WithWeekNumbers appends the day-of-week number to the day header.
	WithWeekNumbers bool

	// GroupByRoom emits a room header per group instead of inlining the
	// room into each line. Matches entries sorted by room.
	GroupByRoom bool

	// GroupByCategory does the same for calendar categories.
	GroupByCategory bool

	// PrintToday starts the output with a "Heute" header even when today
	// has no entries.
	PrintToday bool

	// FullDate uses dd.mm.yy in day headers, for search results that may
	// lie far ahead.
	FullDate bool
}

// Rooms renders room booking entries. Day headers link back to the
// churchresource day view of the instance.
func Rooms(login domain.LoginData, entries []booking.Entry, now time.Time, opts Options) []string {
	var (
		parts      []string
		part       strings.Builder
		curDate    = dateOf(now)
		curRoom    string
		haveRoom   bool
		unaccepted bool
		first      = true
	)

	for _, e := range entries {
		if first && (dateOf(e.Start).Equal(curDate) || opts.PrintToday) {
			fmt.Fprintf(&part, "<a href=\"%s\">%s (Heute)</a>\n", dayLink(login, now), weekdayNames[now.Weekday()])
		}
		if !dateOf(e.Start).Equal(curDate) {
			if first && opts.PrintToday {
				part.WriteString("<i>Keine Einträge</i>\n")
			}
			if part.Len() > partLimit {
				parts = append(parts, part.String())
				part.Reset()
			}
			part.WriteString("\n" + roomDayHeader(login, e.Start, curDate, opts) + "\n")
			curDate = dateOf(e.Start)
			haveRoom = false
		}
		first = false

		line := ""
		if opts.GroupByRoom {
			if !haveRoom || curRoom != e.Room {
				fmt.Fprintf(&part, "<code>%s</code>\n", e.Room)
				curRoom = e.Room
				haveRoom = true
			}
			line = fmt.Sprintf("%s-%s: %s", e.Start.Format("15:04"), endLabel(e), truncate(e.Descr, roomDescrLimit))
		} else {
			line = fmt.Sprintf("%s-%s <code>%s</code>: %s",
				e.Start.Format("15:04"), endLabel(e), e.Room, truncate(e.Descr, roomDescrLimit))
		}
		if !e.Accepted {
			line = "<i>" + codeTag.ReplaceAllString(line, "") + "*</i>"
			unaccepted = true
		}
		part.WriteString(line + "\n")
	}

	if len(entries) == 0 {
		part.WriteString("<i>Keine Einträge</i>")
	}
	if unaccepted {
		part.WriteString("<i>* nicht bestätigt</i>\n")
	}
	if part.Len() > 0 {
		parts = append(parts, part.String())
	}
	return parts
}

// Calendar renders calendar entries. Day headers are plain italics since
// the calendar view has no per-day deep link.
func Calendar(entries []booking.Entry, now time.Time, opts Options) []string {
	var (
		parts       []string
		part        strings.Builder
		curDate     = dateOf(now)
		curCategory string
		haveCat     bool
		unaccepted  bool
		empty       = true
	)
	if opts.PrintToday {
		fmt.Fprintf(&part, "<i>%s (Heute)</i>\n", weekdayNames[now.Weekday()])
	}

	for _, e := range entries {
		if !dateOf(e.Start).Equal(curDate) {
			if empty && opts.PrintToday {
				part.WriteString("<i>Keine Einträge</i>\n")
			}
			if part.Len() > partLimit {
				parts = append(parts, part.String())
				part.Reset()
			}
			part.WriteString("\n" + calendarDayHeader(e.Start, curDate, opts) + "\n")
			curDate = dateOf(e.Start)
			haveCat = false
		}
		empty = false

		line := ""
		if opts.GroupByCategory {
			if !haveCat || curCategory != e.Category {
				fmt.Fprintf(&part, "<code>%s</code>\n", e.Category)
				curCategory = e.Category
				haveCat = true
			}
			line = fmt.Sprintf("%s-%s: %s", e.Start.Format("15:04"), endLabel(e), truncate(e.Descr, calendarDescrLimit))
			if e.EventID != "" && e.Booking != nil && e.Booking.HasServiceTexts(e.EventID) {
				line += " /A" + e.EventID
			}
		} else {
			line = fmt.Sprintf("%s-%s <code>%s</code>: %s",
				e.Start.Format("15:04"), endLabel(e), e.Category, truncate(e.Descr, roomDescrLimit))
		}
		if !e.Accepted {
			line = "<i>" + codeTag.ReplaceAllString(line, "") + "*</i>"
			unaccepted = true
		}
		part.WriteString(line + "\n")
	}

	if len(entries) == 0 {
		part.WriteString("<i>Keine Einträge</i>")
	}
	if unaccepted {
		part.WriteString("<i>* nicht bestätigt</i>\n")
	}
	if part.Len() > 0 {
		parts = append(parts, part.String())
	}
	return parts
}

func roomDayHeader(login domain.LoginData, day, prev time.Time, opts Options) string {
	if opts.WithWeekNumbers {
		return fmt.Sprintf("<a href=\"%s\">%s (%d)</a>", dayLink(login, day), weekdayNames[day.Weekday()], dayNumber(day))
	}
	header := fmt.Sprintf("<a href=\"%s\">%s", dayLink(login, day), weekdayNames[day.Weekday()])
	if far(day, prev) {
		header += " (" + day.Format(dateLayout(opts)) + ")"
	}
	return header + "</a>"
}

func calendarDayHeader(day, prev time.Time, opts Options) string {
	if opts.WithWeekNumbers {
		return fmt.Sprintf("<i>%s (%d)</i>", weekdayNames[day.Weekday()], dayNumber(day))
	}
	header := "<i>" + weekdayNames[day.Weekday()]
	if far(day, prev) {
		header += " (" + day.Format(dateLayout(opts)) + ")"
	}
	return header + "</i>"
}

// dayNumber is Monday-based, 1 through 7.
func dayNumber(day time.Time) int {
	n := int(day.Weekday())
	if n == 0 {
		n = 7
	}
	return n
}

func dateLayout(opts Options) string {
	if opts.FullDate {
		return "02.01.06"
	}
	return "02.01"
}

// far reports whether two days are more than one day apart, which is when
// the header needs an explicit date.
func far(a, b time.Time) bool {
	diff := domain.DaysBetween(b, a)
	if diff < 0 {
		diff = -diff
	}
	return diff > 1
}

// endLabel renders the end time, with the date prefixed when the entry
// crosses midnight.
func endLabel(e booking.Entry) string {
	if dateOf(e.Start).Equal(dateOf(e.End)) {
		return e.End.Format("15:04")
	}
	return e.End.Format("02.01 15:04")
}

func dayLink(login domain.LoginData, day time.Time) string {
	return ensureSlash(login.URL) + "?q=churchresource&curdate=" + day.Format("2006-01-02")
}

func ensureSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-5]) + ".."
}

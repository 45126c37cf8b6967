package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/Craeckie/church-bot/internal/booking"
)

var now = time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)

func TestExportBasics(t *testing.T) {
	entries := []booking.Entry{
		{
			BookingID: "12",
			Start:     time.Date(2024, 1, 11, 10, 0, 0, 0, time.UTC),
			End:       time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC),
			Descr:     "Gottesdienst",
			Room:      "EG großer Saal",
			Accepted:  true,
		},
	}
	out := Export(entries, now)
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"SUMMARY:Gottesdienst",
		"LOCATION:EG großer Saal",
		"STATUS:CONFIRMED",
		"UID:12-1704967200@church-bot",
		"END:VCALENDAR",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export misses %q:\n%s", want, out)
		}
	}
}

func TestExportTentativeWhenUnaccepted(t *testing.T) {
	entries := []booking.Entry{
		{
			BookingID: "13",
			Start:     time.Date(2024, 1, 11, 10, 0, 0, 0, time.UTC),
			End:       time.Date(2024, 1, 11, 11, 0, 0, 0, time.UTC),
			Descr:     "Anfrage",
		},
	}
	out := Export(entries, now)
	if !strings.Contains(out, "STATUS:TENTATIVE") {
		t.Errorf("unaccepted entry not tentative:\n%s", out)
	}
}

func TestExportCategoryPrefix(t *testing.T) {
	entries := []booking.Entry{
		{
			BookingID: "14",
			Start:     time.Date(2024, 1, 11, 19, 0, 0, 0, time.UTC),
			End:       time.Date(2024, 1, 11, 21, 0, 0, 0, time.UTC),
			Descr:     "Hauskreis",
			Category:  "Gruppen",
			Accepted:  true,
		},
	}
	out := Export(entries, now)
	if !strings.Contains(out, "SUMMARY:Gruppen: Hauskreis") {
		t.Errorf("missing category prefix:\n%s", out)
	}
}

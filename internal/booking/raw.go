// Package booking aggregates raw ChurchTools bookings into sorted,
// deduplicated occurrence lists for a query window.
package booking

import (
	"strconv"
	"time"
)

// dateTimeLayout is the wire format of every ChurchTools datetime field.
const dateTimeLayout = "2006-01-02 15:04:05"

// StatusRejected marks inactive/rejected room bookings; they are dropped
// before a rule is ever built.
const StatusRejected = 99

// StatusAccepted is the status code of a confirmed booking.
const StatusAccepted = 2

// Addition is one extra single-date occurrence attached to a booking.
type Addition struct {
	AddDate string `json:"add_date"`
}

// Exception suppresses occurrences on a date. The record carries a range,
// but start and end are expected to be equal; a mismatch is a data-quality
// problem, not an error.
type Exception struct {
	Start string `json:"except_date_start"`
	End   string `json:"except_date_end"`
}

// CSEvent is a calendar-service event hanging off a calendar booking.
type CSEvent struct {
	StartDate     string `json:"startdate"`
	EventTemplate string `json:"eventTemplate"`
	ServiceTexts  any    `json:"service_texts"`
}

// Raw is one booking record as the AJAX endpoints deliver it. Numeric fields
// arrive as strings on the wire and stay strings here; helpers convert where
// the core needs numbers.
type Raw struct {
	ID              string `json:"id"`
	StartDate       string `json:"startdate"`
	EndDate         string `json:"enddate"`
	RepeatID        string `json:"repeat_id"`
	RepeatFrequence string `json:"repeat_frequence"`
	RepeatUntil     string `json:"repeat_until"`
	RepeatOptionID  string `json:"repeat_option_id"`
	StatusID        string `json:"status_id"`

	// Room booking fields.
	ResourceID string `json:"resource_id"`
	Text       string `json:"text"`
	Location   string `json:"location"`
	PersonName string `json:"person_name"`

	// Calendar booking fields.
	CategoryID string `json:"category_id"`
	Ort        string `json:"ort"`
	Notizen    string `json:"notizen"`

	// Bezeichnung is the room name for room bookings and the event
	// description for calendar bookings.
	Bezeichnung string `json:"bezeichnung"`

	Note string `json:"note"`

	Additions  map[string]Addition  `json:"additions"`
	Exceptions map[string]Exception `json:"exceptions"`
	CSEvents   map[string]CSEvent   `json:"csevents"`
}

func (r *Raw) statusCode() int {
	n, err := strconv.Atoi(r.StatusID)
	if err != nil {
		return 0
	}
	return n
}

func (r *Raw) resourceNum() int {
	n, err := strconv.Atoi(r.ResourceID)
	if err != nil {
		return 0
	}
	return n
}

// eventIDForStart finds the csevent whose start matches the occurrence
// start exactly.
func (r *Raw) eventIDForStart(start time.Time) string {
	for id, ev := range r.CSEvents {
		t, err := time.ParseInLocation(dateTimeLayout, ev.StartDate, start.Location())
		if err != nil {
			continue
		}
		if t.Equal(start) {
			return id
		}
	}
	return ""
}

// HasServiceTexts reports whether the given csevent carries agenda service
// texts, which is what makes an agenda link worth rendering.
func (r *Raw) HasServiceTexts(eventID string) bool {
	ev, ok := r.CSEvents[eventID]
	if !ok || ev.EventTemplate == "" {
		return false
	}
	switch v := ev.ServiceTexts.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

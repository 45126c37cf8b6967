// Package ics exports booking entries as an iCalendar feed, so people can
// pull the church schedule into their own calendar apps.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/Craeckie/church-bot/internal/booking"
)

const productID = "-//church-bot//DE"

// Export serializes the entries as a VCALENDAR. Unconfirmed bookings are
// marked TENTATIVE so subscribing calendars can render them differently.
func Export(entries []booking.Entry, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range entries {
		event := cal.AddEvent(eventUID(e))
		event.SetDtStampTime(now)
		event.SetStartAt(e.Start)
		event.SetEndAt(e.End)
		event.SetSummary(summary(e))
		if e.Room != "" {
			event.SetLocation(e.Room)
		} else if e.Place != "" {
			event.SetLocation(e.Place)
		}
		if e.Note != "" {
			event.SetDescription(e.Note)
		}
		if e.Accepted {
			event.SetStatus(ical.ObjectStatusConfirmed)
		} else {
			event.SetStatus(ical.ObjectStatusTentative)
		}
	}
	return cal.Serialize()
}

func summary(e booking.Entry) string {
	if e.Category != "" {
		return e.Category + ": " + e.Descr
	}
	return e.Descr
}

// eventUID is stable across exports so subscribed calendars update events
// in place instead of duplicating them.
func eventUID(e booking.Entry) string {
	id := e.BookingID
	if id == "" && e.Booking != nil {
		id = e.Booking.ID
	}
	return fmt.Sprintf("%s-%d@church-bot", id, e.Start.Unix())
}

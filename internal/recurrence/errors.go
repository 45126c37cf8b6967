package recurrence

import (
	"errors"
	"fmt"
)

// ErrUnsupported marks recurrence shapes the engine cannot expand. Callers
// must surface it per booking instead of silently dropping the booking.
var ErrUnsupported = errors.New("unsupported recurrence")

// UnsupportedError carries the offending booking so the failure can be
// attributed when an aggregation spans many bookings.
type UnsupportedError struct {
	BookingID string
	Reason    string
}

func (e *UnsupportedError) Error() string {
	if e.BookingID == "" {
		return fmt.Sprintf("%v: %s", ErrUnsupported, e.Reason)
	}
	return fmt.Sprintf("%v: booking %s: %s", ErrUnsupported, e.BookingID, e.Reason)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

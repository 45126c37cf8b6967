package booking

import (
	"time"

	"github.com/Craeckie/church-bot/internal/domain"
)

// Entry is one decorated occurrence, ready for rendering. Which fields are
// populated depends on the kind that produced it.
type Entry struct {
	BookingID string    `json:"id,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Descr     string    `json:"descr"`
	Accepted  bool      `json:"accepted"`

	Room    string `json:"room,omitempty"`
	RoomNum int    `json:"room_num,omitempty"`

	Place      string `json:"place,omitempty"`
	Category   string `json:"category,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	Note       string `json:"note,omitempty"`
	EventID    string `json:"event_id,omitempty"`

	// Booking is the raw record the entry was derived from.
	Booking *Raw `json:"booking,omitempty"`
}

// SortOptions select the per-kind secondary ordering and, for rooms, the
// subset partition.
type SortOptions struct {
	Subset         string
	SortByRoom     bool
	SortByCategory bool
}

// Kind is the per-booking-kind capability: room bookings and calendar
// bookings differ in exclusion, decoration, dedup, ordering and search
// surface, while the aggregation loop stays shared.
type Kind interface {
	Name() string

	// Exclude drops a raw booking before a rule is built for it.
	Exclude(raw *Raw) bool

	// Decorate enriches a bare occurrence with the kind's display fields.
	Decorate(occ domain.Occurrence, raw *Raw) Entry

	// Arrange filters, dedups and stably sorts the concatenated entries.
	Arrange(entries []Entry, opts SortOptions) []Entry

	// SearchText lists the texts a free-text search matches against.
	SearchText(raw *Raw) []string

	// DefaultDayRange is the window length the kind's list view uses.
	DefaultDayRange() int
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

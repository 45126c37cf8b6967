package booking

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/Craeckie/church-bot/internal/domain"
)

// Category is one calendar category from the cal master data.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"bezeichnung"`
}

// CalendarKind is the booking kind for churchcal entries. Unlike room
// bookings, nothing is excluded up front; rejected entries stay visible but
// are marked unaccepted. The same event can appear under several source
// records, so decorated entries are deduplicated.
type CalendarKind struct {
	categories map[string]Category
	log        *slog.Logger
}

func NewCalendarKind(categories map[string]Category, log *slog.Logger) *CalendarKind {
	if log == nil {
		log = slog.Default()
	}
	return &CalendarKind{categories: categories, log: log}
}

func (k *CalendarKind) Name() string { return "calendar" }

func (k *CalendarKind) DefaultDayRange() int { return 8 }

func (k *CalendarKind) Exclude(*Raw) bool { return false }

func (k *CalendarKind) Decorate(occ domain.Occurrence, raw *Raw) Entry {
	category := raw.CategoryID
	if c, ok := k.categories[raw.CategoryID]; ok {
		category = c.Name
	}
	return Entry{
		BookingID:  raw.ID,
		Start:      occ.Start,
		End:        occ.End,
		Descr:      raw.Bezeichnung,
		Accepted:   raw.StatusID == "" || raw.statusCode() == StatusAccepted,
		Place:      strings.TrimSpace(raw.Ort),
		Category:   category,
		CategoryID: raw.CategoryID,
		Note:       raw.Notizen,
		EventID:    raw.eventIDForStart(occ.Start),
		Booking:    raw,
	}
}

func (k *CalendarKind) SearchText(raw *Raw) []string {
	category := ""
	if c, ok := k.categories[raw.CategoryID]; ok {
		category = c.Name
	}
	return []string{category, raw.Ort, raw.Notizen, raw.Bezeichnung}
}

// Arrange dedups by (start, end, category, descr) keeping the first entry,
// then sorts with the calendar date as primary key and either the category
// or the start time as secondary key.
func (k *CalendarKind) Arrange(entries []Entry, opts SortOptions) []Entry {
	seen := make(map[string]struct{}, len(entries))
	unique := make([]Entry, 0, len(entries))
	for _, e := range entries {
		key := fmt.Sprintf("%d|%d|%s|%s", e.Start.Unix(), e.End.Unix(), e.Category, e.Descr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, e)
	}

	if opts.SortByCategory {
		sort.SliceStable(unique, func(i, j int) bool {
			a, b := unique[i], unique[j]
			if !dayOf(a.Start).Equal(dayOf(b.Start)) {
				return dayOf(a.Start).Before(dayOf(b.Start))
			}
			if ca, cb := categoryOrder(a.CategoryID), categoryOrder(b.CategoryID); ca != cb {
				return ca < cb
			}
			if !a.Start.Equal(b.Start) {
				return a.Start.Before(b.Start)
			}
			return a.Descr < b.Descr
		})
	} else {
		sort.SliceStable(unique, func(i, j int) bool {
			a, b := unique[i], unique[j]
			if !dayOf(a.Start).Equal(dayOf(b.Start)) {
				return dayOf(a.Start).Before(dayOf(b.Start))
			}
			if !a.Start.Equal(b.Start) {
				return a.Start.Before(b.Start)
			}
			return a.Descr < b.Descr
		})
	}
	return unique
}

// categoryOrder compares category ids numerically when possible so "10"
// sorts after "2".
func categoryOrder(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return unknownRoomRank
	}
	return n
}

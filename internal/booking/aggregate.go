package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Craeckie/church-bot/internal/domain"
	"github.com/Craeckie/church-bot/internal/recurrence"
)

// DefaultSearchMax caps free-text search results.
const DefaultSearchMax = 10

// searchDayRange is the wide window a free-text search expands over.
const searchDayRange = 365

// msgNoBookings is the soft error when the upstream source yields nothing
// and no better message is available.
const msgNoBookings = "Konnte Buchungen nicht laden"

// Source delivers the raw bookings of one upstream endpoint. The soft error
// string is user-facing and may accompany stale-but-usable data.
type Source interface {
	Fetch(ctx context.Context) ([]*Raw, string, error)
}

// Options control one aggregation call. A negative DayRange selects the
// kind's default window; zero means today only.
type Options struct {
	DayRange  int
	DayOffset int
	Sort      SortOptions
}

// Aggregator merges many bookings' occurrences into one ordered list. It
// holds no state between calls and is cache-agnostic; repeated calls with
// identical inputs produce identical output.
type Aggregator struct {
	source Source
	kind   Kind
	log    *slog.Logger
	now    func() time.Time
}

func NewAggregator(source Source, kind Kind, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{source: source, kind: kind, log: log, now: time.Now}
}

// WithClock overrides the time source the query window is anchored to.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// GetEntries expands every booking into the query window, decorates,
// concatenates, dedups and stably sorts the result.
//
// A nil entry slice means the upstream data could not be loaded at all and
// is distinct from an empty-but-valid result. A booking whose recurrence
// cannot be expanded is logged and skipped; it never takes down the batch.
func (a *Aggregator) GetEntries(ctx context.Context, opts Options) ([]Entry, string) {
	raws, softErr, err := a.source.Fetch(ctx)
	if err != nil {
		a.log.Warn("booking fetch failed", "kind", a.kind.Name(), "err", err)
		if softErr == "" {
			softErr = msgNoBookings
		}
		return nil, softErr
	}
	if raws == nil {
		if softErr == "" {
			softErr = msgNoBookings
		}
		return nil, softErr
	}

	if opts.DayRange < 0 {
		opts.DayRange = a.kind.DefaultDayRange()
	}
	window := domain.NewWindow(a.now(), opts.DayOffset, opts.DayRange)

	entries := a.kind.Arrange(a.expand(raws, window), opts.Sort)
	if entries == nil {
		entries = []Entry{}
	}
	return entries, softErr
}

// ExpandWindow is GetEntries without the upstream fetch, for callers that
// already hold the raw bookings.
func (a *Aggregator) ExpandWindow(raws []*Raw, window domain.Window, sortOpts SortOptions) []Entry {
	return a.kind.Arrange(a.expand(raws, window), sortOpts)
}

func (a *Aggregator) expand(raws []*Raw, window domain.Window) []Entry {
	var entries []Entry
	for _, raw := range raws {
		if a.kind.Exclude(raw) {
			continue
		}
		rule, err := BuildRule(raw, a.log)
		if err != nil {
			if errors.Is(err, recurrence.ErrUnsupported) {
				a.log.Warn("skipping booking with unsupported recurrence",
					"kind", a.kind.Name(), "booking", raw.ID, "err", err)
			} else {
				a.log.Warn("skipping malformed booking",
					"kind", a.kind.Name(), "booking", raw.ID, "err", err)
			}
			continue
		}
		for _, occ := range rule.OccurrencesInWindow(window) {
			entries = append(entries, a.kind.Decorate(occ, raw))
		}
	}
	return entries
}

// Search expands a year ahead and scans the decorated entries for a
// case-insensitive substring match across the kind's searchable fields.
// The scan stops at max results; truncation is reported in the soft error,
// not as a failure.
func (a *Aggregator) Search(ctx context.Context, text string, max int) ([]Entry, string, bool) {
	if max <= 0 {
		max = DefaultSearchMax
	}
	needle := strings.ToLower(text)

	entries, softErr := a.GetEntries(ctx, Options{DayRange: searchDayRange})
	if entries == nil {
		return nil, softErr, false
	}

	matches := []Entry{}
	truncated := false
	for _, e := range entries {
		if e.Booking == nil || e.Booking.statusCode() == StatusRejected {
			continue
		}
		if !matchesAny(a.kind.SearchText(e.Booking), needle) {
			continue
		}
		matches = append(matches, e)
		if len(matches) >= max {
			truncated = true
			break
		}
	}
	if truncated {
		msg := fmt.Sprintf("Zu viele Ergebnisse, zeige die ersten %d.", max)
		if softErr != "" {
			softErr += msg
		} else {
			softErr = msg
		}
	}
	return matches, softErr, truncated
}

func matchesAny(fields []string, needle string) bool {
	for _, f := range fields {
		if f == "" {
			continue
		}
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

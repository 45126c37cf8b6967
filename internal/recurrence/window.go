package recurrence

import (
	"github.com/Craeckie/church-bot/internal/domain"
)

// OccurrencesInWindow answers which concrete occurrences of the rule
// intersect the window. Two disjoint cases are unioned:
//
//  1. The latest occurrence computed from a date strictly before the window
//     can still reach into it when its span covers multiple days. It is
//     emitted as one synthetic row per day of overlap, each starting at
//     midnight of that day and carrying the occurrence's real end. The row
//     count is capped at min(overlap days, window length in days) + 1.
//  2. Every date generated inside [window.Start, window.End] becomes a
//     regular occurrence.
//
// No dedup happens here; that is the aggregator's policy.
func (r Rule) OccurrencesInWindow(w domain.Window) []domain.Occurrence {
	var out []domain.Occurrence

	if prev, ok := r.Before(w.Start); ok {
		occ := r.Occurrence(prev)
		if occ.End.After(w.Start) {
			overlap := domain.DaysBetween(w.Start, occ.End)
			rows := overlap
			if days := w.Days(); days < rows {
				rows = days
			}
			for day := 0; day <= rows; day++ {
				out = append(out, domain.Occurrence{
					Start: w.Start.AddDate(0, 0, day),
					End:   occ.End,
				})
			}
		}
	}

	for _, d := range r.Between(w.Start, w.End) {
		out = append(out, r.Occurrence(d))
	}
	return out
}

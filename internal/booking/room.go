package booking

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Craeckie/church-bot/internal/domain"
)

// Room subsets as offered in the chat keyboard.
const (
	SubsetAll   = "Alle"
	SubsetSaal  = "Saal"
	SubsetNeben = "Nebenräume"
	SubsetRest  = "Rest"
)

// unknownRoomRank sorts rooms missing from every table last.
const unknownRoomRank = 999

// RoomTables holds the manual display ranks per room partition. The "all"
// view merges the three partitions with fixed rank offsets so cross-partition
// ordering stays stable.
type RoomTables struct {
	Saal  map[int]int `yaml:"saal"`
	Neben map[int]int `yaml:"nebenraeume"`
	Rest  map[int]int `yaml:"rest"`

	// SaalRooms restricts the "Saal" subset view; it deliberately differs
	// from the Saal ranking table.
	SaalRooms []int `yaml:"saal_rooms"`
}

// DefaultRoomTables returns the built-in ranking for the FeG Karlsruhe
// instance.
func DefaultRoomTables() RoomTables {
	return RoomTables{
		Saal: map[int]int{
			7:  1, // EG großer Saal
			9:  2, // EG Foyer
			20: 3, // EG 2. Foyer
			21: 4, // EG Küche unten
		},
		Neben: map[int]int{
			22: 1,  // EG Kükennest
			44: 2,  // EG Mehrzweckraum
			23: 3,  // EG Eckzimmer (Seminarraum)
			24: 4,  // EG Rabennest
			25: 5,  // EG Aquarium
			29: 6,  // OG Küche oben
			26: 7,  // OG Gelber Salon
			30: 8,  // OG Besprechungszimmer
			31: 9,  // OG Gesprächsraum
			34: 10, // DG Entdeckerkämp
			13: 11, // KG Minikämp-Raum
			14: 12, // KG Jugendraum
			15: 13, // KG Bar Deeper
		},
		Rest: map[int]int{
			10: 1, // NEC - Beamer 1
			11: 2, // Kleine Anlage (Mischpult)
			35: 5, // GA Garten
			36: 6, // GA Container groß
			37: 7, // GA Container klein
			41: 8, // Übersetzungs-Koffer 1
			42: 9, // Übersetzungs-Koffer 2
			43: 10,
			45: 11, // Seminarraum Büro Kaiserstr.
			39: 12, // Gemeindebüro
		},
		SaalRooms: []int{7, 9, 21},
	}
}

// LoadRoomTables reads a YAML override file; missing sections fall back to
// the defaults.
func LoadRoomTables(path string) (RoomTables, error) {
	tables := DefaultRoomTables()
	data, err := os.ReadFile(path)
	if err != nil {
		return RoomTables{}, fmt.Errorf("read room tables: %w", err)
	}
	var override RoomTables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return RoomTables{}, fmt.Errorf("parse room tables: %w", err)
	}
	if override.Saal != nil {
		tables.Saal = override.Saal
	}
	if override.Neben != nil {
		tables.Neben = override.Neben
	}
	if override.Rest != nil {
		tables.Rest = override.Rest
	}
	if override.SaalRooms != nil {
		tables.SaalRooms = override.SaalRooms
	}
	return tables, nil
}

// All merges the partitions with rank offsets +0/+5/+30.
func (t RoomTables) All() map[int]int {
	merged := make(map[int]int, len(t.Saal)+len(t.Neben)+len(t.Rest))
	for room, rank := range t.Saal {
		merged[room] = rank
	}
	for room, rank := range t.Neben {
		merged[room] = rank + 5
	}
	for room, rank := range t.Rest {
		merged[room] = rank + 30
	}
	return merged
}

// RoomKind is the booking kind for churchresource room bookings.
type RoomKind struct {
	tables RoomTables
	log    *slog.Logger
}

func NewRoomKind(tables RoomTables, log *slog.Logger) *RoomKind {
	if log == nil {
		log = slog.Default()
	}
	return &RoomKind{tables: tables, log: log}
}

func (k *RoomKind) Name() string { return "room" }

func (k *RoomKind) DefaultDayRange() int { return 7 }

// Exclude drops rejected bookings before rule building.
func (k *RoomKind) Exclude(raw *Raw) bool {
	return raw.statusCode() == StatusRejected
}

func (k *RoomKind) Decorate(occ domain.Occurrence, raw *Raw) Entry {
	return Entry{
		Start:    occ.Start,
		End:      occ.End,
		Descr:    raw.Text,
		Accepted: raw.statusCode() == StatusAccepted,
		Room:     strings.TrimSpace(raw.Bezeichnung),
		RoomNum:  raw.resourceNum(),
		Booking:  raw,
	}
}

func (k *RoomKind) SearchText(raw *Raw) []string {
	return []string{raw.Text, raw.Location, raw.Note, raw.PersonName}
}

// Arrange filters the requested subset and sorts with the calendar date as
// primary key. SortByRoom orders by room rank then start; otherwise by start
// then room rank then start again, so exact ties keep their input order.
// Room bookings have no duplication path, so there is no dedup step.
func (k *RoomKind) Arrange(entries []Entry, opts SortOptions) []Entry {
	ranks := k.tables.All()
	switch opts.Subset {
	case SubsetSaal:
		entries = filterRooms(entries, roomSet(k.tables.SaalRooms))
		ranks = k.tables.Saal
	case SubsetNeben:
		entries = filterRooms(entries, keySet(k.tables.Neben))
		ranks = k.tables.Neben
	case SubsetRest:
		entries = filterRooms(entries, keySet(k.tables.Rest))
		ranks = k.tables.Rest
	default: // Alle
		for _, e := range entries {
			if _, ok := ranks[e.RoomNum]; !ok {
				k.log.Warn("room is not in any sort table", "room", e.RoomNum, "name", e.Room)
			}
		}
	}

	rank := func(e Entry) int {
		if r, ok := ranks[e.RoomNum]; ok {
			return r
		}
		return unknownRoomRank
	}

	sorted := append([]Entry(nil), entries...)
	if opts.SortByRoom {
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if !dayOf(a.Start).Equal(dayOf(b.Start)) {
				return dayOf(a.Start).Before(dayOf(b.Start))
			}
			if rank(a) != rank(b) {
				return rank(a) < rank(b)
			}
			return a.Start.Before(b.Start)
		})
	} else {
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if !a.Start.Equal(b.Start) {
				return a.Start.Before(b.Start)
			}
			if rank(a) != rank(b) {
				return rank(a) < rank(b)
			}
			return a.Start.Before(b.Start)
		})
	}
	return sorted
}

func filterRooms(entries []Entry, allowed map[int]struct{}) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := allowed[e.RoomNum]; ok {
			out = append(out, e)
		}
	}
	return out
}

func roomSet(rooms []int) map[int]struct{} {
	set := make(map[int]struct{}, len(rooms))
	for _, r := range rooms {
		set[r] = struct{}{}
	}
	return set
}

func keySet(m map[int]int) map[int]struct{} {
	set := make(map[int]struct{}, len(m))
	for k := range m {
		set[k] = struct{}{}
	}
	return set
}

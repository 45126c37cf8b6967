package churchtools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Craeckie/church-bot/internal/booking"
	"github.com/Craeckie/church-bot/internal/domain"
)

// masterDataTTL keeps the category master data for a week; it changes when
// someone reorganizes the calendar, which is rare.
const masterDataTTL = 7 * 24 * time.Hour

// bookingsTTL covers the raw booking lists. Expansion into entries is
// deterministic, so caching the upstream body is enough.
const bookingsTTL = 12 * time.Hour

// RoomSource delivers churchresource bookings for one login.
type RoomSource struct {
	client *Client
	login  domain.LoginData
}

func NewRoomSource(client *Client, login domain.LoginData) *RoomSource {
	return &RoomSource{client: client, login: login}
}

func (s *RoomSource) Fetch(ctx context.Context) ([]*booking.Raw, string, error) {
	data, softErr := s.client.Ajax(ctx, s.login, "resource", "getBookings", nil, bookingsTTL)
	if data == nil {
		return nil, softErr, nil
	}
	var byID map[string]*booking.Raw
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, "", fmt.Errorf("decode bookings: %w", err)
	}
	return flatten(byID), softErr, nil
}

// CalendarSource delivers churchcal bookings across all categories.
type CalendarSource struct {
	client *Client
	login  domain.LoginData
}

func NewCalendarSource(client *Client, login domain.LoginData) *CalendarSource {
	return &CalendarSource{client: client, login: login}
}

// Categories loads the calendar category master data. The result also feeds
// the category_ids parameters of the booking fetch.
func (s *CalendarSource) Categories(ctx context.Context) (map[string]booking.Category, string, error) {
	data, softErr := s.client.Ajax(ctx, s.login, "cal", "getMasterData", nil, masterDataTTL)
	if data == nil {
		return nil, softErr, nil
	}
	var master struct {
		Category map[string]booking.Category `json:"category"`
	}
	if err := json.Unmarshal(data, &master); err != nil {
		return nil, "", fmt.Errorf("decode master data: %w", err)
	}
	return master.Category, softErr, nil
}

func (s *CalendarSource) Fetch(ctx context.Context) ([]*booking.Raw, string, error) {
	categories, softErr, err := s.Categories(ctx)
	if err != nil {
		return nil, "", err
	}
	if categories == nil {
		return nil, softErr, nil
	}

	params := make(map[string]string, len(categories))
	for i, id := range sortedIDs(categories) {
		params[fmt.Sprintf("category_ids[%d]", i)] = id
	}

	data, bookingsSoftErr := s.client.Ajax(ctx, s.login, "cal", "getCalPerCategory", params, bookingsTTL)
	softErr = mergeSoftErrors(softErr, bookingsSoftErr)
	if data == nil {
		return nil, softErr, nil
	}
	var byCategory map[string]map[string]*booking.Raw
	if err := json.Unmarshal(data, &byCategory); err != nil {
		return nil, "", fmt.Errorf("decode calendar bookings: %w", err)
	}

	var raws []*booking.Raw
	for _, categoryID := range sortedKeys(byCategory) {
		raws = append(raws, flatten(byCategory[categoryID])...)
	}
	return raws, softErr, nil
}

// flatten orders a booking map by numeric id so repeated fetches produce
// the same slice.
func flatten(byID map[string]*booking.Raw) []*booking.Raw {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sortNumeric(ids)
	raws := make([]*booking.Raw, 0, len(ids))
	for _, id := range ids {
		if raw := byID[id]; raw != nil {
			raws = append(raws, raw)
		}
	}
	return raws
}

// mergeSoftErrors keeps both user-facing warnings when master data and
// bookings degrade independently.
func mergeSoftErrors(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case a == b:
		return a
	}
	return a + "\n" + b
}

func sortedIDs(categories map[string]booking.Category) []string {
	ids := make([]string, 0, len(categories))
	for id := range categories {
		ids = append(ids, id)
	}
	sortNumeric(ids)
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortNumeric(keys)
	return keys
}

func sortNumeric(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
}

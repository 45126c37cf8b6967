package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Craeckie/church-bot/internal/booking"
	"github.com/Craeckie/church-bot/internal/churchtools"
	"github.com/Craeckie/church-bot/internal/domain"
	"github.com/Craeckie/church-bot/internal/ics"
	"github.com/Craeckie/church-bot/internal/render"
)

// icalDayRange is the window of the exported calendar feed.
const icalDayRange = 30

func timeLabelRange(label string) (dayRange, dayOffset int) {
	switch label {
	case labelTomorrow:
		return 0, 1
	case labelWeek:
		return 7, 0
	default: // Heute
		return 0, 0
	}
}

func (b *Bot) roomAggregator(login domain.LoginData) *booking.Aggregator {
	return booking.NewAggregator(
		churchtools.NewRoomSource(b.client, login),
		booking.NewRoomKind(b.tables, b.log),
		b.log,
	).WithClock(b.now)
}

func (b *Bot) calendarAggregator(ctx context.Context, login domain.LoginData) *booking.Aggregator {
	source := churchtools.NewCalendarSource(b.client, login)
	categories, _, err := source.Categories(ctx)
	if err != nil {
		b.log.Warn("loading categories failed", "err", err)
	}
	return booking.NewAggregator(source, booking.NewCalendarKind(categories, b.log), b.log).WithClock(b.now)
}

func (b *Bot) sendRooms(ctx context.Context, login domain.LoginData, chatID int64, subset, timeLabel string) {
	dayRange, dayOffset := timeLabelRange(timeLabel)
	entries, softErr := b.roomAggregator(login).GetEntries(ctx, booking.Options{
		DayRange:  dayRange,
		DayOffset: dayOffset,
		Sort:      booking.SortOptions{Subset: subset, SortByRoom: dayRange == 0},
	})
	if entries == nil {
		b.replyHTML(chatID, withSoftError("Konnte Daten nicht abrufen!", softErr), mainKeyboard())
		return
	}

	parts := render.Rooms(login, entries, b.now(), render.Options{
		WithWeekNumbers: true,
		GroupByRoom:     dayRange == 0,
		PrintToday:      dayOffset == 0,
	})
	if len(parts) == 0 {
		parts = []string{"Keine Buchungen!"}
	}
	parts[0] = fmt.Sprintf("<b>%s</b>\n", subset) + parts[0]
	b.sendParts(chatID, parts, softErr)
}

func (b *Bot) sendCalendar(ctx context.Context, login domain.LoginData, chatID int64, timeLabel string) {
	dayRange, dayOffset := timeLabelRange(timeLabel)
	entries, softErr := b.calendarAggregator(ctx, login).GetEntries(ctx, booking.Options{
		DayRange:  dayRange,
		DayOffset: dayOffset,
		Sort:      booking.SortOptions{SortByCategory: true},
	})
	if entries == nil {
		b.replyHTML(chatID, withSoftError("Konnte Daten nicht abrufen!", softErr), mainKeyboard())
		return
	}

	parts := render.Calendar(entries, b.now(), render.Options{
		GroupByCategory: true,
		PrintToday:      dayOffset == 0,
	})
	if len(parts) == 0 {
		parts = []string{"Keine Einträge!"}
	}
	b.sendParts(chatID, parts, softErr)
}

func (b *Bot) sendRoomSearch(ctx context.Context, login domain.LoginData, chatID int64, query string) {
	matches, softErr, _ := b.roomAggregator(login).Search(ctx, query, b.searchMax)
	if matches == nil {
		b.replyHTML(chatID, withSoftError("Konnte Daten nicht abrufen!", softErr), mainKeyboard())
		return
	}

	parts := render.Rooms(login, matches, b.now(), render.Options{FullDate: true})
	if len(matches) == 0 {
		parts = []string{"Keine Buchungen gefunden!"}
	}
	parts[0] = fmt.Sprintf("Suche nach <b>%s</b>:\n", query) + parts[0]
	b.sendParts(chatID, parts, softErr)
}

func (b *Bot) sendCalendarSearch(ctx context.Context, login domain.LoginData, chatID int64, query string) {
	matches, softErr, _ := b.calendarAggregator(ctx, login).Search(ctx, query, b.searchMax)
	if matches == nil {
		b.replyHTML(chatID, withSoftError("Konnte Daten nicht abrufen!", softErr), mainKeyboard())
		return
	}

	parts := render.Calendar(matches, b.now(), render.Options{GroupByCategory: true, FullDate: true})
	if len(matches) == 0 {
		parts = []string{"Keine Einträge gefunden!"}
	}
	parts[0] = fmt.Sprintf("Suche nach <b>%s</b>:\n", query) + parts[0]
	b.sendParts(chatID, parts, softErr)
}

// sendAgendaLink answers the /A<id> command rendered behind calendar
// entries with a link into the churchservice agenda of the instance.
func (b *Bot) sendAgendaLink(login domain.LoginData, chatID int64, eventID string) {
	url := strings.TrimSuffix(login.URL, "/") + "/?q=churchservice#AgendaView/event:" + eventID
	b.replyHTML(chatID, fmt.Sprintf("<a href=\"%s\">Ablaufplan öffnen</a>", url), mainKeyboard())
}

// sendICal exports the next weeks of calendar entries as a file.
func (b *Bot) sendICal(ctx context.Context, login domain.LoginData, chatID int64) {
	entries, softErr := b.calendarAggregator(ctx, login).GetEntries(ctx, booking.Options{
		DayRange: icalDayRange,
	})
	if entries == nil {
		b.replyHTML(chatID, withSoftError("Konnte Daten nicht abrufen!", softErr), mainKeyboard())
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "kalender.ics",
		Bytes: []byte(ics.Export(entries, b.now())),
	})
	if _, err := b.api.Send(doc); err != nil {
		b.log.Warn("sending ical failed", "chat", chatID, "err", err)
	}
}

// sendParts delivers a multi-part message, attaching the soft error to the
// last part the way the web UI shows stale-data hints.
func (b *Bot) sendParts(chatID int64, parts []string, softErr string) {
	if softErr != "" && len(parts) > 0 {
		parts[len(parts)-1] += fmt.Sprintf("\n<i>%s</i>", softErr)
	}
	for _, part := range parts {
		b.replyHTML(chatID, part, mainKeyboard())
	}
}

func withSoftError(msg, softErr string) string {
	if softErr == "" {
		return msg
	}
	return msg + "\n<i>" + softErr + "</i>"
}

// Package bot is the Telegram front end: it routes chat messages to the
// booking views and handles the login conversation.
package bot

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Craeckie/church-bot/internal/booking"
	"github.com/Craeckie/church-bot/internal/cache"
	"github.com/Craeckie/church-bot/internal/churchtools"
	"github.com/Craeckie/church-bot/internal/domain"
	"github.com/Craeckie/church-bot/internal/session"
)

// modeTTL bounds how long a conversation state like "waiting for search
// text" survives. After that the next message falls through to the
// default dispatcher.
const modeTTL = time.Hour

// timeRoomRe matches the "<Zeit>: <Räume>" buttons of the room keyboard.
var timeRoomRe = regexp.MustCompile(`^([A-Za-z0-9äöü ]+): ([A-Za-zäöü]+)$`)

var agendaRe = regexp.MustCompile(`^/A([0-9]+)$`)

// Sender is the outgoing half of the Telegram API, split out so handlers
// are testable without a live bot.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api       Sender
	client    *churchtools.Client
	sessions  *session.Store
	cache     cache.Cache
	tables    booking.RoomTables
	searchMax int
	log       *slog.Logger
	now       func() time.Time
}

type Options struct {
	API       Sender
	Client    *churchtools.Client
	Sessions  *session.Store
	Cache     cache.Cache
	Tables    booking.RoomTables
	SearchMax int
	Log       *slog.Logger
}

func New(opts Options) *Bot {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	searchMax := opts.SearchMax
	if searchMax <= 0 {
		searchMax = booking.DefaultSearchMax
	}
	return &Bot{
		api:       opts.API,
		client:    opts.Client,
		sessions:  opts.Sessions,
		cache:     opts.Cache,
		tables:    opts.Tables,
		searchMax: searchMax,
		log:       log,
		now:       time.Now,
	}
}

// Run consumes the update channel until the context ends. Each update is
// handled synchronously; Telegram's long poll paces the loop.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one Telegram update. Handler panics are not
// recovered here; the API library already isolates the update loop.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	text := update.Message.Text
	log := b.log.With("chat", chatID)

	// Login data may arrive at any time and replaces the stored session.
	if login, ok := parseLoginText(text, chatID); ok {
		b.handleLoginAttempt(ctx, chatID, login)
		return
	}

	login, ok := b.ensureLogin(ctx, chatID)
	if !ok {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		log.Debug("sending chat action failed", "err", err)
	}

	if mode, ok := b.takeMode(ctx, chatID); ok {
		b.handleMode(ctx, chatID, login, mode, text)
		return
	}

	switch {
	case text == labelRooms:
		b.setMode(ctx, chatID, "rooms")
		b.reply(chatID, "Welcher Zeitraum?", timeKeyboard())
	case text == labelCalendar:
		b.setMode(ctx, chatID, "calendar")
		b.reply(chatID, "Welcher Zeitraum?", timeKeyboard())
	case timeRoomRe.MatchString(text):
		m := timeRoomRe.FindStringSubmatch(text)
		if isTimeLabel(m[1]) && isRoomSubset(m[2]) {
			b.sendRooms(ctx, login, chatID, m[2], m[1])
		} else {
			b.replyUnknown(chatID)
		}
	case agendaRe.MatchString(text):
		m := agendaRe.FindStringSubmatch(text)
		b.sendAgendaLink(login, chatID, m[1])
	case text == "/ical":
		b.sendICal(ctx, login, chatID)
	case text == "/start":
		b.reply(chatID, "Du bist schon eingeloggt. Nutze die Buttons unten.", mainKeyboard())
	default:
		b.replyUnknown(chatID)
	}
}

func (b *Bot) handleMode(ctx context.Context, chatID int64, login domain.LoginData, mode, text string) {
	switch mode {
	case "rooms":
		switch {
		case isTimeLabel(text):
			b.reply(chatID, "Welche Räume?", roomKeyboard(text))
		case text == labelSearch:
			b.setMode(ctx, chatID, "room_search")
			b.reply(chatID, "Gib den Namen der Raumbelegung (oder einen Teil) ein:", removeKeyboard())
		default:
			b.replyUnknown(chatID)
		}
	case "calendar":
		switch {
		case isTimeLabel(text):
			b.sendCalendar(ctx, login, chatID, text)
		case text == labelSearch:
			b.setMode(ctx, chatID, "calendar_search")
			b.reply(chatID, "Gib den Namen des Kalendereintrags (oder einen Teil davon) ein:", removeKeyboard())
		default:
			b.replyUnknown(chatID)
		}
	case "room_search":
		b.sendRoomSearch(ctx, login, chatID, text)
	case "calendar_search":
		b.sendCalendarSearch(ctx, login, chatID, text)
	default:
		b.replyUnknown(chatID)
	}
}

func (b *Bot) replyUnknown(chatID int64) {
	b.reply(chatID, "Unbekannter Befehl, du kannst einen der Buttons unten nutzen", mainKeyboard())
}

func modeKey(chatID int64) string {
	return "mode:" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) setMode(ctx context.Context, chatID int64, mode string) {
	if err := b.cache.Set(ctx, modeKey(chatID), []byte(mode), modeTTL); err != nil {
		b.log.Warn("storing chat mode failed", "chat", chatID, "err", err)
	}
}

// takeMode reads and clears the chat mode, so every mode answer is
// consumed exactly once.
func (b *Bot) takeMode(ctx context.Context, chatID int64) (string, bool) {
	raw, err := b.cache.Get(ctx, modeKey(chatID))
	if err != nil {
		return "", false
	}
	if err := b.cache.Delete(ctx, modeKey(chatID)); err != nil {
		b.log.Warn("clearing chat mode failed", "chat", chatID, "err", err)
	}
	return string(raw), true
}

func (b *Bot) reply(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("sending message failed", "chat", chatID, "err", err)
	}
}

func (b *Bot) replyHTML(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("sending message failed", "chat", chatID, "err", err)
	}
}

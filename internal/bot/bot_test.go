package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Craeckie/church-bot/internal/booking"
	"github.com/Craeckie/church-bot/internal/cache"
	"github.com/Craeckie/church-bot/internal/churchtools"
	"github.com/Craeckie/church-bot/internal/domain"
	"github.com/Craeckie/church-bot/internal/session"
)

const chatID int64 = 1001

var testLogin = domain.LoginData{
	URL:      "https://example.church.tools/",
	Token:    "qr-token",
	PersonID: "42",
	ChatID:   chatID,
}

// fakeSender records every outgoing message.
type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) texts() []string {
	var out []string
	for _, c := range s.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (s *fakeSender) contains(t *testing.T, substr string) {
	t.Helper()
	for _, text := range s.texts() {
		if strings.Contains(text, substr) {
			return
		}
	}
	t.Errorf("no sent message contains %q, got %q", substr, s.texts())
}

// doerFunc routes ChurchTools HTTP traffic in tests.
type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(v any) *http.Response {
	raw, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(string(raw))),
		Header:     make(http.Header),
	}
}

// upstream serves a logged-in instance with one room booking tomorrow.
func upstream() doerFunc {
	return func(req *http.Request) (*http.Response, error) {
		body := ""
		if req.Body != nil {
			raw, _ := io.ReadAll(req.Body)
			body = string(raw)
		}
		switch {
		case req.Method == http.MethodHead:
			resp := jsonResponse(nil)
			resp.Header.Set("Set-Cookie", "ChurchTools_session=abc")
			return resp, nil
		case strings.Contains(req.URL.String(), "loginstr="):
			return jsonResponse("ok"), nil
		case strings.Contains(req.URL.String(), "logintoken"):
			return jsonResponse(map[string]any{"data": "permanent-key"}), nil
		case strings.Contains(body, "pollForNews"):
			return jsonResponse(map[string]any{"status": "success", "data": map[string]any{"userid": 42}}), nil
		case strings.Contains(body, "getBookings"):
			return jsonResponse(map[string]any{"status": "success", "data": map[string]any{
				"1": map[string]any{
					"id": "1", "startdate": "2024-01-10 18:00:00", "enddate": "2024-01-10 20:00:00",
					"repeat_id": "0", "status_id": "2", "resource_id": "9",
					"text": "Chorprobe", "bezeichnung": "EG Foyer",
				},
			}}), nil
		default:
			return nil, fmt.Errorf("unexpected request %s %s", req.Method, req.URL)
		}
	}
}

func newTestBot(doer churchtools.HTTPDoer) (*Bot, *fakeSender, *cache.Memory) {
	sender := &fakeSender{}
	mem := cache.NewMemory()
	client := churchtools.NewClient(doer, mem, nil)
	b := New(Options{
		API:      sender,
		Client:   client,
		Sessions: session.NewStore(mem, "secret"),
		Cache:    mem,
		Tables:   booking.DefaultRoomTables(),
	})
	b.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.Local) }
	return b, sender, mem
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID},
	}}
}

func loginBot(t *testing.T, b *Bot) {
	t.Helper()
	if err := b.sessions.Save(context.Background(), testLogin); err != nil {
		t.Fatal(err)
	}
}

func TestParseLoginTextDeepLink(t *testing.T) {
	text := "churchtools://login?instanceurl=https://example.church.tools&loginstring=abc&personid=42"
	login, ok := parseLoginText(text, chatID)
	if !ok {
		t.Fatal("deep link not recognized")
	}
	if login.URL != "https://example.church.tools" || login.Token != "abc" || login.PersonID != "42" {
		t.Errorf("login = %+v", login)
	}
	if login.ChatID != chatID {
		t.Errorf("ChatID = %d", login.ChatID)
	}
}

func TestParseLoginTextQRPayload(t *testing.T) {
	text := `{"instanceUrl": "https://example.church.tools", "loginstring": "abc", "personId": 42}`
	login, ok := parseLoginText(text, chatID)
	if !ok {
		t.Fatal("QR payload not recognized")
	}
	if login.PersonID != "42" {
		t.Errorf("PersonID = %q", login.PersonID)
	}
}

func TestParseLoginTextRejectsOther(t *testing.T) {
	for _, text := range []string{"Heute", "{broken json", `{"foo": 1}`, ""} {
		if _, ok := parseLoginText(text, chatID); ok {
			t.Errorf("%q accepted as login data", text)
		}
	}
}

func TestUnknownUserIsPromptedToLogin(t *testing.T) {
	b, sender, _ := newTestBot(upstream())
	b.HandleUpdate(context.Background(), textUpdate("Hallo"))
	sender.contains(t, "Willkommen beim inoffiziellen ChurchTools-Bot!")
}

func TestLoginAttemptStoresSession(t *testing.T) {
	b, sender, _ := newTestBot(upstream())
	text := "churchtools://login?instanceurl=https://example.church.tools/&loginstring=qr-token&personid=42"
	b.HandleUpdate(context.Background(), textUpdate(text))
	sender.contains(t, "erfolgreich eingeloggt")

	if _, err := b.sessions.Load(context.Background(), chatID); err != nil {
		t.Errorf("session not stored: %v", err)
	}
}

func TestRoomsButtonAsksForTimeRange(t *testing.T) {
	b, sender, mem := newTestBot(upstream())
	loginBot(t, b)

	b.HandleUpdate(context.Background(), textUpdate(labelRooms))
	sender.contains(t, "Welcher Zeitraum?")

	if raw, err := mem.Get(context.Background(), modeKey(chatID)); err != nil || string(raw) != "rooms" {
		t.Errorf("mode = %q, err %v", raw, err)
	}
}

func TestRoomsTimeAsksForSubset(t *testing.T) {
	b, sender, _ := newTestBot(upstream())
	loginBot(t, b)

	b.HandleUpdate(context.Background(), textUpdate(labelRooms))
	b.HandleUpdate(context.Background(), textUpdate(labelToday))
	sender.contains(t, "Welche Räume?")
}

func TestRoomListDelivered(t *testing.T) {
	b, sender, _ := newTestBot(upstream())
	loginBot(t, b)

	b.HandleUpdate(context.Background(), textUpdate("Heute: Alle"))
	sender.contains(t, "Chorprobe")
	sender.contains(t, "<b>Alle</b>")
}

func TestModeIsConsumedOnce(t *testing.T) {
	b, sender, mem := newTestBot(upstream())
	loginBot(t, b)

	b.HandleUpdate(context.Background(), textUpdate(labelRooms))
	b.HandleUpdate(context.Background(), textUpdate(labelToday))
	if _, err := mem.Get(context.Background(), modeKey(chatID)); err == nil {
		t.Error("mode still set after being consumed")
	}

	sender.sent = nil
	b.HandleUpdate(context.Background(), textUpdate("irgendwas"))
	sender.contains(t, "Unbekannter Befehl")
}

func TestSearchFlow(t *testing.T) {
	b, sender, _ := newTestBot(upstream())
	loginBot(t, b)

	b.HandleUpdate(context.Background(), textUpdate(labelRooms))
	b.HandleUpdate(context.Background(), textUpdate(labelSearch))
	sender.contains(t, "Gib den Namen der Raumbelegung")

	sender.sent = nil
	b.HandleUpdate(context.Background(), textUpdate("chorprobe"))
	sender.contains(t, "Suche nach <b>chorprobe</b>")
	sender.contains(t, "Chorprobe")
}

func TestUnknownCommandFallback(t *testing.T) {
	b, sender, _ := newTestBot(upstream())
	loginBot(t, b)
	b.HandleUpdate(context.Background(), textUpdate("/foo"))
	sender.contains(t, "Unbekannter Befehl")
}

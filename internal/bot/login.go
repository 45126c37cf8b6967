package bot

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/Craeckie/church-bot/internal/churchtools"
	"github.com/Craeckie/church-bot/internal/domain"
)

var deepLinkRe = regexp.MustCompile(`churchtools://login\?instanceurl=([^&]+)&loginstring=([^&]+)&personid=([0-9]+)`)

// qrPayload is the JSON the ChurchTools app encodes in its login QR code.
// Users paste it as text; decoding QR photos is not supported.
type qrPayload struct {
	InstanceURL string      `json:"instanceUrl"`
	LoginString string      `json:"loginstring"`
	PersonID    json.Number `json:"personId"`
}

// parseLoginText extracts login data from a churchtools:// deep link or a
// pasted QR JSON payload. ok is false when the text is neither.
func parseLoginText(text string, chatID int64) (domain.LoginData, bool) {
	text = strings.TrimSpace(text)

	if m := deepLinkRe.FindStringSubmatch(text); m != nil {
		return domain.LoginData{
			URL:      m[1],
			Token:    m[2],
			PersonID: m[3],
			ChatID:   chatID,
		}, true
	}

	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		var payload qrPayload
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return domain.LoginData{}, false
		}
		if payload.InstanceURL == "" || payload.LoginString == "" || payload.PersonID.String() == "" {
			return domain.LoginData{}, false
		}
		return domain.LoginData{
			URL:      payload.InstanceURL,
			Token:    payload.LoginString,
			PersonID: payload.PersonID.String(),
			ChatID:   chatID,
		}, true
	}

	return domain.LoginData{}, false
}

// handleLoginAttempt verifies fresh login data against the instance and
// stores it on success.
func (b *Bot) handleLoginAttempt(ctx context.Context, chatID int64, login domain.LoginData) {
	if _, err := b.client.Login(ctx, login, true); err != nil {
		b.log.Warn("login attempt failed", "chat", chatID, "err", err)
		if err := b.sessions.Forget(ctx, chatID); err != nil {
			b.log.Warn("clearing session failed", "chat", chatID, "err", err)
		}
		b.reply(chatID, "Login fehlgeschlagen!\nBitte versuch es nochmal mit einem neuen Link.", mainKeyboard())
		return
	}
	if err := b.sessions.Save(ctx, login); err != nil {
		b.log.Error("saving session failed", "chat", chatID, "err", err)
		b.reply(chatID, "Login fehlgeschlagen!\nBitte versuch es nochmal mit einem neuen Link.", mainKeyboard())
		return
	}
	b.replyHTML(chatID,
		"Du bist erfolgreich eingeloggt! :)\n"+
			"Du kannst jetzt die Buttons unten nutzen, um Funktionen von ChurchTools aufzurufen.",
		mainKeyboard())
}

// promptLogin explains the login flow; firstTime distinguishes a new user
// from one whose stored token died.
func (b *Bot) promptLogin(chatID int64, firstTime bool) {
	var msg string
	if firstTime {
		msg = "Willkommen beim inoffiziellen ChurchTools-Bot!\n" +
			"Zuerst musst du dich bei ChurchTools <b>einloggen</b>, das musst du nur <b>einmal</b> machen.\n" +
			"Geh auf die Webseite deiner Gemeinde, log dich ein und öffne Name → ChurchTools App.\n" +
			"Schick mir dann den churchtools://-Link (lange drauf drücken und kopieren) " +
			"oder den Text aus dem QR-Code als Nachricht."
	} else {
		msg = "Leider ist dein Login-Token nicht mehr gültig (hast du dein Passwort geändert?) " +
			"und du musst dich neu einloggen.\n" +
			"Schick mir einen neuen churchtools://-Link als Nachricht."
	}
	b.replyHTML(chatID, msg, removeKeyboard())
}

// ensureLogin loads the stored session and checks it still works. The
// second return is false when the user has to log in again.
func (b *Bot) ensureLogin(ctx context.Context, chatID int64) (domain.LoginData, bool) {
	login, err := b.sessions.Load(ctx, chatID)
	if err != nil {
		b.promptLogin(chatID, true)
		return domain.LoginData{}, false
	}
	if _, err := b.client.Login(ctx, login, false); err != nil {
		var loginErr *churchtools.LoginError
		if errors.As(err, &loginErr) && loginErr.ExpiredLink {
			if err := b.sessions.Forget(ctx, chatID); err != nil {
				b.log.Warn("clearing session failed", "chat", chatID, "err", err)
			}
		}
		b.promptLogin(chatID, false)
		return domain.LoginData{}, false
	}
	return login, true
}

package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button labels double as the messages the buttons send back, so they are
// matched verbatim in the dispatcher.
const (
	labelRooms    = "🏠 Räume"
	labelCalendar = "🗓 Kalender"

	labelToday    = "Heute"
	labelTomorrow = "Morgen"
	labelWeek     = "Nächste 7 Tage"
	labelSearch   = "Suche"
)

var timeLabels = []string{labelToday, labelTomorrow, labelWeek}

var roomSubsets = []string{"Alle", "Saal", "Nebenräume", "Rest"}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelRooms),
			tgbotapi.NewKeyboardButton(labelCalendar),
		),
	)
}

func timeKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelToday),
			tgbotapi.NewKeyboardButton(labelTomorrow),
			tgbotapi.NewKeyboardButton(labelWeek),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelSearch),
		),
	)
}

// roomKeyboard offers one "<Zeit>: <Räume>" button per subset, which the
// dispatcher parses back apart.
func roomKeyboard(timeLabel string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(roomSubsets))
	for _, subset := range roomSubsets {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(timeLabel+": "+subset),
		))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func removeKeyboard() tgbotapi.ReplyKeyboardRemove {
	return tgbotapi.NewRemoveKeyboard(true)
}

func isTimeLabel(text string) bool {
	for _, label := range timeLabels {
		if text == label {
			return true
		}
	}
	return false
}

func isRoomSubset(text string) bool {
	for _, subset := range roomSubsets {
		if text == subset {
			return true
		}
	}
	return false
}

package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

func BuildInlineKeyboard(rows [][]InlineButton) tgbotapi.InlineKeyboardMarkup {
	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			if button.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(button.Text, button.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.Data))
		}
		keyboardRows = append(keyboardRows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboardRows...)
}

// SubscriptionKeyboard is the join-gate prompt: open the channel, then
// confirm via the check_sub callback.
func SubscriptionKeyboard(channel string) tgbotapi.InlineKeyboardMarkup {
	handle := strings.TrimPrefix(strings.TrimSpace(channel), "@")
	return BuildInlineKeyboard([][]InlineButton{
		{{Text: "📢 Открыть канал", URL: "https://t.me/" + handle}},
		{{Text: "✅ Проверить подписку", Data: "check_sub"}},
	})
}

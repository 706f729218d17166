package telegramapi

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data values routed by the bot package.
const (
	CallbackCheckSub  = "check_sub"
	CallbackOpenMenu  = "open_menu"
	CallbackSecretBtn = "secret_btn"
)

// GateKeyboard is shown to users who have not joined the channel yet.
func GateKeyboard(channelLink string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if channelLink != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📢 Subscribe", channelLink),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Check subscription", CallbackCheckSub),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// OpenMenuKeyboard is shown once membership is confirmed.
func OpenMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚀 Open menu", CallbackOpenMenu),
		),
	)
}

// MenuKeyboard is the gated menu itself.
func MenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧩 Secret button", CallbackSecretBtn),
		),
	)
}

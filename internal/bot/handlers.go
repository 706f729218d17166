package bot

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nantokaworks/telegram-gatebot/internal/broadcast"
	"github.com/nantokaworks/telegram-gatebot/internal/localdb"
	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"github.com/nantokaworks/telegram-gatebot/internal/telegramapi"
	"go.uber.org/zap"
)

const (
	gatePromptText = "Hi! 👋\n\nTo get access, subscribe to the channel and tap “Check subscription”."
	gateRetryText  = "Subscribe to the channel and tap “Check subscription”."
	checkFailedText = "⚠️ Could not verify your subscription right now. Please try again in a moment."
)

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(msg, userID, chatID)
		return
	}

	// plain text from an operator mid-session feeds the broadcast engine
	if b.ops.IsOperator(userID) && b.engine.SessionActive(userID) {
		if err := b.engine.HandleText(userID, msg.Text); err != nil && !errors.Is(err, broadcast.ErrNoSession) {
			logger.Error("Broadcast session handling failed",
				zap.Int64("operator_id", userID),
				zap.Error(err))
		}
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message, userID, chatID int64) {
	switch msg.Command() {
	case "start":
		b.handleStart(msg, userID, chatID)

	case "id":
		b.reply(chatID, fmt.Sprintf("Your user id: %d", userID))

	case "admin":
		// invisible to non-operators
		if !b.ops.IsOperator(userID) {
			return
		}
		b.reply(chatID, "🛠 Admin panel:\n• /stats — statistics\n• /broadcast — broadcast\n• /cancel — cancel")

	case "stats":
		if !b.ops.IsOperator(userID) {
			return
		}
		count, err := localdb.CountRecipients()
		if err != nil {
			logger.Error("Failed to count recipients", zap.Error(err))
			b.reply(chatID, "⚠️ Failed to read statistics.")
			return
		}
		b.reply(chatID, fmt.Sprintf("👥 Recipients in database: %d", count))

	case "broadcast":
		if !b.ops.IsOperator(userID) {
			return
		}
		if err := b.engine.Start(userID); err != nil {
			logger.Error("Failed to open broadcast session", zap.Error(err))
		}

	case "cancel":
		b.engine.Cancel(userID)
		b.reply(chatID, "❌ Cancelled.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message, userID, chatID int64) {
	username := msg.From.UserName
	firstName := msg.From.FirstName
	if err := localdb.InsertRecipientIfAbsent(userID, username, firstName); err != nil {
		logger.Error("Failed to register recipient", zap.Int64("user_id", userID), zap.Error(err))
	}

	granted, err := b.gate.CheckAccess(userID)
	if err != nil {
		b.reply(chatID, checkFailedText)
		return
	}

	if granted {
		if err := b.transport.SendTextWithKeyboard(chatID, "✅ You're already subscribed! Tap the button below:", telegramapi.OpenMenuKeyboard()); err != nil {
			logger.Error("Failed to send menu prompt", zap.Error(err))
		}
		return
	}

	if err := b.transport.SendTextWithKeyboard(chatID, gatePromptText, telegramapi.GateKeyboard(b.channelLink)); err != nil {
		logger.Error("Failed to send gate prompt", zap.Error(err))
		return
	}
	b.sendInviteQR(chatID)
}

// sendInviteQR attaches a scannable copy of the invite link to the gate
// prompt. Best effort, the gate prompt already carries the link button.
func (b *Bot) sendInviteQR(chatID int64) {
	if b.channelLink == "" {
		return
	}
	png, err := telegramapi.InviteQR(b.channelLink)
	if err != nil {
		logger.Warn("Failed to render invite QR", zap.Error(err))
		return
	}
	if err := b.transport.SendPhotoBytes(chatID, "invite.png", png, "Scan to open the channel"); err != nil {
		logger.Warn("Failed to send invite QR", zap.Error(err))
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	switch cb.Data {
	case telegramapi.CallbackCheckSub:
		b.handleCheckSub(cb, userID, chatID, messageID)

	case telegramapi.CallbackOpenMenu:
		if !b.ensureAccess(cb, userID, chatID, messageID) {
			return
		}
		menu := telegramapi.MenuKeyboard()
		if err := b.transport.EditMessageText(chatID, messageID, "🎉 Menu opened!", &menu); err != nil {
			logger.Error("Failed to open menu", zap.Error(err))
		}
		b.ack(cb)

	case telegramapi.CallbackSecretBtn:
		if !b.ensureAccess(cb, userID, chatID, messageID) {
			return
		}
		if err := b.transport.EditMessageText(chatID, messageID, "🔥 You pressed the secret button!", nil); err != nil {
			logger.Error("Failed to reveal secret button", zap.Error(err))
		}
		b.ack(cb)
	}
}

func (b *Bot) handleCheckSub(cb *tgbotapi.CallbackQuery, userID, chatID int64, messageID int) {
	granted, err := b.gate.CheckAccess(userID)
	if err != nil {
		b.alert(cb, checkFailedText)
		return
	}

	if !granted {
		b.alert(cb, "❌ Subscription not found!")
		return
	}

	menu := telegramapi.OpenMenuKeyboard()
	if err := b.transport.EditMessageText(chatID, messageID, "✅ Subscription confirmed!\nTap “Open menu”.", &menu); err != nil {
		logger.Error("Failed to confirm subscription", zap.Error(err))
	}
	b.ack(cb)

	// first confirmed membership hands out the one-time bonus
	if _, err := b.ledger.GrantRewardIfDue(userID); err != nil {
		logger.Error("Reward delivery failed", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, "⚠️ Could not deliver your bonus file. Tap “Check subscription” to try again.")
	}
}

// ensureAccess re-gates a menu callback. On denial the message reverts to
// the gate prompt.
func (b *Bot) ensureAccess(cb *tgbotapi.CallbackQuery, userID, chatID int64, messageID int) bool {
	granted, err := b.gate.CheckAccess(userID)
	if err != nil {
		b.alert(cb, checkFailedText)
		return false
	}
	if !granted {
		b.alert(cb, "🔒 Subscribe first!")
		gate := telegramapi.GateKeyboard(b.channelLink)
		if err := b.transport.EditMessageText(chatID, messageID, gateRetryText, &gate); err != nil {
			logger.Error("Failed to restore gate prompt", zap.Error(err))
		}
		return false
	}
	return true
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.transport.SendText(chatID, text); err != nil {
		logger.Error("Failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery) {
	if err := b.transport.AnswerCallback(cb.ID, "", false); err != nil {
		logger.Debug("Failed to answer callback", zap.Error(err))
	}
}

func (b *Bot) alert(cb *tgbotapi.CallbackQuery, text string) {
	if err := b.transport.AnswerCallback(cb.ID, text, true); err != nil {
		logger.Debug("Failed to answer callback", zap.Error(err))
	}
}

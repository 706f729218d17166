package telegramapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"go.uber.org/zap"
)

// Membership is the result of a channel membership query.
type Membership int

const (
	// MembershipUnknown means the transport could not answer; callers must
	// treat it as not-granted (fail-closed).
	MembershipUnknown Membership = iota
	MembershipMember
	MembershipNotMember
)

// Client wraps the Bot API with the small surface this bot needs.
type Client struct {
	bot *tgbotapi.BotAPI
}

func NewClient(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot client: %w", err)
	}
	logger.Info("Telegram client authorized", zap.String("username", bot.Self.UserName))
	return &Client{bot: bot}, nil
}

// UpdatesChan starts long polling and returns the update stream.
func (c *Client) UpdatesChan() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	return c.bot.GetUpdatesChan(u)
}

// StopPolling stops the long-poll loop; the updates channel closes after.
func (c *Client) StopPolling() {
	c.bot.StopReceivingUpdates()
}

// chatConfig resolves "@username" channels and numeric chat ids.
func chatConfig(channel string, userID int64) tgbotapi.ChatConfigWithUser {
	cfg := tgbotapi.ChatConfigWithUser{UserID: userID}
	if strings.HasPrefix(channel, "@") {
		cfg.SuperGroupUsername = channel
		return cfg
	}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		cfg.ChatID = id
		return cfg
	}
	cfg.SuperGroupUsername = channel
	return cfg
}

// GetMembership queries the user's status in the channel. A bad-request
// style API answer (unknown user, user never touched the channel) maps to
// MembershipNotMember; anything else that fails maps to MembershipUnknown
// with the transport error attached.
func (c *Client) GetMembership(channel string, userID int64) (Membership, error) {
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: chatConfig(channel, userID),
	})
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == 400 || apiErr.Code == 404) {
			return MembershipNotMember, nil
		}
		return MembershipUnknown, fmt.Errorf("membership query failed: %w", err)
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return MembershipMember, nil
	default:
		// "restricted", "left", "kicked"
		return MembershipNotMember, nil
	}
}

// SendText delivers a plain text message to a user.
func (c *Client) SendText(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendTextWithKeyboard delivers a text message with an inline keyboard.
func (c *Client) SendTextWithKeyboard(userID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = keyboard
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendDocument delivers a local file to a user.
func (c *Client) SendDocument(userID int64, filePath, caption string) error {
	doc := tgbotapi.NewDocument(userID, tgbotapi.FilePath(filePath))
	doc.Caption = caption
	if _, err := c.bot.Send(doc); err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}
	return nil
}

// SendPhotoBytes delivers an in-memory image to a user.
func (c *Client) SendPhotoBytes(userID int64, name string, data []byte, caption string) error {
	photo := tgbotapi.NewPhoto(userID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	if _, err := c.bot.Send(photo); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}

// AnswerCallback answers a callback query, optionally as an alert popup.
func (c *Client) AnswerCallback(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := c.bot.Request(cb); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// EditMessageText replaces a message's text and keyboard in place.
func (c *Client) EditMessageText(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	var edit tgbotapi.EditMessageTextConfig
	if keyboard != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := c.bot.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

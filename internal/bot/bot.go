package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nantokaworks/telegram-gatebot/internal/access"
	"github.com/nantokaworks/telegram-gatebot/internal/broadcast"
	"github.com/nantokaworks/telegram-gatebot/internal/operators"
	"github.com/nantokaworks/telegram-gatebot/internal/reward"
	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"go.uber.org/zap"
)

// Transport is the slice of the Telegram client the bot layer needs.
// Implemented by telegramapi.Client.
type Transport interface {
	UpdatesChan() tgbotapi.UpdatesChannel
	StopPolling()
	SendText(userID int64, text string) error
	SendTextWithKeyboard(userID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error
	SendPhotoBytes(userID int64, name string, data []byte, caption string) error
	AnswerCallback(callbackID, text string, alert bool) error
	EditMessageText(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
}

// Bot routes inbound updates to the gate, the reward ledger and the
// broadcast engine. Updates for one chat are handled sequentially by a
// per-chat worker; different chats run concurrently.
type Bot struct {
	transport   Transport
	gate        *access.Gate
	ledger      *reward.Ledger
	engine      *broadcast.Engine
	ops         *operators.Set
	channelLink string

	mu      sync.Mutex
	workers map[int64]chan tgbotapi.Update
	wg      sync.WaitGroup
}

func New(transport Transport, gate *access.Gate, ledger *reward.Ledger, engine *broadcast.Engine, ops *operators.Set, channelLink string) *Bot {
	return &Bot{
		transport:   transport,
		gate:        gate,
		ledger:      ledger,
		engine:      engine,
		ops:         ops,
		channelLink: channelLink,
		workers:     make(map[int64]chan tgbotapi.Update),
	}
}

// Run consumes the update stream until ctx is cancelled, then drains the
// per-chat workers and waits for any running fan-out.
func (b *Bot) Run(ctx context.Context) {
	updates := b.transport.UpdatesChan()

	go func() {
		<-ctx.Done()
		b.transport.StopPolling()
	}()

	logger.Info("Update loop started")

	for update := range updates {
		key, ok := dispatchKey(update)
		if !ok {
			continue
		}
		b.dispatch(key, update)
	}

	b.mu.Lock()
	for _, ch := range b.workers {
		close(ch)
	}
	b.workers = make(map[int64]chan tgbotapi.Update)
	b.mu.Unlock()

	b.wg.Wait()
	b.engine.Wait()

	logger.Info("Update loop stopped")
}

// dispatchKey picks the chat the update belongs to; updates without a chat
// are dropped.
func dispatchKey(update tgbotapi.Update) (int64, bool) {
	if update.Message != nil {
		return update.Message.Chat.ID, true
	}
	if update.CallbackQuery != nil {
		if update.CallbackQuery.Message != nil {
			return update.CallbackQuery.Message.Chat.ID, true
		}
		return update.CallbackQuery.From.ID, true
	}
	return 0, false
}

// dispatch hands the update to the chat's worker, creating it on first
// contact. Per-chat ordering is what keeps session transitions sequential.
func (b *Bot) dispatch(key int64, update tgbotapi.Update) {
	b.mu.Lock()
	ch, ok := b.workers[key]
	if !ok {
		ch = make(chan tgbotapi.Update, 16)
		b.workers[key] = ch
		b.wg.Add(1)
		go b.worker(key, ch)
	}
	b.mu.Unlock()

	select {
	case ch <- update:
	default:
		logger.Warn("Dropping update, chat worker queue full", zap.Int64("chat_id", key))
	}
}

func (b *Bot) worker(key int64, ch <-chan tgbotapi.Update) {
	defer b.wg.Done()
	for update := range ch {
		b.handleUpdate(update)
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

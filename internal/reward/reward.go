package reward

import (
	"fmt"
	"sync"

	"github.com/nantokaworks/telegram-gatebot/internal/localdb"
	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"go.uber.org/zap"
)

// DocumentSender delivers the reward artifact. Implemented by
// telegramapi.Client.
type DocumentSender interface {
	SendDocument(userID int64, filePath, caption string) error
}

// Ledger guarantees the bonus file is delivered at most once per user.
// The claim is an atomic conditional flip of the store's reward flag; only
// the claim winner sends, and a failed send releases the claim so the user
// stays eligible. A per-user mutex keeps the claim/release window closed
// for concurrent triggers inside one process.
type Ledger struct {
	sender   DocumentSender
	filePath string
	caption  string

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewLedger(sender DocumentSender, filePath, caption string) *Ledger {
	return &Ledger{
		sender:   sender,
		filePath: filePath,
		caption:  caption,
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (l *Ledger) userLock(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// GrantRewardIfDue delivers the reward artifact if this user never received
// it. Returns delivered=false without touching the transport when the
// reward was already granted (or the user is unknown to the store).
func (l *Ledger) GrantRewardIfDue(userID int64) (bool, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	won, err := localdb.MarkRewardSentIfUnsent(userID)
	if err != nil {
		return false, fmt.Errorf("failed to claim reward: %w", err)
	}
	if !won {
		logger.Debug("Reward already granted", zap.Int64("user_id", userID))
		return false, nil
	}

	if err := l.sender.SendDocument(userID, l.filePath, l.caption); err != nil {
		// release the claim, the user stays eligible for a retry
		if clearErr := localdb.ClearRewardSent(userID); clearErr != nil {
			logger.Error("Failed to release reward claim after delivery failure",
				zap.Int64("user_id", userID),
				zap.Error(clearErr))
		}
		return false, fmt.Errorf("failed to deliver reward: %w", err)
	}

	logger.Info("Reward delivered", zap.Int64("user_id", userID))
	return true, nil
}

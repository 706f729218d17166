package localdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"go.uber.org/zap"
)

// Recipient represents a user known to the bot, tracked for the one-time
// reward and for broadcasts.
type Recipient struct {
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	AddedAt    time.Time `json:"added_at"`
	RewardSent bool      `json:"reward_sent"`
}

// SetupRecipientsTable creates the recipients table
func SetupRecipientsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS recipients (
		user_id INTEGER PRIMARY KEY,
		username TEXT DEFAULT '',
		first_name TEXT DEFAULT '',
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		reward_sent INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		logger.Error("Failed to create recipients table", zap.Error(err))
		return fmt.Errorf("failed to create recipients table: %w", err)
	}
	return nil
}

// InsertRecipientIfAbsent registers a user the first time they are observed.
// Existing rows are left untouched, the first observation wins.
func InsertRecipientIfAbsent(userID int64, username, firstName string) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(
		`INSERT OR IGNORE INTO recipients (user_id, username, first_name) VALUES (?, ?, ?)`,
		userID, username, firstName,
	)
	if err != nil {
		logger.Error("Failed to insert recipient", zap.Error(err), zap.Int64("user_id", userID))
		return fmt.Errorf("failed to insert recipient: %w", err)
	}
	return nil
}

// GetRecipient returns a recipient row, or nil when the user is unknown.
func GetRecipient(userID int64) (*Recipient, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var r Recipient
	var rewardSent int
	err := db.QueryRow(
		`SELECT user_id, username, first_name, added_at, reward_sent FROM recipients WHERE user_id = ?`,
		userID,
	).Scan(&r.UserID, &r.Username, &r.FirstName, &r.AddedAt, &rewardSent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get recipient", zap.Error(err), zap.Int64("user_id", userID))
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	r.RewardSent = rewardSent == 1
	return &r, nil
}

// GetRewardSent reports whether the one-time reward was already delivered.
// Unknown users count as not-delivered.
func GetRewardSent(userID int64) (bool, error) {
	db := GetDB()
	if db == nil {
		return false, fmt.Errorf("database not initialized")
	}

	var rewardSent int
	err := db.QueryRow(`SELECT reward_sent FROM recipients WHERE user_id = ?`, userID).Scan(&rewardSent)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		logger.Error("Failed to get reward flag", zap.Error(err), zap.Int64("user_id", userID))
		return false, fmt.Errorf("failed to get reward flag: %w", err)
	}
	return rewardSent == 1, nil
}

// MarkRewardSentIfUnsent flips reward_sent to 1 only when it is currently 0
// and reports whether this call won the transition. The flip is a single
// conditional UPDATE, so concurrent callers race inside sqlite, not here.
func MarkRewardSentIfUnsent(userID int64) (bool, error) {
	db := GetDB()
	if db == nil {
		return false, fmt.Errorf("database not initialized")
	}

	res, err := db.Exec(
		`UPDATE recipients SET reward_sent = 1 WHERE user_id = ? AND reward_sent = 0`,
		userID,
	)
	if err != nil {
		logger.Error("Failed to mark reward sent", zap.Error(err), zap.Int64("user_id", userID))
		return false, fmt.Errorf("failed to mark reward sent: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// ClearRewardSent reverts the reward flag after a failed delivery so the
// user stays eligible. Only the reward ledger calls this.
func ClearRewardSent(userID int64) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(`UPDATE recipients SET reward_sent = 0 WHERE user_id = ?`, userID)
	if err != nil {
		logger.Error("Failed to clear reward flag", zap.Error(err), zap.Int64("user_id", userID))
		return fmt.Errorf("failed to clear reward flag: %w", err)
	}
	return nil
}

// CountRecipients returns the number of known recipients
func CountRecipients() (int, error) {
	db := GetDB()
	if db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM recipients`).Scan(&count); err != nil {
		logger.Error("Failed to count recipients", zap.Error(err))
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}
	return count, nil
}

// CountRewardsSent returns how many recipients already received the reward
func CountRewardsSent() (int, error) {
	db := GetDB()
	if db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM recipients WHERE reward_sent = 1`).Scan(&count); err != nil {
		logger.Error("Failed to count sent rewards", zap.Error(err))
		return 0, fmt.Errorf("failed to count sent rewards: %w", err)
	}
	return count, nil
}

// AllRecipientIDs returns a snapshot of every known recipient id, in
// registration order. Broadcasts iterate this snapshot only.
func AllRecipientIDs() ([]int64, error) {
	db := GetDB()
	if db == nil {
		return []int64{}, fmt.Errorf("database not initialized")
	}

	rows, err := db.Query(`SELECT user_id FROM recipients ORDER BY added_at, user_id`)
	if err != nil {
		logger.Error("Failed to list recipient ids", zap.Error(err))
		return []int64{}, fmt.Errorf("failed to list recipient ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			logger.Error("Failed to scan recipient id", zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

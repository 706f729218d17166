package settings

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"go.uber.org/zap"
)

type SettingType string

const (
	SettingTypeNormal SettingType = "normal"
	SettingTypeSecret SettingType = "secret"
)

type Setting struct {
	Key         string      `json:"key"`
	Value       string      `json:"value"`
	Type        SettingType `json:"type"`
	Required    bool        `json:"required"`
	Description string      `json:"description"`
	UpdatedAt   time.Time   `json:"updated_at"`
	HasValue    bool        `json:"has_value"`
}

type SettingsManager struct {
	db *sql.DB
}

func NewSettingsManager(db *sql.DB) *SettingsManager {
	return &SettingsManager{db: db}
}

var DefaultSettings = map[string]Setting{
	// Telegram credentials
	"BOT_TOKEN": {
		Key: "BOT_TOKEN", Value: "", Type: SettingTypeSecret, Required: true,
		Description: "Telegram Bot API token",
	},
	"REQUIRED_CHANNEL": {
		Key: "REQUIRED_CHANNEL", Value: "", Type: SettingTypeNormal, Required: true,
		Description: "Channel users must join before the menu unlocks (e.g. @mychannel)",
	},
	"CHANNEL_LINK": {
		Key: "CHANNEL_LINK", Value: "", Type: SettingTypeNormal, Required: false,
		Description: "Public invite link shown on the gate prompt",
	},

	// One-time reward
	"BONUS_FILE": {
		Key: "BONUS_FILE", Value: "images.jpg", Type: SettingTypeNormal, Required: false,
		Description: "Path of the file delivered once per verified subscriber",
	},
	"BONUS_CAPTION": {
		Key: "BONUS_CAPTION", Value: "🎁 Thanks for subscribing! Here is your file. (Delivered once; re-subscribing will not deliver it again.)", Type: SettingTypeNormal, Required: false,
		Description: "Caption attached to the bonus file",
	},

	// Operators
	"ADMINS": {
		Key: "ADMINS", Value: "", Type: SettingTypeSecret, Required: true,
		Description: "Comma-separated Telegram user ids allowed to use operator commands",
	},

	// Broadcast
	"BROADCAST_RATE": {
		Key: "BROADCAST_RATE", Value: "20", Type: SettingTypeNormal, Required: false,
		Description: "Broadcast fan-out pace in messages per second",
	},

	// Server
	"SERVER_PORT": {
		Key: "SERVER_PORT", Value: "8080", Type: SettingTypeNormal, Required: false,
		Description: "HTTP port for the admin status endpoint",
	},
	"DEBUG_MODE": {
		Key: "DEBUG_MODE", Value: "false", Type: SettingTypeNormal, Required: false,
		Description: "Enable debug logging",
	},
}

func (sm *SettingsManager) GetSetting(key string) (string, error) {
	var value string
	err := sm.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		if defaultSetting, exists := DefaultSettings[key]; exists {
			return defaultSetting.Value, nil
		}
		return "", fmt.Errorf("setting not found: %s", key)
	}
	return value, err
}

func (sm *SettingsManager) SetSetting(key, value string) error {
	defaultSetting, exists := DefaultSettings[key]
	if !exists {
		return fmt.Errorf("unknown setting key: %s", key)
	}
	if err := ValidateSetting(key, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	_, err := sm.db.Exec(`
		INSERT INTO settings (key, value, setting_type, is_required, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value,
		string(defaultSetting.Type),
		defaultSetting.Required,
		defaultSetting.Description,
	)
	return err
}

func (sm *SettingsManager) GetAllSettings() (map[string]Setting, error) {
	rows, err := sm.db.Query(`
		SELECT key, value, setting_type, is_required, description, updated_at
		FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]Setting)
	for rows.Next() {
		var s Setting
		var settingType string
		var description sql.NullString
		if err := rows.Scan(&s.Key, &s.Value, &settingType, &s.Required, &description, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Type = SettingType(settingType)
		s.Description = description.String
		s.HasValue = s.Value != ""
		if s.Type == SettingTypeSecret {
			// secrets never leave this package unmasked
			s.Value = maskValue(s.Value)
		}
		settings[s.Key] = s
	}

	// settings absent from the DB fall back to their defaults
	for key, defaultSetting := range DefaultSettings {
		if _, exists := settings[key]; !exists {
			settings[key] = defaultSetting
		}
	}

	return settings, nil
}

// GetRealValue returns the unmasked value for internal use
func (sm *SettingsManager) GetRealValue(key string) (string, error) {
	var value string
	err := sm.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		if defaultSetting, exists := DefaultSettings[key]; exists {
			return defaultSetting.Value, nil
		}
		return "", fmt.Errorf("setting not found: %s", key)
	}
	return value, err
}

func maskValue(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}

// MigrateFromEnv copies settings from environment variables into the DB
// for keys that have no DB value yet.
func (sm *SettingsManager) MigrateFromEnv() error {
	migrated := 0

	for key := range DefaultSettings {
		var existingKey string
		if err := sm.db.QueryRow("SELECT key FROM settings WHERE key = ?", key).Scan(&existingKey); err == nil {
			continue
		}

		if envValue := os.Getenv(key); envValue != "" {
			if err := sm.SetSetting(key, envValue); err != nil {
				logger.Error("Failed to migrate setting", zap.String("key", key), zap.Error(err))
				return fmt.Errorf("failed to migrate %s: %w", key, err)
			}
			logger.Info("Migrated setting from environment", zap.String("key", key))
			migrated++
		}
	}

	if migrated > 0 {
		logger.Info("Migration completed", zap.Int("migrated_count", migrated))
		if os.Getenv("BOT_TOKEN") != "" {
			logger.Warn("BOT_TOKEN found in environment; remove it from .env once the migration is confirmed")
		}
	}

	return nil
}

func ValidateSetting(key, value string) error {
	switch key {
	case "SERVER_PORT":
		if val, err := strconv.Atoi(value); err != nil || val < 1 || val > 65535 {
			return fmt.Errorf("must be integer between 1 and 65535")
		}
	case "BROADCAST_RATE":
		if val, err := strconv.ParseFloat(value, 64); err != nil || val <= 0 || val > 30 {
			return fmt.Errorf("must be a rate between 0 and 30 messages per second")
		}
	case "ADMINS":
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, err := strconv.ParseInt(part, 10, 64); err != nil {
				return fmt.Errorf("must be comma-separated numeric user ids")
			}
		}
	case "REQUIRED_CHANNEL":
		if value != "" && !strings.HasPrefix(value, "@") && !strings.HasPrefix(value, "-100") {
			return fmt.Errorf("must be a @username or a -100... chat id")
		}
	case "DEBUG_MODE":
		if value != "true" && value != "false" {
			return fmt.Errorf("must be 'true' or 'false'")
		}
	}
	return nil
}

// InitializeDefaultSettings seeds missing keys with their default values
func (sm *SettingsManager) InitializeDefaultSettings() error {
	for key, setting := range DefaultSettings {
		var existingKey string
		if err := sm.db.QueryRow("SELECT key FROM settings WHERE key = ?", key).Scan(&existingKey); err == nil {
			continue
		}
		if setting.Value == "" {
			continue
		}
		if err := sm.SetSetting(key, setting.Value); err != nil {
			return fmt.Errorf("failed to initialize setting %s: %w", key, err)
		}
	}
	return nil
}

package env

import (
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nantokaworks/telegram-gatebot/internal/localdb"
	"github.com/nantokaworks/telegram-gatebot/internal/settings"
	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"go.uber.org/zap"
)

// Environment holds the resolved runtime configuration. Optional string
// values are pointers so an unset value is distinguishable from "".
type Environment struct {
	BotToken        *string
	RequiredChannel *string
	ChannelLink     *string
	BonusFile       string
	BonusCaption    string
	Admins          []int64
	BroadcastRate   float64
	ServerPort      int
	DebugMode       bool
}

var Value Environment

// LoadEnv resolves configuration from .env / process environment merged
// with the DB-backed settings. Must run after localdb.SetupDB: the settings
// table is the source of truth, the environment only seeds it.
func LoadEnv() {
	_ = godotenv.Load()

	db := localdb.GetDB()
	if db == nil {
		logger.Fatal("LoadEnv called before database setup")
		return
	}

	sm := settings.NewSettingsManager(db)
	if err := sm.MigrateFromEnv(); err != nil {
		logger.Error("Failed to migrate settings from environment", zap.Error(err))
	}
	if err := sm.InitializeDefaultSettings(); err != nil {
		logger.Error("Failed to seed default settings", zap.Error(err))
	}

	Value = Environment{
		BotToken:        optional(sm, "BOT_TOKEN"),
		RequiredChannel: optional(sm, "REQUIRED_CHANNEL"),
		ChannelLink:     optional(sm, "CHANNEL_LINK"),
		BonusFile:       plain(sm, "BONUS_FILE"),
		BonusCaption:    plain(sm, "BONUS_CAPTION"),
		Admins:          parseAdmins(plain(sm, "ADMINS")),
		BroadcastRate:   parseRate(plain(sm, "BROADCAST_RATE")),
		ServerPort:      parsePort(plain(sm, "SERVER_PORT")),
		DebugMode:       plain(sm, "DEBUG_MODE") == "true",
	}

	if Value.BotToken == nil {
		logger.Fatal("BOT_TOKEN is not configured")
	}
	if Value.RequiredChannel == nil {
		logger.Fatal("REQUIRED_CHANNEL is not configured")
	}
	if len(Value.Admins) == 0 {
		logger.Warn("ADMINS is empty, operator commands will be unavailable")
	}
}

func plain(sm *settings.SettingsManager, key string) string {
	value, err := sm.GetRealValue(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func optional(sm *settings.SettingsManager, key string) *string {
	value := plain(sm, key)
	if value == "" {
		return nil
	}
	return &value
}

func parseAdmins(raw string) []int64 {
	ids := []int64{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logger.Warn("Ignoring malformed admin id", zap.String("value", part))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseRate(raw string) float64 {
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate <= 0 {
		return 20 // reference pacing, one send per 50ms
	}
	return rate
}

func parsePort(raw string) int {
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 8080
	}
	return port
}

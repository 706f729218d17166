package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nantokaworks/telegram-gatebot/internal/access"
	"github.com/nantokaworks/telegram-gatebot/internal/bot"
	"github.com/nantokaworks/telegram-gatebot/internal/broadcast"
	"github.com/nantokaworks/telegram-gatebot/internal/env"
	"github.com/nantokaworks/telegram-gatebot/internal/localdb"
	"github.com/nantokaworks/telegram-gatebot/internal/operators"
	"github.com/nantokaworks/telegram-gatebot/internal/reward"
	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"github.com/nantokaworks/telegram-gatebot/internal/shared/paths"
	"github.com/nantokaworks/telegram-gatebot/internal/telegramapi"
	"github.com/nantokaworks/telegram-gatebot/internal/version"
	"github.com/nantokaworks/telegram-gatebot/internal/webserver"
	"go.uber.org/zap"
)

func main() {
	logger.Init(false)
	defer logger.Sync()

	logger.Info("Starting telegram-gatebot", zap.String("version", version.String()))

	if err := paths.EnsureDataDirs(); err != nil {
		logger.Fatal("Failed to ensure data directories", zap.Error(err))
	}

	if _, err := localdb.SetupDB(paths.GetDBPath()); err != nil {
		logger.Fatal("Failed to setup database", zap.Error(err))
	}

	// env.LoadEnv must run after DB initialization.
	env.LoadEnv()
	if env.Value.DebugMode {
		logger.Init(true)
		logger.Info("Debug mode enabled")
	}

	client, err := telegramapi.NewClient(*env.Value.BotToken)
	if err != nil {
		logger.Fatal("Failed to connect to Telegram", zap.Error(err))
	}

	channelLink := ""
	if env.Value.ChannelLink != nil {
		channelLink = *env.Value.ChannelLink
	}

	gate := access.NewGate(client, *env.Value.RequiredChannel)
	ledger := reward.NewLedger(client, env.Value.BonusFile, env.Value.BonusCaption)
	engine := broadcast.NewEngine(client, env.Value.BroadcastRate)
	engine.SetNotifier(webserver.Notifier{})
	ops := operators.NewSet(env.Value.Admins)

	if err := webserver.StartWebServer(env.Value.ServerPort); err != nil {
		logger.Fatal("Failed to start web server", zap.Error(err))
	}

	b := bot.New(client, gate, ledger, engine, ops, channelLink)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	// Blocks until the update stream closes and any running fan-out ends.
	b.Run(ctx)

	webserver.Shutdown()
	if err := localdb.CloseDB(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

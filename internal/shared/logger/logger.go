package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log *zap.Logger
	mu  sync.Mutex
)

// Init initializes the global logger. Calling it again (e.g. after reading
// DEBUG_MODE from settings) replaces the logger with the new level.
func Init(debug bool) {
	mu.Lock()
	defer mu.Unlock()

	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		config = zap.NewDevelopmentConfig()
	}

	l, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap config above is static; Build only fails on invalid sink paths
		panic(err)
	}

	if log != nil {
		_ = log.Sync()
	}
	log = l
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
}

func get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		log = zap.NewNop()
	}
	return log
}

func Debug(msg string, fields ...zap.Field) {
	get().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	get().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	get().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	get().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	get().Fatal(msg, fields...)
}

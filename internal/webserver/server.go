package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"go.uber.org/zap"
)

var httpServer *http.Server

// StartWebServer starts the admin status HTTP server in the background.
func StartWebServer(port int) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/api/stats", handleStats)
	mux.HandleFunc("/ws", handleWS)

	StartWSHub()

	httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Web server stopped unexpectedly", zap.Error(err))
		}
	}()

	logger.Info("Admin status server started", zap.Int("port", port))
	return nil
}

// Shutdown stops the HTTP server gracefully.
func Shutdown() {
	if httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("Web server shutdown failed", zap.Error(err))
	}
	httpServer = nil
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

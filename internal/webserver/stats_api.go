package webserver

import (
	"encoding/json"
	"net/http"

	"github.com/nantokaworks/telegram-gatebot/internal/localdb"
	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"github.com/nantokaworks/telegram-gatebot/internal/status"
	"go.uber.org/zap"
)

type statsResponse struct {
	Recipients    int                 `json:"recipients"`
	RewardsSent   int                 `json:"rewards_sent"`
	LastBroadcast status.BroadcastRun `json:"last_broadcast"`
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	recipients, err := localdb.CountRecipients()
	if err != nil {
		logger.Error("Failed to count recipients", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rewardsSent, err := localdb.CountRewardsSent()
	if err != nil {
		logger.Error("Failed to count sent rewards", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsResponse{
		Recipients:    recipients,
		RewardsSent:   rewardsSent,
		LastBroadcast: status.GetBroadcastRun(),
	})
}

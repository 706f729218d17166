package broadcast

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nantokaworks/telegram-gatebot/internal/localdb"
	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"github.com/nantokaworks/telegram-gatebot/internal/status"
	"go.uber.org/zap"
)

type progressEvent struct {
	RunID      string `json:"run_id"`
	Recipients int    `json:"recipients"`
	Delivered  int    `json:"delivered"`
	Failed     int    `json:"failed"`
}

// launchFanout snapshots the audience, notifies the operator and hands the
// delivery loop to a goroutine. The audience is fixed here, at confirmation
// time; recipients registered later are not part of this run.
func (e *Engine) launchFanout(operatorID int64, text string) error {
	snapshot, err := localdb.AllRecipientIDs()
	if err != nil {
		logger.Error("Failed to snapshot recipients", zap.Error(err))
		return e.sender.SendText(operatorID, "Broadcast failed: could not load the recipient list.")
	}

	runID, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate run id: %w", err)
	}

	status.SetBroadcastStarted(runID, len(snapshot))
	e.publish("broadcast_started", progressEvent{RunID: runID, Recipients: len(snapshot)})

	logger.Info("Broadcast started",
		zap.String("run_id", runID),
		zap.Int64("operator_id", operatorID),
		zap.Int("recipients", len(snapshot)))

	if err := e.sender.SendText(operatorID, "🚀 Broadcast started..."); err != nil {
		logger.Warn("Failed to send start notice", zap.Error(err))
	}

	e.wg.Add(1)
	go e.runFanout(runID, operatorID, text, snapshot)
	return nil
}

// runFanout delivers the message to every id in the snapshot. A failed
// recipient is tallied and skipped; nothing a single recipient does can
// abort the rest of the run.
func (e *Engine) runFanout(runID string, operatorID int64, text string, snapshot []int64) {
	defer e.wg.Done()

	delivered, failed := 0, 0
	for _, userID := range snapshot {
		if err := e.limiter.Wait(context.Background()); err != nil {
			// only fails on a cancelled context, which we never pass
			break
		}

		if err := e.sender.SendText(userID, text); err != nil {
			failed++
			logger.Debug("Broadcast delivery failed",
				zap.String("run_id", runID),
				zap.Int64("user_id", userID),
				zap.Error(err))
		} else {
			delivered++
		}

		status.SetBroadcastProgress(runID, delivered, failed)
		e.publish("broadcast_progress", progressEvent{
			RunID:      runID,
			Recipients: len(snapshot),
			Delivered:  delivered,
			Failed:     failed,
		})
	}

	status.SetBroadcastFinished(runID, delivered, failed)
	e.publish("broadcast_finished", progressEvent{
		RunID:      runID,
		Recipients: len(snapshot),
		Delivered:  delivered,
		Failed:     failed,
	})

	logger.Info("Broadcast finished",
		zap.String("run_id", runID),
		zap.Int("delivered", delivered),
		zap.Int("failed", failed))

	notice := fmt.Sprintf("✅ Broadcast finished! Delivered: %d, failed: %d.", delivered, failed)
	if err := e.sender.SendText(operatorID, notice); err != nil {
		logger.Warn("Failed to send completion notice", zap.Error(err))
	}
}

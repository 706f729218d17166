package status

import (
	"sync"
	"time"
)

// BroadcastRun is a snapshot of the most recent broadcast fan-out.
type BroadcastRun struct {
	RunID      string    `json:"run_id"`
	Running    bool      `json:"running"`
	Recipients int       `json:"recipients"`
	Delivered  int       `json:"delivered"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

var (
	mu      sync.RWMutex
	lastRun BroadcastRun
)

// SetBroadcastStarted records the start of a fan-out run.
func SetBroadcastStarted(runID string, recipients int) {
	mu.Lock()
	defer mu.Unlock()
	lastRun = BroadcastRun{
		RunID:      runID,
		Running:    true,
		Recipients: recipients,
		StartedAt:  time.Now(),
	}
}

// SetBroadcastProgress updates the running tallies for the current run.
// Updates for a stale run id are dropped.
func SetBroadcastProgress(runID string, delivered, failed int) {
	mu.Lock()
	defer mu.Unlock()
	if lastRun.RunID != runID {
		return
	}
	lastRun.Delivered = delivered
	lastRun.Failed = failed
}

// SetBroadcastFinished records the end of a fan-out run.
func SetBroadcastFinished(runID string, delivered, failed int) {
	mu.Lock()
	defer mu.Unlock()
	if lastRun.RunID != runID {
		return
	}
	lastRun.Running = false
	lastRun.Delivered = delivered
	lastRun.Failed = failed
	lastRun.FinishedAt = time.Now()
}

// GetBroadcastRun returns a copy of the latest run snapshot.
func GetBroadcastRun() BroadcastRun {
	mu.RLock()
	defer mu.RUnlock()
	return lastRun
}

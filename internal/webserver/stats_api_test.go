package webserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/nantokaworks/telegram-gatebot/internal/localdb"
)

func setupStatsTestDB(t *testing.T) {
	t.Helper()

	if localdb.DBClient != nil {
		_ = localdb.DBClient.Close()
		localdb.DBClient = nil
	}

	dbPath := filepath.Join(t.TempDir(), "local.db")
	db, err := localdb.SetupDB(dbPath)
	if err != nil {
		t.Fatalf("SetupDB failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		localdb.DBClient = nil
	})
}

func TestHandleStats(t *testing.T) {
	setupStatsTestDB(t)

	for _, id := range []int64{1, 2, 3} {
		if err := localdb.InsertRecipientIfAbsent(id, "", ""); err != nil {
			t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
		}
	}
	if _, err := localdb.MarkRewardSentIfUnsent(1); err != nil {
		t.Fatalf("MarkRewardSentIfUnsent failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	handleStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}

	var resp statsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Recipients != 3 {
		t.Fatalf("unexpected recipients: got=%d want=3", resp.Recipients)
	}
	if resp.RewardsSent != 1 {
		t.Fatalf("unexpected rewards_sent: got=%d want=1", resp.RewardsSent)
	}
}

func TestHandleStatsRejectsPost(t *testing.T) {
	setupStatsTestDB(t)

	req := httptest.NewRequest(http.MethodPost, "/api/stats", nil)
	rec := httptest.NewRecorder()
	handleStats(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusMethodNotAllowed)
	}
}

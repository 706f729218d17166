package localdb

import (
	"path/filepath"
	"testing"
)

func setupRecipientsTestDB(t *testing.T) {
	t.Helper()

	if DBClient != nil {
		_ = DBClient.Close()
		DBClient = nil
	}

	dbPath := filepath.Join(t.TempDir(), "local.db")
	db, err := SetupDB(dbPath)
	if err != nil {
		t.Fatalf("SetupDB failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		DBClient = nil
	})
}

func TestInsertRecipientIfAbsentFirstObservationWins(t *testing.T) {
	setupRecipientsTestDB(t)

	if err := InsertRecipientIfAbsent(1001, "alice", "Alice"); err != nil {
		t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
	}
	if err := InsertRecipientIfAbsent(1001, "alice_renamed", "Alicia"); err != nil {
		t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
	}

	r, err := GetRecipient(1001)
	if err != nil {
		t.Fatalf("GetRecipient failed: %v", err)
	}
	if r == nil {
		t.Fatal("recipient should exist")
	}
	if r.Username != "alice" {
		t.Fatalf("first observation should win: got=%q want=%q", r.Username, "alice")
	}
	if r.RewardSent {
		t.Fatal("reward_sent should default to false")
	}

	count, err := CountRecipients()
	if err != nil {
		t.Fatalf("CountRecipients failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("unexpected recipient count: got=%d want=1", count)
	}
}

func TestGetRewardSentUnknownUser(t *testing.T) {
	setupRecipientsTestDB(t)

	sent, err := GetRewardSent(4242)
	if err != nil {
		t.Fatalf("GetRewardSent failed: %v", err)
	}
	if sent {
		t.Fatal("unknown user should count as not-delivered")
	}
}

func TestMarkRewardSentIfUnsentSingleWinner(t *testing.T) {
	setupRecipientsTestDB(t)

	if err := InsertRecipientIfAbsent(2001, "bob", "Bob"); err != nil {
		t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
	}

	won, err := MarkRewardSentIfUnsent(2001)
	if err != nil {
		t.Fatalf("MarkRewardSentIfUnsent failed: %v", err)
	}
	if !won {
		t.Fatal("first caller should win the transition")
	}

	won, err = MarkRewardSentIfUnsent(2001)
	if err != nil {
		t.Fatalf("MarkRewardSentIfUnsent failed: %v", err)
	}
	if won {
		t.Fatal("second caller must not win the transition")
	}

	sent, err := GetRewardSent(2001)
	if err != nil {
		t.Fatalf("GetRewardSent failed: %v", err)
	}
	if !sent {
		t.Fatal("reward flag should be set")
	}
}

func TestMarkRewardSentIfUnsentUnknownUser(t *testing.T) {
	setupRecipientsTestDB(t)

	won, err := MarkRewardSentIfUnsent(9999)
	if err != nil {
		t.Fatalf("MarkRewardSentIfUnsent failed: %v", err)
	}
	if won {
		t.Fatal("unknown user must not win the transition")
	}
}

func TestClearRewardSentRestoresEligibility(t *testing.T) {
	setupRecipientsTestDB(t)

	if err := InsertRecipientIfAbsent(3001, "carol", "Carol"); err != nil {
		t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
	}
	if _, err := MarkRewardSentIfUnsent(3001); err != nil {
		t.Fatalf("MarkRewardSentIfUnsent failed: %v", err)
	}
	if err := ClearRewardSent(3001); err != nil {
		t.Fatalf("ClearRewardSent failed: %v", err)
	}

	won, err := MarkRewardSentIfUnsent(3001)
	if err != nil {
		t.Fatalf("MarkRewardSentIfUnsent failed: %v", err)
	}
	if !won {
		t.Fatal("user should be eligible again after clear")
	}
}

func TestAllRecipientIDsSnapshot(t *testing.T) {
	setupRecipientsTestDB(t)

	for _, id := range []int64{10, 20, 30} {
		if err := InsertRecipientIfAbsent(id, "", ""); err != nil {
			t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
		}
	}

	ids, err := AllRecipientIDs()
	if err != nil {
		t.Fatalf("AllRecipientIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("unexpected id count: got=%d want=3", len(ids))
	}

	// a recipient registered after the snapshot must not appear in it
	if err := InsertRecipientIfAbsent(40, "", ""); err != nil {
		t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
	}
	for _, id := range ids {
		if id == 40 {
			t.Fatal("snapshot must not contain ids added after it was taken")
		}
	}
}

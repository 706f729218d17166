package bot

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nantokaworks/telegram-gatebot/internal/access"
	"github.com/nantokaworks/telegram-gatebot/internal/broadcast"
	"github.com/nantokaworks/telegram-gatebot/internal/localdb"
	"github.com/nantokaworks/telegram-gatebot/internal/operators"
	"github.com/nantokaworks/telegram-gatebot/internal/reward"
	"github.com/nantokaworks/telegram-gatebot/internal/telegramapi"
)

const (
	operatorID int64 = 500
	visitorID  int64 = 501
)

type fakeTransport struct {
	mu        sync.Mutex
	texts     map[int64][]string
	documents map[int64]int
	photos    map[int64]int
	alerts    []string
	edits     []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		texts:     make(map[int64][]string),
		documents: make(map[int64]int),
		photos:    make(map[int64]int),
	}
}

func (f *fakeTransport) UpdatesChan() tgbotapi.UpdatesChannel { return nil }
func (f *fakeTransport) StopPolling()                         {}

func (f *fakeTransport) SendText(userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts[userID] = append(f.texts[userID], text)
	return nil
}

func (f *fakeTransport) SendTextWithKeyboard(userID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	return f.SendText(userID, text)
}

func (f *fakeTransport) SendPhotoBytes(userID int64, name string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos[userID]++
	return nil
}

func (f *fakeTransport) SendDocument(userID int64, filePath, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents[userID]++
	return nil
}

func (f *fakeTransport) AnswerCallback(callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if alert {
		f.alerts = append(f.alerts, text)
	}
	return nil
}

func (f *fakeTransport) EditMessageText(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) sentTo(userID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts[userID]))
	copy(out, f.texts[userID])
	return out
}

type fixedChecker struct {
	membership telegramapi.Membership
	err        error
}

func (f *fixedChecker) GetMembership(channel string, userID int64) (telegramapi.Membership, error) {
	return f.membership, f.err
}

func setupBotTest(t *testing.T, membership telegramapi.Membership) (*Bot, *fakeTransport) {
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

	transport := newFakeTransport()
	gate := access.NewGate(&fixedChecker{membership: membership}, "@channel")
	ledger := reward.NewLedger(transport, "bonus.pdf", "enjoy")
	engine := broadcast.NewEngine(transport, 10000)
	ops := operators.NewSet([]int64{operatorID})

	return New(transport, gate, ledger, engine, ops, "https://t.me/channel"), transport
}

func command(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}},
		From:     &tgbotapi.User{ID: userID, UserName: "someone", FirstName: "Someone"},
		Chat:     &tgbotapi.Chat{ID: userID},
	}
}

func plainText(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
	}
}

func callback(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		Data: data,
		From: &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{
			MessageID: 42,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
	}
}

func TestBroadcastCommandInvisibleToNonOperators(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipMember)

	b.handleMessage(command(visitorID, "/broadcast"))

	if b.engine.SessionActive(visitorID) {
		t.Fatal("no session should be created for a non-operator")
	}
	if len(transport.sentTo(visitorID)) != 0 {
		t.Fatal("non-operator must receive no response")
	}
}

func TestOperatorBroadcastScenario(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipMember)

	for _, id := range []int64{1, 2, 3} {
		if err := localdb.InsertRecipientIfAbsent(id, "", ""); err != nil {
			t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
		}
	}

	b.handleMessage(command(operatorID, "/broadcast"))
	if !b.engine.SessionActive(operatorID) {
		t.Fatal("operator should have an active session")
	}

	b.handleMessage(plainText(operatorID, "Hello"))
	b.handleMessage(plainText(operatorID, "NO"))
	if b.engine.PhaseOf(operatorID) != broadcast.PhaseAwaitingConfirmation {
		t.Fatal("rejected confirmation should keep the session")
	}

	b.handleMessage(plainText(operatorID, "yes"))
	b.engine.Wait()

	for _, id := range []int64{1, 2, 3} {
		msgs := transport.sentTo(id)
		if len(msgs) != 1 || msgs[0] != "Hello" {
			t.Fatalf("recipient %d should receive the broadcast: got=%v", id, msgs)
		}
	}
}

func TestCancelCommandClearsSession(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipMember)

	b.handleMessage(command(operatorID, "/broadcast"))
	b.handleMessage(command(operatorID, "/cancel"))

	if b.engine.SessionActive(operatorID) {
		t.Fatal("cancel should clear the session")
	}

	found := false
	for _, msg := range transport.sentTo(operatorID) {
		if msg == "❌ Cancelled." {
			found = true
		}
	}
	if !found {
		t.Fatal("cancel should be acknowledged")
	}
}

func TestStartRegistersRecipientAndGates(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipNotMember)

	b.handleMessage(command(visitorID, "/start"))

	r, err := localdb.GetRecipient(visitorID)
	if err != nil {
		t.Fatalf("GetRecipient failed: %v", err)
	}
	if r == nil {
		t.Fatal("/start should register the recipient")
	}

	msgs := transport.sentTo(visitorID)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "subscribe") {
		t.Fatalf("non-member should get the gate prompt: got=%v", msgs)
	}
	if transport.photos[visitorID] != 1 {
		t.Fatal("gate prompt should attach the invite QR")
	}
}

func TestStartForMember(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipMember)

	b.handleMessage(command(visitorID, "/start"))

	msgs := transport.sentTo(visitorID)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "already subscribed") {
		t.Fatalf("member should skip the gate: got=%v", msgs)
	}
}

func TestCheckSubGrantsRewardOnce(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipMember)

	if err := localdb.InsertRecipientIfAbsent(visitorID, "", ""); err != nil {
		t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
	}

	b.handleCallback(callback(visitorID, telegramapi.CallbackCheckSub))
	b.handleCallback(callback(visitorID, telegramapi.CallbackCheckSub))

	if transport.documents[visitorID] != 1 {
		t.Fatalf("bonus should be delivered exactly once: got=%d", transport.documents[visitorID])
	}
}

func TestCheckSubDeniedForNonMember(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipNotMember)

	if err := localdb.InsertRecipientIfAbsent(visitorID, "", ""); err != nil {
		t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
	}

	b.handleCallback(callback(visitorID, telegramapi.CallbackCheckSub))

	if transport.documents[visitorID] != 0 {
		t.Fatal("non-member must not receive the bonus")
	}
	if len(transport.alerts) != 1 || !strings.Contains(transport.alerts[0], "not found") {
		t.Fatalf("non-member should see a denial alert: got=%v", transport.alerts)
	}
}

func TestMenuCallbackRevertsToGateWhenUnsubscribed(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipNotMember)

	b.handleCallback(callback(visitorID, telegramapi.CallbackOpenMenu))

	if len(transport.alerts) != 1 {
		t.Fatalf("denial should alert: got=%v", transport.alerts)
	}
	if len(transport.edits) != 1 || !strings.Contains(transport.edits[0], "Check subscription") {
		t.Fatalf("message should revert to the gate prompt: got=%v", transport.edits)
	}
}

func TestIDCommand(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipMember)

	b.handleMessage(command(visitorID, "/id"))

	msgs := transport.sentTo(visitorID)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "501") {
		t.Fatalf("/id should echo the user id: got=%v", msgs)
	}
}

func TestStatsCommandOperatorOnly(t *testing.T) {
	b, transport := setupBotTest(t, telegramapi.MembershipMember)

	if err := localdb.InsertRecipientIfAbsent(1, "", ""); err != nil {
		t.Fatalf("InsertRecipientIfAbsent failed: %v", err)
	}

	b.handleMessage(command(visitorID, "/stats"))
	if len(transport.sentTo(visitorID)) != 0 {
		t.Fatal("non-operator must not see statistics")
	}

	b.handleMessage(command(operatorID, "/stats"))
	msgs := transport.sentTo(operatorID)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "1") {
		t.Fatalf("operator should see the recipient count: got=%v", msgs)
	}
}

package broadcast

import (
	"errors"
	"strings"
	"sync"

	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Phase is the state of one operator's broadcast session. Absence of a
// session means PhaseIdle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingText
	PhaseAwaitingConfirmation
)

// confirmToken is matched case-insensitively against the operator's reply.
const confirmToken = "YES"

// ErrNoSession is returned when text arrives for an operator without an
// active session; the caller falls back to normal message handling.
var ErrNoSession = errors.New("no active broadcast session")

// TextSender delivers plain text messages. Implemented by
// telegramapi.Client.
type TextSender interface {
	SendText(userID int64, text string) error
}

// Notifier receives broadcast progress events (e.g. the admin websocket
// hub). Optional.
type Notifier interface {
	PublishBroadcastEvent(eventType string, data any)
}

type session struct {
	phase       Phase
	pendingText string
}

// Engine drives the per-operator compose → confirm → fan-out workflow.
// Sessions are transient process state; a restart forgets them. All
// transitions for one operator happen under the engine mutex, so two
// handlers for the same operator can never interleave a transition.
type Engine struct {
	sender   TextSender
	limiter  *rate.Limiter
	notifier Notifier

	mu       sync.Mutex
	sessions map[int64]*session
	wg       sync.WaitGroup
}

// NewEngine creates an engine pacing fan-out sends at sendsPerSecond.
func NewEngine(sender TextSender, sendsPerSecond float64) *Engine {
	if sendsPerSecond <= 0 {
		sendsPerSecond = 20
	}
	return &Engine{
		sender:   sender,
		limiter:  rate.NewLimiter(rate.Limit(sendsPerSecond), 1),
		sessions: make(map[int64]*session),
	}
}

// SetNotifier attaches a progress event sink.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

func (e *Engine) publish(eventType string, data any) {
	e.mu.Lock()
	n := e.notifier
	e.mu.Unlock()
	if n != nil {
		n.PublishBroadcastEvent(eventType, data)
	}
}

// PhaseOf returns the operator's current session phase.
func (e *Engine) PhaseOf(operatorID int64) Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[operatorID]
	if !ok {
		return PhaseIdle
	}
	return s.phase
}

// SessionActive reports whether plain text from this operator should be
// routed into the engine instead of normal handling.
func (e *Engine) SessionActive(operatorID int64) bool {
	return e.PhaseOf(operatorID) != PhaseIdle
}

// Start opens (or restarts) the operator's session and prompts for the
// message body. Authorization happens at the command layer; the engine
// trusts its caller.
func (e *Engine) Start(operatorID int64) error {
	e.mu.Lock()
	e.sessions[operatorID] = &session{phase: PhaseAwaitingText}
	e.mu.Unlock()

	logger.Info("Broadcast session opened", zap.Int64("operator_id", operatorID))
	return e.sender.SendText(operatorID, "✉️ Send me the broadcast text.")
}

// Cancel clears the operator's session and reports whether one existed.
func (e *Engine) Cancel(operatorID int64) bool {
	e.mu.Lock()
	_, existed := e.sessions[operatorID]
	delete(e.sessions, operatorID)
	e.mu.Unlock()

	if existed {
		logger.Info("Broadcast session cancelled", zap.Int64("operator_id", operatorID))
	}
	return existed
}

// HandleText feeds an operator's plain text message into the session
// machine. Returns ErrNoSession when the operator is idle.
func (e *Engine) HandleText(operatorID int64, text string) error {
	e.mu.Lock()
	s, ok := e.sessions[operatorID]
	if !ok {
		e.mu.Unlock()
		return ErrNoSession
	}

	switch s.phase {
	case PhaseAwaitingText:
		s.pendingText = text
		s.phase = PhaseAwaitingConfirmation
		e.mu.Unlock()
		return e.sender.SendText(operatorID, "Confirm sending: reply YES or /cancel")

	case PhaseAwaitingConfirmation:
		if !strings.EqualFold(strings.TrimSpace(text), confirmToken) {
			// session intentionally stays in AwaitingConfirmation, the
			// operator may retry the confirmation
			e.mu.Unlock()
			return e.sender.SendText(operatorID, "Not confirmed.")
		}

		pending := s.pendingText
		// destroy the session before the fan-out launches so a concurrent
		// cancel or start cannot re-enter it
		delete(e.sessions, operatorID)
		e.mu.Unlock()
		return e.launchFanout(operatorID, pending)

	default:
		e.mu.Unlock()
		return ErrNoSession
	}
}

// Wait blocks until all running fan-outs finish. Used on shutdown and in
// tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Package chat ties conversation state, session tracking, the transport and
// the typing engine together behind a single Submit operation.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/jchatbot/jchat/internal/conversation"
	"github.com/jchatbot/jchat/internal/session"
	"github.com/jchatbot/jchat/internal/typing"
)

// HistoryWindow bounds the trailing slice of history sent as request context.
const HistoryWindow = 12

// apologyText keeps the thread coherent when the transport fails.
const apologyText = "Sorry, I couldn't process that request. Please check the error message below."

// Orchestrator accepts user input and runs the submit pipeline. At most one
// request is in flight at a time; further submissions are silently ignored
// until it settles.
type Orchestrator struct {
	state     *conversation.State
	sessions  *session.Manager
	transport Transport
	engine    *typing.Engine
	logger    *slog.Logger

	identity  string
	sessionID string

	mu       sync.Mutex
	inFlight bool
	lastErr  string
}

// New creates an orchestrator bound to one identity and session.
func New(
	state *conversation.State,
	sessions *session.Manager,
	transport Transport,
	engine *typing.Engine,
	identity, sessionID string,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		state:     state,
		sessions:  sessions,
		transport: transport,
		engine:    engine,
		logger:    logger,
		identity:  identity,
		sessionID: sessionID,
	}
}

// Submit runs one user turn. Empty input, a request already in flight, or a
// missing identity make it a no-op: those are precondition violations, not
// failures, and surface no error. Transport failures land in Err and append
// a fixed apology turn; they never propagate.
func (o *Orchestrator) Submit(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	o.mu.Lock()
	if o.inFlight || o.identity == "" {
		o.mu.Unlock()
		return
	}
	o.inFlight = true
	o.lastErr = ""
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
		o.notify()
	}()

	if o.sessions != nil {
		o.sessions.Touch(o.identity)
	}

	// Context is the history before this turn; the new message travels in
	// its own field.
	history := o.state.HistoryTail(HistoryWindow)
	o.state.AppendUserMessage(text)

	resp, err := o.transport.Generate(ctx, Request{
		Message:   text,
		UserID:    o.identity,
		SessionID: o.sessionID,
		History:   history,
	})
	if err != nil {
		o.logger.Warn("transport failed", "error", err)
		o.mu.Lock()
		o.lastErr = userMessage(err)
		o.mu.Unlock()
		o.state.AppendAssistantMessage(apologyText)
		return
	}

	msg := o.state.AppendAssistantMessage(resp)
	if o.engine != nil {
		o.engine.Start(msg.ID, resp)
	}
}

// userMessage extracts the user-facing error string.
func userMessage(err error) string {
	var te *TransportError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return err.Error()
}

// Touch refreshes the session window for user activity that is not a
// submission, like typing.
func (o *Orchestrator) Touch() {
	if o.sessions != nil && o.identity != "" {
		o.sessions.Touch(o.identity)
	}
}

// Loading reports whether a request is in flight.
func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// Err returns the user-visible error from the last submission, or empty.
func (o *Orchestrator) Err() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

func (o *Orchestrator) notify() {
	if o.state != nil && o.state.OnChange != nil {
		o.state.OnChange()
	}
}

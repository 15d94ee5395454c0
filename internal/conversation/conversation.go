// Package conversation holds the in-memory authoritative copy of a chat
// thread and writes it through to the store on a debounced schedule.
package conversation

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jchatbot/jchat/internal/models"
	"github.com/jchatbot/jchat/internal/session"
	"github.com/jchatbot/jchat/internal/store"
)

// DefaultDebounce coalesces bursts of mutations into one store write.
// A process killed inside the window loses at most that much history;
// an accepted trade against write amplification.
const DefaultDebounce = 300 * time.Millisecond

// envelope is the persisted shape of the message list. Seq is a monotonic
// write counter: when several processes share an identity the highest writer
// wins and a loader never applies a payload older than what it has seen.
type envelope struct {
	Seq      uint64                  `json:"seq"`
	Messages []models.DisplayMessage `json:"messages"`
}

// historyEnvelope mirrors envelope for the history list.
type historyEnvelope struct {
	Seq     uint64                `json:"seq"`
	Entries []models.HistoryEntry `json:"entries"`
}

// State is the single writer for one identity's conversation keys.
type State struct {
	store    store.Store
	sessions *session.Manager
	logger   *slog.Logger
	now      func() time.Time

	debounce time.Duration

	mu        sync.Mutex
	identity  string
	sessionID string
	messages  []models.DisplayMessage
	history   []models.HistoryEntry
	seq       uint64

	// dirty is set only by mutations, never by Load, so a load can never
	// echo itself back into the store through the debounced writer.
	dirty bool
	timer *time.Timer

	// OnChange, when set, is called after every state mutation so a
	// renderer can repaint. Called without the internal lock held.
	OnChange func()
}

// Option configures a State.
type Option func(*State)

// WithDebounce overrides the persistence debounce window.
func WithDebounce(d time.Duration) Option {
	return func(s *State) { s.debounce = d }
}

// WithClock substitutes the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// New creates an empty conversation state.
func New(st store.Store, sessions *session.Manager, logger *slog.Logger, opts ...Option) *State {
	if logger == nil {
		logger = slog.Default()
	}
	s := &State{
		store:    st,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores the persisted conversation for identity, if its session is
// still valid. Entries tagged with a different owner are dropped; untagged
// entries (older builds) are kept. Loading an expired or unknown identity
// yields an empty conversation.
func (s *State) Load(identity, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = identity
	s.sessionID = sessionID

	if s.store == nil || identity == "" {
		return
	}
	if s.sessions != nil && !s.sessions.IsValid(identity) {
		s.messages = nil
		s.history = nil
		return
	}

	// Same-session reload: the marker tells us this process already loaded
	// this thread, so the in-memory copy is authoritative.
	if raw, err := s.store.Get(session.MarkerKey(identity)); err == nil {
		var marker string
		if json.Unmarshal(raw, &marker) == nil && marker == sessionID && len(s.messages) > 0 {
			return
		}
	}

	s.loadMessages(identity)
	s.loadHistory(identity)

	marker, _ := json.Marshal(sessionID)
	if err := s.store.Set(session.MarkerKey(identity), marker); err != nil {
		s.logger.Warn("session marker write failed", "error", err)
	}
}

func (s *State) loadMessages(identity string) {
	raw, err := s.store.Get(session.MessagesKey(identity))
	if err != nil {
		s.messages = nil
		return
	}

	var env envelope
	if json.Unmarshal(raw, &env) != nil || env.Messages == nil {
		// Older builds stored a bare array.
		var legacy []models.DisplayMessage
		if json.Unmarshal(raw, &legacy) != nil {
			s.logger.Warn("messages value corrupt, starting empty", "identity", identity)
			s.messages = nil
			return
		}
		env.Messages = legacy
	}

	if env.Seq < s.seq && len(s.messages) > 0 {
		// Stale payload from a slower writer; keep what we have.
		return
	}
	s.seq = env.Seq

	s.messages = s.messages[:0]
	for _, m := range env.Messages {
		if m.Owner != "" && m.Owner != identity {
			s.logger.Warn("dropping message with foreign owner", "id", m.ID)
			continue
		}
		s.messages = append(s.messages, m)
	}
}

func (s *State) loadHistory(identity string) {
	raw, err := s.store.Get(session.HistoryKey(identity))
	if err != nil {
		s.history = nil
		return
	}

	var env historyEnvelope
	if json.Unmarshal(raw, &env) != nil || env.Entries == nil {
		var legacy []models.HistoryEntry
		if json.Unmarshal(raw, &legacy) != nil {
			s.logger.Warn("history value corrupt, starting empty", "identity", identity)
			s.history = nil
			return
		}
		env.Entries = legacy
	}

	s.history = s.history[:0]
	for _, e := range env.Entries {
		if e.Owner != "" && e.Owner != identity {
			continue
		}
		s.history = append(s.history, e)
	}
}

// AppendUserMessage appends a user turn and returns the created message.
// The mutation is visible immediately; persistence is deferred.
func (s *State) AppendUserMessage(text string) models.DisplayMessage {
	return s.append(text, true)
}

// AppendAssistantMessage appends a model turn and returns the created message.
func (s *State) AppendAssistantMessage(text string) models.DisplayMessage {
	return s.append(text, false)
}

func (s *State) append(text string, isUser bool) models.DisplayMessage {
	s.mu.Lock()

	msg := models.DisplayMessage{
		ID:        models.NewMessageID(),
		Text:      text,
		IsUser:    isUser,
		Timestamp: s.now().UnixMilli(),
		Owner:     s.identity,
	}
	s.messages = append(s.messages, msg)
	s.history = append(s.history, msg.Entry())
	s.dirty = true
	s.scheduleLocked()

	s.mu.Unlock()
	s.notify()
	return msg
}

// Messages returns a copy of the display list.
func (s *State) Messages() []models.DisplayMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.DisplayMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message returns the message with the given id, if it is still present.
func (s *State) Message(id string) (models.DisplayMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.DisplayMessage{}, false
}

// HistoryTail returns up to n of the most recent history entries, oldest
// first. This bounded suffix is what gets sent as request context.
func (s *State) HistoryTail(n int) []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if len(s.history) > n {
		start = len(s.history) - n
	}
	out := make([]models.HistoryEntry, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// Len returns the number of display messages.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Clear empties the thread and deletes its persisted keys. Session TTL data
// and the identity survive: clearing starts a blank thread inside the same
// rolling window rather than a brand-new session.
func (s *State) Clear() {
	s.mu.Lock()

	s.messages = nil
	s.history = nil
	s.dirty = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if s.store != nil && s.identity != "" {
		for _, key := range []string{
			session.MessagesKey(s.identity),
			session.HistoryKey(s.identity),
		} {
			if err := s.store.Delete(key); err != nil {
				s.logger.Warn("clear delete failed", "key", key, "error", err)
			}
		}
	}

	s.mu.Unlock()
	s.notify()
}

// Flush cancels any pending debounce timer and saves immediately. Called on
// orderly shutdown.
func (s *State) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.persistLocked()
}

// scheduleLocked (re)arms the trailing-edge debounce timer.
func (s *State) scheduleLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.timer = nil
		s.persistLocked()
	})
}

func (s *State) persistLocked() {
	if s.store == nil || s.identity == "" || !s.dirty {
		return
	}

	s.seq++
	msgRaw, err := json.Marshal(envelope{Seq: s.seq, Messages: s.messages})
	if err != nil {
		s.logger.Warn("messages marshal failed", "error", err)
		return
	}
	histRaw, err := json.Marshal(historyEnvelope{Seq: s.seq, Entries: s.history})
	if err != nil {
		s.logger.Warn("history marshal failed", "error", err)
		return
	}

	if err := s.store.Set(session.MessagesKey(s.identity), msgRaw); err != nil {
		s.logger.Warn("messages write failed", "error", err)
		return
	}
	if err := s.store.Set(session.HistoryKey(s.identity), histRaw); err != nil {
		s.logger.Warn("history write failed", "error", err)
		return
	}

	s.dirty = false
	if s.sessions != nil {
		s.sessions.Touch(s.identity)
	}
}

func (s *State) notify() {
	if s.OnChange != nil {
		s.OnChange()
	}
}

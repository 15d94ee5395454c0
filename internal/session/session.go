// Package session assigns the durable per-profile identity and tracks the
// sliding expiration window that scopes all persisted conversation data.
package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jchatbot/jchat/internal/models"
	"github.com/jchatbot/jchat/internal/store"
)

// TTL is the sliding session window. Any activity extends the window by this
// much; once it lapses the identity's conversation data is purged.
const TTL = 5 * 24 * time.Hour

// Manager owns identity assignment and session expiry for one store.
type Manager struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock substitutes the time source. Tests use this to step through the
// TTL window without sleeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager on top of s.
func NewManager(s store.Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{store: s, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreateIdentity returns the durable identity for this store, generating
// and persisting one on first use. The identity never expires on its own.
// Fails soft: without a usable store it returns the empty identity and the
// caller degrades to an unpersisted conversation.
func (m *Manager) GetOrCreateIdentity() string {
	if m.store == nil {
		return ""
	}

	raw, err := m.store.Get(IdentityKey)
	if err == nil {
		var id string
		if jsonErr := json.Unmarshal(raw, &id); jsonErr == nil && id != "" {
			return id
		}
		m.logger.Warn("identity value corrupt, regenerating")
	} else if !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("identity read failed, regenerating", "error", err)
	}

	id := uuid.NewString()
	encoded, _ := json.Marshal(id)
	if err := m.store.Set(IdentityKey, encoded); err != nil {
		m.logger.Warn("identity write failed", "error", err)
	}
	return id
}

// NewSessionID returns a fresh volatile session id for this process lifetime.
func (m *Manager) NewSessionID() string {
	return uuid.NewString()
}

// Touch extends the session window for identity to now+TTL. Called on every
// user interaction and on every persisted write.
func (m *Manager) Touch(identity string) {
	if m.store == nil || identity == "" {
		return
	}

	now := m.now()
	data := models.SessionData{LastAccess: now, Expiration: now.Add(TTL)}
	encoded, _ := json.Marshal(data)
	if err := m.store.Set(DataKey(identity), encoded); err != nil {
		m.logger.Warn("session touch failed", "identity", identity, "error", err)
	}
}

// IsValid reports whether identity has a live session. An expired, missing or
// unreadable session purges the identity's conversation data as a side effect;
// a live one has its window refreshed.
func (m *Manager) IsValid(identity string) bool {
	if m.store == nil || identity == "" {
		return false
	}

	raw, err := m.store.Get(DataKey(identity))
	if err != nil {
		m.Purge(identity)
		return false
	}

	var data models.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		m.logger.Warn("session data corrupt, purging", "identity", identity, "error", err)
		m.Purge(identity)
		return false
	}

	if data.Expired(m.now()) {
		m.logger.Info("session expired", "identity", identity, "expired_at", data.Expiration)
		m.Purge(identity)
		return false
	}

	m.Touch(identity)
	return true
}

// Purge deletes every key under an identity's namespace. The identity key
// itself is durable and survives.
func (m *Manager) Purge(identity string) {
	if m.store == nil || identity == "" {
		return
	}

	for _, key := range []string{
		MessagesKey(identity),
		HistoryKey(identity),
		MarkerKey(identity),
		DataKey(identity),
	} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Warn("purge delete failed", "key", key, "error", err)
		}
	}
}

// Sessions returns the TTL data for every identity the store knows about,
// keyed by identity. Unreadable entries are skipped.
func (m *Manager) Sessions() map[string]models.SessionData {
	out := make(map[string]models.SessionData)
	if m.store == nil {
		return out
	}

	keys, err := m.store.Keys(sessionDataPrefix)
	if err != nil {
		m.logger.Warn("session scan failed", "error", err)
		return out
	}

	for _, key := range keys {
		raw, err := m.store.Get(key)
		if err != nil {
			continue
		}
		var data models.SessionData
		if err := json.Unmarshal(raw, &data); err != nil {
			continue
		}
		out[strings.TrimPrefix(key, sessionDataPrefix)] = data
	}
	return out
}

// PurgeExpired scans all session-data keys and purges every identity whose
// window has lapsed. Runs once at startup, before any conversation is loaded,
// so abandoned identities don't accumulate in the store.
func (m *Manager) PurgeExpired() {
	if m.store == nil {
		return
	}

	keys, err := m.store.Keys(sessionDataPrefix)
	if err != nil {
		m.logger.Warn("session scan failed", "error", err)
		return
	}

	now := m.now()
	for _, key := range keys {
		identity := strings.TrimPrefix(key, sessionDataPrefix)

		raw, err := m.store.Get(key)
		if err != nil {
			continue
		}

		var data models.SessionData
		if err := json.Unmarshal(raw, &data); err != nil {
			// Unparsable session data is stale by definition.
			m.Purge(identity)
			continue
		}
		if data.Expired(now) {
			m.logger.Info("purging expired session", "identity", identity)
			m.Purge(identity)
		}
	}
}

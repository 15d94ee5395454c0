// Package models defines the data structures shared by the jchat client and server.
package models

import "github.com/google/uuid"

// Role identifies the author of a history entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// DisplayMessage is a single rendered chat message. Immutable once created.
type DisplayMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsUser    bool   `json:"isUser"`
	Timestamp int64  `json:"timestamp"`

	// Owner tags the identity the message belongs to. Entries persisted by
	// older builds have no owner and are accepted as-is on load.
	Owner string `json:"owner,omitempty"`
}

// HistoryEntry mirrors a DisplayMessage in the role/content shape the
// generation API expects. Shares its id with the display message it mirrors.
type HistoryEntry struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Owner     string `json:"owner,omitempty"`
}

// NewMessageID returns a fresh unique message id.
func NewMessageID() string {
	return uuid.NewString()
}

// Entry returns the history entry mirroring m.
func (m DisplayMessage) Entry() HistoryEntry {
	role := RoleModel
	if m.IsUser {
		role = RoleUser
	}
	return HistoryEntry{
		ID:        m.ID,
		Role:      role,
		Content:   m.Text,
		Timestamp: m.Timestamp,
		Owner:     m.Owner,
	}
}

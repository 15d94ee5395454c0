package models

import "time"

// SessionData tracks the sliding expiration window for one identity.
type SessionData struct {
	LastAccess time.Time `json:"lastAccess"`
	Expiration time.Time `json:"expiration"`
}

// Expired reports whether the session window has passed at the given instant.
func (s SessionData) Expired(now time.Time) bool {
	return now.After(s.Expiration)
}

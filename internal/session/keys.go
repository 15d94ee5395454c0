package session

// Storage key layout. The identity key is global; every other key is
// namespaced by the identity it belongs to. No prefix may be a string
// prefix of another: prefix scans must never pick up a sibling namespace,
// whatever the identity looks like.
const (
	IdentityKey = "jchat_user_id"

	messagesPrefix    = "jchat_messages_"
	historyPrefix     = "jchat_history_"
	markerPrefix      = "jchat_session_marker_"
	sessionDataPrefix = "jchat_session_data_"
)

// MessagesKey returns the display-message list key for an identity.
func MessagesKey(identity string) string { return messagesPrefix + identity }

// HistoryKey returns the history-entry list key for an identity.
func HistoryKey(identity string) string { return historyPrefix + identity }

// MarkerKey returns the last-seen session id key for an identity.
func MarkerKey(identity string) string { return markerPrefix + identity }

// DataKey returns the session TTL data key for an identity.
func DataKey(identity string) string { return sessionDataPrefix + identity }

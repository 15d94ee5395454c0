// Package store provides the key/value persistence capability backing
// identities, sessions and conversations. Backends are interchangeable;
// callers treat unreadable or corrupt values as absent.
package store

import "errors"

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is the minimal key/value capability the rest of the app depends on.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set writes the value for key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys returns all keys starting with prefix, in unspecified order.
	Keys(prefix string) ([]string, error)
}

// Package state persists small JSON documents for the client: the session,
// the cached profile, and the per-user dashboard caches. The storage backend
// is swappable behind the Store interface.
package state

import "encoding/json"

// Storage keys owned by the session store, plus the locally persisted theme
// preference. The theme survives logout so the device keeps its look.
const (
	KeyAccessToken = "auth_access_token"
	KeyUser        = "auth_user"
	KeyProfile     = "auth_profile"
	KeyTheme       = "theme_preference"
)

// Store is a key-value store of raw JSON documents.
type Store interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) ([]byte, bool, error)

	// Set stores a value under the key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys returns all stored keys with the given prefix.
	Keys(prefix string) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// GetJSON reads and decodes a stored document. Malformed stored JSON is
// treated as absent and the offending key is deleted.
func GetJSON[T any](s Store, key string) (T, bool) {
	var zero T
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return zero, false
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		_ = s.Delete(key)
		return zero, false
	}
	return value, true
}

// SetJSON encodes and stores a document.
func SetJSON[T any](s Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(key, raw)
}

package state

import "fmt"

// BackendType selects the storage backend for client state.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// Open creates a state store for the given backend type.
func Open(backend BackendType, dbPath string) (Store, error) {
	switch backend {
	case MemoryBackend:
		return NewMemoryStore(), nil
	case SQLiteBackend:
		return NewSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("invalid state backend: %s", backend)
	}
}

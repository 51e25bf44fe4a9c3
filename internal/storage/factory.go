package storage

import "fmt"

// NewHistoryStore builds a HistoryStore for the named backend. "memory"
// (or the empty string) is always available; "sqlite" requires the
// binary to have been built with -tags sqlite.
func NewHistoryStore(kind, sqlitePath string) (HistoryStore, error) {
	switch kind {
	case "", "memory":
		return NewMemoryHistoryStore(), nil
	case "sqlite":
		return newSQLiteHistoryStore(sqlitePath)
	default:
		return nil, fmt.Errorf("storage: unsupported history backend %q", kind)
	}
}

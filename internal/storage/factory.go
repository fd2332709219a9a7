package storage

import "fmt"

// NewStore builds the run store for the requested backend. An empty kind
// selects the in-memory backend; trial runs then live only for the process.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported run store backend %q (want memory or sqlite)", kind)
	}
}

// CloseIfSupported closes backends that hold external resources. The
// in-memory store has nothing to release.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

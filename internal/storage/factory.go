package storage

import (
	"fmt"
	"strings"
)

// NewStore builds a backend by kind. path is the model directory for "file"
// and the database file for "sqlite"; the memory backend ignores it.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(path), nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid model name %q", name)
	}
	return nil
}

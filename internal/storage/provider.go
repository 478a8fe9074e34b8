// Package storage selects a StateStore backend by name.
package storage

import (
	"fmt"

	"github.com/sanneemmanuel/turnstatic/internal/export"
	"github.com/sanneemmanuel/turnstatic/internal/storage/memory"
	"github.com/sanneemmanuel/turnstatic/internal/storage/sqlite"
)

// NewStore builds the configured backend. The returned close func is a
// no-op for backends without resources to release.
func NewStore(provider, path string) (export.StateStore, func() error, error) {
	switch provider {
	case "memory":
		return memory.NewStore(), func() error { return nil }, nil
	case "sqlite":
		store, err := sqlite.New(path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store provider %q", provider)
	}
}

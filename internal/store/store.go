// Package store persists the per-document session: the last visited
// paragraph and the device configuration snapshot.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rbright/narrate/internal/config"
)

// ErrPersistenceFailure wraps every read or write failure. Callers fall back
// to defaults rather than aborting.
var ErrPersistenceFailure = errors.New("session persistence failed")

// State is the persisted session for one document, keyed by DocumentPath.
type State struct {
	DocumentPath   string
	ContentHash    string
	ParagraphIndex int
	Device         config.DeviceConfig
	SavedAt        time.Time
}

type Store interface {
	// Load returns the saved state for documentPath; found is false when
	// nothing was saved yet.
	Load(ctx context.Context, documentPath string) (state State, found bool, err error)
	Save(ctx context.Context, state State) error
	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg config.SessionConfig) (Store, error) {
	dir, err := config.ResolveDataDir(cfg)
	if err != nil {
		return nil, failure("resolve session directory", err)
	}

	switch cfg.Backend {
	case config.SessionBackendSQLite:
		return OpenSQLite(filepath.Join(dir, "sessions.sqlite"))
	case config.SessionBackendJSON, "":
		return NewFileStore(dir), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

func failure(action string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistenceFailure, action, err)
}

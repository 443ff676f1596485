package storage

import (
	"context"
	"errors"
	"strings"

	logx "hourlypics/pkg/logx"
)

// Store is the persistence API used by the recents store and the orchestrator.
type Store interface {
	// LoadRecents returns saved filenames, oldest first.
	// It returns ErrNoRecents if nothing was saved yet.
	LoadRecents(ctx context.Context) ([]string, error)
	// SaveRecents replaces the saved filenames, oldest first.
	SaveRecents(ctx context.Context, names []string) error

	AppendPost(ctx context.Context, e PostEntry) error
	// RecentPosts returns up to limit posts, newest first.
	RecentPosts(ctx context.Context, limit int) ([]PostEntry, error)

	Close() error
}

const defaultFilePrefix = "./hourlypics"

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		if strings.TrimSpace(cfg.Path) == "" {
			cfg.Path = defaultFilePrefix
		}
		return openFile(cfg, true, log)
	case "none":
		return openFile(cfg, false, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

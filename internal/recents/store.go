package recents

import (
	"context"
	"errors"
	"fmt"

	"hourlypics/internal/storage"
	logx "hourlypics/pkg/logx"
)

// PersistenceError reports that the history could not be written.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("save recent files: %v", e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Store loads and saves a History through a storage backend.
type Store struct {
	backend  storage.Store
	capacity int
	location string // for log messages only
	log      logx.Logger
}

func NewStore(backend storage.Store, capacity int, location string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{backend: backend, capacity: capacity, location: location, log: log}
}

// Load returns the persisted history. Entries beyond capacity are dropped
// oldest first. A missing history is not an error.
func (s *Store) Load(ctx context.Context) (*History, error) {
	h := NewHistory(s.capacity)
	names, err := s.backend.LoadRecents(ctx)
	if errors.Is(err, storage.ErrNoRecents) {
		s.log.Info("recent files not found, they will be saved after the next successful post",
			logx.String("recents", s.location))
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load recent files: %w", err)
	}
	for _, n := range names {
		h.Push(n)
	}
	s.log.Info("loaded recent files", logx.Int("count", h.Len()), logx.String("recents", s.location))
	return h, nil
}

// Save overwrites the persisted history with h.
func (s *Store) Save(ctx context.Context, h *History) error {
	if err := s.backend.SaveRecents(ctx, h.Items()); err != nil {
		return &PersistenceError{Err: err}
	}
	s.log.Debug("saved recent files", logx.Int("count", h.Len()), logx.String("recents", s.location))
	return nil
}

package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")

	// ErrNoRecents is returned by LoadRecents when nothing was saved yet.
	ErrNoRecents = errors.New("no recent files saved yet")
)

// Config configures storage.
//
// Driver values:
//   - "file": recents in RecentsFile, post log in <Path>.posts.jsonl
//   - "sqlite": SQLite database file at Path
//   - "none": recents in RecentsFile, post log disabled
type Config struct {
	Driver      string
	Path        string
	RecentsFile string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// PostEntry records one published post.
// Keep it compact and schema-stable.
type PostEntry struct {
	At       time.Time `json:"at"`
	TickID   string    `json:"tick_id,omitempty"`
	Filename string    `json:"filename"`
	MediaID  string    `json:"media_id,omitempty"`
	URL      string    `json:"url"`
}

package app

import (
	"fmt"
	"strings"
	"time"

	"hourlypics/internal/config"
	"hourlypics/internal/storage"
)

func mapStorageConfig(s *config.Settings) (storage.Config, error) {
	if s == nil {
		return storage.Config{}, fmt.Errorf("settings required")
	}
	sc := s.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "file", "none":
		if driver == "" {
			driver = "file"
		}
		return storage.Config{Driver: driver, Path: path, RecentsFile: s.RecentsFile}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy := sc.BusyTimeout.Or(time.Second)
		return storage.Config{Driver: driver, Path: path, RecentsFile: s.RecentsFile, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// recentsLocation describes where recents live, for log messages.
func recentsLocation(sc storage.Config) string {
	switch sc.Driver {
	case "sqlite", "sqlite3":
		return sc.Path
	default:
		return sc.RecentsFile
	}
}

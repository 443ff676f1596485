package library

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

var imageExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// IsImageFile reports whether name ends in a supported image extension
// (case-insensitive). Names without a dot are never images.
func IsImageFile(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return false
	}
	ext := strings.ToLower(strings.TrimSpace(name[i+1:]))
	_, ok := imageExts[ext]
	return ok
}

// DirectoryAccessError reports that the images directory is missing or unreadable.
type DirectoryAccessError struct {
	Path string
	Err  error
}

func (e *DirectoryAccessError) Error() string {
	return fmt.Sprintf("images directory %q: %v", e.Path, e.Err)
}

func (e *DirectoryAccessError) Unwrap() error { return e.Err }

// ListImageFiles returns the sorted names of image files directly inside dir.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DirectoryAccessError{Path: dir, Err: err}
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsImageFile(e.Name()) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

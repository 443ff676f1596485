package library

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "hourlypics/pkg/logx"
)

// Library wraps the images directory.
//
// Without a running watcher every Candidates call relists the directory.
// While Watch runs, the listing is cached and invalidated on create/remove/rename.
type Library struct {
	dir string
	log logx.Logger
	rng *rand.Rand

	mu       sync.Mutex
	cache    []string
	dirty    bool
	watching bool
}

func New(dir string, rng *rand.Rand, log logx.Logger) *Library {
	if log.IsZero() {
		log = logx.Nop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Library{dir: dir, log: log, rng: rng, dirty: true}
}

func (l *Library) Dir() string { return l.dir }

// Path returns the full path of an image in the library.
func (l *Library) Path(name string) string { return filepath.Join(l.dir, name) }

// Check lists the directory eagerly so setup fails fast on a bad images_path.
func (l *Library) Check() (int, error) {
	files, err := ListImageFiles(l.dir)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	l.cache = files
	l.dirty = false
	l.mu.Unlock()
	return len(files), nil
}

// Candidates returns the current image files.
func (l *Library) Candidates() ([]string, error) {
	l.mu.Lock()
	if l.watching && !l.dirty {
		out := append([]string(nil), l.cache...)
		l.mu.Unlock()
		return out, nil
	}
	l.mu.Unlock()

	files, err := ListImageFiles(l.dir)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.cache = files
	l.dirty = false
	l.mu.Unlock()
	return append([]string(nil), files...), nil
}

// Refill tops q up to target from the current candidates.
func (l *Library) Refill(q *Queue, history Membership, target int) (int, error) {
	files, err := l.Candidates()
	if err != nil {
		return 0, err
	}
	added, err := Refill(q, files, history, target, l.rng)
	if err != nil {
		return 0, err
	}
	l.log.Info("added images to queue", logx.Int("count", added), logx.Int("queue", q.Len()))
	return added, nil
}

// Eligible lists the files a refill could currently draw from.
func (l *Library) Eligible(q *Queue, history Membership, target int) ([]string, error) {
	files, err := l.Candidates()
	if err != nil {
		return nil, err
	}
	return Eligible(q, files, history, target), nil
}

func (l *Library) invalidate() {
	l.mu.Lock()
	l.dirty = true
	l.mu.Unlock()
}

func (l *Library) setWatching(v bool) {
	l.mu.Lock()
	l.watching = v
	l.dirty = true
	l.mu.Unlock()
}

// Watching reports whether the directory watcher is active.
func (l *Library) Watching() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watching
}

// Watch invalidates the cached listing on directory changes until ctx is done.
func (l *Library) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("images watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(l.dir); err != nil {
		return &DirectoryAccessError{Path: l.dir, Err: err}
	}
	l.setWatching(true)
	defer l.setWatching(false)
	l.log.Debug("watching images directory", logx.String("dir", l.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !IsImageFile(filepath.Base(ev.Name)) {
				continue
			}
			l.invalidate()
			l.log.Debug("images directory changed", logx.String("file", filepath.Base(ev.Name)), logx.String("op", ev.Op.String()))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			// Missed events leave the cache stale; relist on next refill.
			l.invalidate()
			l.log.Warn("images watcher error", logx.Err(err))
		}
	}
}

package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "hourlypics/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <RecentsFile>            (one filename per line, oldest first, trailing newline)
//   - <Path>.posts.jsonl       (append-only JSON Lines, optional)
//
// The post log is created on the first AppendPost, so read-only use leaves
// no files behind.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	recentsPath string
	postsPath   string
	postsFile   *os.File
	closed      bool
}

func openFile(cfg Config, withPosts bool, log logx.Logger) (Store, error) {
	recents := strings.TrimSpace(cfg.RecentsFile)
	if recents == "" {
		return nil, errors.New("storage: recents file path is required")
	}
	s := &fileStore{log: log, recentsPath: recents}
	if !withPosts {
		return s, nil
	}

	path := strings.TrimSpace(cfg.Path)
	name := filepath.Base(path)
	s.postsPath = filepath.Join(filepath.Dir(path), strings.TrimSuffix(name, filepath.Ext(name))) + ".posts.jsonl"
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.postsFile != nil {
		err := s.postsFile.Close()
		s.postsFile = nil
		return err
	}
	return nil
}

func (s *fileStore) LoadRecents(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.recentsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRecents
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			names = append(names, line)
		}
	}
	return names, sc.Err()
}

// SaveRecents rewrites the recents file in full via a temp file + rename.
func (s *fileStore) SaveRecents(ctx context.Context, names []string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.recentsPath + ".tmp"
	body := strings.Join(names, "\n") + "\n"
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.recentsPath)
}

func (s *fileStore) AppendPost(ctx context.Context, e PostEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postsPath == "" {
		return nil
	}
	if s.closed {
		return errors.New("post log closed")
	}
	if s.postsFile == nil {
		if err := os.MkdirAll(filepath.Dir(s.postsPath), 0o755); err != nil {
			return err
		}
		pf, err := os.OpenFile(s.postsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		s.postsFile = pf
	}
	return json.NewEncoder(s.postsFile).Encode(e)
}

func (s *fileStore) RecentPosts(ctx context.Context, limit int) ([]PostEntry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postsPath == "" {
		return nil, ErrDisabled
	}

	f, err := os.Open(s.postsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all []PostEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e PostEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			s.log.Debug("skipping malformed post record", logx.Err(err))
			continue
		}
		all = append(all, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]PostEntry, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

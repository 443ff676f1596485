package recents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hourlypics/internal/storage"
	logx "hourlypics/pkg/logx"
)

func TestHistoryEvictsOldest(t *testing.T) {
	t.Parallel()
	for _, capacity := range []int{1, 2, 5, 12} {
		h := NewHistory(capacity)
		for i := 0; i <= capacity; i++ {
			h.Push(fmt.Sprintf("img%02d.png", i))
		}
		require.Equal(t, capacity, h.Len(), "capacity %d", capacity)
		assert.False(t, h.Contains("img00.png"), "oldest entry should be evicted")
		assert.True(t, h.Contains(fmt.Sprintf("img%02d.png", capacity)))
	}
}

func TestHistoryOrderAndDuplicates(t *testing.T) {
	t.Parallel()
	h := NewHistory(3)
	for _, n := range []string{"a", "b", "c", "a"} {
		h.Push(n)
	}
	assert.Equal(t, []string{"b", "c", "a"}, h.Items())

	items := h.Items()
	items[0] = "mutated"
	assert.Equal(t, "b", h.Items()[0], "Items must return a copy")

	assert.Equal(t, 1, NewHistory(0).Cap())
}

func newFileStore(t *testing.T, capacity int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recent_files.txt")
	backend, err := storage.Open(storage.Config{Driver: "none", RecentsFile: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return NewStore(backend, capacity, path, logx.Nop()), path
}

func TestStoreLoadMissingFile(t *testing.T) {
	t.Parallel()
	st, _ := newFileStore(t, 4)
	h, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 4, h.Cap())
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	st, _ := newFileStore(t, 3)
	h := NewHistory(3)
	for _, n := range []string{"a.png", "b.jpg", "c.gif"} {
		h.Push(n)
	}
	require.NoError(t, st.Save(context.Background(), h))

	got, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.Items(), got.Items())
}

func TestStoreLoadCapsToCapacity(t *testing.T) {
	t.Parallel()
	st, path := newFileStore(t, 2)
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\n"), 0o644))

	h, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, h.Items())
}

func TestStoreSaveFailureIsPersistenceError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-dir", "recent_files.txt")
	backend, err := storage.Open(storage.Config{Driver: "none", RecentsFile: path}, logx.Nop())
	require.NoError(t, err)
	st := NewStore(backend, 2, path, logx.Nop())

	h := NewHistory(2)
	h.Push("a.png")
	err = st.Save(context.Background(), h)
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe), "got %v", err)
}

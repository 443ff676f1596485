package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hourlypics/internal/library"
	"hourlypics/internal/publisher"
	"hourlypics/internal/recents"
	"hourlypics/internal/storage"
)

// orderedSelector fills the queue in candidate order, honoring the usual
// eligibility rules.
type orderedSelector struct {
	candidates []string
	refills    int
}

func (s *orderedSelector) Refill(q *library.Queue, history library.Membership, target int) (int, error) {
	s.refills++
	eligible := library.Eligible(q, s.candidates, history, target)
	if q.Len()+len(eligible) < target {
		return 0, library.ErrInsufficientCandidates
	}
	added := 0
	for _, name := range eligible {
		if q.Len() >= target {
			break
		}
		if q.Push(name) {
			added++
		}
	}
	return added, nil
}

func (s *orderedSelector) Path(name string) string { return filepath.Join("/images", name) }

type scriptedPublisher struct {
	results []publisher.Result
	paths   []string
	panicOn int
}

func (p *scriptedPublisher) Publish(_ context.Context, mediaPath string) publisher.Result {
	p.paths = append(p.paths, mediaPath)
	if p.panicOn > 0 && len(p.paths) == p.panicOn {
		panic("client exploded")
	}
	if len(p.results) == 0 {
		return publisher.Delivered("https://example.social/@bot/1", "m1")
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r
}

type memHistoryStore struct {
	saves [][]string
	err   error
}

func (s *memHistoryStore) Save(_ context.Context, h *recents.History) error {
	if s.err != nil {
		return &recents.PersistenceError{Err: s.err}
	}
	s.saves = append(s.saves, h.Items())
	return nil
}

type memPostLog struct {
	entries []storage.PostEntry
}

func (l *memPostLog) AppendPost(_ context.Context, e storage.PostEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

type fixture struct {
	poster *Poster
	sel    *orderedSelector
	pub    *scriptedPublisher
	store  *memHistoryStore
	posts  *memPostLog
	sleeps []time.Duration
}

func newFixture(t *testing.T, queueSize int, candidates ...string) *fixture {
	t.Helper()
	f := &fixture{
		sel:   &orderedSelector{candidates: candidates},
		pub:   &scriptedPublisher{},
		store: &memHistoryStore{},
		posts: &memPostLog{},
	}
	p, err := New(Deps{
		Selector:  f.sel,
		Publisher: f.pub,
		Recents:   f.store,
		Posts:     f.posts,
		QueueSize: queueSize,
		Rand:      rand.New(rand.NewSource(7)),
	})
	require.NoError(t, err)
	p.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	ids := 0
	p.newID = func() string {
		ids++
		return fmt.Sprintf("tick-%d", ids)
	}
	f.poster = p
	return f
}

func TestTickRecordsSuccessfulPost(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2, "a.png", "b.jpg", "c.gif")
	initialDelay := f.poster.Delay()

	res, err := f.poster.Tick(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Equal(t, "a.png", res.Filename)
	assert.Equal(t, "https://example.social/@bot/1", res.URL)

	require.Equal(t, []time.Duration{initialDelay}, f.sleeps)
	assert.Equal(t, []string{"/images/a.png"}, f.pub.paths)
	assert.Equal(t, [][]string{{"a.png"}}, f.store.saves)

	require.Len(t, f.posts.entries, 1)
	assert.Equal(t, "tick-1", f.posts.entries[0].TickID)
	assert.Equal(t, "m1", f.posts.entries[0].MediaID)

	snap := f.poster.Snapshot()
	assert.Equal(t, []string{"b.jpg"}, snap.Queue)
	assert.Equal(t, []string{"a.png"}, snap.History)
	assert.Equal(t, 1, snap.Ticks)
	assert.Equal(t, OutcomeRecorded, snap.Last.Outcome)
}

func TestTickPopsOldestQueuedFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3, "a.png", "b.png", "c.png", "d.png", "e.png", "f.png")
	for i := 0; i < 3; i++ {
		_, err := f.poster.Tick(context.Background(), true)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"/images/a.png", "/images/b.png", "/images/c.png"}, f.pub.paths)
	assert.Equal(t, 1, f.sel.refills)

	_, err := f.poster.Tick(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.sel.refills)
	// a, b and c are recent, so the second batch starts at d.
	assert.Equal(t, "/images/d.png", f.pub.paths[3])
}

func TestImmediateTickSkipsDelay(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "a.png")
	before := f.poster.Delay()

	res, err := f.poster.Tick(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.Immediate)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Empty(t, f.sleeps)
	assert.Equal(t, before, f.poster.Delay())
}

func TestDeferredPostIsNotRecordedOrRequeued(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2, "a.png", "b.png", "c.png")
	f.pub.results = []publisher.Result{publisher.Deferred(errors.New("422 unprocessable"))}

	res, err := f.poster.Tick(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, res.Outcome)
	assert.Equal(t, "422 unprocessable", res.Reason)
	assert.Empty(t, f.store.saves)
	assert.Empty(t, f.posts.entries)

	snap := f.poster.Snapshot()
	assert.Empty(t, snap.History)
	assert.Equal(t, []string{"b.png"}, snap.Queue, "failed image must not return to the queue")

	// Next tick drains the queue; the one after refills and a.png is eligible again.
	_, err = f.poster.Tick(context.Background(), false)
	require.NoError(t, err)
	_, err = f.poster.Tick(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "/images/a.png", f.pub.paths[2])
}

func TestInsufficientCandidatesSkipsTick(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3, "a.png", "b.png")

	res, err := f.poster.Tick(context.Background(), false)
	require.ErrorIs(t, err, library.ErrInsufficientCandidates)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, f.pub.paths)
	assert.Empty(t, f.sleeps)
}

func TestSingleSlotQueueReusesRecentImage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "only.png")
	for i := 0; i < 3; i++ {
		res, err := f.poster.Tick(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, "only.png", res.Filename)
	}
	assert.Equal(t, []string{"only.png"}, f.poster.Snapshot().History)
}

func TestPanicIsRecoveredAtTickBoundary(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2, "a.png", "b.png", "c.png")
	f.pub.panicOn = 1

	res, err := f.poster.Tick(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client exploded")
	assert.Equal(t, OutcomeSkipped, res.Outcome)

	res, err = f.poster.Tick(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Equal(t, 2, f.poster.Snapshot().Ticks)
}

func TestPersistenceFailureKeepsHistoryInMemory(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2, "a.png", "b.png", "c.png")
	f.store.err = errors.New("read-only file system")

	res, err := f.poster.Tick(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Equal(t, []string{"a.png"}, f.poster.Snapshot().History)
	assert.Len(t, f.posts.entries, 1)
}

func TestCanceledDelayDefersPost(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2, "a.png", "b.png", "c.png")
	f.poster.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.poster.Tick(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, res.Outcome)
	assert.Empty(t, f.pub.paths)
}

func TestDelayStaysWithinBounds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "a.png")
	for i := 0; i < 500; i++ {
		d := f.poster.nextDelay()
		if d < MinDelay || d >= MaxDelay || d%time.Second != 0 {
			t.Fatalf("delay %v out of range", d)
		}
	}
}

func TestNewValidatesDeps(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{})
	require.Error(t, err)
	_, err = New(Deps{Selector: &orderedSelector{}, Publisher: &scriptedPublisher{}, Recents: &memHistoryStore{}})
	require.Error(t, err, "queue size 0 must be rejected")
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"hourlypics/internal/library"
	"hourlypics/internal/recents"
	"hourlypics/internal/storage"
	logx "hourlypics/pkg/logx"
)

type Deps struct {
	Selector  Selector
	Publisher Publisher
	Recents   HistoryStore
	History   *recents.History
	Posts     PostLog // nil disables the post log

	QueueSize int
	Rand      *rand.Rand
	Log       logx.Logger
}

// Poster owns the image queue, the recent files history and the post delay.
// Ticks are serialized.
type Poster struct {
	sel     Selector
	pub     Publisher
	recents HistoryStore
	posts   PostLog
	log     logx.Logger
	rng     *rand.Rand
	target  int

	// test hooks
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string

	tickMu sync.Mutex

	mu      sync.Mutex
	queue   *library.Queue
	history *recents.History
	delay   time.Duration
	ticks   int
	last    TickResult
}

func New(d Deps) (*Poster, error) {
	if d.Selector == nil {
		return nil, errors.New("orchestrator: selector required")
	}
	if d.Publisher == nil {
		return nil, errors.New("orchestrator: publisher required")
	}
	if d.Recents == nil {
		return nil, errors.New("orchestrator: recents store required")
	}
	if d.QueueSize < 1 {
		return nil, fmt.Errorf("orchestrator: queue size must be >= 1, got %d", d.QueueSize)
	}
	history := d.History
	if history == nil {
		history = recents.NewHistory(d.QueueSize)
	}
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	rng := d.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	p := &Poster{
		sel:     d.Selector,
		pub:     d.Publisher,
		recents: d.Recents,
		posts:   d.Posts,
		log:     log,
		rng:     rng,
		target:  d.QueueSize,
		sleep:   sleepCtx,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
		queue:   library.NewQueue(d.QueueSize),
		history: history,
	}
	p.delay = p.nextDelay()
	return p, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// nextDelay draws a whole number of seconds in [MinDelay, MaxDelay).
func (p *Poster) nextDelay() time.Duration {
	lo, hi := int(MinDelay/time.Second), int(MaxDelay/time.Second)
	return time.Duration(lo+p.rng.Intn(hi-lo)) * time.Second
}

// Delay returns the current post delay.
func (p *Poster) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay
}

// Snapshot returns a copy of the current state.
func (p *Poster) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Queue:   p.queue.Items(),
		History: p.history.Items(),
		Delay:   p.delay,
		Ticks:   p.ticks,
		Last:    p.last,
	}
}

// Tick runs one posting cycle. Immediate ticks skip the jitter delay.
//
// Publish failures are not errors: the tick ends Deferred. An error is returned
// only when no image could be selected or the tick panicked.
func (p *Poster) Tick(ctx context.Context, immediate bool) (res TickResult, err error) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	res = TickResult{ID: p.newID(), Immediate: immediate, Started: p.now()}
	log := p.log.With(logx.String("tick", res.ID))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
			res.Outcome = OutcomeSkipped
			res.Reason = err.Error()
			log.Error("tick panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
		res.Finished = p.now()
		p.mu.Lock()
		p.ticks++
		p.last = res
		p.mu.Unlock()
	}()

	name, err := p.take(log)
	if err != nil {
		res.Reason = err.Error()
		return res, err
	}
	res.Filename = name
	log = log.With(logx.String("file", name))

	if !immediate {
		delay := p.Delay()
		log.Debug("delaying post", logx.Duration("delay", delay))
		if err := p.sleep(ctx, delay); err != nil {
			res.Outcome = OutcomeDeferred
			res.Reason = err.Error()
			log.Info("post canceled during delay", logx.Err(err))
			return res, nil
		}
		p.mu.Lock()
		p.delay = p.nextDelay()
		p.mu.Unlock()
	}

	out := p.pub.Publish(ctx, p.sel.Path(name))
	if !out.Delivered() {
		res.Outcome = OutcomeDeferred
		if out.Reason != nil {
			res.Reason = out.Reason.Error()
		}
		log.Warn("post not sent, image stays eligible", logx.Int("retries", out.Retries))
		return res, nil
	}

	res.Outcome = OutcomeRecorded
	res.URL = out.URL
	p.record(ctx, log, res, out.MediaID)
	return res, nil
}

// take refills the queue when empty and pops the oldest entry.
func (p *Poster) take(log logx.Logger) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queue.Len() == 0 {
		if _, err := p.sel.Refill(p.queue, p.history, p.target); err != nil {
			if errors.Is(err, library.ErrInsufficientCandidates) {
				log.Error("not enough eligible images, skipping tick",
					logx.Int("queue_size", p.target),
					logx.Int("history", p.history.Len()))
			}
			return "", fmt.Errorf("refill queue: %w", err)
		}
	}
	name, ok := p.queue.Pop()
	if !ok {
		return "", errors.New("queue empty after refill")
	}
	return name, nil
}

func (p *Poster) record(ctx context.Context, log logx.Logger, res TickResult, mediaID string) {
	p.mu.Lock()
	p.history.Push(res.Filename)
	depth := p.queue.Len()
	p.mu.Unlock()

	// The history is only touched by ticks, which are serialized by tickMu.
	if err := p.recents.Save(ctx, p.history); err != nil {
		var pe *recents.PersistenceError
		if errors.As(err, &pe) {
			log.Error("failed to save recent files, keeping them in memory", logx.Err(pe.Err))
		} else {
			log.Error("failed to save recent files", logx.Err(err))
		}
	}

	if p.posts != nil {
		entry := storage.PostEntry{
			At:       res.Started,
			TickID:   res.ID,
			Filename: res.Filename,
			MediaID:  mediaID,
			URL:      res.URL,
		}
		if err := p.posts.AppendPost(ctx, entry); err != nil && !errors.Is(err, storage.ErrDisabled) {
			log.Warn("failed to append post log", logx.Err(err))
		}
	}

	log.Info("post published", logx.String("url", res.URL), logx.Int("queue", depth))
}

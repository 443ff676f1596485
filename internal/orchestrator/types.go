package orchestrator

import (
	"context"
	"time"

	"hourlypics/internal/library"
	"hourlypics/internal/publisher"
	"hourlypics/internal/recents"
	"hourlypics/internal/storage"
)

const (
	// MinDelay and MaxDelay bound the jitter before a scheduled post: [MinDelay, MaxDelay).
	MinDelay = 1 * time.Second
	MaxDelay = 30 * time.Second
)

// Selector refills the queue and resolves image paths.
type Selector interface {
	Refill(q *library.Queue, history library.Membership, target int) (int, error)
	Path(name string) string
}

// Publisher uploads and posts one image.
type Publisher interface {
	Publish(ctx context.Context, mediaPath string) publisher.Result
}

// HistoryStore persists the recent files history.
type HistoryStore interface {
	Save(ctx context.Context, h *recents.History) error
}

// PostLog records successful posts. Optional.
type PostLog interface {
	AppendPost(ctx context.Context, e storage.PostEntry) error
}

type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeRecorded
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "skipped"
	}
}

// TickResult summarizes the last finished tick.
type TickResult struct {
	ID        string
	Filename  string
	Immediate bool
	Outcome   Outcome
	URL       string
	Reason    string
	Started   time.Time
	Finished  time.Time
}

// Snapshot is a point-in-time view of the poster state.
type Snapshot struct {
	Queue   []string
	History []string
	Delay   time.Duration
	Ticks   int
	Last    TickResult
}

package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	logx "hourlypics/pkg/logx"
)

// DefaultPoll is the run loop resolution.
const DefaultPoll = time.Second

// Job is a scheduled callback.
type Job func(ctx context.Context) error

// DueJob is a job that is due at the time passed to Due.
type DueJob struct {
	Name string
	At   time.Time
	Run  Job
}

type ScheduleInfo struct {
	Name string
	Spec string
	Next time.Time
	Prev time.Time
}

type entry struct {
	name string
	trig Trigger
	job  Job
	next time.Time
	prev time.Time
}

// Clock holds (trigger, callback) pairs.
type Clock struct {
	mu      sync.Mutex
	loc     *time.Location
	now     func() time.Time
	entries []*entry
	log     logx.Logger
}

// New creates a clock evaluating triggers in loc (nil means time.Local).
func New(loc *time.Location, log logx.Logger) *Clock {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Clock{loc: loc, now: time.Now, log: log}
}

// SetNow overrides the wall clock. Intended for tests and dry runs.
func (c *Clock) SetNow(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	now := c.now
	c.mu.Unlock()
	return now().In(c.loc)
}

// Add registers job under name. The first trigger is computed from Now.
func (c *Clock) Add(name, spec string, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("schedule name required")
	}
	if job == nil {
		return fmt.Errorf("schedule %s: job required", name)
	}
	trig, err := ParseTrigger(spec)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	now := c.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.name == name {
			return fmt.Errorf("schedule %s already registered", name)
		}
	}
	c.entries = append(c.entries, &entry{
		name: name,
		trig: trig,
		job:  job,
		next: trig.Next(now),
	})
	return nil
}

// Clear unregisters all jobs.
func (c *Clock) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

// Due returns the jobs whose trigger is at or before now, and advances each
// past now. Triggers missed while a previous job was running collapse into one.
func (c *Clock) Due(now time.Time) []DueJob {
	now = now.In(c.loc)
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []DueJob
	for _, e := range c.entries {
		if e.next.IsZero() || e.next.After(now) {
			continue
		}
		due = append(due, DueJob{Name: e.name, At: e.next, Run: e.job})
		e.prev = e.next
		e.next = e.trig.Next(now)
	}
	return due
}

// Next returns the earliest upcoming trigger.
func (c *Clock) Next() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next time.Time
	for _, e := range c.entries {
		if e.next.IsZero() {
			continue
		}
		if next.IsZero() || e.next.Before(next) {
			next = e.next
		}
	}
	return next, !next.IsZero()
}

// Entries returns registered schedules sorted by next trigger.
func (c *Clock) Entries() []ScheduleInfo {
	c.mu.Lock()
	out := make([]ScheduleInfo, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, ScheduleInfo{Name: e.name, Spec: e.trig.Spec, Next: e.next, Prev: e.prev})
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}

// Run polls for due jobs every poll interval and runs them synchronously
// until ctx is done. Job errors and panics are logged; they never stop the loop.
func (c *Clock) Run(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = DefaultPoll
	}
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		for _, d := range c.Due(c.Now()) {
			if ctx.Err() != nil {
				return nil
			}
			c.runJob(ctx, d)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (c *Clock) runJob(ctx context.Context, d DueJob) {
	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				c.log.Error("job.panic", logx.String("job", d.Name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		err = d.Run(ctx)
	}()
	if err != nil {
		c.log.Error("job.failed", logx.String("job", d.Name), logx.Err(err), logx.Duration("dur", time.Since(start)))
		return
	}
	c.log.Debug("job.completed", logx.String("job", d.Name), logx.Duration("dur", time.Since(start)))
}

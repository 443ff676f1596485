package library

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInsufficientCandidates is returned by Refill when the eligible files
// cannot fill the queue. Drawing would otherwise never terminate.
var ErrInsufficientCandidates = errors.New("not enough eligible images to fill the queue")

// Membership is the read side of the recent files history.
type Membership interface {
	Contains(name string) bool
}

// Queue is a FIFO of filenames without duplicates.
type Queue struct {
	items []string
	index map[string]struct{}
}

func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{items: make([]string, 0, capacity), index: make(map[string]struct{}, capacity)}
}

// Push appends name unless it is already queued.
func (q *Queue) Push(name string) bool {
	if _, ok := q.index[name]; ok {
		return false
	}
	q.items = append(q.items, name)
	q.index[name] = struct{}{}
	return true
}

// Pop removes and returns the oldest queued name.
func (q *Queue) Pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	name := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	delete(q.index, name)
	return name, true
}

func (q *Queue) Contains(name string) bool {
	_, ok := q.index[name]
	return ok
}

func (q *Queue) Len() int { return len(q.items) }

// Items returns a copy of the queued names, next-to-pop first.
func (q *Queue) Items() []string { return append([]string(nil), q.items...) }

// eligible reports whether name may be queued. Recent history is ignored for
// single-slot queues, otherwise a full single-slot history could exclude the
// only candidate forever.
func eligible(name string, q *Queue, history Membership, target int) bool {
	if q.Contains(name) {
		return false
	}
	if target == 1 || history == nil {
		return true
	}
	return !history.Contains(name)
}

// Eligible returns the candidates Refill could draw from, in input order.
func Eligible(q *Queue, candidates []string, history Membership, target int) []string {
	var out []string
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if eligible(c, q, history, target) {
			out = append(out, c)
		}
	}
	return out
}

// Refill tops q up to target by drawing uniformly from candidates, rejecting
// names that are already queued or (unless target == 1) recently posted.
// It returns how many names were added.
func Refill(q *Queue, candidates []string, history Membership, target int, rng *rand.Rand) (int, error) {
	need := target - q.Len()
	if need <= 0 {
		return 0, nil
	}
	if n := len(Eligible(q, candidates, history, target)); n < need {
		return 0, fmt.Errorf("%w: need %d, have %d of %d files", ErrInsufficientCandidates, need, n, len(candidates))
	}

	added := 0
	for q.Len() < target {
		name := candidates[rng.Intn(len(candidates))]
		if !eligible(name, q, history, target) {
			continue
		}
		q.Push(name)
		added++
	}
	return added, nil
}

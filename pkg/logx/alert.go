package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	alertQueueSize   = 64
	alertSendTimeout = 10 * time.Second
	alertMaxLen      = 3500 // below Telegram's 4096 limit
	alertMaxValueLen = 600
)

// alertSink is a zerolog.LevelWriter that forwards records to a Sender on a
// background goroutine. It never blocks logging: over the rate limit or with
// a full queue, records are dropped and counted.
type alertSink struct {
	sender Sender
	queue  chan string

	mu       sync.Mutex
	limiter  *rate.Limiter
	minLevel zerolog.Level

	dropped atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func newAlertSink(sender Sender) *alertSink {
	return &alertSink{
		sender:  sender,
		queue:   make(chan string, alertQueueSize),
		limiter: rate.NewLimiter(1, 1),
		done:    make(chan struct{}),
	}
}

func (a *alertSink) configure(cfg AlertConfig) {
	rps := max(1, cfg.RatePerSec)
	a.mu.Lock()
	a.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	a.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	a.mu.Unlock()

	a.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		go a.run(ctx)
	})
}

func (a *alertSink) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-a.queue:
			sendCtx, cancel := context.WithTimeout(ctx, alertSendTimeout)
			if err := a.sender.SendLog(sendCtx, text); err != nil {
				// Logging the failure would loop back into this sink.
				a.dropped.Add(1)
			}
			cancel()
		}
	}
}

func (a *alertSink) stop() {
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
			<-a.done
		}
	})
}

func (a *alertSink) Write(p []byte) (int, error) { return a.WriteLevel(zerolog.NoLevel, p) }

func (a *alertSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	a.mu.Lock()
	lim, minLevel := a.limiter, a.minLevel
	a.mu.Unlock()

	if level == zerolog.NoLevel || level < minLevel {
		return len(p), nil
	}
	if !lim.Allow() {
		a.dropped.Add(1)
		return len(p), nil
	}
	select {
	case a.queue <- formatAlertJSON(p):
	default:
		a.dropped.Add(1)
	}
	return len(p), nil
}

// formatAlertJSON renders a zerolog JSON record as "[LEVEL] message" followed
// by one "- key=value" line per field, keys sorted. time is omitted.
func formatAlertJSON(p []byte) string {
	p = bytes.TrimSpace(p)
	var rec map[string]any
	if err := json.Unmarshal(p, &rec); err != nil {
		return clip(string(p), alertMaxLen)
	}

	var b strings.Builder
	if lvl, _ := rec[zerolog.LevelFieldName].(string); lvl != "" {
		fmt.Fprintf(&b, "[%s] ", strings.ToUpper(lvl))
	}
	msg, _ := rec[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(rec))
	for k := range rec {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s=%s", k, clip(fmt.Sprint(rec[k]), alertMaxValueLen))
	}
	return clip(b.String(), alertMaxLen)
}

// clip shortens s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := max(n-3, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

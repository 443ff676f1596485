package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"hourlypics/internal/adapters/mastodon"
	"hourlypics/internal/config"
	"hourlypics/internal/library"
	"hourlypics/internal/orchestrator"
	"hourlypics/internal/publisher"
	"hourlypics/internal/recents"
	"hourlypics/internal/scheduler"
	"hourlypics/internal/storage"
	logx "hourlypics/pkg/logx"
)

const postJob = "post"

type App struct {
	cfg *config.Config

	log  logx.Logger
	logs *logx.Service // nil when the logger was injected

	storeCfg storage.Config
	store    storage.Store

	lib     *library.Library
	recents *recents.Store
	pub     *publisher.Publisher
	clock   *scheduler.Clock
	poster  *orchestrator.Poster
	account publisher.Account

	client publisher.Client
	now    func() time.Time
	rng    *rand.Rand
	poll   time.Duration
}

type Option func(*App)

// WithClient replaces the Mastodon client.
func WithClient(c publisher.Client) Option { return func(a *App) { a.client = c } }

// WithLogger uses log instead of building the logging service from settings.
func WithLogger(log logx.Logger) Option { return func(a *App) { a.log = log } }

// WithNow replaces the wall clock used for scheduling.
func WithNow(now func() time.Time) Option { return func(a *App) { a.now = now } }

// WithPoll sets the run loop resolution.
func WithPoll(d time.Duration) Option { return func(a *App) { a.poll = d } }

// WithRand seeds image selection and post delays.
func WithRand(r *rand.Rand) Option { return func(a *App) { a.rng = r } }

// NewApp wires all components from cfg. Nothing touches the network or the
// images directory until Setup.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil || cfg.Settings == nil || cfg.Secrets == nil {
		return nil, errors.New("config required")
	}
	a := &App{cfg: cfg, poll: scheduler.DefaultPoll}
	for _, o := range opts {
		o(a)
	}
	s := cfg.Settings

	if a.log.IsZero() {
		sender, err := mapAlertSender(cfg)
		if err != nil {
			return nil, err
		}
		a.logs, a.log = logx.New(mapLogConfig(s), sender)
	}
	log := a.log.With(logx.String("comp", "app"))
	if a.rng == nil {
		a.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sc, err := mapStorageConfig(s)
	if err != nil {
		return nil, a.fail(err)
	}
	st, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, a.fail(err)
	}
	a.storeCfg, a.store = sc, st
	log.Debug("storage opened", logx.String("driver", sc.Driver))

	pubOpt := mapPublisherOptions(s)
	if a.client == nil {
		c, err := mastodon.New(mapMastodonConfig(cfg))
		if err != nil {
			return nil, a.fail(err)
		}
		a.client = c
	}

	a.lib = library.New(s.ImagesPath, a.rng, a.log.With(logx.String("comp", "library")))
	a.recents = recents.NewStore(st, s.QueueSize(), recentsLocation(sc), a.log.With(logx.String("comp", "recents")))
	a.pub = publisher.New(a.client, pubOpt, a.log.With(logx.String("comp", "publisher")))
	a.clock = scheduler.New(s.Location(), a.log.With(logx.String("comp", "scheduler")))
	if a.now != nil {
		a.clock.SetNow(a.now)
	}
	a.log = log
	return a, nil
}

// fail releases what NewApp opened so far.
func (a *App) fail(err error) error {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

func (a *App) Logger() logx.Logger { return a.log }

// Account returns the verified account. Valid after Setup.
func (a *App) Account() publisher.Account { return a.account }

// Setup checks the images directory, loads the recent files history and
// verifies credentials. Errors are fatal: *library.DirectoryAccessError or
// publisher.ErrAuthentication.
func (a *App) Setup(ctx context.Context) error {
	s := a.cfg.Settings
	n, err := a.lib.Check()
	if err != nil {
		return err
	}
	a.log.Info("images directory ok", logx.String("dir", s.ImagesPath), logx.Int("images", n))

	history, err := a.recents.Load(ctx)
	if err != nil {
		return err
	}

	acct, err := a.pub.VerifyCredentials(ctx)
	if err != nil {
		return err
	}
	a.account = acct

	poster, err := orchestrator.New(orchestrator.Deps{
		Selector:  a.lib,
		Publisher: a.pub,
		Recents:   a.recents,
		History:   history,
		Posts:     a.store,
		QueueSize: s.QueueSize(),
		Rand:      a.rng,
		Log:       a.log.With(logx.String("comp", "poster")),
	})
	if err != nil {
		return err
	}
	a.poster = poster
	a.log.Info("post delay", logx.Duration("delay", poster.Delay()))
	return nil
}

// Run posts at the configured minute of every hour until ctx is done.
// If started during the target minute, one post goes out immediately.
func (a *App) Run(ctx context.Context) error {
	if a.poster == nil {
		return errors.New("app: Setup must succeed before Run")
	}
	s := a.cfg.Settings

	if now := a.clock.Now(); now.Minute() == s.Minute {
		a.log.Info("started at the target minute, posting now")
		a.tick(ctx, true)
	}

	if err := a.clock.Add(postJob, scheduler.HourlyAt(s.Minute), func(c context.Context) error {
		return a.tick(c, false)
	}); err != nil {
		return err
	}
	for _, e := range a.clock.Entries() {
		a.log.Info("next post scheduled", logx.String("job", e.Name), logx.String("spec", e.Spec), logx.Time("at", e.Next))
	}
	sdNotify(a.log, "READY=1", fmt.Sprintf("STATUS=posting hourly at :%02d", s.Minute))

	g, gctx := errgroup.WithContext(ctx)
	if s.WatchEnabled() {
		g.Go(func() error {
			// Without the watcher the library relists on every refill.
			if err := a.lib.Watch(gctx); err != nil {
				a.log.Warn("images watcher stopped", logx.Err(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		return a.clock.Run(gctx, a.poll)
	})
	return g.Wait()
}

func (a *App) tick(ctx context.Context, immediate bool) error {
	res, err := a.poster.Tick(ctx, immediate)
	if err != nil {
		if !immediate {
			// The clock logs job errors.
			return err
		}
		a.log.Error("immediate post failed", logx.Err(err))
		return nil
	}
	status := fmt.Sprintf("STATUS=last post %s (%s)", res.Outcome, res.Filename)
	if next, ok := a.clock.Next(); ok {
		status += ", next " + next.Format("15:04")
	}
	sdNotify(a.log, status)
	return nil
}

// Snapshot returns the poster state. Valid after Setup.
func (a *App) Snapshot() orchestrator.Snapshot {
	if a.poster == nil {
		return orchestrator.Snapshot{}
	}
	return a.poster.Snapshot()
}

// Preview lists the images the next refill could choose from, given the
// persisted history.
func (a *App) Preview(ctx context.Context) ([]string, error) {
	if _, err := a.lib.Check(); err != nil {
		return nil, err
	}
	history, err := a.recents.Load(ctx)
	if err != nil {
		return nil, err
	}
	size := a.cfg.Settings.QueueSize()
	return a.lib.Eligible(library.NewQueue(size), history, size)
}

// RecentPosts returns the post log, newest first. storage.ErrDisabled means
// the configured driver keeps no post log.
func (a *App) RecentPosts(ctx context.Context, limit int) ([]storage.PostEntry, error) {
	return a.store.RecentPosts(ctx, limit)
}

// Stop clears scheduled jobs and releases storage and logging.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, "STOPPING=1")

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", time.Second, func(context.Context) error { a.clock.Clear(); return nil })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		return a.logs.Close()
	}
	return nil
}

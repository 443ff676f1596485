package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	logx "hourlypics/pkg/logx"
)

const (
	DefaultRetryPause     = 30 * time.Second
	DefaultRequestTimeout = 60 * time.Second
)

type Options struct {
	// RetryPause is the fixed wait before retrying after a transient failure.
	RetryPause time.Duration
	// RequestTimeout bounds each API call. 0 disables it.
	RequestTimeout time.Duration
	// RatePerSec paces API calls. 0 disables pacing.
	RatePerSec int
	// Body is the post text.
	Body string
}

type Publisher struct {
	client  Client
	opt     Options
	limiter *rate.Limiter
	log     logx.Logger

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(client Client, opt Options, log logx.Logger) *Publisher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opt.RetryPause <= 0 {
		opt.RetryPause = DefaultRetryPause
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opt.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(opt.RatePerSec), 1)
	}
	return &Publisher{client: client, opt: opt, limiter: lim, log: log, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// VerifyCredentials checks the API credentials. Failures wrap ErrAuthentication.
func (p *Publisher) VerifyCredentials(ctx context.Context) (Account, error) {
	var acc Account
	err := p.call(ctx, func(c context.Context) error {
		var err error
		acc, err = p.client.VerifyCredentials(c)
		return err
	})
	if err != nil {
		return Account{}, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	p.log.Info("logged in", logx.String("account", "@"+acc.Username))
	return acc, nil
}

// Publish uploads mediaPath and posts it.
//
// Transient network failures restart the whole sequence after RetryPause,
// indefinitely; only ctx ends the loop. Any other failure defers the post.
func (p *Publisher) Publish(ctx context.Context, mediaPath string) Result {
	retries := 0
	for {
		post, media, err := p.publishOnce(ctx, mediaPath)
		if err == nil {
			res := Delivered(post.URL, media.ID)
			res.Retries = retries
			return res
		}
		if ctx.Err() != nil {
			res := Deferred(ctx.Err())
			res.Retries = retries
			return res
		}
		if !IsTransient(err) {
			p.log.Error("failed to publish post", logx.String("file", mediaPath), logx.Err(err))
			res := Deferred(err)
			res.Retries = retries
			return res
		}

		retries++
		p.log.Warn("failed to publish post, retrying",
			logx.String("file", mediaPath),
			logx.Duration("pause", p.opt.RetryPause),
			logx.Int("retry", retries),
			logx.Err(err))
		if err := p.sleep(ctx, p.opt.RetryPause); err != nil {
			res := Deferred(err)
			res.Retries = retries
			return res
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context, mediaPath string) (Post, Media, error) {
	var media Media
	p.log.Debug("uploading media", logx.String("file", mediaPath))
	err := p.call(ctx, func(c context.Context) error {
		var err error
		media, err = p.client.UploadMedia(c, mediaPath)
		return err
	})
	if err != nil {
		return Post{}, Media{}, fmt.Errorf("upload media: %w", err)
	}
	if media.ID == "" {
		return Post{}, Media{}, errors.New("upload media: empty media id")
	}

	var post Post
	p.log.Debug("sending post", logx.String("media_id", media.ID))
	err = p.call(ctx, func(c context.Context) error {
		var err error
		post, err = p.client.CreatePost(c, p.opt.Body, media.ID)
		return err
	})
	if err != nil {
		return Post{}, media, fmt.Errorf("create post: %w", err)
	}
	return post, media, nil
}

// call paces fn through the limiter and bounds it with RequestTimeout.
func (p *Publisher) call(ctx context.Context, fn func(context.Context) error) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.opt.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opt.RequestTimeout)
		defer cancel()
	}
	return fn(ctx)
}

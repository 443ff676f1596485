// Package publisher uploads an image and publishes it as a post.
//
// The remote API is reached through the Client interface; see
// internal/adapters/mastodon for the Mastodon implementation.
package publisher

import (
	"context"
	"errors"
	"net"
)

// ErrAuthentication reports that credential verification failed.
var ErrAuthentication = errors.New("authentication failed")

type Account struct {
	Username string
}

type Media struct {
	ID string
}

type Post struct {
	ID  string
	URL string
}

// Client is the remote posting API.
type Client interface {
	VerifyCredentials(ctx context.Context) (Account, error)
	UploadMedia(ctx context.Context, path string) (Media, error)
	CreatePost(ctx context.Context, body, mediaID string) (Post, error)
}

type Status int

const (
	// StatusDeferred means nothing was posted; try again at the next tick.
	StatusDeferred Status = iota
	StatusDelivered
)

func (s Status) String() string {
	if s == StatusDelivered {
		return "delivered"
	}
	return "deferred"
}

// Result is the outcome of one Publish call.
type Result struct {
	Status  Status
	URL     string
	MediaID string
	Retries int
	Reason  error // set when deferred
}

func Delivered(url, mediaID string) Result {
	return Result{Status: StatusDelivered, URL: url, MediaID: mediaID}
}

func Deferred(reason error) Result {
	return Result{Status: StatusDeferred, Reason: reason}
}

func (r Result) Delivered() bool { return r.Status == StatusDelivered }

// IsTransient reports whether err is a name resolution failure.
// Publish retries those indefinitely.
func IsTransient(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

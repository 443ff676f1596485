// Package mastodon implements publisher.Client on top of go-mastodon.
package mastodon

import (
	"context"
	"errors"
	"strings"

	gomasto "github.com/mattn/go-mastodon"

	"hourlypics/internal/publisher"
)

type Config struct {
	Server       string
	ClientID     string
	ClientSecret string
	AccessToken  string
	// Visibility of created posts ("public", "unlisted", ...). Empty uses the
	// account default.
	Visibility string
}

type Client struct {
	api        *gomasto.Client
	visibility string
}

var _ publisher.Client = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	server := strings.TrimRight(strings.TrimSpace(cfg.Server), "/")
	if server == "" {
		return nil, errors.New("mastodon server url is empty")
	}
	api := gomasto.NewClient(&gomasto.Config{
		Server:       server,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccessToken:  cfg.AccessToken,
	})
	return &Client{api: api, visibility: cfg.Visibility}, nil
}

func (c *Client) VerifyCredentials(ctx context.Context) (publisher.Account, error) {
	acc, err := c.api.GetAccountCurrentUser(ctx)
	if err != nil {
		return publisher.Account{}, err
	}
	return publisher.Account{Username: acc.Username}, nil
}

func (c *Client) UploadMedia(ctx context.Context, path string) (publisher.Media, error) {
	att, err := c.api.UploadMedia(ctx, path)
	if err != nil {
		return publisher.Media{}, err
	}
	return publisher.Media{ID: string(att.ID)}, nil
}

func (c *Client) CreatePost(ctx context.Context, body, mediaID string) (publisher.Post, error) {
	st, err := c.api.PostStatus(ctx, &gomasto.Toot{
		Status:     body,
		MediaIDs:   []gomasto.ID{gomasto.ID(mediaID)},
		Visibility: c.visibility,
	})
	if err != nil {
		return publisher.Post{}, err
	}
	return publisher.Post{ID: string(st.ID), URL: st.URL}, nil
}

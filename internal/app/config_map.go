package app

import (
	"fmt"

	"hourlypics/internal/adapters/mastodon"
	"hourlypics/internal/adapters/telegram"
	"hourlypics/internal/config"
	"hourlypics/internal/publisher"
	logx "hourlypics/pkg/logx"
)

const defaultPublisherRate = 1

func mapLogConfig(s *config.Settings) logx.Config {
	lc := s.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console || !lc.File.Enabled,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    lc.Telegram.Enabled,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

// mapAlertSender returns nil when Telegram logging is off.
func mapAlertSender(cfg *config.Config) (logx.Sender, error) {
	tg := cfg.Settings.Logging.Telegram
	if !tg.Enabled {
		return nil, nil
	}
	sender, err := telegram.New(telegram.Config{
		Token:    cfg.Secrets.TelegramToken,
		ChatID:   tg.ChatID,
		ThreadID: tg.ThreadID,
	})
	if err != nil {
		return nil, fmt.Errorf("logging.telegram: %w", err)
	}
	return sender, nil
}

func mapPublisherOptions(s *config.Settings) publisher.Options {
	pc := s.Publisher
	rate := pc.RatePerSec
	if rate == 0 {
		rate = defaultPublisherRate
	}
	return publisher.Options{
		RetryPause:     pc.RetryPause.Or(publisher.DefaultRetryPause),
		RequestTimeout: pc.RequestTimeout.Or(publisher.DefaultRequestTimeout),
		RatePerSec:     rate,
		Body:           pc.Body,
	}
}

func mapMastodonConfig(cfg *config.Config) mastodon.Config {
	return mastodon.Config{
		Server:       cfg.Settings.InstanceURL,
		ClientID:     cfg.Secrets.ClientKey,
		ClientSecret: cfg.Secrets.ClientSecret,
		AccessToken:  cfg.Secrets.AccessToken,
		Visibility:   cfg.Settings.Publisher.Visibility,
	}
}

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	logx "hourlypics/pkg/logx"
)

const (
	DefaultSettingsFile   = "settings.yaml"
	DefaultSecretsFile    = "secrets.yaml"
	DefaultRecentsFile    = "recent_files.txt"
	DefaultImageQueueSize = 12
)

// Manager loads settings and secrets once per process.
type Manager struct {
	settingsPath string
	secretsPath  string
}

func NewManager(settingsPath, secretsPath string) *Manager {
	if strings.TrimSpace(settingsPath) == "" {
		settingsPath = DefaultSettingsFile
	}
	if strings.TrimSpace(secretsPath) == "" {
		secretsPath = DefaultSecretsFile
	}
	return &Manager{settingsPath: settingsPath, secretsPath: secretsPath}
}

// Load parses, defaults and validates both files.
func (m *Manager) Load() (*Config, error) {
	st, err := m.LoadSettings()
	if err != nil {
		return nil, err
	}
	sec, err := m.LoadSecrets()
	if err != nil {
		return nil, err
	}
	if st.Logging.Telegram.Enabled && strings.TrimSpace(sec.TelegramToken) == "" {
		return nil, fmt.Errorf("%s: telegram_token is required when logging.telegram.enabled is true", m.secretsPath)
	}
	return &Config{Settings: st, Secrets: sec}, nil
}

func (m *Manager) LoadSettings() (*Settings, error) {
	var st Settings
	if err := decodeFile(m.settingsPath, &st); err != nil {
		return nil, err
	}
	st.applyDefaults()
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", m.settingsPath, err)
	}
	return &st, nil
}

func (m *Manager) LoadSecrets() (*Secrets, error) {
	var sec Secrets
	if err := decodeFile(m.secretsPath, &sec); err != nil {
		return nil, err
	}
	if err := sec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", m.secretsPath, err)
	}
	return &sec, nil
}

// decodeFile reads a YAML or JSON file and decodes it strictly into out.
func decodeFile(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	if isYAML(path) {
		err = decodeYAML(b, out)
	} else {
		err = decodeJSON(b, out)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("invalid config: trailing data")
		}
		return err
	}
	return nil
}

func (s *Settings) applyDefaults() {
	if strings.TrimSpace(s.RecentsFile) == "" {
		s.RecentsFile = DefaultRecentsFile
	}
	if s.ImageQueueSize == nil {
		n := DefaultImageQueueSize
		s.ImageQueueSize = &n
	}
	if strings.TrimSpace(s.Storage.Driver) == "" {
		s.Storage.Driver = "file"
	}
}

// Validate checks field invariants. Defaults must already be applied.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.InstanceURL) == "" {
		return errors.New("instance_url is required")
	}
	u, err := url.Parse(s.InstanceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("instance_url: invalid %q (want http(s)://host)", s.InstanceURL)
	}
	if strings.TrimSpace(s.ImagesPath) == "" {
		return errors.New("images_path is required")
	}
	if s.Minute < 0 || s.Minute >= 60 {
		return errors.New("minute must be between 0 and 59")
	}
	if s.QueueSize() < 1 {
		return errors.New("image_queue_size must be at least 1")
	}
	if tz := strings.TrimSpace(s.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone: invalid %q: %w", tz, err)
		}
	}

	if !logx.ValidLevel(s.Logging.Level) {
		return fmt.Errorf("logging.level: invalid %q", s.Logging.Level)
	}
	if tg := s.Logging.Telegram; tg.Enabled {
		if tg.ChatID == 0 {
			return errors.New("logging.telegram.chat_id is required when telegram logging is enabled")
		}
		if !logx.ValidLevel(tg.MinLevel) {
			return fmt.Errorf("logging.telegram.min_level: invalid %q", tg.MinLevel)
		}
		if tg.RatePerSec < 0 {
			return errors.New("logging.telegram.rate_per_sec must be >= 0")
		}
	}

	switch strings.ToLower(strings.TrimSpace(s.Storage.Driver)) {
	case "file", "none":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(s.Storage.Path) == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver: unknown %q", s.Storage.Driver)
	}
	for _, f := range []struct {
		name string
		d    Duration
	}{
		{"storage.busy_timeout", s.Storage.BusyTimeout},
		{"publisher.retry_pause", s.Publisher.RetryPause},
		{"publisher.request_timeout", s.Publisher.RequestTimeout},
	} {
		if f.d < 0 {
			return fmt.Errorf("%s: negative duration %s", f.name, f.d)
		}
	}
	if s.Publisher.RatePerSec < 0 {
		return errors.New("publisher.rate_per_sec must be >= 0")
	}
	switch s.Publisher.Visibility {
	case "", "public", "unlisted", "private", "direct":
	default:
		return fmt.Errorf("publisher.visibility: invalid %q", s.Publisher.Visibility)
	}
	return nil
}

// QueueSize returns image_queue_size, or the default when it was omitted.
func (s *Settings) QueueSize() int {
	if s.ImageQueueSize == nil {
		return DefaultImageQueueSize
	}
	return *s.ImageQueueSize
}

// WatchEnabled reports whether the images directory watcher should run.
func (s *Settings) WatchEnabled() bool {
	return s.WatchImages == nil || *s.WatchImages
}

// Location returns the configured timezone, or time.Local.
func (s *Settings) Location() *time.Location {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

func (s *Secrets) Validate() error {
	var missing []string
	if strings.TrimSpace(s.ClientKey) == "" {
		missing = append(missing, "client_key")
	}
	if strings.TrimSpace(s.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if strings.TrimSpace(s.AccessToken) == "" {
		missing = append(missing, "access_token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required secrets: %s", strings.Join(missing, ", "))
	}
	return nil
}

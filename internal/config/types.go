package config

// Settings is the bot's settings file (settings.yaml by default).
//
// Required: instance_url, images_path.
//
// Defaults (when fields are omitted):
//   - minute: 0
//   - recents_file: "recent_files.txt"
//   - image_queue_size: 12
//   - timezone: process local time
//   - watch_images: true
type Settings struct {
	InstanceURL string `json:"instance_url" yaml:"instance_url"`
	ImagesPath  string `json:"images_path" yaml:"images_path"`

	// Minute is the minute past the hour posts are sent at (0..59).
	Minute int `json:"minute" yaml:"minute"`

	RecentsFile string `json:"recents_file,omitempty" yaml:"recents_file"`

	// ImageQueueSize is the number of images to queue at a time. It is also the
	// capacity of the recent files history. Setting this to 1 allows images to be
	// sent more than once in a row. Pointer so an explicit 0 is rejected instead
	// of defaulted.
	ImageQueueSize *int `json:"image_queue_size,omitempty" yaml:"image_queue_size"`

	// Timezone is an IANA TZ name (e.g. "Europe/Berlin") used for hour alignment.
	Timezone string `json:"timezone,omitempty" yaml:"timezone"`

	// WatchImages enables the images_path watcher. Pointer so an explicit false
	// can be told apart from "omitted".
	WatchImages *bool `json:"watch_images,omitempty" yaml:"watch_images"`

	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Publisher PublisherConfig `json:"publisher" yaml:"publisher"`
}

// Secrets holds API credentials (secrets.yaml by default).
type Secrets struct {
	ClientKey    string `json:"client_key" yaml:"client_key"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	AccessToken  string `json:"access_token" yaml:"access_token"`

	// TelegramToken is only needed when logging.telegram.enabled is true.
	TelegramToken string `json:"telegram_token,omitempty" yaml:"telegram_token"`
}

type LoggingConfig struct {
	Level    string          `json:"level" yaml:"level"`
	Console  bool            `json:"console" yaml:"console"`
	File     LoggingFile     `json:"file" yaml:"file"`
	Telegram LoggingTelegram `json:"telegram" yaml:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// LoggingTelegram forwards warnings/errors to a Telegram chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ChatID     int64  `json:"chat_id" yaml:"chat_id"`
	ThreadID   int    `json:"thread_id" yaml:"thread_id"`
	MinLevel   string `json:"min_level" yaml:"min_level"`
	RatePerSec int    `json:"rate_per_sec" yaml:"rate_per_sec"`
}

// StorageConfig controls where recent files and the post log are kept.
//
// Example:
//
//	storage: { driver: sqlite, path: ./hourlypics.db }
//
// Driver values:
//   - "file" (default): recents_file + <path>.posts.jsonl
//   - "sqlite": SQLite database file at path
//   - "none": recents_file only, no post log
type StorageConfig struct {
	Driver      string   `json:"driver" yaml:"driver"`
	Path        string   `json:"path" yaml:"path"`
	BusyTimeout Duration `json:"busy_timeout,omitempty" yaml:"busy_timeout"` // sqlite only
}

// PublisherConfig tunes API access.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults:
//   - retry_pause: "30s"
//   - request_timeout: "60s"
//   - rate_per_sec: 1
type PublisherConfig struct {
	RetryPause     Duration `json:"retry_pause,omitempty" yaml:"retry_pause"`
	RequestTimeout Duration `json:"request_timeout,omitempty" yaml:"request_timeout"`
	RatePerSec     int      `json:"rate_per_sec,omitempty" yaml:"rate_per_sec"`
	Visibility     string   `json:"visibility,omitempty" yaml:"visibility"`
	Body           string   `json:"body,omitempty" yaml:"body"`
}

// Config is the fully loaded, validated configuration. It is immutable after Load.
type Config struct {
	Settings *Settings
	Secrets  *Secrets
}

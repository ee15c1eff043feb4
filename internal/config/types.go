package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Eurocore configures the dispatch API client and job polling.
	Eurocore EurocoreConfig `json:"eurocore"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

// EurocoreConfig controls the remote dispatch API integration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "12h").
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "10s"
//   - request_timeout: "15s"
//   - session_ttl: "12h"
//   - nations_cache_ttl: "5m"
type EurocoreConfig struct {
	BaseURL string `json:"base_url"`

	PollInterval   string `json:"poll_interval,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`

	// SessionTTL bounds how long a signed-in token is reused before the
	// client signs in again.
	SessionTTL string `json:"session_ttl,omitempty"`

	// NationsCacheTTL bounds how long the permitted-nations list is cached.
	NationsCacheTTL string `json:"nations_cache_ttl,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings. If the whole section is omitted,
// the notifier defaults to enabled=true.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the persistence layer (job history, dedup keys).
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./eurobot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Watch     WatchConfig     `json:"watch"`
	Providers ProvidersConfig `json:"providers"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token    string  `json:"token"`
	AdminIDs []int64 `json:"admin_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// WatchConfig controls the subscription engine.
//
// All durations are Go duration strings (e.g. "30s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - tick_interval: "30s"
//   - fetch_concurrency: 4
//   - dedup_alerts: false (re-alert every tick)
type WatchConfig struct {
	TickInterval     string `json:"tick_interval,omitempty"`
	FetchConcurrency int    `json:"fetch_concurrency,omitempty"`

	// DedupAlerts suppresses alerts for activity/listing/offer ids that were
	// already reported for a domain. Off by default: downstream consumers
	// rely on getting a fresh alert per tick.
	DedupAlerts bool `json:"dedup_alerts,omitempty"`
}

// ProvidersConfig points at the external data providers.
type ProvidersConfig struct {
	// RegistryBaseURL is the blockchain domain-registry API base, e.g.
	// "https://api.example.io/v1".
	RegistryBaseURL string `json:"registry_base_url"`
	// Timeout is a Go duration string bounding each provider call.
	Timeout string `json:"timeout,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier defaults to enabled=true.
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

// StorageConfig controls the optional persistence layer (audit trail plus
// seen-event keys). Subscriptions themselves are memory-resident only.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./domwatch_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// Redis driver only.
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

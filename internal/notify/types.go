package notify

import "time"

// Config controls the async notification pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	// PersistDedup mirrors the dedup window through the storage layer so
	// suppression survives restarts. Requires a store.
	PersistDedup bool
}

type HistoryItem struct {
	At   time.Time
	Text string
}

// NotificationEvent is the bus payload for notify.* events.
type NotificationEvent struct {
	ChatID int64     `json:"chat_id"`
	Key    string    `json:"key,omitempty"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}

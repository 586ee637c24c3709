package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//   - "redis": shared Redis instance
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Redis only.
	Addr     string
	Password string
	DB       int
}

// AuditEntry records a subscription mutation.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time
	UserID   int64
	Username string
	ChatID   int64
	Action   string
	Domain   string
	OK       bool
	Error    string
	TookMS   int64
	MetaJSON string
}

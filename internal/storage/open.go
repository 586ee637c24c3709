package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "domwatch/pkg/logx"
)

// Store is the minimal persistence API used by the engine and notifier.
//
// Marks are expiring keys: the notifier uses them as a dedup window, the
// watch engine uses them as persisted seen-event keys (long expiry).
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	PutMark(ctx context.Context, key string, until time.Time) error
	GetMark(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

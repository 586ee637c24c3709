package app

import (
	"fmt"
	"strings"
	"time"

	"domwatch/internal/config"
	"domwatch/internal/notify"
	"domwatch/internal/providers"
	"domwatch/internal/storage"
	"domwatch/internal/watch"
)

func mapWatchConfig(cfg *config.Config) (watch.Config, error) {
	tick, err := config.ParseDurationOrDefault("watch.tick_interval", cfg.Watch.TickInterval, 30*time.Second)
	if err != nil {
		return watch.Config{}, err
	}
	return watch.Config{
		TickInterval:     tick,
		FetchConcurrency: cfg.Watch.FetchConcurrency,
		DedupAlerts:      cfg.Watch.DedupAlerts,
	}, nil
}

func mapProvidersConfig(cfg *config.Config) (providers.Config, error) {
	timeout, err := config.ParseDurationOrDefault("providers.timeout", cfg.Providers.Timeout, 10*time.Second)
	if err != nil {
		return providers.Config{}, err
	}
	return providers.Config{
		BaseURL: cfg.Providers.RegistryBaseURL,
		Timeout: timeout,
	}, nil
}

// mapNotifyConfig translates the config section to the pipeline config.
// An omitted section means enabled with defaults.
func mapNotifyConfig(cfg *config.Config) (notify.Config, error) {
	if cfg.Notifier == nil {
		return notify.Config{Enabled: true}, nil
	}
	nc := cfg.Notifier
	retryBase, err := config.ParseDurationField("notifier.retry_base", nc.RetryBase)
	if err != nil {
		return notify.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay)
	if err != nil {
		return notify.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		Enabled:         nc.Enabled,
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: nc.DedupMaxEntries,
		PersistDedup:    nc.PersistDedup,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	case "redis":
		if strings.TrimSpace(sc.Addr) == "" {
			return storage.Config{}, false, fmt.Errorf("storage.addr is required when storage.driver=redis")
		}
		return storage.Config{Driver: "redis", Addr: sc.Addr, Password: sc.Password, DB: sc.DB}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

package app

import (
	"strings"
	"testing"
	"time"

	"domwatch/internal/config"
)

func TestMapWatchConfigDefaults(t *testing.T) {
	t.Parallel()

	got, err := mapWatchConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapWatchConfig: %v", err)
	}
	if got.TickInterval != 30*time.Second {
		t.Fatalf("tick = %v, want 30s", got.TickInterval)
	}

	if _, err := mapWatchConfig(&config.Config{Watch: config.WatchConfig{TickInterval: "soon"}}); err == nil {
		t.Fatal("expected error for bad tick interval")
	}
}

func TestMapProvidersConfigDefaults(t *testing.T) {
	t.Parallel()

	got, err := mapProvidersConfig(&config.Config{Providers: config.ProvidersConfig{RegistryBaseURL: "https://api.example.io/v1"}})
	if err != nil {
		t.Fatalf("mapProvidersConfig: %v", err)
	}
	if got.BaseURL != "https://api.example.io/v1" || got.Timeout != 10*time.Second {
		t.Fatalf("got = %+v", got)
	}
}

func TestMapNotifyConfig(t *testing.T) {
	t.Parallel()

	// Omitted section: enabled with defaults.
	got, err := mapNotifyConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapNotifyConfig: %v", err)
	}
	if !got.Enabled {
		t.Fatal("omitted notifier section should default to enabled")
	}

	got, err = mapNotifyConfig(&config.Config{Notifier: &config.NotifierConfig{
		Enabled:     true,
		Workers:     4,
		RetryBase:   "250ms",
		RetryMax:    5,
		DedupWindow: "1m",
	}})
	if err != nil {
		t.Fatalf("mapNotifyConfig: %v", err)
	}
	if got.Workers != 4 || got.RetryBase != 250*time.Millisecond || got.DedupWindow != time.Minute {
		t.Fatalf("got = %+v", got)
	}

	if _, err := mapNotifyConfig(&config.Config{Notifier: &config.NotifierConfig{RetryBase: "x"}}); err == nil {
		t.Fatal("expected error for bad retry base")
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		in          *config.StorageConfig
		wantEnabled bool
		wantDriver  string
		wantErr     string
	}{
		{name: "omitted", in: nil},
		{name: "none", in: &config.StorageConfig{Driver: "none"}},
		{name: "file", in: &config.StorageConfig{Driver: "file", Path: "./store"}, wantEnabled: true, wantDriver: "file"},
		{name: "file without path", in: &config.StorageConfig{Driver: "file"}, wantErr: "storage.path"},
		{name: "sqlite3 normalized", in: &config.StorageConfig{Driver: "SQLite3", Path: "./db"}, wantEnabled: true, wantDriver: "sqlite"},
		{name: "redis", in: &config.StorageConfig{Driver: "redis", Addr: "localhost:6379"}, wantEnabled: true, wantDriver: "redis"},
		{name: "redis without addr", in: &config.StorageConfig{Driver: "redis"}, wantErr: "storage.addr"},
		{name: "unknown", in: &config.StorageConfig{Driver: "etcd"}, wantErr: "unknown storage.driver"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sc, enabled, err := mapStorageConfig(&config.Config{Storage: tt.in})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("mapStorageConfig: %v", err)
			}
			if enabled != tt.wantEnabled {
				t.Fatalf("enabled = %v, want %v", enabled, tt.wantEnabled)
			}
			if enabled && sc.Driver != tt.wantDriver {
				t.Fatalf("driver = %q, want %q", sc.Driver, tt.wantDriver)
			}
		})
	}
}

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const minimalJSON = `{
  "telegram": {"token": "123:abc", "admin_ids": [7], "poll_timeout": "10s"},
  "logging": {"level": "debug", "console": true},
  "watch": {"tick_interval": "30s", "fetch_concurrency": 4},
  "providers": {"registry_base_url": "https://api.example.io/v1", "timeout": "10s"}
}`

func TestParseJSON(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfigFile(t, "config.json", minimalJSON))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminIDs) != 1 || cfg.Telegram.AdminIDs[0] != 7 {
		t.Fatalf("admin_ids = %v", cfg.Telegram.AdminIDs)
	}
	if cfg.Watch.TickInterval != "30s" || cfg.Watch.FetchConcurrency != 4 {
		t.Fatalf("watch = %+v", cfg.Watch)
	}
	if cfg.Notifier != nil || cfg.Storage != nil {
		t.Fatal("omitted optional sections should stay nil")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	yml := `
telegram:
  token: "123:abc"
  admin_ids: [7, 9]
  poll_timeout: 10s
logging:
  level: info
  console: true
watch:
  tick_interval: 1m
providers:
  registry_base_url: https://api.example.io/v1
storage:
  driver: file
  path: ./store
`
	m := NewManager(writeConfigFile(t, "config.yaml", yml))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Telegram.AdminIDs) != 2 {
		t.Fatalf("admin_ids = %v", cfg.Telegram.AdminIDs)
	}
	if cfg.Watch.TickInterval != "1m" {
		t.Fatalf("tick_interval = %q", cfg.Watch.TickInterval)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfigFile(t, "config.json", `{"telegram": {"token": "x", "typo_field": true}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfigFile(t, "config.json", `{"telegram": {"token": "x"}} {"extra": 1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()

	m := NewManager(filepath.Join(t.TempDir(), "nope.json"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfigFile(t, "config.json", minimalJSON))
	if m.Get() != nil {
		t.Fatal("Get before Load should be nil")
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfigFile(t, "config.json", minimalJSON))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(2)
	defer m.Unsubscribe(ch)

	// Same file content: reload must not publish.
	m.reload(context.Background())
	select {
	case <-ch:
		t.Fatal("unchanged content should not be published")
	default:
	}
}

func TestReloadValidatorRejects(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", minimalJSON)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	old := m.Get()

	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		return errors.New("nope")
	})

	// Change the content so the hash differs, then reload.
	updated := `{
  "telegram": {"token": "456:def"},
  "logging": {"level": "info"},
  "watch": {},
  "providers": {"registry_base_url": "https://api.example.io/v1"}
}`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	ch := m.Subscribe(2)
	defer m.Unsubscribe(ch)

	m.reload(context.Background())
	select {
	case <-ch:
		t.Fatal("rejected config should not be published")
	default:
	}
	if m.Get() != old {
		t.Fatal("rejected config should not be committed")
	}
}

func TestReloadPublishesValidChange(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", minimalJSON)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	updated := `{
  "telegram": {"token": "456:def"},
  "logging": {"level": "info"},
  "watch": {"tick_interval": "1m"},
  "providers": {"registry_base_url": "https://api.example.io/v1"}
}`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	ch := m.Subscribe(2)
	defer m.Unsubscribe(ch)

	m.reload(context.Background())
	select {
	case cfg := <-ch:
		if cfg.Telegram.Token != "456:def" {
			t.Fatalf("published token = %q", cfg.Telegram.Token)
		}
		if m.Get() != cfg {
			t.Fatal("published config should also be committed")
		}
	default:
		t.Fatal("valid change was not published")
	}
}

func TestPublishDropsStaleForSlowSubscriber(t *testing.T) {
	t.Parallel()

	m := NewManager("unused.json")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{}
	second := &Config{Telegram: TelegramConfig{Token: "new"}}
	m.publish(first)
	m.publish(second)

	got := <-ch
	if got != second {
		t.Fatal("newest config should win when the buffer is full")
	}
}

func TestUnsubscribeClosesAndRemoves(t *testing.T) {
	t.Parallel()

	m := NewManager("unused.json")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	// Double unsubscribe and nil are no-ops.
	m.Unsubscribe(ch)
	m.Unsubscribe(nil)
	m.publish(&Config{})
}

package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"domwatch/internal/transport"
	logx "domwatch/pkg/logx"
)

type sentMsg struct {
	to   transport.ChatTarget
	text string
}

// fakeAdapter records sends and can fail a fixed number of times.
type fakeAdapter struct {
	mu       sync.Mutex
	sent     []sentMsg
	failures int
}

func (a *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (a *fakeAdapter) Stop(context.Context) error                           { return nil }

func (a *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failures > 0 {
		a.failures--
		return transport.MessageRef{}, errors.New("send failed")
	}
	a.sent = append(a.sent, sentMsg{to: to, text: text})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(a.sent)}, nil
}

func (a *fakeAdapter) sentTexts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.sent))
	for i, m := range a.sent {
		out[i] = m.text
	}
	return out
}

func newTestService(cfg Config) (*Service, *fakeAdapter) {
	ad := &fakeAdapter{}
	cfg.Enabled = true
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 1000 // keep tests fast
	}
	return New(cfg, ad, logx.Nop(), nil, nil), ad
}

func drainStop(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestNotifyDeliversThroughPipeline(t *testing.T) {
	t.Parallel()
	s, ad := newTestService(Config{})
	s.Start(context.Background())

	err := s.Notify(context.Background(), transport.Notification{
		Target: transport.ChatTarget{ChatID: 7},
		Text:   "hello",
	})
	if err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	drainStop(t, s)

	texts := ad.sentTexts()
	if len(texts) != 1 || texts[0] != "hello" {
		t.Fatalf("sent = %v, want [hello]", texts)
	}
}

func TestNotifyPriorityPrefix(t *testing.T) {
	t.Parallel()
	s, ad := newTestService(Config{})
	s.Start(context.Background())

	_ = s.Notify(context.Background(), transport.Notification{
		Priority: 9,
		Target:   transport.ChatTarget{ChatID: 1},
		Text:     "urgent",
	})
	drainStop(t, s)

	texts := ad.sentTexts()
	if len(texts) != 1 || !strings.HasPrefix(texts[0], "🚨 ") {
		t.Fatalf("sent = %v, want critical prefix", texts)
	}
}

func TestNotifyRetriesTransientFailure(t *testing.T) {
	t.Parallel()
	s, ad := newTestService(Config{RetryMax: 2, RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond})
	ad.failures = 1
	s.Start(context.Background())

	_ = s.Notify(context.Background(), transport.Notification{
		Target: transport.ChatTarget{ChatID: 1},
		Text:   "retry me",
	})
	drainStop(t, s)

	if texts := ad.sentTexts(); len(texts) != 1 {
		t.Fatalf("sent = %v, want delivery after retry", texts)
	}
}

func TestNotifyDedupWindow(t *testing.T) {
	t.Parallel()
	s, ad := newTestService(Config{DedupWindow: time.Minute})
	s.Start(context.Background())

	n := transport.Notification{Target: transport.ChatTarget{ChatID: 1}, Text: "dup"}
	if err := s.Notify(context.Background(), n); err != nil {
		t.Fatalf("first Notify error: %v", err)
	}
	if err := s.Notify(context.Background(), n); err != nil {
		t.Fatalf("deduped Notify should succeed silently, got %v", err)
	}
	drainStop(t, s)

	if texts := ad.sentTexts(); len(texts) != 1 {
		t.Fatalf("sent = %v, want a single delivery inside the window", texts)
	}
}

func TestNotifyDedupDistinguishesTargets(t *testing.T) {
	t.Parallel()
	s, ad := newTestService(Config{DedupWindow: time.Minute})
	s.Start(context.Background())

	_ = s.Notify(context.Background(), transport.Notification{Target: transport.ChatTarget{ChatID: 1}, Text: "same"})
	_ = s.Notify(context.Background(), transport.Notification{Target: transport.ChatTarget{ChatID: 2}, Text: "same"})
	drainStop(t, s)

	if texts := ad.sentTexts(); len(texts) != 2 {
		t.Fatalf("sent = %v, want one per chat", texts)
	}
}

func TestNotifyDisabled(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	s := New(Config{Enabled: false}, ad, logx.Nop(), nil, nil)
	s.Start(context.Background())

	err := s.Notify(context.Background(), transport.Notification{Target: transport.ChatTarget{ChatID: 1}, Text: "x"})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestNotifyAfterStop(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(Config{})
	s.Start(context.Background())
	drainStop(t, s)

	err := s.Notify(context.Background(), transport.Notification{Target: transport.ChatTarget{ChatID: 1}, Text: "x"})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestHistoryRing(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(Config{})
	s.Start(context.Background())

	_ = s.Notify(context.Background(), transport.Notification{Target: transport.ChatTarget{ChatID: 1}, Text: "one"})
	drainStop(t, s)

	hist := s.Snapshot()
	if len(hist) != 1 || hist[0].Text != "one" {
		t.Fatalf("history = %+v, want the delivered text", hist)
	}
}

func TestDedupKeyStable(t *testing.T) {
	t.Parallel()
	a := transport.Notification{Priority: 5, Target: transport.ChatTarget{ChatID: 1}, Text: "x"}
	b := transport.Notification{Priority: 5, Target: transport.ChatTarget{ChatID: 1}, Text: "x"}
	if dedupKey(a) != dedupKey(b) {
		t.Fatal("identical notifications must share a dedup key")
	}
	c := transport.Notification{Priority: 6, Target: transport.ChatTarget{ChatID: 1}, Text: "x"}
	if dedupKey(a) == dedupKey(c) {
		t.Fatal("priority must be part of the dedup key")
	}
	if dedupKey(transport.Notification{}) != "" {
		t.Fatal("empty text must yield no key")
	}
}

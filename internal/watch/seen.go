package watch

import (
	"context"
	"sync"
	"time"

	"domwatch/internal/storage"
	logx "domwatch/pkg/logx"
)

const (
	// seenKeyTTL bounds how long persisted seen keys live. Long enough that a
	// restart doesn't re-alert on stale events, short enough that the store
	// doesn't grow without bound.
	seenKeyTTL = 30 * 24 * time.Hour

	// seenCapPerDomain bounds the in-memory set. Hitting the cap resets the
	// set for that domain, which re-alerts each live event once.
	seenCapPerDomain = 2048

	seenStoreTimeout = 2 * time.Second
)

// seenTracker remembers which event keys have already been alerted per
// domain. With a store attached, keys survive restarts via expiring marks.
// Safe for concurrent use: tick goroutines call it for different domains at
// once.
type seenTracker struct {
	log   logx.Logger
	store storage.Store // nil = memory only

	mu      sync.Mutex
	domains map[string]map[string]struct{}
}

// NewSeenTracker creates a tracker. store may be nil for memory-only use.
func NewSeenTracker(store storage.Store, log logx.Logger) *seenTracker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &seenTracker{
		log:     log,
		store:   store,
		domains: map[string]map[string]struct{}{},
	}
}

func newSeenTracker(store storage.Store, log logx.Logger) *seenTracker {
	return NewSeenTracker(store, log)
}

func seenKey(domain string, ev DomainEvent) string {
	return "seen:" + domain + ":" + string(ev.Kind) + ":" + ev.ID
}

// filterNew returns the events not seen before and marks them seen.
// Events without an id cannot be tracked and always pass through.
func (t *seenTracker) filterNew(ctx context.Context, domain string, events []DomainEvent) []DomainEvent {
	if len(events) == 0 {
		return events
	}

	// Phase 1: membership check against the in-memory set.
	t.mu.Lock()
	set := t.domains[domain]
	if set == nil || len(set) > seenCapPerDomain {
		set = map[string]struct{}{}
		t.domains[domain] = set
	}
	fresh := events[:0:0]
	var unknown []string // keys of fresh events, same order
	for _, ev := range events {
		if ev.ID == "" {
			fresh = append(fresh, ev)
			unknown = append(unknown, "")
			continue
		}
		key := seenKey(domain, ev)
		if _, ok := set[key]; ok {
			continue
		}
		fresh = append(fresh, ev)
		unknown = append(unknown, key)
	}
	t.mu.Unlock()

	if t.store == nil {
		t.markSeen(domain, unknown)
		return fresh
	}

	// Phase 2: consult the store outside the lock; drop events whose keys
	// were persisted by a previous process, persist the rest.
	out := fresh[:0]
	var marked []string
	for i, ev := range fresh {
		key := unknown[i]
		if key == "" {
			out = append(out, ev)
			continue
		}
		if t.persistedSeen(ctx, key) {
			marked = append(marked, key)
			continue
		}
		t.persist(ctx, key)
		marked = append(marked, key)
		out = append(out, ev)
	}
	t.markSeen(domain, marked)
	return out
}

func (t *seenTracker) markSeen(domain string, keys []string) {
	t.mu.Lock()
	set := t.domains[domain]
	if set == nil {
		set = map[string]struct{}{}
		t.domains[domain] = set
	}
	for _, key := range keys {
		if key != "" {
			set[key] = struct{}{}
		}
	}
	t.mu.Unlock()
}

func (t *seenTracker) persistedSeen(ctx context.Context, key string) bool {
	sctx, cancel := context.WithTimeout(ctx, seenStoreTimeout)
	defer cancel()
	until, ok, err := t.store.GetMark(sctx, key)
	if err != nil {
		t.log.Debug("seen lookup failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return ok && time.Now().Before(until)
}

func (t *seenTracker) persist(ctx context.Context, key string) {
	sctx, cancel := context.WithTimeout(ctx, seenStoreTimeout)
	defer cancel()
	if err := t.store.PutMark(sctx, key, time.Now().Add(seenKeyTTL)); err != nil {
		t.log.Debug("seen persist failed", logx.String("key", key), logx.Err(err))
	}
}

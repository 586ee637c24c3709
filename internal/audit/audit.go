// Package audit records registry mutations to durable storage. It observes
// the event bus rather than being called by the engine, so a slow or broken
// store never blocks a subscribe/unsubscribe path.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"domwatch/internal/eventbus"
	"domwatch/internal/storage"
	"domwatch/internal/watch"
	logx "domwatch/pkg/logx"
)

const writeTimeout = 3 * time.Second

type Recorder struct {
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	mu      sync.Mutex
	unsub   func()
	done    chan struct{}
	started bool
}

// New builds a recorder. store may be nil (storage disabled); Start is then
// a no-op.
func New(bus eventbus.Bus, store storage.Store, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{log: log.With(logx.String("comp", "audit")), bus: bus, store: store}
}

func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.store == nil || r.bus == nil {
		return
	}
	ch, unsub := r.bus.Subscribe(128)
	r.unsub = unsub
	r.done = make(chan struct{})
	r.started = true
	go r.run(ch, r.done)
}

func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	unsub, done := r.unsub, r.done
	r.started = false
	r.mu.Unlock()

	unsub()
	<-done
}

func (r *Recorder) run(ch <-chan eventbus.Event, done chan struct{}) {
	defer close(done)
	for ev := range ch {
		r.record(ev)
	}
}

func (r *Recorder) record(ev eventbus.Event) {
	entry, ok := entryFor(ev)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		r.log.Warn("audit append failed", logx.String("action", entry.Action), logx.Err(err))
	}
}

// entryFor maps bus events to audit rows. Only registry mutations and
// outbound alert/report dispatches are recorded; notify pipeline internals
// stay out of the audit trail.
func entryFor(ev eventbus.Event) (storage.AuditEntry, bool) {
	if !strings.HasPrefix(ev.Type, "watch.") {
		return storage.AuditEntry{}, false
	}
	switch data := ev.Data.(type) {
	case watch.SubscriptionEvent:
		errMsg := ""
		if !data.OK {
			errMsg = data.Message
		}
		return storage.AuditEntry{
			At:     data.At,
			UserID: data.UserID,
			ChatID: data.UserID,
			Action: data.Action,
			Domain: data.Domain,
			OK:     data.OK,
			Error:  errMsg,
		}, true
	case watch.AlertEvent:
		return storage.AuditEntry{
			At:       data.At,
			Action:   "alert",
			Domain:   data.Domain,
			OK:       true,
			MetaJSON: metaJSON(map[string]any{"events": data.Events, "watchers": data.Watchers}),
		}, true
	case watch.ReportEvent:
		return storage.AuditEntry{
			At:       data.At,
			UserID:   data.UserID,
			ChatID:   data.UserID,
			Action:   "report",
			OK:       true,
			MetaJSON: metaJSON(map[string]any{"domains": data.Domains}),
		}, true
	default:
		return storage.AuditEntry{}, false
	}
}

func metaJSON(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"domwatch/internal/eventbus"
	logx "domwatch/pkg/logx"
)

// Config controls the engine's timers.
type Config struct {
	// TickInterval is the event-detection cadence. Default 30s.
	TickInterval time.Duration
	// FetchConcurrency bounds concurrent provider calls per tick. Default 4.
	FetchConcurrency int
	// DedupAlerts suppresses events already alerted for a domain.
	// Off by default: downstream consumers may rely on the per-tick re-alert.
	DedupAlerts bool
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 4
	}
	return c
}

// Engine is the subscription and periodic-reporting core: an in-memory
// registry of users and watched domains, a global event-detection loop, and
// one recurring report timer per user.
//
// All state is guarded by mu; timer callbacks and API calls may run on
// different goroutines. Provider calls happen outside the lock.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	log      logx.Logger
	provider EventProvider
	notifier Notifier
	bus      eventbus.Bus

	reg  *registry
	seen *seenTracker

	cron *cron.Cron
	// monitorEntry is the global event-detection entry; 0 means monitoring
	// is off. Set on first subscribe, cleared only by StopEventMonitoring
	// or Stop.
	monitorEntry  cron.EntryID
	reportEntries map[int64]cron.EntryID

	runCtx    context.Context
	runCancel context.CancelFunc
	started   bool
}

// SubscriptionEvent is published on the bus for every registry mutation.
type SubscriptionEvent struct {
	UserID  int64     `json:"user_id"`
	Domain  string    `json:"domain,omitempty"`
	Action  string    `json:"action"`
	OK      bool      `json:"ok"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// AlertEvent is published when a tick dispatches alerts for a domain.
type AlertEvent struct {
	Domain   string    `json:"domain"`
	Events   int       `json:"events"`
	Watchers int       `json:"watchers"`
	At       time.Time `json:"at"`
}

// ReportEvent is published when a periodic report is handed to the notifier.
type ReportEvent struct {
	UserID  int64     `json:"user_id"`
	Domains int       `json:"domains"`
	At      time.Time `json:"at"`
}

// New creates an engine. bus and seen-store may be nil.
func New(cfg Config, provider EventProvider, notifier Notifier, log logx.Logger, bus eventbus.Bus, seen *seenTracker) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if seen == nil {
		seen = newSeenTracker(nil, log)
	}
	return &Engine{
		cfg:           cfg.withDefaults(),
		log:           log,
		provider:      provider,
		notifier:      notifier,
		bus:           bus,
		reg:           newRegistry(),
		seen:          seen,
		cron:          cron.New(),
		reportEntries: map[int64]cron.EntryID{},
	}
}

// Start begins firing timers. Entries registered before Start (via early
// Subscribe calls) start firing now.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.runCtx, e.runCancel = context.WithCancel(ctx)
	e.cron.Start()
	e.started = true
	e.log.Info("engine started", logx.Duration("tick_interval", e.cfg.TickInterval), logx.Bool("dedup_alerts", e.cfg.DedupAlerts))
}

// Stop cancels the global event timer and every per-user report timer, then
// waits for in-flight ticks to finish (bounded by ctx).
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	if e.monitorEntry != 0 {
		e.cron.Remove(e.monitorEntry)
		e.monitorEntry = 0
	}
	for userID, id := range e.reportEntries {
		e.cron.Remove(id)
		delete(e.reportEntries, userID)
	}
	cancel := e.runCancel
	e.runCancel = nil
	e.runCtx = nil
	e.started = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	stopCtx := e.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		// in-flight ticks keep draining in background
	}
	e.log.Info("engine stopped")
}

// Apply updates timer configuration at runtime. A tick-interval change
// re-arms the running event loop immediately.
func (e *Engine) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.cfg
	e.cfg = cfg
	if cfg.TickInterval != old.TickInterval && e.monitorEntry != 0 {
		e.cron.Remove(e.monitorEntry)
		e.monitorEntry = e.cron.Schedule(cron.Every(cfg.TickInterval), cron.FuncJob(e.runEventTick))
		e.log.Info("event loop re-armed", logx.Duration("tick_interval", cfg.TickInterval))
	}
}

// Subscribe adds a domain to the user's watch set, creating the record with
// default preferences on first use and merging any supplied overrides.
// Re-subscribing to an already-watched domain succeeds without duplication.
func (e *Engine) Subscribe(userID int64, domain string, patch *PreferencePatch) Result {
	domain = normalizeDomain(domain)
	if domain == "" {
		return e.finish("subscribe", userID, domain, failure("domain name is empty"))
	}
	if err := patch.validate(); err != nil {
		return e.finish("subscribe", userID, domain, failure(err.Error()))
	}

	e.mu.Lock()
	sub := e.reg.ensureUser(userID)
	patch.apply(&sub.prefs)
	e.reg.addDomain(userID, domain)
	e.startMonitoringLocked()
	e.armReportTimerLocked(userID)
	e.mu.Unlock()

	return e.finish("subscribe", userID, domain, success(fmt.Sprintf("Now watching %s", domain)))
}

// Unsubscribe removes a domain from the user's watch set. The user's report
// timer keeps running even if the set becomes empty (an empty report tick is
// a no-op).
func (e *Engine) Unsubscribe(userID int64, domain string) Result {
	domain = normalizeDomain(domain)

	e.mu.Lock()
	sub := e.reg.users[userID]
	if sub == nil {
		e.mu.Unlock()
		return e.finish("unsubscribe", userID, domain, failure("no active subscriptions"))
	}
	if _, ok := sub.domains[domain]; !ok {
		e.mu.Unlock()
		return e.finish("unsubscribe", userID, domain, failure(fmt.Sprintf("not subscribed to %s", domain)))
	}
	e.reg.removeDomain(userID, domain)
	e.mu.Unlock()

	return e.finish("unsubscribe", userID, domain, success(fmt.Sprintf("Stopped watching %s", domain)))
}

// UserSubscriptions returns a snapshot for the user. Unknown users get an
// empty domain list and default preferences; no record is created.
func (e *Engine) UserSubscriptions(userID int64) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := e.reg.users[userID]
	if sub == nil {
		return Subscription{Domains: []string{}, Preferences: DefaultPreferences()}
	}
	return Subscription{Domains: e.reg.userDomains(userID), Preferences: sub.prefs}
}

// UpdatePreferences merges a partial update into the user's preferences.
func (e *Engine) UpdatePreferences(userID int64, patch *PreferencePatch) Result {
	if err := patch.validate(); err != nil {
		return e.finish("update_prefs", userID, "", failure(err.Error()))
	}

	e.mu.Lock()
	sub := e.reg.users[userID]
	if sub == nil {
		e.mu.Unlock()
		return e.finish("update_prefs", userID, "", failure("no active subscriptions"))
	}
	if patch.apply(&sub.prefs) {
		e.armReportTimerLocked(userID)
	}
	e.mu.Unlock()

	return e.finish("update_prefs", userID, "", success("Preferences updated"))
}

// SetReportInterval stores a new report cadence and unconditionally re-arms
// the user's timer so the new cadence takes effect immediately. An invalid
// interval fails without mutating state.
func (e *Engine) SetReportInterval(userID int64, raw string) Result {
	iv, err := ParseReportInterval(raw)
	if err != nil {
		return e.finish("set_interval", userID, "", failure(err.Error()))
	}

	e.mu.Lock()
	sub := e.reg.users[userID]
	if sub == nil {
		e.mu.Unlock()
		return e.finish("set_interval", userID, "", failure("no active subscriptions"))
	}
	sub.prefs.ReportInterval = iv
	e.armReportTimerLocked(userID)
	e.mu.Unlock()

	return e.finish("set_interval", userID, "", success(fmt.Sprintf("Report interval set to %s", iv)))
}

// TogglePeriodicReports enables or disables the user's report timer.
func (e *Engine) TogglePeriodicReports(userID int64, enabled bool) Result {
	e.mu.Lock()
	sub := e.reg.users[userID]
	if sub == nil {
		e.mu.Unlock()
		return e.finish("toggle_reports", userID, "", failure("no active subscriptions"))
	}
	sub.prefs.PeriodicReports = enabled
	e.armReportTimerLocked(userID)
	e.mu.Unlock()

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return e.finish("toggle_reports", userID, "", success(fmt.Sprintf("Periodic reports %s", state)))
}

// Stats returns read-only aggregates. Safe to call concurrently with any
// other operation.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		TotalUsers:         len(e.reg.users),
		TotalDomains:       len(e.reg.watchers),
		IsMonitoring:       e.monitorEntry != 0,
		ActiveReportTimers: len(e.reportEntries),
	}
}

// StartEventMonitoring arms the global event-detection timer (idempotent).
// It is normally armed implicitly by the first Subscribe.
func (e *Engine) StartEventMonitoring() {
	e.mu.Lock()
	e.startMonitoringLocked()
	e.mu.Unlock()
}

// StopEventMonitoring disarms the global event-detection timer. Per-user
// report timers are unaffected.
func (e *Engine) StopEventMonitoring() {
	e.mu.Lock()
	if e.monitorEntry != 0 {
		e.cron.Remove(e.monitorEntry)
		e.monitorEntry = 0
		e.log.Info("event monitoring stopped")
	}
	e.mu.Unlock()
}

func (e *Engine) startMonitoringLocked() {
	if e.monitorEntry != 0 {
		return
	}
	e.monitorEntry = e.cron.Schedule(cron.Every(e.cfg.TickInterval), cron.FuncJob(e.runEventTick))
	e.log.Info("event monitoring started", logx.Duration("tick_interval", e.cfg.TickInterval))
}

// armReportTimerLocked cancels then recreates the user's report entry per
// current preferences. Cancel and recreate happen under the engine lock, so
// there is no window with two live timers for one user.
func (e *Engine) armReportTimerLocked(userID int64) {
	if id, ok := e.reportEntries[userID]; ok {
		e.cron.Remove(id)
		delete(e.reportEntries, userID)
	}
	sub := e.reg.users[userID]
	if sub == nil || !sub.prefs.PeriodicReports {
		return
	}
	d := sub.prefs.ReportInterval.Duration()
	if d <= 0 {
		// unreachable while the interval invariant holds; refuse to arm a
		// zero-period timer
		e.log.Warn("report timer not armed: invalid interval", logx.Int64("user_id", userID), logx.String("interval", string(sub.prefs.ReportInterval)))
		return
	}
	uid := userID
	e.reportEntries[userID] = e.cron.Schedule(cron.Every(d), cron.FuncJob(func() { e.runReportTick(uid) }))
}

// finish logs and publishes the outcome of a mutation, then returns it.
func (e *Engine) finish(action string, userID int64, domain string, res Result) Result {
	if res.OK {
		e.log.Debug("registry mutation", logx.String("action", action), logx.Int64("user_id", userID), logx.String("domain", domain), logx.String("msg", res.Message))
	} else {
		e.log.Debug("registry mutation rejected", logx.String("action", action), logx.Int64("user_id", userID), logx.String("domain", domain), logx.String("reason", res.Message))
	}
	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: "watch." + action, Data: SubscriptionEvent{
			UserID:  userID,
			Domain:  domain,
			Action:  action,
			OK:      res.OK,
			Message: res.Message,
			At:      time.Now(),
		}})
	}
	return res
}

// runContext is the context timer ticks use for provider calls.
func (e *Engine) runContext() context.Context {
	e.mu.Lock()
	ctx := e.runCtx
	e.mu.Unlock()
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

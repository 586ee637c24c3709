package watch

import (
	"context"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"domwatch/internal/eventbus"
	logx "domwatch/pkg/logx"
)

// runEventTick is the global event-detection callback. It iterates a
// snapshot of the watched domains taken at tick start; watcher sets are read
// fresh per domain so users who unsubscribed mid-tick are not alerted.
//
// The recover at the top keeps the recurring timer alive no matter what a
// tick body does.
func (e *Engine) runEventTick() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic in event tick", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	ctx := e.runContext()

	e.mu.Lock()
	domains := e.reg.domainList()
	conc := e.cfg.FetchConcurrency
	dedup := e.cfg.DedupAlerts
	e.mu.Unlock()

	if len(domains) == 0 {
		return
	}

	start := time.Now()
	g := new(errgroup.Group)
	g.SetLimit(conc)
	for _, domain := range domains {
		d := domain
		g.Go(func() error {
			e.checkDomain(ctx, d, dedup)
			return nil
		})
	}
	_ = g.Wait()
	e.log.Debug("event tick completed", logx.Int("domains", len(domains)), logx.Duration("took", time.Since(start)))
}

// checkDomain fetches one domain's current events and fans alerts out to its
// watchers. Failures degrade to zero events and never abort sibling domains.
func (e *Engine) checkDomain(ctx context.Context, domain string, dedup bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic checking domain", logx.String("domain", domain), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	events := e.fetchEvents(ctx, domain)
	if dedup {
		events = e.seen.filterNew(ctx, domain, events)
	}
	if len(events) == 0 {
		return
	}

	e.mu.Lock()
	prefs := e.reg.watcherPrefs(domain)
	e.mu.Unlock()
	if len(prefs) == 0 {
		return
	}

	for userID, p := range prefs {
		e.notifier.SendEventAlert(userID, domain, p, events)
	}

	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: "watch.alert", Data: AlertEvent{
			Domain:   domain,
			Events:   len(events),
			Watchers: len(prefs),
			At:       time.Now(),
		}})
	}
}

// fetchEvents flattens the provider's activities, listings and offers into
// DomainEvents. A failed fetch is logged and treated as empty for that kind.
func (e *Engine) fetchEvents(ctx context.Context, domain string) []DomainEvent {
	var events []DomainEvent

	acts, err := e.provider.DomainActivities(ctx, domain)
	if err != nil {
		e.log.Warn("activities fetch failed", logx.String("domain", domain), logx.Err(err))
	}
	for _, a := range acts {
		events = append(events, DomainEvent{
			Kind: EventActivity, ID: a.ID, Domain: domain, Type: a.Type,
			Price: a.Price, Currency: a.Currency, At: a.At,
		})
	}

	listings, err := e.provider.DomainListings(ctx, domain)
	if err != nil {
		e.log.Warn("listings fetch failed", logx.String("domain", domain), logx.Err(err))
	}
	for _, l := range listings {
		events = append(events, DomainEvent{
			Kind: EventListing, ID: l.ID, Domain: domain,
			Price: l.Price, Currency: l.Currency, At: l.At,
		})
	}

	offers, err := e.provider.DomainOffers(ctx, domain)
	if err != nil {
		e.log.Warn("offers fetch failed", logx.String("domain", domain), logx.Err(err))
	}
	for _, o := range offers {
		events = append(events, DomainEvent{
			Kind: EventOffer, ID: o.ID, Domain: domain,
			Price: o.Price, Currency: o.Currency, At: o.At,
		})
	}

	return events
}

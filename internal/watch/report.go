package watch

import (
	"context"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"domwatch/internal/eventbus"
	logx "domwatch/pkg/logx"
)

// Lightweight status score: base points for existing on-chain plus bounded
// points per activity/listing/offer, capped at 100. Deliberately simpler
// than the full weighted scoring heuristic, which lives outside the engine.
const (
	scoreBaseOnChain = 40
	scorePerActivity = 3
	scoreActivityCap = 30
	scorePerListing  = 5
	scoreListingCap  = 15
	scorePerOffer    = 5
	scoreOfferCap    = 15
	scoreMax         = 100
)

// runReportTick assembles and dispatches one user's periodic report. An
// empty domain set skips the report entirely (no notifier call).
func (e *Engine) runReportTick(userID int64) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic in report tick", logx.Int64("user_id", userID), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	ctx := e.runContext()

	e.mu.Lock()
	domains := e.reg.userDomains(userID)
	conc := e.cfg.FetchConcurrency
	e.mu.Unlock()

	if len(domains) == 0 {
		return
	}

	start := time.Now()
	entries := make([]ReportEntry, len(domains))
	g := new(errgroup.Group)
	g.SetLimit(conc)
	for i, domain := range domains {
		i, domain := i, domain
		g.Go(func() error {
			entries[i] = e.buildReportEntry(ctx, domain)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Domain < entries[j].Domain })

	report := Report{
		ID:          uuid.NewString(),
		UserID:      userID,
		GeneratedAt: time.Now(),
		Entries:     entries,
	}
	e.notifier.SendPeriodicReport(userID, report)

	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: "watch.report", Data: ReportEvent{
			UserID:  userID,
			Domains: len(entries),
			At:      report.GeneratedAt,
		}})
	}
	e.log.Debug("report dispatched", logx.Int64("user_id", userID), logx.Int("domains", len(entries)), logx.Duration("took", time.Since(start)))
}

// buildReportEntry computes one domain's status row. Provider failures
// degrade: the overall data fetch failing yields StatusError with the
// message embedded, a failed activity/listing/offer fetch just counts zero.
func (e *Engine) buildReportEntry(ctx context.Context, domain string) ReportEntry {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic building report entry", logx.String("domain", domain), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	entry := ReportEntry{Domain: domain}

	data, err := e.provider.DomainData(ctx, domain)
	if err != nil {
		e.log.Warn("domain data fetch failed", logx.String("domain", domain), logx.Err(err))
		entry.Status = StatusError
		entry.Error = err.Error()
		return entry
	}

	acts, err := e.provider.DomainActivities(ctx, domain)
	if err != nil {
		e.log.Warn("activities fetch failed", logx.String("domain", domain), logx.Err(err))
	}
	listings, err := e.provider.DomainListings(ctx, domain)
	if err != nil {
		e.log.Warn("listings fetch failed", logx.String("domain", domain), logx.Err(err))
	}
	offers, err := e.provider.DomainOffers(ctx, domain)
	if err != nil {
		e.log.Warn("offers fetch failed", logx.String("domain", domain), logx.Err(err))
	}

	entry.Activities = len(acts)
	entry.Listings = len(listings)
	entry.Offers = len(offers)
	entry.Score = statusScore(data, len(acts), len(listings), len(offers))

	if entry.Activities+entry.Listings+entry.Offers > 0 {
		entry.Status = StatusActive
	} else {
		entry.Status = StatusInactive
	}

	for _, a := range acts {
		if a.At.After(entry.LastActivity) {
			entry.LastActivity = a.At
		}
	}

	// Current price: prefer the registry's own figure, fall back to the
	// cheapest live listing.
	if data != nil && data.Price > 0 {
		entry.Price = data.Price
		entry.Currency = data.Currency
	} else {
		for _, l := range listings {
			if l.Price > 0 && (entry.Price == 0 || l.Price < entry.Price) {
				entry.Price = l.Price
				entry.Currency = l.Currency
			}
		}
	}

	return entry
}

func statusScore(data *DomainData, activities, listings, offers int) int {
	score := 0
	if data != nil {
		score += scoreBaseOnChain
	}
	score += bounded(activities*scorePerActivity, scoreActivityCap)
	score += bounded(listings*scorePerListing, scoreListingCap)
	score += bounded(offers*scorePerOffer, scoreOfferCap)
	if score > scoreMax {
		score = scoreMax
	}
	return score
}

func bounded(v, max int) int {
	if v > max {
		return max
	}
	return v
}

package watch

import (
	"context"
	"time"
)

// DomainData is the on-chain state of a domain as reported by the registry
// provider. A nil DomainData means the domain is not registered on-chain.
type DomainData struct {
	Name     string
	Owner    string
	Expiry   time.Time
	Price    float64
	Currency string
}

type EventKind string

const (
	EventActivity EventKind = "activity"
	EventListing  EventKind = "listing"
	EventOffer    EventKind = "offer"
)

// Activity is a single on-chain action (transfer, sale, renewal, ...).
type Activity struct {
	ID       string
	Type     string
	Price    float64
	Currency string
	At       time.Time
}

type Listing struct {
	ID       string
	Price    float64
	Currency string
	At       time.Time
}

type Offer struct {
	ID       string
	Price    float64
	Currency string
	At       time.Time
}

// DomainEvent is what the detection loop hands to the notifier: one
// activity/listing/offer flattened into a common shape.
type DomainEvent struct {
	Kind     EventKind
	ID       string
	Domain   string
	Type     string // activity type; empty for listings/offers
	Price    float64
	Currency string
	At       time.Time
}

// EventProvider supplies domain state from the external data providers.
// Every call is an I/O boundary; a failure is never fatal to the caller's
// tick, it just degrades that domain's result.
type EventProvider interface {
	DomainData(ctx context.Context, domain string) (*DomainData, error)
	DomainActivities(ctx context.Context, domain string) ([]Activity, error)
	DomainListings(ctx context.Context, domain string) ([]Listing, error)
	DomainOffers(ctx context.Context, domain string) ([]Offer, error)
}

// Notifier receives alerts and reports. Calls are fire-and-forget from the
// engine's perspective; delivery is the notifier's concern.
type Notifier interface {
	SendEventAlert(userID int64, domain string, prefs AlertPreferences, events []DomainEvent)
	SendPeriodicReport(userID int64, report Report)
}

type DomainStatus string

const (
	StatusActive   DomainStatus = "Active"
	StatusInactive DomainStatus = "Inactive"
	StatusError    DomainStatus = "Error"
)

// ReportEntry is one domain's row in a periodic report.
type ReportEntry struct {
	Domain       string
	Score        int
	Status       DomainStatus
	Activities   int
	Listings     int
	Offers       int
	LastActivity time.Time
	Price        float64
	Currency     string
	Error        string
}

type Report struct {
	ID          string
	UserID      int64
	GeneratedAt time.Time
	Entries     []ReportEntry
}

// Result is the outcome of a registry mutation. Failures are values with a
// short human-readable reason; the engine never panics past its API.
type Result struct {
	OK      bool
	Message string
}

func success(msg string) Result { return Result{OK: true, Message: msg} }
func failure(msg string) Result { return Result{OK: false, Message: msg} }

// Subscription is a read-only snapshot of one user's state.
type Subscription struct {
	Domains     []string
	Preferences AlertPreferences
}

// Stats is a read-only aggregate over the registry.
type Stats struct {
	TotalUsers         int
	TotalDomains       int
	IsMonitoring       bool
	ActiveReportTimers int
}

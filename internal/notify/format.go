package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"domwatch/internal/transport"
	"domwatch/internal/watch"
	logx "domwatch/pkg/logx"
)

// Message formatting for the watch engine's alerts and reports. Preference
// enforcement (alert-kind toggles, score threshold) happens here, at the
// notifier layer, not inside the engine.

const maxMessageLen = 3500

// SendEventAlert implements watch.Notifier. Fire-and-forget: a full queue or
// stopped pipeline is logged, never propagated to the engine.
func (s *Service) SendEventAlert(userID int64, domain string, prefs watch.AlertPreferences, events []watch.DomainEvent) {
	events = filterByPreferences(prefs, events)
	if len(events) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 %s: %d new event", domain, len(events))
	if len(events) != 1 {
		b.WriteString("s")
	}
	for _, ev := range events {
		b.WriteString("\n• ")
		b.WriteString(describeEvent(ev))
	}

	err := s.Notify(context.Background(), transport.Notification{
		Priority: 5,
		Target:   transport.ChatTarget{ChatID: userID},
		Text:     truncate(b.String(), maxMessageLen),
		Options:  &transport.SendOptions{DisablePreview: true},
	})
	if err != nil {
		s.log.Warn("event alert not delivered", logx.Int64("user_id", userID), logx.String("domain", domain), logx.Err(err))
	}
}

// SendPeriodicReport implements watch.Notifier.
func (s *Service) SendPeriodicReport(userID int64, report watch.Report) {
	if len(report.Entries) == 0 {
		return
	}

	prefs := s.prefsFor(userID)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Domain report (%d domain", len(report.Entries))
	if len(report.Entries) != 1 {
		b.WriteString("s")
	}
	b.WriteString(")")

	priority := 0
	for _, entry := range report.Entries {
		b.WriteString("\n")
		line, low := describeEntry(entry, prefs.ScoreThreshold)
		if low {
			priority = 7
		}
		b.WriteString(line)
	}

	err := s.Notify(context.Background(), transport.Notification{
		Priority: priority,
		Target:   transport.ChatTarget{ChatID: userID},
		Text:     truncate(b.String(), maxMessageLen),
		Options:  &transport.SendOptions{DisablePreview: true},
	})
	if err != nil {
		s.log.Warn("report not delivered", logx.Int64("user_id", userID), logx.Err(err))
	}
}

// prefsPort lets the service look up a user's current preferences without
// depending on the concrete engine.
type prefsPort interface {
	UserSubscriptions(userID int64) watch.Subscription
}

// SetPreferenceSource wires the engine in after construction (the engine
// needs the notifier first).
func (s *Service) SetPreferenceSource(p prefsPort) {
	s.mu.Lock()
	s.prefsSource = p
	s.mu.Unlock()
}

func (s *Service) prefsFor(userID int64) watch.AlertPreferences {
	s.mu.Lock()
	p := s.prefsSource
	s.mu.Unlock()
	if p == nil {
		return watch.DefaultPreferences()
	}
	return p.UserSubscriptions(userID).Preferences
}

func filterByPreferences(prefs watch.AlertPreferences, events []watch.DomainEvent) []watch.DomainEvent {
	out := events[:0:0]
	for _, ev := range events {
		if allowedByPreferences(prefs, ev) {
			out = append(out, ev)
		}
	}
	return out
}

func allowedByPreferences(prefs watch.AlertPreferences, ev watch.DomainEvent) bool {
	switch ev.Kind {
	case watch.EventListing, watch.EventOffer:
		return prefs.PriceAlerts
	case watch.EventActivity:
		switch strings.ToLower(ev.Type) {
		case "transfer":
			return prefs.TransferAlerts
		case "sale", "sold":
			return prefs.SaleAlerts
		case "expiration", "expired", "renewal":
			return prefs.ExpirationAlerts
		default:
			return true
		}
	default:
		return true
	}
}

func describeEvent(ev watch.DomainEvent) string {
	var b strings.Builder
	switch ev.Kind {
	case watch.EventActivity:
		if ev.Type != "" {
			b.WriteString(ev.Type)
		} else {
			b.WriteString("activity")
		}
	case watch.EventListing:
		b.WriteString("listed")
	case watch.EventOffer:
		b.WriteString("offer")
	}
	if ev.Price > 0 {
		fmt.Fprintf(&b, " at %s", formatPrice(ev.Price, ev.Currency))
	}
	if !ev.At.IsZero() {
		fmt.Fprintf(&b, " (%s)", ev.At.Format("Jan 2 15:04"))
	}
	return b.String()
}

// describeEntry renders one report row and reports whether the domain's
// score is below the user's threshold.
func describeEntry(entry watch.ReportEntry, threshold int) (string, bool) {
	if entry.Status == watch.StatusError {
		return fmt.Sprintf("%s - Error: %s", entry.Domain, entry.Error), false
	}

	var b strings.Builder
	low := entry.Score < threshold
	if low {
		b.WriteString("⚠️ ")
	}
	fmt.Fprintf(&b, "%s - score %d, %s", entry.Domain, entry.Score, entry.Status)
	if low {
		fmt.Fprintf(&b, " (below your %d threshold)", threshold)
	}
	fmt.Fprintf(&b, "; %d activities, %d listings, %d offers", entry.Activities, entry.Listings, entry.Offers)
	if entry.Price > 0 {
		fmt.Fprintf(&b, "; price %s", formatPrice(entry.Price, entry.Currency))
	}
	if !entry.LastActivity.IsZero() {
		fmt.Fprintf(&b, "; last activity %s", entry.LastActivity.Format(time.DateTime))
	}
	return b.String(), low
}

func formatPrice(price float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%g", price)
	}
	return fmt.Sprintf("%g %s", price, currency)
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}

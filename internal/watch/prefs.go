package watch

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReportInterval is one of the four fixed report cadences.
type ReportInterval string

const (
	Interval10Min ReportInterval = "10min"
	Interval30Min ReportInterval = "30min"
	Interval12H   ReportInterval = "12h"
	Interval1Day  ReportInterval = "1day"
)

var reportIntervals = map[ReportInterval]time.Duration{
	Interval10Min: 10 * time.Minute,
	Interval30Min: 30 * time.Minute,
	Interval12H:   12 * time.Hour,
	Interval1Day:  24 * time.Hour,
}

// ParseReportInterval validates a raw cadence string.
func ParseReportInterval(raw string) (ReportInterval, error) {
	iv := ReportInterval(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := reportIntervals[iv]; !ok {
		return "", fmt.Errorf("invalid report interval %q (valid: %s)", raw, strings.Join(ReportIntervalNames(), ", "))
	}
	return iv, nil
}

// ReportIntervalNames lists the valid cadences in stable order.
func ReportIntervalNames() []string {
	names := make([]string, 0, len(reportIntervals))
	for iv := range reportIntervals {
		names = append(names, string(iv))
	}
	sort.Strings(names)
	return names
}

// Duration returns the wall-clock cadence, or 0 for an unknown interval.
func (iv ReportInterval) Duration() time.Duration { return reportIntervals[iv] }

// AlertPreferences is one user's notification configuration.
type AlertPreferences struct {
	PriceAlerts      bool
	ExpirationAlerts bool
	SaleAlerts       bool
	TransferAlerts   bool

	// ScoreThreshold (0-100): alert when a domain's score falls below this.
	// Enforced by the notifier layer, not inside the engine.
	ScoreThreshold int

	ReportInterval  ReportInterval
	PeriodicReports bool
}

func DefaultPreferences() AlertPreferences {
	return AlertPreferences{
		PriceAlerts:      true,
		ExpirationAlerts: true,
		SaleAlerts:       true,
		TransferAlerts:   true,
		ScoreThreshold:   80,
		ReportInterval:   Interval30Min,
		PeriodicReports:  true,
	}
}

// PreferencePatch is a partial preference update. Nil fields keep the prior
// value; the patch is merged field-by-field under the engine lock.
type PreferencePatch struct {
	PriceAlerts      *bool
	ExpirationAlerts *bool
	SaleAlerts       *bool
	TransferAlerts   *bool
	ScoreThreshold   *int
	ReportInterval   *ReportInterval
	PeriodicReports  *bool
}

// validate rejects a patch before any state is touched.
func (p *PreferencePatch) validate() error {
	if p == nil {
		return nil
	}
	if p.ScoreThreshold != nil && (*p.ScoreThreshold < 0 || *p.ScoreThreshold > 100) {
		return fmt.Errorf("score threshold must be 0-100, got %d", *p.ScoreThreshold)
	}
	if p.ReportInterval != nil {
		if _, err := ParseReportInterval(string(*p.ReportInterval)); err != nil {
			return err
		}
	}
	return nil
}

// apply merges the patch into prefs and reports whether the report timer
// needs re-arming (cadence or enabled flag changed).
func (p *PreferencePatch) apply(prefs *AlertPreferences) (rearm bool) {
	if p == nil {
		return false
	}
	if p.PriceAlerts != nil {
		prefs.PriceAlerts = *p.PriceAlerts
	}
	if p.ExpirationAlerts != nil {
		prefs.ExpirationAlerts = *p.ExpirationAlerts
	}
	if p.SaleAlerts != nil {
		prefs.SaleAlerts = *p.SaleAlerts
	}
	if p.TransferAlerts != nil {
		prefs.TransferAlerts = *p.TransferAlerts
	}
	if p.ScoreThreshold != nil {
		prefs.ScoreThreshold = *p.ScoreThreshold
	}
	if p.ReportInterval != nil && *p.ReportInterval != prefs.ReportInterval {
		prefs.ReportInterval = *p.ReportInterval
		rearm = true
	}
	if p.PeriodicReports != nil && *p.PeriodicReports != prefs.PeriodicReports {
		prefs.PeriodicReports = *p.PeriodicReports
		rearm = true
	}
	return rearm
}

package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	kit "domwatch/internal/transport"
	"domwatch/internal/watch"
)

// Engine is the slice of the watch engine the command handlers need.
type Engine interface {
	Subscribe(userID int64, domain string, patch *watch.PreferencePatch) watch.Result
	Unsubscribe(userID int64, domain string) watch.Result
	UserSubscriptions(userID int64) watch.Subscription
	UpdatePreferences(userID int64, patch *watch.PreferencePatch) watch.Result
	SetReportInterval(userID int64, raw string) watch.Result
	TogglePeriodicReports(userID int64, enabled bool) watch.Result
	Stats() watch.Stats
	StartEventMonitoring()
	StopEventMonitoring()
}

// Commands builds the full command set for the router.
func Commands(eng Engine) []Command {
	return []Command{
		{
			Name:        "watch",
			Aliases:     []string{"w", "subscribe"},
			Description: "watch a domain for on-chain events",
			Usage:       "/watch <domain>",
			Handle:      handleWatch(eng),
		},
		{
			Name:        "unwatch",
			Aliases:     []string{"unsubscribe"},
			Description: "stop watching a domain",
			Usage:       "/unwatch <domain>",
			Handle:      handleUnwatch(eng),
		},
		{
			Name:        "list",
			Aliases:     []string{"ls"},
			Description: "list your watched domains",
			Usage:       "/list",
			Handle:      handleList(eng),
		},
		{
			Name:        "prefs",
			Aliases:     []string{"settings"},
			Description: "show your alert preferences",
			Usage:       "/prefs",
			Handle:      handlePrefs(eng),
		},
		{
			Name:        "alerts",
			Description: "toggle an alert kind",
			Usage:       "/alerts <price|expiration|sale|transfer> <on|off>",
			Handle:      handleAlerts(eng),
		},
		{
			Name:        "threshold",
			Description: "set the score threshold (0-100)",
			Usage:       "/threshold <n>",
			Handle:      handleThreshold(eng),
		},
		{
			Name:        "interval",
			Description: "set the periodic report cadence",
			Usage:       "/interval <" + strings.Join(watch.ReportIntervalNames(), "|") + ">",
			Handle:      handleInterval(eng),
		},
		{
			Name:        "reports",
			Description: "enable or disable periodic reports",
			Usage:       "/reports <on|off>",
			Handle:      handleReports(eng),
		},
		{
			Name:        "stats",
			Description: "show engine statistics",
			Usage:       "/stats",
			Access:      AccessAdminOnly,
			Handle:      handleStats(eng),
		},
		{
			Name:        "monitor",
			Description: "start or stop global event monitoring",
			Usage:       "/monitor <on|off>",
			Access:      AccessAdminOnly,
			Handle:      handleMonitor(eng),
		},
	}
}

func reply(ctx context.Context, req *Request, text string) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

func replyResult(ctx context.Context, req *Request, res watch.Result) error {
	text := res.Message
	if !res.OK {
		text = "⚠️ " + text
	}
	return reply(ctx, req, text)
}

func handleWatch(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) != 1 {
			return reply(ctx, req, "usage: /watch <domain>")
		}
		return replyResult(ctx, req, eng.Subscribe(req.FromID, req.Args[0], nil))
	}
}

func handleUnwatch(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) != 1 {
			return reply(ctx, req, "usage: /unwatch <domain>")
		}
		return replyResult(ctx, req, eng.Unsubscribe(req.FromID, req.Args[0]))
	}
}

func handleList(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		sub := eng.UserSubscriptions(req.FromID)
		if len(sub.Domains) == 0 {
			return reply(ctx, req, "You are not watching any domains. /watch <domain> to start.")
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Watching %d domain", len(sub.Domains))
		if len(sub.Domains) != 1 {
			b.WriteString("s")
		}
		b.WriteString(":")
		for _, d := range sub.Domains {
			b.WriteString("\n• " + d)
		}
		return reply(ctx, req, b.String())
	}
}

func handlePrefs(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		p := eng.UserSubscriptions(req.FromID).Preferences
		var b strings.Builder
		b.WriteString("Your preferences:")
		fmt.Fprintf(&b, "\nprice alerts: %s", onOff(p.PriceAlerts))
		fmt.Fprintf(&b, "\nexpiration alerts: %s", onOff(p.ExpirationAlerts))
		fmt.Fprintf(&b, "\nsale alerts: %s", onOff(p.SaleAlerts))
		fmt.Fprintf(&b, "\ntransfer alerts: %s", onOff(p.TransferAlerts))
		fmt.Fprintf(&b, "\nscore threshold: %d", p.ScoreThreshold)
		fmt.Fprintf(&b, "\nreport interval: %s", p.ReportInterval)
		fmt.Fprintf(&b, "\nperiodic reports: %s", onOff(p.PeriodicReports))
		return reply(ctx, req, b.String())
	}
}

func handleAlerts(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		const usage = "usage: /alerts <price|expiration|sale|transfer> <on|off>"
		if len(req.Args) != 2 {
			return reply(ctx, req, usage)
		}
		enabled, err := parseOnOff(req.Args[1])
		if err != nil {
			return reply(ctx, req, usage)
		}
		var patch watch.PreferencePatch
		switch strings.ToLower(req.Args[0]) {
		case "price":
			patch.PriceAlerts = &enabled
		case "expiration", "expiry":
			patch.ExpirationAlerts = &enabled
		case "sale":
			patch.SaleAlerts = &enabled
		case "transfer":
			patch.TransferAlerts = &enabled
		default:
			return reply(ctx, req, usage)
		}
		return replyResult(ctx, req, eng.UpdatePreferences(req.FromID, &patch))
	}
}

func handleThreshold(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) != 1 {
			return reply(ctx, req, "usage: /threshold <0-100>")
		}
		n, err := strconv.Atoi(req.Args[0])
		if err != nil {
			return reply(ctx, req, "usage: /threshold <0-100>")
		}
		patch := watch.PreferencePatch{ScoreThreshold: &n}
		return replyResult(ctx, req, eng.UpdatePreferences(req.FromID, &patch))
	}
}

func handleInterval(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) != 1 {
			return reply(ctx, req, "usage: /interval <"+strings.Join(watch.ReportIntervalNames(), "|")+">")
		}
		return replyResult(ctx, req, eng.SetReportInterval(req.FromID, req.Args[0]))
	}
}

func handleReports(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) != 1 {
			return reply(ctx, req, "usage: /reports <on|off>")
		}
		enabled, err := parseOnOff(req.Args[0])
		if err != nil {
			return reply(ctx, req, "usage: /reports <on|off>")
		}
		return replyResult(ctx, req, eng.TogglePeriodicReports(req.FromID, enabled))
	}
}

func handleStats(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		st := eng.Stats()
		var b strings.Builder
		b.WriteString("Engine stats:")
		fmt.Fprintf(&b, "\nusers: %d", st.TotalUsers)
		fmt.Fprintf(&b, "\ndomains watched: %d", st.TotalDomains)
		fmt.Fprintf(&b, "\nevent monitoring: %s", onOff(st.IsMonitoring))
		fmt.Fprintf(&b, "\nactive report timers: %d", st.ActiveReportTimers)
		return reply(ctx, req, b.String())
	}
}

func handleMonitor(eng Engine) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) != 1 {
			return reply(ctx, req, "usage: /monitor <on|off>")
		}
		enabled, err := parseOnOff(req.Args[0])
		if err != nil {
			return reply(ctx, req, "usage: /monitor <on|off>")
		}
		if enabled {
			eng.StartEventMonitoring()
			return reply(ctx, req, "Event monitoring started")
		}
		eng.StopEventMonitoring()
		return reply(ctx, req, "Event monitoring stopped")
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

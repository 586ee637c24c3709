// Package bot routes incoming chat commands to the watch engine.
package bot

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "domwatch/internal/runtime/supervisor"
	kit "domwatch/internal/transport"
	logx "domwatch/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessAdminOnly
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access

	Timeout time.Duration // optional per-command override
	Handle  HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger
}

type Router struct {
	mu       sync.RWMutex
	commands map[string]*Command // name and aliases -> command
	ordered  []*Command          // registration order, for /help
	admins   []int64

	log     logx.Logger
	adapter kit.Adapter

	jobs chan func()
}

func NewRouter(log logx.Logger, adapter kit.Adapter, admins []int64) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		commands: map[string]*Command{},
		admins:   append([]int64(nil), admins...),
		log:      log.With(logx.String("comp", "bot")),
		adapter:  adapter,
		jobs:     make(chan func(), 256),
	}
}

// SetAdmins updates the admin list used for AccessAdminOnly checks. Safe to
// call during hot-reload.
func (r *Router) SetAdmins(admins []int64) {
	cp := append([]int64(nil), admins...)
	r.mu.Lock()
	r.admins = cp
	r.mu.Unlock()
}

func (r *Router) adminsSnapshot() []int64 {
	r.mu.RLock()
	cp := append([]int64(nil), r.admins...)
	r.mu.RUnlock()
	return cp
}

// Register installs the command set, replacing any previous registration.
// A /help command is always injected.
func (r *Router) Register(cmds []Command) {
	cmds = append(cmds, Command{
		Name:        "help",
		Aliases:     []string{"start"},
		Description: "show available commands",
		Usage:       "/help",
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Adapter.SendText(ctx, req.Chat, r.helpText(), &kit.SendOptions{DisablePreview: true})
			return err
		},
	})

	byName := map[string]*Command{}
	ordered := make([]*Command, 0, len(cmds))
	for i := range cmds {
		c := cmds[i]
		name := strings.TrimSpace(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		cc := &c
		ordered = append(ordered, cc)
		byName[name] = cc
		for _, a := range c.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			if _, exists := byName[a]; !exists {
				byName[a] = cc
			}
		}
	}

	r.mu.Lock()
	r.commands = byName
	r.ordered = ordered
	r.mu.Unlock()
}

// DispatchLoop consumes updates until ctx is cancelled or the channel
// closes. Command handlers run on a bounded worker pool so one slow handler
// cannot stall the update stream.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}

	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log),
		rtsup.WithCancelOnError(false),
	)

	r.log.Info("command dispatcher started", logx.Int("workers", workers))

	var closeOnce sync.Once
	closeJobs := func() { closeOnce.Do(func() { close(r.jobs) }) }

	for i := 0; i < workers; i++ {
		idx := i
		sup.Go0("command.worker."+strconv.Itoa(idx), func(c context.Context) {
			for {
				select {
				case <-c.Done():
					return
				case job, ok := <-r.jobs:
					if !ok {
						return
					}
					// A job should never panic (middleware already catches),
					// but keep the worker alive if it happens.
					func() {
						defer func() {
							if rec := recover(); rec != nil {
								r.log.Error("panic in command job", logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		})
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				r.log.Info("updates channel closed")
				return nil
			}
			r.routeMessage(ctx, up)
		}
	}
}

func (r *Router) routeMessage(root context.Context, up kit.Update) {
	if up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	parts := tokenize(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	// strip bot mention: /watch@somebot
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	args := parts[1:]

	r.mu.RLock()
	cmd := r.commands[word]
	r.mu.RUnlock()

	chat := kit.ChatTarget{ChatID: msg.ChatID}
	if cmd == nil {
		// In groups, stay quiet about commands meant for other bots.
		if !msg.IsGroup {
			_, _ = r.adapter.SendText(root, chat, "Unknown command. Try /help", nil)
		}
		return
	}

	admins := r.adminsSnapshot()
	if cmd.Access == AccessAdminOnly && !isAdmin(msg.FromID, admins) {
		_, _ = r.adapter.SendText(root, chat, "unauthorized", nil)
		return
	}

	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Adapter: r.adapter,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	final := Chain(
		cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(cmd.Timeout),
	)

	select {
	case r.jobs <- func() { _ = final(root, req) }:
	default:
		_, _ = r.adapter.SendText(root, chat, "busy, try again", nil)
	}
}

func (r *Router) helpText() string {
	r.mu.RLock()
	ordered := r.ordered
	r.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Commands:")
	for _, c := range ordered {
		b.WriteString("\n")
		if c.Usage != "" {
			b.WriteString(c.Usage)
		} else {
			b.WriteString("/" + c.Name)
		}
		if c.Description != "" {
			b.WriteString(" - " + c.Description)
		}
	}
	return b.String()
}

func isAdmin(id int64, admins []int64) bool {
	for _, a := range admins {
		if a == id {
			return true
		}
	}
	return false
}

// Package router dispatches chat updates to command and callback handlers
// through a supervised worker pool.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"irbridge/internal/runtime/supervisor"
	kit "irbridge/internal/transport"
	logx "irbridge/pkg/logx"
)

const (
	defaultQueueSize  = 256
	defaultPendingTTL = 5 * time.Minute
)

type Options struct {
	// Workers defaults to NumCPU, at least 2.
	Workers   int
	QueueSize int
	// Timeout applies to commands that do not set their own.
	Timeout time.Duration
	// Sanitize is applied to message text before routing.
	Sanitize func(string) string
	// PendingTTL bounds how long an Expect handler waits for input.
	PendingTTL time.Duration
	// Supervisor, when set, owns the background menu update.
	Supervisor *supervisor.Supervisor
	// OnReject is called when an access check fails.
	OnReject func(req *Request, need Access)
}

type CommandManager struct {
	mu    sync.RWMutex
	cmds  map[string]*Command // route and aliases
	order []*Command

	cbMu      sync.RWMutex
	callbacks map[string]map[string]CallbackRoute // group -> action -> route

	auth    Authorizer
	log     logx.Logger
	adapter kit.Adapter
	opts    Options

	pendMu  sync.Mutex
	pending map[pendingKey]pendingInput

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	jobs chan func()
}

type pendingKey struct {
	chatID int64
	fromID int64
}

type pendingInput struct {
	fn      HandlerFunc
	expires time.Time
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, auth Authorizer, opts Options) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = defaultPendingTTL
	}
	return &CommandManager{
		cmds:      map[string]*Command{},
		callbacks: map[string]map[string]CallbackRoute{},
		auth:      auth,
		log:       log,
		adapter:   adapter,
		opts:      opts,
		pending:   map[pendingKey]pendingInput{},
		jobs:      make(chan func(), opts.QueueSize),
	}
}

// Supervisor returns the worker pool supervisor, nil when not running.
func (m *CommandManager) Supervisor() *supervisor.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

func (m *CommandManager) setSupervisor(sup *supervisor.Supervisor, running bool) {
	m.runMu.Lock()
	m.sup = sup
	m.running = running
	m.runMu.Unlock()
}

// tryEnqueue never blocks and tolerates a closed jobs channel.
func (m *CommandManager) tryEnqueue(fn func()) (ok bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// SetRegistry replaces the command and callback tables. A help command is
// always added.
func (m *CommandManager) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	helper := Command{
		Route:       "help",
		Aliases:     []string{"h"},
		Description: "show available commands",
		Usage:       "/help [command]",
		Access:      AccessPublic,
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyOpt(ctx, m.helpText(strings.Fields(req.Args)), &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
		},
	}
	cmds = append(cmds, helper)

	table := map[string]*Command{}
	order := make([]*Command, 0, len(cmds))
	for i := range cmds {
		c := cmds[i]
		route := normalizeWord(c.Route)
		if route == "" || c.Handle == nil {
			continue
		}
		c.Route = route
		if _, dup := table[route]; dup {
			m.log.Warn("duplicate command route ignored", logx.String("route", route))
			continue
		}
		cc := &c
		table[route] = cc
		order = append(order, cc)
	}
	// Aliases never shadow a real route.
	for _, c := range order {
		for _, a := range c.Aliases {
			a = normalizeWord(a)
			if a == "" || strings.ContainsAny(a, " \t\n") {
				continue
			}
			if _, exists := table[a]; !exists {
				table[a] = c
			}
		}
	}

	cb := map[string]map[string]CallbackRoute{}
	for _, r := range cbs {
		g := strings.TrimSpace(r.Group)
		a := strings.TrimSpace(r.Action)
		if g == "" || a == "" || r.Handle == nil {
			continue
		}
		if cb[g] == nil {
			cb[g] = map[string]CallbackRoute{}
		}
		cb[g][a] = r
	}

	m.mu.Lock()
	m.cmds = table
	m.order = order
	m.mu.Unlock()

	m.cbMu.Lock()
	m.callbacks = cb
	m.cbMu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		menu := buildMenuCommands(order)
		run := func(parent context.Context) {
			ctx, cancel := context.WithTimeout(parent, 10*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(ctx, menu); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
		}
		if m.opts.Supervisor != nil {
			m.opts.Supervisor.Go0("telegram.menu.update", run)
		} else {
			go run(context.Background())
		}
	}
}

func (m *CommandManager) workers() int {
	if m.opts.Workers > 0 {
		return m.opts.Workers
	}
	return max(2, runtime.NumCPU())
}

// DispatchLoop consumes updates until ctx ends or the channel closes.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := m.workers()

	sup := supervisor.New(ctx,
		supervisor.WithLogger(m.log.With(logx.String("comp", "telegram.router"))),
		supervisor.WithCancelOnError(false),
	)
	m.setSupervisor(sup, true)
	m.log.Info("command dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(m.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() {
			m.setSupervisor(sup, false)
			close(m.jobs)
		})
	}

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-m.jobs:
					if !ok {
						return nil
					}
					if job == nil {
						continue
					}
					func() {
						defer func() {
							if r := recover(); r != nil {
								m.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		}, supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		m.setSupervisor(nil, false)
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.routeUpdate(ctx, up)
		}
	}
}

func (m *CommandManager) routeUpdate(root context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		m.routeMessage(root, up)
	case kit.UpdateCallback:
		m.routeCallback(root, up)
	}
}

func (m *CommandManager) routeMessage(root context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := msg.Text
	if m.opts.Sanitize != nil {
		text = m.opts.Sanitize(text)
	}
	text = strings.TrimSpace(text)
	chat := kit.ChatTarget{ChatID: msg.ChatID}

	if !strings.HasPrefix(text, "/") {
		fn, ok := m.takePending(msg.ChatID, msg.FromID)
		if !ok {
			return
		}
		req := m.newRequest(up, chat, msg.FromID, "input")
		req.Text, req.Args = text, text
		m.enqueue(root, req, AccessPublic, m.opts.Timeout, fn)
		return
	}
	m.dropPending(msg.ChatID, msg.FromID)

	word, args := splitCommand(text)
	m.mu.RLock()
	cmd, ok := m.cmds[word]
	m.mu.RUnlock()
	if !ok {
		_, _ = m.adapter.SendText(root, chat, "command "+word+" not found", nil)
		return
	}

	req := m.newRequest(up, chat, msg.FromID, cmd.Route)
	req.Text, req.Args = text, args
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.opts.Timeout
	}
	m.enqueue(root, req, cmd.Access, timeout, cmd.Handle)
}

func (m *CommandManager) routeCallback(root context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return
	}
	group, action := parts[0], parts[1]
	payload := ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	m.cbMu.RLock()
	route, ok := m.callbacks[group][action]
	m.cbMu.RUnlock()
	if !ok {
		_ = m.adapter.AnswerCallback(root, cb.ID, "")
		return
	}

	req := m.newRequest(up, kit.ChatTarget{ChatID: cb.ChatID}, cb.FromID, "cb:"+group+":"+action)
	req.Payload = payload
	h := func(ctx context.Context, r *Request) error { return route.Handle(ctx, r, payload) }
	timeout := route.Timeout
	if timeout <= 0 {
		timeout = m.opts.Timeout
	}
	if !m.enqueue(root, req, route.Access, timeout, h) {
		_ = m.adapter.AnswerCallback(root, cb.ID, "busy")
	}
}

func (m *CommandManager) newRequest(up kit.Update, chat kit.ChatTarget, fromID int64, command string) *Request {
	rid := newReqID()
	return &Request{
		Update:  up,
		Chat:    chat,
		FromID:  fromID,
		Command: command,
		ReqID:   rid,
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int64("from_id", fromID),
			logx.String("cmd", command),
		),
		m: m,
	}
}

// enqueue schedules h on the worker pool. The access check runs on the
// worker since it may read persisted state.
func (m *CommandManager) enqueue(root context.Context, req *Request, need Access, timeout time.Duration, h HandlerFunc) bool {
	final := wrap(h, timeout)
	cb := req.Callback()
	ok := m.tryEnqueue(func() {
		if reason, allowed := m.allow(root, req, need); !allowed {
			req.Logger.Warn("access denied", logx.String("need", need.String()))
			if m.opts.OnReject != nil {
				m.opts.OnReject(req, need)
			}
			if cb != nil {
				_ = m.adapter.AnswerCallback(root, cb.ID, reason)
				return
			}
			_ = req.Reply(root, reason)
			return
		}
		_ = final(root, req)
		if cb != nil {
			_ = m.adapter.AnswerCallback(root, cb.ID, "")
		}
	})
	if !ok && cb == nil {
		_, _ = m.adapter.SendText(root, req.Chat, MsgBusy, nil)
	}
	return ok
}

func (m *CommandManager) allow(ctx context.Context, req *Request, need Access) (string, bool) {
	switch need {
	case AccessPublic:
		return "", true
	case AccessAdmin:
		if m.auth != nil && m.auth.RequireAdmin(req.Chat.ChatID) {
			return "", true
		}
		return MsgAdminOnly, false
	default:
		if m.auth != nil && m.auth.IsAuthorized(ctx, req.Chat.ChatID) {
			return "", true
		}
		return MsgAuthRequired, false
	}
}

func (m *CommandManager) expect(chatID, fromID int64, fn HandlerFunc) {
	now := time.Now()
	m.pendMu.Lock()
	defer m.pendMu.Unlock()
	for k, p := range m.pending {
		if now.After(p.expires) {
			delete(m.pending, k)
		}
	}
	m.pending[pendingKey{chatID, fromID}] = pendingInput{fn: fn, expires: now.Add(m.opts.PendingTTL)}
}

func (m *CommandManager) takePending(chatID, fromID int64) (HandlerFunc, bool) {
	k := pendingKey{chatID, fromID}
	m.pendMu.Lock()
	defer m.pendMu.Unlock()
	p, ok := m.pending[k]
	if !ok {
		return nil, false
	}
	delete(m.pending, k)
	if time.Now().After(p.expires) {
		return nil, false
	}
	return p.fn, true
}

func (m *CommandManager) dropPending(chatID, fromID int64) {
	m.pendMu.Lock()
	delete(m.pending, pendingKey{chatID, fromID})
	m.pendMu.Unlock()
}

// splitCommand returns the normalized command word and the rest of the text
// with its line structure intact.
func splitCommand(text string) (word, rest string) {
	i := strings.IndexAny(text, " \t\r\n")
	if i < 0 {
		return normalizeWord(text), ""
	}
	return normalizeWord(text[:i]), strings.TrimSpace(text[i:])
}

// normalizeWord drops a leading "/" and a trailing "@botname", lowercased.
func normalizeWord(w string) string {
	w = strings.TrimPrefix(strings.TrimSpace(w), "/")
	if i := strings.IndexByte(w, '@'); i >= 0 {
		w = w[:i]
	}
	return strings.ToLower(w)
}

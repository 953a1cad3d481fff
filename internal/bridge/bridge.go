// Package bridge turns chat commands into device records and device replies
// into chat messages.
package bridge

import (
	"context"
	"errors"
	"time"

	"irbridge/internal/access"
	"irbridge/internal/alias"
	"irbridge/internal/ircmd"
	"irbridge/internal/state"
	"irbridge/internal/storage"
	kit "irbridge/internal/transport"
	"irbridge/internal/transport/telegram/router"
	logx "irbridge/pkg/logx"
	"irbridge/pkg/mqtt"
	"irbridge/pkg/tgui"
)

// StateStore is the subset of state.Manager the bridge uses.
type StateStore interface {
	Snapshot(ctx context.Context) storage.State
	Update(ctx context.Context, fn func(st *storage.State) bool) (storage.State, error)
	Devices() []string
	Admin() int64
}

// DeviceStatus reports MQTT connection state. *mqtt.Hub satisfies it.
type DeviceStatus interface {
	Status(device string) (mqtt.Status, bool)
}

type Deps struct {
	State      StateStore
	Gate       *access.Gate
	Translator *ircmd.Translator
	Publisher  Publisher
	Sender     Sender
	Status     DeviceStatus
	Auditor    Auditor
	Observer   Observer
	Tokens     *tgui.TokenStore
	Logger     logx.Logger
	// Now is the clock for humanized times; defaults to time.Now.
	Now func() time.Time
}

type Bridge struct {
	state      StateStore
	gate       *access.Gate
	translator *ircmd.Translator
	aliases    *alias.Store
	expander   *alias.Expander
	pipe       *Pipeline
	out        Sender
	status     DeviceStatus
	tokens     *tgui.TokenStore
	log        logx.Logger
	now        func() time.Time
}

func New(d Deps) *Bridge {
	log := d.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "bridge"))
	if d.Translator == nil {
		d.Translator = ircmd.NewTranslator()
	}
	if d.Tokens == nil {
		d.Tokens = tgui.NewTokenStore(0, 0)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	store := alias.NewStore(d.State)
	b := &Bridge{
		state:      d.State,
		gate:       d.Gate,
		translator: d.Translator,
		aliases:    store,
		expander:   alias.NewExpander(store, d.Translator),
		out:        d.Sender,
		status:     d.Status,
		tokens:     d.Tokens,
		log:        log,
		now:        d.Now,
	}
	b.pipe = NewPipeline(PipelineConfig{
		Auth:      d.Gate,
		Current:   b.currentDevice,
		Publisher: d.Publisher,
		Sender:    d.Sender,
		Auditor:   d.Auditor,
		Observer:  d.Observer,
		Logger:    log,
	})
	return b
}

// Pipeline exposes the command pipeline.
func (b *Bridge) Pipeline() *Pipeline { return b.pipe }

func (b *Bridge) currentDevice(ctx context.Context) string {
	return b.state.Snapshot(ctx).Device
}

// Commands is the chat command table.
func (b *Bridge) Commands() []router.Command {
	cmds := b.recordCommands()
	return append(cmds,
		router.Command{
			Route:       "device",
			Description: "switch or list devices",
			Usage:       "/device [name]",
			Access:      router.AccessAuthorized,
			Handle:      b.handleDevice,
		},
		router.Command{
			Route:       "usermod",
			Description: "add or remove users",
			Usage:       "/usermod 123 -456\n(a run preceded by - removes the id)",
			Access:      router.AccessAdmin,
			Handle:      b.handleUsermod,
		},
		router.Command{
			Route:       "preference",
			Description: "edit aliases and run them",
			Usage:       "/preference [alias...]\n+name\ncommand args\n-oldname",
			Access:      router.AccessAuthorized,
			Handle:      b.handlePreference,
		},
		router.Command{
			Route:       "alias",
			Description: "alias menu",
			Usage:       "/alias",
			Access:      router.AccessAuthorized,
			Handle:      b.handleAliasMenu,
		},
		router.Command{
			Route:       "auth",
			Description: "request access from the administrator",
			Usage:       "/auth",
			Access:      router.AccessPublic,
			Handle:      b.handleAuth,
		},
		router.Command{
			Route:       "start",
			Description: "greeting",
			Access:      router.AccessPublic,
			Hidden:      true,
			Handle:      b.handleStart,
		},
	)
}

// Callbacks is the inline button table.
func (b *Bridge) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Group: "task", Action: "id", Access: router.AccessPublic, Handle: b.terminateCallback(ircmd.KindTerminate)},
		{Group: "task", Action: "name", Access: router.AccessPublic, Handle: b.terminateCallback(ircmd.KindTerminateByName)},
		{Group: "alias", Action: "menu", Handle: b.aliasMenuCallback},
		{Group: "alias", Action: "exc", Handle: b.aliasExecCallback},
		{Group: "alias", Action: "del", Handle: b.aliasDeleteCallback},
		{Group: "alias", Action: "add", Handle: b.aliasAddCallback},
	}
}

func (b *Bridge) send(ctx context.Context, chatID int64, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{DisablePreview: true}
	}
	ref, err := b.out.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt)
	if err != nil {
		b.log.Warn("send failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
	return ref, err
}

// persistNotice reports a failed state write to the requester. The change
// stays applied in memory.
func (b *Bridge) persistNotice(ctx context.Context, chatID int64, err error) {
	var pe *state.PersistenceError
	if errors.As(err, &pe) {
		b.log.Error("state not persisted", logx.Err(err))
		_, _ = b.send(ctx, chatID, "warning: change applied but not saved: "+pe.Err.Error(), nil)
		return
	}
	b.log.Error("state update failed", logx.Err(err))
	_, _ = b.send(ctx, chatID, "error: "+err.Error(), nil)
}

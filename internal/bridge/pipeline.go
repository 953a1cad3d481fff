package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"irbridge/internal/access"
	"irbridge/internal/alias"
	"irbridge/internal/ircmd"
	"irbridge/internal/storage"
	kit "irbridge/internal/transport"
	logx "irbridge/pkg/logx"
)

// State is where an invocation ended.
type State int

const (
	StateRejected State = iota + 1
	StateValidationFailed
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateRejected:
		return "rejected"
	case StateValidationFailed:
		return "validation-failed"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Invocation is one inbound command line.
type Invocation struct {
	ChatID int64
	FromID int64
	Text   string
}

// Item is one output of translation: a record to publish, or a notice to
// relay as-is when Notice is non-empty.
type Item struct {
	Record ircmd.Record
	Notice string
}

// TranslateFunc turns sanitized text into items for device. A returned
// error ends the invocation as validation-failed.
type TranslateFunc func(ctx context.Context, device string, requester int64, text string) ([]Item, error)

type Result struct {
	State     State
	Device    string
	Published int
	Failed    int
	Err       error
}

type Authorizer interface {
	IsAuthorized(ctx context.Context, id int64) bool
}

type Publisher interface {
	Publish(ctx context.Context, device string, payload []byte) error
}

// Sender is the reply side of the chat adapter.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error
}

// Auditor records published records. storage.Store satisfies it.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Observer receives pipeline counters. internal/metrics implements it.
type Observer interface {
	Published(device, cmd string)
	PublishFailed(device string)
	TranslationFailed(reason string)
	AuthRejected()
}

// Pipeline runs sanitize, authorize, translate, publish and reply in that
// order, stopping at the first stage that rejects.
type Pipeline struct {
	auth    Authorizer
	current func(ctx context.Context) string
	pub     Publisher
	out     Sender
	audit   Auditor
	obs     Observer
	log     logx.Logger
}

type PipelineConfig struct {
	Auth Authorizer
	// Current returns the selected device name.
	Current   func(ctx context.Context) string
	Publisher Publisher
	Sender    Sender
	Auditor   Auditor
	Observer  Observer
	Logger    logx.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	log := cfg.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{
		auth:    cfg.Auth,
		current: cfg.Current,
		pub:     cfg.Publisher,
		out:     cfg.Sender,
		audit:   cfg.Auditor,
		obs:     cfg.Observer,
		log:     log.With(logx.String("comp", "bridge.pipeline")),
	}
}

func (p *Pipeline) Run(ctx context.Context, inv Invocation, translate TranslateFunc) Result {
	text := Sanitize(inv.Text)
	log := p.log.With(logx.Int64("chat_id", inv.ChatID), logx.Int64("from_id", inv.FromID))

	if p.auth == nil || !p.auth.IsAuthorized(ctx, inv.ChatID) {
		log.Warn("unauthorized command")
		if p.obs != nil {
			p.obs.AuthRejected()
		}
		p.reply(ctx, inv.ChatID, access.MsgAuthRequired)
		return Result{State: StateRejected, Err: access.ErrUnauthorized}
	}

	device := ""
	if p.current != nil {
		device = p.current(ctx)
	}
	items, err := translate(ctx, device, inv.ChatID, text)
	if err != nil {
		log.Debug("translation failed", logx.Err(err))
		if p.obs != nil {
			p.obs.TranslationFailed(failureReason(err))
		}
		p.reply(ctx, inv.ChatID, err.Error())
		return Result{State: StateValidationFailed, Device: device, Err: err}
	}

	res := Result{State: StateCompleted, Device: device}
	for _, it := range items {
		if it.Notice != "" {
			p.reply(ctx, inv.ChatID, it.Notice)
			continue
		}
		if err := p.publish(ctx, device, inv, it.Record); err != nil {
			log.Warn("publish failed", logx.String("device", device), logx.String("cmd", it.Record.Kind.String()), logx.Err(err))
			res.Failed++
			p.reply(ctx, inv.ChatID, "publish failed: "+err.Error())
			continue
		}
		res.Published++
		p.reply(ctx, inv.ChatID, it.Record.Masked().String()+" is transmitted")
	}
	return res
}

func (p *Pipeline) publish(ctx context.Context, device string, inv Invocation, rec ircmd.Record) error {
	payload, _ := rec.MarshalJSON()
	var err error
	if p.pub == nil {
		err = errors.New("no publisher")
	} else {
		err = p.pub.Publish(ctx, device, payload)
	}

	if p.obs != nil {
		if err != nil {
			p.obs.PublishFailed(device)
		} else {
			p.obs.Published(device, rec.Kind.String())
		}
	}
	if p.audit != nil {
		e := storage.AuditEntry{
			At:      time.Now().UTC(),
			ChatID:  inv.ChatID,
			FromID:  inv.FromID,
			Device:  device,
			Action:  rec.Kind.String(),
			Payload: string(payload),
		}
		if err != nil {
			e.Error = err.Error()
		}
		if aerr := p.audit.AppendAudit(ctx, e); aerr != nil {
			p.log.Warn("audit append failed", logx.Err(aerr))
		}
	}
	return err
}

func (p *Pipeline) reply(ctx context.Context, chatID int64, text string) {
	if p.out == nil {
		return
	}
	if _, err := p.out.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{DisablePreview: true}); err != nil {
		p.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}

func failureReason(err error) string {
	var ve *ircmd.ValidationError
	var ue *ircmd.UnknownCommandError
	var ne *alias.NotFoundError
	switch {
	case errors.As(err, &ve):
		return ve.Reason.String()
	case errors.As(err, &ue):
		return "unknown_command"
	case errors.As(err, &ne):
		return "alias_not_found"
	default:
		return "other"
	}
}

// TranslateLine translates text as one command line.
func TranslateLine(t *ircmd.Translator) TranslateFunc {
	return func(_ context.Context, _ string, requester int64, text string) ([]Item, error) {
		rec, err := t.Translate(text, requester)
		if err != nil {
			return nil, err
		}
		return []Item{{Record: rec}}, nil
	}
}

// TranslateKind translates text with the translator for k, regardless of
// the command word.
func TranslateKind(t *ircmd.Translator, k ircmd.Kind) TranslateFunc {
	return func(_ context.Context, _ string, requester int64, text string) ([]Item, error) {
		rec, err := t.TranslateKind(k, text, requester)
		if err != nil {
			return nil, err
		}
		return []Item{{Record: rec}}, nil
	}
}

// ExpandAliases runs each alias in names, in order. Unknown aliases and
// lines that fail to translate become notices; the rest still run.
func ExpandAliases(x *alias.Expander, names []string) TranslateFunc {
	return func(ctx context.Context, device string, requester int64, _ string) ([]Item, error) {
		var items []Item
		for _, name := range names {
			steps, err := x.Expand(ctx, device, name, requester)
			if err != nil {
				items = append(items, Item{Notice: err.Error()})
				continue
			}
			for _, s := range steps {
				if !s.OK() {
					items = append(items, Item{Notice: stepNotice(s)})
					continue
				}
				items = append(items, Item{Record: s.Record})
			}
		}
		return items, nil
	}
}

func stepNotice(s alias.Step) string {
	var ue *ircmd.UnknownCommandError
	if errors.As(s.Err, &ue) {
		return ue.Error()
	}
	return fmt.Sprintf("%s: %v", s.Line, s.Err)
}

// PublishSilent publishes rec to the current device without a chat reply.
// The caller is responsible for authorization.
func (p *Pipeline) PublishSilent(ctx context.Context, inv Invocation, rec ircmd.Record) error {
	device := ""
	if p.current != nil {
		device = p.current(ctx)
	}
	return p.publish(ctx, device, inv, rec)
}

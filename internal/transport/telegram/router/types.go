package router

import (
	"context"
	"time"

	"irbridge/internal/access"
	kit "irbridge/internal/transport"
	logx "irbridge/pkg/logx"
)

// Access is the permission a command or callback requires. The zero value
// is AccessAuthorized so a route that forgets to set it is still gated.
type Access int

const (
	AccessAuthorized Access = iota
	AccessPublic
	AccessAdmin
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessAdmin:
		return "admin"
	default:
		return "authorized"
	}
}

// Reply texts for rejected requests.
const (
	MsgAuthRequired = access.MsgAuthRequired
	MsgAdminOnly    = access.MsgAdminOnly
	MsgBusy         = "busy, try again"
)

// Authorizer answers access questions for a chat identity.
type Authorizer interface {
	IsAuthorized(ctx context.Context, id int64) bool
	RequireAdmin(id int64) bool
}

type HandlerFunc func(ctx context.Context, req *Request) error

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

type Command struct {
	// Route is the command word without the leading slash, e.g. "exec".
	Route       string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	// Hidden commands are routable but left out of help and the menu.
	Hidden  bool
	Timeout time.Duration
	Handle  HandlerFunc
}

// CallbackRoute handles inline button data of the form "group:action[:payload]".
type CallbackRoute struct {
	Group   string
	Action  string
	Access  Access
	Timeout time.Duration
	Handle  CallbackHandlerFunc
}

type Request struct {
	Update kit.Update
	Chat   kit.ChatTarget
	FromID int64
	// Command is the route, or "cb:group:action" for callbacks.
	Command string
	// Text is the whole sanitized message. Args is everything after the
	// command word with newlines kept, so multi-line blocks survive.
	Text    string
	Args    string
	Payload string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger

	m *CommandManager
}

// Message returns the originating message, or nil for callbacks.
func (r *Request) Message() *kit.Message { return r.Update.Message }

// Callback returns the originating callback, or nil for messages.
func (r *Request) Callback() *kit.Callback { return r.Update.Callback }

// Reply sends plain text to the request's chat. Send failures are logged and
// returned.
func (r *Request) Reply(ctx context.Context, text string) error {
	return r.ReplyOpt(ctx, text, &kit.SendOptions{DisablePreview: true})
}

func (r *Request) ReplyOpt(ctx context.Context, text string, opt *kit.SendOptions) error {
	if r.Adapter == nil {
		return nil
	}
	if _, err := r.Adapter.SendText(ctx, r.Chat, text, opt); err != nil {
		r.Logger.Warn("reply failed", logx.Err(err))
		return err
	}
	return nil
}

// Expect routes the next non-command message from the same chat and user to
// fn instead of the command table.
func (r *Request) Expect(fn HandlerFunc) {
	if r.m == nil || fn == nil {
		return
	}
	r.m.expect(r.Chat.ChatID, r.FromID, fn)
}

package router

import (
	"context"
	"strings"
	"testing"
	"time"

	kit "irbridge/internal/transport"
	logx "irbridge/pkg/logx"
)

type fakeAdapter struct {
	sent     chan string
	answered chan string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{sent: make(chan string, 16), answered: make(chan string, 16)}
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.sent <- text
	return kit.MessageRef{}, nil
}
func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.answered <- text
	return nil
}

type fakeAuth struct {
	users map[int64]bool
	admin int64
}

func (a fakeAuth) IsAuthorized(_ context.Context, id int64) bool { return a.users[id] }
func (a fakeAuth) RequireAdmin(id int64) bool                    { return id == a.admin }

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for output")
		return ""
	}
}

func startRouter(t *testing.T, cmds []Command, cbs []CallbackRoute) (*fakeAdapter, chan<- kit.Update) {
	t.Helper()
	ad := newFakeAdapter()
	m := NewCommandManager(logx.Nop(), ad, fakeAuth{users: map[int64]bool{1: true, 9: true}, admin: 9}, Options{Workers: 2})
	m.SetRegistry(cmds, cbs)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 8)
	done := make(chan struct{})
	go func() {
		_ = m.DispatchLoop(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ad, updates
}

func message(chatID int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: chatID, FromID: chatID, Text: text}}
}

func echo(route string, access Access) Command {
	return Command{
		Route:  route,
		Access: access,
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, req.Command+"|"+req.Args)
		},
	}
}

func TestRouteMessageAccess(t *testing.T) {
	t.Parallel()
	ad, updates := startRouter(t, []Command{
		echo("open", AccessPublic),
		echo("exec", AccessAuthorized),
		echo("usermod", AccessAdmin),
	}, nil)

	tests := []struct {
		chat int64
		text string
		want string
	}{
		{chat: 5, text: "/open x", want: "open|x"},
		{chat: 5, text: "/exec a", want: MsgAuthRequired},
		{chat: 1, text: "/exec@irbot light 10m", want: "exec|light 10m"},
		{chat: 1, text: "/usermod 5", want: MsgAdminOnly},
		{chat: 9, text: "/USERMOD 5", want: "usermod|5"},
		{chat: 1, text: "/bogus", want: "command bogus not found"},
	}
	for _, tt := range tests {
		updates <- message(tt.chat, tt.text)
		if got := recv(t, ad.sent); got != tt.want {
			t.Fatalf("%q from %d: reply = %q, want %q", tt.text, tt.chat, got, tt.want)
		}
	}
}

func TestArgsKeepLines(t *testing.T) {
	t.Parallel()
	ad, updates := startRouter(t, []Command{echo("preference", AccessAuthorized)}, nil)

	updates <- message(1, "/preference a b\n+night\nexec fan\n")
	want := "preference|a b\n+night\nexec fan"
	if got := recv(t, ad.sent); got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
}

func TestExpectConsumesNextMessage(t *testing.T) {
	t.Parallel()
	ask := Command{
		Route: "ask",
		Handle: func(ctx context.Context, req *Request) error {
			req.Expect(func(ctx context.Context, in *Request) error {
				return in.Reply(ctx, "got:"+in.Args)
			})
			return req.Reply(ctx, "send input")
		},
	}
	ad, updates := startRouter(t, []Command{ask, echo("exec", AccessAuthorized)}, nil)

	updates <- message(1, "/ask")
	if got := recv(t, ad.sent); got != "send input" {
		t.Fatalf("reply = %q, want send input", got)
	}
	updates <- message(1, "myalias\nexec fan")
	if got := recv(t, ad.sent); got != "got:myalias\nexec fan" {
		t.Fatalf("pending reply = %q", got)
	}

	// A command cancels pending input.
	updates <- message(1, "/ask")
	recv(t, ad.sent)
	updates <- message(1, "/exec x")
	if got := recv(t, ad.sent); got != "exec|x" {
		t.Fatalf("reply = %q, want exec|x", got)
	}
	updates <- message(1, "plain text")
	updates <- message(1, "/exec y")
	if got := recv(t, ad.sent); got != "exec|y" {
		t.Fatalf("plain text after cancel produced %q", got)
	}
}

func TestRouteCallback(t *testing.T) {
	t.Parallel()
	route := CallbackRoute{
		Group:  "task",
		Action: "id",
		Handle: func(ctx context.Context, req *Request, payload string) error {
			return req.Reply(ctx, "terminate "+payload)
		},
	}
	ad, updates := startRouter(t, nil, []CallbackRoute{route})

	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "c1", ChatID: 1, FromID: 1, Data: "task:id:12:34"}}
	if got := recv(t, ad.sent); got != "terminate 12:34" {
		t.Fatalf("reply = %q, want terminate 12:34", got)
	}
	recv(t, ad.answered)

	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "c2", ChatID: 5, FromID: 5, Data: "task:id:1"}}
	if got := recv(t, ad.answered); got != MsgAuthRequired {
		t.Fatalf("answer = %q, want %q", got, MsgAuthRequired)
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, word, rest string
	}{
		{"/exec", "exec", ""},
		{"/Exec@bot  a  b ", "exec", "a  b"},
		{"/preference\n+x\ny", "preference", "+x\ny"},
	}
	for _, tt := range tests {
		w, r := splitCommand(tt.in)
		if w != tt.word || r != tt.rest {
			t.Fatalf("splitCommand(%q) = %q, %q; want %q, %q", tt.in, w, r, tt.word, tt.rest)
		}
	}
}

func TestMenuName(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"terminatename", "terminatename"},
		{"/send-sc", "send_sc"},
		{"  Help ", "help"},
		{"a--b", "a_b"},
		{"1abc", ""},
		{"!!", ""},
	}
	for _, tt := range tests {
		if got := menuName(tt.in); got != tt.want {
			t.Fatalf("menuName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHelpListsVisibleCommands(t *testing.T) {
	t.Parallel()
	m := NewCommandManager(logx.Nop(), newFakeAdapter(), fakeAuth{}, Options{})
	hidden := echo("secret", AccessPublic)
	hidden.Hidden = true
	m.SetRegistry([]Command{echo("exec", AccessAuthorized), hidden}, nil)

	txt := m.helpText(nil)
	if !strings.Contains(txt, "/exec") || strings.Contains(txt, "/secret") {
		t.Fatalf("help text = %q", txt)
	}
}

func TestWrapRecoversPanicAndAppliesTimeout(t *testing.T) {
	t.Parallel()
	req := &Request{Command: "/boom", Logger: logx.Nop()}

	err := wrap(func(context.Context, *Request) error { panic("bad") }, 0)(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "/boom: panic: bad") {
		t.Fatalf("wrap(panic) err = %v, want panic error", err)
	}

	var hasDeadline bool
	_ = wrap(func(ctx context.Context, _ *Request) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}, time.Second)(context.Background(), req)
	if !hasDeadline {
		t.Fatalf("wrap(timeout) ctx has no deadline")
	}
}

package bridge

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"irbridge/pkg/tgui"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return m
}

func TestReplyKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{`{"task":{},"tasks":[]}`, ReplyTask},
		{`{"tasks":[]}`, ReplyTasks},
		{`{"cmds":[]}`, ReplyCmds},
		{`{"taskids":[]}`, ReplyTaskIDs},
		{`{"message":"ok"}`, ReplySimple},
	}
	for _, tt := range tests {
		if got := ReplyKind(decode(t, tt.in)); got != tt.want {
			t.Fatalf("ReplyKind(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderLists(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"cmds", `{"message":"commands:","cmds":["tv_on","fan"],"chat_id":1}`, "commands:\n  tv_on\n  fan\n"},
		{"taskids", `{"message":"ids:","taskids":[3,7],"chat_id":1}`, "ids:\n  3\n  7\n"},
		{"simple", `{"message":"learned tv_on","chat_id":1}`, "learned tv_on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, ok := Render(decode(t, tt.in), nil, time.Unix(0, 0))
			if !ok {
				t.Fatalf("Render ok = false")
			}
			if r.Text != tt.want {
				t.Fatalf("Render text = %q, want %q", r.Text, tt.want)
			}
		})
	}
}

func TestRenderMissingChatID(t *testing.T) {
	t.Parallel()
	if _, ok := Render(decode(t, `{"message":"orphan"}`), nil, time.Now()); ok {
		t.Fatalf("Render ok = true for message without chat_id")
	}
}

func TestRenderTask(t *testing.T) {
	t.Parallel()
	in := `{"message":"task added","chat_id":42,"task":{"taskid":5,"taskname":"night","cmd":"tv_off","xid":2,"start":1736310600,"freq":93784,"remain":3}}`
	r, ok := Render(decode(t, in), nil, time.Unix(0, 0))
	if !ok {
		t.Fatalf("Render ok = false")
	}
	want := "task added\n" +
		"\ntask id: 5\ntask name: night\ncommand: tv_off\ncommand index: 2\n" +
		"start time: 2025-01-08/12:30:00\nperiod: 1d02h03m04s\nremaining: 3\n"
	if diff := cmp.Diff(want, r.Text); diff != "" {
		t.Fatalf("Render text (-want +got):\n%s", diff)
	}
	if r.ChatID != 42 || r.Markup != nil {
		t.Fatalf("Render = chat %d markup %v", r.ChatID, r.Markup)
	}
}

func TestRenderTasksWithButtons(t *testing.T) {
	t.Parallel()
	tokens := tgui.NewTokenStore(10, time.Minute)
	in := `{"message":"tasks:","chat_id":42,"tasks":[
		{"taskid":1,"taskname":"night","cmd":"tv_off","xid":0,"cron":"0 22 * * *","remain":9},
		{"taskid":2,"taskname":"night","cmd":"fan","xid":1,"start":0,"freq":60,"remain":1}]}`
	now := time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)

	r, ok := Render(decode(t, in), tokens, now)
	if !ok {
		t.Fatalf("Render ok = false")
	}
	for _, sub := range []string{
		"cron: 0 22 * * *\nnext run: 2025-01-08/22:00:00\n",
		"period: 0d00h01m00s\n",
		"\nterminate by following buttons",
	} {
		if !strings.Contains(r.Text, sub) {
			t.Fatalf("Render text missing %q:\n%s", sub, r.Text)
		}
	}

	var data []string
	for _, row := range r.Markup.InlineKeyboard {
		for _, b := range row {
			data = append(data, b.Data)
		}
	}
	want := []string{"task:name:night", "task:id:1", "task:id:2"}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("buttons (-want +got):\n%s", diff)
	}
}

func TestRenderEmptyTasks(t *testing.T) {
	t.Parallel()
	r, _ := Render(decode(t, `{"message":"no tasks","chat_id":1,"tasks":[]}`), nil, time.Now())
	if r.Text != "no tasks\n" || r.Markup != nil {
		t.Fatalf("Render = %q, markup %v", r.Text, r.Markup)
	}
}

func TestFormatHMS(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0d00h00m00s"},
		{93784, "1d02h03m04s"},
		{3600, "0d01h00m00s"},
		{-5, "0d00h00m00s"},
	}
	for _, tt := range tests {
		if got := FormatHMS(tt.in); got != tt.want {
			t.Fatalf("FormatHMS(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

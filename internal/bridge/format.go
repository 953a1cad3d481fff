package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"irbridge/internal/ircmd"
	"irbridge/pkg/tgui"
)

const deviceTimeLayout = "2006-01-02/15:04:05"

// Reply kinds, chosen by key presence in the device message.
const (
	ReplyTask    = "task"
	ReplyTasks   = "tasks"
	ReplyCmds    = "cmds"
	ReplyTaskIDs = "taskids"
	ReplySimple  = "simple"
)

// Rendered is a device message ready to send.
type Rendered struct {
	ChatID int64
	Kind   string
	Text   string
	Markup *tele.ReplyMarkup
}

// ReplyKind classifies a device message.
func ReplyKind(m map[string]any) string {
	for _, k := range []string{ReplyTask, ReplyTasks, ReplyCmds, ReplyTaskIDs} {
		if _, ok := m[k]; ok {
			return k
		}
	}
	return ReplySimple
}

// Render formats a device message. ok is false when it carries no chat_id.
func Render(m map[string]any, tokens *tgui.TokenStore, now time.Time) (Rendered, bool) {
	chatID, ok := toInt(m["chat_id"])
	if !ok {
		return Rendered{}, false
	}
	r := Rendered{ChatID: chatID, Kind: ReplyKind(m)}
	msg := toString(m["message"])

	switch r.Kind {
	case ReplyTask:
		task, _ := m["task"].(map[string]any)
		r.Text = msg + "\n" + taskCard(task, now)
	case ReplyTasks:
		tasks, _ := m["tasks"].([]any)
		var sb strings.Builder
		sb.WriteString(msg + "\n")
		var names, ids []string
		seenName, seenID := map[string]bool{}, map[string]bool{}
		for _, v := range tasks {
			task, _ := v.(map[string]any)
			sb.WriteString(taskCard(task, now))
			if n := toString(task["taskname"]); n != "" && !seenName[n] {
				seenName[n] = true
				names = append(names, n)
			}
			if id := toString(task["taskid"]); id != "" && !seenID[id] {
				seenID[id] = true
				ids = append(ids, id)
			}
		}
		if len(tasks) > 0 {
			sb.WriteString("\nterminate by following buttons")
		}
		r.Text = sb.String()
		kb := tgui.NewInline()
		for _, n := range names {
			kb.Row(tgui.Btn(tgui.TruncRunes(n, 40)+" (name)", tgui.FitData(tokens, "task", "name", n)))
		}
		for _, id := range ids {
			kb.Row(tgui.Btn(id+" (id)", tgui.FitData(tokens, "task", "id", id)))
		}
		if kb.Len() > 0 {
			r.Markup = kb.Markup()
		}
	case ReplyCmds, ReplyTaskIDs:
		items, _ := m[r.Kind].([]any)
		var sb strings.Builder
		sb.WriteString(msg + "\n")
		for _, v := range items {
			sb.WriteString("  " + toString(v) + "\n")
		}
		r.Text = sb.String()
	default:
		r.Text = msg
	}
	return r, true
}

// taskCard renders one task, starting with a blank line.
func taskCard(task map[string]any, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\ntask id: %s\n", toString(task["taskid"]))
	fmt.Fprintf(&sb, "task name: %s\n", toString(task["taskname"]))
	fmt.Fprintf(&sb, "command: %s\n", toString(task["cmd"]))
	fmt.Fprintf(&sb, "command index: %s\n", toString(task["xid"]))
	if expr := toString(task["cron"]); expr != "" {
		fmt.Fprintf(&sb, "cron: %s\n", expr)
		if next, ok := ircmd.NextRun(expr, now); ok {
			fmt.Fprintf(&sb, "next run: %s\n", FormatDeviceTime(next.Unix()))
		}
	} else {
		start, _ := toInt(task["start"])
		freq, _ := toInt(task["freq"])
		fmt.Fprintf(&sb, "start time: %s\n", FormatDeviceTime(start))
		fmt.Fprintf(&sb, "period: %s\n", FormatHMS(freq))
	}
	fmt.Fprintf(&sb, "remaining: %s\n", toString(task["remain"]))
	return sb.String()
}

// FormatDeviceTime renders a unix time in the device zone.
func FormatDeviceTime(unix int64) string {
	return time.Unix(unix, 0).In(ircmd.DeviceZone).Format(deviceTimeLayout)
}

// FormatHMS renders seconds as {d}d{hh}h{mm}m{ss}s.
func FormatHMS(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	d := sec / 86400
	h := sec % 86400 / 3600
	m := sec % 3600 / 60
	s := sec % 60
	return fmt.Sprintf("%dd%02dh%02dm%02ds", d, h, m, s)
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		return int64(f), err == nil
	case float64:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

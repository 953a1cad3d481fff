package bridge

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"irbridge/internal/access"
	"irbridge/internal/storage"
	"irbridge/internal/transport/telegram/router"
)

func (b *Bridge) handleDevice(ctx context.Context, req *router.Request) error {
	chatID := req.Chat.ChatID
	if args := strings.Fields(req.Args); len(args) > 0 {
		name := args[0]
		if !slices.Contains(b.state.Devices(), name) {
			_, _ = b.send(ctx, chatID, "device "+name+" not found", nil)
		} else {
			_, err := b.state.Update(ctx, func(st *storage.State) bool {
				if st.Device == name {
					return false
				}
				st.Device = name
				return true
			})
			if err != nil {
				b.persistNotice(ctx, chatID, err)
			}
			_, _ = b.send(ctx, chatID, "device switch to "+name, nil)
		}
	}
	_, _ = b.send(ctx, chatID, b.deviceList(ctx), nil)
	return nil
}

// deviceList renders "device list:" with "+" marking the current device and
// each line annotated with its connection state.
func (b *Bridge) deviceList(ctx context.Context) string {
	cur := b.state.Snapshot(ctx).Device
	var sb strings.Builder
	sb.WriteString("device list:")
	for _, name := range b.state.Devices() {
		mark := "-"
		if name == cur {
			mark = "+"
		}
		sb.WriteString("\n" + mark + " " + name)
		if s := b.deviceState(name); s != "" {
			sb.WriteString(" (" + s + ")")
		}
	}
	return sb.String()
}

func (b *Bridge) deviceState(name string) string {
	if b.status == nil {
		return ""
	}
	st, ok := b.status.Status(name)
	if !ok {
		return ""
	}
	word := "disconnected"
	if st.Connected {
		word = "connected"
	}
	if st.Since.IsZero() {
		return word
	}
	return word + " " + humanize.RelTime(st.Since, b.now(), "ago", "from now")
}

func (b *Bridge) handleUsermod(ctx context.Context, req *router.Request) error {
	changes := access.ParseUsermod(req.Args)
	if len(changes) > 0 {
		if err := b.gate.Apply(ctx, changes); err != nil {
			b.persistNotice(ctx, req.Chat.ChatID, err)
		}
	}
	_, _ = b.send(ctx, req.Chat.ChatID, "user list:\n"+formatIDs(b.gate.Users(ctx)), nil)
	return nil
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (b *Bridge) handleAuth(ctx context.Context, req *router.Request) error {
	who := strconv.FormatInt(req.Chat.ChatID, 10)
	if m := req.Message(); m != nil {
		who = m.SenderName()
	}
	admin := b.gate.Admin()
	note := fmt.Sprintf("%s request chat id: %d", who, req.Chat.ChatID)
	if _, err := b.send(ctx, admin, note, nil); err != nil {
		return err
	}
	_, _ = b.send(ctx, req.Chat.ChatID, "your application has been submitted to the administrator", nil)
	return nil
}

func (b *Bridge) handleStart(ctx context.Context, req *router.Request) error {
	text := "irbridge relays commands to your infrared devices.\n" +
		"Send /auth to request access and /help for the command list."
	if b.gate.IsAuthorized(ctx, req.Chat.ChatID) {
		text = "irbridge is ready. Current " + b.deviceList(ctx) + "\n\nSend /help for the command list."
	}
	_, _ = b.send(ctx, req.Chat.ChatID, text, nil)
	return nil
}

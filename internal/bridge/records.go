package bridge

import (
	"context"
	"fmt"

	"irbridge/internal/ircmd"
	"irbridge/internal/transport/telegram/router"
	logx "irbridge/pkg/logx"
	"irbridge/pkg/tgui"
)

var recordUsage = map[ircmd.Kind]struct{ desc, usage string }{
	ircmd.KindCopy:            {"learn an infrared command", "/copy <name> [old]"},
	ircmd.KindExec:            {"schedule a command", "/exec <name> [start] [freq] [remain] [taskname]\n/exec <name> cron(<expr>) [remain] [taskname]\nstart: unix time, 2006-01-02T15:04:05 or 1d2h3m4s"},
	ircmd.KindTerminate:       {"terminate tasks by id", "/terminate <taskid> [taskid...]"},
	ircmd.KindTerminateByName: {"terminate tasks by name", "/terminatename <taskname>"},
	ircmd.KindListCommands:    {"list learned commands", "/cmdlist"},
	ircmd.KindListTaskIDs:     {"list task ids", "/taskidlist"},
	ircmd.KindListTasks:       {"list tasks", "/tasklist"},
	ircmd.KindGetTask:         {"show one task", "/task <id>"},
}

// recordCommands registers one public command per record kind. They are
// public at the router because the pipeline performs its own authorization.
func (b *Bridge) recordCommands() []router.Command {
	kinds := ircmd.Kinds()
	out := make([]router.Command, 0, len(kinds))
	for _, k := range kinds {
		u := recordUsage[k]
		translate := TranslateKind(b.translator, k)
		out = append(out, router.Command{
			Route:       k.String(),
			Description: u.desc,
			Usage:       u.usage,
			Access:      router.AccessPublic,
			Handle: func(ctx context.Context, req *router.Request) error {
				res := b.pipe.Run(ctx, Invocation{ChatID: req.Chat.ChatID, FromID: req.FromID, Text: req.Text}, translate)
				req.Logger.Debug("pipeline done", logx.String("state", res.State.String()), logx.Int("published", res.Published))
				return nil
			},
		})
	}
	return out
}

// terminateCallback handles the buttons under a task list: terminate by id
// or name, then ask the device for a fresh list.
func (b *Bridge) terminateCallback(k ircmd.Kind) router.CallbackHandlerFunc {
	translate := TranslateKind(b.translator, k)
	return func(ctx context.Context, req *router.Request, payload string) error {
		value, ok := tgui.ResolvePayload(b.tokens, payload)
		if !ok {
			_, _ = b.send(ctx, req.Chat.ChatID, "button expired, send /tasklist again", nil)
			return nil
		}
		inv := Invocation{ChatID: req.Chat.ChatID, FromID: req.FromID, Text: k.String() + " " + value}
		res := b.pipe.Run(ctx, inv, translate)
		if res.State != StateCompleted || res.Published == 0 {
			return nil
		}
		if err := b.pipe.PublishSilent(ctx, inv, ircmd.Record{Kind: ircmd.KindListTasks, RequesterID: inv.ChatID}); err != nil {
			return fmt.Errorf("refresh task list: %w", err)
		}
		return nil
	}
}

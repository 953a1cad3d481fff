package bridge

import (
	"context"
	"maps"
	"slices"

	tele "gopkg.in/telebot.v4"

	"irbridge/internal/alias"
	kit "irbridge/internal/transport"
	"irbridge/internal/transport/telegram/router"
	"irbridge/pkg/tgui"
)

const (
	aliasAddPrompt = "first input alias name, then input commands. e.g.\nmyalias\nmycommand arg1 arg2"
	aliasBackLabel = "⬅ back to alias list"
)

// handlePreference reports invalid names, applies the remaining +name/-name
// edits in one state update, replies with the alias list, then runs the
// aliases named on the first line.
func (b *Bridge) handlePreference(ctx context.Context, req *router.Request) error {
	chatID := req.Chat.ChatID
	run, edits, rejected := alias.ParseBlock(req.Text)
	device := b.currentDevice(ctx)
	for _, name := range rejected {
		_, _ = b.send(ctx, chatID, (&alias.NameError{Name: name}).Error(), nil)
	}

	aliases, err := b.aliases.Apply(ctx, device, edits)
	if err != nil {
		b.persistNotice(ctx, chatID, err)
		aliases = b.aliases.Get(ctx, device)
	}
	_, _ = b.send(ctx, chatID, "alias list:\n"+alias.Format(aliases), nil)

	if len(run) > 0 {
		b.pipe.Run(ctx, Invocation{ChatID: chatID, FromID: req.FromID, Text: req.Text}, ExpandAliases(b.expander, run))
	}
	return nil
}

func (b *Bridge) handleAliasMenu(ctx context.Context, req *router.Request) error {
	text, rm := b.aliasMenu(ctx, "")
	_, err := b.send(ctx, req.Chat.ChatID, text, &kit.SendOptions{DisablePreview: true, ReplyMarkupAdapter: rm})
	return err
}

// aliasMenu renders the menu for view: "" for the main menu, "exc" or "del"
// for a submenu with one button per alias.
func (b *Bridge) aliasMenu(ctx context.Context, view string) (string, *tele.ReplyMarkup) {
	device := b.currentDevice(ctx)
	aliases := b.aliases.Get(ctx, device)
	kb := tgui.NewInline()

	prompt := "which alias option"
	switch view {
	case "exc", "del":
		prompt = "which alias " + view
		for _, name := range slices.Sorted(maps.Keys(aliases)) {
			kb.Row(tgui.Btn(tgui.TruncRunes(name, 40), tgui.FitData(b.tokens, "alias", view, name)))
		}
		kb.Row(tgui.Btn(aliasBackLabel, tgui.Data("alias", "menu", "")))
	default:
		kb.Row(
			tgui.Btn("exc", tgui.Data("alias", "menu", "exc")),
			tgui.Btn("add", tgui.Data("alias", "add", "")),
			tgui.Btn("del", tgui.Data("alias", "menu", "del")),
		)
	}
	return "alias list:\n" + alias.Format(aliases) + "\n\n" + prompt, kb.Markup()
}

func (b *Bridge) editMenu(ctx context.Context, req *router.Request, view string) error {
	cb := req.Callback()
	text, rm := b.aliasMenu(ctx, view)
	opt := &kit.SendOptions{DisablePreview: true, ReplyMarkupAdapter: rm}
	if cb == nil || cb.MessageID == 0 {
		_, err := b.send(ctx, req.Chat.ChatID, text, opt)
		return err
	}
	return b.out.EditText(ctx, kit.MessageRef{ChatID: req.Chat.ChatID, MessageID: cb.MessageID}, text, opt)
}

func (b *Bridge) aliasMenuCallback(ctx context.Context, req *router.Request, payload string) error {
	return b.editMenu(ctx, req, payload)
}

func (b *Bridge) aliasExecCallback(ctx context.Context, req *router.Request, payload string) error {
	name, ok := tgui.ResolvePayload(b.tokens, payload)
	if !ok {
		return b.editMenu(ctx, req, "exc")
	}
	b.pipe.Run(ctx, Invocation{ChatID: req.Chat.ChatID, FromID: req.FromID, Text: name}, ExpandAliases(b.expander, []string{name}))
	return nil
}

func (b *Bridge) aliasDeleteCallback(ctx context.Context, req *router.Request, payload string) error {
	name, ok := tgui.ResolvePayload(b.tokens, payload)
	if ok {
		found, err := b.aliases.Delete(ctx, b.currentDevice(ctx), name)
		switch {
		case err != nil:
			b.persistNotice(ctx, req.Chat.ChatID, err)
		case !found:
			_, _ = b.send(ctx, req.Chat.ChatID, (&alias.NotFoundError{Name: name}).Error(), nil)
		}
	}
	return b.editMenu(ctx, req, "del")
}

// aliasAddCallback asks for a definition and waits for the next message.
func (b *Bridge) aliasAddCallback(ctx context.Context, req *router.Request, _ string) error {
	req.Expect(b.aliasAddInput)
	_, err := b.send(ctx, req.Chat.ChatID, aliasAddPrompt, nil)
	return err
}

func (b *Bridge) aliasAddInput(ctx context.Context, req *router.Request) error {
	name, lines, err := alias.ParseDefinition(req.Text)
	if err != nil {
		_, _ = b.send(ctx, req.Chat.ChatID, err.Error(), nil)
		return nil
	}
	if err := b.aliases.Add(ctx, b.currentDevice(ctx), name, lines); err != nil {
		b.persistNotice(ctx, req.Chat.ChatID, err)
	}
	return b.handleAliasMenu(ctx, req)
}

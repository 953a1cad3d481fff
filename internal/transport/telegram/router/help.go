package router

import (
	"strings"

	"irbridge/pkg/tgui"
)

// helpText renders help in Telegram HTML parse mode.
func (m *CommandManager) helpText(args []string) string {
	m.mu.RLock()
	table := m.cmds
	order := m.order
	m.mu.RUnlock()

	if len(args) > 0 {
		c, ok := table[normalizeWord(args[0])]
		if !ok || c.Hidden {
			return "command " + tgui.Esc(normalizeWord(args[0])).String() + " not found"
		}
		return helpCommandHTML(c).String()
	}

	lines := []tgui.H{tgui.B("Commands"), "Send " + tgui.Code("/help <cmd>") + " for details.\n"}
	for _, c := range order {
		if c.Hidden {
			continue
		}
		line := "• " + tgui.Code("/"+c.Route)
		if d := strings.TrimSpace(c.Description); d != "" {
			line += " - " + tgui.Esc(d)
		}
		if c.Access == AccessAdmin {
			line += " 🔒"
		}
		lines = append(lines, line)
	}
	return tgui.JoinH("\n", lines...).String()
}

func helpCommandHTML(c *Command) tgui.H {
	parts := []tgui.H{tgui.B("/" + c.Route), tgui.Esc(strings.TrimSpace(c.Description))}
	if u := strings.TrimSpace(c.Usage); u != "" {
		parts = append(parts, tgui.B("Usage")+"\n"+tgui.Pre(u))
	}
	if len(c.Aliases) > 0 {
		sc := []tgui.H{tgui.B("Shortcut")}
		for _, a := range c.Aliases {
			sc = append(sc, "• "+tgui.Code("/"+a))
		}
		parts = append(parts, tgui.JoinH("\n", sc...))
	}
	switch c.Access {
	case AccessAdmin:
		parts = append(parts, "🔒 "+tgui.I("administrator only"))
	case AccessAuthorized:
		parts = append(parts, tgui.I("requires authorization, see /auth"))
	}
	return tgui.JoinH("\n\n", parts...)
}

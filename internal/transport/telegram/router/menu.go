package router

import (
	"strings"
	"unicode"

	kit "irbridge/internal/transport"
)

// menuName maps a route onto the Bot API command alphabet [a-z0-9_],
// at most 32 characters and starting with a letter. Routes that cannot be
// expressed map to "" and stay out of the menu.
func menuName(route string) string {
	route = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(route), "/"))
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r == '-', unicode.IsSpace(r):
			return '_'
		}
		return -1
	}, route)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	name = strings.Trim(name, "_")
	if len(name) > 32 {
		name = strings.TrimRight(name[:32], "_")
	}
	if name == "" || name[0] < 'a' || name[0] > 'z' {
		return ""
	}
	return name
}

// buildMenuCommands lists visible commands in registration order, at most 100.
func buildMenuCommands(cmds []*Command) []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(cmds))
	seen := map[string]bool{}
	for _, c := range cmds {
		if c.Hidden {
			continue
		}
		name := menuName(c.Route)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		if desc == "" {
			desc = name
		}
		if len(desc) > 256 {
			desc = desc[:256]
		}
		out = append(out, kit.BotCommand{Command: name, Description: desc})
		if len(out) >= 100 {
			break
		}
	}
	return out
}

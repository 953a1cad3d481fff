package tgui

import (
	"html"
	"strings"
)

// H is a fragment of Telegram HTML (ParseMode "HTML"). Values built by this
// package are escaped; converting arbitrary text to H bypasses that.
type H string

func (h H) String() string { return string(h) }

// Esc escapes s for Telegram HTML.
func Esc(s string) H { return H(html.EscapeString(s)) }

func tagged(tag, text string) H {
	return H("<" + tag + ">" + html.EscapeString(text) + "</" + tag + ">")
}

func B(s string) H    { return tagged("b", s) }
func I(s string) H    { return tagged("i", s) }
func Code(s string) H { return tagged("code", s) }
func Pre(s string) H  { return tagged("pre", s) }

// JoinH joins parts with sep, skipping blank ones.
func JoinH(sep string, parts ...H) H {
	var b strings.Builder
	for _, p := range parts {
		if strings.TrimSpace(string(p)) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(string(p))
	}
	return H(b.String())
}

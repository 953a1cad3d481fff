package bridge

import "strings"

// Sanitize keeps printable ASCII (32..126) and newlines and drops
// everything else, so device arguments never carry control bytes or
// multi-byte runes.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' || (c >= 32 && c <= 126) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

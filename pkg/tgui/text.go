package tgui

// TruncRunes shortens s to n runes, marking the cut with "…". Button labels
// go through it so long alias and task names keep a keyboard readable.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	seen := 0
	for i := range s {
		if seen == n {
			return s[:i] + "…"
		}
		seen++
	}
	return s
}

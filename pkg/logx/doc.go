// Package logx is the bridge's structured logging layer.
//
// logx.Logger wraps zerolog with small Field helpers. A Service fans records
// out to the console, a JSON file, and optionally the administrator's
// Telegram chat (min-level filtered and rate limited).
package logx

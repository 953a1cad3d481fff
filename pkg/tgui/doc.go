// Package tgui holds small Telegram UI helpers: inline keyboard builders,
// "group:action:payload" callback data, HTML escaping, and a token store for
// payloads that do not fit in callback data.
package tgui

package tgui

import "strings"

// MaxCallbackDataLen is the Bot API limit for callback_data, in bytes.
const MaxCallbackDataLen = 64

// Data formats inline callback data as "group:action:payload".
// Payload is kept as-is.
func Data(group, action, payload string) string {
	group = strings.TrimSpace(group)
	action = strings.TrimSpace(action)
	if payload == "" {
		return group + ":" + action
	}
	return group + ":" + action + ":" + payload
}

// FitData is Data, except that a payload which would push the result over
// MaxCallbackDataLen, or which itself looks like a token, is stored in
// tokens and replaced by its token.
func FitData(tokens *TokenStore, group, action, payload string) string {
	d := Data(group, action, payload)
	if len(d) <= MaxCallbackDataLen && !IsToken(payload) {
		return d
	}
	return Data(group, action, tokens.Put(payload))
}

// ResolvePayload reverses FitData. ok is false for an expired token.
func ResolvePayload(tokens *TokenStore, payload string) (string, bool) {
	if !IsToken(payload) {
		return payload, true
	}
	if tokens == nil {
		return "", false
	}
	return tokens.Get(payload)
}

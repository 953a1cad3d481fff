package storage

import (
	"errors"
	"maps"
	"slices"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON snapshot at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Audit       bool
}

// State is everything the bridge persists. The JSON shape is the db.json
// layout: {"device": ..., "user": [...], "preference": {device: {alias: [lines]}}}.
type State struct {
	Device     string                         `json:"device"`
	Users      []int64                        `json:"user"`
	Preference map[string]map[string][]string `json:"preference"`
}

// Clone returns a deep copy, so callers can mutate it without touching a
// snapshot held elsewhere.
func (s State) Clone() State {
	out := State{Device: s.Device, Users: slices.Clone(s.Users)}
	if s.Preference != nil {
		out.Preference = make(map[string]map[string][]string, len(s.Preference))
		for dev, aliases := range s.Preference {
			m := make(map[string][]string, len(aliases))
			for name, lines := range aliases {
				m[name] = slices.Clone(lines)
			}
			out.Preference[dev] = m
		}
	}
	return out
}

// Equal reports whether two states would persist identically. A nil and an
// empty alias map compare equal.
func (s State) Equal(o State) bool {
	if s.Device != o.Device || !slices.Equal(s.Users, o.Users) {
		return false
	}
	if len(s.Preference) != len(o.Preference) {
		return false
	}
	for dev, a := range s.Preference {
		b, ok := o.Preference[dev]
		if !ok {
			return false
		}
		if !maps.EqualFunc(a, b, func(x, y []string) bool { return slices.Equal(x, y) }) {
			return false
		}
	}
	return true
}

// AuditEntry records one published record or management action.
type AuditEntry struct {
	At      time.Time `json:"at"`
	ChatID  int64     `json:"chat_id"`
	FromID  int64     `json:"from_id,omitempty"`
	Device  string    `json:"device,omitempty"`
	Action  string    `json:"action"`
	Payload string    `json:"payload,omitempty"`
	Error   string    `json:"error,omitempty"`
}

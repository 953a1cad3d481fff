// Package alias implements per-device command macros: named, ordered lists of
// command lines that expand into several task-control records.
package alias

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"irbridge/internal/storage"
)

// NotFoundError is reported for an alias name with no definition.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("alias %s not found", e.Name) }

// StateStore is the read-modify-write surface of state.Manager.
type StateStore interface {
	Snapshot(ctx context.Context) storage.State
	Update(ctx context.Context, fn func(st *storage.State) bool) (storage.State, error)
}

// Store is CRUD over the alias map of one device. Every mutation is
// persisted before it returns.
type Store struct {
	state StateStore
}

func NewStore(state StateStore) *Store {
	return &Store{state: state}
}

// Get returns the aliases of device. The map is never nil.
func (s *Store) Get(ctx context.Context, device string) map[string][]string {
	st := s.state.Snapshot(ctx)
	if m := st.Preference[device]; m != nil {
		return m
	}
	return map[string][]string{}
}

// Lookup returns the lines of one alias.
func (s *Store) Lookup(ctx context.Context, device, name string) ([]string, bool) {
	lines, ok := s.Get(ctx, device)[name]
	return lines, ok
}

// Names returns the alias names of device, sorted.
func (s *Store) Names(ctx context.Context, device string) []string {
	return slices.Sorted(maps.Keys(s.Get(ctx, device)))
}

// Set replaces the full alias map of device.
func (s *Store) Set(ctx context.Context, device string, aliases map[string][]string) error {
	_, err := s.state.Update(ctx, func(st *storage.State) bool {
		m := make(map[string][]string, len(aliases))
		for k, v := range aliases {
			m[k] = slices.Clone(v)
		}
		ensure(st)[device] = m
		return true
	})
	return err
}

// Add creates name or replaces its lines.
func (s *Store) Add(ctx context.Context, device, name string, lines []string) error {
	_, err := s.state.Update(ctx, func(st *storage.State) bool {
		m := ensure(st)[device]
		if m == nil {
			m = map[string][]string{}
			st.Preference[device] = m
		}
		m[name] = slices.Clone(lines)
		return true
	})
	return err
}

// Delete removes name. It reports whether the alias existed.
func (s *Store) Delete(ctx context.Context, device, name string) (bool, error) {
	found := false
	_, err := s.state.Update(ctx, func(st *storage.State) bool {
		m := ensure(st)[device]
		if _, ok := m[name]; !ok {
			return false
		}
		delete(m, name)
		found = true
		return true
	})
	return found, err
}

// Apply runs the edits of a preference block in one state update and returns
// the resulting alias map.
func (s *Store) Apply(ctx context.Context, device string, edits []Edit) (map[string][]string, error) {
	st, err := s.state.Update(ctx, func(st *storage.State) bool {
		if len(edits) == 0 {
			return false
		}
		m := ensure(st)[device]
		if m == nil {
			m = map[string][]string{}
			st.Preference[device] = m
		}
		for _, e := range edits {
			if e.Delete {
				delete(m, e.Name)
				continue
			}
			m[e.Name] = slices.Clone(e.Lines)
		}
		return true
	})
	m := st.Preference[device]
	if m == nil {
		m = map[string][]string{}
	}
	return m, err
}

func ensure(st *storage.State) map[string]map[string][]string {
	if st.Preference == nil {
		st.Preference = map[string]map[string][]string{}
	}
	return st.Preference
}

// Format renders aliases as the "alias list" body: each name on its own line
// followed by its commands indented by four spaces. Names are sorted.
func Format(aliases map[string][]string) string {
	var b strings.Builder
	for i, name := range slices.Sorted(maps.Keys(aliases)) {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		for _, line := range aliases[name] {
			b.WriteString("\n    ")
			b.WriteString(line)
		}
	}
	return b.String()
}

// Package state is the single owner of the persisted bridge state. Every
// reader goes through Snapshot and every writer through Update, which is a
// read-modify-write against the latest persisted copy.
package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"irbridge/internal/storage"
	logx "irbridge/pkg/logx"
)

// PersistenceError is returned by Update when the mutated state could not be
// written after every retry. The mutation stays applied in memory and is
// written again by the next Snapshot or Update.
type PersistenceError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("state %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type Options struct {
	// Admin returns the administrator id. It is read on every call so a
	// reloaded config takes effect without a restart.
	Admin func() int64
	// Devices returns the configured device names in config order.
	Devices func() []string

	SaveRetries  int
	RetryBackoff time.Duration

	// OnSaveFailure is called once per failed Update, after the last retry.
	OnSaveFailure func(error)
}

type Manager struct {
	store storage.Store
	opts  Options
	log   logx.Logger

	mu      sync.Mutex
	last    storage.State
	pending *storage.State
}

func New(store storage.Store, opts Options, log logx.Logger) *Manager {
	if opts.Admin == nil {
		opts.Admin = func() int64 { return 0 }
	}
	if opts.Devices == nil {
		opts.Devices = func() []string { return nil }
	}
	if opts.SaveRetries <= 0 {
		opts.SaveRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	return &Manager{
		store: store,
		opts:  opts,
		log:   log.With(logx.String("comp", "state")),
	}
}

// Admin returns the current administrator id.
func (m *Manager) Admin() int64 { return m.opts.Admin() }

// Devices returns the configured device names.
func (m *Manager) Devices() []string { return m.opts.Devices() }

// Snapshot returns a private copy of the latest state.
func (m *Manager) Snapshot(ctx context.Context) storage.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx).Clone()
}

// Update applies fn to the latest state and persists the result. fn reports
// whether it changed anything; when it did not, nothing is written.
func (m *Manager) Update(ctx context.Context, fn func(st *storage.State) bool) (storage.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.loadLocked(ctx)
	st := prev.Clone()
	if !fn(&st) {
		return st, nil
	}
	m.normalize(&st)
	if st.Equal(prev) {
		return st, nil
	}

	if err := m.saveLocked(ctx, st); err != nil {
		cp := st.Clone()
		m.pending = &cp
		m.last = st
		m.log.Error("state save failed, keeping change in memory", logx.Err(err))
		if m.opts.OnSaveFailure != nil {
			m.opts.OnSaveFailure(err)
		}
		return st.Clone(), err
	}
	m.pending = nil
	m.last = st
	return st.Clone(), nil
}

// Flush writes a pending in-memory state, if any.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	if err := m.saveLocked(ctx, *m.pending); err != nil {
		return err
	}
	m.pending = nil
	return nil
}

func (m *Manager) loadLocked(ctx context.Context) storage.State {
	if m.pending != nil {
		if err := m.saveLocked(ctx, *m.pending); err == nil {
			m.log.Info("pending state written")
			m.pending = nil
		}
		return m.last
	}

	st, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("state load failed, using last known state", logx.Err(err))
		st = m.last.Clone()
	}
	m.normalize(&st)
	m.last = st
	return st
}

func (m *Manager) saveLocked(ctx context.Context, st storage.State) error {
	var err error
	attempts := 0
	for attempts < m.opts.SaveRetries {
		attempts++
		if err = m.store.Save(ctx, st); err == nil {
			return nil
		}
		if errors.Is(err, storage.ErrClosed) || ctx.Err() != nil {
			break
		}
		if attempts < m.opts.SaveRetries {
			t := time.NewTimer(m.opts.RetryBackoff * time.Duration(attempts))
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
	return &PersistenceError{Op: "save", Attempts: attempts, Err: err}
}

// normalize applies the invariants every reader relies on: the admin is
// always a user, the device is a configured one, and the current device has
// an alias map.
func (m *Manager) normalize(st *storage.State) {
	if admin := m.opts.Admin(); admin != 0 && !slices.Contains(st.Users, admin) {
		st.Users = append([]int64{admin}, st.Users...)
	}

	devices := m.opts.Devices()
	if len(devices) > 0 && !slices.Contains(devices, st.Device) {
		st.Device = devices[0]
	}

	if st.Preference == nil {
		st.Preference = map[string]map[string][]string{}
	}
	if st.Device != "" && st.Preference[st.Device] == nil {
		st.Preference[st.Device] = map[string][]string{}
	}
}

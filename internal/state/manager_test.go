package state

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"irbridge/internal/storage"
	logx "irbridge/pkg/logx"
)

type flakyStore struct {
	mu       sync.Mutex
	st       storage.State
	saves    int
	failNext int
}

func (f *flakyStore) Load(context.Context) (storage.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.Clone(), nil
}

func (f *flakyStore) Save(_ context.Context, st storage.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.failNext > 0 {
		f.failNext--
		return errors.New("disk full")
	}
	f.st = st.Clone()
	return nil
}

func (f *flakyStore) AppendAudit(context.Context, storage.AuditEntry) error { return nil }
func (f *flakyStore) Close() error                                         { return nil }

func newManager(store storage.Store) *Manager {
	return New(store, Options{
		Admin:        func() int64 { return 1 },
		Devices:      func() []string { return []string{"living", "bedroom"} },
		SaveRetries:  2,
		RetryBackoff: time.Millisecond,
	}, logx.Nop())
}

func TestSnapshotNormalizes(t *testing.T) {
	t.Parallel()
	m := newManager(&flakyStore{st: storage.State{Device: "garage", Users: []int64{5}}})

	st := m.Snapshot(context.Background())
	if st.Device != "living" {
		t.Fatalf("Device = %q, want living", st.Device)
	}
	if !slices.Equal(st.Users, []int64{1, 5}) {
		t.Fatalf("Users = %v, want [1 5]", st.Users)
	}
	if st.Preference["living"] == nil {
		t.Fatalf("current device has no alias map")
	}
}

func TestUpdateSkipsUnchangedWrites(t *testing.T) {
	t.Parallel()
	fs := &flakyStore{}
	m := newManager(fs)
	ctx := context.Background()

	add := func(st *storage.State) bool {
		if slices.Contains(st.Users, 9) {
			return false
		}
		st.Users = append(st.Users, 9)
		return true
	}
	if _, err := m.Update(ctx, add); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := m.Update(ctx, add); err != nil {
		t.Fatalf("Update again: %v", err)
	}
	if fs.saves != 1 {
		t.Fatalf("saves = %d, want 1", fs.saves)
	}
	if got := m.Snapshot(ctx).Users; !slices.Equal(got, []int64{1, 9}) {
		t.Fatalf("Users = %v, want [1 9]", got)
	}
}

func TestUpdateRetriesThenReportsPersistenceError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fs := &flakyStore{failNext: 1}
	m := newManager(fs)
	if _, err := m.Update(ctx, func(st *storage.State) bool { st.Device = "bedroom"; return true }); err != nil {
		t.Fatalf("Update with one failure: %v", err)
	}
	if fs.saves != 2 {
		t.Fatalf("saves = %d, want 2", fs.saves)
	}

	fs = &flakyStore{failNext: 2}
	m = newManager(fs)
	_, err := m.Update(ctx, func(st *storage.State) bool { st.Device = "bedroom"; return true })
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Update err = %v, want *PersistenceError", err)
	}
	if pe.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", pe.Attempts)
	}

	// The change stays visible and is written on the next access.
	if got := m.Snapshot(ctx).Device; got != "bedroom" {
		t.Fatalf("Device after failed save = %q, want bedroom", got)
	}
	if fs.st.Device != "bedroom" {
		t.Fatalf("pending state not flushed, store has %q", fs.st.Device)
	}
}

func TestUpdateReadsLatestPersistedState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.json")

	open := func() storage.Store {
		s, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	a := newManager(open())
	b := newManager(open())

	if _, err := a.Update(ctx, func(st *storage.State) bool { st.Users = append(st.Users, 2); return true }); err != nil {
		t.Fatalf("a.Update: %v", err)
	}
	if _, err := b.Update(ctx, func(st *storage.State) bool { st.Users = append(st.Users, 3); return true }); err != nil {
		t.Fatalf("b.Update: %v", err)
	}
	if got := a.Snapshot(ctx).Users; !slices.Equal(got, []int64{1, 2, 3}) {
		t.Fatalf("Users = %v, want [1 2 3]", got)
	}
}

package alias

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"irbridge/internal/ircmd"
	"irbridge/internal/storage"
)

type memState struct {
	mu     sync.Mutex
	st     storage.State
	writes int
}

func (m *memState) Snapshot(context.Context) storage.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Clone()
}

func (m *memState) Update(_ context.Context, fn func(*storage.State) bool) (storage.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.st.Clone()
	if fn(&st) {
		m.writes++
		m.st = st
	}
	return st.Clone(), nil
}

func TestStoreCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ms := &memState{}
	s := NewStore(ms)

	if got := s.Get(ctx, "living"); got == nil || len(got) != 0 {
		t.Fatalf("Get on empty = %v, want empty non-nil map", got)
	}

	if err := s.Add(ctx, "living", "night", []string{"exec a", "exec b"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, "living", "night", []string{"exec c"}); err != nil {
		t.Fatalf("Add again: %v", err)
	}
	lines, ok := s.Lookup(ctx, "living", "night")
	if !ok || !cmp.Equal(lines, []string{"exec c"}) {
		t.Fatalf("Lookup = %v, %v; want [exec c] (replaced, not merged)", lines, ok)
	}
	if _, ok := s.Lookup(ctx, "bedroom", "night"); ok {
		t.Fatalf("alias leaked to another device")
	}

	found, err := s.Delete(ctx, "living", "night")
	if err != nil || !found {
		t.Fatalf("Delete = %v, %v; want true, nil", found, err)
	}
	writes := ms.writes
	found, err = s.Delete(ctx, "living", "night")
	if err != nil || found {
		t.Fatalf("Delete missing = %v, %v; want false, nil", found, err)
	}
	if ms.writes != writes {
		t.Fatalf("Delete of missing alias wrote state")
	}

	if err := s.Set(ctx, "bedroom", map[string][]string{"a": {"cmdlist"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, s.Names(ctx, "bedroom")); diff != "" {
		t.Fatalf("Names (-want +got):\n%s", diff)
	}
}

func TestParseBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		run      []string
		edits    []Edit
		rejected []string
	}{
		{
			name: "define and run",
			text: "/preference night  morning\n+night\nexec tv_off\n\n  exec light_off 10m  \n-old\nignored line\n+morning\nexec curtain",
			run:  []string{"night", "morning"},
			edits: []Edit{
				{Name: "night", Lines: []string{"exec tv_off", "exec light_off 10m"}},
				{Name: "old", Delete: true},
				{Name: "morning", Lines: []string{"exec curtain"}},
			},
		},
		{
			name: "only run",
			text: "/preference night",
			run:  []string{"night"},
		},
		{
			name:  "empty definition",
			text:  "/preference\n+blank",
			edits: []Edit{{Name: "blank", Lines: []string{}}},
		},
		{
			name: "lines before any definition are dropped",
			text: "/preference\nexec a",
		},
		{
			name:     "invalid names are rejected with their lines",
			text:     "/preference\n+my alias\ncmdlist\n+a:b!\ntasklist\n-x y\n+ok\ncmdlist",
			edits:    []Edit{{Name: "ok", Lines: []string{"cmdlist"}}},
			rejected: []string{"my alias", "a:b!", "x y"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			run, edits, rejected := ParseBlock(tt.text)
			if diff := cmp.Diff(tt.run, run); diff != "" {
				t.Fatalf("run (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.edits, edits); diff != "" {
				t.Fatalf("edits (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.rejected, rejected); diff != "" {
				t.Fatalf("rejected (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyBlockInOneUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ms := &memState{st: storage.State{Preference: map[string]map[string][]string{
		"living": {"old": {"cmdlist"}, "keep": {"tasklist"}},
	}}}
	s := NewStore(ms)

	_, edits, _ := ParseBlock("/preference\n+night\nexec tv_off\n-old")
	got, err := s.Apply(ctx, "living", edits)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := map[string][]string{"night": {"exec tv_off"}, "keep": {"tasklist"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Apply (-want +got):\n%s", diff)
	}
	if ms.writes != 1 {
		t.Fatalf("writes = %d, want 1", ms.writes)
	}
}

func TestParseDefinition(t *testing.T) {
	t.Parallel()
	name, lines, err := ParseDefinition("night\n exec tv_off \n\nexec light_off")
	if err != nil || name != "night" || !cmp.Equal(lines, []string{"exec tv_off", "exec light_off"}) {
		t.Fatalf("ParseDefinition = %q, %v, %v", name, lines, err)
	}
	if _, _, err := ParseDefinition("night\n\n"); !errors.Is(err, ErrDefinitionFormat) {
		t.Fatalf("ParseDefinition with one line err = %v, want ErrDefinitionFormat", err)
	}
	_, _, err = ParseDefinition("bad name!\ncmdlist")
	var ne *NameError
	if !errors.As(err, &ne) || ne.Name != "bad name!" {
		t.Fatalf("ParseDefinition(bad name) err = %v, want *NameError", err)
	}
	if want := "bad name!: " + ircmd.MsgNameFormat; err.Error() != want {
		t.Fatalf("err = %q, want %q", err.Error(), want)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()
	got := Format(map[string][]string{"b": {"exec x"}, "a": {"cmdlist", "tasklist"}})
	want := "a\n    cmdlist\n    tasklist\nb\n    exec x"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestExpandContinuesPastBadLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ms := &memState{st: storage.State{Preference: map[string]map[string][]string{
		"living": {"night": {"exec tv_off", "bogus_cmd arg", "", "copy", "exec light 10m 1h 3"}},
	}}}
	x := NewExpander(NewStore(ms), ircmd.NewTranslator())

	steps, err := x.Expand(ctx, "living", "night", 42)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(steps))
	}

	var unknown *ircmd.UnknownCommandError
	if !errors.As(steps[1].Err, &unknown) || unknown.Name != "bogus_cmd" {
		t.Fatalf("step 1 err = %v, want unknown command bogus_cmd", steps[1].Err)
	}
	var verr *ircmd.ValidationError
	if !errors.As(steps[2].Err, &verr) || verr.Reason != ircmd.ReasonMissing {
		t.Fatalf("step 2 err = %v, want missing name", steps[2].Err)
	}

	recs := Records(steps)
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Name != "tv_off" || recs[1].Name != "light" || recs[1].Delay != 600 || recs[1].Freq != 3600 || recs[1].Remain != 3 {
		t.Fatalf("records = %+v", recs)
	}
	if recs[1].RequesterID != 42 {
		t.Fatalf("RequesterID = %d, want 42", recs[1].RequesterID)
	}
}

func TestExpandUnknownAlias(t *testing.T) {
	t.Parallel()
	x := NewExpander(NewStore(&memState{}), ircmd.NewTranslator())
	_, err := x.Expand(context.Background(), "living", "nope", 1)
	var nf *NotFoundError
	if !errors.As(err, &nf) || err.Error() != "alias nope not found" {
		t.Fatalf("Expand = %v, want alias nope not found", err)
	}
}

package alias

import (
	"context"
	"strings"

	"irbridge/internal/ircmd"
)

// Step is the outcome of one alias line. Exactly one of Record or Err is set.
type Step struct {
	Line   string
	Record ircmd.Record
	Err    error
}

// OK reports whether the line produced a record.
func (s Step) OK() bool { return s.Err == nil }

// Expander resolves aliases and translates their lines in order.
type Expander struct {
	store      *Store
	translator *ircmd.Translator
}

func NewExpander(store *Store, translator *ircmd.Translator) *Expander {
	return &Expander{store: store, translator: translator}
}

// Expand translates every line of alias name on device. An unknown alias
// returns *NotFoundError and no steps. A line that fails to translate yields
// a Step with Err set and expansion continues with the next line.
func (x *Expander) Expand(ctx context.Context, device, name string, requester int64) ([]Step, error) {
	lines, ok := x.store.Lookup(ctx, device, name)
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return x.ExpandLines(lines, requester), nil
}

// ExpandLines translates lines without an alias lookup.
func (x *Expander) ExpandLines(lines []string, requester int64) []Step {
	steps := make([]Step, 0, len(lines))
	for _, line := range lines {
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		normalized := strings.Join(f, " ")
		rec, err := x.translator.Translate(normalized, requester)
		if err != nil {
			steps = append(steps, Step{Line: normalized, Err: err})
			continue
		}
		steps = append(steps, Step{Line: normalized, Record: rec})
	}
	return steps
}

// Records returns the records of successful steps, in order.
func Records(steps []Step) []ircmd.Record {
	out := make([]ircmd.Record, 0, len(steps))
	for _, s := range steps {
		if s.OK() {
			out = append(out, s.Record)
		}
	}
	return out
}

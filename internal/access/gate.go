// Package access decides who may issue gated commands and maintains the
// authorized user list.
package access

import (
	"context"
	"errors"
	"slices"

	"irbridge/internal/storage"
)

// Reply texts for rejected requests.
const (
	MsgAuthRequired = "authentication required"
	MsgAdminOnly    = "only administrators can operate"
)

var (
	ErrUnauthorized = errors.New(MsgAuthRequired)
	ErrNotAdmin     = errors.New(MsgAdminOnly)
)

// StateStore is the read-modify-write surface of state.Manager.
type StateStore interface {
	Snapshot(ctx context.Context) storage.State
	Update(ctx context.Context, fn func(st *storage.State) bool) (storage.State, error)
	Admin() int64
}

// Gate answers authorization questions against the persisted user list.
type Gate struct {
	state StateStore
}

func NewGate(state StateStore) *Gate {
	return &Gate{state: state}
}

// Admin returns the administrator id.
func (g *Gate) Admin() int64 { return g.state.Admin() }

// IsAuthorized reports whether id is in the user list. The administrator is
// always authorized.
func (g *Gate) IsAuthorized(ctx context.Context, id int64) bool {
	if id != 0 && id == g.state.Admin() {
		return true
	}
	return slices.Contains(g.state.Snapshot(ctx).Users, id)
}

// RequireAdmin reports whether id is the administrator.
func (g *Gate) RequireAdmin(id int64) bool {
	admin := g.state.Admin()
	return admin != 0 && id == admin
}

// Users returns the current user list.
func (g *Gate) Users(ctx context.Context) []int64 {
	return g.state.Snapshot(ctx).Users
}

// AddUser authorizes id. Adding a present id writes nothing.
func (g *Gate) AddUser(ctx context.Context, id int64) error {
	return g.Apply(ctx, []Change{{ID: id}})
}

// RemoveUser revokes id. Removing the administrator is a no-op.
func (g *Gate) RemoveUser(ctx context.Context, id int64) error {
	return g.Apply(ctx, []Change{{ID: id, Remove: true}})
}

// Apply runs a batch of changes in one state update.
func (g *Gate) Apply(ctx context.Context, changes []Change) error {
	admin := g.state.Admin()
	_, err := g.state.Update(ctx, func(st *storage.State) bool {
		changed := false
		for _, c := range changes {
			i := slices.Index(st.Users, c.ID)
			switch {
			case c.Remove && i >= 0 && c.ID != admin:
				st.Users = slices.Delete(st.Users, i, i+1)
				changed = true
			case !c.Remove && i < 0:
				st.Users = append(st.Users, c.ID)
				changed = true
			}
		}
		return changed
	})
	return err
}

// Change adds or removes one user id.
type Change struct {
	ID     int64
	Remove bool
}

// ParseUsermod extracts id changes from usermod arguments. Every run of
// decimal digits is an id; a run directly preceded by '-' is a removal,
// anything else an addition. Other characters only separate runs.
func ParseUsermod(args string) []Change {
	var out []Change
	r := []rune(args)
	for i := 0; i < len(r); {
		if r[i] < '0' || r[i] > '9' {
			i++
			continue
		}
		remove := i > 0 && r[i-1] == '-'
		var id int64
		overflow := false
		for i < len(r) && r[i] >= '0' && r[i] <= '9' {
			d := int64(r[i] - '0')
			if id > (1<<63-1-d)/10 {
				overflow = true
			}
			id = id*10 + d
			i++
		}
		if !overflow {
			out = append(out, Change{ID: id, Remove: remove})
		}
	}
	return out
}

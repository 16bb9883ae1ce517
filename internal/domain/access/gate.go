package access

import (
	"context"
	"errors"

	"github.com/vitalguard/careboard/internal/domain/identity"
	"github.com/vitalguard/careboard/internal/platform/auth"
)

// Directory is the part of the identity store the gate reads.
type Directory interface {
	Get(ctx context.Context, uid string) (*identity.User, error)
	SyncAssignments(ctx context.Context, patientIDs []string) (int, error)
}

// Gate applies Scope to authenticated principals, looking up their
// assignment lists in the identity store.
type Gate[T Record] struct {
	users  Directory
	scoper *Scoper[T]
}

func NewGate[T Record](users Directory) *Gate[T] {
	return &Gate[T]{users: users, scoper: NewScoper[T]()}
}

// Viewer resolves p's assignment list. A principal whose account has
// disappeared is scoped as an unknown role.
func (g *Gate[T]) Viewer(ctx context.Context, p auth.Principal) (Viewer, error) {
	if p.Role == auth.RoleAdmin {
		return Viewer{UID: p.UID, Role: p.Role}, nil
	}
	u, err := g.users.Get(ctx, p.UID)
	if errors.Is(err, identity.ErrNotFound) {
		return Viewer{UID: p.UID}, nil
	}
	if err != nil {
		return Viewer{}, err
	}
	return Viewer{UID: u.UID, Role: u.Role, Assigned: u.AssignedPatientIDs}, nil
}

// Visible returns the records p may see. records is the directory at
// version. Auto-assignment, when enabled in the identity store, runs first.
func (g *Gate[T]) Visible(ctx context.Context, p auth.Principal, version uint64, records []T) ([]T, error) {
	if len(records) > 0 && p.Role != auth.RoleAdmin {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.RecordID()
		}
		if _, err := g.users.SyncAssignments(ctx, ids); err != nil {
			return nil, err
		}
	}
	v, err := g.Viewer(ctx, p)
	if err != nil {
		return nil, err
	}
	return g.scoper.Scope(v, version, records), nil
}

// CanSee reports whether the record with id is in p's visible set.
func (g *Gate[T]) CanSee(ctx context.Context, p auth.Principal, version uint64, records []T, id string) (bool, error) {
	visible, err := g.Visible(ctx, p, version, records)
	if err != nil {
		return false, err
	}
	for _, r := range visible {
		if r.RecordID() == id {
			return true, nil
		}
	}
	return false, nil
}

package consent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/platform/db"
)

type memoryRepo struct {
	mu sync.RWMutex
	// grants is kept newest first.
	grants []*Grant
}

func NewMemoryRepo() Repository {
	return &memoryRepo{}
}

func (r *memoryRepo) Create(ctx context.Context, g *Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants = append([]*Grant{clone(g)}, r.grants...)
	db.OnRollback(ctx, func() { r.remove(g.ID) })
	return nil
}

func (r *memoryRepo) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, g := range r.grants {
		if g.ID == id {
			r.grants = append(r.grants[:i], r.grants[i+1:]...)
			return
		}
	}
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.grants {
		if g.ID == id {
			return clone(g), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) List(_ context.Context) ([]*Grant, error) {
	return r.filter(func(*Grant) bool { return true }), nil
}

func (r *memoryRepo) ListByPatient(_ context.Context, patientUID string) ([]*Grant, error) {
	return r.filter(func(g *Grant) bool { return g.PatientUID == patientUID }), nil
}

func (r *memoryRepo) ListActiveForPatientName(_ context.Context, patientName string) ([]*Grant, error) {
	return r.filter(func(g *Grant) bool {
		return g.Status == StatusActive && g.PatientName == patientName
	}), nil
}

func (r *memoryRepo) Transition(ctx context.Context, id uuid.UUID, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.grants {
		if g.ID != id {
			continue
		}
		if g.Status != from {
			return ErrNotActive
		}
		g.Status = to
		db.OnRollback(ctx, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if g.Status == to {
				g.Status = from
			}
		})
		return nil
	}
	return ErrNotFound
}

func (r *memoryRepo) ExpireDue(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, g := range r.grants {
		if g.Status == StatusActive && g.IsExpired(now) {
			g.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) filter(keep func(*Grant) bool) []*Grant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Grant{}
	for _, g := range r.grants {
		if keep(g) {
			out = append(out, clone(g))
		}
	}
	return out
}

func clone(g *Grant) *Grant {
	cp := *g
	if g.ExpiresAt != nil {
		t := *g.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

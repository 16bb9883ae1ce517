package audit

import (
	"context"
	"sync"

	"github.com/vitalguard/careboard/internal/platform/db"
)

type memoryRepo struct {
	mu sync.RWMutex
	// entries is kept newest first.
	entries []*Entry
}

func NewMemoryRepo() Repository {
	return &memoryRepo{}
}

func (r *memoryRepo) Append(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries = append([]*Entry{&cp}, r.entries...)
	db.OnRollback(ctx, func() { r.remove(&cp) })
	return nil
}

func (r *memoryRepo) remove(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range r.entries {
		if x == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Entry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return page(r.entries, limit, offset), len(r.entries), nil
}

func (r *memoryRepo) ListByActor(_ context.Context, actorUID string, limit, offset int) ([]*Entry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*Entry
	for _, e := range r.entries {
		if e.ActorUID == actorUID {
			matched = append(matched, e)
		}
	}
	return page(matched, limit, offset), len(matched), nil
}

func page(entries []*Entry, limit, offset int) []*Entry {
	if offset >= len(entries) {
		return []*Entry{}
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*Entry, 0, end-offset)
	for _, e := range entries[offset:end] {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

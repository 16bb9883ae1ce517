package teamchat

import (
	"context"
	"sync"
)

type memoryRepo struct {
	mu       sync.RWMutex
	messages []Message
}

func NewMemoryRepo() Repository {
	return &memoryRepo{}
}

func (r *memoryRepo) Append(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *m)
	return nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Message, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := len(r.messages)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := make([]*Message, 0, end-offset)
	for i := offset; i < end; i++ {
		m := r.messages[i]
		out = append(out, &m)
	}
	return out, total, nil
}

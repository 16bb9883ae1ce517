// Package access decides which patient records and dashboard pages a
// signed-in identity may reach.
package access

import (
	"strings"
	"sync"

	"github.com/vitalguard/careboard/internal/platform/auth"
)

// Record is anything with a patient identifier.
type Record interface {
	RecordID() string
}

// Viewer is the identity a scope is computed for.
type Viewer struct {
	UID      string
	Role     string
	Assigned []string
}

// Scope filters records down to what v may see, preserving order.
//
// Patients with no assignments see the first record in the directory. This
// is a single-patient demo default and not an access rule worth keeping in a
// multi-tenant deployment.
func Scope[T Record](v Viewer, records []T) []T {
	switch v.Role {
	case auth.RoleAdmin:
		return append([]T{}, records...)
	case auth.RolePatient:
		if len(v.Assigned) == 0 {
			if len(records) == 0 {
				return []T{}
			}
			return []T{records[0]}
		}
		return assigned(v.Assigned, records)
	case auth.RoleDoctor, auth.RoleNurse:
		return assigned(v.Assigned, records)
	default:
		return []T{}
	}
}

func assigned[T Record](ids []string, records []T) []T {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := []T{}
	for _, r := range records {
		if _, ok := set[r.RecordID()]; ok {
			out = append(out, r)
		}
	}
	return out
}

type memo[T Record] struct {
	assignments string
	version     uint64
	result      []T
}

// Scoper memoizes Scope per viewer. A cached result is reused only while the
// viewer's role, its assignment list and the directory version are unchanged.
type Scoper[T Record] struct {
	mu    sync.Mutex
	cache map[string]memo[T]
}

func NewScoper[T Record]() *Scoper[T] {
	return &Scoper[T]{cache: make(map[string]memo[T])}
}

// Scope returns the visible subset of records, which must be the directory
// at the given version.
func (s *Scoper[T]) Scope(v Viewer, version uint64, records []T) []T {
	key := v.UID + "|" + v.Role
	assignments := strings.Join(v.Assigned, "\x00")

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.cache[key]; ok && m.version == version && m.assignments == assignments {
		return append([]T{}, m.result...)
	}
	result := Scope(v, records)
	s.cache[key] = memo[T]{assignments: assignments, version: version, result: result}
	return append([]T{}, result...)
}

// Forget drops every cached scope for uid.
func (s *Scoper[T]) Forget(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.cache {
		if strings.HasPrefix(key, uid+"|") {
			delete(s.cache, key)
		}
	}
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vitalguard/careboard/internal/platform/auth"
)

// Messages shown to the user verbatim.
var (
	ErrAccountExists   = errors.New("Account already exists. Use Login.")
	ErrNoAccount       = errors.New("No account found. Please Sign Up first.")
	ErrPendingApproval = errors.New("Your account is pending admin approval.")
	ErrNotFound        = errors.New("user not found")
)

// Service is the identity and role store. All mutations are
// read-modify-write of the whole list, serialized by mu.
type Service struct {
	mu         sync.Mutex
	store      Store
	autoAssign bool
	now        func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// EnableAutoAssign turns on round-robin assignment in SyncAssignments.
func (s *Service) EnableAutoAssign(on bool) {
	s.autoAssign = on
}

type SignupInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if !ValidRole(in.Role) {
		return nil, fmt.Errorf("invalid role: %s", in.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if find(users, email, in.Role) != nil {
		return nil, ErrAccountExists
	}

	count := 0
	for _, u := range users {
		if u.Role == in.Role {
			count++
		}
	}

	u := &User{
		UID:                fmt.Sprintf("%s-%04d", rolePrefix[in.Role], count+1),
		Name:               name,
		Email:              email,
		Role:               in.Role,
		ApprovalStatus:     StatusApproved,
		AssignedPatientIDs: []string{},
		StatusMessage:      "Active",
		CreatedAt:          s.now().UTC(),
	}
	if NeedsApproval(in.Role) {
		u.ApprovalStatus = StatusPending
		u.StatusMessage = "Awaiting admin approval"
	}

	if err := s.store.Save(ctx, append([]*User{u}, users...)); err != nil {
		return nil, err
	}
	return clone(u), nil
}

func (s *Service) Login(ctx context.Context, email, role string) (*User, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	u := find(users, normalizeEmail(email), role)
	if u == nil {
		return nil, ErrNoAccount
	}
	if u.ApprovalStatus == StatusPending {
		return nil, ErrPendingApproval
	}
	return clone(u), nil
}

func (s *Service) Approve(ctx context.Context, email, role string) (*User, error) {
	return s.update(ctx, func(users []*User) *User {
		u := find(users, normalizeEmail(email), role)
		if u != nil {
			u.ApprovalStatus = StatusApproved
			u.StatusMessage = "Approved"
		}
		return u
	})
}

// AssignPatients replaces the user's assignment list.
func (s *Service) AssignPatients(ctx context.Context, uid string, patientIDs []string) (*User, error) {
	return s.update(ctx, func(users []*User) *User {
		u := findUID(users, uid)
		if u != nil {
			assign(u, patientIDs)
		}
		return u
	})
}

// AddAssignment appends one patient to the user's list if it is not
// already there.
func (s *Service) AddAssignment(ctx context.Context, uid, patientID string) error {
	_, err := s.update(ctx, func(users []*User) *User {
		u := findUID(users, uid)
		if u == nil {
			return nil
		}
		for _, id := range u.AssignedPatientIDs {
			if id == patientID {
				return u
			}
		}
		assign(u, append(u.AssignedPatientIDs, patientID))
		return u
	})
	return err
}

func assign(u *User, patientIDs []string) {
	u.AssignedPatientIDs = append([]string{}, patientIDs...)
	if len(patientIDs) > 0 {
		u.StatusMessage = fmt.Sprintf("Assigned %d patient(s)", len(patientIDs))
	}
}

// SyncAssignments gives every approved doctor or nurse, and every patient
// account, with no assignments one patient record, round-robin by position
// within its group. It does nothing unless auto-assignment is enabled and
// returns how many users changed.
func (s *Service) SyncAssignments(ctx context.Context, patientIDs []string) (int, error) {
	if !s.autoAssign || len(patientIDs) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}

	var staff, patients []*User
	for _, u := range users {
		switch {
		case NeedsApproval(u.Role) && u.ApprovalStatus == StatusApproved:
			staff = append(staff, u)
		case u.Role == auth.RolePatient:
			patients = append(patients, u)
		}
	}

	changed := 0
	for _, group := range [][]*User{staff, patients} {
		for idx, u := range group {
			if len(u.AssignedPatientIDs) == 0 {
				assign(u, []string{patientIDs[idx%len(patientIDs)]})
				changed++
			}
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, s.store.Save(ctx, users)
}

func (s *Service) Get(ctx context.Context, uid string) (*User, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	u := findUID(users, uid)
	if u == nil {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

// List returns users newest first, optionally filtered by role and status.
func (s *Service) List(ctx context.Context, role string, status ApprovalStatus) ([]*User, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []*User{}
	for _, u := range users {
		if role != "" && u.Role != role {
			continue
		}
		if status != "" && u.ApprovalStatus != status {
			continue
		}
		out = append(out, clone(u))
	}
	return out, nil
}

func (s *Service) load(ctx context.Context) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(ctx)
}

func (s *Service) update(ctx context.Context, fn func([]*User) *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	u := fn(users)
	if u == nil {
		return nil, ErrNotFound
	}
	if err := s.store.Save(ctx, users); err != nil {
		return nil, err
	}
	return clone(u), nil
}

func find(users []*User, email, role string) *User {
	for _, u := range users {
		if strings.ToLower(u.Email) == email && u.Role == role {
			return u
		}
	}
	return nil
}

func findUID(users []*User, uid string) *User {
	for _, u := range users {
		if u.UID == uid {
			return u
		}
	}
	return nil
}

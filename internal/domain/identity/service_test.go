package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalguard/careboard/internal/platform/auth"
)

func newTestService() *Service {
	svc := NewService(NewMemoryStore())
	svc.now = func() time.Time { return time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestSignup_UIDsPerRole(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	a, err := svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Role: auth.RoleAdmin})
	require.NoError(t, err)
	d1, err := svc.Signup(ctx, SignupInput{Name: "Dee", Email: "dee@example.com", Role: auth.RoleDoctor})
	require.NoError(t, err)
	d2, err := svc.Signup(ctx, SignupInput{Name: "Dan", Email: "dan@example.com", Role: auth.RoleDoctor})
	require.NoError(t, err)
	p, err := svc.Signup(ctx, SignupInput{Name: "Pia", Email: "pia@example.com", Role: auth.RolePatient})
	require.NoError(t, err)
	n, err := svc.Signup(ctx, SignupInput{Name: "Ned", Email: "ned@example.com", Role: auth.RoleNurse})
	require.NoError(t, err)

	assert.Equal(t, "ADM-0001", a.UID)
	assert.Equal(t, "DOC-0001", d1.UID)
	assert.Equal(t, "DOC-0002", d2.UID)
	assert.Equal(t, "PAT-0001", p.UID)
	assert.Equal(t, "NRS-0001", n.UID)
}

func TestSignup_ApprovalByRole(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		role    string
		status  ApprovalStatus
		message string
	}{
		{auth.RoleAdmin, StatusApproved, "Active"},
		{auth.RolePatient, StatusApproved, "Active"},
		{auth.RoleDoctor, StatusPending, "Awaiting admin approval"},
		{auth.RoleNurse, StatusPending, "Awaiting admin approval"},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			u, err := svc.Signup(ctx, SignupInput{Name: "X", Email: "x@example.com", Role: tt.role})
			require.NoError(t, err)
			assert.Equal(t, tt.status, u.ApprovalStatus)
			assert.Equal(t, tt.message, u.StatusMessage)
			assert.Empty(t, u.AssignedPatientIDs)
		})
	}
}

func TestSignup_NormalizesAndRejectsDuplicates(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, SignupInput{Name: "  Pia  ", Email: "  Pia@Example.COM ", Role: auth.RolePatient})
	require.NoError(t, err)
	assert.Equal(t, "pia@example.com", u.Email)
	assert.Equal(t, "Pia", u.Name)

	_, err = svc.Signup(ctx, SignupInput{Name: "Pia", Email: "PIA@example.com", Role: auth.RolePatient})
	assert.ErrorIs(t, err, ErrAccountExists)
	assert.EqualError(t, err, "Account already exists. Use Login.")

	_, err = svc.Signup(ctx, SignupInput{Name: "Pia", Email: "pia@example.com", Role: auth.RoleNurse})
	assert.NoError(t, err, "same email under another role is a separate account")
}

func TestSignup_Validation(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name string
		in   SignupInput
	}{
		{"missing name", SignupInput{Email: "a@b.c", Role: auth.RoleAdmin}},
		{"missing email", SignupInput{Name: "A", Role: auth.RoleAdmin}},
		{"unknown role", SignupInput{Name: "A", Email: "a@b.c", Role: "JANITOR"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tt.in)
			assert.Error(t, err)
		})
	}
}

func TestLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, _ = svc.Signup(ctx, SignupInput{Name: "Dee", Email: "dee@example.com", Role: auth.RoleDoctor})

	_, err := svc.Login(ctx, "nobody@example.com", auth.RoleDoctor)
	assert.EqualError(t, err, "No account found. Please Sign Up first.")

	_, err = svc.Login(ctx, "dee@example.com", auth.RoleNurse)
	assert.ErrorIs(t, err, ErrNoAccount)

	_, err = svc.Login(ctx, "dee@example.com", auth.RoleDoctor)
	assert.EqualError(t, err, "Your account is pending admin approval.")

	approved, err := svc.Approve(ctx, "DEE@example.com", auth.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, "Approved", approved.StatusMessage)

	u, err := svc.Login(ctx, " Dee@Example.com", auth.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, "DOC-0001", u.UID)
}

func TestApprove_Unknown(t *testing.T) {
	_, err := newTestService().Approve(context.Background(), "x@example.com", auth.RoleNurse)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignPatients(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u, _ := svc.Signup(ctx, SignupInput{Name: "Pia", Email: "pia@example.com", Role: auth.RolePatient})

	got, err := svc.AssignPatients(ctx, u.UID, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, got.AssignedPatientIDs)
	assert.Equal(t, "Assigned 2 patient(s)", got.StatusMessage)

	got, err = svc.AssignPatients(ctx, u.UID, nil)
	require.NoError(t, err)
	assert.Empty(t, got.AssignedPatientIDs)
	assert.Equal(t, "Assigned 2 patient(s)", got.StatusMessage, "clearing keeps the last message")

	_, err = svc.AssignPatients(ctx, "PAT-9999", []string{"p1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncAssignments_DisabledByDefault(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, _ = svc.Signup(ctx, SignupInput{Name: "Pia", Email: "pia@example.com", Role: auth.RolePatient})

	n, err := svc.SyncAssignments(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Zero(t, n)

	u, _ := svc.Get(ctx, "PAT-0001")
	assert.Empty(t, u.AssignedPatientIDs)
}

func TestSyncAssignments_RoundRobin(t *testing.T) {
	svc := newTestService()
	svc.EnableAutoAssign(true)
	ctx := context.Background()

	for _, email := range []string{"d1@x.io", "d2@x.io", "d3@x.io"} {
		_, err := svc.Signup(ctx, SignupInput{Name: "D", Email: email, Role: auth.RoleDoctor})
		require.NoError(t, err)
		_, err = svc.Approve(ctx, email, auth.RoleDoctor)
		require.NoError(t, err)
	}
	_, _ = svc.Signup(ctx, SignupInput{Name: "N", Email: "pending@x.io", Role: auth.RoleNurse})
	_, _ = svc.Signup(ctx, SignupInput{Name: "P", Email: "p@x.io", Role: auth.RolePatient})
	_, _ = svc.Signup(ctx, SignupInput{Name: "A", Email: "a@x.io", Role: auth.RoleAdmin})

	n, err := svc.SyncAssignments(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Users are stored newest first, so the round-robin runs DOC-0003, DOC-0002, DOC-0001.
	staff, _ := svc.List(ctx, auth.RoleDoctor, "")
	require.Len(t, staff, 3)
	assert.Equal(t, []string{"p1"}, staff[0].AssignedPatientIDs)
	assert.Equal(t, []string{"p2"}, staff[1].AssignedPatientIDs)
	assert.Equal(t, []string{"p1"}, staff[2].AssignedPatientIDs)

	pending, _ := svc.List(ctx, auth.RoleNurse, StatusPending)
	require.Len(t, pending, 1)
	assert.Empty(t, pending[0].AssignedPatientIDs)

	admins, _ := svc.List(ctx, auth.RoleAdmin, "")
	assert.Empty(t, admins[0].AssignedPatientIDs)

	n, err = svc.SyncAssignments(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Zero(t, n, "users with assignments are left alone")
}

func TestSyncAssignments_NoPatients(t *testing.T) {
	svc := newTestService()
	svc.EnableAutoAssign(true)
	_, _ = svc.Signup(context.Background(), SignupInput{Name: "P", Email: "p@x.io", Role: auth.RolePatient})

	n, err := svc.SyncAssignments(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddAssignment(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	d, err := svc.Signup(ctx, SignupInput{Name: "Dee", Email: "dee@example.com", Role: auth.RoleDoctor})
	require.NoError(t, err)

	require.NoError(t, svc.AddAssignment(ctx, d.UID, "p-1"))
	require.NoError(t, svc.AddAssignment(ctx, d.UID, "p-2"))
	require.NoError(t, svc.AddAssignment(ctx, d.UID, "p-1"))

	got, err := svc.Get(ctx, d.UID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1", "p-2"}, got.AssignedPatientIDs)
	assert.Equal(t, "Assigned 2 patient(s)", got.StatusMessage)

	assert.ErrorIs(t, svc.AddAssignment(ctx, "DOC-9999", "p-1"), ErrNotFound)
}

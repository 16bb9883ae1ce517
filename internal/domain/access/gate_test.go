package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalguard/careboard/internal/domain/identity"
	"github.com/vitalguard/careboard/internal/platform/auth"
)

func TestGate_UsesStoredAssignments(t *testing.T) {
	ctx := context.Background()
	users := identity.NewService(identity.NewMemoryStore())
	doc, err := users.Signup(ctx, identity.SignupInput{Name: "D", Email: "d@x.io", Role: auth.RoleDoctor})
	require.NoError(t, err)
	_, err = users.Approve(ctx, "d@x.io", auth.RoleDoctor)
	require.NoError(t, err)
	_, err = users.AssignPatients(ctx, doc.UID, []string{"p7"})
	require.NoError(t, err)

	g := NewGate[rec](users)
	visible, err := g.Visible(ctx, doc.Principal(), 1, directory)
	require.NoError(t, err)
	assert.Equal(t, []rec{"p7"}, visible)

	ok, err := g.CanSee(ctx, doc.Principal(), 1, directory, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = users.AssignPatients(ctx, doc.UID, []string{"p1"})
	require.NoError(t, err)
	ok, err = g.CanSee(ctx, doc.Principal(), 1, directory, "p1")
	require.NoError(t, err)
	assert.True(t, ok, "new assignments take effect without a directory change")
}

func TestGate_UnknownAccountSeesNothing(t *testing.T) {
	g := NewGate[rec](identity.NewService(identity.NewMemoryStore()))
	visible, err := g.Visible(context.Background(), auth.Principal{UID: "PAT-0042", Role: auth.RolePatient}, 1, directory)
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestGate_AdminSkipsLookup(t *testing.T) {
	g := NewGate[rec](identity.NewService(identity.NewMemoryStore()))
	visible, err := g.Visible(context.Background(), auth.Principal{UID: "ADM-0001", Role: auth.RoleAdmin}, 1, directory)
	require.NoError(t, err)
	assert.Equal(t, directory, visible)
}

func TestGate_AutoAssign(t *testing.T) {
	ctx := context.Background()
	users := identity.NewService(identity.NewMemoryStore())
	users.EnableAutoAssign(true)
	p, _ := users.Signup(ctx, identity.SignupInput{Name: "P", Email: "p@x.io", Role: auth.RolePatient})

	g := NewGate[rec](users)
	visible, err := g.Visible(ctx, p.Principal(), 1, []rec{"p3", "p1"})
	require.NoError(t, err)
	assert.Equal(t, []rec{"p3"}, visible)

	stored, _ := users.Get(ctx, p.UID)
	assert.Equal(t, []string{"p3"}, stored.AssignedPatientIDs)
}

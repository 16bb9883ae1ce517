package consent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("consent grant not found")
	ErrNotActive   = errors.New("consent grant is not active")
	ErrPatientOnly = errors.New("only patients can grant consent")
	ErrForbidden   = errors.New("not allowed to change this consent grant")
)

// Repository stores grants. List methods return newest first.
type Repository interface {
	Create(ctx context.Context, g *Grant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Grant, error)
	List(ctx context.Context) ([]*Grant, error)
	ListByPatient(ctx context.Context, patientUID string) ([]*Grant, error)
	ListActiveForPatientName(ctx context.Context, patientName string) ([]*Grant, error)
	// Transition moves grant id from one status to another and returns
	// ErrNotActive when the grant is not in the from status.
	Transition(ctx context.Context, id uuid.UUID, from, to Status) error
	// ExpireDue moves every active grant with expires_at before now to
	// EXPIRED and returns how many changed.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

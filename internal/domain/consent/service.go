package consent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/platform/auth"
	"github.com/vitalguard/careboard/internal/platform/db"
	"github.com/vitalguard/careboard/internal/platform/fingerprint"
)

// Ledger creates, expires and answers eligibility questions about grants.
type Ledger struct {
	repo  Repository
	audit audit.Recorder
	tx    db.Transactor
	now   func() time.Time
}

func NewLedger(repo Repository, recorder audit.Recorder) *Ledger {
	return &Ledger{repo: repo, audit: recorder, tx: db.UndoTransactor{}, now: time.Now}
}

// SetTransactor replaces the in-memory transactor, typically with a
// db.PoolTransactor for the postgres backend.
func (l *Ledger) SetTransactor(tx db.Transactor) { l.tx = tx }

// WithClock replaces the ledger's time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

type GrantInput struct {
	GranteeType GranteeType `json:"granteeType"`
	GranteeName string      `json:"granteeName"`
	Duration    Duration    `json:"duration"`
}

func (l *Ledger) Grant(ctx context.Context, actor audit.Actor, in GrantInput) (*Grant, error) {
	if actor.Role != auth.RolePatient {
		return nil, ErrPatientOnly
	}
	in.GranteeName = strings.TrimSpace(in.GranteeName)
	if in.GranteeName == "" {
		return nil, fmt.Errorf("granteeName is required")
	}
	if !in.GranteeType.Valid() {
		return nil, fmt.Errorf("invalid granteeType: %s", in.GranteeType)
	}
	if !in.Duration.Valid() {
		return nil, fmt.Errorf("invalid duration: %s", in.Duration)
	}

	now := l.now()
	g := &Grant{
		ID:          uuid.New(),
		PatientUID:  actor.UID,
		PatientName: actor.Name,
		GranteeType: in.GranteeType,
		GranteeName: in.GranteeName,
		Duration:    in.Duration,
		CreatedAt:   now,
		ExpiresAt:   ExpiryFor(in.Duration, now),
		Status:      StatusActive,
		Fingerprint: fingerprint.TransactionID(actor.Name+"-"+in.GranteeName, now),
	}
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		if err := l.repo.Create(ctx, g); err != nil {
			return fmt.Errorf("store consent grant: %w", err)
		}
		_, err := l.audit.Record(ctx, audit.Event{
			Actor:  actor,
			Action: "Granted consent",
			Target: string(g.GranteeType) + ":" + g.GranteeName,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// SweepExpirations expires every active grant whose expiry has passed.
// Running it again without the clock moving changes nothing.
func (l *Ledger) SweepExpirations(ctx context.Context) (int, error) {
	return l.repo.ExpireDue(ctx, l.now())
}

// IsAccessEligible reports whether patientName has an active grant naming
// granteeName, or any active hospital grant.
func (l *Ledger) IsAccessEligible(ctx context.Context, patientName, granteeName string) (bool, error) {
	grants, err := l.repo.ListActiveForPatientName(ctx, patientName)
	if err != nil {
		return false, err
	}
	for _, g := range grants {
		if g.GranteeName == granteeName || g.GranteeType == GranteeHospital {
			return true, nil
		}
	}
	return false, nil
}

// Revoke moves an active grant to REVOKED. Only the owning patient or an
// admin may revoke.
func (l *Ledger) Revoke(ctx context.Context, actor audit.Actor, id uuid.UUID) (*Grant, error) {
	g, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := actor.Role == auth.RolePatient && actor.UID == g.PatientUID
	if !owner && actor.Role != auth.RoleAdmin {
		return nil, ErrForbidden
	}
	err = l.tx.InTx(ctx, func(ctx context.Context) error {
		if err := l.repo.Transition(ctx, id, StatusActive, StatusRevoked); err != nil {
			return err
		}
		_, err := l.audit.Record(ctx, audit.Event{
			Actor:  actor,
			Action: "Revoked consent",
			Target: string(g.GranteeType) + ":" + g.GranteeName,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	g.Status = StatusRevoked
	return g, nil
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*Grant, error) {
	return l.repo.GetByID(ctx, id)
}

// ListFor returns the patient's own grants, or every grant for other roles.
func (l *Ledger) ListFor(ctx context.Context, actor audit.Actor) ([]*Grant, error) {
	if actor.Role == auth.RolePatient {
		return l.repo.ListByPatient(ctx, actor.UID)
	}
	return l.repo.List(ctx)
}

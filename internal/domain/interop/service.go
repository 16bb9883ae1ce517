// Package interop shares a patient record with an external hospital when the
// consent ledger allows it.
package interop

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/domain/patient"
)

// Hospitals are the external networks offered for sharing.
var Hospitals = []string{
	"Metro Hospital Network",
	"NorthCare Medical Group",
	"Central Health Exchange",
}

const (
	ActionShared = "Shared record with external hospital"
	ActionDenied = "Interoperability denied (no consent)"

	ReasonConsent   = "Active consent on record"
	ReasonNoConsent = "No active consent for selected transfer"
)

// Consents is the part of the consent ledger sharing depends on.
type Consents interface {
	SweepExpirations(ctx context.Context) (int, error)
	IsAccessEligible(ctx context.Context, patientName, granteeName string) (bool, error)
}

// Records resolves a visible patient.
type Records interface {
	View(ctx context.Context, id uuid.UUID) (*patient.View, error)
}

type Result struct {
	Granted     bool   `json:"granted"`
	Reason      string `json:"reason"`
	Fingerprint string `json:"fingerprint"`
	Patient     string `json:"patient"`
	Hospital    string `json:"hospital"`
}

type Service struct {
	consents Consents
	records  Records
	recorder audit.Recorder
}

func NewService(consents Consents, records Records, recorder audit.Recorder) *Service {
	return &Service{consents: consents, records: records, recorder: recorder}
}

// Share expires lapsed consents, checks eligibility, and audits the outcome
// either way. A denial is a normal result, not an error.
func (s *Service) Share(ctx context.Context, patientID uuid.UUID, hospital string) (*Result, error) {
	hospital = strings.TrimSpace(hospital)
	if hospital == "" {
		return nil, fmt.Errorf("hospital is required")
	}
	v, err := s.records.View(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if _, err := s.consents.SweepExpirations(ctx); err != nil {
		return nil, fmt.Errorf("sweep consents: %w", err)
	}
	ok, err := s.consents.IsAccessEligible(ctx, v.Name, hospital)
	if err != nil {
		return nil, err
	}

	res := &Result{Granted: ok, Reason: ReasonConsent, Patient: v.Name, Hospital: hospital}
	action := ActionShared
	if !ok {
		res.Reason = ReasonNoConsent
		action = ActionDenied
	}
	entry, err := s.recorder.Record(ctx, audit.Event{
		Actor:  audit.ActorFromContext(ctx),
		Action: action,
		Target: v.Name + " -> " + hospital,
	})
	if err != nil {
		return nil, err
	}
	res.Fingerprint = entry.Fingerprint
	return res, nil
}

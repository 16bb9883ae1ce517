// Package integrity recomputes a record's content digest and compares it
// with a second digest standing in for an external ledger. The digest is
// the non-cryptographic DJB2 variant from platform/fingerprint, so a match
// shows only that two computations agree.
package integrity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/platform/fingerprint"
)

// Source names where the ledger digest came from.
const Source = "local-digest"

// Proof is the outcome of one verification.
type Proof struct {
	PatientID     string                   `json:"patientId"`
	PatientName   string                   `json:"patientName"`
	RecordDigest  string                   `json:"recordDigest"`
	LedgerDigest  string                   `json:"ledgerDigest"`
	Status        audit.VerificationStatus `json:"status"`
	TransactionID string                   `json:"transactionId"`
	Source        string                   `json:"source"`
	Timestamp     time.Time                `json:"timestamp"`
}

// Payload is the canonical string a record's digest is computed over.
func Payload(id string, lastUpdated time.Time, statusLevel string) string {
	return id + "-" + lastUpdated.UTC().Format(time.RFC3339Nano) + "-" + statusLevel
}

// Compute builds the proof for v. With simulateTamper the ledger digest is
// taken over a mutated payload, so the result is always Tampered.
func Compute(v *patient.View, simulateTamper bool, now time.Time) Proof {
	payload := Payload(v.ID, v.LastUpdated, v.StatusLevel)
	record := fingerprint.Digest(payload)
	ledger := record
	if simulateTamper {
		ledger = fingerprint.Digest(payload + "-tampered")
	}
	status := audit.Verified
	if !fingerprint.Equal(record, ledger) {
		status = audit.Tampered
	}
	return Proof{
		PatientID:     v.ID,
		PatientName:   v.Name,
		RecordDigest:  record,
		LedgerDigest:  ledger,
		Status:        status,
		TransactionID: fingerprint.TransactionID("verify-"+v.ID, now),
		Source:        Source,
		Timestamp:     now.UTC(),
	}
}

// Records is the part of the patient service the verifier reads. View
// enforces the caller's visibility.
type Records interface {
	View(ctx context.Context, id uuid.UUID) (*patient.View, error)
}

// Verifier runs verifications and keeps them in an in-memory log, newest
// first. The log does not survive a restart; the audit trail does.
type Verifier struct {
	records  Records
	recorder audit.Recorder
	now      func() time.Time

	mu  sync.RWMutex
	log []Proof
}

func NewVerifier(records Records, recorder audit.Recorder) *Verifier {
	return &Verifier{records: records, recorder: recorder, now: time.Now}
}

func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

func (v *Verifier) Verify(ctx context.Context, patientID uuid.UUID, simulateTamper bool) (*Proof, error) {
	view, err := v.records.View(ctx, patientID)
	if err != nil {
		return nil, err
	}
	proof := Compute(view, simulateTamper, v.now())

	v.mu.Lock()
	v.log = append([]Proof{proof}, v.log...)
	v.mu.Unlock()

	if _, err := v.recorder.Record(ctx, audit.Event{
		Actor:  audit.ActorFromContext(ctx),
		Action: "Integrity verification",
		Target: view.Name,
		Status: proof.Status,
	}); err != nil {
		return nil, err
	}
	return &proof, nil
}

// Log returns a page of past proofs, newest first, and the total count.
func (v *Verifier) Log(limit, offset int) ([]Proof, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	total := len(v.log)
	if offset >= total {
		return []Proof{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return append([]Proof{}, v.log[offset:end]...), total
}

package audit

import (
	"time"

	"github.com/google/uuid"
)

type VerificationStatus string

const (
	Verified VerificationStatus = "VERIFIED"
	Tampered VerificationStatus = "TAMPERED"
)

// Entry is one immutable line of the audit trail.
type Entry struct {
	ID                 uuid.UUID          `json:"id"`
	ActorUID           string             `json:"actorUid,omitempty"`
	ActorName          string             `json:"actorName"`
	ActorRole          string             `json:"actorRole"`
	Action             string             `json:"action"`
	Target             string             `json:"target"`
	Timestamp          time.Time          `json:"timestamp"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	Fingerprint        string             `json:"fingerprint"`
}

// Actor identifies who performed an action.
type Actor struct {
	UID  string
	Name string
	Role string
}

// SystemActor is used for actions not triggered by a signed-in user, such as
// device ingestion or seeding.
var SystemActor = Actor{UID: "system", Name: "System", Role: "SYSTEM"}

// Event is the input to Recorder.Record.
type Event struct {
	Actor  Actor
	Action string
	Target string
	// Status defaults to Verified.
	Status VerificationStatus
}

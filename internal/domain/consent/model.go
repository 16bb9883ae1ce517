package consent

import (
	"time"

	"github.com/google/uuid"
)

type GranteeType string

const (
	GranteeHospital GranteeType = "HOSPITAL"
	GranteeDoctor   GranteeType = "DOCTOR"
)

type Duration string

const (
	Duration24H       Duration = "24H"
	Duration7D        Duration = "7D"
	DurationPermanent Duration = "PERMANENT"
)

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusRevoked Status = "REVOKED"
)

const day = 24 * time.Hour

// Grant is a patient-authored, time-bounded permission for an external party.
type Grant struct {
	ID          uuid.UUID   `json:"id"`
	PatientUID  string      `json:"patientUid"`
	PatientName string      `json:"patientName"`
	GranteeType GranteeType `json:"granteeType"`
	GranteeName string      `json:"granteeName"`
	Duration    Duration    `json:"duration"`
	CreatedAt   time.Time   `json:"createdAt"`
	// ExpiresAt is nil iff Duration is PERMANENT.
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Status      Status     `json:"status"`
	Fingerprint string     `json:"fingerprint"`
}

// ExpiryFor returns the expiry of a grant created at createdAt. PERMANENT and
// unknown durations return nil.
func ExpiryFor(d Duration, createdAt time.Time) *time.Time {
	var t time.Time
	switch d {
	case Duration24H:
		t = createdAt.Add(day)
	case Duration7D:
		t = createdAt.Add(7 * day)
	default:
		return nil
	}
	return &t
}

// IsExpired is strict: a grant is still valid at exactly expiresAt.
func IsExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && now.After(*expiresAt)
}

func (g *Grant) IsExpired(now time.Time) bool {
	return IsExpired(g.ExpiresAt, now)
}

func (t GranteeType) Valid() bool {
	return t == GranteeHospital || t == GranteeDoctor
}

func (d Duration) Valid() bool {
	return d == Duration24H || d == Duration7D || d == DurationPermanent
}

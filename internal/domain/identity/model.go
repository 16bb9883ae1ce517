package identity

import (
	"time"

	"github.com/vitalguard/careboard/internal/platform/auth"
)

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
)

// User is one registered account. Email and role together identify it at
// login; UID is what every other component refers to.
type User struct {
	UID                string         `json:"uid"`
	Name               string         `json:"name"`
	Email              string         `json:"email"`
	Role               string         `json:"role"`
	ApprovalStatus     ApprovalStatus `json:"approvalStatus"`
	AssignedPatientIDs []string       `json:"assignedPatientIds"`
	StatusMessage      string         `json:"statusMessage"`
	CreatedAt          time.Time      `json:"createdAt"`
}

func (u *User) Principal() auth.Principal {
	return auth.Principal{UID: u.UID, Name: u.Name, Email: u.Email, Role: u.Role}
}

var rolePrefix = map[string]string{
	auth.RoleAdmin:   "ADM",
	auth.RoleDoctor:  "DOC",
	auth.RoleNurse:   "NRS",
	auth.RolePatient: "PAT",
}

// ValidRole reports whether role may sign up.
func ValidRole(role string) bool {
	_, ok := rolePrefix[role]
	return ok
}

// NeedsApproval reports whether new accounts for role start PENDING.
func NeedsApproval(role string) bool {
	return role == auth.RoleDoctor || role == auth.RoleNurse
}

func clone(u *User) *User {
	cp := *u
	cp.AssignedPatientIDs = append([]string(nil), u.AssignedPatientIDs...)
	if cp.AssignedPatientIDs == nil {
		cp.AssignedPatientIDs = []string{}
	}
	return &cp
}

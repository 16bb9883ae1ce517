package access

import (
	"testing"

	"github.com/vitalguard/careboard/internal/platform/auth"
)

func TestCanAccessPage(t *testing.T) {
	tests := []struct {
		role string
		page Page
		want bool
	}{
		{auth.RolePatient, PagePatientPanel, true},
		{auth.RolePatient, PageConsent, true},
		{auth.RolePatient, PageDashboard, false},
		{auth.RolePatient, PagePatients, false},
		{auth.RolePatient, PageAIInsights, false},
		{auth.RolePatient, PageAuditLog, false},

		{auth.RoleAdmin, PageAuditLog, true},
		{auth.RoleAdmin, PageInteroperability, true},
		{auth.RoleAdmin, PageIntegrityVerify, true},
		{auth.RoleAdmin, PagePatientPanel, false},
		{auth.RoleAdmin, PageConsent, false},

		{auth.RoleDoctor, PageAuditLog, false},
		{auth.RoleDoctor, PageInteroperability, false},
		{auth.RoleDoctor, PageIntegrityVerify, true},
		{auth.RoleDoctor, PageDashboard, true},
		{auth.RoleDoctor, PageAIInsights, true},

		{auth.RoleNurse, PageIntegrityVerify, false},
		{auth.RoleNurse, PagePatients, true},

		{"VISITOR", PageDashboard, false},
		{auth.RoleAdmin, Page("SETTINGS"), false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.page), func(t *testing.T) {
			if got := CanAccessPage(tt.role, tt.page); got != tt.want {
				t.Errorf("CanAccessPage(%s, %s) = %v, want %v", tt.role, tt.page, got, tt.want)
			}
		})
	}
}

func TestPagesFor_Patient(t *testing.T) {
	got := PagesFor(auth.RolePatient)
	if len(got) != 2 || got[0] != PagePatientPanel || got[1] != PageConsent {
		t.Errorf("patient pages = %v", got)
	}
}

func TestDefaultPage(t *testing.T) {
	if DefaultPage(auth.RolePatient) != PagePatientPanel {
		t.Error("patients land on their panel")
	}
	for _, role := range []string{auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse} {
		if DefaultPage(role) != PageDashboard {
			t.Errorf("%s should land on the dashboard", role)
		}
	}
}

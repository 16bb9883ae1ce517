package access

import "github.com/vitalguard/careboard/internal/platform/auth"

// Page is one screen of the dashboard.
type Page string

const (
	PageDashboard        Page = "DASHBOARD"
	PagePatients         Page = "PATIENTS"
	PagePatientPanel     Page = "PATIENT_PANEL"
	PageConsent          Page = "CONSENT"
	PageAuditLog         Page = "AUDIT_LOG"
	PageIntegrityVerify  Page = "INTEGRITY_VERIFY"
	PageAIInsights       Page = "AI_INSIGHTS"
	PageInteroperability Page = "INTEROPERABILITY"
)

// AllPages lists every page in menu order.
var AllPages = []Page{
	PageDashboard,
	PagePatients,
	PagePatientPanel,
	PageConsent,
	PageAuditLog,
	PageIntegrityVerify,
	PageAIInsights,
	PageInteroperability,
}

var (
	staff       = []string{auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse}
	patientOnly = []string{auth.RolePatient}
)

var pageRoles = map[Page][]string{
	PageDashboard:        staff,
	PagePatients:         staff,
	PagePatientPanel:     patientOnly,
	PageConsent:          patientOnly,
	PageAuditLog:         {auth.RoleAdmin},
	PageIntegrityVerify:  {auth.RoleAdmin, auth.RoleDoctor},
	PageAIInsights:       staff,
	PageInteroperability: {auth.RoleAdmin},
}

// CanAccessPage reports whether role may open page. Unknown pages and roles
// are denied.
func CanAccessPage(role string, page Page) bool {
	for _, r := range pageRoles[page] {
		if r == role {
			return true
		}
	}
	return false
}

// PagesFor returns the pages role may open, in menu order.
func PagesFor(role string) []Page {
	out := []Page{}
	for _, p := range AllPages {
		if CanAccessPage(role, p) {
			out = append(out, p)
		}
	}
	return out
}

// DefaultPage is where a freshly signed-in role lands.
func DefaultPage(role string) Page {
	if role == auth.RolePatient {
		return PagePatientPanel
	}
	return PageDashboard
}

package interop

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/domain/consent"
	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/platform/auth"
)

var pid = uuid.MustParse("0d7c8f5e-3a2b-4c1d-9e8f-7a6b5c4d3e2f")

type fakeRecords map[uuid.UUID]*patient.View

func (f fakeRecords) View(_ context.Context, id uuid.UUID) (*patient.View, error) {
	if v, ok := f[id]; ok {
		return v, nil
	}
	return nil, patient.ErrNotFound
}

type fixture struct {
	svc    *Service
	ledger *consent.Ledger
	trail  *audit.Trail
	now    time.Time
}

func newFixture() *fixture {
	f := &fixture{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	f.trail = audit.NewTrail(audit.NewMemoryRepo(), zerolog.Nop()).WithClock(clock)
	f.ledger = consent.NewLedger(consent.NewMemoryRepo(), f.trail).WithClock(clock)
	records := fakeRecords{pid: {ID: pid.String(), Name: "Maya Chen"}}
	f.svc = NewService(f.ledger, records, f.trail)
	return f
}

var (
	maya  = audit.Actor{UID: "PAT-0001", Name: "Maya Chen", Role: auth.RolePatient}
	admin = auth.Principal{UID: "ADM-0001", Name: "Ada", Role: auth.RoleAdmin}
)

func adminCtx() context.Context {
	return auth.WithPrincipal(context.Background(), admin)
}

func TestShare_DeniedWithoutConsent(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Share(adminCtx(), pid, "NorthCare Medical Group")
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, ReasonNoConsent, res.Reason)

	entries, _, err := f.trail.List(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, ActionDenied, entries[0].Action)
	assert.Equal(t, "Maya Chen -> NorthCare Medical Group", entries[0].Target)
	assert.Equal(t, entries[0].Fingerprint, res.Fingerprint)
}

func TestShare_DoctorGrantMatchesByName(t *testing.T) {
	f := newFixture()
	_, err := f.ledger.Grant(context.Background(), maya, consent.GrantInput{
		GranteeType: consent.GranteeDoctor, GranteeName: "Metro Hospital Network", Duration: consent.Duration24H,
	})
	require.NoError(t, err)

	res, err := f.svc.Share(adminCtx(), pid, "Metro Hospital Network")
	require.NoError(t, err)
	assert.True(t, res.Granted)

	res, err = f.svc.Share(adminCtx(), pid, "Central Health Exchange")
	require.NoError(t, err)
	assert.False(t, res.Granted)
}

func TestShare_AnyHospitalGrantMatches(t *testing.T) {
	f := newFixture()
	_, err := f.ledger.Grant(context.Background(), maya, consent.GrantInput{
		GranteeType: consent.GranteeHospital, GranteeName: "Some Other Hospital", Duration: consent.Duration24H,
	})
	require.NoError(t, err)

	res, err := f.svc.Share(adminCtx(), pid, "Central Health Exchange")
	require.NoError(t, err)
	assert.True(t, res.Granted)
	entries, _, _ := f.trail.List(context.Background(), 1, 0)
	assert.Equal(t, ActionShared, entries[0].Action)
}

func TestShare_SweepsExpiredConsentFirst(t *testing.T) {
	f := newFixture()
	_, err := f.ledger.Grant(context.Background(), maya, consent.GrantInput{
		GranteeType: consent.GranteeHospital, GranteeName: "Metro Hospital Network", Duration: consent.Duration24H,
	})
	require.NoError(t, err)

	f.now = f.now.Add(25 * time.Hour)
	res, err := f.svc.Share(adminCtx(), pid, "Metro Hospital Network")
	require.NoError(t, err)
	assert.False(t, res.Granted)

	grants, err := f.ledger.ListFor(context.Background(), maya)
	require.NoError(t, err)
	assert.Equal(t, consent.StatusExpired, grants[0].Status)
}

func TestShare_Validation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Share(adminCtx(), pid, "  ")
	assert.Error(t, err)
	_, err = f.svc.Share(adminCtx(), uuid.New(), "Metro Hospital Network")
	assert.ErrorIs(t, err, patient.ErrNotFound)
}

func TestHandler_Share(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"patientId":"` + pid.String() + `","hospital":"Metro Hospital Network"}`
	req := httptest.NewRequest(http.MethodPost, "/interop/share", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(adminCtx())
	rec := httptest.NewRecorder()
	require.NoError(t, h.Share(e.NewContext(req, rec)))

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Granted)
	assert.NotEmpty(t, res.Fingerprint)

	req = httptest.NewRequest(http.MethodPost, "/interop/share", strings.NewReader(`{"patientId":"nope"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Share(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

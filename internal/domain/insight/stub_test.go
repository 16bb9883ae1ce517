package insight

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalguard/careboard/internal/domain/vitals"
)

func TestStub_Summarize(t *testing.T) {
	sum, err := Stub{}.Summarize(context.Background(), testChart())
	require.NoError(t, err)
	assert.Equal(t, "Maya Chen is a 67-year-old female with Pneumonia.", sum.Overview)
	assert.Equal(t, []string{"Patient status: attention", "Care mode: live_monitoring", "1 active medications"}, sum.KeyPoints)
	assert.Equal(t, []string{"Mock data - configure API key for real analysis"}, sum.RecentChanges)
}

func TestStub_AnalyzeVitals_UsesThresholds(t *testing.T) {
	ch := testChart()
	a, err := Stub{}.AnalyzeVitals(context.Background(), ch.Patient, ch.Vitals[0])
	require.NoError(t, err)
	assert.Equal(t, vitals.Critical, a.RiskLevel)
	assert.Equal(t, "API Key missing. This is a simulated AI response.", a.Analysis)
}

func TestStub_SummarizeDischarge(t *testing.T) {
	ch := testChart()
	out := admitted.Add(24 * time.Hour)
	ch.DischargeTime = &out

	d, err := Stub{}.SummarizeDischarge(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "Ceftriaxone", d.MedicationsAtDischarge)
	assert.Equal(t, "Community-acquired pneumonia", d.FinalDiagnosis)
	assert.Equal(t, "API key required for detailed discharge summary", d.ClinicalCourse)

	ch.Medications = nil
	d, _ = Stub{}.SummarizeDischarge(context.Background(), ch)
	assert.Equal(t, "None", d.MedicationsAtDischarge)
}

func TestNew(t *testing.T) {
	p, err := New("stub", GeminiConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, Stub{}, p)

	_, err = New("gemini", GeminiConfig{}, zerolog.Nop())
	assert.Error(t, err)

	p, err = New("gemini", GeminiConfig{APIKey: "k", Model: "m", BaseURL: "http://localhost"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, p)

	_, err = New("openai", GeminiConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/domain/vitals"
)

var admitted = time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)

func testChart() *patient.Chart {
	diag := "Community-acquired pneumonia"
	timing := "with food"
	findings := "Right lower lobe consolidation"
	return &patient.Chart{
		Patient: &patient.Patient{
			ID: uuid.New(), Name: "Maya Chen", Age: 67, Gender: "Female", Room: "3A",
			Condition: "Pneumonia", Diagnosis: &diag, CareMode: patient.CareLiveMonitoring,
			Status: vitals.Attention, AdmissionTime: admitted, Active: true,
		},
		Vitals: []*vitals.Sample{
			{Timestamp: admitted, HeartRate: 104, SystolicBP: 128, DiastolicBP: 80, SpO2: 91, RespiratoryRate: 22, Temperature: 38.4},
		},
		Medications: []*patient.Medication{
			{Name: "Ceftriaxone", Dosage: "1 g", Frequency: "daily", Route: "IV", Timing: &timing, Status: "active"},
		},
		Instructions: []*patient.Instruction{{Text: "Incentive spirometry hourly", Priority: "high"}},
		Tasks:        []*patient.Task{{Status: patient.TaskPending}, {Status: patient.TaskCompleted}},
		Reports:      []*patient.Report{{FileName: "cxr.pdf", ReportType: "imaging", Findings: &findings}},
	}
}

type capture struct {
	path  string
	key   string
	body  generateRequest
	reply string
	code  int
}

func geminiServer(t *testing.T, c *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.key = r.URL.Query().Get("key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&c.body))
		w.Header().Set("Content-Type", "application/json")
		if c.code != 0 {
			w.WriteHeader(c.code)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"model overloaded"}}`))
			return
		}
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]string{{"text": c.reply}}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *GeminiClient {
	return NewGeminiClient(GeminiConfig{APIKey: "k-123", Model: "gemini-test", BaseURL: url, Timeout: 2 * time.Second}, zerolog.Nop())
}

func TestGemini_Summarize(t *testing.T) {
	c := &capture{reply: `{"overview":"Stable on antibiotics.","keyPoints":["a","b"],"recentChanges":[],"recommendations":["r"]}`}
	srv := geminiServer(t, c)

	sum, err := newTestClient(srv.URL).Summarize(context.Background(), testChart())
	require.NoError(t, err)
	assert.Equal(t, "Stable on antibiotics.", sum.Overview)
	assert.Equal(t, []string{"a", "b"}, sum.KeyPoints)

	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", c.path)
	assert.Equal(t, "k-123", c.key)
	assert.Equal(t, "application/json", c.body.GenerationConfig.ResponseMimeType)
	assert.Contains(t, c.body.GenerationConfig.ResponseSchema.Required, "keyPoints")
	prompt := c.body.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Maya Chen")
	assert.Contains(t, prompt, "Continuous Monitoring")
	assert.Contains(t, prompt, "- Ceftriaxone: 1 g, daily, IV (with food)")
	assert.Contains(t, prompt, "[HIGH] Incentive spirometry hourly")
	assert.Contains(t, prompt, "Nurse Tasks: 1 pending, 1 completed")
	assert.Contains(t, prompt, "Findings: Right lower lobe consolidation")
}

func TestGemini_AnalyzeVitals(t *testing.T) {
	c := &capture{reply: `{"riskLevel":"critical","analysis":"Hypoxic and febrile.","recommendation":"Escalate."}`}
	srv := geminiServer(t, c)
	ch := testChart()

	a, err := newTestClient(srv.URL).AnalyzeVitals(context.Background(), ch.Patient, ch.Vitals[0])
	require.NoError(t, err)
	assert.Equal(t, vitals.Critical, a.RiskLevel)
	assert.Equal(t, "Escalate.", a.Recommendation)
	assert.Contains(t, c.body.Contents[0].Parts[0].Text, "SpO2: 91%")
	assert.Equal(t, []string{"critical", "attention", "stable"}, c.body.GenerationConfig.ResponseSchema.Properties["riskLevel"].Enum)
}

func TestGemini_SummarizeDischarge(t *testing.T) {
	c := &capture{reply: `{"summary":"s","clinicalCourse":"c","finalDiagnosis":"d","medicationsAtDischarge":"m","followUpRecommendations":["f"]}`}
	srv := geminiServer(t, c)
	ch := testChart()
	out := admitted.Add(50 * time.Hour)
	ch.DischargeTime = &out

	d, err := newTestClient(srv.URL).SummarizeDischarge(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, d.FollowUpRecommendations)
	prompt := c.body.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Length of Stay: 3 days")
	assert.Contains(t, prompt, "Incentive spirometry hourly [Pending]")
	assert.Contains(t, prompt, "Nurse Tasks: 1/2 completed")
}

func TestGemini_Errors(t *testing.T) {
	c := &capture{code: http.StatusServiceUnavailable}
	srv := geminiServer(t, c)
	_, err := newTestClient(srv.URL).Summarize(context.Background(), testChart())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")

	c2 := &capture{reply: "not json"}
	srv2 := geminiServer(t, c2)
	_, err = newTestClient(srv2.URL).Summarize(context.Background(), testChart())
	assert.Error(t, err)

	c3 := &capture{reply: "  "}
	srv3 := geminiServer(t, c3)
	_, err = newTestClient(srv3.URL).Summarize(context.Background(), testChart())
	assert.Error(t, err)
}

func TestGemini_IncompleteReplies(t *testing.T) {
	for _, reply := range []string{`{}`, `{"summary":"x"}`, `{"overview":"   ","keyPoints":["a"]}`} {
		srv := geminiServer(t, &capture{reply: reply})
		sum, err := newTestClient(srv.URL).Summarize(context.Background(), testChart())
		assert.ErrorIs(t, err, ErrIncomplete, reply)
		assert.Nil(t, sum)
	}

	srv := geminiServer(t, &capture{reply: `{"summary":"Discharged home.","followUpRecommendations":["GP in 1 week"]}`})
	d, err := newTestClient(srv.URL).SummarizeDischarge(context.Background(), testChart())
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Nil(t, d)
}

func TestGemini_FallsBackThroughPatientService(t *testing.T) {
	c := &capture{code: http.StatusInternalServerError}
	srv := geminiServer(t, c)
	ch := testChart()

	var az patient.Analyzer = newTestClient(srv.URL)
	_, err := az.AnalyzeVitals(context.Background(), ch.Patient, ch.Vitals[0])
	require.Error(t, err)

	fb := patient.FallbackAnalysis(ch.Vitals[0])
	assert.Equal(t, vitals.Critical, fb.RiskLevel)
}

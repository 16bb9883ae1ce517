package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/domain/vitals"
)

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Retries int
}

// GeminiClient calls the generateContent endpoint with a JSON response
// schema and decodes the single candidate's text as the result.
type GeminiClient struct {
	http   *resty.Client
	cfg    GeminiConfig
	logger zerolog.Logger
}

func NewGeminiClient(cfg GeminiConfig, logger zerolog.Logger) *GeminiClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &GeminiClient{http: client, cfg: cfg, logger: logger}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type schema struct {
	Type       string            `json:"type"`
	Properties map[string]schema `json:"properties,omitempty"`
	Items      *schema           `json:"items,omitempty"`
	Enum       []string          `json:"enum,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

var (
	str     = schema{Type: "STRING"}
	strList = schema{Type: "ARRAY", Items: &schema{Type: "STRING"}}

	summarySchema = schema{
		Type: "OBJECT",
		Properties: map[string]schema{
			"overview": str, "keyPoints": strList, "recentChanges": strList, "recommendations": strList,
		},
		Required: []string{"overview", "keyPoints", "recentChanges", "recommendations"},
	}
	dischargeSchema = schema{
		Type: "OBJECT",
		Properties: map[string]schema{
			"summary": str, "clinicalCourse": str, "finalDiagnosis": str,
			"medicationsAtDischarge": str, "followUpRecommendations": strList,
		},
		Required: []string{"summary", "clinicalCourse", "finalDiagnosis", "medicationsAtDischarge", "followUpRecommendations"},
	}
	vitalsSchema = schema{
		Type: "OBJECT",
		Properties: map[string]schema{
			"riskLevel":      {Type: "STRING", Enum: []string{"critical", "attention", "stable"}},
			"analysis":       str,
			"recommendation": str,
		},
		Required: []string{"riskLevel", "analysis", "recommendation"},
	}
)

// ErrIncomplete marks a reply that decoded but lacks required content.
var ErrIncomplete = errors.New("gemini: incomplete response")

func (g *GeminiClient) generate(ctx context.Context, prompt string, sch schema, out interface{}) error {
	var res generateResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParam("key", g.cfg.APIKey).
		SetBody(generateRequest{
			Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
			GenerationConfig: generationConfig{ResponseMimeType: "application/json", ResponseSchema: sch},
		}).
		SetResult(&res).
		SetError(&res).
		Post("/v1beta/models/" + g.cfg.Model + ":generateContent")
	if err != nil {
		return fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if res.Error != nil {
			msg = res.Error.Message
		}
		g.logger.Warn().Int("status_code", resp.StatusCode()).Str("model", g.cfg.Model).Msg("gemini returned an error")
		return fmt.Errorf("gemini: %s", msg)
	}
	if len(res.Candidates) == 0 || len(res.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("gemini: empty response")
	}
	text := res.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("gemini: empty response")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func (g *GeminiClient) AnalyzeVitals(ctx context.Context, p *patient.Patient, s *vitals.Sample) (*patient.Analysis, error) {
	var a patient.Analysis
	if err := g.generate(ctx, vitalsPrompt(p, s), vitalsSchema, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (g *GeminiClient) Summarize(ctx context.Context, c *patient.Chart) (*patient.Summary, error) {
	var sum patient.Summary
	if err := g.generate(ctx, summaryPrompt(c), summarySchema, &sum); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sum.Overview) == "" {
		return nil, fmt.Errorf("%w: missing overview", ErrIncomplete)
	}
	return &sum, nil
}

func (g *GeminiClient) SummarizeDischarge(ctx context.Context, c *patient.Chart) (*patient.DischargeSummary, error) {
	var sum patient.DischargeSummary
	if err := g.generate(ctx, dischargePrompt(c), dischargeSchema, &sum); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sum.Summary) == "" || strings.TrimSpace(sum.ClinicalCourse) == "" {
		return nil, fmt.Errorf("%w: missing summary or clinical course", ErrIncomplete)
	}
	return &sum, nil
}

package insight

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vitalguard/careboard/internal/domain/patient"
)

// Provider is both halves the patient service consumes.
type Provider interface {
	patient.Analyzer
	patient.Summarizer
}

// New selects a provider by name: "stub" or "gemini".
func New(name string, cfg GeminiConfig, logger zerolog.Logger) (Provider, error) {
	switch name {
	case "", "stub":
		return Stub{}, nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		return NewGeminiClient(cfg, logger.With().Str("component", "gemini").Logger()), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", name)
	}
}

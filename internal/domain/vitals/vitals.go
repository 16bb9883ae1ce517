// Package vitals holds the vital-sign sample type and the rule-based risk
// checks that work without any network dependency.
package vitals

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level is a patient's coarse status. Stored lower-case.
type Level string

const (
	Stable    Level = "stable"
	Attention Level = "attention"
	Critical  Level = "critical"
)

// ParseLevel accepts any casing of the three levels.
func ParseLevel(s string) (Level, bool) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case Stable, Attention, Critical:
		return l, true
	}
	return "", false
}

// Percent is the flat display severity for a level. It is derived from the
// level alone, not from the underlying vitals.
func (l Level) Percent() int {
	switch l {
	case Critical:
		return 90
	case Attention:
		return 60
	case Stable:
		return 30
	}
	return 0
}

// Sample is one reading. Samples are append-only and never edited.
type Sample struct {
	ID              uuid.UUID `json:"vital_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	Timestamp       time.Time `json:"timestamp"`
	HeartRate       int       `json:"heart_rate"`
	SystolicBP      int       `json:"systolic_bp"`
	DiastolicBP     int       `json:"diastolic_bp"`
	SpO2            int       `json:"spo2"`
	RespiratoryRate int       `json:"respiratory_rate"`
	Temperature     float64   `json:"temperature"`
	Source          string    `json:"source,omitempty"`
}

// Thresholds. A reading is abnormal strictly beyond these values.
const (
	HeartRateHigh   = 110
	HeartRateLow    = 50
	SpO2Low         = 92
	TemperatureHigh = 38.0
	SystolicHigh    = 150
)

// Flag names one abnormal vital in the sample.
type Flag struct {
	Vital   string `json:"vital"`
	Message string `json:"message"`
}

// Flags returns the abnormal vitals in s. Zero values mean "not measured"
// and are never flagged.
func Flags(s Sample) []Flag {
	var flags []Flag
	if s.HeartRate != 0 && (s.HeartRate > HeartRateHigh || s.HeartRate < HeartRateLow) {
		flags = append(flags, Flag{Vital: "heart_rate", Message: fmt.Sprintf("Heart rate %d bpm", s.HeartRate)})
	}
	if s.SpO2 != 0 && s.SpO2 < SpO2Low {
		flags = append(flags, Flag{Vital: "spo2", Message: fmt.Sprintf("SpO2 %d%%", s.SpO2)})
	}
	if s.Temperature > TemperatureHigh {
		flags = append(flags, Flag{Vital: "temperature", Message: "Temperature " + strconv.FormatFloat(s.Temperature, 'f', -1, 64) + " C"})
	}
	if s.SystolicBP > SystolicHigh {
		flags = append(flags, Flag{Vital: "systolic_bp", Message: fmt.Sprintf("Systolic BP %d", s.SystolicBP)})
	}
	return flags
}

// Classify is the local heuristic used when no analyzer answers:
// no flags is Stable, one is Attention, two or more is Critical.
func Classify(s Sample) Level {
	switch n := len(Flags(s)); {
	case n == 0:
		return Stable
	case n == 1:
		return Attention
	default:
		return Critical
	}
}

// Validate rejects readings that cannot be physiological.
func Validate(s Sample) error {
	switch {
	case s.HeartRate < 0 || s.HeartRate > 300:
		return fmt.Errorf("heart_rate out of range: %d", s.HeartRate)
	case s.SpO2 < 0 || s.SpO2 > 100:
		return fmt.Errorf("spo2 out of range: %d", s.SpO2)
	case s.SystolicBP < 0 || s.SystolicBP > 300 || s.DiastolicBP < 0 || s.DiastolicBP > 300:
		return fmt.Errorf("blood pressure out of range: %d/%d", s.SystolicBP, s.DiastolicBP)
	case s.RespiratoryRate < 0 || s.RespiratoryRate > 100:
		return fmt.Errorf("respiratory_rate out of range: %d", s.RespiratoryRate)
	case s.Temperature < 0 || s.Temperature > 45:
		return fmt.Errorf("temperature out of range: %v", s.Temperature)
	}
	if s.HeartRate == 0 && s.SpO2 == 0 && s.SystolicBP == 0 && s.Temperature == 0 && s.RespiratoryRate == 0 {
		return fmt.Errorf("at least one vital sign is required")
	}
	return nil
}

// Summary describes a patient's series of readings.
type Summary struct {
	TotalReadings int     `json:"total_readings"`
	FirstReading  *Sample `json:"first_reading"`
	LastReading   *Sample `json:"last_reading"`
}

// Summarize expects samples in ascending time order.
func Summarize(samples []*Sample) Summary {
	sum := Summary{TotalReadings: len(samples)}
	if len(samples) > 0 {
		sum.FirstReading = samples[0]
		sum.LastReading = samples[len(samples)-1]
	}
	return sum
}

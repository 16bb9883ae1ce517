package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/vitalguard/careboard/internal/domain/vitals"
)

// Dashboard care modes.
const (
	ModeMonitored = "MONITORED"
	ModeTaskBased = "TASK_BASED"
)

// View is the dashboard shape of a patient record. Every stored field the
// dashboard uses is mapped here and nowhere else.
type View struct {
	ID            string        `json:"id"`
	DisplayID     string        `json:"displayId"`
	Name          string        `json:"name"`
	Demographics  Demographics  `json:"demographics"`
	RoomID        string        `json:"roomId"`
	CareMode      string        `json:"careMode"`
	StatusLevel   string        `json:"statusLevel"`
	RiskPercent   int           `json:"riskPercent"`
	Flags         []vitals.Flag `json:"flags"`
	VitalsHistory []VitalsView  `json:"vitalsHistory"`
	Active        bool          `json:"active"`
	LastUpdated   time.Time     `json:"lastUpdated"`
}

type Demographics struct {
	Age       int     `json:"age"`
	Gender    string  `json:"gender"`
	Condition string  `json:"condition"`
	Diagnosis *string `json:"diagnosis,omitempty"`
}

type VitalsView struct {
	Timestamp   time.Time `json:"timestamp"`
	HeartRate   int       `json:"heartRate"`
	SystolicBP  int       `json:"systolicBp"`
	DiastolicBP int       `json:"diastolicBp"`
	SpO2        int       `json:"spO2"`
	RespRate    int       `json:"respRate"`
	Temperature float64   `json:"temperature"`
}

// DisplayID formats the directory sequence number, e.g. PT-0007.
func DisplayID(seq int64) string {
	return fmt.Sprintf("PT-%04d", seq)
}

// ViewCareMode maps the stored care mode. Anything that is not live
// monitoring is task based.
func ViewCareMode(m CareMode) string {
	if m == CareLiveMonitoring {
		return ModeMonitored
	}
	return ModeTaskBased
}

func ToVitalsView(s *vitals.Sample) VitalsView {
	return VitalsView{
		Timestamp:   s.Timestamp,
		HeartRate:   s.HeartRate,
		SystolicBP:  s.SystolicBP,
		DiastolicBP: s.DiastolicBP,
		SpO2:        s.SpO2,
		RespRate:    s.RespiratoryRate,
		Temperature: s.Temperature,
	}
}

// ToView adapts p and its vitals history (oldest first).
func ToView(p *Patient, history []*vitals.Sample) View {
	v := View{
		ID:        p.ID.String(),
		DisplayID: DisplayID(p.Seq),
		Name:      p.Name,
		Demographics: Demographics{
			Age:       p.Age,
			Gender:    p.Gender,
			Condition: p.Condition,
			Diagnosis: p.Diagnosis,
		},
		RoomID:        p.Room,
		CareMode:      ViewCareMode(p.CareMode),
		StatusLevel:   strings.ToUpper(string(p.Status)),
		RiskPercent:   p.Status.Percent(),
		Flags:         []vitals.Flag{},
		VitalsHistory: make([]VitalsView, 0, len(history)),
		Active:        p.Active,
		LastUpdated:   p.UpdatedAt,
	}
	for _, s := range history {
		v.VitalsHistory = append(v.VitalsHistory, ToVitalsView(s))
	}
	if n := len(history); n > 0 {
		if flags := vitals.Flags(*history[n-1]); flags != nil {
			v.Flags = flags
		}
	}
	return v
}

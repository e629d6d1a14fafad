package simulate

import (
	"fmt"
	"math"

	"github.com/okian/baculator/internal/domain/types"
)

// Mismatch is one field that differs between two evaluations.
type Mismatch struct {
	Field  string  `json:"field"`
	Local  float64 `json:"local"`
	Remote float64 `json:"remote"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: local=%v remote=%v", m.Field, m.Local, m.Remote)
}

// Compare reports the headline fields whose values differ by more than tol.
func Compare(local, remote types.EvaluationResponse, tol float64) []Mismatch {
	fields := []struct {
		name string
		l, r float64
	}{
		{"current_bac", local.CurrentBAC, remote.CurrentBAC},
		{"peak_bac", local.PeakBAC, remote.PeakBAC},
		{"time_to_peak_hours", local.TimeToPeakHours, remote.TimeToPeakHours},
		{"time_to_sober_hours", local.TimeToSoberHours, remote.TimeToSoberHours},
		{"time_to_legal_hours", local.TimeToLegalHours, remote.TimeToLegalHours},
		{"timeline_samples", float64(len(local.Timeline)), float64(len(remote.Timeline))},
	}
	var out []Mismatch
	for _, f := range fields {
		if math.Abs(f.l-f.r) > tol {
			out = append(out, Mismatch{Field: f.name, Local: f.l, Remote: f.r})
		}
	}
	if local.IsRising != remote.IsRising {
		out = append(out, Mismatch{Field: "is_rising", Local: boolFloat(local.IsRising), Remote: boolFloat(remote.IsRising)})
	}
	return out
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

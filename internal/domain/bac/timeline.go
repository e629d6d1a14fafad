package bac

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Timeline sampling intervals by total span.
const (
	shortSpan      = 6 * time.Hour
	mediumSpan     = 24 * time.Hour
	shortInterval  = 5 * time.Minute
	mediumInterval = 15 * time.Minute
	longInterval   = 30 * time.Minute

	clockLayout = "15:04"
)

// SamplingInterval returns the grid step used for a timeline of the given span.
func SamplingInterval(span time.Duration) time.Duration {
	switch {
	case span <= shortSpan:
		return shortInterval
	case span <= mediumSpan:
		return mediumInterval
	default:
		return longInterval
	}
}

// TimelineStart returns the earliest drink rounded down to the hour in the
// configured location. It never reaches further back than ThresholdHorizon
// before now, which keeps the sample count bounded for stale drinks.
func (e *Engine) TimelineStart(drinks []Drink, now time.Time) (time.Time, bool) {
	first, ok := firstExposure(drinks)
	if !ok {
		return time.Time{}, false
	}
	if floor := now.Add(-e.cfg.ThresholdHorizon); first.Before(floor) {
		first = floor
	}
	return e.hour(first), true
}

func (e *Engine) hour(t time.Time) time.Time {
	local := t.In(e.cfg.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, e.cfg.Location)
}

// BuildTimeline samples the curve from TimelineStart up to TimelineAfterNow
// past now. Drink completions, absorption completions and now are always
// included so local maxima survive coarse intervals.
func (e *Engine) BuildTimeline(drinks []Drink, p Profile, now time.Time) []Sample {
	start, ok := e.TimelineStart(drinks, now)
	if !ok {
		return []Sample{}
	}
	end := now.Add(e.cfg.TimelineAfterNow)
	if !end.After(start) {
		return []Sample{}
	}

	step := SamplingInterval(end.Sub(start))
	instants := make([]time.Time, 0, int(end.Sub(start)/step)+2*len(drinks)+2)
	for t := start; !t.After(end); t = t.Add(step) {
		instants = append(instants, t)
	}
	inRange := func(t time.Time) bool { return !t.Before(start) && !t.After(end) }
	for _, d := range drinks {
		for _, t := range []time.Time{d.CompletedAt, d.CompletedAt.Add(e.cfg.AbsorptionWindow)} {
			if inRange(t) {
				instants = append(instants, t)
			}
		}
	}
	if inRange(now) {
		instants = append(instants, now)
	}
	instants = uniqueSorted(instants)

	samples := make([]Sample, 0, len(instants))
	for _, t := range instants {
		samples = append(samples, Sample{
			OffsetHours:        t.Sub(start).Hours(),
			OffsetFromNowHours: t.Sub(now).Hours(),
			BAC:                e.BACAt(drinks, p, t),
			ClockTime:          t.In(e.cfg.Location).Format(clockLayout),
			At:                 t,
		})
	}
	return samples
}

func uniqueSorted(ts []time.Time) []time.Time {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	out := ts[:0]
	for i, t := range ts {
		if i > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Marker locates a drink on the timeline.
type Marker struct {
	Label       string  `json:"label"`
	OffsetHours float64 `json:"offset_hours"`
	Standards   float64 `json:"standards"`
}

// DrinkMarkers labels drinks D1..Dn in input order relative to start. Drinks
// before a clamped start get negative offsets.
func (e *Engine) DrinkMarkers(drinks []Drink, start time.Time) []Marker {
	out := make([]Marker, len(drinks))
	for i, d := range drinks {
		out[i] = Marker{
			Label:       fmt.Sprintf("D%d", i+1),
			OffsetHours: d.CompletedAt.Sub(start).Hours(),
			Standards:   d.Standards,
		}
	}
	return out
}

// DrinkPhase is where a drink sits in its own lifecycle.
type DrinkPhase string

// Drink phases.
const (
	PhaseNotStarted  DrinkPhase = "not_started"
	PhaseAbsorbing   DrinkPhase = "absorbing"
	PhaseEliminating DrinkPhase = "eliminating"
	PhaseEliminated  DrinkPhase = "eliminated"
)

// eliminatedBelow is the contribution under which a drink counts as gone.
const eliminatedBelow = 0.001

// DrinkStatus describes one drink at a given instant.
type DrinkStatus struct {
	Phase         DrinkPhase `json:"phase"`
	MinutesToPeak float64    `json:"minutes_to_peak"`
	Contribution  float64    `json:"contribution"`
	FromNow       string     `json:"from_now"`
}

// DrinkStatuses reports each drink's phase at now. A drink is eliminating while
// the session as a whole still carries alcohol.
func (e *Engine) DrinkStatuses(drinks []Drink, p Profile, now time.Time) []DrinkStatus {
	current := e.BACAt(drinks, p, now)
	out := make([]DrinkStatus, len(drinks))
	window := e.cfg.AbsorptionWindow.Minutes()
	for i, d := range drinks {
		since := now.Sub(d.CompletedAt).Minutes()
		st := DrinkStatus{
			Contribution: round4(e.Absorbed(d, p, now)),
			FromNow:      FormatRelative(-since / 60),
		}
		switch {
		case since < 0:
			st.Phase = PhaseNotStarted
			st.MinutesToPeak = math.Abs(since) + window
		case since <= window:
			st.Phase = PhaseAbsorbing
			st.MinutesToPeak = window - since
		case current > eliminatedBelow:
			st.Phase = PhaseEliminating
		default:
			st.Phase = PhaseEliminated
		}
		out[i] = st
	}
	return out
}

// FormatOffset renders hours as "45m", "2h" or "1h 30m".
func FormatOffset(hours float64) string {
	total := int(math.Round(hours * 60))
	h, m := total/60, total%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// FormatRelative renders an offset from now as "in 45 min", "2h ago" or "now".
func FormatRelative(hours float64) string {
	total := int(math.Abs(math.Round(hours * 60)))
	if total == 0 {
		return "now"
	}
	h, m := total/60, total%60
	var s string
	switch {
	case h == 0:
		s = fmt.Sprintf("%d min", m)
	case m == 0:
		s = fmt.Sprintf("%dh", h)
	default:
		s = fmt.Sprintf("%dh %dm", h, m)
	}
	if hours < 0 {
		return s + " ago"
	}
	return "in " + s
}

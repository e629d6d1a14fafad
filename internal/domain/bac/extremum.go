package bac

import (
	"sort"
	"time"
)

// rightLimit is how far past an absorption completion the search looks to
// land on the fully absorbed side of the curve.
const rightLimit = time.Second

// FindPeak returns the highest BAC in [now, now+PeakHorizon]. Candidates are a
// uniform grid plus every drink's completion and absorption-completion instants,
// so the apex of each saturating term is always tested. Ties keep the earliest.
func (e *Engine) FindPeak(drinks []Drink, p Profile, now time.Time) Peak {
	peak := Peak{BAC: e.BACAt(drinks, p, now), At: now}
	if len(drinks) == 0 {
		return peak
	}
	for _, t := range e.peakCandidates(drinks, now) {
		if v := e.BACAt(drinks, p, t); v > peak.BAC {
			peak.BAC = v
			peak.At = t
		}
	}
	peak.HoursFromNow = peak.At.Sub(now).Hours()
	return peak
}

// peakCandidates returns sorted candidate instants inside the peak horizon.
func (e *Engine) peakCandidates(drinks []Drink, now time.Time) []time.Time {
	end := now.Add(e.cfg.PeakHorizon)
	within := func(t time.Time) bool { return t.After(now) && !t.After(end) }

	out := make([]time.Time, 0, int(e.cfg.PeakHorizon/e.cfg.PeakStep)+3*len(drinks))
	for t := now.Add(e.cfg.PeakStep); !t.After(end); t = t.Add(e.cfg.PeakStep) {
		out = append(out, t)
	}
	for _, d := range drinks {
		absorbed := d.CompletedAt.Add(e.cfg.AbsorptionWindow)
		for _, t := range []time.Time{d.CompletedAt, absorbed, absorbed.Add(rightLimit)} {
			if within(t) {
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

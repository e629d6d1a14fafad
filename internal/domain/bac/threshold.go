package bac

import "time"

// Threshold search resolution.
const (
	scanStep          = time.Minute
	crossingTolerance = time.Minute
)

// crossing is the outcome of a threshold search.
type crossing struct {
	Time time.Time // first instant known to be at or below the target
	OK   bool      // false when the curve stays above the target
}

// TimeToTarget returns the hours from now until BAC falls to target and stays
// there. A curve that is currently below target but will rise above it first
// reports the later descent, not the present moment. Returns NotReached when
// no crossing exists within ThresholdHorizon.
func (e *Engine) TimeToTarget(drinks []Drink, p Profile, now time.Time, target float64) float64 {
	if len(drinks) == 0 {
		return 0
	}
	end := now.Add(e.cfg.ThresholdHorizon)
	from := now

	if e.BACAt(drinks, p, now) <= target {
		if !e.IsRising(drinks, now) {
			return 0
		}
		peak := e.FindPeak(drinks, p, now)
		if peak.BAC <= target {
			return 0
		}
		above, ok := e.firstAbove(drinks, p, target, now, end)
		if !ok {
			// only the sub-minute jump at an absorption completion exceeds target
			above = peak.At
		}
		from = above
	}

	c := e.descent(drinks, p, target, from, end)
	if !c.OK {
		return NotReached
	}
	return c.Time.Sub(now).Hours()
}

// firstAbove scans minute by minute for the first instant above target.
func (e *Engine) firstAbove(drinks []Drink, p Profile, target float64, from, end time.Time) (time.Time, bool) {
	for t := from; !t.After(end); t = t.Add(scanStep) {
		if e.BACAt(drinks, p, t) > target {
			return t, true
		}
	}
	return time.Time{}, false
}

// descent finds the permanent crossing to at-or-below target, starting from an
// instant where BAC is above it. Once every drink has finished absorbing the
// curve is non-increasing, so the search bisects on that side; a crossing that
// happens before then is bracketed by scanning up to the settle point.
func (e *Engine) descent(drinks []Drink, p Profile, target float64, from, end time.Time) crossing {
	above := func(t time.Time) bool { return e.BACAt(drinks, p, t) > target }

	lo := from
	if settle, ok := e.lastAbsorbed(drinks); ok && settle.After(lo) {
		settle = settle.Add(rightLimit)
		if settle.After(end) {
			settle = end
		}
		if above(settle) {
			lo = settle
		} else {
			last := lo
			for t := lo; t.Before(settle); t = t.Add(scanStep) {
				if above(t) {
					last = t
				}
			}
			hi := last.Add(scanStep)
			if hi.After(settle) {
				hi = settle
			}
			return bisect(above, last, hi)
		}
	}

	if !above(lo) {
		return crossing{Time: lo, OK: true}
	}
	if above(end) {
		return crossing{}
	}
	return bisect(above, lo, end)
}

// bisect narrows [a, b] where above(a) holds and above(b) does not until the
// bracket is within crossingTolerance.
func bisect(above func(time.Time) bool, a, b time.Time) crossing {
	if !above(a) {
		return crossing{Time: a, OK: true}
	}
	if above(b) {
		return crossing{}
	}
	for b.Sub(a) > crossingTolerance {
		mid := a.Add(b.Sub(a) / 2)
		if above(mid) {
			a = mid
		} else {
			b = mid
		}
	}
	return crossing{Time: b, OK: true}
}

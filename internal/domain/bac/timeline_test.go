package bac_test

import (
	"testing"
	"time"

	"github.com/okian/baculator/internal/domain/bac"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSamplingInterval(t *testing.T) {
	Convey("Given timeline spans of various lengths", t, func() {
		So(bac.SamplingInterval(2*time.Hour), ShouldEqual, 5*time.Minute)
		So(bac.SamplingInterval(6*time.Hour), ShouldEqual, 5*time.Minute)
		So(bac.SamplingInterval(6*time.Hour+time.Minute), ShouldEqual, 15*time.Minute)
		So(bac.SamplingInterval(24*time.Hour), ShouldEqual, 15*time.Minute)
		So(bac.SamplingInterval(25*time.Hour), ShouldEqual, 30*time.Minute)
	})
}

func TestEngine_BuildTimeline(t *testing.T) {
	Convey("Given a drink finished ten minutes past the hour", t, func() {
		engine := bac.NewEngine()
		p := male(70)
		drinks := []bac.Drink{drinkAt(1, t0.Add(10*time.Minute))}
		now := t0.Add(40 * time.Minute)

		tl := engine.BuildTimeline(drinks, p, now)

		Convey("Then it starts on the hour of the first drink", func() {
			So(tl, ShouldNotBeEmpty)
			So(tl[0].OffsetHours, ShouldEqual, 0)
			So(tl[0].ClockTime, ShouldEqual, "20:00")
			So(tl[0].At.Equal(t0), ShouldBeTrue)
		})

		Convey("Then offsets are strictly increasing and values match BACAt", func() {
			for i, s := range tl {
				if i > 0 {
					So(s.OffsetHours, ShouldBeGreaterThan, tl[i-1].OffsetHours)
				}
				So(s.BAC, ShouldEqual, engine.BACAt(drinks, p, s.At))
			}
		})

		Convey("Then drink completion and now are sampled exactly", func() {
			var sawDrink, sawNow bool
			for _, s := range tl {
				if s.At.Equal(drinks[0].CompletedAt) {
					sawDrink = true
				}
				if s.OffsetFromNowHours == 0 {
					sawNow = true
				}
			}
			So(sawDrink, ShouldBeTrue)
			So(sawNow, ShouldBeTrue)
		})

		Convey("Then it stops within the configured window after now", func() {
			last := tl[len(tl)-1]
			So(last.OffsetFromNowHours, ShouldBeLessThanOrEqualTo, 8)
			So(last.OffsetFromNowHours, ShouldBeGreaterThan, 7.5)
		})
	})

	Convey("Given a short session", t, func() {
		engine := bac.NewEngine(bac.WithTimelineAfterNow(2 * time.Hour))
		tl := engine.BuildTimeline([]bac.Drink{drinkAt(1, t0)}, male(70), t0)

		Convey("Then samples are five minutes apart", func() {
			So(len(tl), ShouldEqual, 25)
			So(tl[1].At.Sub(tl[0].At), ShouldEqual, 5*time.Minute)
		})
	})

	Convey("Given a non-UTC location", t, func() {
		zone := time.FixedZone("AEST", 10*3600)
		engine := bac.NewEngine(bac.WithLocation(zone))
		drinkTime := time.Date(2025, 3, 14, 10, 10, 0, 0, time.UTC)
		tl := engine.BuildTimeline([]bac.Drink{drinkAt(1, drinkTime)}, male(70), drinkTime)

		Convey("Then clock labels and hour rounding follow the location", func() {
			So(tl[0].ClockTime, ShouldEqual, "20:00")
			So(tl[0].At.Equal(time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})
	})

	Convey("Given a drink finished centuries before now", t, func() {
		engine := bac.NewEngine(bac.WithTimelineAfterNow(time.Hour))
		now := t0
		drinks := []bac.Drink{drinkAt(1, now.AddDate(-300, 0, 0))}

		tl := engine.BuildTimeline(drinks, male(70), now)

		Convey("Then the timeline starts at the threshold horizon", func() {
			So(tl, ShouldNotBeEmpty)
			So(tl[0].At.Equal(now.Add(-48*time.Hour)), ShouldBeTrue)
			So(len(tl), ShouldBeLessThanOrEqualTo, 49*2+2)
		})

		Convey("Then offsets stay strictly increasing and the curve is flat", func() {
			for i, s := range tl {
				if i > 0 {
					So(s.OffsetHours, ShouldBeGreaterThan, tl[i-1].OffsetHours)
				}
				So(s.BAC, ShouldEqual, 0)
			}
		})

		Convey("Then its marker sits before the clamped start", func() {
			start, ok := engine.TimelineStart(drinks, now)
			So(ok, ShouldBeTrue)
			So(start.Equal(tl[0].At), ShouldBeTrue)
			markers := engine.DrinkMarkers(drinks, start)
			So(markers[0].OffsetHours, ShouldBeLessThan, 0)
		})
	})

	Convey("Given no drinks", t, func() {
		tl := bac.NewEngine().BuildTimeline(nil, male(70), t0)
		So(tl, ShouldNotBeNil)
		So(tl, ShouldBeEmpty)
	})
}

func TestEngine_DrinkMarkers(t *testing.T) {
	Convey("Given two drinks", t, func() {
		engine := bac.NewEngine()
		drinks := []bac.Drink{drinkAt(1, t0.Add(10*time.Minute)), drinkAt(2, t0.Add(100*time.Minute))}
		start, ok := engine.TimelineStart(drinks, t0.Add(2*time.Hour))
		So(ok, ShouldBeTrue)
		markers := engine.DrinkMarkers(drinks, start)

		Convey("Then they are labelled in input order relative to the timeline start", func() {
			So(markers, ShouldHaveLength, 2)
			So(markers[0].Label, ShouldEqual, "D1")
			So(markers[0].OffsetHours, ShouldAlmostEqual, 10.0/60, 1e-9)
			So(markers[1].Label, ShouldEqual, "D2")
			So(markers[1].OffsetHours, ShouldAlmostEqual, 100.0/60, 1e-9)
			So(markers[1].Standards, ShouldEqual, 2)
		})
	})
}

func TestEngine_DrinkStatuses(t *testing.T) {
	Convey("Given an earlier drink, one absorbing and one logged ahead", t, func() {
		engine := bac.NewEngine()
		p := male(70)
		drinks := []bac.Drink{
			drinkAt(1, t0),
			drinkAt(1, t0.Add(2*time.Hour)),
			drinkAt(1, t0.Add(2*time.Hour+20*time.Minute)),
		}

		Convey("When inspected ten minutes into the second drink", func() {
			st := engine.DrinkStatuses(drinks, p, t0.Add(2*time.Hour+10*time.Minute))

			Convey("Then each drink reports its own phase", func() {
				So(st[0].Phase, ShouldEqual, bac.PhaseEliminating)
				So(st[0].FromNow, ShouldEqual, "2h 10m ago")
				So(st[1].Phase, ShouldEqual, bac.PhaseAbsorbing)
				So(st[1].MinutesToPeak, ShouldAlmostEqual, 20, 1e-9)
				So(st[2].Phase, ShouldEqual, bac.PhaseNotStarted)
				So(st[2].MinutesToPeak, ShouldAlmostEqual, 40, 1e-9)
				So(st[2].FromNow, ShouldEqual, "in 10 min")
				So(st[2].Contribution, ShouldEqual, 0)
			})
		})

		Convey("When inspected the next morning", func() {
			st := engine.DrinkStatuses(drinks, p, t0.Add(12*time.Hour))

			Convey("Then everything is eliminated", func() {
				for _, s := range st {
					So(s.Phase, ShouldEqual, bac.PhaseEliminated)
				}
			})
		})
	})
}

func TestFormat(t *testing.T) {
	Convey("Given hour offsets", t, func() {
		So(bac.FormatOffset(1.5), ShouldEqual, "1h 30m")
		So(bac.FormatOffset(0.75), ShouldEqual, "45m")
		So(bac.FormatOffset(2), ShouldEqual, "2h")

		So(bac.FormatRelative(0), ShouldEqual, "now")
		So(bac.FormatRelative(-2), ShouldEqual, "2h ago")
		So(bac.FormatRelative(0.75), ShouldEqual, "in 45 min")
		So(bac.FormatRelative(1.25), ShouldEqual, "in 1h 15m")
	})
}

package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/baculator/internal/domain/bac"
	types "github.com/okian/baculator/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEvaluateRequest(t *testing.T) {
	Convey("Given a JSON evaluation request", t, func() {
		body := `{"weight_kg":70,"sex":"male","drinks":[{"standards":1.5,"finished_at":"2025-03-14T20:00:00Z"}]}`

		Convey("When it is decoded", func() {
			var req types.EvaluateRequest
			err := json.Unmarshal([]byte(body), &req)

			Convey("Then drinks convert to engine drinks", func() {
				So(err, ShouldBeNil)
				So(req.Now, ShouldBeNil)
				drinks := types.Drinks(req.Drinks)
				So(drinks, ShouldHaveLength, 1)
				So(drinks[0].Standards, ShouldEqual, 1.5)
				So(drinks[0].CompletedAt.Equal(time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})
	})
}

func TestEvaluationResponse(t *testing.T) {
	Convey("Given an evaluation response", t, func() {
		resp := types.EvaluationResponse{
			Result:          bac.Result{CurrentBAC: 0.0135, IsRising: true, Timeline: []bac.Sample{}},
			TimeToSoberText: "1h 30m",
		}

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(resp)
			So(err, ShouldBeNil)
			var out map[string]interface{}
			So(json.Unmarshal(raw, &out), ShouldBeNil)

			Convey("Then engine fields are flattened next to display fields", func() {
				So(out["current_bac"], ShouldEqual, 0.0135)
				So(out["is_rising"], ShouldEqual, true)
				So(out["time_to_sober_text"], ShouldEqual, "1h 30m")
				So(out["timeline"], ShouldBeEmpty)
			})
		})
	})
}

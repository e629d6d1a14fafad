package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/baculator/internal/adapters/http/api"
	service "github.com/okian/baculator/internal/app"
	"github.com/okian/baculator/internal/domain/model"
	"github.com/okian/baculator/internal/domain/types"
	"github.com/okian/baculator/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

func newMux(deps api.Dependencies, stats api.StatsProvider) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, stats).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	decode(w, &body)
	return body.Code
}

// failingDeps fails every call with a plain error.
type failingDeps struct{ err error }

func (f failingDeps) Evaluate(context.Context, types.EvaluateRequest) (types.EvaluationResponse, error) {
	return types.EvaluationResponse{}, f.err
}
func (f failingDeps) SaveProfile(context.Context, string, types.ProfileRequest) (model.UserProfile, error) {
	return model.UserProfile{}, f.err
}
func (f failingDeps) Profile(context.Context, string) (model.UserProfile, error) {
	return model.UserProfile{}, f.err
}
func (f failingDeps) StartSession(context.Context, string, string) (model.Session, bool, error) {
	return model.Session{}, false, f.err
}
func (f failingDeps) StopSession(context.Context, string) (model.Session, error) {
	return model.Session{}, f.err
}
func (f failingDeps) CurrentSession(context.Context, string) (model.Session, error) {
	return model.Session{}, f.err
}
func (f failingDeps) Sessions(context.Context, string) ([]model.Session, error) { return nil, f.err }
func (f failingDeps) AddDrink(context.Context, string, types.DrinkInput) (model.DrinkEntry, bool, error) {
	return model.DrinkEntry{}, false, f.err
}
func (f failingDeps) UpdateDrink(context.Context, string, string, types.DrinkInput) (model.DrinkEntry, error) {
	return model.DrinkEntry{}, f.err
}
func (f failingDeps) DeleteDrink(context.Context, string, string) error { return f.err }
func (f failingDeps) Drinks(context.Context, string) ([]model.DrinkEntry, error) { return nil, f.err }
func (f failingDeps) CurrentBAC(context.Context, string, *time.Time) (types.EvaluationResponse, error) {
	return types.EvaluationResponse{}, f.err
}
func (f failingDeps) Snapshot(context.Context, string) (model.Snapshot, error) {
	return model.Snapshot{}, f.err
}

type staticStats map[string]interface{}

func (s staticStats) GetStats() map[string]interface{} { return s }

func TestServer_Register(t *testing.T) {
	Convey("Given a server registered on a mux", t, func() {
		svc := service.New(service.WithClock(func() time.Time { return t0 }))
		mux := newMux(svc, svc)

		Convey("Then /healthz serves prometheus metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then /stats serves the service stats", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			decode(w, &stats)
			So(stats["legalLimit"], ShouldEqual, 0.05)
			So(stats["timezone"], ShouldEqual, "UTC")
		})

		Convey("Then a wrong method is rejected", func() {
			w := do(mux, http.MethodDelete, "/evaluate", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then a nil mux panics", func() {
			So(func() { api.NewServer(svc, svc).Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

func TestEvaluateHandler(t *testing.T) {
	Convey("Given the evaluate endpoint", t, func() {
		svc := service.New(service.WithClock(func() time.Time { return t0 }))
		mux := newMux(svc, svc)

		Convey("When posting a drink log", func() {
			w := do(mux, http.MethodPost, "/evaluate", `{
				"weight_kg": 80, "sex": "male", "now": "2025-03-14T21:00:00Z",
				"drinks": [{"standards": 2, "finished_at": "2025-03-14T20:00:00Z"}]
			}`)

			Convey("Then the result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				var res types.EvaluationResponse
				decode(w, &res)
				So(res.CurrentBAC, ShouldBeGreaterThan, 0)
				So(res.PeakBAC, ShouldBeGreaterThanOrEqualTo, res.CurrentBAC)
				So(res.TimeToSoberHours, ShouldBeGreaterThan, 0)
				So(res.EvaluatedAt.Equal(t0.Add(time.Hour)), ShouldBeTrue)
				So(len(res.Markers), ShouldEqual, 1)
			})
		})

		Convey("When posting no drinks", func() {
			w := do(mux, http.MethodPost, "/evaluate", `{"weight_kg": 60, "sex": "female", "drinks": []}`)

			Convey("Then a zero result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res types.EvaluationResponse
				decode(w, &res)
				So(res.CurrentBAC, ShouldEqual, 0)
				So(res.Timeline, ShouldBeEmpty)
			})
		})

		Convey("When the sex is unknown", func() {
			w := do(mux, http.MethodPost, "/evaluate", `{"weight_kg": 80, "sex": "robot", "drinks": []}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
			})
		})

		Convey("When a drink is too large", func() {
			w := do(mux, http.MethodPost, "/evaluate", `{"weight_kg": 80, "sex": "male",
				"drinks": [{"standards": 25, "finished_at": "2025-03-14T20:00:00Z"}]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a drink is years older than now", func() {
			w := do(mux, http.MethodPost, "/evaluate", `{"weight_kg": 80, "sex": "male",
				"drinks": [{"standards": 1, "finished_at": "1725-03-14T20:00:00Z"}]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
			})
		})

		Convey("When the weight is zero", func() {
			w := do(mux, http.MethodPost, "/evaluate", `{"weight_kg": 0, "sex": "male",
				"drinks": [{"standards": 1, "finished_at": "2025-03-14T20:00:00Z"}]}`)

			Convey("Then the engine rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/evaluate", `{not json`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
			})
		})
	})
}

func TestUsersHandler(t *testing.T) {
	Convey("Given a user with no data", t, func() {
		svc := service.New(service.WithClock(func() time.Time { return t0 }))
		mux := newMux(svc, svc)

		Convey("Then the profile is not found", func() {
			w := do(mux, http.MethodGet, "/users/alice/profile", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})

		Convey("Then there is no current session", func() {
			So(do(mux, http.MethodGet, "/users/alice/sessions/current", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/users/alice/sessions/stop", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then drinks cannot be added", func() {
			w := do(mux, http.MethodPost, "/users/alice/drinks", `{"standards": 1, "finished_at": "2025-03-14T19:30:00Z"}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then the session list is empty", func() {
			w := do(mux, http.MethodGet, "/users/alice/sessions", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})

		Convey("Then there is no snapshot", func() {
			So(do(mux, http.MethodGet, "/users/alice/bac/snapshot", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When an invalid profile is saved", func() {
			w := do(mux, http.MethodPut, "/users/alice/profile", `{"weight_kg": 0.5, "sex": "male"}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a profile is saved and a session started", func() {
			w := do(mux, http.MethodPut, "/users/alice/profile", `{"weight_kg": 70, "sex": "female"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var profile model.UserProfile
			decode(w, &profile)
			So(profile.WeightKg, ShouldEqual, 70.0)

			w = do(mux, http.MethodPost, "/users/alice/sessions", `{"name": "Friday"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var started struct {
				Session model.Session `json:"session"`
				Created bool          `json:"created"`
			}
			decode(w, &started)
			So(started.Created, ShouldBeTrue)
			So(started.Session.Name, ShouldEqual, "Friday")

			Convey("Then starting again returns the open session", func() {
				w := do(mux, http.MethodPost, "/users/alice/sessions", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var again struct {
					Session model.Session `json:"session"`
					Created bool          `json:"created"`
				}
				decode(w, &again)
				So(again.Created, ShouldBeFalse)
				So(again.Session.ID, ShouldEqual, started.Session.ID)
			})

			Convey("Then a drink is recorded once per client id", func() {
				body := `{"id": "d-1", "standards": 2, "finished_at": "2025-03-14T19:15:00Z"}`
				first := do(mux, http.MethodPost, "/users/alice/drinks", body)
				So(first.Code, ShouldEqual, http.StatusCreated)
				second := do(mux, http.MethodPost, "/users/alice/drinks", body)
				So(second.Code, ShouldEqual, http.StatusOK)
				var dup struct {
					Duplicate bool `json:"duplicate"`
				}
				decode(second, &dup)
				So(dup.Duplicate, ShouldBeTrue)

				w := do(mux, http.MethodGet, "/users/alice/drinks", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var drinks []model.DrinkEntry
				decode(w, &drinks)
				So(len(drinks), ShouldEqual, 1)
				So(drinks[0].SessionID, ShouldEqual, started.Session.ID)

				Convey("And the live BAC reflects it", func() {
					w := do(mux, http.MethodGet, "/users/alice/bac", "")
					So(w.Code, ShouldEqual, http.StatusOK)
					var res types.EvaluationResponse
					decode(w, &res)
					So(res.CurrentBAC, ShouldBeGreaterThan, 0)
					So(res.EvaluatedAt.Equal(t0), ShouldBeTrue)
				})

				Convey("And the BAC can be evaluated at another instant", func() {
					w := do(mux, http.MethodGet, "/users/alice/bac?at=2025-03-15T20:00:00Z", "")
					So(w.Code, ShouldEqual, http.StatusOK)
					var res types.EvaluationResponse
					decode(w, &res)
					So(res.CurrentBAC, ShouldEqual, 0)
					So(res.EvaluatedAt.Equal(t0.Add(24*time.Hour)), ShouldBeTrue)
				})

				Convey("And a malformed instant is rejected", func() {
					So(do(mux, http.MethodGet, "/users/alice/bac?at=yesterday", "").Code, ShouldEqual, http.StatusBadRequest)
				})
			})

			Convey("Then a drink can be edited and deleted by its client id", func() {
				w := do(mux, http.MethodPost, "/users/alice/drinks", `{"id": "d-9", "standards": 1, "finished_at": "2025-03-14T19:00:00Z"}`)
				So(w.Code, ShouldEqual, http.StatusCreated)

				w = do(mux, http.MethodPut, "/users/alice/drinks/d-9", `{"standards": 3, "finished_at": "2025-03-14T19:40:00Z"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				var edited model.DrinkEntry
				decode(w, &edited)
				So(edited.Standards, ShouldEqual, 3.0)
				So(edited.FinishedAt.Equal(t0.Add(-20*time.Minute)), ShouldBeTrue)
				So(edited.SessionID, ShouldEqual, started.Session.ID)

				w = do(mux, http.MethodDelete, "/users/alice/drinks/d-9", "")
				So(w.Code, ShouldEqual, http.StatusNoContent)

				w = do(mux, http.MethodGet, "/users/alice/drinks", "")
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")

				Convey("And a missing drink is not found", func() {
					So(do(mux, http.MethodDelete, "/users/alice/drinks/d-9", "").Code, ShouldEqual, http.StatusNotFound)
					w := do(mux, http.MethodPut, "/users/alice/drinks/nope", `{"standards": 1, "finished_at": "2025-03-14T19:40:00Z"}`)
					So(w.Code, ShouldEqual, http.StatusNotFound)
					So(errorCode(w), ShouldEqual, "not_found")
				})

				Convey("And an edit is validated like a new drink", func() {
					So(do(mux, http.MethodPost, "/users/alice/drinks", `{"id": "d-10", "standards": 1, "finished_at": "2025-03-14T19:00:00Z"}`).Code, ShouldEqual, http.StatusCreated)
					w := do(mux, http.MethodPut, "/users/alice/drinks/d-10", `{"standards": 1, "finished_at": "1999-03-14T19:40:00Z"}`)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(do(mux, http.MethodPut, "/users/alice/drinks/d-10", `{not json`).Code, ShouldEqual, http.StatusBadRequest)
				})
			})

			Convey("Then an invalid drink is rejected", func() {
				w := do(mux, http.MethodPost, "/users/alice/drinks", `{"standards": -1, "finished_at": "2025-03-14T19:15:00Z"}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then stopping closes the session", func() {
				w := do(mux, http.MethodPost, "/users/alice/sessions/stop", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var stopped model.Session
				decode(w, &stopped)
				So(stopped.Open(), ShouldBeFalse)

				So(do(mux, http.MethodGet, "/users/alice/sessions/current", "").Code, ShouldEqual, http.StatusNotFound)

				w = do(mux, http.MethodGet, "/users/alice/sessions", "")
				var sessions []model.Session
				decode(w, &sessions)
				So(len(sessions), ShouldEqual, 1)
			})
		})
	})

	Convey("Given dependencies that fail", t, func() {
		mux := newMux(failingDeps{err: errors.New("db down")}, staticStats{})

		Convey("Then handlers answer 500", func() {
			for _, tc := range []struct{ method, path, body string }{
				{http.MethodGet, "/users/bob/profile", ""},
				{http.MethodPut, "/users/bob/profile", `{"weight_kg": 80, "sex": "male"}`},
				{http.MethodPost, "/users/bob/sessions", ""},
				{http.MethodGet, "/users/bob/sessions", ""},
				{http.MethodGet, "/users/bob/drinks", ""},
				{http.MethodPut, "/users/bob/drinks/d-1", `{"standards": 1, "finished_at": "2025-03-14T19:40:00Z"}`},
				{http.MethodDelete, "/users/bob/drinks/d-1", ""},
				{http.MethodGet, "/users/bob/bac", ""},
				{http.MethodPost, "/evaluate", `{}`},
			} {
				w := do(mux, tc.method, tc.path, tc.body)
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorCode(w), ShouldEqual, "internal_error")
			}
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given the error helpers", t, func() {
		cause := errors.New("boom")

		Convey("Then WrapKind keeps both kind and cause", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then NewKind and Wrap prefix the op", func() {
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(errors.Is(api.Wrap("api.op", cause), cause), ShouldBeTrue)
		})
	})
}

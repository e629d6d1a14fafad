package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/baculator/internal/adapters/repository"
	"github.com/okian/baculator/internal/config"
	"github.com/okian/baculator/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainComponents(t *testing.T) {
	convey.Convey("Given a configuration loaded from the environment", t, func() {
		_ = os.Setenv("BACULATOR_QUEUE_SIZE", "100")
		_ = os.Setenv("BACULATOR_WORKER_COUNT", "2")
		_ = os.Setenv("BACULATOR_LEGAL_LIMIT", "0.08")
		defer func() {
			_ = os.Unsetenv("BACULATOR_QUEUE_SIZE")
			_ = os.Unsetenv("BACULATOR_WORKER_COUNT")
			_ = os.Unsetenv("BACULATOR_LEGAL_LIMIT")
		}()

		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When no database is configured", func() {
			store, release, err := openStore(ctx, cfg)

			convey.Convey("Then the in-memory store is used", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := store.(*repository.MemoryStore)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(release, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When the service is built", func() {
			store, _, _ := openStore(ctx, cfg)
			svc, err := newService(cfg, store, logger.Get())
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then it carries the configured engine", func() {
				convey.So(svc.Engine().Config().LegalLimit, convey.ShouldEqual, 0.08)
				convey.So(svc.Engine().Config().Location.String(), convey.ShouldEqual, "Australia/Sydney")
				stats := svc.GetStats()
				convey.So(stats["workerCount"], convey.ShouldEqual, 2)
				convey.So(stats["queueSize"], convey.ShouldEqual, 100)
			})

			convey.Convey("Then the mux serves the API and the docs", func() {
				mux := newMux(ctx, svc)
				for _, path := range []string{"/healthz", "/stats", "/openapi.yaml", "/api-docs"} {
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}

				w := httptest.NewRecorder()
				body := `{"weight_kg": 80, "sex": "male", "now": "2025-03-14T21:00:00Z",
					"drinks": [{"standards": 1, "finished_at": "2025-03-14T20:00:00Z"}]}`
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(body)))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("Then it starts and stops", func() {
				convey.So(svc.Start(ctx), convey.ShouldBeNil)
				convey.So(svc.Started(), convey.ShouldBeTrue)
				svc.Stop()
				convey.So(svc.Started(), convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given an invalid time zone", t, func() {
		cfg := config.New(context.Background())
		cfg.Timezone = "Nowhere/Special"

		convey.Convey("Then the service cannot be built", func() {
			_, err := newService(cfg, repository.NewMemoryStore(), logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		store := repository.NewMemoryStore()
		svc, err := newService(config.New(context.Background()), store, logger.Get())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then they stop with their context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestRunFailsOnBadConfig(t *testing.T) {
	convey.Convey("Given an invalid address in the environment", t, func() {
		_ = os.Setenv("BACULATOR_ADDR", "")
		defer func() { _ = os.Unsetenv("BACULATOR_ADDR") }()

		convey.Convey("Then run returns the load error", func() {
			err := run(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "failed to load config")
		})
	})
}

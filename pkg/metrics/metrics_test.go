package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func find(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("bac"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.evaluations.WithLabelValues("api").Inc()

			Convey("Then metrics are registered under the configured names", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				f := find(families, "test_bac_evaluations_total")
				So(f, ShouldNotBeNil)
				So(f.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1)

				labels := map[string]string{}
				for _, l := range f.GetMetric()[0].GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				So(labels["env"], ShouldEqual, "test")
				So(labels["source"], ShouldEqual, "api")
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics on duplicates", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording engine metrics", func() {
			So(func() {
				RecordEvaluation("api")
				RecordEvaluation("refresh")
				RecordEvaluationError("invalid_drink")
				RecordEvaluationLatency(0.4)
				RecordHorizonExceeded()
				RecordCurrentBAC(0.0135)
			}, ShouldNotPanic)
		})

		Convey("When recording session metrics", func() {
			So(func() {
				RecordDrinkRecorded()
				RecordDrinkDuplicate()
				RecordDrinkEdited("update")
				RecordDrinkEdited("delete")
				RecordSessionStarted()
				RecordSessionsAutoClosed(0)
				RecordSessionsAutoClosed(2)
				UpdateActiveSessions(3)
				RecordRefreshLatency(12)
				UpdateRefreshLastUnix(1.7e9)
				RecordSnapshotStored()
				RecordRepositoryLatency("memory", "add_drink", 0.01)
			}, ShouldNotPanic)
		})

		Convey("When recording operational metrics", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(1)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(3)
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
				RecordHTTPRequest("/evaluate", "POST", "200")
				RecordHTTPRequestDuration("/evaluate", "POST", "200", 3)
				RecordErrorByComponent("queue", "queue_full")
				RecordErrorByEndpoint("/evaluate", "POST", "400")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry exposes them", func() {
			RecordSessionsAutoClosed(1)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(find(families, "baculator_engine_sessions_auto_closed_total"), ShouldNotBeNil)
			So(find(families, "baculator_engine_current_bac"), ShouldNotBeNil)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global manager rebuilt with custom naming", t, func() {
		Configure(WithNamespace("bactest"), WithConstLabels(map[string]string{"env": "ci"}))
		defer Configure()

		RecordDrinkEdited("delete")

		Convey("Then the global registry exposes the new names", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			f := find(families, "bactest_engine_drinks_edited_total")
			So(f, ShouldNotBeNil)
			So(f.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1)
			So(find(families, "baculator_engine_drinks_edited_total"), ShouldBeNil)
		})
	})
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then collectors are registered under the default namespace", func() {
				manager.scoringErrors.Inc()
				n, err := testutil.GatherAndCount(registry, "xplor_crewscore_scoring_errors_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithName("test", "unit"),
				WithLatencyBuckets([]float64{1, 5, 10}),
				WithScoreBuckets([]float64{25, 50, 75}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithRegistry(registry),
			)

			Convey("Then metric names follow the options", func() {
				manager.leaderboardUpdates.Inc()
				n, err := testutil.GatherAndCount(registry, "test_unit_leaderboard_updates_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording a scored profile", func() {
			before := testutil.ToFloat64(globalManager.scoresComputed.WithLabelValues("cri", "Elite"))
			fallbacks := testutil.ToFloat64(globalManager.tierFallbacks.WithLabelValues("cri"))
			RecordScore("cri", "Elite", 95, true)
			RecordScore("cri", "Elite", 120, false)

			Convey("Then counters move by scheme and tier", func() {
				So(testutil.ToFloat64(globalManager.scoresComputed.WithLabelValues("cri", "Elite")), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.tierFallbacks.WithLabelValues("cri")), ShouldEqual, fallbacks+1)
			})
		})

		Convey("When updating queue size", func() {
			UpdateQueueSize(25, 100)

			Convey("Then utilization is derived from capacity", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 25)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
			})
		})

		Convey("When updating crew totals", func() {
			UpdateCrewsTotal("yci", 7)

			Convey("Then the gauge is per scheme", func() {
				So(testutil.ToFloat64(globalManager.crewsTotal.WithLabelValues("yci")), ShouldEqual, 7)
			})
		})

		Convey("When every recorder is called", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					RecordScoringLatency(1.5)
					RecordScoringError()
					RecordBatchSize(10)
					RecordSubmissionAccepted()
					RecordSubmissionDuplicate()
					RecordSubmissionRejected("queue_full")
					UpdateDedupeSize(3)
					RecordDedupeBackendError()
					RecordLeaderboardUpdate()
					RecordLeaderboardError()
					RecordRepositoryUpdateLatency(0.2)
					RecordRepositoryQueryLatency(0.1)
					RecordArchiveWrite("ok")
					RecordArchiveLatency("save", 3)
					UpdateQueueCapacity(100)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					RecordQueueProcessingLatency(0.01)
					UpdateWorkerActiveCount(4)
					UpdateWorkerMessagesPerSecond(12.5)
					RecordWorkerProcessingLatency(2)
					RecordWorkerError()
					RecordHTTPRequest("/score", "POST", "200", 4)
					RecordErrorByComponent("worker", "scoring_error")
					RecordErrorByEndpoint("/score", "POST", "bad_request")
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(10)
					RecordSystemGCPauseTime(0.3)
				}, ShouldNotPanic)
			})
		})
	})

	Convey("Given a disabled global manager", t, func() {
		prev := globalManager
		globalManager = NewManager(WithRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))
		defer func() { globalManager = prev }()

		Convey("Then recorders are no-ops", func() {
			RecordSubmissionAccepted()
			So(testutil.ToFloat64(globalManager.submissionsAccepted), ShouldEqual, 0)
		})
	})

	Convey("Given a process configured with wider score buckets", t, func() {
		prevReg, prevManager := customRegistry, globalManager
		defer func() { customRegistry, globalManager = prevReg, prevManager }()

		Configure(WithScoreBuckets([]float64{50, 100, 150}))
		RecordScore("wide", "Gold", 140, true)

		Convey("Then totals land in the configured buckets on the new registry", func() {
			So(GetRegistry(), ShouldNotEqual, prevReg)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			var upper []float64
			for _, mf := range families {
				if mf.GetName() == "xplor_crewscore_score_total_points" {
					for _, b := range mf.GetMetric()[0].GetHistogram().GetBucket() {
						upper = append(upper, b.GetUpperBound())
					}
				}
			}
			So(upper, ShouldResemble, []float64{50, 100, 150})
		})
	})

	Convey("Given the exported registry", t, func() {
		Convey("Then it is the one the global manager registers on", func() {
			RecordLeaderboardUpdate()
			n, err := testutil.GatherAndCount(GetRegistry(), "xplor_crewscore_leaderboard_updates_total")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})
	})
}

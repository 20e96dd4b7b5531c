package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with the default namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "scoutnotes")
				So(manager.subsystem, ShouldEqual, "drafts")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)
			manager.draftDeletes.Inc()

			Convey("Then metric names carry the overrides", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_deletes_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})
		})

		Convey("When empty option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then the defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "scoutnotes")
				So(manager.subsystem, ShouldEqual, "drafts")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording draft upserts", func() {
			written := testutil.ToFloat64(globalManager.draftUpserts.WithLabelValues(OutcomeWritten))
			unchanged := testutil.ToFloat64(globalManager.draftUpserts.WithLabelValues(OutcomeUnchanged))
			RecordDraftUpsert(false)
			RecordDraftUpsert(true)
			RecordDraftUpsert(true)

			Convey("Then each outcome is counted", func() {
				So(testutil.ToFloat64(globalManager.draftUpserts.WithLabelValues(OutcomeWritten)), ShouldEqual, written+1)
				So(testutil.ToFloat64(globalManager.draftUpserts.WithLabelValues(OutcomeUnchanged)), ShouldEqual, unchanged+2)
			})
		})

		Convey("When recording fetches and rubric lookups", func() {
			hits := testutil.ToFloat64(globalManager.draftFetches.WithLabelValues(ResultHit))
			RecordDraftFetch(true)
			RecordDraftFetch(false)
			RecordRubricLookup("redis", false)
			RecordRubricLookup("catalog", true)

			Convey("Then the labelled counters move", func() {
				So(testutil.ToFloat64(globalManager.draftFetches.WithLabelValues(ResultHit)), ShouldEqual, hits+1)
				So(testutil.ToFloat64(globalManager.rubricLookups.WithLabelValues("catalog", ResultHit)), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(3)
			UpdateQueueCapacity(64)
			UpdateDraftsStored(12)

			Convey("Then the last value wins", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 64)
				So(testutil.ToFloat64(globalManager.draftsStored), ShouldEqual, 12)
			})
		})

		Convey("When recording editor sync activity", func() {
			So(func() {
				RecordRemoteSync("upsert", OutcomeOK)
				RecordRemoteSync("upsert", OutcomeError)
				RecordRemoteSyncLatency("upsert", 12.5)
				RecordReconciliation("remote")
				RecordCompleteness()
				RecordLocalCacheError("set")
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordErrorByComponent("editor", "remote")
				RecordHTTPRequest("/v1/drafts", "GET", "200")
				RecordHTTPRequestDuration("/v1/drafts", "GET", "200", 1.5)
				RecordHTTPError("/v1/drafts", "PUT", "conflict", "medium")
				RecordRepositoryQueryLatency(0.4)
				RecordRepositoryUpdateLatency(0.9)
				RecordDraftDelete()
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			RecordDraftDelete()
			families, err := GetRegistry().Gather()

			Convey("Then only scoutnotes metrics are exposed", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "scoutnotes_drafts_"), ShouldBeTrue)
				}
			})
		})
	})
}

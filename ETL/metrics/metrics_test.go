package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
)

func sampleSummary() models.RunSummary {
	finished := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)
	return models.RunSummary{
		StartedAt:  finished.Add(-5 * time.Second),
		FinishedAt: finished,
		Transform: models.TransformSummary{
			RowsRead: 10,
			RowsKept: 8,
			Dropped:  models.DropCounts{models.DropMissingEmail: 2},
		},
		Load: models.LoadResult{
			DimensionRowsInserted: map[string]int64{models.DimensionCountry: 3},
			FactsInserted:         7,
			FactsDropped:          models.DropCounts{models.DropUnresolvedCountry: 1},
		},
	}
}

func TestMetricsManager(t *testing.T) {
	Convey("Given a metrics manager on a custom registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithRegistry(registry), WithConstLabels(map[string]string{"env": "test"}))

		So(m.Registry(), ShouldEqual, registry)

		Convey("When a run is observed", func() {
			m.ObserveRun(sampleSummary())
			m.RecordRunFailure()

			Convey("Then the counters reflect the summary", func() {
				So(testutil.ToFloat64(m.rowsRead), ShouldEqual, 10)
				So(testutil.ToFloat64(m.rowsKept), ShouldEqual, 8)
				So(testutil.ToFloat64(m.factsInserted), ShouldEqual, 7)
				So(testutil.ToFloat64(m.rowsDropped.WithLabelValues(StageTransform, "missing_email")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.rowsDropped.WithLabelValues(StageLoad, "unresolved_country")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.dimensionRowsInserted.WithLabelValues("country")), ShouldEqual, 3)
				So(testutil.ToFloat64(m.runs.WithLabelValues("success")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.runs.WithLabelValues("failed")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.lastSuccess), ShouldEqual, float64(sampleSummary().FinishedAt.Unix()))
			})
		})

		Convey("When dashboard events are recorded", func() {
			m.RecordKPIRefresh(nil)
			m.RecordKPIRefresh(errors.New("db down"))
			m.SetWebsocketClients(4)
			m.ObserveHTTPRequest("/api/kpis", http.MethodGet, http.StatusOK, 20*time.Millisecond)

			Convey("Then they are counted", func() {
				So(testutil.ToFloat64(m.kpiRefreshes.WithLabelValues("ok")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.kpiRefreshes.WithLabelValues("error")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.websocketClients), ShouldEqual, 4)
				So(testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/kpis", "GET", "200")), ShouldEqual, 1)
			})
		})

		Convey("When the handler is scraped", func() {
			m.ObservePhase(PhaseLoad, time.Second)
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then it exposes the namespaced metrics", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `etl_applications_phase_duration_seconds_count{env="test",phase="load"} 1`)
			})
		})

		Convey("When written to a textfile", func() {
			m.ObserveRun(sampleSummary())
			path := filepath.Join(t.TempDir(), "etl.prom")
			err := m.WriteTextfile(path)

			Convey("Then the file holds the exposition format", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(strings.Contains(string(data), "etl_applications_facts_inserted_total"), ShouldBeTrue)
			})
		})
	})
}

func TestNewManager_DefaultRegistryIsPrivate(t *testing.T) {
	a := NewManager()
	b := NewManager()
	if a.Registry() == b.Registry() {
		t.Fatal("managers must not share a registry")
	}
}

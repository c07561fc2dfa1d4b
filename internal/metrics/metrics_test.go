package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_record(t *testing.T) {
	m := New()
	m.ObserveRun("success")
	m.ObserveRun("success")
	m.ObserveRun("error")
	m.AddRecords("movie", 99, 1)
	m.AddRecords("movie", 1, 0)
	m.ObserveStage("live", 2*time.Second)
	m.SetLastSuccess(time.Unix(1700000000, 0))

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("success runs = %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("movie", OutcomeAccepted)); got != 100 {
		t.Errorf("accepted = %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("movie", OutcomeRejected)); got != 1 {
		t.Errorf("rejected = %v", got)
	}
	if got := testutil.ToFloat64(m.LastSuccess); got != 1700000000 {
		t.Errorf("last success = %v", got)
	}
	if n := testutil.CollectAndCount(m.StageDuration); n != 1 {
		t.Errorf("stage series = %d", n)
	}
}

func TestMetrics_nilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun("success")
	m.AddRecords("live", 1, 1)
	m.ObserveStage("guide", time.Second)
	m.SetLastSuccess(time.Now())
}

func TestMetrics_handler(t *testing.T) {
	m := New()
	m.ObserveRun("skipped")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `iptvsync_sync_runs_total{result="skipped"} 1`) {
		t.Errorf("exposition missing run counter:\n%s", body)
	}
}

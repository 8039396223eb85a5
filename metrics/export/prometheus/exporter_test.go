package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/authmint/authmint"
)

type fakeSource struct {
	snapshot authmint.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authmint.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderCountersAndHistogram(t *testing.T) {
	src := &fakeSource{
		snapshot: authmint.MetricsSnapshot{
			Counters: map[authmint.MetricID]uint64{
				authmint.MetricLoginSuccess:         7,
				authmint.MetricRefreshReuseDetected: 2,
			},
			Histograms: map[authmint.MetricID][]uint64{
				authmint.MetricValidateLatency: {1, 0, 2, 0, 0, 0, 0, 1},
			},
		},
		dropped: 3,
	}

	out := NewExporterFromSource(src).Render()

	for _, want := range []string{
		"# TYPE authmint_login_success_total counter",
		"authmint_login_success_total 7",
		"authmint_refresh_reuse_detected_total 2",
		"# TYPE authmint_validate_latency_seconds histogram",
		`authmint_validate_latency_seconds_bucket{le="0.005"} 1`,
		`authmint_validate_latency_seconds_bucket{le="0.025"} 3`,
		`authmint_validate_latency_seconds_bucket{le="+Inf"} 4`,
		"authmint_validate_latency_seconds_count 4",
		"authmint_audit_dropped_total 3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptyWhenDisabled(t *testing.T) {
	src := &fakeSource{snapshot: authmint.MetricsSnapshot{
		Counters:   map[authmint.MetricID]uint64{},
		Histograms: map[authmint.MetricID][]uint64{},
	}}

	if out := NewExporterFromSource(src).Render(); out != "" {
		t.Fatalf("expected empty render, got:\n%s", out)
	}

	var nilExporter *Exporter
	if out := nilExporter.Render(); out != "" {
		t.Fatal("nil exporter must render empty")
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	src := &fakeSource{
		snapshot: authmint.MetricsSnapshot{
			Counters:   map[authmint.MetricID]uint64{authmint.MetricLogout: 1},
			Histograms: map[authmint.MetricID][]uint64{},
		},
	}

	rec := httptest.NewRecorder()
	NewExporterFromSource(src).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "authmint_logout_total 1") {
		t.Fatalf("body missing counter:\n%s", rec.Body)
	}
}

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ebahrami/underthreat/config"
)

func TestTelemetryRecordsAndExposes(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})

	tele.RecordRequest(150*time.Millisecond, false)
	tele.RecordRequest(0, true)
	tele.RecordStage("StructuredDataStage", false)
	tele.RecordStage("WebEnrichmentStage", true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	tele.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"underthreat_requests_total 2",
		"underthreat_requests_failed_total 1",
		`underthreat_stage_runs_total{stage="StructuredDataStage"} 1`,
		`underthreat_stage_errors_total{stage="WebEnrichmentStage"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestTelemetryInstancesAreIsolated(t *testing.T) {
	// Each instance owns a registry; creating two must not panic on
	// duplicate registration.
	a := NewTelemetry(config.TelemetryConfig{})
	b := NewTelemetry(config.TelemetryConfig{})
	a.RecordStage("StructuredDataStage", false)

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(rec.Body.String(), `stage="StructuredDataStage"`) {
		t.Fatal("registries are shared between instances")
	}
}

package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetricsWritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/api/programs/:id/generation", "202", 40*time.Millisecond)
	m.ObserveLLMRequest("stub", "complete", "ok", time.Second, 10, 20)
	m.IncDigest("fallback")
	m.IncDigest("fallback")
	m.IncJobFinished("COMPLETED")

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`curriculum_api_requests_total{method="POST",route="/api/programs/:id/generation",status="202"} 1.000000`,
		`curriculum_llm_tokens_total{provider="stub",direction="output"} 20.000000`,
		`curriculum_digests_total{outcome="fallback"} 2.000000`,
		`curriculum_generation_jobs_total{status="COMPLETED"} 1.000000`,
		`curriculum_llm_request_seconds_bucket{provider="stub",endpoint="complete",status="ok",le="+Inf"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.IncRepair("failed")
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

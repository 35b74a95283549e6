package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opsdesk/relay/internal/metrics"
)

func TestHandleHealth(t *testing.T) {
	collector := metrics.NewCollector(metrics.DefaultConfig())
	defer collector.Stop()
	s := NewServer(collector, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with no traffic", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}

func TestHandleHealth_CriticalOnErrorBurst(t *testing.T) {
	collector := metrics.NewCollector(metrics.DefaultConfig())
	defer collector.Stop()
	for i := 0; i < 20; i++ {
		collector.RecordError("/api/calls", "SRV_001", 50*time.Millisecond, "")
	}
	s := NewServer(collector, 0)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 while critical", rec.Code)
	}
}

func TestHandleDetailed(t *testing.T) {
	collector := metrics.NewCollector(metrics.DefaultConfig())
	defer collector.Stop()
	collector.RecordRequest("/api/clients", "GET", 25*time.Millisecond, true, 200, "")
	s := NewServer(collector, 0)

	rec := httptest.NewRecorder()
	s.handleDetailed(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := rec.Body.String()
	if !strings.Contains(out, `"current"`) || !strings.Contains(out, `"alerts"`) {
		t.Errorf("detailed payload missing dashboard fields:\n%s", out)
	}
}

package metrics

import (
	"strings"
	"testing"
	"time"
)

func newTestCollector() (*Collector, *time.Time) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c := NewCollector(DefaultConfig())
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCollector_RingCap(t *testing.T) {
	c := NewCollector(Config{MaxSamples: 100})
	for i := 0; i < 250; i++ {
		c.RecordRequest("/api/clients", "GET", 10*time.Millisecond, true, 200, "")
	}
	if got := c.Len(); got != 100 {
		t.Errorf("buffer length = %d, want capped at 100", got)
	}
}

func TestCollector_SweepDropsOldSamples(t *testing.T) {
	c, now := newTestCollector()

	c.RecordRequest("/api/clients", "GET", 10*time.Millisecond, true, 200, "")
	*now = now.Add(2 * time.Hour)
	c.RecordRequest("/api/clients", "GET", 10*time.Millisecond, true, 200, "")

	c.sweep()
	if got := c.Len(); got != 1 {
		t.Errorf("after sweep: %d samples, want 1", got)
	}
}

func TestCollector_StopIsIdempotent(t *testing.T) {
	c := NewCollector(DefaultConfig())
	c.Start()
	c.Stop()
	c.Stop()
}

func TestAggregate_EmptyWindow(t *testing.T) {
	c, _ := newTestCollector()

	agg := c.Aggregate(time.Hour)
	if agg.Total != 0 || agg.P95Duration != 0 || agg.ErrorRate != 0 || agg.PerSecond != 0 {
		t.Errorf("empty window must yield zeroed aggregates, got %+v", agg)
	}
}

func TestAggregate_Percentiles(t *testing.T) {
	c, _ := newTestCollector()

	// 100 samples: 10ms, 20ms, ..., 1000ms.
	for i := 1; i <= 100; i++ {
		c.RecordRequest("/api/calls", "GET", time.Duration(i*10)*time.Millisecond, true, 200, "")
	}

	agg := c.Aggregate(time.Hour)
	if agg.Total != 100 {
		t.Fatalf("total = %d, want 100", agg.Total)
	}
	// Sorted index floor(100*0.95) = 95 holds 960ms; index 99 holds 1000ms.
	if agg.P95Duration != 960*time.Millisecond {
		t.Errorf("p95 = %v, want 960ms", agg.P95Duration)
	}
	if agg.P99Duration != 1000*time.Millisecond {
		t.Errorf("p99 = %v, want 1000ms", agg.P99Duration)
	}
	if agg.AvgDuration != 505*time.Millisecond {
		t.Errorf("avg = %v, want 505ms", agg.AvgDuration)
	}
}

func TestAggregate_TopEndpointsAndErrorCodes(t *testing.T) {
	c, _ := newTestCollector()

	for i := 0; i < 12; i++ {
		c.RecordRequest("/api/clients/:id", "GET", 20*time.Millisecond, true, 200, "")
	}
	for i := 0; i < 4; i++ {
		c.RecordRequest("/api/tickets", "POST", 40*time.Millisecond, true, 201, "")
	}
	c.RecordError("/api/sms", "EXT_001", 100*time.Millisecond, "")
	c.RecordError("/api/sms", "EXT_001", 100*time.Millisecond, "")
	c.RecordError("/api/sms", "NET_002", 100*time.Millisecond, "")

	agg := c.Aggregate(time.Hour)
	if agg.Failed != 3 || agg.Succeeded != 16 {
		t.Errorf("failed/succeeded = %d/%d, want 3/16", agg.Failed, agg.Succeeded)
	}
	if agg.Endpoints[0].Endpoint != "/api/clients/:id" || agg.Endpoints[0].Count != 12 {
		t.Errorf("top endpoint = %+v, want /api/clients/:id x12", agg.Endpoints[0])
	}
	if agg.Endpoints[0].AvgDuration != 20*time.Millisecond {
		t.Errorf("top endpoint avg = %v, want 20ms", agg.Endpoints[0].AvgDuration)
	}
	if agg.ErrorCodes[0].Code != "EXT_001" || agg.ErrorCodes[0].Count != 2 {
		t.Errorf("top error code = %+v, want EXT_001 x2", agg.ErrorCodes[0])
	}
}

func TestAggregate_WindowExcludesOldSamples(t *testing.T) {
	c, now := newTestCollector()

	c.RecordRequest("/api/old", "GET", 10*time.Millisecond, true, 200, "")
	*now = now.Add(30 * time.Minute)
	c.RecordRequest("/api/new", "GET", 10*time.Millisecond, true, 200, "")

	agg := c.Aggregate(10 * time.Minute)
	if agg.Total != 1 || agg.Endpoints[0].Endpoint != "/api/new" {
		t.Errorf("window aggregation leaked old samples: %+v", agg)
	}
}

func TestExport_Exposition(t *testing.T) {
	c, _ := newTestCollector()
	c.RecordRequest("/api/clients", "GET", 100*time.Millisecond, true, 200, "")
	c.RecordError("/api/clients", "SRV_001", 50*time.Millisecond, "")

	out, err := c.Export(FormatExposition, time.Hour)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	text := string(out)
	for _, want := range []string{
		"relay_requests_total 2",
		"relay_requests_failed_total 1",
		`relay_errors_by_code{code="SRV_001"} 1`,
		"# TYPE relay_error_rate gauge",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q:\n%s", want, text)
		}
	}
}

func TestExport_JSON(t *testing.T) {
	c, _ := newTestCollector()
	c.RecordRequest("/api/clients", "GET", 100*time.Millisecond, true, 200, "")

	out, err := c.Export(FormatJSON, time.Hour)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(string(out), `"total": 1`) {
		t.Errorf("json export missing totals:\n%s", out)
	}

	if _, err := c.Export("xml", time.Hour); err == nil {
		t.Error("unknown format must error")
	}
}

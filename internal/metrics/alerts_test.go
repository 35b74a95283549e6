package metrics

import (
	"testing"
	"time"
)

func findAlert(alerts []Alert, alertType string) *Alert {
	for i := range alerts {
		if alerts[i].Type == alertType {
			return &alerts[i]
		}
	}
	return nil
}

func TestAlerts_BurstErrorRate(t *testing.T) {
	c, _ := newTestCollector()

	// 20 failures and 5 successes: error rate 0.8, well over the 10% bar.
	for i := 0; i < 20; i++ {
		c.RecordError("/api/calls", "SRV_001", 50*time.Millisecond, "")
	}
	for i := 0; i < 5; i++ {
		c.RecordRequest("/api/calls", "GET", 50*time.Millisecond, true, 200, "")
	}

	current := c.Aggregate(time.Hour)
	if current.ErrorRate != 0.8 {
		t.Fatalf("error rate = %v, want 0.8", current.ErrorRate)
	}

	alert := findAlert(c.Alerts(current, Aggregated{}), AlertErrorRate)
	if alert == nil {
		t.Fatal("expected an error_rate alert")
	}
	if alert.Severity != AlertHigh {
		t.Errorf("severity = %s, want HIGH above the 10%% threshold", alert.Severity)
	}
}

func TestAlerts_ModerateErrorRateIsMedium(t *testing.T) {
	c, _ := newTestCollector()

	current := Aggregated{Total: 100, Failed: 7, ErrorRate: 0.07}
	alert := findAlert(c.Alerts(current, Aggregated{}), AlertErrorRate)
	if alert == nil || alert.Severity != AlertMedium {
		t.Errorf("7%% error rate should raise a MEDIUM alert, got %+v", alert)
	}
}

func TestAlerts_SlowResponse(t *testing.T) {
	c, _ := newTestCollector()

	alert := findAlert(c.Alerts(Aggregated{P95Duration: 6 * time.Second}, Aggregated{}), AlertSlowResponse)
	if alert == nil || alert.Severity != AlertMedium {
		t.Errorf("p95 of 6s should raise MEDIUM, got %+v", alert)
	}

	alert = findAlert(c.Alerts(Aggregated{P95Duration: 11 * time.Second}, Aggregated{}), AlertSlowResponse)
	if alert == nil || alert.Severity != AlertHigh {
		t.Errorf("p95 of 11s should raise HIGH, got %+v", alert)
	}
}

func TestAlerts_TrafficSpike(t *testing.T) {
	c, _ := newTestCollector()

	alerts := c.Alerts(Aggregated{PerSecond: 25}, Aggregated{PerSecond: 10})
	if findAlert(alerts, AlertTrafficSpike) == nil {
		t.Error("2.5x rate at 25 req/s should raise a traffic spike alert")
	}

	// Ratio over 2x but absolute rate too low to matter.
	alerts = c.Alerts(Aggregated{PerSecond: 5}, Aggregated{PerSecond: 2})
	if findAlert(alerts, AlertTrafficSpike) != nil {
		t.Error("spike below 10 req/s must not alert")
	}
}

func TestAlerts_LowTraffic(t *testing.T) {
	c, _ := newTestCollector()

	alert := findAlert(c.Alerts(Aggregated{PerSecond: 0.05}, Aggregated{PerSecond: 2}), AlertLowTraffic)
	if alert == nil || alert.Severity != AlertHigh {
		t.Errorf("traffic drop should raise HIGH low_traffic alert, got %+v", alert)
	}

	if findAlert(c.Alerts(Aggregated{PerSecond: 0.05}, Aggregated{PerSecond: 0.5}), AlertLowTraffic) != nil {
		t.Error("low traffic with a quiet previous window must not alert")
	}
}

func TestAlerts_QuietWindow(t *testing.T) {
	c, _ := newTestCollector()
	if alerts := c.Alerts(Aggregated{}, Aggregated{}); len(alerts) != 0 {
		t.Errorf("no activity should yield no alerts, got %+v", alerts)
	}
}

func TestDashboard_Health(t *testing.T) {
	c, now := newTestCollector()

	for i := 0; i < 20; i++ {
		c.RecordError("/api/calls", "SRV_001", 50*time.Millisecond, "")
	}
	*now = now.Add(time.Minute)

	d := c.GetDashboardMetrics()
	if d.Health != "critical" {
		t.Errorf("health = %s, want critical with a HIGH alert active", d.Health)
	}
	if d.Current.Failed != 20 {
		t.Errorf("current window failed = %d, want 20", d.Current.Failed)
	}
}

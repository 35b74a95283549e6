package metrics

import (
	"fmt"
	"time"
)

// AlertSeverity grades alerts for the dashboard.
type AlertSeverity string

const (
	AlertMedium AlertSeverity = "MEDIUM"
	AlertHigh   AlertSeverity = "HIGH"
)

// Alert types.
const (
	AlertErrorRate    = "error_rate"
	AlertSlowResponse = "slow_response"
	AlertTrafficSpike = "traffic_spike"
	AlertLowTraffic   = "low_traffic"
)

// Alert is a derived value recomputed on demand, never stored.
type Alert struct {
	Type      string        `json:"type"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Value     float64       `json:"value"`
	Threshold float64       `json:"threshold"`
	Timestamp time.Time     `json:"timestamp"`
}

// Alert thresholds.
const (
	errorRateThreshold     = 0.05
	errorRateHighThreshold = 0.10
	p95Threshold           = 5 * time.Second
	p95HighThreshold       = 10 * time.Second
	spikeRatio             = 2.0
	spikeMinRate           = 10.0
	lowTrafficRate         = 0.1
	lowTrafficPrevRate     = 1.0
)

// Alerts applies fixed thresholds to the current window, comparing against
// the previous window for traffic anomalies.
func (c *Collector) Alerts(current, previous Aggregated) []Alert {
	now := c.now()
	var alerts []Alert

	if current.Total > 0 && current.ErrorRate > errorRateThreshold {
		severity := AlertMedium
		if current.ErrorRate > errorRateHighThreshold {
			severity = AlertHigh
		}
		alerts = append(alerts, Alert{
			Type:      AlertErrorRate,
			Severity:  severity,
			Message:   fmt.Sprintf("error rate %.1f%% exceeds %.0f%%", current.ErrorRate*100, errorRateThreshold*100),
			Value:     current.ErrorRate,
			Threshold: errorRateThreshold,
			Timestamp: now,
		})
	}

	if current.P95Duration > p95Threshold {
		severity := AlertMedium
		if current.P95Duration > p95HighThreshold {
			severity = AlertHigh
		}
		alerts = append(alerts, Alert{
			Type:      AlertSlowResponse,
			Severity:  severity,
			Message:   fmt.Sprintf("p95 latency %v exceeds %v", current.P95Duration, p95Threshold),
			Value:     current.P95Duration.Seconds(),
			Threshold: p95Threshold.Seconds(),
			Timestamp: now,
		})
	}

	if previous.PerSecond > 0 && current.PerSecond/previous.PerSecond > spikeRatio && current.PerSecond > spikeMinRate {
		alerts = append(alerts, Alert{
			Type:      AlertTrafficSpike,
			Severity:  AlertMedium,
			Message:   fmt.Sprintf("request rate %.1f/s is over %.0fx the previous window", current.PerSecond, spikeRatio),
			Value:     current.PerSecond,
			Threshold: previous.PerSecond * spikeRatio,
			Timestamp: now,
		})
	}

	if current.PerSecond < lowTrafficRate && previous.PerSecond > lowTrafficPrevRate {
		alerts = append(alerts, Alert{
			Type:      AlertLowTraffic,
			Severity:  AlertHigh,
			Message:   fmt.Sprintf("request rate dropped to %.2f/s from %.1f/s, possible outage", current.PerSecond, previous.PerSecond),
			Value:     current.PerSecond,
			Threshold: lowTrafficRate,
			Timestamp: now,
		})
	}

	return alerts
}

// Dashboard bundles the current and previous five-minute windows with the
// alerts derived from them.
type Dashboard struct {
	Current  Aggregated `json:"current"`
	Previous Aggregated `json:"previous"`
	Alerts   []Alert    `json:"alerts"`
	Health   string     `json:"health"`
}

const dashboardWindow = 5 * time.Minute

// GetDashboardMetrics computes the dashboard view over trailing windows.
func (c *Collector) GetDashboardMetrics() Dashboard {
	end := c.now()
	current := c.aggregateRange(end.Add(-dashboardWindow), end)
	previous := c.aggregateRange(end.Add(-2*dashboardWindow), end.Add(-dashboardWindow))
	alerts := c.Alerts(current, previous)

	health := "healthy"
	for _, a := range alerts {
		if a.Severity == AlertHigh {
			health = "critical"
			break
		}
		health = "degraded"
	}

	return Dashboard{Current: current, Previous: previous, Alerts: alerts, Health: health}
}

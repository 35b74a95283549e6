package metrics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Export formats.
const (
	FormatJSON       = "json"
	FormatExposition = "exposition"
)

// Export renders the trailing-period aggregation as JSON or as a
// line-oriented exposition suitable for external scraping.
func (c *Collector) Export(format string, period time.Duration) ([]byte, error) {
	agg := c.Aggregate(period)

	switch format {
	case FormatJSON:
		return json.MarshalIndent(agg, "", "  ")
	case FormatExposition:
		return []byte(exposition(agg)), nil
	default:
		return nil, fmt.Errorf("unknown export format: %q", format)
	}
}

func exposition(agg Aggregated) string {
	var b strings.Builder

	b.WriteString("# TYPE relay_requests_total counter\n")
	fmt.Fprintf(&b, "relay_requests_total %d\n", agg.Total)
	b.WriteString("# TYPE relay_requests_succeeded_total counter\n")
	fmt.Fprintf(&b, "relay_requests_succeeded_total %d\n", agg.Succeeded)
	b.WriteString("# TYPE relay_requests_failed_total counter\n")
	fmt.Fprintf(&b, "relay_requests_failed_total %d\n", agg.Failed)

	b.WriteString("# TYPE relay_request_duration_ms histogram\n")
	fmt.Fprintf(&b, "relay_request_duration_ms{quantile=\"avg\"} %.3f\n", float64(agg.AvgDuration)/float64(time.Millisecond))
	fmt.Fprintf(&b, "relay_request_duration_ms{quantile=\"0.95\"} %.3f\n", float64(agg.P95Duration)/float64(time.Millisecond))
	fmt.Fprintf(&b, "relay_request_duration_ms{quantile=\"0.99\"} %.3f\n", float64(agg.P99Duration)/float64(time.Millisecond))

	b.WriteString("# TYPE relay_requests_per_second gauge\n")
	fmt.Fprintf(&b, "relay_requests_per_second %.3f\n", agg.PerSecond)
	b.WriteString("# TYPE relay_error_rate gauge\n")
	fmt.Fprintf(&b, "relay_error_rate %.4f\n", agg.ErrorRate)

	if len(agg.ErrorCodes) > 0 {
		b.WriteString("# TYPE relay_errors_by_code counter\n")
		for _, ec := range agg.ErrorCodes {
			fmt.Fprintf(&b, "relay_errors_by_code{code=%q} %d\n", ec.Code, ec.Count)
		}
	}
	if len(agg.Endpoints) > 0 {
		b.WriteString("# TYPE relay_requests_by_endpoint counter\n")
		for _, ep := range agg.Endpoints {
			fmt.Fprintf(&b, "relay_requests_by_endpoint{endpoint=%q} %d\n", ep.Endpoint, ep.Count)
		}
	}

	return b.String()
}

package metrics

import (
	"sort"
	"time"
)

// EndpointStat summarizes calls to one endpoint within a window.
type EndpointStat struct {
	Endpoint    string        `json:"endpoint"`
	Count       int           `json:"count"`
	AvgDuration time.Duration `json:"avgDuration"`
}

// ErrorCodeStat counts occurrences of one error code within a window.
type ErrorCodeStat struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// Aggregated is the on-demand summary of a sample window. An empty window
// yields the zero value, never an error.
type Aggregated struct {
	WindowStart time.Time       `json:"windowStart"`
	WindowEnd   time.Time       `json:"windowEnd"`
	Total       int             `json:"total"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	ErrorRate   float64         `json:"errorRate"`
	AvgDuration time.Duration   `json:"avgDuration"`
	P95Duration time.Duration   `json:"p95Duration"`
	P99Duration time.Duration   `json:"p99Duration"`
	PerSecond   float64         `json:"requestsPerSecond"`
	Endpoints   []EndpointStat  `json:"topEndpoints"`
	ErrorCodes  []ErrorCodeStat `json:"topErrorCodes"`
}

const topN = 10

// Aggregate summarizes the samples recorded during the trailing period.
func (c *Collector) Aggregate(period time.Duration) Aggregated {
	end := c.now()
	return c.aggregateRange(end.Add(-period), end)
}

func (c *Collector) aggregateRange(start, end time.Time) Aggregated {
	agg := Aggregated{WindowStart: start, WindowEnd: end}

	c.mu.RLock()
	window := make([]Sample, 0, len(c.samples))
	for _, s := range c.samples {
		if s.Timestamp.After(start) && !s.Timestamp.After(end) {
			window = append(window, s)
		}
	}
	c.mu.RUnlock()

	if len(window) == 0 {
		return agg
	}

	durations := make([]time.Duration, 0, len(window))
	var totalDuration time.Duration
	byEndpoint := make(map[string]*EndpointStat)
	endpointDuration := make(map[string]time.Duration)
	byCode := make(map[string]int)

	for _, s := range window {
		agg.Total++
		if s.Success {
			agg.Succeeded++
		} else {
			agg.Failed++
			if s.ErrorCode != "" {
				byCode[s.ErrorCode]++
			}
		}
		durations = append(durations, s.Duration)
		totalDuration += s.Duration

		stat, ok := byEndpoint[s.Endpoint]
		if !ok {
			stat = &EndpointStat{Endpoint: s.Endpoint}
			byEndpoint[s.Endpoint] = stat
		}
		stat.Count++
		endpointDuration[s.Endpoint] += s.Duration
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	agg.ErrorRate = float64(agg.Failed) / float64(agg.Total)
	agg.AvgDuration = totalDuration / time.Duration(agg.Total)
	agg.P95Duration = percentile(durations, 0.95)
	agg.P99Duration = percentile(durations, 0.99)
	if secs := end.Sub(start).Seconds(); secs > 0 {
		agg.PerSecond = float64(agg.Total) / secs
	}

	for endpoint, stat := range byEndpoint {
		stat.AvgDuration = endpointDuration[endpoint] / time.Duration(stat.Count)
		agg.Endpoints = append(agg.Endpoints, *stat)
	}
	sort.Slice(agg.Endpoints, func(i, j int) bool {
		if agg.Endpoints[i].Count != agg.Endpoints[j].Count {
			return agg.Endpoints[i].Count > agg.Endpoints[j].Count
		}
		return agg.Endpoints[i].Endpoint < agg.Endpoints[j].Endpoint
	})
	if len(agg.Endpoints) > topN {
		agg.Endpoints = agg.Endpoints[:topN]
	}

	for code, count := range byCode {
		agg.ErrorCodes = append(agg.ErrorCodes, ErrorCodeStat{Code: code, Count: count})
	}
	sort.Slice(agg.ErrorCodes, func(i, j int) bool {
		if agg.ErrorCodes[i].Count != agg.ErrorCodes[j].Count {
			return agg.ErrorCodes[i].Count > agg.ErrorCodes[j].Count
		}
		return agg.ErrorCodes[i].Code < agg.ErrorCodes[j].Code
	})
	if len(agg.ErrorCodes) > topN {
		agg.ErrorCodes = agg.ErrorCodes[:topN]
	}

	return agg
}

// percentile returns the value at sorted index floor(n*q).
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

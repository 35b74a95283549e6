// Package metrics collects per-call samples from the request pipeline and
// aggregates them on demand into dashboard metrics and alerts.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sample is one recorded call, successful or not.
type Sample struct {
	Endpoint   string        `json:"endpoint"`
	Method     string        `json:"method"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	StatusCode int           `json:"statusCode,omitempty"`
	ErrorCode  string        `json:"errorCode,omitempty"`
	ClientID   string        `json:"clientId,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Config holds collector settings.
type Config struct {
	MaxSamples    int           // hard cap on buffered samples (default 10000)
	Retention     time.Duration // samples older than this are swept (default 1h)
	SweepInterval time.Duration // how often the sweep runs (default 60s)
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		MaxSamples:    10000,
		Retention:     time.Hour,
		SweepInterval: 60 * time.Second,
	}
}

// Collector owns the sample buffer. The buffer is bounded by both count
// (oldest dropped past MaxSamples) and age (periodic sweep).
//
// Each collector carries its own prometheus registry so instances are
// independently disposable across tests.
type Collector struct {
	cfg Config

	mu      sync.RWMutex
	samples []Sample

	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	errorCount *prometheus.CounterVec
	latency    *prometheus.HistogramVec

	done     chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

// NewCollector creates a collector. Call Start to begin the retention sweep
// and Stop to tear it down.
func NewCollector(cfg Config) *Collector {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 10000
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	registry := prometheus.NewRegistry()
	c := &Collector{
		cfg:      cfg,
		samples:  make([]Sample, 0, cfg.MaxSamples),
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_requests_total",
				Help: "Total number of outbound requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		errorCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_request_errors_total",
				Help: "Total number of failed outbound requests",
			},
			[]string{"endpoint", "error_code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_request_duration_seconds",
				Help:    "Outbound request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "method"},
		),
		done: make(chan struct{}),
		now:  time.Now,
	}
	registry.MustRegister(c.requests, c.errorCount, c.latency)
	return c
}

// Start launches the periodic retention sweep.
func (c *Collector) Start() {
	go func() {
		ticker := time.NewTicker(c.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// Stop cancels the sweep. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// RecordRequest appends a sample for a completed call.
func (c *Collector) RecordRequest(endpoint, method string, duration time.Duration, success bool, statusCode int, clientID string) {
	c.append(Sample{
		Endpoint:   endpoint,
		Method:     method,
		Duration:   duration,
		Success:    success,
		StatusCode: statusCode,
		ClientID:   clientID,
		Timestamp:  c.now(),
	})
	c.requests.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
	c.latency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// RecordError appends a failure sample keyed by error code.
func (c *Collector) RecordError(endpoint, errorCode string, duration time.Duration, clientID string) {
	c.append(Sample{
		Endpoint:  endpoint,
		Method:    "ERROR",
		Duration:  duration,
		Success:   false,
		ErrorCode: errorCode,
		ClientID:  clientID,
		Timestamp: c.now(),
	})
	c.errorCount.WithLabelValues(endpoint, errorCode).Inc()
}

func (c *Collector) append(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = append(c.samples, s)
	if len(c.samples) > c.cfg.MaxSamples {
		c.samples = c.samples[len(c.samples)-c.cfg.MaxSamples:]
	}
}

// sweep drops samples older than the retention window.
func (c *Collector) sweep() {
	cutoff := c.now().Add(-c.cfg.Retention)

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.samples[:0]
	for _, s := range c.samples {
		if s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	c.samples = kept
}

// Len returns the number of buffered samples.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// Handler serves this collector's prometheus registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

package pipeline

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter enforces a rolling per-key request ceiling. Keys combine the
// caller identity with the normalized endpoint pattern, so `/clients/1` and
// `/clients/2` share a bucket. Entries are overwritten on window rollover;
// the map stays bounded by the number of distinct identity×pattern pairs.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*rateLimitEntry

	now func() time.Time
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*rateLimitEntry),
		now:     time.Now,
	}
}

// Allow reports whether another request may proceed for the key. When
// denied, it returns the time remaining in the current window.
func (r *RateLimiter) Allow(identity, pattern string) (bool, time.Duration) {
	key := identity + "|" + pattern
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[key]
	if e == nil || now.Sub(e.windowStart) >= r.window {
		r.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return true, 0
	}

	if e.count < r.limit {
		e.count++
		return true, 0
	}

	return false, e.windowStart.Add(r.window).Sub(now)
}

// EndpointPattern collapses path parameters to placeholders so endpoints
// group correctly for rate limiting and metrics: /clients/123 becomes
// /clients/:id. Query strings are dropped.
func EndpointPattern(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}

	segments := strings.Split(endpoint, "/")
	for i, seg := range segments {
		if isPathParam(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isPathParam(seg string) bool {
	if seg == "" {
		return false
	}
	if isNumeric(seg) {
		return true
	}
	// UUIDs: 8-4-4-4-12 hex.
	if len(seg) == 36 && strings.Count(seg, "-") == 4 && isHexDashed(seg) {
		return true
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHexDashed(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

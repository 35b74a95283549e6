package pipeline

import (
	"testing"
	"time"
)

func TestEndpointPattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/clients", "/api/clients"},
		{"/api/clients/123", "/api/clients/:id"},
		{"/api/clients/123/interventions/456", "/api/clients/:id/interventions/:id"},
		{"/api/tickets/550e8400-e29b-41d4-a716-446655440000", "/api/tickets/:id"},
		{"/api/clients?page=2", "/api/clients"},
		{"/api/v2/calls", "/api/v2/calls"},
		{"/geocode/forward", "/geocode/forward"},
	}
	for _, tt := range tests {
		if got := EndpointPattern(tt.in); got != tt.want {
			t.Errorf("EndpointPattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRateLimiter_Boundary(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("user-1", "/api/clients/:id"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, retryAfter := rl.Allow("user-1", "/api/clients/:id")
	if ok {
		t.Fatal("request over the ceiling must be denied")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("retryAfter = %v, want within (0, window]", retryAfter)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	if ok, _ := rl.Allow("user-1", "/api/clients/:id"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := rl.Allow("user-2", "/api/clients/:id"); !ok {
		t.Error("another identity must get its own bucket")
	}
	if ok, _ := rl.Allow("user-1", "/api/tickets"); !ok {
		t.Error("another endpoint pattern must get its own bucket")
	}
	if ok, _ := rl.Allow("user-1", "/api/clients/:id"); ok {
		t.Error("same key over the ceiling must be denied")
	}
}

func TestRateLimiter_WindowRollover(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	rl.now = func() time.Time { return now }

	if ok, _ := rl.Allow("user-1", "/api/clients"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := rl.Allow("user-1", "/api/clients"); ok {
		t.Fatal("second request in window must be denied")
	}

	now = base.Add(61 * time.Second)
	if ok, _ := rl.Allow("user-1", "/api/clients"); !ok {
		t.Error("first request of a new window must pass")
	}
}

package pipeline

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "/api/clients", []byte(`{"rows":[]}`), 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := s.Get(ctx, "/api/clients")
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v), want hit", ok, err)
	}
	if !bytes.Equal(got, []byte(`{"rows":[]}`)) {
		t.Errorf("Get returned %q", got)
	}

	if _, ok, _ := s.Get(ctx, "/api/other"); ok {
		t.Error("unknown key must miss")
	}
}

func TestMemoryStore_ExpiredEntryIsAbsent(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	s.Set(ctx, "k", []byte("v"), 5*time.Minute)

	now = base.Add(6 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expired entry must read as absent")
	}
	if s.Len() != 0 {
		t.Error("expired entry must be removed on read")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"), time.Minute)
	s.Delete(ctx, "k")
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("deleted entry must miss")
	}
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	s.Close()
	s.Close()
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/mkorolev/sitegate/pkg/store"
)

func TestAllowFixedWindow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return now })
	l := New(st, 120, time.Hour)

	for i := 0; i < 120; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("allow %d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "10.0.0.1"); ok {
		t.Fatal("expected request 121 to be denied")
	}
	// A denied request must not increment.
	if v, _, _ := st.Get(ctx, "rate:10.0.0.1"); v != "120" {
		t.Fatalf("expected counter to stay at 120, got %q", v)
	}

	// Other addresses have independent windows.
	if ok, _ := l.Allow(ctx, "10.0.0.2"); !ok {
		t.Fatal("expected a different address to be allowed")
	}

	// After the window expires the counter restarts.
	now = now.Add(time.Hour + time.Second)
	if ok, _ := l.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatal("expected request after window expiry to be allowed")
	}
	if v, _, _ := st.Get(ctx, "rate:10.0.0.1"); v != "1" {
		t.Fatalf("expected fresh counter at 1, got %q", v)
	}
}

func TestAllowSetsWindowExpiry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	l := New(st, 120, time.Hour)

	if ok, _ := l.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatal("expected first request to be allowed")
	}
	ttl, err := st.TTL(ctx, "rate:10.0.0.1")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected counter ttl within the hour window, got %v", ttl)
	}
}

func TestAllowReassertsMissingExpiry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	l := New(st, 120, time.Hour)

	// Counter created without an expiry, as if a racing create lost its TTL.
	if _, err := st.Increment(ctx, "rate:10.0.0.1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if ttl, _ := st.TTL(ctx, "rate:10.0.0.1"); ttl != store.TTLNoExpiry {
		t.Fatalf("precondition: expected no expiry, got %v", ttl)
	}

	if ok, _ := l.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatal("expected request to be allowed")
	}
	ttl, _ := st.TTL(ctx, "rate:10.0.0.1")
	if ttl <= 0 {
		t.Fatalf("expected limiter to re-assert the window expiry, got %v", ttl)
	}
}

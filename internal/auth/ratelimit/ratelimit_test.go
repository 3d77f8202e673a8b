package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, window time.Duration) (*Limiter, *time.Time) {
	t.Helper()
	l := New(window)
	t.Cleanup(l.Close)
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowBurstThenDeny(t *testing.T) {
	l, _ := newTestLimiter(t, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("k", 3) {
		t.Fatal("fourth request should be denied")
	}
	if !l.Allow("other", 3) {
		t.Fatal("keys must not share buckets")
	}
}

func TestAllowRefills(t *testing.T) {
	l, now := newTestLimiter(t, time.Minute)
	l.Allow("k", 2)
	l.Allow("k", 2)
	if l.Allow("k", 2) {
		t.Fatal("bucket should be empty")
	}
	*now = now.Add(31 * time.Second)
	if !l.Allow("k", 2) {
		t.Fatal("one token should refill after half a window")
	}
}

func TestResetAndEvict(t *testing.T) {
	l, now := newTestLimiter(t, time.Minute)
	l.Allow("k", 1)
	if l.Allow("k", 1) {
		t.Fatal("expected deny")
	}
	l.Reset("k")
	if !l.Allow("k", 1) {
		t.Fatal("reset should restore the budget")
	}

	*now = now.Add(3 * time.Minute)
	l.evictIdle()
	l.mu.Lock()
	n := len(l.entries)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("expected idle key evicted, %d left", n)
	}
}

func TestZeroLimitIsUnlimited(t *testing.T) {
	l, _ := newTestLimiter(t, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("k", 0) {
			t.Fatal("zero limit must not throttle")
		}
	}
}

package resilience

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
	r := NewRateLimiter(60, 3)
	r.now = func() time.Time { return now }
	r.last = now

	for i := 0; i < 3; i++ {
		if !r.Allow() {
			t.Fatalf("call %d refused inside burst", i)
		}
	}
	if r.Allow() {
		t.Fatal("burst exceeded")
	}

	now = now.Add(time.Second)
	if !r.Allow() {
		t.Fatal("token not refilled after 1s at 60/min")
	}
	if r.Allow() {
		t.Fatal("more than one token refilled")
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	r := NewRateLimiter(1, 1)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := r.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Wait ignored the deadline")
	}
}

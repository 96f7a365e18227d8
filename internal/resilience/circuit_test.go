package resilience

import (
	"testing"
	"time"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	b := NewBreaker(4, 0.5, time.Minute)

	b.Report(true)
	b.Report(false)
	b.Report(false)
	if !b.Allow() {
		t.Fatal("breaker must stay closed below the minimum request count")
	}

	b.Report(false)
	if b.Allow() {
		t.Fatal("breaker must open once the failure ratio is reached")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(1, 0.5, 20*time.Millisecond)
	b.Report(false)
	if b.Allow() {
		t.Fatal("breaker must be open after the failure")
	}

	time.Sleep(30 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker must allow a probe after the cool-off period")
	}
	b.Report(true)
	if !b.Allow() {
		t.Fatal("breaker must close after a successful probe")
	}
}

func TestBreakerHalfOpenReopens(t *testing.T) {
	b := NewBreaker(1, 0.5, 20*time.Millisecond)
	b.Report(false)

	time.Sleep(30 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker must allow a probe after the cool-off period")
	}
	b.Report(false)
	if b.Allow() {
		t.Fatal("breaker must reopen after a failed probe")
	}
}

func TestBackoffDoubles(t *testing.T) {
	base := 100 * time.Millisecond
	if got := Backoff(base, 1, 0); got != base {
		t.Fatalf("attempt 1: expected %v, got %v", base, got)
	}
	if got := Backoff(base, 2, 0); got != 2*base {
		t.Fatalf("attempt 2: expected %v, got %v", 2*base, got)
	}
	if got := Backoff(base, 3, 0); got != 4*base {
		t.Fatalf("attempt 3: expected %v, got %v", 4*base, got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := Backoff(base, 2, 0.2)
		if got < 160*time.Millisecond || got > 240*time.Millisecond {
			t.Fatalf("jittered backoff %v outside 20%% bounds", got)
		}
	}
}

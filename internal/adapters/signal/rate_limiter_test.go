package signal

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	for i := 0; i < 3; i++ {
		if !rl.Allow("u1") {
			t.Fatalf("attempt %d denied within limit", i+1)
		}
	}
	if rl.Allow("u1") {
		t.Fatal("attempt over the limit was allowed")
	}
}

func TestRateLimiterIsPerUser(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	if !rl.Allow("u1") {
		t.Fatal("first attempt denied")
	}
	if !rl.Allow("u2") {
		t.Fatal("other user throttled by u1's attempts")
	}
	if rl.Allow("u1") {
		t.Fatal("u1 allowed over the limit")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(2, 20*time.Millisecond)
	rl.Allow("u1")
	rl.Allow("u1")
	if rl.Allow("u1") {
		t.Fatal("allowed over the limit inside the window")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.Allow("u1") {
		t.Fatal("denied after the window slid past old attempts")
	}
}

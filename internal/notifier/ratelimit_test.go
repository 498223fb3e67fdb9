package notifier

import (
	"testing"
	"time"
)

func newTestLimiter(max int, window time.Duration) (*RateLimiter, *time.Time) {
	now := time.Unix(0, 0)
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: max, Window: window, Enabled: true})
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterBasic(t *testing.T) {
	rl, _ := newTestLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow() {
		t.Error("4th request should be denied")
	}
	if dropped := rl.Stats().Dropped; dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl, now := newTestLimiter(2, time.Second)

	rl.Allow()
	*now = now.Add(600 * time.Millisecond)
	rl.Allow()

	if rl.Allow() {
		t.Error("window is full")
	}

	// First slot expires, second is still inside the window.
	*now = now.Add(500 * time.Millisecond)
	if !rl.Allow() {
		t.Error("expired slot should be reusable")
	}
	if rl.Allow() {
		t.Error("only one slot should have expired")
	}
}

func TestRateLimiterWindowEdge(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		want    bool
	}{
		{"just inside", time.Second - time.Nanosecond, false},
		{"exactly one window", time.Second, false},
		{"just past", time.Second + time.Nanosecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, now := newTestLimiter(1, time.Second)
			if !rl.Allow() {
				t.Fatal("first request should be allowed")
			}

			*now = now.Add(tt.advance)
			if got := rl.Allow(); got != tt.want {
				t.Errorf("Allow() after %v = %v, want %v", tt.advance, got, tt.want)
			}
		})
	}
}

func TestRateLimiterStatsExpire(t *testing.T) {
	rl, now := newTestLimiter(5, time.Minute)
	rl.Allow()
	rl.Allow()

	if got := rl.Stats().CurrentCount; got != 2 {
		t.Errorf("CurrentCount = %d, want 2", got)
	}
	*now = now.Add(time.Minute + time.Millisecond)
	if got := rl.Stats().CurrentCount; got != 0 {
		t.Errorf("CurrentCount = %d after the window, want 0", got)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 1, Window: time.Minute, Enabled: false})
	for i := 0; i < 10; i++ {
		if !rl.Allow() {
			t.Fatal("disabled limiter should allow everything")
		}
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Enabled: true})
	stats := rl.Stats()
	def := DefaultRateLimitConfig()
	if stats.MaxPerWindow != def.MaxPerWindow || stats.Window != def.Window {
		t.Errorf("stats = %+v, want defaults %+v", stats, def)
	}
}

func TestRateLimiterRelease(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)

	rl.Allow()
	rl.Release()
	if !rl.Allow() {
		t.Error("released slot should be reusable")
	}
	rl.Release()
	rl.Release()
	if got := rl.Stats().CurrentCount; got != 0 {
		t.Errorf("CurrentCount = %d, want 0", got)
	}
}

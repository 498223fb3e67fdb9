package notifier

import (
	"sync"
	"time"
)

// RateLimitConfig bounds how many alert events are mirrored per window.
type RateLimitConfig struct {
	MaxPerWindow int           // default 30
	Window       time.Duration // default 1m
	Enabled      bool
}

// DefaultRateLimitConfig allows 30 mirrored events per minute.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxPerWindow: 30,
		Window:       time.Minute,
		Enabled:      true,
	}
}

// RateLimiter admits at most MaxPerWindow events in any Window-long span.
// An event sent exactly Window ago still counts against the limit.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	sent    []time.Time // oldest first
	dropped int64
}

// NewRateLimiter fills zero fields of cfg from DefaultRateLimitConfig.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = def.MaxPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &RateLimiter{
		cfg:  cfg,
		now:  time.Now,
		sent: make([]time.Time, 0, cfg.MaxPerWindow),
	}
}

// Allow consumes a slot if one is free.
func (r *RateLimiter) Allow() bool {
	if !r.cfg.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)
	if len(r.sent) >= r.cfg.MaxPerWindow {
		r.dropped++
		return false
	}
	r.sent = append(r.sent, now)
	return true
}

// Release refunds the slot taken by the last Allow.
func (r *RateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.sent); n > 0 {
		r.sent = r.sent[:n-1]
	}
}

// prune forgets sends that fell out of the window ending at now. Callers hold mu.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.cfg.Window)
	i := 0
	for i < len(r.sent) && r.sent[i].Before(cutoff) {
		i++
	}
	r.sent = append(r.sent[:0], r.sent[i:]...)
}

// RateLimitStats is a point-in-time view of a RateLimiter.
type RateLimitStats struct {
	Dropped      int64
	CurrentCount int // sends inside the current window
	MaxPerWindow int
	Window       time.Duration
	Enabled      bool
}

// Stats reports the limiter state as of now.
func (r *RateLimiter) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())
	return RateLimitStats{
		Dropped:      r.dropped,
		CurrentCount: len(r.sent),
		MaxPerWindow: r.cfg.MaxPerWindow,
		Window:       r.cfg.Window,
		Enabled:      r.cfg.Enabled,
	}
}

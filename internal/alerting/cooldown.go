package alerting

import (
	"sync"
	"time"
)

// Cooldown tracks per-key quiet periods. A key is quiet from the moment
// Start is called until the duration elapses.
type Cooldown struct {
	mu      sync.RWMutex
	expires map[string]time.Time
}

// NewCooldown creates an empty cooldown tracker.
func NewCooldown() *Cooldown {
	return &Cooldown{
		expires: make(map[string]time.Time),
	}
}

// Active reports whether key is still quiet at now.
func (c *Cooldown) Active(key string, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	until, ok := c.expires[key]
	if !ok {
		return false
	}
	return now.Before(until)
}

// Start begins a quiet period of d for key.
func (c *Cooldown) Start(key string, d time.Duration, now time.Time) {
	if d <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.expires[key] = now.Add(d)
}

// Remaining returns how long key stays quiet, or zero.
func (c *Cooldown) Remaining(key string, now time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	until, ok := c.expires[key]
	if !ok {
		return 0
	}
	if left := until.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Reset clears every quiet period.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expires = make(map[string]time.Time)
}

package vision

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff computes exponential delays with jitter.
type Backoff struct {
	Initial    time.Duration // first delay (default: 100ms)
	Max        time.Duration // delay cap (default: 5s)
	Multiplier float64       // growth per attempt (default: 2.0)
	Jitter     float64       // 0-1, fraction of the delay (default: 0.1)

	attempt int
	mu      sync.Mutex
}

// NewBackoff creates a Backoff with defaults suited to camera reconnects.
func NewBackoff() *Backoff {
	return &Backoff{
		Initial:    100 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// Next returns the next delay and advances the attempt counter.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := float64(b.Initial) * math.Pow(b.Multiplier, float64(b.attempt))
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if b.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * b.Jitter
	}
	if delay < 0 {
		delay = float64(b.Initial)
	}

	b.attempt++
	return time.Duration(delay)
}

// Reset starts over from Initial.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}

// Attempt returns the number of delays handed out since the last Reset.
func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

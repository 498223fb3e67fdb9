// Package notifier mirrors persisted alert events to message brokers.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// Notifier is the interface for all mirror channels.
type Notifier interface {
	// Name returns the notifier name (e.g., "nats", "mqtt").
	Name() string
	// Send publishes one alert event.
	Send(ctx context.Context, event *models.AlertEvent) error
	// Close releases any resources.
	Close() error
}

// ErrRateLimited is returned when an event is not mirrored due to rate limiting.
var ErrRateLimited = errors.New("notification rate limited")

// Dispatcher fans events out to registered notifiers.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   map[string]Notifier
	rateLimiter *RateLimiter
}

// NewDispatcherWithRateLimit creates a dispatcher with custom rate limit configuration.
func NewDispatcherWithRateLimit(config RateLimitConfig) *Dispatcher {
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		rateLimiter: NewRateLimiter(config),
	}
}

// Register adds a notifier, replacing any notifier with the same name.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// DispatchAll sends event to every registered notifier.
// Returns ErrRateLimited if the event is dropped due to rate limiting.
func (d *Dispatcher) DispatchAll(ctx context.Context, event *models.AlertEvent) error {
	d.mu.RLock()
	targets := make(map[string]Notifier, len(d.notifiers))
	for name, n := range d.notifiers {
		targets[name] = n
	}
	d.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		for name := range targets {
			metrics.NotificationsTotal.WithLabelValues(name, "rate_limited").Inc()
		}
		return ErrRateLimited
	}

	var errs []error
	for name, n := range targets {
		if err := n.Send(ctx, event); err != nil {
			metrics.NotificationsTotal.WithLabelValues(name, "failed").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(name, "sent").Inc()
	}

	// Nothing went out, so the slot is not spent.
	if len(errs) == len(targets) && d.rateLimiter != nil {
		d.rateLimiter.Release()
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %w", errors.Join(errs...))
	}
	return nil
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

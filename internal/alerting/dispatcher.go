// Package alerting turns pending threat verdicts into persisted alert events.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/internal/models"
	"github.com/good-yellow-bee/cognifyx/internal/storage"
)

// DefaultCooldown is the quiet period after a persisted alert.
const DefaultCooldown = time.Second

// DefaultLocation is the fixed device location used when none is configured.
var DefaultLocation = models.Location{Latitude: 26.1306, Longitude: 43.5186}

// Options configures a Dispatcher.
type Options struct {
	// Cooldown suppresses dispatches for this long after a persisted alert.
	Cooldown time.Duration
	// Location is the device's fixed position.
	Location models.Location
	// DeviceID scopes the cooldown.
	DeviceID string
}

// DefaultOptions returns default dispatcher options.
func DefaultOptions() *Options {
	return &Options{
		Cooldown: DefaultCooldown,
		Location: DefaultLocation,
	}
}

// Dispatcher persists alert events for pending verdicts, rate limited by a
// fixed cooldown.
type Dispatcher struct {
	store    storage.AlertStore
	cooldown *Cooldown
	opts     Options
	logger   *slog.Logger
	stats    *DispatcherStats
}

// DispatcherStats tracks dispatcher statistics using atomic operations.
type DispatcherStats struct {
	Dispatched atomic.Int64
	Suppressed atomic.Int64
	Errors     atomic.Int64
}

// DispatcherStatsSnapshot is a point-in-time copy of DispatcherStats.
type DispatcherStatsSnapshot struct {
	Dispatched int64
	Suppressed int64
	Errors     int64
}

// NewDispatcher creates a dispatcher writing to store.
func NewDispatcher(store storage.AlertStore, opts *Options, logger *slog.Logger) *Dispatcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := *opts
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}

	return &Dispatcher{
		store:    store,
		cooldown: NewCooldown(),
		opts:     o,
		logger:   logger.With("component", "dispatcher"),
		stats:    &DispatcherStats{},
	}
}

// Dispatch persists an event for verdict if it is pending and the cooldown
// has elapsed. It returns the persisted event, or nil when nothing was
// written because the verdict was not pending or the cooldown was active.
// A failed persist leaves the cooldown untouched so the next cycle retries.
func (d *Dispatcher) Dispatch(ctx context.Context, verdict models.ThreatVerdict, reading models.SensorReading, loc models.Location, now time.Time) (*models.AlertEvent, error) {
	if verdict.IsSecure() {
		return nil, nil
	}

	if d.cooldown.Active(d.opts.DeviceID, now) {
		d.stats.Suppressed.Add(1)
		metrics.AlertsSuppressedTotal.Inc()
		d.logger.Debug("alert suppressed by cooldown",
			"trigger", verdict.Message,
			"remaining", d.cooldown.Remaining(d.opts.DeviceID, now))
		return nil, nil
	}

	event := models.NewAlertEvent(verdict, reading, loc, now)
	if err := d.store.Append(ctx, event); err != nil {
		d.stats.Errors.Add(1)
		metrics.DispatchErrorsTotal.Inc()
		return nil, fmt.Errorf("persist alert: %w", err)
	}

	d.cooldown.Start(d.opts.DeviceID, d.opts.Cooldown, now)
	d.stats.Dispatched.Add(1)
	metrics.AlertsDispatchedTotal.Inc()
	d.logger.Info("alert dispatched",
		"trigger", event.Trigger,
		"time", event.Time,
		"gas", event.SensorData.GasPPM,
		"spectral", event.SensorData.SpectralMatch)

	return event, nil
}

// Location returns the configured device location.
func (d *Dispatcher) Location() models.Location {
	return d.opts.Location
}

// Cooldown returns the configured cooldown.
func (d *Dispatcher) Cooldown() time.Duration {
	return d.opts.Cooldown
}

// Stats returns a snapshot of dispatcher statistics.
func (d *Dispatcher) Stats() DispatcherStatsSnapshot {
	return DispatcherStatsSnapshot{
		Dispatched: d.stats.Dispatched.Load(),
		Suppressed: d.stats.Suppressed.Load(),
		Errors:     d.stats.Errors.Load(),
	}
}

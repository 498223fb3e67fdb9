package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// Options configures a Pipeline.
type Options struct {
	// SensorInterval is the sampling period of the sensor stage.
	SensorInterval time.Duration
	// FrameQueueSize bounds frames waiting for fusion. When full, new frames
	// are dropped.
	FrameQueueSize int
}

// DefaultOptions returns default pipeline options.
func DefaultOptions() *Options {
	return &Options{
		SensorInterval: time.Second,
		FrameQueueSize: 4,
	}
}

// Stats tracks pipeline statistics using atomic operations.
type Stats struct {
	Readings      atomic.Int64
	SensorErrors  atomic.Int64
	Frames        atomic.Int64
	FramesDropped atomic.Int64
	Cycles        atomic.Int64
	Alerts        atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Readings      int64
	SensorErrors  int64
	Frames        int64
	FramesDropped int64
	Cycles        int64
	Alerts        int64
}

// Pipeline runs sensing, vision and fusion as concurrent stages.
type Pipeline struct {
	Components
	opts  Options
	stats *Stats
}

// New creates a pipeline.
func New(c Components, opts *Options) (*Pipeline, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	def := DefaultOptions()
	if opts == nil {
		opts = def
	}
	o := *opts
	if o.SensorInterval <= 0 {
		o.SensorInterval = def.SensorInterval
	}
	if o.FrameQueueSize <= 0 {
		o.FrameQueueSize = def.FrameQueueSize
	}

	return &Pipeline{Components: c, opts: o, stats: &Stats{}}, nil
}

// Run blocks until ctx is canceled, the vision source is exhausted, or a
// stage fails. Cancellation and exhaustion return nil; a vision source
// that went offline returns its error.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// The sensor stage stops when fusion stops.
	sctx, stopSensor := context.WithCancel(gctx)
	defer stopSensor()

	latest := newLatestSlot()
	frames := make(chan []models.Detection, p.opts.FrameQueueSize)

	g.Go(func() error {
		return p.sense(sctx, latest)
	})
	g.Go(func() error {
		defer close(frames)
		return p.capture(gctx, frames)
	})
	g.Go(func() error {
		defer stopSensor()
		return p.fuseFrames(gctx, latest, frames)
	})

	return g.Wait()
}

// sense samples the sensor at a fixed interval into the latest slot.
func (p *Pipeline) sense(ctx context.Context, latest *latestSlot) error {
	ticker := time.NewTicker(p.opts.SensorInterval)
	defer ticker.Stop()

	for {
		r, err := p.Sensor.Read(ctx)
		switch {
		case err == nil:
			p.stats.Readings.Add(1)
			metrics.GasLevel.Set(float64(r.GasLevel))
			p.refreshBars(r)
			latest.Set(r)
		case ctx.Err() != nil:
			return nil
		default:
			p.stats.SensorErrors.Add(1)
			metrics.SensorErrorsTotal.Inc()
			p.Logger.Warn("sensor read failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// capture pulls frames and offers them to fusion without blocking.
func (p *Pipeline) capture(ctx context.Context, frames chan<- []models.Detection) error {
	for {
		dets, err := p.Vision.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				p.Logger.Info("vision source exhausted")
				return nil
			}
			return fmt.Errorf("vision stage: %w", err)
		}
		p.stats.Frames.Add(1)

		select {
		case frames <- dets:
		default:
			p.stats.FramesDropped.Add(1)
			metrics.FramesDroppedTotal.Inc()
		}
	}
}

// fuseFrames pairs each frame with the latest reading.
func (p *Pipeline) fuseFrames(ctx context.Context, latest *latestSlot, frames <-chan []models.Detection) error {
	for {
		var dets []models.Detection
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case dets, ok = <-frames:
			if !ok {
				return nil
			}
		}

		r, err := latest.Wait(ctx)
		if err != nil {
			return nil
		}

		_, ev := p.fuse(ctx, dets, r)
		p.stats.Cycles.Add(1)
		if ev != nil {
			p.stats.Alerts.Add(1)
		}
	}
}

// Stats returns a snapshot of pipeline statistics.
func (p *Pipeline) Stats() StatsSnapshot {
	return StatsSnapshot{
		Readings:      p.stats.Readings.Load(),
		SensorErrors:  p.stats.SensorErrors.Load(),
		Frames:        p.stats.Frames.Load(),
		FramesDropped: p.stats.FramesDropped.Load(),
		Cycles:        p.stats.Cycles.Load(),
		Alerts:        p.stats.Alerts.Load(),
	}
}

// latestSlot holds the most recent reading. Writers overwrite, readers never
// consume, so a slow reader always sees the freshest value.
type latestSlot struct {
	mu      sync.RWMutex
	reading models.SensorReading
	ready   chan struct{}
	once    sync.Once
}

func newLatestSlot() *latestSlot {
	return &latestSlot{ready: make(chan struct{})}
}

// Set replaces the held reading.
func (s *latestSlot) Set(r models.SensorReading) {
	s.mu.Lock()
	s.reading = r
	s.mu.Unlock()
	s.once.Do(func() { close(s.ready) })
}

// Wait returns the held reading, blocking until the first Set.
func (s *latestSlot) Wait(ctx context.Context) (models.SensorReading, error) {
	select {
	case <-ctx.Done():
		return models.SensorReading{}, ctx.Err()
	case <-s.ready:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading, nil
}

// Package pipeline runs the sense-fuse-alert loop.
//
// Cycle is the single cooperative loop: each iteration reads the sensor,
// pulls one frame, fuses and dispatches, in that order. Pipeline runs the
// same steps as concurrent stages so a slow camera never delays sensor
// sampling and a slow fusion step drops frames instead of queueing them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/alerting"
	"github.com/good-yellow-bee/cognifyx/internal/fusion"
	"github.com/good-yellow-bee/cognifyx/internal/indicator"
	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/internal/models"
	"github.com/good-yellow-bee/cognifyx/internal/sensor"
	"github.com/good-yellow-bee/cognifyx/internal/vision"
)

// Components are the parts shared by Cycle and Pipeline.
type Components struct {
	Sensor     sensor.Source
	Vision     vision.Source
	Engine     *fusion.Engine
	Dispatcher *alerting.Dispatcher
	Bars       *indicator.Bars // optional

	// OnVerdict is called after every fusion, in the fusing goroutine.
	OnVerdict func(models.ThreatVerdict, models.SensorReading)

	Logger *slog.Logger
	Now    func() time.Time
}

func (c *Components) validate() error {
	switch {
	case c.Sensor == nil:
		return errors.New("sensor source is required")
	case c.Vision == nil:
		return errors.New("vision source is required")
	case c.Engine == nil:
		return errors.New("fusion engine is required")
	case c.Dispatcher == nil:
		return errors.New("dispatcher is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// fuse runs fusion and dispatch for one frame. Dispatch failures are logged
// and do not stop the loop.
func (c *Components) fuse(ctx context.Context, dets []models.Detection, r models.SensorReading) (models.ThreatVerdict, *models.AlertEvent) {
	v := c.Engine.Fuse(dets, r)
	metrics.CyclesTotal.Inc()
	metrics.VerdictsTotal.WithLabelValues(string(v.Level)).Inc()

	c.Logger.Debug("cycle",
		"status", v.Message,
		"level", v.Level,
		"color", v.RenderColor,
		"gas", r.GasLevel,
		"spectral", r.SpectralMatch)

	if c.OnVerdict != nil {
		c.OnVerdict(v, r)
	}

	ev, err := c.Dispatcher.Dispatch(ctx, v, r, c.Dispatcher.Location(), c.Now())
	if err != nil {
		c.Logger.Error("alert dispatch failed", "trigger", v.Message, "error", err)
		return v, nil
	}
	return v, ev
}

func (c *Components) refreshBars(r models.SensorReading) {
	if c.Bars == nil {
		return
	}
	if err := c.Bars.Update(r); err != nil {
		c.Logger.Warn("indicator update failed", "error", err)
	}
}

// Cycle is the sequential loop.
type Cycle struct {
	Components
}

// NewCycle creates a sequential loop.
func NewCycle(c Components) (*Cycle, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Cycle{Components: c}, nil
}

// Step runs one iteration. A sensor failure skips the iteration and returns
// a zero verdict with a nil error. A frame failure is returned.
func (c *Cycle) Step(ctx context.Context) (models.ThreatVerdict, *models.AlertEvent, error) {
	r, err := c.Sensor.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return models.ThreatVerdict{}, nil, ctx.Err()
		}
		metrics.SensorErrorsTotal.Inc()
		c.Logger.Warn("sensor read failed, skipping cycle", "error", err)
		return models.ThreatVerdict{}, nil, nil
	}
	metrics.GasLevel.Set(float64(r.GasLevel))
	c.refreshBars(r)

	dets, err := c.Vision.Next(ctx)
	if err != nil {
		return models.ThreatVerdict{}, nil, fmt.Errorf("read frame: %w", err)
	}

	v, ev := c.fuse(ctx, dets, r)
	return v, ev, nil
}

// Run steps until ctx is canceled, the vision source is exhausted, or a frame
// read fails. Cancellation and exhaustion return nil.
func (c *Cycle) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		_, _, err := c.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			c.Logger.Info("vision source exhausted")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

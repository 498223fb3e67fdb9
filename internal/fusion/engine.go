// Package fusion combines vision detections and chemical sensor readings
// into a single threat verdict per cycle.
package fusion

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// DefaultGasHighThreshold is the gas level (0-100 scale) above which a
// chemical alert is raised.
const DefaultGasHighThreshold = 85

// DefaultProhibitedItems are the object labels treated as contraband.
var DefaultProhibitedItems = []string{"bottle", "scissors", "knife", "cell phone"}

const (
	msgSecure    = "SECURE"
	msgChemAlert = "CHEM ALERT: High Volatile Compound"
)

// Options configures the fusion engine.
type Options struct {
	// ProhibitedItems are matched case-insensitively against detection labels.
	ProhibitedItems []string
	// GasHighThreshold triggers CHEM_ALERT when the gas level exceeds it.
	GasHighThreshold int
}

// DefaultOptions returns the reference configuration.
func DefaultOptions() *Options {
	items := make([]string, len(DefaultProhibitedItems))
	copy(items, DefaultProhibitedItems)
	return &Options{
		ProhibitedItems:  items,
		GasHighThreshold: DefaultGasHighThreshold,
	}
}

// Engine applies the fixed precedence rules. Fuse is a pure function of its
// inputs; the engine only keeps counters.
type Engine struct {
	prohibited   map[string]struct{}
	gasThreshold int
	stats        *EngineStats
}

// EngineStats tracks verdict counts using atomic operations.
type EngineStats struct {
	Cycles        atomic.Int64
	Secure        atomic.Int64
	VisualWarning atomic.Int64
	ChemAlert     atomic.Int64
	Critical      atomic.Int64
}

// NewEngine creates a fusion engine.
func NewEngine(opts *Options) *Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	items := opts.ProhibitedItems
	if items == nil {
		items = DefaultProhibitedItems
	}

	prohibited := make(map[string]struct{}, len(items))
	for _, item := range items {
		prohibited[normalizeLabel(item)] = struct{}{}
	}

	threshold := opts.GasHighThreshold
	if threshold <= 0 {
		threshold = DefaultGasHighThreshold
	}

	return &Engine{
		prohibited:   prohibited,
		gasThreshold: threshold,
		stats:        &EngineStats{},
	}
}

// IsProhibited reports whether a detection label is in the prohibited set.
func (e *Engine) IsProhibited(label string) bool {
	_, ok := e.prohibited[normalizeLabel(label)]
	return ok
}

// GasThreshold returns the configured chemical alert threshold.
func (e *Engine) GasThreshold() int {
	return e.gasThreshold
}

// Fuse computes the verdict for one cycle.
//
// Precedence: a prohibited detection raises VISUAL_WARNING; a positive
// spectral trace overrides it with CRITICAL; otherwise a gas level above the
// threshold gives CHEM_ALERT. Later rules replace the message but never
// clear a pending alert. RenderColor is RED whenever an alert is pending.
func (e *Engine) Fuse(detections []models.Detection, reading models.SensorReading) models.ThreatVerdict {
	v := models.ThreatVerdict{
		Level:     models.LevelSecure,
		Message:   msgSecure,
		ColorHint: models.ColorGreen,
	}

	for _, d := range detections {
		if !e.IsProhibited(d.Label) {
			continue
		}
		v.AlertPending = true
		v.Level = models.LevelVisualWarning
		v.Message = fmt.Sprintf("WARNING: %s DETECTED", strings.ToUpper(d.Label))
		v.ColorHint = models.ColorRed
		v.Items = append(v.Items, d.Label)
	}

	if reading.HasTrace() {
		v.AlertPending = true
		v.Level = models.LevelCritical
		v.Message = fmt.Sprintf("CRITICAL: %s TRACE FOUND!", reading.SpectralMatch)
		v.ColorHint = models.ColorRed
	} else if reading.GasLevel > e.gasThreshold {
		v.AlertPending = true
		v.Level = models.LevelChemAlert
		v.Message = msgChemAlert
		v.ColorHint = models.ColorOrange
	}

	v.RenderColor = renderColor(v)
	e.record(v.Level)
	return v
}

// renderColor forces RED for any pending alert while leaving Level and
// Message untouched.
func renderColor(v models.ThreatVerdict) models.Color {
	if v.AlertPending {
		return models.ColorRed
	}
	return v.ColorHint
}

func (e *Engine) record(level models.ThreatLevel) {
	e.stats.Cycles.Add(1)
	switch level {
	case models.LevelSecure:
		e.stats.Secure.Add(1)
	case models.LevelVisualWarning:
		e.stats.VisualWarning.Add(1)
	case models.LevelChemAlert:
		e.stats.ChemAlert.Add(1)
	case models.LevelCritical:
		e.stats.Critical.Add(1)
	}
}

// EngineStatsSnapshot is a snapshot of engine statistics for reporting.
type EngineStatsSnapshot struct {
	Cycles        int64
	Secure        int64
	VisualWarning int64
	ChemAlert     int64
	Critical      int64
}

// Stats returns a snapshot of engine statistics.
func (e *Engine) Stats() EngineStatsSnapshot {
	return EngineStatsSnapshot{
		Cycles:        e.stats.Cycles.Load(),
		Secure:        e.stats.Secure.Load(),
		VisualWarning: e.stats.VisualWarning.Load(),
		ChemAlert:     e.stats.ChemAlert.Load(),
		Critical:      e.stats.Critical.Load(),
	}
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Package indicator drives the bar-graph indicator arrays from sensor
// readings.
package indicator

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/good-yellow-bee/cognifyx/internal/calibrate"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// Panel is one indicator array. Set receives one state per element,
// lowest band first.
type Panel interface {
	Set(states []bool) error
}

// MemoryPanel keeps the last state in memory.
type MemoryPanel struct {
	mu     sync.RWMutex
	states []bool
	writes int
}

// Set stores a copy of states.
func (p *MemoryPanel) Set(states []bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states[:0], states...)
	p.writes++
	return nil
}

// States returns a copy of the current state.
func (p *MemoryPanel) States() []bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]bool(nil), p.states...)
}

// Lit returns the number of lit elements.
func (p *MemoryPanel) Lit() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, on := range p.states {
		if on {
			n++
		}
	}
	return n
}

// LogPanel logs the bar whenever the number of lit elements changes.
type LogPanel struct {
	Name   string
	Logger *slog.Logger

	mu   sync.Mutex
	last int
	set  bool
}

// Set logs the new state if it differs from the previous one.
func (p *LogPanel) Set(states []bool) error {
	lit := 0
	for _, on := range states {
		if on {
			lit++
		}
	}

	p.mu.Lock()
	changed := !p.set || lit != p.last
	p.last, p.set = lit, true
	p.mu.Unlock()

	if changed {
		logger := p.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Debug("indicator", "panel", p.Name, "bar", calibrate.Bar(states), "lit", lit)
	}
	return nil
}

// Bars drives a gas panel and a secondary panel from independently
// calibrated tables.
type Bars struct {
	gasTable *calibrate.Table
	secTable *calibrate.Table
	gas      Panel
	sec      Panel
}

// NewBars creates Bars. Nil panels are skipped.
func NewBars(gasTable, secTable *calibrate.Table, gas, sec Panel) *Bars {
	return &Bars{
		gasTable: gasTable,
		secTable: secTable,
		gas:      gas,
		sec:      sec,
	}
}

// Update refreshes both panels from the raw channel values of r.
func (b *Bars) Update(r models.SensorReading) error {
	if b.gas != nil {
		if err := b.gas.Set(b.gasTable.Activate(r.GasRaw)); err != nil {
			return fmt.Errorf("set gas panel: %w", err)
		}
	}
	if b.sec != nil {
		if err := b.sec.Set(b.secTable.Activate(r.Secondary)); err != nil {
			return fmt.Errorf("set secondary panel: %w", err)
		}
	}
	return nil
}

package sensor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/calibrate"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// SimulatorOptions configures a Simulator.
type SimulatorOptions struct {
	Seed           int64  // 0 seeds from the clock
	MinGas         int    // default 5
	MaxGas         int    // default 95
	TraceThreshold int    // gas above this reports Substance (default 85)
	Substance      string // default COCAINE_TRACE

	// Gas and Secondary map the simulated level back onto raw channel
	// values so indicator arrays can be driven. Nil uses the default table.
	Gas       *calibrate.Table
	Secondary *calibrate.Table
}

// DefaultSimulatorOptions returns default simulator options.
func DefaultSimulatorOptions() *SimulatorOptions {
	return &SimulatorOptions{
		MinGas:         5,
		MaxGas:         95,
		TraceThreshold: 85,
		Substance:      DefaultSubstance,
	}
}

// Simulator generates gas levels uniformly in [MinGas, MaxGas] and reports a
// trace whenever the level exceeds TraceThreshold, else models.NoMatch.
type Simulator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	opts SimulatorOptions
}

// NewSimulator creates a simulator.
func NewSimulator(opts *SimulatorOptions) *Simulator {
	def := DefaultSimulatorOptions()
	if opts == nil {
		opts = def
	}

	o := *opts
	if o.MaxGas <= 0 {
		o.MinGas, o.MaxGas = def.MinGas, def.MaxGas
	}
	if o.MinGas > o.MaxGas {
		o.MinGas, o.MaxGas = o.MaxGas, o.MinGas
	}
	if o.TraceThreshold <= 0 {
		o.TraceThreshold = def.TraceThreshold
	}
	if o.Substance == "" {
		o.Substance = def.Substance
	}
	if o.Gas == nil {
		o.Gas = calibrate.MustNew(calibrate.DefaultRawMin, calibrate.DefaultRawMax, calibrate.DefaultBands)
	}
	if o.Secondary == nil {
		o.Secondary = o.Gas
	}

	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Simulator{
		rng:  rand.New(rand.NewSource(seed)),
		opts: o,
	}
}

// Read returns the next simulated reading.
func (s *Simulator) Read(ctx context.Context) (models.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return models.SensorReading{}, err
	}

	s.mu.Lock()
	gas := s.opts.MinGas + s.rng.Intn(s.opts.MaxGas-s.opts.MinGas+1)
	s.mu.Unlock()

	r := models.SensorReading{
		GasLevel:      gas,
		SpectralMatch: models.NoMatch,
		GasRaw:        rawAt(s.opts.Gas, gas),
	}
	if gas > s.opts.TraceThreshold {
		r.SpectralMatch = s.opts.Substance
		r.Secondary = rawAt(s.opts.Secondary, gas)
	} else {
		r.Secondary = rawAt(s.opts.Secondary, gas/2)
	}
	return r, nil
}

// rawAt maps a 0-100 percentage onto t's raw range.
func rawAt(t *calibrate.Table, pct int) int {
	lo, hi := t.Range()
	return lo + int(int64(hi-lo)*int64(pct)/100)
}

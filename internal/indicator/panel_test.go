package indicator

import (
	"errors"
	"testing"

	"github.com/good-yellow-bee/cognifyx/internal/calibrate"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

func TestBarsUpdate(t *testing.T) {
	gasTable := calibrate.MustNew(calibrate.DefaultRawMin, calibrate.DefaultRawMax, calibrate.DefaultBands)
	secTable := calibrate.MustNew(0, 100, 4)

	gas := &MemoryPanel{}
	sec := &MemoryPanel{}
	bars := NewBars(gasTable, secTable, gas, sec)

	tests := []struct {
		name    string
		reading models.SensorReading
		wantGas int
		wantSec int
	}{
		{"idle", models.SensorReading{GasRaw: 0, Secondary: 0}, 0, 0},
		{"first cut", models.SensorReading{GasRaw: 18593, Secondary: 25}, 1, 1},
		{"just under", models.SensorReading{GasRaw: 18592, Secondary: 24}, 0, 0},
		{"mid", models.SensorReading{GasRaw: 40000, Secondary: 60}, 5, 2},
		{"full", models.SensorReading{GasRaw: 65535, Secondary: 100}, 10, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := bars.Update(tt.reading); err != nil {
				t.Fatalf("Update: %v", err)
			}
			if got := gas.Lit(); got != tt.wantGas {
				t.Errorf("gas lit = %d, want %d", got, tt.wantGas)
			}
			if got := sec.Lit(); got != tt.wantSec {
				t.Errorf("secondary lit = %d, want %d", got, tt.wantSec)
			}

			// Lit elements are always a prefix.
			states := gas.States()
			for i := 1; i < len(states); i++ {
				if states[i] && !states[i-1] {
					t.Errorf("gas states not cumulative: %v", states)
					break
				}
			}
		})
	}
}

type failingPanel struct{}

func (failingPanel) Set([]bool) error { return errors.New("gpio busy") }

func TestBarsPanelError(t *testing.T) {
	table := calibrate.MustNew(0, 100, 4)
	bars := NewBars(table, table, failingPanel{}, nil)
	if err := bars.Update(models.SensorReading{}); err == nil {
		t.Error("expected panel error")
	}

	// Nil panels are skipped.
	if err := NewBars(table, table, nil, nil).Update(models.SensorReading{}); err != nil {
		t.Errorf("Update with nil panels: %v", err)
	}
}

func TestLogPanel(t *testing.T) {
	p := &LogPanel{Name: "gas"}
	if err := p.Set([]bool{true, false}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if p.last != 1 || !p.set {
		t.Errorf("last = %d, set = %v", p.last, p.set)
	}
}

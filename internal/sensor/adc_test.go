package sensor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/good-yellow-bee/cognifyx/internal/calibrate"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

type fakeADC map[int]uint16

func (f fakeADC) ReadU16(ch int) (uint16, error) {
	v, ok := f[ch]
	if !ok {
		return 0, errors.New("no such channel")
	}
	return v, nil
}

func TestADCRead(t *testing.T) {
	tests := []struct {
		name      string
		gas, sec  uint16
		wantGas   int
		wantTrace bool
	}{
		{"floor", 0, 0, 0, false},
		{"at min", calibrate.DefaultRawMin, calibrate.DefaultRawMin, 0, false},
		{"midpoint", 39065, 39065, 50, false},
		{"band 8 is not a trace", 30000, 54419, 32, false},
		{"band 9 is a trace", 30000, 59537, 32, true},
		{"ceiling", 65535, 65535, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adc, err := NewADC(fakeADC{0: tt.gas, 1: tt.sec}, ADCOptions{GasChannel: 0, SecondaryChannel: 1})
			if err != nil {
				t.Fatalf("NewADC: %v", err)
			}

			r, err := adc.Read(context.Background())
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if r.GasLevel != tt.wantGas {
				t.Errorf("GasLevel = %d, want %d", r.GasLevel, tt.wantGas)
			}
			if r.HasTrace() != tt.wantTrace {
				t.Errorf("HasTrace = %v, want %v (tag %q)", r.HasTrace(), tt.wantTrace, r.SpectralMatch)
			}
			if !tt.wantTrace && r.SpectralMatch != models.NoMatch {
				t.Errorf("SpectralMatch = %q, want %q", r.SpectralMatch, models.NoMatch)
			}
			if r.GasRaw != int(tt.gas) || r.Secondary != int(tt.sec) {
				t.Errorf("raw values = (%d, %d), want (%d, %d)", r.GasRaw, r.Secondary, tt.gas, tt.sec)
			}
		})
	}
}

func TestADCChannelError(t *testing.T) {
	adc, _ := NewADC(fakeADC{0: 100}, ADCOptions{GasChannel: 0, SecondaryChannel: 1})
	if _, err := adc.Read(context.Background()); err == nil {
		t.Error("missing secondary channel should fail")
	}
}

func TestNewADCValidation(t *testing.T) {
	small := calibrate.MustNew(0, 100, 4)

	tests := []struct {
		name string
		opts ADCOptions
	}{
		{"same channel", ADCOptions{GasChannel: 2, SecondaryChannel: 2}},
		{"band too high", ADCOptions{SecondaryChannel: 1, Secondary: small, TraceBand: 5}},
		{"band negative", ADCOptions{SecondaryChannel: 1, TraceBand: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewADC(fakeADC{}, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := NewADC(nil, ADCOptions{SecondaryChannel: 1}); err == nil {
		t.Error("nil reader should fail")
	}

	// A small secondary table clamps the default trace band.
	adc, err := NewADC(fakeADC{}, ADCOptions{SecondaryChannel: 1, Secondary: small})
	if err != nil {
		t.Fatalf("NewADC: %v", err)
	}
	if adc.opts.TraceBand != 4 {
		t.Errorf("TraceBand = %d, want 4", adc.opts.TraceBand)
	}
}

func TestIIOReader(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "in_voltage0_raw"), []byte("4095\n"), 0644)
	os.WriteFile(filepath.Join(dir, "in_voltage1_raw"), []byte("2048\n"), 0644)
	os.WriteFile(filepath.Join(dir, "in_voltage2_raw"), []byte("garbage"), 0644)

	r := &IIOReader{Dir: dir, Bits: 12}

	v, err := r.ReadU16(0)
	if err != nil || v != 0xFFF0 {
		t.Errorf("ReadU16(0) = %#x, %v; want 0xfff0", v, err)
	}
	v, err = r.ReadU16(1)
	if err != nil || v != 0x8000 {
		t.Errorf("ReadU16(1) = %#x, %v; want 0x8000", v, err)
	}
	if _, err := r.ReadU16(2); err == nil {
		t.Error("malformed sample should fail")
	}
	if _, err := r.ReadU16(3); err == nil {
		t.Error("missing channel should fail")
	}
}

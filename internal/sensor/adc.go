package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/good-yellow-bee/cognifyx/internal/calibrate"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// ADCReader reads raw 16-bit samples from an analog-to-digital converter.
type ADCReader interface {
	ReadU16(channel int) (uint16, error)
}

// DefaultTraceBand is the secondary band at which the trace channel is
// classified as a positive match.
const DefaultTraceBand = 9

// ADCOptions configures an ADC source.
type ADCOptions struct {
	GasChannel       int
	SecondaryChannel int

	Gas       *calibrate.Table
	Secondary *calibrate.Table

	// TraceBand is the number of lit secondary bands that counts as a
	// positive trace. It must be in [1, Secondary.Bands()].
	TraceBand int
	Substance string
}

// ADC reads the gas and trace-substance channels of a two-channel ADC and
// normalises them against independent calibration tables.
type ADC struct {
	reader ADCReader
	opts   ADCOptions
}

// NewADC creates an ADC source.
func NewADC(reader ADCReader, opts ADCOptions) (*ADC, error) {
	if reader == nil {
		return nil, errors.New("adc reader is required")
	}
	if opts.Gas == nil {
		opts.Gas = calibrate.MustNew(calibrate.DefaultRawMin, calibrate.DefaultRawMax, calibrate.DefaultBands)
	}
	if opts.Secondary == nil {
		opts.Secondary = opts.Gas
	}
	if opts.GasChannel == opts.SecondaryChannel {
		return nil, fmt.Errorf("gas and secondary channels must differ, both are %d", opts.GasChannel)
	}
	if opts.TraceBand == 0 {
		opts.TraceBand = min(DefaultTraceBand, opts.Secondary.Bands())
	}
	if opts.TraceBand < 1 || opts.TraceBand > opts.Secondary.Bands() {
		return nil, fmt.Errorf("trace band %d out of range [1, %d]", opts.TraceBand, opts.Secondary.Bands())
	}
	if opts.Substance == "" {
		opts.Substance = DefaultSubstance
	}
	return &ADC{reader: reader, opts: opts}, nil
}

// Read samples both channels.
func (a *ADC) Read(ctx context.Context) (models.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return models.SensorReading{}, err
	}

	gasRaw, err := a.reader.ReadU16(a.opts.GasChannel)
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("read gas channel %d: %w", a.opts.GasChannel, err)
	}
	secRaw, err := a.reader.ReadU16(a.opts.SecondaryChannel)
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("read secondary channel %d: %w", a.opts.SecondaryChannel, err)
	}

	r := models.SensorReading{
		GasLevel:      a.opts.Gas.Percent(int(gasRaw)),
		SpectralMatch: models.NoMatch,
		GasRaw:        int(gasRaw),
		Secondary:     int(secRaw),
	}
	if a.opts.Secondary.Level(int(secRaw)) >= a.opts.TraceBand {
		r.SpectralMatch = a.opts.Substance
	}
	return r, nil
}

// IIOReader reads channels exposed by the Linux industrial I/O subsystem as
// in_voltage<N>_raw files under Dir, e.g. /sys/bus/iio/devices/iio:device0.
// Samples narrower than 16 bits are scaled up.
type IIOReader struct {
	Dir  string
	Bits int // sample width, default 16
}

// ReadU16 reads one sample.
func (r *IIOReader) ReadU16(channel int) (uint16, error) {
	path := filepath.Join(r.Dir, fmt.Sprintf("in_voltage%d_raw", channel))
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	bits := r.Bits
	if bits <= 0 || bits > 16 {
		bits = 16
	}
	if v >= 1<<bits {
		v = 1<<bits - 1
	}
	return uint16(v << (16 - bits)), nil
}

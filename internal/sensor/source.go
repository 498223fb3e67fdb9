// Package sensor provides chemical sensor sources: a seedable simulator and
// an adapter over two raw ADC channels.
package sensor

import (
	"context"
	"errors"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// DefaultSubstance is the trace tag reported on a positive match.
const DefaultSubstance = "COCAINE_TRACE"

// ErrNoReading is returned when a source has nothing to report.
var ErrNoReading = errors.New("no sensor reading available")

// Source produces sensor readings. Implementations must be safe for use by a
// single goroutine; the pipeline never calls Read concurrently.
type Source interface {
	Read(ctx context.Context) (models.SensorReading, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (models.SensorReading, error)

// Read calls f.
func (f SourceFunc) Read(ctx context.Context) (models.SensorReading, error) {
	return f(ctx)
}

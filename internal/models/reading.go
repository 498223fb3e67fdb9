// Package models contains the core data structures for CognifyX.
package models

import "fmt"

// NoMatch is the spectral tag a sensor reports when no trace substance was
// identified. Every producer and consumer of spectral tags compares against
// this constant.
const NoMatch = "NO_MATCH"

// SensorReading is one sample of the chemical sensors.
type SensorReading struct {
	// GasLevel is the gas concentration on the 0-100 normalised scale.
	GasLevel int `json:"gas_level"`

	// SpectralMatch is the trace-substance classification tag.
	SpectralMatch string `json:"spectral_match"`

	// Secondary is the raw value of the trace-substance channel, used to
	// drive the second indicator array. Zero when the source has none.
	Secondary int `json:"secondary,omitempty"`

	// GasRaw is the raw gas channel value before normalisation.
	GasRaw int `json:"gas_raw,omitempty"`
}

// HasTrace reports whether the spectral tag signals a positive trace match.
func (r SensorReading) HasTrace() bool {
	return r.SpectralMatch != "" && r.SpectralMatch != NoMatch
}

// String returns the console status form used in cycle logs.
func (r SensorReading) String() string {
	return fmt.Sprintf("Gas: %d | Spec: %s", r.GasLevel, r.SpectralMatch)
}

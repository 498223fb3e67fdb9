// Package vision provides object-detection frame sources.
//
// A Source yields the detections found in successive camera frames. The
// object-detection model itself runs outside this process; sources here
// replay recorded detections or wrap another source with retries.
package vision

import (
	"context"
	"errors"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// ErrSourceOffline is returned once a source has failed more times in a row
// than its retry budget allows.
var ErrSourceOffline = errors.New("vision source offline")

// Source yields detections for the next frame. An empty slice is a frame
// with no objects. io.EOF signals a finite source has no more frames.
type Source interface {
	Next(ctx context.Context) ([]models.Detection, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]models.Detection, error)

// Next calls f.
func (f SourceFunc) Next(ctx context.Context) ([]models.Detection, error) {
	return f(ctx)
}

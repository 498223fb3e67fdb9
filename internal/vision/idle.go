package vision

import (
	"context"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// Idle yields empty frames at a fixed rate, standing in for a camera that
// sees nothing. It lets the sensor path run without a vision feed.
type Idle struct {
	ticker *time.Ticker
}

// NewIdle creates an idle source producing one frame per interval.
func NewIdle(interval time.Duration) *Idle {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Idle{ticker: time.NewTicker(interval)}
}

// Next waits for the next tick and returns an empty frame.
func (s *Idle) Next(ctx context.Context) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ticker.C:
		return []models.Detection{}, nil
	}
}

// Close stops the ticker.
func (s *Idle) Close() {
	s.ticker.Stop()
}

package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// RetryOptions configures a Retrying source.
type RetryOptions struct {
	// MaxAttempts is the number of consecutive failed reads tolerated per
	// frame before the source is declared offline.
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// DefaultRetryOptions returns default retry options.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 5,
		Initial:     100 * time.Millisecond,
		Max:         5 * time.Second,
	}
}

// Retrying wraps a Source and retries failed reads with exponential backoff.
// io.EOF and context errors are passed through untouched.
type Retrying struct {
	src     Source
	backoff *Backoff
	max     int
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps src.
func NewRetrying(src Source, opts RetryOptions, logger *slog.Logger) *Retrying {
	def := DefaultRetryOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Initial <= 0 {
		opts.Initial = def.Initial
	}
	if opts.Max <= 0 {
		opts.Max = def.Max
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := NewBackoff()
	b.Initial = opts.Initial
	b.Max = opts.Max

	return &Retrying{
		src:     src,
		backoff: b,
		max:     opts.MaxAttempts,
		logger:  logger.With("component", "vision"),
		sleep:   sleepCtx,
	}
}

// Next reads the next frame, retrying transient failures.
func (r *Retrying) Next(ctx context.Context) ([]models.Detection, error) {
	var lastErr error
	for attempt := 1; attempt <= r.max; attempt++ {
		dets, err := r.src.Next(ctx)
		if err == nil {
			if r.backoff.Attempt() > 0 {
				r.logger.Info("vision source recovered", "attempts", attempt)
			}
			r.backoff.Reset()
			return dets, nil
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		metrics.FrameErrorsTotal.Inc()
		if attempt == r.max {
			break
		}

		delay := r.backoff.Next()
		r.logger.Warn("frame read failed, retrying",
			"attempt", attempt,
			"max_attempts", r.max,
			"delay", delay,
			"error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	r.backoff.Reset()
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrSourceOffline, r.max, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

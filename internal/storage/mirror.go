package storage

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// Forwarder receives events after they have been durably stored.
type Forwarder interface {
	DispatchAll(ctx context.Context, event *models.AlertEvent) error
}

// Mirrored wraps an AlertStore and forwards every appended event, for
// example to a message queue. The local append is the record of truth: a
// forwarding failure is logged and counted but never fails the append.
type Mirrored struct {
	AlertStore
	forward Forwarder
	logger  *slog.Logger

	forwarded atomic.Int64
	failed    atomic.Int64
}

// NewMirrored creates a mirrored store.
func NewMirrored(store AlertStore, fwd Forwarder, logger *slog.Logger) *Mirrored {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirrored{
		AlertStore: store,
		forward:    fwd,
		logger:     logger.With("component", "mirror"),
	}
}

// Append stores the event, then forwards it.
func (m *Mirrored) Append(ctx context.Context, event *models.AlertEvent) error {
	if err := m.AlertStore.Append(ctx, event); err != nil {
		return err
	}

	if err := m.forward.DispatchAll(ctx, event); err != nil {
		m.failed.Add(1)
		metrics.MirrorErrorsTotal.Inc()
		m.logger.Warn("alert mirror failed", "trigger", event.Trigger, "error", err)
		return nil
	}

	m.forwarded.Add(1)
	metrics.MirrorPublishedTotal.Inc()
	return nil
}

// Stats returns forwarded and failed counts.
func (m *Mirrored) Stats() (forwarded, failed int64) {
	return m.forwarded.Load(), m.failed.Load()
}

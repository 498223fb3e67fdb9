// Package storage provides the durable alert log and its implementations.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

var (
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("alert store is closed")
	// ErrMalformedLog is returned by strict readers when the log content
	// cannot be decoded. Tolerant readers map it to an empty sequence.
	ErrMalformedLog = errors.New("alert log is malformed")
)

// AlertStore is the append-only alert log. Callers depend only on this
// interface; implementations exist over a JSON file and a SQLite table.
type AlertStore interface {
	// Append persists one event. A write is all-or-nothing.
	Append(ctx context.Context, event *models.AlertEvent) error
	// ReadAll returns every event in append order. Missing or malformed
	// content is an empty sequence, not an error.
	ReadAll(ctx context.Context) ([]models.AlertEvent, error)
	// Close releases resources.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config selects and configures an AlertStore.
type Config struct {
	Driver string // file (default) or sqlite
	Path   string // log file or database path
}

// Open creates the store described by cfg.
func Open(cfg Config) (AlertStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	switch cfg.Driver {
	case "", DriverFile:
		return NewFileStore(cfg.Path), nil
	case DriverSQLite:
		s := NewSQLiteStore(cfg.Path)
		if err := s.Open(); err != nil {
			return nil, err
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Latest returns the most recently appended event, or nil for an empty log.
func Latest(events []models.AlertEvent) *models.AlertEvent {
	if len(events) == 0 {
		return nil
	}
	latest := events[len(events)-1]
	return &latest
}

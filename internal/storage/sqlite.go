package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	// Pure Go SQLite driver, registers "sqlite".
	_ "modernc.org/sqlite"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// SQLiteStore keeps the alert log in a SQLite table. Each append is a single
// INSERT, so concurrent writers (several devices sharing one database file)
// do not lose updates the way whole-file rewrites can.
type SQLiteStore struct {
	path string
	db   *sql.DB

	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite store. Call Open and Migrate before use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Open initializes the database connection.
func (s *SQLiteStore) Open() error {
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	s.db = db
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return fmt.Errorf("database not open")
	}
	return runMigrations(s.db)
}

// DB returns the underlying database connection for health checks.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Append inserts one event.
func (s *SQLiteStore) Append(ctx context.Context, event *models.AlertEvent) error {
	if event == nil {
		return fmt.Errorf("append: nil event")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db == nil {
		return ErrStoreClosed
	}

	query := `
		INSERT INTO alert_events (time, latitude, longitude, trigger,
			gas_ppm, spectral_match, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Time, event.Location.Latitude, event.Location.Longitude, event.Trigger,
		event.SensorData.GasPPM, event.SensorData.SpectralMatch, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert event: %w", err)
	}
	return nil
}

// ReadAll returns all events ordered by insertion.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]models.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db == nil {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT time, latitude, longitude, trigger, gas_ppm, spectral_match
		FROM alert_events ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query alert events: %w", err)
	}
	defer rows.Close()

	events := []models.AlertEvent{}
	for rows.Next() {
		var e models.AlertEvent
		err := rows.Scan(&e.Time, &e.Location.Latitude, &e.Location.Longitude, &e.Trigger,
			&e.SensorData.GasPPM, &e.SensorData.SpectralMatch)
		if err != nil {
			return nil, fmt.Errorf("scan alert event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of stored events.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db == nil {
		return 0, ErrStoreClosed
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count alert events: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// FileStore keeps the alert log as a single JSON array, the format the
// dashboard reads.
//
// Appends rewrite the whole file: the new content goes to a temporary file
// in the same directory which is then renamed over the log, so readers see
// either the old or the new sequence. Appends are serialised within the
// process. Two processes appending to the same file can lose updates; the
// file store therefore requires a single writer per log. Use SQLiteStore or
// a queue mirror when several devices must share one log.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a file-backed store. The file is created on first
// append.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: slog.Default().With("component", "alertlog", "path", path),
	}
}

// SetLogger replaces the store's logger.
func (s *FileStore) SetLogger(l *slog.Logger) {
	s.logger = l.With("component", "alertlog", "path", s.path)
}

// Path returns the log file path.
func (s *FileStore) Path() string {
	return s.path
}

// Append reads the current sequence, appends event and persists the result.
func (s *FileStore) Append(ctx context.Context, event *models.AlertEvent) error {
	if event == nil {
		return fmt.Errorf("append: nil event")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	events, err := LoadFile(s.path)
	if errors.Is(err, ErrMalformedLog) {
		s.quarantine()
		events, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("read alert log: %w", err)
	}

	events = append(events, *event)
	if err := writeFileAtomic(s.path, events); err != nil {
		return fmt.Errorf("write alert log: %w", err)
	}
	return nil
}

// ReadAll returns the logged events. Missing or malformed files yield an
// empty sequence.
func (s *FileStore) ReadAll(ctx context.Context) ([]models.AlertEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(s.path)
}

// Close marks the store closed. Further appends fail.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// quarantine keeps a copy of an undecodable log next to it before it is
// replaced. Must be called with mu held.
func (s *FileStore) quarantine() {
	dst := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixNano())
	if err := os.Rename(s.path, dst); err != nil {
		s.logger.Warn("malformed alert log could not be preserved", "error", err)
		return
	}
	s.logger.Warn("malformed alert log replaced", "backup", dst)
}

// ReadFile is the tolerant reader: a missing file or malformed content is an
// empty sequence. Only I/O failures such as permission errors are returned.
func ReadFile(path string) ([]models.AlertEvent, error) {
	events, err := LoadFile(path)
	if errors.Is(err, ErrMalformedLog) {
		return []models.AlertEvent{}, nil
	}
	return events, err
}

// LoadFile is the strict reader. A missing file is an empty sequence;
// undecodable content returns ErrMalformedLog so callers can retry a read
// that raced with a rewrite.
func LoadFile(path string) ([]models.AlertEvent, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.AlertEvent{}, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses a JSON array of alert events.
func Decode(data []byte) ([]models.AlertEvent, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.AlertEvent{}, nil
	}

	var events []models.AlertEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	if events == nil {
		events = []models.AlertEvent{}
	}
	return events, nil
}

// Encode renders events the way the log file stores them.
func Encode(events []models.AlertEvent) ([]byte, error) {
	if events == nil {
		events = []models.AlertEvent{}
	}
	return json.MarshalIndent(events, "", "    ")
}

// writeFileAtomic writes the sequence to a temp file and renames it over
// path.
func writeFileAtomic(path string, events []models.AlertEvent) error {
	data, err := Encode(events)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

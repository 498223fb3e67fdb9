package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

type fakeForwarder struct {
	sent []*models.AlertEvent
	err  error
}

func (f *fakeForwarder) DispatchAll(ctx context.Context, event *models.AlertEvent) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, event)
	return nil
}

func TestMirroredForwardsAfterAppend(t *testing.T) {
	ctx := context.Background()
	fwd := &fakeForwarder{}
	m := NewMirrored(NewFileStore(filepath.Join(t.TempDir(), "alerts.json")), fwd, nil)

	if err := m.Append(ctx, testEvent(1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(fwd.sent) != 1 {
		t.Fatalf("forwarded %d events, want 1", len(fwd.sent))
	}

	forwarded, failed := m.Stats()
	if forwarded != 1 || failed != 0 {
		t.Errorf("Stats = (%d, %d), want (1, 0)", forwarded, failed)
	}
}

func TestMirroredFailureKeepsLocalAppend(t *testing.T) {
	ctx := context.Background()
	fwd := &fakeForwarder{err: errors.New("broker down")}
	m := NewMirrored(NewFileStore(filepath.Join(t.TempDir(), "alerts.json")), fwd, nil)

	if err := m.Append(ctx, testEvent(1)); err != nil {
		t.Fatalf("Append should succeed when only the mirror fails: %v", err)
	}

	events, _ := m.ReadAll(ctx)
	if len(events) != 1 {
		t.Errorf("local log has %d events, want 1", len(events))
	}
	if _, failed := m.Stats(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestMirroredSkipsForwardWhenAppendFails(t *testing.T) {
	ctx := context.Background()
	fwd := &fakeForwarder{}
	inner := NewFileStore(filepath.Join(t.TempDir(), "alerts.json"))
	inner.Close()
	m := NewMirrored(inner, fwd, nil)

	if err := m.Append(ctx, testEvent(1)); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("Append = %v, want ErrStoreClosed", err)
	}
	if len(fwd.sent) != 0 {
		t.Error("events must not be forwarded when the local append fails")
	}
}

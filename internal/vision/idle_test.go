package vision

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIdle(t *testing.T) {
	s := NewIdle(5 * time.Millisecond)
	defer s.Close()

	dets, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dets == nil || len(dets) != 0 {
		t.Errorf("dets = %#v, want empty frame", dets)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next with canceled context = %v, want context.Canceled", err)
	}
}

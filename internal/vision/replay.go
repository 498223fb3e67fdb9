package vision

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// ReplayOptions configures a Replay source.
type ReplayOptions struct {
	// Loop restarts from the first frame after the last one.
	Loop bool
	// Interval paces frames. Zero returns frames as fast as they are read.
	Interval time.Duration
}

// Replay yields frames recorded as JSON lines, one detection array per line:
//
//	[{"label":"bottle","box":[10,20,110,220]}]
//	[]
//
// Blank lines and lines starting with '#' are skipped.
type Replay struct {
	frames [][]models.Detection
	opts   ReplayOptions

	mu   sync.Mutex
	pos  int
	last time.Time
}

// NewReplay creates a replay source over frames.
func NewReplay(frames [][]models.Detection, opts ReplayOptions) *Replay {
	return &Replay{frames: frames, opts: opts}
}

// OpenReplay loads a frames file.
func OpenReplay(path string, opts ReplayOptions) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	frames, err := ReadFrames(f)
	if err != nil {
		return nil, fmt.Errorf("read replay file %s: %w", path, err)
	}
	return NewReplay(frames, opts), nil
}

// ReadFrames parses JSON-lines frames from r.
func ReadFrames(r io.Reader) ([][]models.Detection, error) {
	var frames [][]models.Detection

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 || b[0] == '#' {
			continue
		}

		var dets []models.Detection
		if err := json.Unmarshal(b, &dets); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if dets == nil {
			dets = []models.Detection{}
		}
		frames = append(frames, dets)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// Len returns the number of recorded frames.
func (r *Replay) Len() int {
	return len(r.frames)
}

// Next returns the next frame, or io.EOF when a non-looping replay is done.
func (r *Replay) Next(ctx context.Context) ([]models.Detection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) == 0 {
		return nil, io.EOF
	}
	if r.pos >= len(r.frames) {
		if !r.opts.Loop {
			return nil, io.EOF
		}
		r.pos = 0
	}

	if err := r.pace(ctx); err != nil {
		return nil, err
	}

	frame := r.frames[r.pos]
	r.pos++

	out := make([]models.Detection, len(frame))
	copy(out, frame)
	return out, nil
}

// pace waits until Interval has passed since the previous frame.
func (r *Replay) pace(ctx context.Context) error {
	if r.opts.Interval <= 0 {
		return ctx.Err()
	}

	if !r.last.IsZero() {
		if wait := r.opts.Interval - time.Since(r.last); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	r.last = time.Now()
	return ctx.Err()
}

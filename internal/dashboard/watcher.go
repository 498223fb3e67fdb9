// Package dashboard serves the read side of the alert log: a JSON API, a
// GeoJSON feed for maps, and a server-sent event stream of new alerts.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/internal/models"
	"github.com/good-yellow-bee/cognifyx/internal/storage"
)

// LoadFunc reads the full alert log.
type LoadFunc func(ctx context.Context) ([]models.AlertEvent, error)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// PollInterval bounds how stale the snapshot can get when file
	// notifications are missed or unavailable.
	PollInterval time.Duration
	// MalformedRetries is how many times a malformed read is retried before
	// the log is treated as empty.
	MalformedRetries int
	RetryDelay       time.Duration
	// Load overrides the reader. The default reads Path with the strict
	// file decoder.
	Load LoadFunc
}

// DefaultWatcherOptions returns default watcher options.
func DefaultWatcherOptions() *WatcherOptions {
	return &WatcherOptions{
		PollInterval:     time.Second,
		MalformedRetries: 3,
		RetryDelay:       50 * time.Millisecond,
	}
}

// Update is sent to subscribers when the log changes.
type Update struct {
	// Events is the full sequence after the change.
	Events []models.AlertEvent
	// Added holds events appended since the previous update. It is nil when
	// the log shrank or was replaced.
	Added []models.AlertEvent
}

// Watcher keeps an in-memory snapshot of the alert log and notifies
// subscribers on change. It reacts to file notifications on the log's
// directory and re-reads on a fixed poll interval as a fallback.
type Watcher struct {
	path   string
	opts   WatcherOptions
	load   LoadFunc
	logger *slog.Logger

	mu     sync.RWMutex
	events []models.AlertEvent
	subs   map[int]chan Update
	nextID int

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher for the log at path.
func NewWatcher(path string, opts *WatcherOptions, logger *slog.Logger) *Watcher {
	def := DefaultWatcherOptions()
	if opts == nil {
		opts = def
	}
	o := *opts
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.MalformedRetries < 0 {
		o.MalformedRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		path:   path,
		opts:   o,
		load:   o.Load,
		logger: logger.With("component", "watcher"),
		events: []models.AlertEvent{},
		subs:   make(map[int]chan Update),
		done:   make(chan struct{}),
	}
	if w.load == nil {
		w.load = func(context.Context) ([]models.AlertEvent, error) {
			return storage.LoadFile(path)
		}
	}
	return w
}

// Start loads the log once and begins watching in the background.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.Reload(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("file notifications unavailable, polling only", "error", err)
	} else if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		w.logger.Warn("cannot watch log directory, polling only", "dir", filepath.Dir(w.path), "error", err)
	} else {
		w.fsw = fsw
	}

	go w.run(ctx)
	return nil
}

// Stop stops watching and closes all subscriber channels.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.closeSubscribers()
	if w.fsw != nil {
		defer w.fsw.Close()
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.fsw != nil {
		events, errs = w.fsw.Events, w.fsw.Errors
	}

	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// SQLite keeps its journal in <name>-wal next to the database.
			name := filepath.Base(ev.Name)
			if name == base || strings.HasPrefix(name, base+"-") {
				w.Reload(ctx)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-ticker.C:
			w.Reload(ctx)
		}
	}
}

// Reload re-reads the log and notifies subscribers if it changed. It
// reports whether the snapshot changed.
func (w *Watcher) Reload(ctx context.Context) bool {
	events, err := w.read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			metrics.DashboardReloadsTotal.WithLabelValues("error").Inc()
			w.logger.Warn("alert log read failed, keeping previous snapshot", "path", w.path, "error", err)
		}
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	old := w.events
	if sameEvents(old, events) {
		return false
	}
	w.events = events

	u := Update{Events: events}
	if len(events) > len(old) && (len(old) == 0 || events[len(old)-1] == old[len(old)-1]) {
		u.Added = events[len(old):]
	}
	for _, ch := range w.subs {
		deliver(ch, u)
	}
	if n := len(u.Added); n > 0 {
		metrics.DashboardEventsTotal.Add(float64(n))
	}
	return true
}

// deliver sends u without blocking. When ch is full, the queued updates are
// taken back and folded together with u so the subscriber still sees every
// appended event. Only Reload sends, under w.mu, so the drained slots stay
// free for the merged update.
func deliver(ch chan Update, u Update) {
	select {
	case ch <- u:
		return
	default:
	}

	var queued []Update
drain:
	for {
		select {
		case q := <-ch:
			queued = append(queued, q)
		default:
			break drain
		}
	}

	select {
	case ch <- mergeUpdates(append(queued, u)):
	default:
	}
}

// mergeUpdates folds consecutive updates into one. Added is the
// concatenation when every update was an append, and nil (a reset) when any
// of them replaced the log.
func mergeUpdates(us []Update) Update {
	merged := Update{Events: us[len(us)-1].Events}
	var added []models.AlertEvent
	for _, u := range us {
		if u.Added == nil {
			return merged
		}
		added = append(added, u.Added...)
	}
	merged.Added = added
	return merged
}

// read loads the log, retrying malformed content a bounded number of times
// before treating the log as empty.
func (w *Watcher) read(ctx context.Context) ([]models.AlertEvent, error) {
	for attempt := 0; ; attempt++ {
		events, err := w.load(ctx)
		if err == nil {
			metrics.DashboardReloadsTotal.WithLabelValues("ok").Inc()
			if events == nil {
				events = []models.AlertEvent{}
			}
			return events, nil
		}
		if !errors.Is(err, storage.ErrMalformedLog) {
			return nil, err
		}

		metrics.DashboardReloadsTotal.WithLabelValues("malformed").Inc()
		if attempt >= w.opts.MalformedRetries {
			w.logger.Warn("alert log still malformed, showing empty log", "path", w.path, "attempts", attempt+1)
			return []models.AlertEvent{}, nil
		}

		timer := time.NewTimer(w.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Snapshot returns a copy of the current sequence.
func (w *Watcher) Snapshot() []models.AlertEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.AlertEvent{}, w.events...)
}

// Latest returns the most recent event, or nil.
func (w *Watcher) Latest() *models.AlertEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return storage.Latest(w.events)
}

// Count returns the number of logged events.
func (w *Watcher) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.events)
}

// Subscribe returns a channel of updates and a function that cancels the
// subscription. The channel is closed when the watcher stops.
func (w *Watcher) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Update, buffer)

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = ch
	w.mu.Unlock()
	metrics.DashboardSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			if _, ok := w.subs[id]; ok {
				delete(w.subs, id)
				close(ch)
				metrics.DashboardSubscribers.Dec()
			}
			w.mu.Unlock()
		})
	}
}

func (w *Watcher) closeSubscribers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subs {
		close(ch)
		delete(w.subs, id)
		metrics.DashboardSubscribers.Dec()
	}
}

func sameEvents(a, b []models.AlertEvent) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package dashboard

import (
	"net/http"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// Connection states reported by the status endpoint.
const (
	StateConnected = "connected"
	StateWaiting   = "waiting"
)

// Status summarises the log for the sidebar.
type Status struct {
	Count      int    `json:"count"`
	State      string `json:"state"`
	LatestTime string `json:"latest_time,omitempty"`
}

// StatusOf computes the status for events.
func StatusOf(events []models.AlertEvent) Status {
	s := Status{Count: len(events), State: StateWaiting}
	if len(events) > 0 {
		s.State = StateConnected
		s.LatestTime = events[len(events)-1].Time
	}
	return s
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, s.watcher.Snapshot())
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest := s.watcher.Latest()
	if latest == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "no alerts logged")
		return
	}
	jsonOK(w, latest)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	writeJSON(w, ToGeoJSON(s.watcher.Snapshot()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, StatusOf(s.watcher.Snapshot()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]string{"status": "ok"})
}

// handleStream pushes each new alert as an "alert" event. A "reset" event
// carries the full sequence when the log was replaced.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, http.StatusInternalServerError, errCodeInternal, "streaming not supported")
		return
	}

	updates, unsubscribe := s.watcher.Subscribe(16)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sse := NewSSEWriter(w, flusher)
	if err := sse.SendRetry(3000); err != nil {
		return
	}
	if err := sse.SendJSON("status", StatusOf(s.watcher.Snapshot())); err != nil {
		return
	}

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-heartbeat.C:
			if err := sse.SendComment("heartbeat"); err != nil {
				return
			}
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Added == nil {
				if err := sse.SendJSON("reset", u.Events); err != nil {
					return
				}
				continue
			}
			for _, ev := range u.Added {
				if err := sse.SendJSON("alert", ev); err != nil {
					return
				}
			}
		}
	}
}

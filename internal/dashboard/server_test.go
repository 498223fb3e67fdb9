package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

func newTestServer(t *testing.T, log *memLog, cfg Config) (*Server, *Watcher) {
	t.Helper()
	w := newMemWatcher(log)
	w.Reload(context.Background())
	return NewServer(cfg, w, nil), w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAlertsEndpoints(t *testing.T) {
	log := &memLog{events: []models.AlertEvent{event(1), event(2)}}
	s, _ := newTestServer(t, log, Config{})
	h := s.Handler()

	rec := get(t, h, "/api/v1/alerts")
	if rec.Code != http.StatusOK {
		t.Fatalf("alerts status = %d", rec.Code)
	}
	var list struct {
		Data []models.AlertEvent `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Data) != 2 {
		t.Errorf("len(alerts) = %d, want 2", len(list.Data))
	}

	rec = get(t, h, "/api/v1/alerts/latest")
	var latest struct {
		Data models.AlertEvent `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&latest)
	if latest.Data.Time != "10:00:02" {
		t.Errorf("latest = %+v", latest.Data)
	}

	rec = get(t, h, "/api/v1/status")
	var status struct {
		Data Status `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&status)
	if status.Data != (Status{Count: 2, State: StateConnected, LatestTime: "10:00:02"}) {
		t.Errorf("status = %+v", status.Data)
	}
}

func TestEmptyLog(t *testing.T) {
	s, _ := newTestServer(t, &memLog{}, Config{})
	h := s.Handler()

	if rec := get(t, h, "/api/v1/alerts/latest"); rec.Code != http.StatusNotFound {
		t.Errorf("latest on empty log = %d, want 404", rec.Code)
	}

	rec := get(t, h, "/api/v1/alerts")
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("empty alerts body = %s", rec.Body.String())
	}

	rec = get(t, h, "/api/v1/status")
	if !strings.Contains(rec.Body.String(), `"state":"waiting"`) {
		t.Errorf("status body = %s", rec.Body.String())
	}
}

func TestGeoJSON(t *testing.T) {
	s, _ := newTestServer(t, &memLog{events: []models.AlertEvent{event(1)}}, Config{})

	rec := get(t, s.Handler(), "/api/v1/alerts/geojson")
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var fc FeatureCollection
	if err := json.NewDecoder(rec.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("collection = %+v", fc)
	}
	if got := fc.Features[0].Geometry.Coordinates; got != [2]float64{43.5186, 26.1306} {
		t.Errorf("coordinates = %v, want [lon, lat]", got)
	}
}

func TestHealthAndNotFound(t *testing.T) {
	s, _ := newTestServer(t, &memLog{}, Config{})
	h := s.Handler()

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := get(t, h, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d", rec.Code)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	s, _ := newTestServer(t, &memLog{}, Config{RateLimit: 0.001, Burst: 2})
	h := s.Handler()

	for i := 0; i < 2; i++ {
		if rec := get(t, h, "/api/v1/status"); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i+1, rec.Code)
		}
	}
	if rec := get(t, h, "/api/v1/status"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", rec.Code)
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client = %d, want 200", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:80", "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStream(t *testing.T) {
	log := &memLog{events: []models.AlertEvent{event(1)}}
	s, w := newTestServer(t, log, Config{Heartbeat: time.Hour})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/alerts/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}

	if name, data := readEvent(); name != "status" || !strings.Contains(data, `"count":1`) {
		t.Fatalf("first event = %s %s", name, data)
	}

	log.append(event(2))
	w.Reload(context.Background())

	name, data := readEvent()
	if name != "alert" {
		t.Fatalf("event = %q, want alert", name)
	}
	var got models.AlertEvent
	if err := json.Unmarshal([]byte(data), &got); err != nil {
		t.Fatalf("alert payload: %v", err)
	}
	if got != event(2) {
		t.Errorf("alert = %+v, want %+v", got, event(2))
	}
}

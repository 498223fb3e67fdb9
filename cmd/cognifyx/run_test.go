package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/models"
	"github.com/good-yellow-bee/cognifyx/internal/sensor"
	"github.com/good-yellow-bee/cognifyx/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFrames(t *testing.T, dir string, frames ...string) string {
	t.Helper()
	path := filepath.Join(dir, "frames.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(frames, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write frames: %v", err)
	}
	return path
}

func testConfig(t *testing.T, mode string) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "alerts.json")
	cfg.Sensor.Seed = 7
	cfg.Sensor.Interval = 10 * time.Millisecond
	cfg.Vision.Interval = 10 * time.Millisecond
	cfg.Vision.Replay = writeFrames(t, dir,
		`[{"label":"knife","box":[0,0,10,10]}]`,
		`[]`,
		`[{"label":"bottle","box":[5,5,20,40]}]`,
	)
	cfg.Pipeline.Mode = mode
	return cfg
}

func TestDeviceRun(t *testing.T) {
	for _, mode := range []string{PipelineSequential, PipelineStaged} {
		t.Run(mode, func(t *testing.T) {
			cfg := testConfig(t, mode)

			d, err := newDevice(cfg, discardLogger())
			if err != nil {
				t.Fatalf("newDevice: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := d.Run(ctx); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if ctx.Err() != nil {
				t.Fatal("Run should end when the replay is exhausted")
			}
			d.logStats()
			d.Close()

			events, err := storage.LoadFile(cfg.Storage.Path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if len(events) == 0 {
				t.Fatal("expected at least one alert for a frame with a knife")
			}
			first := events[0]
			if first.Location != cfg.Location() {
				t.Errorf("Location = %+v, want %+v", first.Location, cfg.Location())
			}
			if first.Trigger == "" || first.Trigger == "SECURE" {
				t.Errorf("Trigger = %q", first.Trigger)
			}
		})
	}
}

func TestDeviceSQLite(t *testing.T) {
	cfg := testConfig(t, PipelineSequential)
	cfg.Storage.Driver = storage.DriverSQLite
	cfg.Storage.Path = filepath.Join(t.TempDir(), "alerts.db")

	d, err := newDevice(cfg, discardLogger())
	if err != nil {
		t.Fatalf("newDevice: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	d.Close()

	store, err := storage.Open(storage.Config{Driver: storage.DriverSQLite, Path: cfg.Storage.Path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	events, err := store.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) == 0 {
		t.Error("expected alerts in sqlite store")
	}
}

func TestDeviceMissingReplay(t *testing.T) {
	cfg := testConfig(t, PipelineStaged)
	cfg.Vision.Replay = filepath.Join(t.TempDir(), "missing.jsonl")

	if _, err := newDevice(cfg, discardLogger()); err == nil {
		t.Error("newDevice should fail for a missing replay file")
	}
}

func TestDeviceIdleVision(t *testing.T) {
	cfg := testConfig(t, PipelineStaged)
	cfg.Vision.Replay = ""

	d, err := newDevice(cfg, discardLogger())
	if err != nil {
		t.Fatalf("newDevice: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.pipeline.Stats().Cycles == 0 {
		t.Error("idle vision should still drive fusion cycles")
	}
}

func TestNewSensorADC(t *testing.T) {
	dir := t.TempDir()
	for ch, raw := range map[int]string{0: "64655\n", 1: "0\n"} {
		name := filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", ch))
		if err := os.WriteFile(name, []byte(raw), 0644); err != nil {
			t.Fatalf("write channel: %v", err)
		}
	}

	cfg := DefaultConfig()
	cfg.Sensor.Mode = SensorADC
	cfg.Sensor.ADC.Dir = dir
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	gas, _ := cfg.Calibration.Gas.Table()
	sec, _ := cfg.Calibration.Secondary.Table()
	src, err := newSensor(cfg, gas, sec)
	if err != nil {
		t.Fatalf("newSensor: %v", err)
	}
	if _, ok := src.(*sensor.ADC); !ok {
		t.Fatalf("newSensor returned %T, want *sensor.ADC", src)
	}

	r, err := src.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.GasLevel != 100 {
		t.Errorf("GasLevel = %d, want 100", r.GasLevel)
	}
	if r.SpectralMatch != models.NoMatch {
		t.Errorf("SpectralMatch = %q, want %q", r.SpectralMatch, models.NoMatch)
	}
}

func TestNewMirrorsDisabled(t *testing.T) {
	m, err := newMirrors(DefaultConfig(), discardLogger())
	if err != nil {
		t.Fatalf("newMirrors: %v", err)
	}
	if m != nil {
		t.Error("no mirror should be built when none is enabled")
	}
}

func TestLevelChangeLogger(t *testing.T) {
	var buf bytes.Buffer
	onVerdict := levelChangeLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	secure := models.ThreatVerdict{Level: models.LevelSecure, Message: "SECURE"}
	chem := models.ThreatVerdict{Level: models.LevelChemAlert, Message: "CHEM ALERT: High Volatile Compound", AlertPending: true}
	r := models.SensorReading{GasLevel: 90, SpectralMatch: models.NoMatch}

	for _, v := range []models.ThreatVerdict{secure, secure, chem, chem, secure} {
		onVerdict(v, r)
	}

	if got := strings.Count(buf.String(), "threat level changed"); got != 3 {
		t.Errorf("logged %d level changes, want 3:\n%s", got, buf.String())
	}
}

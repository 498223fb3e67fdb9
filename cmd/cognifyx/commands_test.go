package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/good-yellow-bee/cognifyx/internal/calibrate"
	"github.com/good-yellow-bee/cognifyx/internal/models"
)

func TestPrintCalibration(t *testing.T) {
	table := calibrate.MustNew(1000, 2000, 4)

	var buf bytes.Buffer
	v := 1600
	if err := printCalibration(&buf, "gas", table, &v, false); err != nil {
		t.Fatalf("printCalibration: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"range: [1000, 2000]", "1250", "1500", "1750", "2000", "[##--]", "level 2/4 (60%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintCalibrationJSON(t *testing.T) {
	table := calibrate.MustNew(1000, 2000, 4)

	var buf bytes.Buffer
	if err := printCalibration(&buf, "secondary", table, nil, true); err != nil {
		t.Fatalf("printCalibration: %v", err)
	}

	var rep calibrationReport
	if err := json.Unmarshal(buf.Bytes(), &rep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rep.Channel != "secondary" || len(rep.Cuts) != 4 || rep.Cuts[3] != 2000 {
		t.Errorf("report = %+v", rep)
	}
	if rep.Value != nil || rep.Bar != "" {
		t.Errorf("report without value should omit classification: %+v", rep)
	}
}

func TestPrintAlerts(t *testing.T) {
	events := []models.AlertEvent{
		{
			Time:       "14:30:05",
			Location:   models.Location{Latitude: 26.1306, Longitude: 43.5186},
			Trigger:    "CRITICAL: COCAINE_TRACE DETECTED",
			SensorData: models.SensorData{GasPPM: 91, SpectralMatch: "COCAINE_TRACE"},
		},
	}

	var buf bytes.Buffer
	if err := printAlerts(&buf, events, false); err != nil {
		t.Fatalf("printAlerts: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"TIME", "14:30:05", "CRITICAL: COCAINE_TRACE DETECTED", "91", "26.1306,43.5186"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printAlerts(&buf, nil, false); err != nil {
		t.Fatalf("printAlerts: %v", err)
	}
	if !strings.Contains(buf.String(), "No alerts recorded.") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	if err := printAlerts(&buf, events, true); err != nil {
		t.Fatalf("printAlerts json: %v", err)
	}
	if !strings.Contains(buf.String(), `"Sensor_Data"`) {
		t.Errorf("json output should keep the log field names:\n%s", buf.String())
	}
}

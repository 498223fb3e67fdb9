package models

import (
	"encoding/json"
	"time"
)

// TimeLayout is the wall-clock format of AlertEvent.Time.
const TimeLayout = "15:04:05"

// Location is a device position in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SensorData is the raw sensor snapshot attached to an alert.
type SensorData struct {
	GasPPM        int    `json:"Gas_PPM"`
	SpectralMatch string `json:"Spectral_Match"`
}

// AlertEvent is one record of the alert log. Field names are fixed for the
// dashboard and must not change.
type AlertEvent struct {
	Time       string     `json:"Time"`
	Location   Location   `json:"Location"`
	Trigger    string     `json:"Trigger"`
	SensorData SensorData `json:"Sensor_Data"`
}

// NewAlertEvent builds an event from a verdict and the cycle's reading.
func NewAlertEvent(v ThreatVerdict, r SensorReading, loc Location, now time.Time) *AlertEvent {
	return &AlertEvent{
		Time:     now.Format(TimeLayout),
		Location: loc,
		Trigger:  v.Message,
		SensorData: SensorData{
			GasPPM:        r.GasLevel,
			SpectralMatch: r.SpectralMatch,
		},
	}
}

// ToJSON serializes the event to JSON.
func (e *AlertEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// AlertEventFromJSON deserializes one event.
func AlertEventFromJSON(data []byte) (*AlertEvent, error) {
	var e AlertEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

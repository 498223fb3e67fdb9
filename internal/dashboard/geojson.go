package dashboard

import "github.com/good-yellow-bee/cognifyx/internal/models"

// FeatureCollection is a GeoJSON feature collection (RFC 7946).
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON point feature for one alert.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Point          `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Point is a GeoJSON point. Coordinates are longitude first.
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// ToGeoJSON converts events to map features, oldest first.
func ToGeoJSON(events []models.AlertEvent) FeatureCollection {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(events)),
	}
	for i, e := range events {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Point{
				Type:        "Point",
				Coordinates: [2]float64{e.Location.Longitude, e.Location.Latitude},
			},
			Properties: map[string]any{
				"seq":            i,
				"Time":           e.Time,
				"Trigger":        e.Trigger,
				"Gas_PPM":        e.SensorData.GasPPM,
				"Spectral_Match": e.SensorData.SpectralMatch,
			},
		})
	}
	return fc
}

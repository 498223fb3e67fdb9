package models

// ThreatLevel is the fusion engine's verdict classification.
type ThreatLevel string

const (
	LevelSecure        ThreatLevel = "SECURE"
	LevelVisualWarning ThreatLevel = "VISUAL_WARNING"
	LevelChemAlert     ThreatLevel = "CHEM_ALERT"
	LevelCritical      ThreatLevel = "CRITICAL"
)

// Color is a presentation hint for a verdict.
type Color string

const (
	ColorGreen  Color = "GREEN"
	ColorOrange Color = "ORANGE"
	ColorRed    Color = "RED"
)

// ThreatVerdict is the per-cycle fusion result. It is derived and never
// persisted directly.
type ThreatVerdict struct {
	// Level is the most specific cause; use it for logic.
	Level ThreatLevel `json:"level"`

	// Message describes the cause and becomes the alert trigger.
	Message string `json:"message"`

	// ColorHint is the color associated with Level.
	ColorHint Color `json:"color_hint"`

	// RenderColor is what a display shows. RED whenever AlertPending.
	RenderColor Color `json:"render_color"`

	// AlertPending is set when any rule fired during fusion.
	AlertPending bool `json:"alert_pending"`

	// Items lists the prohibited labels seen in the frame, in frame order.
	Items []string `json:"items,omitempty"`
}

// IsSecure reports whether no rule fired.
func (v ThreatVerdict) IsSecure() bool {
	return !v.AlertPending
}

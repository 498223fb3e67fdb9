package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/cognifyx/internal/alerting"
	"github.com/good-yellow-bee/cognifyx/internal/calibrate"
	"github.com/good-yellow-bee/cognifyx/internal/fusion"
	"github.com/good-yellow-bee/cognifyx/internal/models"
	"github.com/good-yellow-bee/cognifyx/internal/sensor"
	"github.com/good-yellow-bee/cognifyx/internal/storage"
)

// Config represents the device configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Fusion      FusionConfig      `yaml:"fusion"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Storage     StorageConfig     `yaml:"storage"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Vision      VisionConfig      `yaml:"vision"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Mirror      MirrorConfig      `yaml:"mirror"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// DeviceConfig identifies the device and its fixed position.
type DeviceConfig struct {
	ID        string   `yaml:"id"`   // optional, auto-generated if empty
	Name      string   `yaml:"name"` // default: hostname
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
}

// FusionConfig contains verdict rule settings.
type FusionConfig struct {
	ProhibitedItems []string `yaml:"prohibited_items"`
	GasThreshold    int      `yaml:"gas_threshold"` // default: 85
}

// DispatchConfig contains alert dispatch settings.
type DispatchConfig struct {
	Cooldown time.Duration `yaml:"cooldown"` // default: 1s
}

// StorageConfig selects the alert log backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // file or sqlite (default: file)
	Path   string `yaml:"path"`   // default: alerts.json
}

// CalibrationConfig holds the raw ranges of both sensor channels.
type CalibrationConfig struct {
	Gas       RangeConfig `yaml:"gas"`
	Secondary RangeConfig `yaml:"secondary"`
}

// RangeConfig is one channel's raw range and band count.
type RangeConfig struct {
	RawMin int `yaml:"raw_min"`
	RawMax int `yaml:"raw_max"`
	Bands  int `yaml:"bands"`
}

// Table builds the calibration table for the range.
func (r RangeConfig) Table() (*calibrate.Table, error) {
	return calibrate.New(r.RawMin, r.RawMax, r.Bands)
}

// SensorConfig selects and configures the chemical sensor source.
type SensorConfig struct {
	Mode      string        `yaml:"mode"`     // simulated or adc (default: simulated)
	Interval  time.Duration `yaml:"interval"` // default: 1s
	Seed      int64         `yaml:"seed"`
	Substance string        `yaml:"substance"` // default: COCAINE_TRACE
	ADC       ADCConfig     `yaml:"adc"`
}

// ADCConfig configures the IIO-backed ADC source.
type ADCConfig struct {
	Dir              string `yaml:"dir"`
	Bits             int    `yaml:"bits"` // default: 16
	GasChannel       int    `yaml:"gas_channel"`
	SecondaryChannel int    `yaml:"secondary_channel"` // default: 1
	TraceBand        int    `yaml:"trace_band"`
}

// VisionConfig configures the detection source.
type VisionConfig struct {
	Replay   string        `yaml:"replay"` // JSON-lines frames; empty runs without objects
	Loop     bool          `yaml:"loop"`
	Interval time.Duration `yaml:"interval"` // default: 100ms
	Retry    RetryConfig   `yaml:"retry"`
}

// RetryConfig configures frame read retries.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // default: 5
	Initial     time.Duration `yaml:"initial"`      // default: 100ms
	Max         time.Duration `yaml:"max"`          // default: 5s
}

// PipelineConfig selects the cycle implementation.
type PipelineConfig struct {
	Mode           string `yaml:"mode"`             // staged or sequential (default: staged)
	FrameQueueSize int    `yaml:"frame_queue_size"` // default: 4
}

// MirrorConfig configures optional alert mirrors.
type MirrorConfig struct {
	NATS      NATSMirrorConfig `yaml:"nats"`
	MQTT      MQTTMirrorConfig `yaml:"mqtt"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
}

// NATSMirrorConfig configures the NATS mirror.
type NATSMirrorConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"` // default: cognifyx.alerts
}

// MQTTMirrorConfig configures the MQTT mirror.
type MQTTMirrorConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"` // default: cognifyx/alerts
	QoS         byte   `yaml:"qos"`
}

// RateLimitConfig bounds mirrored events per window.
type RateLimitConfig struct {
	MaxPerWindow int           `yaml:"max_per_window"` // default: 30
	Window       time.Duration `yaml:"window"`         // default: 1m
}

// DashboardConfig configures the dashboard server.
type DashboardConfig struct {
	Address      string        `yaml:"address"`       // default: :8080
	PollInterval time.Duration `yaml:"poll_interval"` // default: 1s
	RateLimit    float64       `yaml:"rate_limit"`    // requests per second per IP (default: 10)
	Burst        int           `yaml:"burst"`         // default: 20
	Heartbeat    time.Duration `yaml:"heartbeat"`     // default: 15s
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // default: :9090
}

// Sensor and pipeline modes.
const (
	SensorSimulated = "simulated"
	SensorADC       = "adc"

	PipelineStaged     = "staged"
	PipelineSequential = "sequential"
)

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// loadConfigOrDefault loads path. When the path was not given explicitly a
// missing file yields the default configuration.
func loadConfigOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Device.ID == "" {
		c.Device.ID = uuid.New().String()
	}
	if c.Device.Name == "" {
		hostname, _ := os.Hostname()
		c.Device.Name = hostname
	}
	if c.Device.Latitude == nil {
		lat := alerting.DefaultLocation.Latitude
		c.Device.Latitude = &lat
	}
	if c.Device.Longitude == nil {
		lon := alerting.DefaultLocation.Longitude
		c.Device.Longitude = &lon
	}

	if c.Fusion.ProhibitedItems == nil {
		c.Fusion.ProhibitedItems = fusion.DefaultOptions().ProhibitedItems
	}
	if c.Fusion.GasThreshold <= 0 {
		c.Fusion.GasThreshold = fusion.DefaultGasHighThreshold
	}

	if c.Dispatch.Cooldown <= 0 {
		c.Dispatch.Cooldown = alerting.DefaultCooldown
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = storage.DriverFile
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "alerts.json"
	}

	c.Calibration.Gas.setDefaults()
	c.Calibration.Secondary.setDefaults()

	if c.Sensor.Mode == "" {
		c.Sensor.Mode = SensorSimulated
	}
	if c.Sensor.Interval <= 0 {
		c.Sensor.Interval = time.Second
	}
	if c.Sensor.Substance == "" {
		c.Sensor.Substance = sensor.DefaultSubstance
	}
	if c.Sensor.ADC.Bits <= 0 {
		c.Sensor.ADC.Bits = 16
	}
	if c.Sensor.ADC.GasChannel == 0 && c.Sensor.ADC.SecondaryChannel == 0 {
		c.Sensor.ADC.SecondaryChannel = 1
	}

	if c.Vision.Interval <= 0 {
		c.Vision.Interval = 100 * time.Millisecond
	}
	if c.Vision.Retry.MaxAttempts <= 0 {
		c.Vision.Retry.MaxAttempts = 5
	}
	if c.Vision.Retry.Initial <= 0 {
		c.Vision.Retry.Initial = 100 * time.Millisecond
	}
	if c.Vision.Retry.Max <= 0 {
		c.Vision.Retry.Max = 5 * time.Second
	}

	if c.Pipeline.Mode == "" {
		c.Pipeline.Mode = PipelineStaged
	}
	if c.Pipeline.FrameQueueSize <= 0 {
		c.Pipeline.FrameQueueSize = 4
	}

	if c.Mirror.NATS.Subject == "" {
		c.Mirror.NATS.Subject = "cognifyx.alerts"
	}
	if c.Mirror.MQTT.TopicPrefix == "" {
		c.Mirror.MQTT.TopicPrefix = "cognifyx/alerts"
	}
	if c.Mirror.MQTT.ClientID == "" {
		c.Mirror.MQTT.ClientID = "cognifyx-" + c.Device.ID
	}
	if c.Mirror.RateLimit.MaxPerWindow <= 0 {
		c.Mirror.RateLimit.MaxPerWindow = 30
	}
	if c.Mirror.RateLimit.Window <= 0 {
		c.Mirror.RateLimit.Window = time.Minute
	}

	if c.Dashboard.Address == "" {
		c.Dashboard.Address = ":8080"
	}
	if c.Dashboard.PollInterval <= 0 {
		c.Dashboard.PollInterval = time.Second
	}
	if c.Dashboard.RateLimit <= 0 {
		c.Dashboard.RateLimit = 10
	}
	if c.Dashboard.Burst <= 0 {
		c.Dashboard.Burst = 20
	}
	if c.Dashboard.Heartbeat <= 0 {
		c.Dashboard.Heartbeat = 15 * time.Second
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
}

func (r *RangeConfig) setDefaults() {
	if r.RawMin == 0 && r.RawMax == 0 {
		r.RawMin = calibrate.DefaultRawMin
		r.RawMax = calibrate.DefaultRawMax
	}
	if r.Bands == 0 {
		r.Bands = calibrate.DefaultBands
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if lat := *c.Device.Latitude; lat < -90 || lat > 90 {
		return fmt.Errorf("device.latitude %v out of range [-90, 90]", lat)
	}
	if lon := *c.Device.Longitude; lon < -180 || lon > 180 {
		return fmt.Errorf("device.longitude %v out of range [-180, 180]", lon)
	}
	if c.Fusion.GasThreshold > 100 {
		return fmt.Errorf("fusion.gas_threshold %d out of range [1, 100]", c.Fusion.GasThreshold)
	}

	switch c.Storage.Driver {
	case storage.DriverFile, storage.DriverSQLite:
	default:
		return fmt.Errorf("storage.driver %q must be %s or %s", c.Storage.Driver, storage.DriverFile, storage.DriverSQLite)
	}

	if _, err := c.Calibration.Gas.Table(); err != nil {
		return fmt.Errorf("calibration.gas: %w", err)
	}
	if _, err := c.Calibration.Secondary.Table(); err != nil {
		return fmt.Errorf("calibration.secondary: %w", err)
	}

	switch c.Sensor.Mode {
	case SensorSimulated:
	case SensorADC:
		if c.Sensor.ADC.Dir == "" {
			return fmt.Errorf("sensor.adc.dir is required in adc mode")
		}
		if c.Sensor.ADC.GasChannel == c.Sensor.ADC.SecondaryChannel {
			return fmt.Errorf("sensor.adc channels must differ")
		}
		if tb := c.Sensor.ADC.TraceBand; tb < 0 || tb > c.Calibration.Secondary.Bands {
			return fmt.Errorf("sensor.adc.trace_band %d out of range [1, %d]", tb, c.Calibration.Secondary.Bands)
		}
	default:
		return fmt.Errorf("sensor.mode %q must be %s or %s", c.Sensor.Mode, SensorSimulated, SensorADC)
	}

	switch c.Pipeline.Mode {
	case PipelineStaged, PipelineSequential:
	default:
		return fmt.Errorf("pipeline.mode %q must be %s or %s", c.Pipeline.Mode, PipelineStaged, PipelineSequential)
	}

	if c.Mirror.MQTT.Enabled && c.Mirror.MQTT.Broker == "" {
		return fmt.Errorf("mirror.mqtt.broker is required when mqtt is enabled")
	}
	if c.Mirror.MQTT.QoS > 2 {
		return fmt.Errorf("mirror.mqtt.qos %d must be 0, 1 or 2", c.Mirror.MQTT.QoS)
	}

	return nil
}

// Location returns the configured device position.
func (c *Config) Location() models.Location {
	return models.Location{Latitude: *c.Device.Latitude, Longitude: *c.Device.Longitude}
}

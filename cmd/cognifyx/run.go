package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/cognifyx/internal/alerting"
	"github.com/good-yellow-bee/cognifyx/internal/calibrate"
	"github.com/good-yellow-bee/cognifyx/internal/fusion"
	"github.com/good-yellow-bee/cognifyx/internal/indicator"
	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/internal/models"
	"github.com/good-yellow-bee/cognifyx/internal/notifier"
	"github.com/good-yellow-bee/cognifyx/internal/pipeline"
	"github.com/good-yellow-bee/cognifyx/internal/sensor"
	"github.com/good-yellow-bee/cognifyx/internal/storage"
	"github.com/good-yellow-bee/cognifyx/internal/vision"
	"github.com/good-yellow-bee/cognifyx/pkg/config"
)

var (
	runReplay   string
	runSeed     int64
	runMode     string
	runCooldown time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the detection loop",
	Long: `Run the detection loop: sample the chemical sensors, pair readings with
object detections, compute a verdict per frame and append alert events to
the alert log.

Without a config file the simulated sensor and an empty camera feed are
used and alerts are written to alerts.json.`,
	RunE: runDevice,
}

func init() {
	runCmd.Flags().StringVar(&runReplay, "replay", "", "JSON-lines detection file (overrides config)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "simulator seed (overrides config)")
	runCmd.Flags().StringVar(&runMode, "mode", "", "pipeline mode: staged or sequential (overrides config)")
	runCmd.Flags().DurationVar(&runCooldown, "cooldown", 0, "alert cooldown (overrides config)")

	rootCmd.AddCommand(runCmd)
}

func runDevice(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runReplay != "" {
		cfg.Vision.Replay = runReplay
	}
	if runSeed != 0 {
		cfg.Sensor.Seed = runSeed
	}
	if runMode != "" {
		cfg.Pipeline.Mode = runMode
	}
	if runCooldown > 0 {
		cfg.Dispatch.Cooldown = runCooldown
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := newLogger(os.Stderr)

	d, err := newDevice(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Address, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("device started",
		"version", config.Version,
		"device_id", cfg.Device.ID,
		"name", cfg.Device.Name,
		"sensor", cfg.Sensor.Mode,
		"pipeline", cfg.Pipeline.Mode,
		"storage", cfg.Storage.Driver,
		"path", cfg.Storage.Path)

	runErr := d.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	d.logStats()
	return runErr
}

// device is the assembled detection loop with the resources it owns.
type device struct {
	store      storage.AlertStore
	mirrors    *notifier.Dispatcher
	engine     *fusion.Engine
	dispatcher *alerting.Dispatcher
	closers    []func()
	logger     *slog.Logger

	cycle    *pipeline.Cycle
	pipeline *pipeline.Pipeline
}

func newDevice(cfg *Config, logger *slog.Logger) (*device, error) {
	gasTable, err := cfg.Calibration.Gas.Table()
	if err != nil {
		return nil, fmt.Errorf("calibration.gas: %w", err)
	}
	secTable, err := cfg.Calibration.Secondary.Table()
	if err != nil {
		return nil, fmt.Errorf("calibration.secondary: %w", err)
	}

	d := &device{logger: logger}

	store, err := storage.Open(storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path})
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}
	if fs, ok := store.(*storage.FileStore); ok {
		fs.SetLogger(logger)
	}
	d.store = store

	mirrors, err := newMirrors(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	if mirrors != nil {
		d.mirrors = mirrors
		d.store = storage.NewMirrored(store, mirrors, logger)
	}

	src, err := newSensor(cfg, gasTable, secTable)
	if err != nil {
		d.Close()
		return nil, err
	}

	frames, err := d.newVision(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.engine = fusion.NewEngine(&fusion.Options{
		ProhibitedItems:  cfg.Fusion.ProhibitedItems,
		GasHighThreshold: cfg.Fusion.GasThreshold,
	})
	d.dispatcher = alerting.NewDispatcher(d.store, &alerting.Options{
		Cooldown: cfg.Dispatch.Cooldown,
		Location: cfg.Location(),
		DeviceID: cfg.Device.ID,
	}, logger)

	bars := indicator.NewBars(gasTable, secTable,
		&indicator.LogPanel{Name: "gas", Logger: logger},
		&indicator.LogPanel{Name: "secondary", Logger: logger})

	c := pipeline.Components{
		Sensor:     src,
		Vision:     frames,
		Engine:     d.engine,
		Dispatcher: d.dispatcher,
		Bars:       bars,
		OnVerdict:  levelChangeLogger(logger),
		Logger:     logger,
	}

	switch cfg.Pipeline.Mode {
	case PipelineSequential:
		d.cycle, err = pipeline.NewCycle(c)
	default:
		d.pipeline, err = pipeline.New(c, &pipeline.Options{
			SensorInterval: cfg.Sensor.Interval,
			FrameQueueSize: cfg.Pipeline.FrameQueueSize,
		})
	}
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return d, nil
}

func newSensor(cfg *Config, gasTable, secTable *calibrate.Table) (sensor.Source, error) {
	switch cfg.Sensor.Mode {
	case SensorADC:
		adc, err := sensor.NewADC(&sensor.IIOReader{Dir: cfg.Sensor.ADC.Dir, Bits: cfg.Sensor.ADC.Bits}, sensor.ADCOptions{
			GasChannel:       cfg.Sensor.ADC.GasChannel,
			SecondaryChannel: cfg.Sensor.ADC.SecondaryChannel,
			Gas:              gasTable,
			Secondary:        secTable,
			TraceBand:        cfg.Sensor.ADC.TraceBand,
			Substance:        cfg.Sensor.Substance,
		})
		if err != nil {
			return nil, fmt.Errorf("adc sensor: %w", err)
		}
		return adc, nil
	default:
		opts := sensor.DefaultSimulatorOptions()
		opts.Seed = cfg.Sensor.Seed
		opts.Substance = cfg.Sensor.Substance
		opts.Gas = gasTable
		opts.Secondary = secTable
		return sensor.NewSimulator(opts), nil
	}
}

func (d *device) newVision(cfg *Config) (vision.Source, error) {
	var src vision.Source
	if cfg.Vision.Replay == "" {
		idle := vision.NewIdle(cfg.Vision.Interval)
		d.closers = append(d.closers, idle.Close)
		src = idle
	} else {
		replay, err := vision.OpenReplay(cfg.Vision.Replay, vision.ReplayOptions{
			Loop:     cfg.Vision.Loop,
			Interval: cfg.Vision.Interval,
		})
		if err != nil {
			return nil, err
		}
		d.logger.Info("replaying detections", "path", cfg.Vision.Replay, "frames", replay.Len(), "loop", cfg.Vision.Loop)
		src = replay
	}

	// The sequential cycle treats a failed frame as fatal.
	if cfg.Pipeline.Mode == PipelineSequential {
		return src, nil
	}
	return vision.NewRetrying(src, vision.RetryOptions{
		MaxAttempts: cfg.Vision.Retry.MaxAttempts,
		Initial:     cfg.Vision.Retry.Initial,
		Max:         cfg.Vision.Retry.Max,
	}, d.logger), nil
}

// newMirrors connects the enabled mirrors. It returns nil when none is
// enabled.
func newMirrors(cfg *Config, logger *slog.Logger) (*notifier.Dispatcher, error) {
	if !cfg.Mirror.NATS.Enabled && !cfg.Mirror.MQTT.Enabled {
		return nil, nil
	}

	mirrors := notifier.NewDispatcherWithRateLimit(notifier.RateLimitConfig{
		MaxPerWindow: cfg.Mirror.RateLimit.MaxPerWindow,
		Window:       cfg.Mirror.RateLimit.Window,
		Enabled:      true,
	})

	if cfg.Mirror.NATS.Enabled {
		n, err := notifier.DialNATS(notifier.NATSConfig{
			URL:     cfg.Mirror.NATS.URL,
			Subject: cfg.Mirror.NATS.Subject,
		}, logger.With("mirror", "nats"))
		if err != nil {
			mirrors.Close()
			return nil, fmt.Errorf("nats mirror: %w", err)
		}
		mirrors.Register(n)
	}

	if cfg.Mirror.MQTT.Enabled {
		m, err := notifier.DialMQTT(notifier.MQTTConfig{
			Broker:      cfg.Mirror.MQTT.Broker,
			ClientID:    cfg.Mirror.MQTT.ClientID,
			DeviceID:    cfg.Device.ID,
			TopicPrefix: cfg.Mirror.MQTT.TopicPrefix,
			QoS:         cfg.Mirror.MQTT.QoS,
		}, logger.With("mirror", "mqtt"))
		if err != nil {
			mirrors.Close()
			return nil, fmt.Errorf("mqtt mirror: %w", err)
		}
		mirrors.Register(m)
	}

	return mirrors, nil
}

// levelChangeLogger logs each change of threat level at info.
func levelChangeLogger(logger *slog.Logger) func(models.ThreatVerdict, models.SensorReading) {
	var last models.ThreatLevel
	return func(v models.ThreatVerdict, r models.SensorReading) {
		if v.Level == last {
			return
		}
		last = v.Level
		logger.Info("threat level changed", "level", v.Level, "status", v.Message, "reading", r.String())
	}
}

// Run runs the loop until ctx is canceled or the vision source ends.
func (d *device) Run(ctx context.Context) error {
	var err error
	if d.cycle != nil {
		err = d.cycle.Run(ctx)
	} else {
		err = d.pipeline.Run(ctx)
	}
	if errors.Is(err, vision.ErrSourceOffline) {
		return fmt.Errorf("camera unavailable: %w", err)
	}
	return err
}

func (d *device) logStats() {
	ds := d.dispatcher.Stats()
	es := d.engine.Stats()
	args := []any{
		"cycles", es.Cycles,
		"alerts", ds.Dispatched,
		"suppressed", ds.Suppressed,
		"dispatch_errors", ds.Errors,
	}
	if d.pipeline != nil {
		ps := d.pipeline.Stats()
		args = append(args, "frames", ps.Frames, "frames_dropped", ps.FramesDropped, "sensor_errors", ps.SensorErrors)
	}
	if d.mirrors != nil {
		rs := d.mirrors.RateLimitStats()
		args = append(args, "mirror_rate_limited", rs.Dropped)
	}
	d.logger.Info("device stopped", args...)
}

// Close releases the store, mirrors and sources.
func (d *device) Close() {
	for _, c := range d.closers {
		c()
	}
	if d.mirrors != nil {
		if err := d.mirrors.Close(); err != nil {
			d.logger.Warn("close mirrors", "error", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("close alert store", "error", err)
		}
	}
}

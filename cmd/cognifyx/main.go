// Package main provides the CognifyX device CLI.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/pkg/config"
)

var (
	configFile string
	verbose    bool
	logFormat  string
	output     string
)

var rootCmd = &cobra.Command{
	Use:   "cognifyx",
	Short: "CognifyX - multimodal threat detection",
	Long: `CognifyX fuses object detections from a camera with readings from
chemical trace sensors into a threat verdict, records alerts to a durable
log, and serves the log to a live dashboard.

Examples:
  # Run the detection loop with the simulated sensor
  cognifyx run

  # Replay recorded detections and write alerts to SQLite
  cognifyx run -c device.yaml

  # Serve the dashboard for the alert log
  cognifyx dashboard

  # Show calibration cut points and the bar for a raw value
  cognifyx calibrate --value 40000`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if output == "json" {
			data, _ := json.MarshalIndent(config.GetBuildInfo(), "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.VersionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "cognifyx.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config. A missing default file
// is not an error.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	cfg, err := loadConfigOrDefault(configFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the global flags.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if logFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	info := config.GetBuildInfo()
	metrics.SetBuildInfo(info.Version, info.Commit, info.BuildTime)
	return logger
}

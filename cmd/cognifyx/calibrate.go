package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/cognifyx/internal/calibrate"
)

var (
	calibrateChannel string
	calibrateValue   int
	calibrateRawMin  int
	calibrateRawMax  int
	calibrateBands   int
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Show calibration cut points",
	Long: `Show the cut points of a channel's calibration table and, with --value,
the indicator bar and level for a raw reading.

Examples:
  # Cut points of the gas channel
  cognifyx calibrate

  # Bar for a raw secondary-channel reading
  cognifyx calibrate --channel secondary --value 52000

  # Try a different range without editing the config
  cognifyx calibrate --raw-min 1000 --raw-max 2000 --bands 4`,
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVar(&calibrateChannel, "channel", "gas", "channel to show (gas, secondary)")
	calibrateCmd.Flags().IntVar(&calibrateValue, "value", -1, "raw value to classify")
	calibrateCmd.Flags().IntVar(&calibrateRawMin, "raw-min", 0, "raw minimum (overrides config)")
	calibrateCmd.Flags().IntVar(&calibrateRawMax, "raw-max", 0, "raw maximum (overrides config)")
	calibrateCmd.Flags().IntVar(&calibrateBands, "bands", 0, "band count (overrides config)")

	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var rng RangeConfig
	switch calibrateChannel {
	case "gas":
		rng = cfg.Calibration.Gas
	case "secondary":
		rng = cfg.Calibration.Secondary
	default:
		return fmt.Errorf("unknown channel %q", calibrateChannel)
	}
	if cmd.Flags().Changed("raw-min") {
		rng.RawMin = calibrateRawMin
	}
	if cmd.Flags().Changed("raw-max") {
		rng.RawMax = calibrateRawMax
	}
	if cmd.Flags().Changed("bands") {
		rng.Bands = calibrateBands
	}

	table, err := rng.Table()
	if err != nil {
		return fmt.Errorf("calibration %s: %w", calibrateChannel, err)
	}

	var value *int
	if cmd.Flags().Changed("value") {
		value = &calibrateValue
	}
	return printCalibration(cmd.OutOrStdout(), calibrateChannel, table, value, output == "json")
}

// calibrationReport is the JSON form of the calibrate output.
type calibrationReport struct {
	Channel string `json:"channel"`
	RawMin  int    `json:"raw_min"`
	RawMax  int    `json:"raw_max"`
	Cuts    []int  `json:"cuts"`
	Value   *int   `json:"value,omitempty"`
	Level   *int   `json:"level,omitempty"`
	Percent *int   `json:"percent,omitempty"`
	Bar     string `json:"bar,omitempty"`
}

func printCalibration(w io.Writer, channel string, t *calibrate.Table, value *int, asJSON bool) error {
	rawMin, rawMax := t.Range()
	rep := calibrationReport{
		Channel: channel,
		RawMin:  rawMin,
		RawMax:  rawMax,
		Cuts:    t.Cuts(),
	}
	if value != nil {
		level, pct := t.Level(*value), t.Percent(*value)
		rep.Value, rep.Level, rep.Percent = value, &level, &pct
		rep.Bar = calibrate.Bar(t.Activate(*value))
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintf(w, "Channel: %s  range: [%d, %d]  bands: %d\n\n", channel, rawMin, rawMax, len(rep.Cuts))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  BAND\tCUT\n")
	fmt.Fprintf(tw, "  ----\t---\n")
	for i, cut := range rep.Cuts {
		fmt.Fprintf(tw, "  %d\t%d\n", i+1, cut)
	}
	tw.Flush()

	if value != nil {
		fmt.Fprintf(w, "\nValue %d: %s  level %d/%d (%d%%)\n", *value, rep.Bar, *rep.Level, len(rep.Cuts), *rep.Percent)
	}
	return nil
}

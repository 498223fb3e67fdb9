package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/cognifyx/internal/models"
	"github.com/good-yellow-bee/cognifyx/internal/storage"
)

var (
	alertsLog   string
	alertsLimit int
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect the alert log",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded alerts, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := readAlerts(cmd)
		if err != nil {
			return err
		}
		if alertsLimit > 0 && len(events) > alertsLimit {
			events = events[len(events)-alertsLimit:]
		}
		return printAlerts(cmd.OutOrStdout(), events, output == "json")
	},
}

var alertsLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := readAlerts(cmd)
		if err != nil {
			return err
		}
		latest := storage.Latest(events)
		if latest == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No alerts recorded.")
			return nil
		}
		return printAlerts(cmd.OutOrStdout(), []models.AlertEvent{*latest}, output == "json")
	},
}

func init() {
	alertsCmd.PersistentFlags().StringVar(&alertsLog, "log", "", "alert log path (overrides config)")
	alertsListCmd.Flags().IntVarP(&alertsLimit, "limit", "n", 0, "show only the last n alerts")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsLatestCmd)
	rootCmd.AddCommand(alertsCmd)
}

// readAlerts reads the configured log with the same tolerance as the
// dashboard: a missing or malformed log is empty.
func readAlerts(cmd *cobra.Command) ([]models.AlertEvent, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if alertsLog != "" {
		cfg.Storage.Path = alertsLog
	}

	if cfg.Storage.Driver != storage.DriverSQLite {
		return storage.ReadFile(cfg.Storage.Path)
	}

	store, err := storage.Open(storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path})
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}
	defer store.Close()
	return store.ReadAll(context.Background())
}

func printAlerts(w io.Writer, events []models.AlertEvent, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Fprintln(w, "No alerts recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TIME\tTRIGGER\tGAS\tSPECTRAL\tLOCATION\n")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.4f,%.4f\n",
			ev.Time, ev.Trigger, ev.SensorData.GasPPM, ev.SensorData.SpectralMatch,
			ev.Location.Latitude, ev.Location.Longitude)
	}
	return tw.Flush()
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkurniadi/biliwatch/internal/cache"
	"github.com/mkurniadi/biliwatch/internal/output"
)

var measurementLimit int

var measurementCmd = &cobra.Command{
	Use:     "measurement",
	Aliases: []string{"m"},
	Short:   "Inspect environment measurements",
}

var measurementListCmd = &cobra.Command{
	Use:     "list <session-id>",
	Aliases: []string{"ls"},
	Short:   "List measurements recorded for a session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return measurementListRun(args[0])
	},
}

var measurementLatestCmd = &cobra.Command{
	Use:   "latest <session-id>",
	Short: "Show the most recent measurement for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return measurementLatestRun(args[0])
	},
}

var measurementStatsCmd = &cobra.Command{
	Use:   "stats <session-id>",
	Short: "Summarize measurements for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return measurementStatsRun(args[0])
	},
}

func init() {
	measurementListCmd.Flags().IntVar(&measurementLimit, "limit", 0, "Show only the last N measurements")

	measurementCmd.AddCommand(measurementListCmd)
	measurementCmd.AddCommand(measurementLatestCmd)
	measurementCmd.AddCommand(measurementStatsCmd)
	rootCmd.AddCommand(measurementCmd)
}

func measurementListRun(sessionID string) error {
	client := newAPIClient()
	ms, err := client.SessionMeasurements(context.Background(), sessionID)
	if err != nil {
		return fmt.Errorf("list measurements: %w", err)
	}

	if len(ms) == 0 {
		ui.Info("No measurements recorded for session %s.", sessionID)
		return nil
	}

	if measurementLimit > 0 && len(ms) > measurementLimit {
		ms = ms[len(ms)-measurementLimit:]
	}

	table := ui.Table([]string{"Timestamp", "Mode", "Temp (C)", "Humidity (%)", "Fan"})
	for _, m := range ms {
		fan := "off"
		if m.Fan {
			fan = "on"
		}
		table.Append([]string{
			m.Timestamp,
			string(m.Mode),
			fmt.Sprintf("%.1f", m.Temperature),
			fmt.Sprintf("%.1f", m.Humidity),
			fan,
		})
	}
	table.Render()
	return nil
}

func measurementLatestRun(sessionID string) error {
	client := newAPIClient()
	m, err := client.LatestMeasurement(context.Background(), sessionID)
	if err != nil {
		return fmt.Errorf("latest measurement: %w", err)
	}
	if m == nil {
		ui.Info("No measurements recorded for session %s.", sessionID)
		return nil
	}

	fan := "off"
	if m.Fan {
		fan = "on"
	}
	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(sessionID))
	fmt.Fprintf(ui.Out, "  Timestamp:  %s\n", m.Timestamp)
	fmt.Fprintf(ui.Out, "  Mode:       %s\n", m.Mode)
	fmt.Fprintf(ui.Out, "  Temp:       %.1f C\n", m.Temperature)
	fmt.Fprintf(ui.Out, "  Humidity:   %.1f%%\n", m.Humidity)
	fmt.Fprintf(ui.Out, "  Fan:        %s\n", fan)
	return nil
}

func measurementStatsRun(sessionID string) error {
	client := newAPIClient()
	ms, err := client.SessionMeasurements(context.Background(), sessionID)
	if err != nil {
		return fmt.Errorf("session measurements: %w", err)
	}

	log := cache.NewMeasurementLog()
	log.ReplaceSessionSeries(sessionID, ms)
	stats, ok := log.Stats(sessionID)
	if !ok {
		ui.Info("No measurements recorded for session %s.", sessionID)
		return nil
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(sessionID))
	fmt.Fprintf(ui.Out, "  Samples:       %d\n", stats.Count)
	fmt.Fprintf(ui.Out, "  Avg temp:      %.1f C\n", stats.AvgTemperature)
	fmt.Fprintf(ui.Out, "  Avg humidity:  %.1f%%\n", stats.AvgHumidity)
	fmt.Fprintf(ui.Out, "  Fan duty:      %.1f%%\n", stats.FanOnPct)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkurniadi/biliwatch/internal/api"
	"github.com/mkurniadi/biliwatch/internal/models"
	"github.com/mkurniadi/biliwatch/internal/output"
)

var (
	sessionTSB      float64
	sessionDuration int
	sessionMode     string
	sessionPatient  string
	sessionActive   bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage phototherapy sessions",
	Long:  "Start, stop, list, and inspect treatment sessions on the backend.",
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun()
	},
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <patient-id>",
	Short: "Start a session for a patient",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionStartRun(args[0])
	},
}

var sessionStopCmd = &cobra.Command{
	Use:   "stop <session-id>",
	Short: "Stop a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionStopRun(args[0])
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show detailed session information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionShowRun(args[0])
	},
}

func init() {
	sessionStartCmd.Flags().Float64Var(&sessionTSB, "tsb", 0, "Total serum bilirubin at start (mg/dL)")
	sessionStartCmd.Flags().IntVar(&sessionDuration, "duration", 60, "Planned duration in minutes")
	sessionStartCmd.Flags().StringVar(&sessionMode, "mode", string(models.LightModeBoth), "Light mode (low|high|both)")

	sessionListCmd.Flags().StringVar(&sessionPatient, "patient", "", "Filter by patient id")
	sessionListCmd.Flags().BoolVar(&sessionActive, "active", false, "Show only running sessions")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionStopCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionListRun() error {
	client := newAPIClient()
	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	now := time.Now()
	table := ui.Table([]string{"ID", "Patient", "TSB", "Mode", "Status", "Progress", "Remaining", "Started"})
	shown := 0
	for _, s := range sessions {
		if sessionPatient != "" && s.PatientID != sessionPatient {
			continue
		}
		if sessionActive && !s.Active() {
			continue
		}
		table.Append([]string{
			output.Cyan(s.ID),
			s.PatientID,
			fmt.Sprintf("%.1f", s.TSB),
			string(s.Mode),
			output.StatusColor(string(s.Status)),
			fmt.Sprintf("%.0f%%", models.Progress(s, now)),
			fmt.Sprintf("%dm", models.RemainingMinutes(s, now)),
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
		shown++
	}

	if shown == 0 {
		ui.Info("No sessions match. Use 'biliwatch session start <patient-id>' to begin one.")
		return nil
	}
	table.Render()
	return nil
}

func sessionStartRun(patientID string) error {
	if !models.ValidLightMode(sessionMode) || models.LightMode(sessionMode) == models.LightModeOff {
		return fmt.Errorf("invalid light mode %q (want low, high, or both)", sessionMode)
	}
	if sessionDuration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", sessionDuration)
	}

	if dryRun {
		ui.DryRunMsg("Would start %s session for patient %s (%d min)", sessionMode, patientID, sessionDuration)
		return nil
	}

	client := newAPIClient()
	s, err := client.CreateSession(context.Background(), api.CreateSessionRequest{
		PatientID: patientID,
		TSB:       sessionTSB,
		Duration:  sessionDuration,
		Mode:      sessionMode,
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	ui.Success("Session started: %s (%s, %d min)", output.Cyan(s.ID), s.Mode, s.Duration)
	return nil
}

func sessionStopRun(id string) error {
	if dryRun {
		ui.DryRunMsg("Would stop session: %s", id)
		return nil
	}

	client := newAPIClient()
	s, err := client.StopSession(context.Background(), id)
	if err != nil {
		return fmt.Errorf("stop session: %w", err)
	}

	ui.Success("Session stopped: %s", output.Cyan(s.ID))
	return nil
}

func sessionShowRun(id string) error {
	client := newAPIClient()
	ctx := context.Background()

	s, err := client.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("show session: %w", err)
	}

	now := time.Now()
	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(s.ID))
	fmt.Fprintf(ui.Out, "  Patient:    %s\n", s.PatientID)
	fmt.Fprintf(ui.Out, "  TSB:        %.1f mg/dL\n", s.TSB)
	fmt.Fprintf(ui.Out, "  Mode:       %s\n", s.Mode)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(s.Status)))
	fmt.Fprintf(ui.Out, "  Duration:   %d min\n", s.Duration)
	fmt.Fprintf(ui.Out, "  Progress:   %.1f%%\n", models.Progress(s, now))
	fmt.Fprintf(ui.Out, "  Remaining:  %d min\n", models.RemainingMinutes(s, now))
	fmt.Fprintf(ui.Out, "  Started:    %s\n", s.CreatedAt.Local().Format(time.RFC1123))
	if s.EndedAt != nil {
		fmt.Fprintf(ui.Out, "  Ended:      %s\n", s.EndedAt.Local().Format(time.RFC1123))
	}

	// Last measurement, if the backend has one.
	if m, err := client.LatestMeasurement(ctx, s.ID); err == nil && m != nil {
		fan := "off"
		if m.Fan {
			fan = "on"
		}
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "  Temp:       %.1f C\n", m.Temperature)
		fmt.Fprintf(ui.Out, "  Humidity:   %.1f%%\n", m.Humidity)
		fmt.Fprintf(ui.Out, "  Fan:        %s\n", fan)
	}
	return nil
}

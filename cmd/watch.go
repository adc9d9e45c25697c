package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkurniadi/biliwatch/internal/alerts"
	"github.com/mkurniadi/biliwatch/internal/cache"
	"github.com/mkurniadi/biliwatch/internal/models"
	"github.com/mkurniadi/biliwatch/internal/output"
	"github.com/mkurniadi/biliwatch/internal/realtime"
	"github.com/mkurniadi/biliwatch/internal/snapshot"
)

var watchSession string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow sessions live on a refreshing dashboard",
	Long: `Follow running sessions on a live dashboard.

The dashboard restores the last known state from the local snapshot,
loads current sessions over REST, then tracks updates over the device's
real-time channel. Connection loss triggers automatic reconnection with
exponential backoff. Ctrl-C saves a snapshot and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun()
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSession, "session", "", "Join one session's room and show its measurement history")
	watchCmd.Flags().Duration("interval", 0, "Dashboard redraw interval (default from config)")
	_ = viper.BindPFlag("watch.interval", watchCmd.Flags().Lookup("interval"))
	rootCmd.AddCommand(watchCmd)
}

func watchRun() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := getSnapshotStore()
	if err != nil {
		return err
	}

	sessions := cache.NewSessionCache()
	measurements := cache.NewMeasurementLog()

	// Last known state first, so the dashboard is never blank while
	// the backend is unreachable.
	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	sessions.ReplaceAll(snap.Sessions)
	panel := snap.Panel
	if !snap.SavedAt.IsZero() {
		ui.VerboseLog("Restored snapshot from %s", snap.SavedAt.Local().Format(time.RFC1123))
	}

	thresholds, err := alerts.LoadFile(viper.GetString("thresholds_path"))
	if err != nil {
		return err
	}

	client := newAPIClient()
	patients := snap.Patients
	refresh := func() {
		list, err := client.ListSessions(ctx)
		if err != nil {
			ui.VerboseLog("Session refresh failed: %v", err)
			return
		}
		sessions.ReplaceAll(list)
		if ps, err := client.ListPatients(ctx); err == nil {
			patients = ps
		}
	}
	refresh()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	rt := realtime.NewClient(realtime.Config{
		URL:      viper.GetString("realtime.url"),
		Notifier: ui,
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}, sessions, measurements)
	rt.Connect()
	defer rt.Disconnect()

	if watchSession != "" {
		rt.JoinSession(watchSession)
		if series, err := client.SessionMeasurements(ctx, watchSession); err == nil {
			measurements.ReplaceSessionSeries(watchSession, series)
		}
	}

	interval := viper.GetDuration("watch.interval")
	if interval <= 0 {
		interval = 5 * time.Second
	}
	refreshEvery := viper.GetDuration("watch.refresh")
	if refreshEvery <= 0 {
		refreshEvery = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lastRefresh := time.Now()
	warned := map[string]string{} // session id -> last measurement id we alerted on

	renderDashboard(rt, sessions, measurements, panel)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(ui.Out)
			return saveSnapshot(store, sessions, patients, panel)
		case <-ticker.C:
			if time.Since(lastRefresh) >= refreshEvery {
				refresh()
				lastRefresh = time.Now()
			}
			renderDashboard(rt, sessions, measurements, panel)
			raiseAlerts(thresholds, sessions, measurements, warned)
		}
	}
}

func renderDashboard(rt *realtime.Client, sessions *cache.SessionCache, measurements *cache.MeasurementLog, panel models.DevicePanel) {
	// Repaint in place.
	fmt.Fprint(ui.Out, "\033[H\033[2J")

	now := time.Now()
	fan := "off"
	if panel.Fan {
		fan = "on"
	}
	fmt.Fprintf(ui.Out, "biliwatch  %s  link: %s  panel: %s / fan %s\n\n",
		now.Local().Format("15:04:05"), connColor(rt.State()),
		output.ModeColor(string(panel.Mode)), fan)

	active := sessions.Active()
	if len(active) == 0 {
		ui.Info("No running sessions.")
		return
	}

	table := ui.Table([]string{"Session", "Patient", "Mode", "Progress", "Remaining", "Temp (C)", "Humidity (%)", "Fan"})
	for _, s := range active {
		temp, hum, fan := "-", "-", "-"
		if m, ok := measurements.Latest(s.ID); ok {
			temp = fmt.Sprintf("%.1f", m.Temperature)
			hum = fmt.Sprintf("%.1f", m.Humidity)
			if m.Fan {
				fan = "on"
			} else {
				fan = "off"
			}
		}
		table.Append([]string{
			output.Cyan(s.ID),
			s.PatientID,
			string(s.Mode),
			fmt.Sprintf("%.0f%%", models.Progress(&s, now)),
			fmt.Sprintf("%dm", models.RemainingMinutes(&s, now)),
			temp,
			hum,
			fan,
		})
	}
	table.Render()

	if watchSession != "" {
		if stats, ok := measurements.Stats(watchSession); ok {
			fmt.Fprintf(ui.Out, "\n%s: %d samples, avg %.1f C / %.1f%% RH, fan duty %.1f%%\n",
				watchSession, stats.Count, stats.AvgTemperature, stats.AvgHumidity, stats.FanOnPct)
		}
	}
}

// raiseAlerts warns once per out-of-band measurement. A session stays
// quiet until a new reading arrives.
func raiseAlerts(th alerts.Thresholds, sessions *cache.SessionCache, measurements *cache.MeasurementLog, warned map[string]string) {
	for _, s := range sessions.Active() {
		m, ok := measurements.Latest(s.ID)
		if !ok || warned[s.ID] == m.ID {
			continue
		}
		for _, a := range th.Check(m) {
			ui.Warning("%s", a)
			warned[s.ID] = m.ID
		}
	}
}

func saveSnapshot(store *snapshot.Store, sessions *cache.SessionCache, patients []*models.Patient, panel models.DevicePanel) error {
	all := sessions.All()
	out := make([]*models.Session, len(all))
	for i := range all {
		out[i] = &all[i]
	}

	err := store.Save(context.Background(), &snapshot.Snapshot{
		Sessions: out,
		Patients: patients,
		Panel:    panel,
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	ui.Success("Snapshot saved")
	return nil
}

func connColor(s realtime.State) string {
	switch s {
	case realtime.StateConnected:
		return output.Green(string(s))
	case realtime.StateConnecting, realtime.StateReconnecting:
		return output.Yellow(string(s))
	default:
		return output.Red(string(s))
	}
}

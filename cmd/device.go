package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkurniadi/biliwatch/internal/models"
	"github.com/mkurniadi/biliwatch/internal/output"
)

var (
	devicePortName string
	deviceBaudRate int
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Control the phototherapy device",
	Long: `Inspect and control the device controller through the backend.

Light mode and fan settings are remembered locally so the watch dashboard
can show the panel state you last applied.`,
}

var deviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show controller connection state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return deviceStatusRun()
	},
}

var devicePortsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports the backend can see",
	RunE: func(cmd *cobra.Command, args []string) error {
		return devicePortsRun()
	},
}

var deviceConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the backend to the controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		return deviceConnectRun()
	},
}

var deviceDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the backend from the controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		return deviceDisconnectRun()
	},
}

var deviceModeCmd = &cobra.Command{
	Use:   "mode <low|high|both|off>",
	Short: "Set the light mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deviceModeRun(args[0])
	},
}

var deviceFanCmd = &cobra.Command{
	Use:   "fan <on|off>",
	Short: "Switch the cooling fan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deviceFanRun(args[0])
	},
}

var deviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Emergency stop: lights and fan off",
	RunE: func(cmd *cobra.Command, args []string) error {
		return deviceStopRun()
	},
}

var devicePingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check controller responsiveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		return devicePingRun()
	},
}

func init() {
	deviceConnectCmd.Flags().StringVar(&devicePortName, "port", "", "Serial port path (default: backend auto-detect)")
	deviceConnectCmd.Flags().IntVar(&deviceBaudRate, "baud", 9600, "Baud rate")

	deviceCmd.AddCommand(deviceStatusCmd)
	deviceCmd.AddCommand(devicePortsCmd)
	deviceCmd.AddCommand(deviceConnectCmd)
	deviceCmd.AddCommand(deviceDisconnectCmd)
	deviceCmd.AddCommand(deviceModeCmd)
	deviceCmd.AddCommand(deviceFanCmd)
	deviceCmd.AddCommand(deviceStopCmd)
	deviceCmd.AddCommand(devicePingCmd)
	rootCmd.AddCommand(deviceCmd)
}

func deviceStatusRun() error {
	client := newAPIClient()
	st, err := client.DeviceStatus(context.Background())
	if err != nil {
		return fmt.Errorf("device status: %w", err)
	}

	if st.IsConnected {
		ui.Success("Controller connected")
		if st.PortInfo != nil {
			fmt.Fprintf(ui.Out, "  Port:       %s\n", st.PortInfo.Port)
			fmt.Fprintf(ui.Out, "  Baud rate:  %d\n", st.PortInfo.BaudRate)
		}
	} else {
		ui.Warning("Controller not connected")
	}

	// Show the locally remembered panel alongside live status.
	if s, err := getSnapshotStore(); err == nil {
		if snap, err := s.Load(rootCmd.Context()); err == nil {
			fmt.Fprintf(ui.Out, "  Last mode:  %s\n", output.ModeColor(string(snap.Panel.Mode)))
			fan := "off"
			if snap.Panel.Fan {
				fan = "on"
			}
			fmt.Fprintf(ui.Out, "  Last fan:   %s\n", fan)
		}
	}
	return nil
}

func devicePortsRun() error {
	client := newAPIClient()
	ports, err := client.DevicePorts(context.Background())
	if err != nil {
		return fmt.Errorf("device ports: %w", err)
	}

	if len(ports) == 0 {
		ui.Info("No serial ports found.")
		return nil
	}

	table := ui.Table([]string{"Path", "Manufacturer"})
	for _, p := range ports {
		table.Append([]string{p.Path, p.Manufacturer})
	}
	table.Render()
	return nil
}

func deviceConnectRun() error {
	if dryRun {
		ui.DryRunMsg("Would connect controller on port %q", devicePortName)
		return nil
	}

	client := newAPIClient()
	info, err := client.ConnectDevice(context.Background(), devicePortName, deviceBaudRate)
	if err != nil {
		return fmt.Errorf("connect device: %w", err)
	}

	ui.Success("Controller connected on %s (%d baud)", info.Port, info.BaudRate)
	return nil
}

func deviceDisconnectRun() error {
	if dryRun {
		ui.DryRunMsg("Would disconnect controller")
		return nil
	}

	client := newAPIClient()
	if err := client.DisconnectDevice(context.Background()); err != nil {
		return fmt.Errorf("disconnect device: %w", err)
	}

	ui.Success("Controller disconnected")
	return nil
}

func deviceModeRun(mode string) error {
	if !models.ValidLightMode(mode) {
		return fmt.Errorf("invalid light mode %q (want low, high, both, or off)", mode)
	}

	if dryRun {
		ui.DryRunMsg("Would set light mode: %s", mode)
		return nil
	}

	client := newAPIClient()
	res, err := client.SetDeviceMode(context.Background(), models.LightMode(mode))
	if err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("set mode: controller refused: %s", res.Message)
	}

	ui.Success("Light mode set: %s", output.ModeColor(mode))
	return rememberPanel(func(p *models.DevicePanel) { p.Mode = models.LightMode(mode) })
}

func deviceFanRun(arg string) error {
	var on bool
	switch arg {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return fmt.Errorf("invalid fan setting %q (want on or off)", arg)
	}

	if dryRun {
		ui.DryRunMsg("Would switch fan: %s", arg)
		return nil
	}

	client := newAPIClient()
	res, err := client.SetDeviceFan(context.Background(), on)
	if err != nil {
		return fmt.Errorf("set fan: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("set fan: controller refused: %s", res.Message)
	}

	ui.Success("Fan switched %s", arg)
	return rememberPanel(func(p *models.DevicePanel) { p.Fan = on })
}

func deviceStopRun() error {
	if dryRun {
		ui.DryRunMsg("Would emergency-stop the device")
		return nil
	}

	client := newAPIClient()
	res, err := client.EmergencyStop(context.Background())
	if err != nil {
		return fmt.Errorf("emergency stop: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("emergency stop: controller refused: %s", res.Message)
	}

	ui.Success("Emergency stop sent: lights and fan off")
	return rememberPanel(func(p *models.DevicePanel) {
		p.Mode = models.LightModeOff
		p.Fan = false
	})
}

func devicePingRun() error {
	client := newAPIClient()
	res, err := client.PingDevice(context.Background())
	if err != nil {
		return fmt.Errorf("ping device: %w", err)
	}
	if !res.Success {
		ui.Warning("Controller not responding: %s", res.Message)
		return nil
	}

	ui.Success("Controller responding")
	return nil
}

// rememberPanel mutates the persisted control-panel state. Persistence
// failures are reported but never fail the command: the device already
// applied the change.
func rememberPanel(mutate func(*models.DevicePanel)) error {
	s, err := getSnapshotStore()
	if err != nil {
		ui.Warning("Panel state not saved: %v", err)
		return nil
	}

	ctx := rootCmd.Context()
	snap, err := s.Load(ctx)
	if err != nil {
		ui.Warning("Panel state not saved: %v", err)
		return nil
	}

	panel := snap.Panel
	mutate(&panel)
	if err := s.SavePanel(ctx, panel); err != nil {
		ui.Warning("Panel state not saved: %v", err)
	}
	return nil
}

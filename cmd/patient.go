package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkurniadi/biliwatch/internal/api"
	"github.com/mkurniadi/biliwatch/internal/output"
)

var (
	patientName    string
	patientDOB     string
	patientWeight  float64
	patientGestAge int
)

var patientCmd = &cobra.Command{
	Use:   "patient",
	Short: "Manage patient records",
	Long:  "Add, update, list, and remove patients on the backend.",
}

var patientListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List patients",
	RunE: func(cmd *cobra.Command, args []string) error {
		return patientListRun()
	},
}

var patientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new patient",
	RunE: func(cmd *cobra.Command, args []string) error {
		return patientAddRun()
	},
}

var patientUpdateCmd = &cobra.Command{
	Use:   "update <patient-id>",
	Short: "Update a patient record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patientUpdateRun(args[0])
	},
}

var patientRemoveCmd = &cobra.Command{
	Use:     "remove <patient-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a patient record",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patientRemoveRun(args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{patientAddCmd, patientUpdateCmd} {
		c.Flags().StringVar(&patientName, "name", "", "Patient name")
		c.Flags().StringVar(&patientDOB, "dob", "", "Date of birth (YYYY-MM-DD)")
		c.Flags().Float64Var(&patientWeight, "weight", 0, "Birth weight in grams")
		c.Flags().IntVar(&patientGestAge, "gestational-age", 0, "Gestational age in weeks")
	}
	_ = patientAddCmd.MarkFlagRequired("name")

	patientCmd.AddCommand(patientListCmd)
	patientCmd.AddCommand(patientAddCmd)
	patientCmd.AddCommand(patientUpdateCmd)
	patientCmd.AddCommand(patientRemoveCmd)
	rootCmd.AddCommand(patientCmd)
}

func patientListRun() error {
	client := newAPIClient()
	patients, err := client.ListPatients(context.Background())
	if err != nil {
		return fmt.Errorf("list patients: %w", err)
	}

	if len(patients) == 0 {
		ui.Info("No patients registered. Use 'biliwatch patient add --name <name>' to register one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "DOB", "Weight (g)", "Gest. Age"})
	for _, p := range patients {
		table.Append([]string{
			output.Cyan(p.ID),
			p.Name,
			p.DateOfBirth,
			fmt.Sprintf("%.0f", p.Weight),
			fmt.Sprintf("%dw", p.GestationalAge),
		})
	}
	table.Render()
	return nil
}

func patientAddRun() error {
	if dryRun {
		ui.DryRunMsg("Would add patient: %s", patientName)
		return nil
	}

	client := newAPIClient()
	p, err := client.CreatePatient(context.Background(), api.PatientRequest{
		Name:           patientName,
		DateOfBirth:    patientDOB,
		Weight:         patientWeight,
		GestationalAge: patientGestAge,
	})
	if err != nil {
		return fmt.Errorf("add patient: %w", err)
	}

	ui.Success("Added patient: %s (%s)", output.Cyan(p.Name), p.ID)
	return nil
}

func patientUpdateRun(id string) error {
	if dryRun {
		ui.DryRunMsg("Would update patient: %s", id)
		return nil
	}

	client := newAPIClient()
	p, err := client.UpdatePatient(context.Background(), id, api.PatientRequest{
		Name:           patientName,
		DateOfBirth:    patientDOB,
		Weight:         patientWeight,
		GestationalAge: patientGestAge,
	})
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}

	ui.Success("Updated patient: %s", output.Cyan(p.ID))
	return nil
}

func patientRemoveRun(id string) error {
	if dryRun {
		ui.DryRunMsg("Would remove patient: %s", id)
		return nil
	}

	client := newAPIClient()
	if err := client.DeletePatient(context.Background(), id); err != nil {
		return fmt.Errorf("remove patient: %w", err)
	}

	ui.Success("Removed patient: %s", output.Cyan(id))
	return nil
}

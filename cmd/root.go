package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkurniadi/biliwatch/internal/api"
	"github.com/mkurniadi/biliwatch/internal/output"
	"github.com/mkurniadi/biliwatch/internal/snapshot"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	snapStore *snapshot.Store

	verbose bool
	dryRun  bool
)

// Set from main via Execute; populated by goreleaser ldflags.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "biliwatch",
	Short: "Operator console for neonatal phototherapy sessions",
	Long: `biliwatch is the bedside console for a phototherapy device backend.
It manages patients and treatment sessions over the device REST API and,
in watch mode, follows running sessions live over the device's real-time
channel with automatic reconnection.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/biliwatch/config.yaml)")
}

func initConfig() {
	// Local .env overrides are optional.
	_ = godotenv.Load()

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "biliwatch")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BILIWATCH")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "biliwatch")

	viper.SetDefault("api.base_url", "http://localhost:3000/api")
	viper.SetDefault("realtime.url", "http://localhost:3000")
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "biliwatch.db"))
	viper.SetDefault("thresholds_path", filepath.Join(defaultConfigDir, "thresholds.yaml"))
	viper.SetDefault("watch.interval", "5s")
	viper.SetDefault("watch.refresh", "30s")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The snapshot store opens lazily so config/version commands
	// run without touching the database.
}

// newAPIClient builds a REST client against the configured backend.
func newAPIClient() *api.Client {
	return api.NewClient(viper.GetString("api.base_url"))
}

// getSnapshotStore returns the shared snapshot store, opening and
// migrating it on first call.
func getSnapshotStore() (*snapshot.Store, error) {
	if snapStore != nil {
		return snapStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := snapshot.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	snapStore = s
	return snapStore, nil
}

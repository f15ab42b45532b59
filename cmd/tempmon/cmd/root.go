package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/tempmon/internal/config"
	"github.com/oshokin/tempmon/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// serverAddress overrides the monitor address dialed by client commands.
	serverAddress string

	// rootCmd represents the base command of the temperature monitor.
	rootCmd = &cobra.Command{
		Use:   "tempmon",
		Short: "Temperature alarm monitor.",
		Long: `Monitors up to 60 temperature measurement points, raises prioritized alarms
and drives the siren, beacon and LED outputs of the device.

Run "tempmon serve" on the device. Every other command talks to a running
monitor over gRPC, using the listen address from the configuration file
unless --address is given.`,
		SilenceUsage: true,
	}
)

// Execute runs the tempmon CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "address", "a", "", "monitor gRPC address (overrides configuration)")

	rootCmd.AddCommand(serveCmd, alarmsCmd, relayCmd, historyCmd, buttonCmd)
}

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/tempmon/internal/service/monitor"
)

var (
	// metricsAddress overrides the Prometheus listen address.
	metricsAddress string

	// serveCmd runs the monitor on the device.
	serveCmd = &cobra.Command{
		Use:   "serve [listen-address]",
		Short: "Run the monitor loop and the gRPC API.",
		Long: `Starts the monitor: reads the sensors, evaluates the alarms, drives the outputs
and the display, publishes the Modbus registers and serves the gRPC API.

Listen address can be provided as argument to override config (e.g., :50051).
Manual relay modes are restored from the state file on startup.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return monitor.Run(ctx, &monitor.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				MetricsAddress: metricsAddress,
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	serveCmd.Flags().StringVarP(&metricsAddress, "metrics", "m", "", "Prometheus listen address (overrides configuration)")
}

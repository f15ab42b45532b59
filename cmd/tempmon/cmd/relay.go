package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/tempmon/internal/service/common"
)

var (
	// relayCmd groups the output commands.
	relayCmd = &cobra.Command{
		Use:   "relay",
		Short: "Show outputs and switch relay modes.",
	}

	relayListCmd = &cobra.Command{
		Use:   "list",
		Short: "List every relay and LED with its signal and mode.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.ListOutputs(ctx)
			})
		},
	}

	relaySetCmd = &cobra.Command{
		Use:   "set <Relay1|Relay2|Relay3> <auto|on|off>",
		Short: "Force a relay on or off, or return it to automatic control.",
		Long: `Manual modes survive a restart of the monitor.
Relay3 has no automatic function: in auto mode it stays off.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // Relay and mode.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.SetRelayMode(ctx, args[0], args[1])
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	relayCmd.AddCommand(relayListCmd, relaySetCmd)
}

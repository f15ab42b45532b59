package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/tempmon/internal/repository/events"
	"github.com/oshokin/tempmon/internal/service/common"
)

var (
	// historyLimit is the number of events to fetch.
	historyLimit int
	// longPress sends a long press instead of a short one.
	longPress bool

	// historyCmd prints the newest alarm events.
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show the newest alarm events.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.History(ctx, historyLimit)
			})
		},
	}

	// buttonCmd presses the front panel button remotely.
	buttonCmd = &cobra.Command{
		Use:   "button",
		Short: "Press the front panel button.",
		Long: `A short press shows the next alarm or wakes the display.
A long press (--long) opens or closes the status section.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.PressButton(ctx, longPress)
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", events.DefaultLimit, "number of events")
	buttonCmd.Flags().BoolVarP(&longPress, "long", "l", false, "long press")
}

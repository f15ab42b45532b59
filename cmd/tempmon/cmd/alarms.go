package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/tempmon/internal/service/common"
)

// errAckTarget is returned when ack is given both a key and a mode flag, or neither.
var errAckTarget = errors.New("give exactly one of: an alarm key, --all or --highest")

var (
	// ackAll acknowledges every ACTIVE alarm.
	ackAll bool
	// ackHighest acknowledges the most urgent ACTIVE alarm.
	ackHighest bool

	// addPriority is the priority of an added alarm.
	addPriority string

	// updatePriority, updateEnabled and updateHysteresis are the optional fields of an update.
	updatePriority   string
	updateEnabled    bool
	updateHysteresis int

	// delayMinutes holds the acknowledged timeout flags, indexed by flag name.
	delayMinutes = map[string]*int{
		"critical": new(int),
		"high":     new(int),
		"medium":   new(int),
		"low":      new(int),
	}

	// alarmsCmd groups the alarm commands.
	alarmsCmd = &cobra.Command{
		Use:   "alarms",
		Short: "List, acknowledge and configure alarms.",
	}

	alarmsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List every alarm and the alarm summary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.ListAlarms(ctx)
			})
		},
	}

	alarmsAckCmd = &cobra.Command{
		Use:   "ack [key]",
		Short: "Acknowledge an alarm.",
		Long: `Acknowledges one alarm by key (alarm_<point>_<type> or the legacy P<point>_<TYPE>),
the most urgent ACTIVE alarm with --highest, or every ACTIVE alarm with --all.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := len(args)
			if ackAll {
				targets++
			}

			if ackHighest {
				targets++
			}

			if targets != 1 {
				return errAckTarget
			}

			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				switch {
				case ackAll:
					return c.AcknowledgeAll(ctx)
				case ackHighest:
					return c.AcknowledgeHighest(ctx)
				default:
					return c.Acknowledge(ctx, args[0])
				}
			})
		},
	}

	alarmsAddCmd = &cobra.Command{
		Use:   "add <point> <type>",
		Short: "Create or re-enable an alarm.",
		Long: `Creates the alarm of the given type on a measurement point, or re-enables it
with the new priority when it already exists.

Types: HIGH_TEMPERATURE, LOW_TEMPERATURE, SENSOR_ERROR, SENSOR_DISCONNECTED.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // Point and type.
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("point %q: %w", args[0], err)
			}

			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.AddAlarm(ctx, address, args[1], addPriority)
			})
		},
	}

	alarmsRemoveCmd = &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.RemoveAlarm(ctx, args[0])
			})
		},
	}

	alarmsUpdateCmd = &cobra.Command{
		Use:   "update <key>",
		Short: "Change the priority, enabled flag or hysteresis of an alarm.",
		Long:  `Only the flags given on the command line are changed; the rest of the alarm is kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			change := common.AlarmChange{Priority: updatePriority}

			if cmd.Flags().Changed("enabled") {
				change.Enabled = &updateEnabled
			}

			if cmd.Flags().Changed("hysteresis") {
				change.Hysteresis = &updateHysteresis
			}

			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.UpdateAlarm(ctx, args[0], change)
			})
		},
	}

	alarmsDelaysCmd = &cobra.Command{
		Use:   "delays",
		Short: "Show or change the acknowledged timeout of each priority tier.",
		Long: `An acknowledged alarm whose condition persists returns to ACTIVE after the
timeout of its priority tier. Only the tiers given on the command line are
changed, and every existing alarm picks up the new timeout of its tier.
Without flags the current timeouts are printed.`,
		Example: "tempmon alarms delays --critical 2 --low 120",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var change common.DelayChange

			targets := map[string]**int{
				"critical": &change.Critical,
				"high":     &change.High,
				"medium":   &change.Medium,
				"low":      &change.Low,
			}

			for name, target := range targets {
				if cmd.Flags().Changed(name) {
					*target = delayMinutes[name]
				}
			}

			return runCall(cmd, func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.SetAcknowledgedDelays(ctx, change)
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	alarmsAckCmd.Flags().BoolVar(&ackAll, "all", false, "acknowledge every ACTIVE alarm")
	alarmsAckCmd.Flags().BoolVar(&ackHighest, "highest", false, "acknowledge the most urgent ACTIVE alarm")

	alarmsAddCmd.Flags().StringVarP(&addPriority, "priority", "p", "MEDIUM", "alarm priority: LOW, MEDIUM, HIGH or CRITICAL")

	alarmsUpdateCmd.Flags().StringVarP(&updatePriority, "priority", "p", "", "new priority")
	alarmsUpdateCmd.Flags().BoolVar(&updateEnabled, "enabled", true, "evaluate the alarm")
	alarmsUpdateCmd.Flags().IntVar(&updateHysteresis, "hysteresis", 0, "hysteresis in °C")

	for name, minutes := range delayMinutes {
		alarmsDelaysCmd.Flags().IntVar(minutes, name, 0, "acknowledged timeout of "+strings.ToUpper(name)+" alarms, in minutes")
	}

	alarmsCmd.AddCommand(alarmsListCmd, alarmsAckCmd, alarmsAddCmd, alarmsRemoveCmd, alarmsUpdateCmd, alarmsDelaysCmd)
}

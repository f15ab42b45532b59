package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/tempmon/internal/config"
	"github.com/oshokin/tempmon/internal/logger"
	"github.com/oshokin/tempmon/internal/service/common"
)

// call is one request sent to the monitor.
type call func(ctx context.Context, client *common.Client) (*structpb.Struct, error)

// runCall dials the monitor, performs the call and prints the response as JSON.
func runCall(cmd *cobra.Command, do call) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ctx = logger.WithName(ctx, "tempmon")

	cfg, err := loadClientConfig(configPath)
	if err != nil {
		return err
	}

	opts := []common.Option{common.WithCallTimeout(cfg.Timeout)}

	// The actor only feeds the audit trail; a lookup failure is not fatal.
	if actor, actorErr := common.DetectActor(); actorErr != nil {
		logger.WarnKV(ctx, "Operator identity unavailable", "error", actorErr)
	} else {
		opts = append(opts, common.WithActor(actor))
	}

	client, err := common.Dial(ctx, cfg.ClientAddress(serverAddress), opts...)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close connection", "error", closeErr)
		}
	}()

	response, err := do(ctx, client)
	if err != nil {
		return err
	}

	return printResponse(cmd.OutOrStdout(), response)
}

// loadClientConfig reads the configuration; a missing file means defaults.
func loadClientConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}

	return nil, fmt.Errorf("load settings: %w", err)
}

// printResponse writes the response as indented JSON.
func printResponse(w io.Writer, response *structpb.Struct) error {
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

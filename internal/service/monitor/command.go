package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	api "github.com/oshokin/tempmon/internal/api/grpc/alarm"
	"github.com/oshokin/tempmon/internal/config"
	"github.com/oshokin/tempmon/internal/logger"
	"github.com/oshokin/tempmon/internal/observability/metrics"
	"github.com/oshokin/tempmon/internal/version"
)

// Options controls the monitor process.
type Options struct {
	// ConfigPath specifies the path to the device configuration YAML file.
	ConfigPath string
	// ListenAddress overrides the gRPC listen address from the configuration.
	ListenAddress string
	// MetricsAddress overrides the Prometheus listen address from the configuration.
	MetricsAddress string
}

// metricsShutdownTimeout bounds the metrics server shutdown.
const metricsShutdownTimeout = 5 * time.Second

// Run starts the monitor loop, the gRPC API and the metrics endpoint, and
// blocks until the context is canceled or the API server fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "monitor")

	// Load configuration first to get every device setting.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	// Command line arguments override the configured addresses.
	if opts.ListenAddress != "" {
		cfg.ListenAddress = opts.ListenAddress
	}

	if opts.MetricsAddress != "" {
		cfg.MetricsAddress = opts.MetricsAddress
	}

	metrics.Init()

	// Open sensors, sinks, outputs and the Modbus link.
	res, err := build(ctx, cfg, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("initialise monitor: %w", err)
	}

	defer func() {
		if closeErr := res.close(); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to release resources", "error", closeErr)
		}
	}()

	m, err := New(res.deps)
	if err != nil {
		return fmt.Errorf("initialise monitor: %w", err)
	}

	if err = m.RestoreRelayModes(ctx); err != nil {
		logger.WarnKV(ctx, "Relay modes not restored", "error", err)
	}

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}

	grpcServer := grpc.NewServer()
	api.Register(grpcServer, api.NewServer(m))

	if cfg.MetricsAddress != "" {
		go serveMetrics(ctx, cfg.MetricsAddress)
	}

	logger.InfoKV(ctx, "Monitor started", append(version.Fields(),
		"listen_address", cfg.ListenAddress,
		"metrics_address", cfg.MetricsAddress,
		"bound_sensors", res.deps.Points.Bound(),
		"alarms", res.deps.Registry.Len(),
	)...)

	// The loop must stop before the deferred close releases its resources.
	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})

	go func() {
		m.Loop(loopCtx, cfg.TickInterval)
		close(loopDone)
	}()

	defer func() {
		stopLoop()
		<-loopDone
	}()

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err = grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done

	logger.Info(ctx, "Monitor stopped")

	return nil
}

// serveMetrics exposes the Prometheus endpoint until the context is canceled.
func serveMetrics(ctx context.Context, address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	logger.InfoKV(ctx, "Metrics endpoint listening", "address", address)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorKV(ctx, "Metrics endpoint failed", "error", err)
	}
}

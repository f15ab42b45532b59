//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/tempmon/internal/api/grpc/alarm"
	"github.com/oshokin/tempmon/internal/config"
)

// Client wraps a connection to the monitor's AlarmService with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the monitor.
	conn *grpc.ClientConn

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is sent with every request that changes state.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches the operator identity to state-changing requests.
func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.actor = actor.String()
	}
}

// AlarmChange holds the optional fields of an alarm update.
type AlarmChange struct {
	// Priority is the new priority name, empty to keep it.
	Priority string
	// Enabled switches evaluation on or off, nil to keep it.
	Enabled *bool
	// Hysteresis is the new hysteresis in °C, nil to keep it.
	Hysteresis *int
}

// DelayChange holds the optional acknowledged timeouts of each priority
// tier, in minutes. Nil tiers keep their current value.
type DelayChange struct {
	Critical *int
	High     *int
	Medium   *int
	Low      *int
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errNotConnected is returned when a call is made on a client without a connection.
	errNotConnected = errors.New("client is not connected")
	// errKeyRequired is returned when an alarm key is not provided.
	errKeyRequired = errors.New("alarm key must be provided")
)

// Dial establishes a gRPC connection to the monitor.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial monitor: %w", err)
	}

	return NewClient(conn, opts...), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// ListAlarms returns every alarm and the alarm summary.
func (c *Client) ListAlarms(ctx context.Context) (*structpb.Struct, error) {
	return c.call(ctx, "list alarms", api.MethodListAlarms, nil)
}

// Acknowledge acknowledges one alarm by key.
func (c *Client) Acknowledge(ctx context.Context, key string) (*structpb.Struct, error) {
	if key == "" {
		return nil, errKeyRequired
	}

	return c.call(ctx, "acknowledge alarm", api.MethodAcknowledge, c.withActor(map[string]any{"key": key}))
}

// AcknowledgeHighest acknowledges the highest priority ACTIVE alarm.
func (c *Client) AcknowledgeHighest(ctx context.Context) (*structpb.Struct, error) {
	return c.call(ctx, "acknowledge highest alarm", api.MethodAcknowledgeHighest, c.withActor(nil))
}

// AcknowledgeAll acknowledges every ACTIVE alarm.
func (c *Client) AcknowledgeAll(ctx context.Context) (*structpb.Struct, error) {
	return c.call(ctx, "acknowledge all alarms", api.MethodAcknowledgeAll, c.withActor(nil))
}

// AddAlarm creates or re-enables an alarm.
func (c *Client) AddAlarm(ctx context.Context, address int, alarmType, priority string) (*structpb.Struct, error) {
	fields := map[string]any{
		"point":    address,
		"type":     alarmType,
		"priority": priority,
	}

	return c.call(ctx, "add alarm", api.MethodAddAlarm, c.withActor(fields))
}

// RemoveAlarm destroys an alarm by key.
func (c *Client) RemoveAlarm(ctx context.Context, key string) (*structpb.Struct, error) {
	if key == "" {
		return nil, errKeyRequired
	}

	return c.call(ctx, "remove alarm", api.MethodRemoveAlarm, c.withActor(map[string]any{"key": key}))
}

// UpdateAlarm changes the configuration of an alarm.
func (c *Client) UpdateAlarm(ctx context.Context, key string, change AlarmChange) (*structpb.Struct, error) {
	if key == "" {
		return nil, errKeyRequired
	}

	fields := map[string]any{"key": key}

	if change.Priority != "" {
		fields["priority"] = change.Priority
	}

	if change.Enabled != nil {
		fields["enabled"] = *change.Enabled
	}

	if change.Hysteresis != nil {
		fields["hysteresis"] = *change.Hysteresis
	}

	return c.call(ctx, "update alarm", api.MethodUpdateAlarm, c.withActor(fields))
}

// SetAcknowledgedDelays changes the acknowledged timeouts of the given tiers.
func (c *Client) SetAcknowledgedDelays(ctx context.Context, change DelayChange) (*structpb.Struct, error) {
	fields := make(map[string]any)

	for name, minutes := range map[string]*int{
		"critical": change.Critical,
		"high":     change.High,
		"medium":   change.Medium,
		"low":      change.Low,
	} {
		if minutes != nil {
			fields[name] = *minutes
		}
	}

	return c.call(ctx, "set acknowledged delays", api.MethodSetDelays, c.withActor(fields))
}

// ListOutputs returns the relay and LED states.
func (c *Client) ListOutputs(ctx context.Context) (*structpb.Struct, error) {
	return c.call(ctx, "list outputs", api.MethodListOutputs, nil)
}

// SetRelayMode switches a relay to auto, on or off.
func (c *Client) SetRelayMode(ctx context.Context, name, mode string) (*structpb.Struct, error) {
	fields := map[string]any{
		"name": name,
		"mode": mode,
	}

	return c.call(ctx, "set relay mode", api.MethodSetRelayMode, c.withActor(fields))
}

// History returns the newest stored alarm events.
func (c *Client) History(ctx context.Context, limit int) (*structpb.Struct, error) {
	return c.call(ctx, "get history", api.MethodHistory, map[string]any{"limit": limit})
}

// PressButton simulates a press of the front panel button.
func (c *Client) PressButton(ctx context.Context, long bool) (*structpb.Struct, error) {
	return c.call(ctx, "press button", api.MethodPressButton, c.withActor(map[string]any{"long": long}))
}

// call encodes the request, invokes the method and decodes the response.
func (c *Client) call(ctx context.Context, action, method string, fields map[string]any) (*structpb.Struct, error) {
	if c == nil || c.conn == nil {
		return nil, errNotConnected
	}

	request, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", action, err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response := new(structpb.Struct)
	if err = c.conn.Invoke(callCtx, api.FullMethod(method), request, response); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	return response, nil
}

// withActor adds the operator to the request fields when known.
func (c *Client) withActor(fields map[string]any) map[string]any {
	if c.actor == "" {
		return fields
	}

	if fields == nil {
		fields = make(map[string]any, 1)
	}

	fields["actor"] = c.actor

	return fields
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

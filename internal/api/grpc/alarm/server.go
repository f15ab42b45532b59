package alarm

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/domain/point"
	"github.com/oshokin/tempmon/internal/logger"
	"github.com/oshokin/tempmon/internal/repository/events"
	"github.com/oshokin/tempmon/internal/service/output"
	"github.com/oshokin/tempmon/internal/service/registry"
)

// maxHistoryLimit caps the number of events returned by History.
const maxHistoryLimit = 1000

// ErrUnavailable is wrapped by services for features disabled in the configuration.
var ErrUnavailable = errors.New("feature is not configured")

// actorKey is the context key of the requesting operator.
type actorKey struct{}

// ActorFromContext returns the operator that sent the request, if any.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)

	return actor
}

// AlarmUpdate carries the optional fields of an UpdateAlarm request.
// Nil fields are left unchanged.
type AlarmUpdate struct {
	// Key identifies the alarm.
	Key domain.Key
	// Priority is the new priority.
	Priority *domain.Priority
	// Enabled switches evaluation on or off.
	Enabled *bool
	// Hysteresis is the new hysteresis in °C.
	Hysteresis *int
}

// DelaysUpdate carries the optional per-tier acknowledged timeouts of a
// SetAcknowledgedDelays request. Nil tiers keep their current value.
type DelaysUpdate struct {
	Critical *time.Duration
	High     *time.Duration
	Medium   *time.Duration
	Low      *time.Duration
}

// OutputStatus is the last known state of one output.
type OutputStatus struct {
	// Name identifies the output.
	Name output.Name
	// Signal is the last signal driven, or nil when nothing was driven yet.
	Signal *output.Signal
	// Mode is the manual mode; always AUTO for LEDs.
	Mode output.Mode
}

// Service abstracts the monitor operations the transport layer depends on.
type Service interface {
	Alarms(ctx context.Context) ([]domain.Snapshot, domain.Summary)
	Acknowledge(ctx context.Context, key domain.Key) (domain.Snapshot, error)
	AcknowledgeHighest(ctx context.Context) (domain.Snapshot, bool)
	AcknowledgeAll(ctx context.Context) int
	AddAlarm(ctx context.Context, t domain.Type, address int, priority domain.Priority) (domain.Snapshot, error)
	RemoveAlarm(ctx context.Context, key domain.Key) error
	UpdateAlarm(ctx context.Context, update AlarmUpdate) (domain.Snapshot, error)
	SetAcknowledgedDelays(ctx context.Context, update DelaysUpdate) (domain.AcknowledgedDelays, error)
	Outputs(ctx context.Context) []OutputStatus
	SetRelayMode(ctx context.Context, name output.Name, mode output.Mode) error
	History(ctx context.Context, limit int) ([]events.Entry, error)
	PressButton(ctx context.Context, long bool)
}

// Server implements the AlarmService gRPC API.
type Server struct {
	// service provides the monitor operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// ListAlarms returns every alarm in priority order with the current summary.
func (s *Server) ListAlarms(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	alarms, summary := s.service.Alarms(ctx)

	return newStruct(map[string]any{
		"alarms":  snapshotList(alarms),
		"summary": summaryMap(summary),
	})
}

// Acknowledge acknowledges the alarm named by "key".
func (s *Server) Acknowledge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	key, err := keyField(req)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.service.Acknowledge(ctx, key)
	if err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]any{"alarm": snapshotMap(snapshot)})
}

// AcknowledgeHighest acknowledges the highest priority ACTIVE alarm.
func (s *Server) AcknowledgeHighest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	snapshot, ok := s.service.AcknowledgeHighest(ctx)
	if !ok {
		return newStruct(map[string]any{"acknowledged": false})
	}

	return newStruct(map[string]any{
		"acknowledged": true,
		"alarm":        snapshotMap(snapshot),
	})
}

// AcknowledgeAll acknowledges every ACTIVE alarm.
func (s *Server) AcknowledgeAll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	return newStruct(map[string]any{"count": s.service.AcknowledgeAll(ctx)})
}

// AddAlarm creates or re-enables the alarm given by "point", "type" and "priority".
func (s *Server) AddAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	address, ok, err := intField(req, "point")
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, status.Error(codes.InvalidArgument, "point is required")
	}

	t, err := domain.ParseType(stringField(req, "type"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	priority := domain.PriorityMedium
	if name := stringField(req, "priority"); name != "" {
		if priority, err = domain.ParsePriority(name); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	snapshot, err := s.service.AddAlarm(ctx, t, address, priority)
	if err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]any{"alarm": snapshotMap(snapshot)})
}

// RemoveAlarm destroys the alarm named by "key".
func (s *Server) RemoveAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	key, err := keyField(req)
	if err != nil {
		return nil, err
	}

	if err = s.service.RemoveAlarm(ctx, key); err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]any{"key": key.String()})
}

// UpdateAlarm changes the optional "priority", "enabled" and "hysteresis" of an alarm.
func (s *Server) UpdateAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	key, err := keyField(req)
	if err != nil {
		return nil, err
	}

	update := AlarmUpdate{Key: key}

	if name := stringField(req, "priority"); name != "" {
		priority, parseErr := domain.ParsePriority(name)
		if parseErr != nil {
			return nil, status.Error(codes.InvalidArgument, parseErr.Error())
		}

		update.Priority = &priority
	}

	if enabled, ok := boolField(req, "enabled"); ok {
		update.Enabled = &enabled
	}

	hysteresis, ok, err := intField(req, "hysteresis")
	if err != nil {
		return nil, err
	}

	if ok {
		if hysteresis < 0 {
			return nil, status.Error(codes.InvalidArgument, "hysteresis must not be negative")
		}

		update.Hysteresis = &hysteresis
	}

	snapshot, err := s.service.UpdateAlarm(ctx, update)
	if err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]any{"alarm": snapshotMap(snapshot)})
}

// SetAcknowledgedDelays changes the acknowledged timeouts of the "critical",
// "high", "medium" and "low" tiers, given in whole minutes.
// Existing alarms pick up the timeout of their tier.
func (s *Server) SetAcknowledgedDelays(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	var update DelaysUpdate

	tiers := []struct {
		name   string
		target **time.Duration
	}{
		{"critical", &update.Critical},
		{"high", &update.High},
		{"medium", &update.Medium},
		{"low", &update.Low},
	}

	for _, tier := range tiers {
		minutes, ok, err := intField(req, tier.name)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		if minutes <= 0 {
			return nil, status.Errorf(codes.InvalidArgument, "%s delay must be positive", tier.name)
		}

		d := time.Duration(minutes) * time.Minute
		*tier.target = &d
	}

	delays, err := s.service.SetAcknowledgedDelays(ctx, update)
	if err != nil {
		return nil, toStatus(err)
	}

	return newStruct(delaysMap(delays))
}

// ListOutputs returns the relay and LED states with the relay modes.
func (s *Server) ListOutputs(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return newStruct(map[string]any{"outputs": outputList(s.service.Outputs(ctx))})
}

// SetRelayMode switches relay "name" to "mode" (auto, on, off).
func (s *Server) SetRelayMode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	name := output.Name(stringField(req, "name"))
	if !output.IsRelay(name) {
		return nil, status.Errorf(codes.InvalidArgument, "unknown relay %q", name)
	}

	mode, err := output.ParseMode(stringField(req, "mode"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err = s.service.SetRelayMode(ctx, name, mode); err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]any{
		"name": string(name),
		"mode": mode.String(),
	})
}

// History returns the newest stored events, at most "limit" of them.
func (s *Server) History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit, ok, err := intField(req, "limit")
	if err != nil {
		return nil, err
	}

	if !ok || limit <= 0 {
		limit = events.DefaultLimit
	}

	limit = min(limit, maxHistoryLimit)

	entries, err := s.service.History(ctx, limit)
	if err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]any{"events": entryList(entries)})
}

// PressButton simulates a short or "long" press of the front panel button.
func (s *Server) PressButton(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	long, _ := boolField(req, "long")
	s.service.PressButton(ctx, long)

	return newStruct(map[string]any{"long": long})
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, registry.ErrNotAcknowledgeable):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidDelay),
		errors.Is(err, point.ErrUnknownPoint),
		errors.Is(err, output.ErrUnknownRelay),
		errors.Is(err, output.ErrInvalidMode):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// withActor stores the operator that sent the request in the context
// and tags the context logger with it.
func withActor(ctx context.Context, req *structpb.Struct) context.Context {
	actor := stringField(req, "actor")
	if actor == "" {
		return ctx
	}

	ctx = context.WithValue(ctx, actorKey{}, actor)

	return logger.WithKV(ctx, "actor", actor)
}

// keyField reads and canonicalizes the "key" field.
func keyField(req *structpb.Struct) (domain.Key, error) {
	raw := stringField(req, "key")
	if raw == "" {
		return "", status.Error(codes.InvalidArgument, "key is required")
	}

	key, err := domain.CanonicalKey(raw)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}

	return key, nil
}

package alarm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/repository/events"
	"github.com/oshokin/tempmon/internal/service/output"
	"github.com/oshokin/tempmon/internal/service/registry"
)

// fakeService implements Service over a map of snapshots.
type fakeService struct {
	// alarms holds the alarms by key.
	alarms map[domain.Key]domain.Snapshot
	// updates records every UpdateAlarm call.
	updates []AlarmUpdate
	// modes records relay modes.
	modes map[output.Name]output.Mode
	// presses records button presses, true for long.
	presses []bool
	// limit is the last history limit requested.
	limit int
	// delays holds the acknowledged timeouts.
	delays domain.AcknowledgedDelays
}

func newFakeService() *fakeService {
	key := domain.NewKey(domain.TypeHighTemperature, 5)

	return &fakeService{
		alarms: map[domain.Key]domain.Snapshot{
			key: {
				Key:          key,
				Type:         domain.TypeHighTemperature,
				PointAddress: 5,
				PointName:    "P5",
				Stage:        domain.StageActive,
				Priority:     domain.PriorityHigh,
				Enabled:      true,
				Temperature:  55,
				Threshold:    50,
				Created:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			},
		},
		modes:  make(map[output.Name]output.Mode),
		delays: domain.DefaultAcknowledgedDelays(),
	}
}

func (f *fakeService) Alarms(context.Context) ([]domain.Snapshot, domain.Summary) {
	list := make([]domain.Snapshot, 0, len(f.alarms))
	for _, a := range f.alarms {
		list = append(list, a)
	}

	return list, domain.Summary{Active: [4]int{0, 0, 1, 0}}
}

func (f *fakeService) Acknowledge(_ context.Context, key domain.Key) (domain.Snapshot, error) {
	a, ok := f.alarms[key]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("acknowledge %s: %w", key, registry.ErrNotFound)
	}

	if a.Stage != domain.StageActive {
		return domain.Snapshot{}, fmt.Errorf("acknowledge %s: %w", key, registry.ErrNotAcknowledgeable)
	}

	a.Stage = domain.StageAcknowledged
	f.alarms[key] = a

	return a, nil
}

func (f *fakeService) AcknowledgeHighest(ctx context.Context) (domain.Snapshot, bool) {
	for key, a := range f.alarms {
		if a.Stage == domain.StageActive {
			acked, err := f.Acknowledge(ctx, key)

			return acked, err == nil
		}
	}

	return domain.Snapshot{}, false
}

func (f *fakeService) AcknowledgeAll(ctx context.Context) int {
	n := 0

	for key := range f.alarms {
		if _, err := f.Acknowledge(ctx, key); err == nil {
			n++
		}
	}

	return n
}

func (f *fakeService) AddAlarm(_ context.Context, t domain.Type, address int, p domain.Priority) (domain.Snapshot, error) {
	if address < 0 || address > 59 {
		return domain.Snapshot{}, fmt.Errorf("add alarm: %w", registry.ErrNotFound)
	}

	a := domain.Snapshot{Key: domain.NewKey(t, address), Type: t, PointAddress: address, Priority: p, Enabled: true}
	f.alarms[a.Key] = a

	return a, nil
}

func (f *fakeService) RemoveAlarm(_ context.Context, key domain.Key) error {
	if _, ok := f.alarms[key]; !ok {
		return fmt.Errorf("remove alarm %s: %w", key, registry.ErrNotFound)
	}

	delete(f.alarms, key)

	return nil
}

func (f *fakeService) UpdateAlarm(_ context.Context, update AlarmUpdate) (domain.Snapshot, error) {
	f.updates = append(f.updates, update)

	a, ok := f.alarms[update.Key]
	if !ok {
		return domain.Snapshot{}, registry.ErrNotFound
	}

	if update.Priority != nil {
		a.Priority = *update.Priority
	}

	if update.Enabled != nil {
		a.Enabled = *update.Enabled
	}

	if update.Hysteresis != nil {
		a.Hysteresis = *update.Hysteresis
	}

	f.alarms[update.Key] = a

	return a, nil
}

func (f *fakeService) SetAcknowledgedDelays(_ context.Context, update DelaysUpdate) (domain.AcknowledgedDelays, error) {
	for _, tier := range []struct {
		value  *time.Duration
		target *time.Duration
	}{
		{update.Critical, &f.delays.Critical},
		{update.High, &f.delays.High},
		{update.Medium, &f.delays.Medium},
		{update.Low, &f.delays.Low},
	} {
		if tier.value != nil {
			*tier.target = *tier.value
		}
	}

	return f.delays, nil
}

func (f *fakeService) Outputs(context.Context) []OutputStatus {
	solid := output.Solid

	return []OutputStatus{
		{Name: output.Relay1, Signal: &solid, Mode: f.modes[output.Relay1]},
		{Name: output.GreenLED},
	}
}

func (f *fakeService) SetRelayMode(_ context.Context, name output.Name, mode output.Mode) error {
	f.modes[name] = mode

	return nil
}

func (f *fakeService) History(_ context.Context, limit int) ([]events.Entry, error) {
	f.limit = limit

	return []events.Entry{{
		ID: "id-1",
		Event: domain.Event{
			Kind:         domain.EventTransition,
			Time:         time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Key:          domain.NewKey(domain.TypeHighTemperature, 5),
			PointAddress: 5,
			Type:         domain.TypeHighTemperature,
			Priority:     domain.PriorityHigh,
			From:         domain.StageNew,
			To:           domain.StageActive,
		},
	}}, nil
}

func (f *fakeService) PressButton(_ context.Context, long bool) {
	f.presses = append(f.presses, long)
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()

	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	return s
}

// TestServer_Validation ensures malformed requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewServer(newFakeService())

	_, err := s.Acknowledge(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Acknowledge(ctx, request(t, map[string]any{"key": "bogus"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.AddAlarm(ctx, request(t, map[string]any{"type": "HIGH_TEMPERATURE"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.AddAlarm(ctx, request(t, map[string]any{"point": 3, "type": "WARM"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	for _, point := range []any{5.7, 1e12, -1e12, "5"} {
		_, err = s.AddAlarm(ctx, request(t, map[string]any{"point": point, "type": "HIGH_TEMPERATURE"}))
		require.Equal(t, codes.InvalidArgument, status.Code(err), "point %v", point)
	}

	_, err = s.History(ctx, request(t, map[string]any{"limit": 2.5}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SetAcknowledgedDelays(ctx, request(t, map[string]any{"high": 0}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SetAcknowledgedDelays(ctx, request(t, map[string]any{"low": 1.5}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.UpdateAlarm(ctx, request(t, map[string]any{"key": "alarm_5_0", "hysteresis": -1}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SetRelayMode(ctx, request(t, map[string]any{"name": "GreenLED", "mode": "on"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SetRelayMode(ctx, request(t, map[string]any{"name": "Relay3", "mode": "blink"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_ErrorMapping checks that domain errors become the matching status codes.
func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewServer(newFakeService())

	_, err := s.RemoveAlarm(ctx, request(t, map[string]any{"key": "alarm_9_1"}))
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.Acknowledge(ctx, request(t, map[string]any{"key": "alarm_5_0"}))
	require.NoError(t, err)

	_, err = s.Acknowledge(ctx, request(t, map[string]any{"key": "alarm_5_0"}))
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

// TestServer_Operations exercises the happy paths of every method.
func TestServer_Operations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newFakeService()
	s := NewServer(svc)

	resp, err := s.ListAlarms(ctx, nil)
	require.NoError(t, err)

	alarms := resp.GetFields()["alarms"].GetListValue().GetValues()
	require.Len(t, alarms, 1)

	first := alarms[0].GetStructValue().GetFields()
	require.Equal(t, "alarm_5_0", first["key"].GetStringValue())
	require.Equal(t, "ACTIVE", first["stage"].GetStringValue())
	require.InDelta(t, 55, first["temperature"].GetNumberValue(), 0)
	require.Equal(t, "2024-03-01T09:00:00Z", first["created"].GetStringValue())
	require.Empty(t, first["acknowledged"].GetStringValue())

	summary := resp.GetFields()["summary"].GetStructValue().GetFields()
	require.InDelta(t, 1, summary["active"].GetStructValue().GetFields()["HIGH"].GetNumberValue(), 0)

	// The legacy key spelling is accepted.
	resp, err = s.UpdateAlarm(ctx, request(t, map[string]any{
		"key":        "P5_HIGH_TEMPERATURE",
		"priority":   "critical",
		"enabled":    false,
		"hysteresis": 2,
	}))
	require.NoError(t, err)
	require.Equal(t, "CRITICAL", resp.GetFields()["alarm"].GetStructValue().GetFields()["priority"].GetStringValue())
	require.Len(t, svc.updates, 1)
	require.Equal(t, domain.Key("alarm_5_0"), svc.updates[0].Key)
	require.False(t, *svc.updates[0].Enabled)
	require.Equal(t, 2, *svc.updates[0].Hysteresis)

	resp, err = s.AddAlarm(ctx, request(t, map[string]any{"point": 7, "type": "LOW_TEMPERATURE"}))
	require.NoError(t, err)
	require.Equal(t, "MEDIUM", resp.GetFields()["alarm"].GetStructValue().GetFields()["priority"].GetStringValue())

	resp, err = s.AcknowledgeHighest(ctx, request(t, map[string]any{"actor": "op@host"}))
	require.NoError(t, err)
	require.True(t, resp.GetFields()["acknowledged"].GetBoolValue())

	resp, err = s.AcknowledgeAll(ctx, nil)
	require.NoError(t, err)
	require.InDelta(t, 0, resp.GetFields()["count"].GetNumberValue(), 0)

	_, err = s.SetRelayMode(ctx, request(t, map[string]any{"name": "Relay3", "mode": "on"}))
	require.NoError(t, err)
	require.Equal(t, output.ForceOn, svc.modes[output.Relay3])

	resp, err = s.ListOutputs(ctx, nil)
	require.NoError(t, err)

	outputs := resp.GetFields()["outputs"].GetListValue().GetValues()
	require.Len(t, outputs, 2)
	require.Equal(t, "ON", outputs[0].GetStructValue().GetFields()["signal"].GetStringValue())
	require.Equal(t, "UNKNOWN", outputs[1].GetStructValue().GetFields()["signal"].GetStringValue())

	resp, err = s.History(ctx, request(t, map[string]any{"limit": 5000}))
	require.NoError(t, err)
	require.Equal(t, maxHistoryLimit, svc.limit)

	entry := resp.GetFields()["events"].GetListValue().GetValues()[0].GetStructValue().GetFields()
	require.Equal(t, "transition", entry["kind"].GetStringValue())
	require.Equal(t, "ACTIVE", entry["to"].GetStringValue())

	_, err = s.History(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, events.DefaultLimit, svc.limit)

	_, err = s.PressButton(ctx, request(t, map[string]any{"long": true}))
	require.NoError(t, err)
	require.Equal(t, []bool{true}, svc.presses)

	_, err = s.RemoveAlarm(ctx, request(t, map[string]any{"key": "alarm_7_1"}))
	require.NoError(t, err)
}

// TestServer_SetAcknowledgedDelays checks that only the given tiers change.
func TestServer_SetAcknowledgedDelays(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newFakeService()
	s := NewServer(svc)

	resp, err := s.SetAcknowledgedDelays(ctx, request(t, map[string]any{
		"critical": 2,
		"low":      120,
	}))
	require.NoError(t, err)

	require.Equal(t, 2*time.Minute, svc.delays.Critical)
	require.Equal(t, 15*time.Minute, svc.delays.High)
	require.Equal(t, 30*time.Minute, svc.delays.Medium)
	require.Equal(t, 2*time.Hour, svc.delays.Low)

	fields := resp.GetFields()
	require.InDelta(t, 2, fields["critical"].GetNumberValue(), 0)
	require.InDelta(t, 15, fields["high"].GetNumberValue(), 0)
	require.InDelta(t, 30, fields["medium"].GetNumberValue(), 0)
	require.InDelta(t, 120, fields["low"].GetNumberValue(), 0)
}

// TestWithActor checks that the operator travels in the request context.
func TestWithActor(t *testing.T) {
	t.Parallel()

	ctx := withActor(context.Background(), request(t, map[string]any{"actor": "op@panel"}))
	require.Equal(t, "op@panel", ActorFromContext(ctx))

	require.Empty(t, ActorFromContext(withActor(context.Background(), nil)))
	require.Equal(t, codes.Unavailable, status.Code(toStatus(fmt.Errorf("history: %w", ErrUnavailable))))
}

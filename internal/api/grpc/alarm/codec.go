package alarm

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/repository/events"
)

// newStruct converts a response map, reporting conversion failures as Internal.
func newStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}

	return s, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// intField reads a whole number that fits in int32. The second result is
// false when the field is absent; a present value that is not a whole number
// in range is an InvalidArgument error.
func intField(s *structpb.Struct, name string) (int, bool, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, false, nil
	}

	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}

	f := n.NumberValue
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f ||
		f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false, status.Errorf(codes.InvalidArgument, "%s must be a whole number, got %v", name, f)
	}

	return int(f), true, nil
}

func boolField(s *structpb.Struct, name string) (bool, bool) {
	v, ok := s.GetFields()[name]
	if !ok {
		return false, false
	}

	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, false
	}

	return b.BoolValue, true
}

// timeValue renders t as RFC 3339, or an empty string for the zero time.
func timeValue(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339)
}

// delaysMap renders the per-tier acknowledged timeouts in minutes.
func delaysMap(d domain.AcknowledgedDelays) map[string]any {
	return map[string]any{
		"critical": int(d.Critical / time.Minute),
		"high":     int(d.High / time.Minute),
		"medium":   int(d.Medium / time.Minute),
		"low":      int(d.Low / time.Minute),
	}
}

func snapshotMap(a domain.Snapshot) map[string]any {
	return map[string]any{
		"key":                a.Key.String(),
		"type":               a.Type.String(),
		"point":              a.PointAddress,
		"point_name":         a.PointName,
		"stage":              a.Stage.String(),
		"priority":           a.Priority.String(),
		"enabled":            a.Enabled,
		"hysteresis":         a.Hysteresis,
		"temperature":        a.Temperature,
		"threshold":          a.Threshold,
		"created":            timeValue(a.Created),
		"acknowledged":       timeValue(a.Acknowledged),
		"cleared":            timeValue(a.Cleared),
		"acknowledged_delay": a.AcknowledgedDelay.String(),
		"clear_delay":        a.ClearDelay.String(),
	}
}

func snapshotList(alarms []domain.Snapshot) []any {
	list := make([]any, 0, len(alarms))
	for _, a := range alarms {
		list = append(list, snapshotMap(a))
	}

	return list
}

func summaryMap(s domain.Summary) map[string]any {
	active := make(map[string]any, len(s.Active))
	acknowledged := make(map[string]any, len(s.Acknowledged))

	for _, p := range domain.Priorities() {
		active[p.String()] = s.Active[p]
		acknowledged[p.String()] = s.Acknowledged[p]
	}

	return map[string]any{
		"active":       active,
		"acknowledged": acknowledged,
	}
}

func outputList(outputs []OutputStatus) []any {
	list := make([]any, 0, len(outputs))

	for _, o := range outputs {
		signal := "UNKNOWN"
		if o.Signal != nil {
			signal = o.Signal.String()
		}

		list = append(list, map[string]any{
			"name":   string(o.Name),
			"signal": signal,
			"mode":   o.Mode.String(),
		})
	}

	return list
}

func entryList(entries []events.Entry) []any {
	list := make([]any, 0, len(entries))

	for _, entry := range entries {
		e := entry.Event
		item := map[string]any{
			"id":      entry.ID,
			"time":    e.Timestamp(),
			"kind":    e.Kind.String(),
			"point":   e.PointAddress,
			"message": e.Message,
		}

		if e.Key != "" {
			item["key"] = e.Key.String()
			item["type"] = e.Type.String()
			item["priority"] = e.Priority.String()
			item["temperature"] = e.Temperature
			item["threshold"] = e.Threshold
		}

		switch e.Kind {
		case domain.EventTransition:
			item["from"] = e.From.String()
			item["to"] = e.To.String()
		case domain.EventConfig:
			item["field"] = e.Field
			item["old"] = e.OldValue
			item["new"] = e.NewValue
		default:
		}

		list = append(list, item)
	}

	return list
}

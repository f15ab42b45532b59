package alarm

import (
	"context"
	"errors"

	"github.com/oshokin/tempmon/internal/logger"
)

// Sink receives alarm events. Implementations must not block for long:
// they are called from the monitor tick.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// MultiSink fans an event out to several sinks.
// A failing sink does not stop delivery to the others.
type MultiSink []Sink

// Record delivers the event to every sink and joins their errors.
func (m MultiSink) Record(ctx context.Context, event Event) error {
	var errs []error

	for _, sink := range m {
		if sink == nil {
			continue
		}

		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// LogSink writes events to the logger carried by the context.
type LogSink struct{}

// NewLogSink returns a sink that logs through the context logger.
func NewLogSink() *LogSink {
	return new(LogSink)
}

// Record logs the event at a level matching its kind.
func (*LogSink) Record(ctx context.Context, e Event) error {
	kvs := []any{
		"ts", e.Timestamp(),
		"point", e.PointAddress,
		"point_name", e.PointName,
	}

	if e.Key != "" {
		kvs = append(kvs,
			"key", e.Key,
			"type", e.Type.String(),
			"priority", e.Priority.String(),
			"temperature", e.Temperature,
			"threshold", e.Threshold,
		)
	}

	switch e.Kind {
	case EventTransition:
		logger.InfoKV(ctx, "Alarm stage changed", append(kvs, "from", e.From.String(), "to", e.To.String())...)
	case EventConfig:
		logger.InfoKV(ctx, "Alarm configuration changed",
			append(kvs, "field", e.Field, "old", e.OldValue, "new", e.NewValue)...)
	case EventWarning:
		logger.WarnKV(ctx, e.Message, kvs...)
	case EventError, EventCritical:
		logger.ErrorKV(ctx, e.Message, kvs...)
	default:
		logger.InfoKV(ctx, e.Message, kvs...)
	}

	return nil
}

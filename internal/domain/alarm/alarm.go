package alarm

import (
	"context"
	"strconv"
	"time"

	"github.com/oshokin/tempmon/internal/domain/point"
	"github.com/oshokin/tempmon/internal/logger"
)

// Alarm is one (type, measurement point) alarm instance.
type Alarm struct {
	// kind is the watched condition.
	kind Type
	// address is the point address; it stays valid when source is missing.
	address int
	// source is a non-owning handle to the point table entry.
	source *point.Point

	// stage is the lifecycle state.
	stage Stage
	// priority orders the alarm against others.
	priority Priority
	// enabled excludes the alarm from evaluation, outputs and display when false.
	enabled bool
	// hysteresis is the dead-band in degrees applied when a condition ends.
	hysteresis int

	// created is reset when the alarm reactivates from RESOLVED.
	created time.Time
	// acknowledged is zero until an operator acknowledges the alarm.
	acknowledged time.Time
	// cleared is zero unless the condition has gone away.
	cleared time.Time

	// clearDelay is the minimum dwell in CLEARED before RESOLVED.
	clearDelay time.Duration
	// acknowledgedDelay is the maximum dwell in ACKNOWLEDGED while the condition persists.
	acknowledgedDelay time.Duration

	// clock provides the current time.
	clock Clock
	// sink receives transition and configuration events.
	sink Sink
}

// Option configures an alarm at construction.
type Option func(*Alarm)

// WithSource binds the alarm to its measurement point.
func WithSource(p *point.Point) Option {
	return func(a *Alarm) {
		a.source = p
	}
}

// WithClock overrides the system clock.
func WithClock(c Clock) Option {
	return func(a *Alarm) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithSink sets the event sink.
func WithSink(s Sink) Option {
	return func(a *Alarm) {
		a.sink = s
	}
}

// WithEnabled sets the initial enabled flag (alarms are enabled by default).
func WithEnabled(enabled bool) Option {
	return func(a *Alarm) {
		a.enabled = enabled
	}
}

// WithHysteresis sets the initial hysteresis.
func WithHysteresis(h int) Option {
	return func(a *Alarm) {
		a.hysteresis = h
	}
}

// WithClearDelay sets the CLEARED dwell.
func WithClearDelay(d time.Duration) Option {
	return func(a *Alarm) {
		a.clearDelay = d
	}
}

// WithAcknowledgedDelay sets the acknowledgment timeout.
func WithAcknowledgedDelay(d time.Duration) Option {
	return func(a *Alarm) {
		a.acknowledgedDelay = d
	}
}

// New creates an enabled alarm in the NEW stage.
func New(t Type, address int, priority Priority, opts ...Option) *Alarm {
	a := &Alarm{
		kind:              t,
		address:           address,
		stage:             StageNew,
		priority:          priority,
		enabled:           true,
		clearDelay:        DefaultClearDelay,
		acknowledgedDelay: DefaultAcknowledgedDelays().For(priority),
		clock:             SystemClock{},
	}

	for _, opt := range opts {
		opt(a)
	}

	a.created = a.clock.Now()

	return a
}

// Key returns the configuration key.
func (a *Alarm) Key() Key { return NewKey(a.kind, a.address) }

// Type returns the watched condition.
func (a *Alarm) Type() Type { return a.kind }

// Address returns the point address.
func (a *Alarm) Address() int { return a.address }

// Source returns the bound point, which may be nil.
func (a *Alarm) Source() *point.Point { return a.source }

// Bind replaces the point handle.
func (a *Alarm) Bind(p *point.Point) { a.source = p }

// Stage returns the lifecycle stage.
func (a *Alarm) Stage() Stage { return a.stage }

// Priority returns the priority.
func (a *Alarm) Priority() Priority { return a.priority }

// Enabled reports whether the alarm takes part in evaluation.
func (a *Alarm) Enabled() bool { return a.enabled }

// Hysteresis returns the dead-band in degrees.
func (a *Alarm) Hysteresis() int { return a.hysteresis }

// Created returns the creation (or last reactivation) time.
func (a *Alarm) Created() time.Time { return a.created }

// AcknowledgedAt returns the acknowledgment time, zero when never acknowledged.
func (a *Alarm) AcknowledgedAt() time.Time { return a.acknowledged }

// ClearedAt returns the time the condition went away, zero when it did not.
func (a *Alarm) ClearedAt() time.Time { return a.cleared }

// ClearDelay returns the CLEARED dwell.
func (a *Alarm) ClearDelay() time.Duration { return a.clearDelay }

// AcknowledgedDelay returns the acknowledgment timeout.
func (a *Alarm) AcknowledgedDelay() time.Duration { return a.acknowledgedDelay }

// IsActive reports whether the stage is ACTIVE or ACKNOWLEDGED.
func (a *Alarm) IsActive() bool {
	return a.stage == StageActive || a.stage == StageAcknowledged
}

// IsAcknowledged reports whether the stage is ACKNOWLEDGED or CLEARED.
func (a *Alarm) IsAcknowledged() bool {
	return a.stage == StageAcknowledged || a.stage == StageCleared
}

// IsResolved reports whether the stage is RESOLVED.
func (a *Alarm) IsResolved() bool {
	return a.stage == StageResolved
}

// Less orders alarms: higher priority first, then the oldest first.
func (a *Alarm) Less(other *Alarm) bool {
	if a.priority != other.priority {
		return a.priority > other.priority
	}

	return a.created.Before(other.created)
}

// Compare is the three-way form of Less, usable with slices.SortStableFunc.
func Compare(a, b *Alarm) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// Threshold returns the threshold the alarm compares against; zero for sensor faults.
func (a *Alarm) Threshold() int {
	if a.source == nil {
		return 0
	}

	switch a.kind {
	case TypeHighTemperature:
		return a.source.HighThreshold()
	case TypeLowTemperature:
		return a.source.LowThreshold()
	default:
		return 0
	}
}

// checkCondition evaluates the watched condition against the source point.
// While CLEARED or RESOLVED, temperature conditions only end once the reading
// has moved hysteresis degrees back past the threshold.
func (a *Alarm) checkCondition(ctx context.Context) bool {
	if a.source == nil {
		return false
	}

	settling := a.stage == StageCleared || a.stage == StageResolved
	temp := a.source.CurrentTemperature()

	switch a.kind {
	case TypeHighTemperature:
		if settling {
			return temp > a.source.HighThreshold()-a.hysteresis
		}

		return temp >= a.source.HighThreshold()
	case TypeLowTemperature:
		if settling {
			return temp < a.source.LowThreshold()+a.hysteresis
		}

		return temp <= a.source.LowThreshold()
	case TypeSensorError:
		return a.source.ErrorStatus() != 0
	case TypeSensorDisconnected:
		return a.source.Sensor() == nil
	default:
		logger.WarnKV(ctx, "Unknown alarm type, condition treated as absent", "key", a.Key(), "type", a.kind)

		return false
	}
}

// UpdateCondition re-evaluates the condition and applies the transition table.
// It reports whether the condition holds. An alarm without a source is inert:
// it reports true and keeps its stage.
func (a *Alarm) UpdateCondition(ctx context.Context) bool {
	if a.source == nil {
		return true
	}

	condition := a.checkCondition(ctx)
	now := a.clock.Now()

	switch a.stage {
	case StageNew:
		if condition {
			a.transition(ctx, StageActive)
		} else {
			a.transition(ctx, StageResolved)
		}
	case StageActive:
		if !condition {
			a.cleared = now
			a.transition(ctx, StageCleared)
		}
	case StageAcknowledged:
		switch {
		case !condition:
			a.cleared = now
			a.transition(ctx, StageCleared)
		case now.Sub(a.acknowledged) >= a.acknowledgedDelay:
			a.transition(ctx, StageActive)
		}
	case StageCleared:
		switch {
		case condition:
			a.cleared = time.Time{}
			a.transition(ctx, StageActive)
		case now.Sub(a.cleared) >= a.clearDelay:
			a.transition(ctx, StageResolved)
		}
	case StageResolved:
		if condition {
			a.created = now
			a.acknowledged = time.Time{}
			a.cleared = time.Time{}
			a.transition(ctx, StageActive)
		}
	}

	return condition
}

// Acknowledge moves a NEW or ACTIVE alarm to ACKNOWLEDGED.
// It reports whether the alarm was in a stage that accepts acknowledgment.
func (a *Alarm) Acknowledge(ctx context.Context) bool {
	if a.stage != StageNew && a.stage != StageActive {
		return false
	}

	a.acknowledged = a.clock.Now()
	a.transition(ctx, StageAcknowledged)
	a.message(ctx, EventInfo, "Alarm acknowledged")

	return true
}

// Clear moves an ACTIVE or ACKNOWLEDGED alarm to CLEARED.
func (a *Alarm) Clear(ctx context.Context) bool {
	if !a.IsActive() {
		return false
	}

	a.cleared = a.clock.Now()
	a.transition(ctx, StageCleared)

	return true
}

// Resolve moves the alarm to RESOLVED from any stage.
func (a *Alarm) Resolve(ctx context.Context) bool {
	if a.stage != StageResolved {
		a.transition(ctx, StageResolved)
	}

	return true
}

// Reactivate moves a CLEARED alarm back to ACKNOWLEDGED when it had been
// acknowledged before, and to ACTIVE otherwise.
func (a *Alarm) Reactivate(ctx context.Context) bool {
	if a.stage != StageCleared {
		return false
	}

	a.cleared = time.Time{}

	if !a.acknowledged.IsZero() {
		a.transition(ctx, StageAcknowledged)
	} else {
		a.transition(ctx, StageActive)
	}

	a.message(ctx, EventWarning, "Alarm reactivated")

	return true
}

// SetEnabled turns evaluation of the alarm on or off.
func (a *Alarm) SetEnabled(ctx context.Context, enabled bool) {
	if a.enabled == enabled {
		return
	}

	old := a.enabled
	a.enabled = enabled
	a.configChanged(ctx, "enabled", strconv.FormatBool(old), strconv.FormatBool(enabled))
}

// SetPriority changes the priority.
func (a *Alarm) SetPriority(ctx context.Context, p Priority) {
	if a.priority == p {
		return
	}

	old := a.priority
	a.priority = p
	a.configChanged(ctx, "priority", old.String(), p.String())
}

// SetHysteresis changes the dead-band.
func (a *Alarm) SetHysteresis(ctx context.Context, h int) {
	if a.hysteresis == h {
		return
	}

	old := a.hysteresis
	a.hysteresis = h
	a.configChanged(ctx, "hysteresis", strconv.Itoa(old), strconv.Itoa(h))
}

// SetAcknowledgedDelay changes the acknowledgment timeout.
func (a *Alarm) SetAcknowledgedDelay(ctx context.Context, d time.Duration) {
	if a.acknowledgedDelay == d {
		return
	}

	old := a.acknowledgedDelay
	a.acknowledgedDelay = d
	a.configChanged(ctx, "acknowledged_delay", old.String(), d.String())
}

// SetClearDelay changes the CLEARED dwell.
func (a *Alarm) SetClearDelay(ctx context.Context, d time.Duration) {
	if a.clearDelay == d {
		return
	}

	old := a.clearDelay
	a.clearDelay = d
	a.configChanged(ctx, "clear_delay", old.String(), d.String())
}

// transition changes the stage and reports it.
func (a *Alarm) transition(ctx context.Context, to Stage) {
	from := a.stage
	a.stage = to

	e := a.event(EventTransition)
	e.From = from
	e.To = to
	a.record(ctx, e)
}

// configChanged reports a configuration change.
func (a *Alarm) configChanged(ctx context.Context, field, oldValue, newValue string) {
	e := a.event(EventConfig)
	e.Field = field
	e.OldValue = oldValue
	e.NewValue = newValue
	a.record(ctx, e)
}

// message reports a plain text event.
func (a *Alarm) message(ctx context.Context, kind EventKind, text string) {
	e := a.event(kind)
	e.Message = text
	a.record(ctx, e)
}

// event prefills an Event with the alarm identity and point readings.
func (a *Alarm) event(kind EventKind) Event {
	e := Event{
		Kind:         kind,
		Time:         a.clock.Now(),
		Key:          a.Key(),
		PointAddress: a.address,
		Type:         a.kind,
		Priority:     a.priority,
		From:         a.stage,
		To:           a.stage,
		Threshold:    a.Threshold(),
	}

	if a.source != nil {
		e.PointName = a.source.Name()
		e.Temperature = a.source.CurrentTemperature()
	}

	return e
}

// record hands the event to the sink. Sink failures are logged and never
// interrupt the state machine.
func (a *Alarm) record(ctx context.Context, e Event) {
	if a.sink == nil {
		return
	}

	if err := a.sink.Record(ctx, e); err != nil {
		logger.WarnKV(ctx, "Alarm event was not recorded", "key", e.Key, "kind", e.Kind.String(), "error", err)
	}
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/domain/point"
	"github.com/oshokin/tempmon/internal/logger"
)

// DefaultInterval is the minimum time between two evaluations.
const DefaultInterval = time.Second

var (
	// ErrNotFound is returned when no alarm has the requested key.
	ErrNotFound = errors.New("alarm not found")
	// ErrNotAcknowledgeable is returned when an alarm is not NEW or ACTIVE.
	ErrNotAcknowledgeable = errors.New("alarm cannot be acknowledged in its current stage")
)

// Registry is the collection of configured alarms.
// It holds no locks: callers serialize access.
type Registry struct {
	// points resolves alarm addresses to point handles.
	points *point.Table
	// clock is shared with every alarm created by the registry.
	clock alarm.Clock
	// sink receives events of every alarm and of the registry itself.
	sink alarm.Sink
	// interval rate-limits Update.
	interval time.Duration
	// delays holds the acknowledgment timeout of each priority tier.
	delays alarm.AcknowledgedDelays
	// clearDelay is given to newly created alarms.
	clearDelay time.Duration

	// byKey indexes alarms by configuration key.
	byKey map[alarm.Key]*alarm.Alarm
	// ordered holds the same alarms sorted by priority, then age.
	ordered []*alarm.Alarm

	// lastUpdate is the time of the last evaluation.
	lastUpdate time.Time
	// evaluated is false until the first evaluation.
	evaluated bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the system clock.
func WithClock(c alarm.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithSink sets the event sink handed to every alarm.
func WithSink(s alarm.Sink) Option {
	return func(r *Registry) {
		r.sink = s
	}
}

// WithInterval sets the evaluation interval.
func WithInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithAcknowledgedDelays sets the per-tier acknowledgment timeouts.
func WithAcknowledgedDelays(d alarm.AcknowledgedDelays) Option {
	return func(r *Registry) {
		r.delays = d
	}
}

// WithClearDelay sets the CLEARED dwell of new alarms.
func WithClearDelay(d time.Duration) Option {
	return func(r *Registry) {
		r.clearDelay = d
	}
}

// New creates an empty registry over the point table.
func New(points *point.Table, opts ...Option) *Registry {
	r := &Registry{
		points:     points,
		clock:      alarm.SystemClock{},
		interval:   DefaultInterval,
		delays:     alarm.DefaultAcknowledgedDelays(),
		clearDelay: alarm.DefaultClearDelay,
		byKey:      make(map[alarm.Key]*alarm.Alarm),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Points returns the point table the registry evaluates against.
func (r *Registry) Points() *point.Table { return r.points }

// Len returns the number of alarms.
func (r *Registry) Len() int { return len(r.ordered) }

// AddAlarm creates the alarm of type t on the point at address, or updates the
// priority of an existing one and re-enables it.
func (r *Registry) AddAlarm(ctx context.Context, t alarm.Type, address int, priority alarm.Priority) (*alarm.Alarm, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("add alarm: %w", alarm.ErrInvalidType)
	}

	if !priority.Valid() {
		return nil, fmt.Errorf("add alarm: %w", alarm.ErrInvalidPriority)
	}

	if existing, ok := r.byKey[alarm.NewKey(t, address)]; ok {
		r.setPriority(ctx, existing, priority)
		existing.SetEnabled(ctx, true)
		r.sort()

		return existing, nil
	}

	return r.create(ctx, t, address, priority, true)
}

// DefaultAlarmTypes lists the alarms EnsureAlarmsForPoint creates for a point.
func DefaultAlarmTypes() []alarm.Type {
	return []alarm.Type{alarm.TypeHighTemperature, alarm.TypeLowTemperature, alarm.TypeSensorError}
}

// EnsureAlarmsForPoint creates the default alarms of a point when missing:
// HIGH_TEMPERATURE and LOW_TEMPERATURE at MEDIUM priority, disabled, and
// SENSOR_ERROR at HIGH priority, enabled only when a sensor is bound.
// Existing alarms and the skipped keys are left untouched.
func (r *Registry) EnsureAlarmsForPoint(ctx context.Context, address int, skip ...alarm.Key) error {
	p, err := r.points.Get(address)
	if err != nil {
		return fmt.Errorf("ensure alarms: %w", err)
	}

	for _, t := range DefaultAlarmTypes() {
		key := alarm.NewKey(t, address)
		if _, ok := r.byKey[key]; ok || slices.Contains(skip, key) {
			continue
		}

		priority, enabled := alarm.PriorityMedium, false
		if t == alarm.TypeSensorError {
			priority, enabled = alarm.PriorityHigh, p.Sensor() != nil
		}

		if _, err := r.create(ctx, t, address, priority, enabled); err != nil {
			return err
		}
	}

	return nil
}

// RemoveAlarm destroys the alarm with the given key.
func (r *Registry) RemoveAlarm(ctx context.Context, key alarm.Key) error {
	a, ok := r.byKey[key]
	if !ok {
		return fmt.Errorf("remove alarm %s: %w", key, ErrNotFound)
	}

	delete(r.byKey, key)
	r.ordered = slices.DeleteFunc(slices.Clone(r.ordered), func(x *alarm.Alarm) bool { return x == a })

	r.record(ctx, a, "Alarm removed")

	return nil
}

// ClearConfiguredAlarms destroys every alarm.
func (r *Registry) ClearConfiguredAlarms(ctx context.Context) {
	n := len(r.ordered)

	r.byKey = make(map[alarm.Key]*alarm.Alarm)
	r.ordered = nil

	r.recordMessage(ctx, fmt.Sprintf("Cleared %d configured alarms", n))
}

// ClearResolvedAlarms destroys every RESOLVED alarm and returns how many were removed.
func (r *Registry) ClearResolvedAlarms(ctx context.Context) int {
	kept := make([]*alarm.Alarm, 0, len(r.ordered))
	removed := 0

	for _, a := range r.ordered {
		if a.IsResolved() {
			delete(r.byKey, a.Key())
			removed++

			continue
		}

		kept = append(kept, a)
	}

	r.ordered = kept

	if removed > 0 {
		r.recordMessage(ctx, fmt.Sprintf("Cleared %d resolved alarms", removed))
	}

	return removed
}

// UpdateAlarm changes the priority and enabled flag of an alarm.
// A priority change also moves the alarm to the acknowledgment timeout of its new tier.
func (r *Registry) UpdateAlarm(ctx context.Context, key alarm.Key, priority alarm.Priority, enabled bool) error {
	if !priority.Valid() {
		return fmt.Errorf("update alarm %s: %w", key, alarm.ErrInvalidPriority)
	}

	a, ok := r.byKey[key]
	if !ok {
		return fmt.Errorf("update alarm %s: %w", key, ErrNotFound)
	}

	r.setPriority(ctx, a, priority)
	a.SetEnabled(ctx, enabled)
	r.sort()

	return nil
}

// SetHysteresis changes the dead-band of an alarm.
func (r *Registry) SetHysteresis(ctx context.Context, key alarm.Key, hysteresis int) error {
	a, ok := r.byKey[key]
	if !ok {
		return fmt.Errorf("set hysteresis of %s: %w", key, ErrNotFound)
	}

	a.SetHysteresis(ctx, hysteresis)

	return nil
}

// SetAcknowledgedDelays replaces the per-tier timeouts used for new alarms.
// Call ApplyAcknowledgedDelaysToAlarms to update existing ones.
func (r *Registry) SetAcknowledgedDelays(d alarm.AcknowledgedDelays) {
	r.delays = d
}

// AcknowledgedDelays returns the per-tier timeouts.
func (r *Registry) AcknowledgedDelays() alarm.AcknowledgedDelays {
	return r.delays
}

// ApplyAcknowledgedDelaysToAlarms gives every alarm the timeout of its priority tier.
func (r *Registry) ApplyAcknowledgedDelaysToAlarms(ctx context.Context) {
	for _, a := range r.ordered {
		a.SetAcknowledgedDelay(ctx, r.delays.For(a.Priority()))
	}
}

// Update evaluates the alarms when the evaluation interval has elapsed
// since the previous evaluation. It reports whether an evaluation ran.
func (r *Registry) Update(ctx context.Context) bool {
	now := r.clock.Now()
	if r.evaluated && now.Sub(r.lastUpdate) < r.interval {
		return false
	}

	r.lastUpdate = now
	r.evaluated = true
	r.Evaluate(ctx)

	return true
}

// Evaluate runs one evaluation pass regardless of the interval.
//
// Sensor-fault alarms go first. Temperature alarms on a point whose
// SENSOR_ERROR or SENSOR_DISCONNECTED alarm is ACTIVE are forced to RESOLVED
// instead of checking their condition. Disabled alarms are skipped.
func (r *Registry) Evaluate(ctx context.Context) {
	faulted := make(map[int]struct{})

	for _, a := range r.ordered {
		if !a.Enabled() || !a.Type().IsSensorFault() {
			continue
		}

		a.UpdateCondition(ctx)

		if a.Stage() == alarm.StageActive {
			faulted[a.Address()] = struct{}{}
		}
	}

	for _, a := range r.ordered {
		if !a.Enabled() || a.Type().IsSensorFault() {
			continue
		}

		if _, ok := faulted[a.Address()]; ok && a.Type().IsTemperature() {
			a.Resolve(ctx)

			continue
		}

		a.UpdateCondition(ctx)
	}

	r.sort()
}

// Alarms returns every alarm in priority order.
func (r *Registry) Alarms() []*alarm.Alarm {
	return slices.Clone(r.ordered)
}

// Alarm returns the alarm with the given key.
func (r *Registry) Alarm(key alarm.Key) (*alarm.Alarm, error) {
	a, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("alarm %s: %w", key, ErrNotFound)
	}

	return a, nil
}

// ActiveAlarms returns the enabled alarms in the ACTIVE or ACKNOWLEDGED stage.
func (r *Registry) ActiveAlarms() []*alarm.Alarm {
	return r.filter(func(a *alarm.Alarm) bool { return a.IsActive() })
}

// AlarmsInStage returns the enabled alarms in stage s, in priority order.
func (r *Registry) AlarmsInStage(s alarm.Stage) []*alarm.Alarm {
	return r.filter(func(a *alarm.Alarm) bool { return a.Stage() == s })
}

// AcknowledgedAlarms returns the enabled alarms in the ACKNOWLEDGED stage.
func (r *Registry) AcknowledgedAlarms() []*alarm.Alarm {
	return r.AlarmsInStage(alarm.StageAcknowledged)
}

// HighestPriorityAlarm returns the first enabled ACTIVE or ACKNOWLEDGED alarm.
func (r *Registry) HighestPriorityAlarm() (*alarm.Alarm, bool) {
	for _, a := range r.ordered {
		if a.Enabled() && a.IsActive() {
			return a, true
		}
	}

	return nil, false
}

// AlarmsForPoint returns every alarm of the point at address, enabled or not.
func (r *Registry) AlarmsForPoint(address int) []*alarm.Alarm {
	var result []*alarm.Alarm

	for _, a := range r.ordered {
		if a.Address() == address {
			result = append(result, a)
		}
	}

	return result
}

// Count returns the number of enabled alarms in stage s whose priority
// compares to p as requested, e.g. Count(PriorityHigh, GreaterOrEqual, StageActive).
func (r *Registry) Count(p alarm.Priority, cmp Comparison, s alarm.Stage) int {
	n := 0

	for _, a := range r.ordered {
		if a.Enabled() && a.Stage() == s && cmp.holds(int(a.Priority()), int(p)) {
			n++
		}
	}

	return n
}

// Summary counts enabled alarms per priority in the ACTIVE and ACKNOWLEDGED stages.
func (r *Registry) Summary() alarm.Summary {
	var s alarm.Summary

	for _, p := range alarm.Priorities() {
		s.Active[p] = r.Count(p, Equal, alarm.StageActive)
		s.Acknowledged[p] = r.Count(p, Equal, alarm.StageAcknowledged)
	}

	return s
}

// Acknowledge acknowledges the alarm with the given key.
func (r *Registry) Acknowledge(ctx context.Context, key alarm.Key) error {
	a, ok := r.byKey[key]
	if !ok {
		return fmt.Errorf("acknowledge %s: %w", key, ErrNotFound)
	}

	if !a.Acknowledge(ctx) {
		return fmt.Errorf("acknowledge %s in stage %s: %w", key, a.Stage(), ErrNotAcknowledgeable)
	}

	return nil
}

// AcknowledgeHighestPriorityAlarm acknowledges the first enabled NEW or
// ACTIVE alarm in priority order.
func (r *Registry) AcknowledgeHighestPriorityAlarm(ctx context.Context) (*alarm.Alarm, bool) {
	for _, a := range r.ordered {
		if a.Enabled() && a.Acknowledge(ctx) {
			return a, true
		}
	}

	return nil, false
}

// AcknowledgeAll acknowledges every enabled NEW or ACTIVE alarm and returns how many changed.
func (r *Registry) AcknowledgeAll(ctx context.Context) int {
	n := 0

	for _, a := range r.ordered {
		if a.Enabled() && a.Acknowledge(ctx) {
			n++
		}
	}

	return n
}

// create builds and indexes a new alarm.
func (r *Registry) create(
	ctx context.Context,
	t alarm.Type,
	address int,
	priority alarm.Priority,
	enabled bool,
) (*alarm.Alarm, error) {
	p, err := r.points.Get(address)
	if err != nil {
		return nil, fmt.Errorf("create %s alarm: %w", t, err)
	}

	a := alarm.New(t, address, priority,
		alarm.WithSource(p),
		alarm.WithClock(r.clock),
		alarm.WithSink(r.sink),
		alarm.WithEnabled(enabled),
		alarm.WithClearDelay(r.clearDelay),
		alarm.WithAcknowledgedDelay(r.delays.For(priority)),
	)

	r.byKey[a.Key()] = a
	r.ordered = append(r.ordered, a)
	r.sort()

	r.record(ctx, a, "Alarm created")

	return a, nil
}

// setPriority changes the priority and the matching acknowledgment timeout.
func (r *Registry) setPriority(ctx context.Context, a *alarm.Alarm, p alarm.Priority) {
	if a.Priority() == p {
		return
	}

	a.SetPriority(ctx, p)
	a.SetAcknowledgedDelay(ctx, r.delays.For(p))
}

// filter returns the enabled alarms matching keep, in priority order.
func (r *Registry) filter(keep func(*alarm.Alarm) bool) []*alarm.Alarm {
	var result []*alarm.Alarm

	for _, a := range r.ordered {
		if a.Enabled() && keep(a) {
			result = append(result, a)
		}
	}

	return result
}

// sort restores priority order; equal alarms keep their relative order.
func (r *Registry) sort() {
	slices.SortStableFunc(r.ordered, alarm.Compare)
}

// record reports a registry operation on a single alarm.
func (r *Registry) record(ctx context.Context, a *alarm.Alarm, message string) {
	if r.sink == nil {
		return
	}

	s := a.Snapshot()

	r.emit(ctx, alarm.Event{
		Kind:         alarm.EventInfo,
		Time:         r.clock.Now(),
		Key:          s.Key,
		PointAddress: s.PointAddress,
		PointName:    s.PointName,
		Type:         s.Type,
		Priority:     s.Priority,
		From:         s.Stage,
		To:           s.Stage,
		Temperature:  s.Temperature,
		Threshold:    s.Threshold,
		Message:      message,
	})
}

// recordMessage reports a registry-wide message.
func (r *Registry) recordMessage(ctx context.Context, message string) {
	if r.sink == nil {
		return
	}

	r.emit(ctx, alarm.Event{
		Kind:    alarm.EventInfo,
		Time:    r.clock.Now(),
		Message: message,
	})
}

// emit hands an event to the sink; failures are only logged.
func (r *Registry) emit(ctx context.Context, e alarm.Event) {
	if r.sink == nil {
		return
	}

	if err := r.sink.Record(ctx, e); err != nil {
		logger.WarnKV(ctx, "Registry event was not recorded", "message", e.Message, "error", err)
	}
}

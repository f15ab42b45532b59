package monitor

import (
	"context"
	"fmt"
	"time"

	api "github.com/oshokin/tempmon/internal/api/grpc/alarm"
	"github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/logger"
	"github.com/oshokin/tempmon/internal/repository/events"
	"github.com/oshokin/tempmon/internal/service/output"
)

// Alarms returns every alarm in priority order and the current summary.
func (m *Monitor) Alarms(context.Context) ([]alarm.Snapshot, alarm.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return alarm.Snapshots(m.registry.Alarms()), m.registry.Summary()
}

// Acknowledge acknowledges one alarm.
func (m *Monitor) Acknowledge(ctx context.Context, key alarm.Key) (alarm.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.registry.Acknowledge(ctx, key); err != nil {
		return alarm.Snapshot{}, err
	}

	a, err := m.registry.Alarm(key)
	if err != nil {
		return alarm.Snapshot{}, err
	}

	logger.InfoKV(ctx, "Alarm acknowledged by operator", "key", key)

	return a.Snapshot(), nil
}

// AcknowledgeHighest acknowledges the most urgent unacknowledged alarm.
func (m *Monitor) AcknowledgeHighest(ctx context.Context) (alarm.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.registry.AcknowledgeHighestPriorityAlarm(ctx)
	if !ok {
		return alarm.Snapshot{}, false
	}

	logger.InfoKV(ctx, "Alarm acknowledged by operator", "key", a.Key())

	return a.Snapshot(), true
}

// AcknowledgeAll acknowledges every unacknowledged alarm.
func (m *Monitor) AcknowledgeAll(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.registry.AcknowledgeAll(ctx)
	logger.InfoKV(ctx, "Alarms acknowledged by operator", "count", n)

	return n
}

// AddAlarm creates or re-enables an alarm and persists the configuration.
func (m *Monitor) AddAlarm(ctx context.Context, t alarm.Type, address int, priority alarm.Priority) (alarm.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.registry.AddAlarm(ctx, t, address, priority)
	if err != nil {
		return alarm.Snapshot{}, err
	}

	m.saveAlarms(ctx)

	return a.Snapshot(), nil
}

// RemoveAlarm destroys an alarm and persists the configuration.
func (m *Monitor) RemoveAlarm(ctx context.Context, key alarm.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.registry.RemoveAlarm(ctx, key); err != nil {
		return err
	}

	m.saveAlarms(ctx)

	return nil
}

// UpdateAlarm applies the given fields and persists the configuration.
func (m *Monitor) UpdateAlarm(ctx context.Context, update api.AlarmUpdate) (alarm.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.registry.Alarm(update.Key)
	if err != nil {
		return alarm.Snapshot{}, err
	}

	priority, enabled := a.Priority(), a.Enabled()

	if update.Priority != nil {
		priority = *update.Priority
	}

	if update.Enabled != nil {
		enabled = *update.Enabled
	}

	if err = m.registry.UpdateAlarm(ctx, update.Key, priority, enabled); err != nil {
		return alarm.Snapshot{}, err
	}

	if update.Hysteresis != nil {
		if err = m.registry.SetHysteresis(ctx, update.Key, *update.Hysteresis); err != nil {
			return alarm.Snapshot{}, err
		}
	}

	m.saveAlarms(ctx)

	return a.Snapshot(), nil
}

// SetAcknowledgedDelays changes the per-tier acknowledgment timeouts, applies
// them to the existing alarms and persists them.
func (m *Monitor) SetAcknowledgedDelays(ctx context.Context, update api.DelaysUpdate) (alarm.AcknowledgedDelays, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.registry.AcknowledgedDelays()
	delays := current

	for _, tier := range []struct {
		value  *time.Duration
		target *time.Duration
	}{
		{update.Critical, &delays.Critical},
		{update.High, &delays.High},
		{update.Medium, &delays.Medium},
		{update.Low, &delays.Low},
	} {
		if tier.value != nil {
			*tier.target = *tier.value
		}
	}

	if err := delays.Validate(); err != nil {
		return alarm.AcknowledgedDelays{}, err
	}

	if delays == current {
		return delays, nil
	}

	m.registry.SetAcknowledgedDelays(delays)
	m.registry.ApplyAcknowledgedDelaysToAlarms(ctx)

	logger.InfoKV(ctx, "Acknowledged delays changed",
		"critical", delays.Critical,
		"high", delays.High,
		"medium", delays.Medium,
		"low", delays.Low,
	)

	if m.alarmStore != nil {
		if err := m.alarmStore.SaveAcknowledgedDelays(ctx, delays); err != nil {
			logger.ErrorKV(ctx, "Failed to persist acknowledged delays", "error", err)
		}
	}

	return delays, nil
}

// Outputs returns the last driven signal and the mode of every output.
func (m *Monitor) Outputs(context.Context) []api.OutputStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	signals := m.arbitrator.State()
	result := make([]api.OutputStatus, 0, len(output.Names()))

	for _, name := range output.Names() {
		status := api.OutputStatus{
			Name: name,
			Mode: m.arbitrator.Mode(name),
		}

		if signal, ok := signals[name]; ok {
			status.Signal = &signal
		}

		result = append(result, status)
	}

	return result
}

// SetRelayMode forces a relay on or off, or returns it to automatic control.
func (m *Monitor) SetRelayMode(ctx context.Context, name output.Name, mode output.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.setRelayMode(ctx, name, mode)
}

// History returns the newest stored alarm events.
func (m *Monitor) History(ctx context.Context, limit int) ([]events.Entry, error) {
	if m.history == nil {
		return nil, fmt.Errorf("event history: %w", api.ErrUnavailable)
	}

	return m.history.Recent(ctx, limit)
}

// PressButton forwards a front panel press to the display selector.
func (m *Monitor) PressButton(ctx context.Context, long bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if long {
		m.selector.LongPress()
	} else {
		m.selector.ShortPress()
	}

	logger.DebugKV(ctx, "Button pressed", "long", long)
}
